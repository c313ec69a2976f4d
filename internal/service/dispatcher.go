package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chirpy-labs/chirpy-push/internal/metrics"
	"github.com/chirpy-labs/chirpy-push/internal/model"
	"github.com/chirpy-labs/chirpy-push/internal/pushclient"
	"github.com/chirpy-labs/chirpy-push/internal/segment"
	"github.com/chirpy-labs/chirpy-push/internal/storage"
)

// DispatcherOptions tunes campaign fan-out.
type DispatcherOptions struct {
	Workers        int
	AttemptTimeout time.Duration
	DefaultIcon    string
	DefaultURL     string
}

// Dispatcher delivers a campaign to its audience and records the outcome.
type Dispatcher struct {
	store     storage.Store
	guard     *Guard
	transport pushclient.Transport
	opts      DispatcherOptions
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewDispatcher builds the dispatcher. m and logger may be nil; transport may
// not.
func NewDispatcher(store storage.Store, guard *Guard, transport pushclient.Transport, opts DispatcherOptions, m *metrics.Metrics, logger *slog.Logger) (*Dispatcher, error) {
	if transport == nil {
		return nil, errors.New("dispatcher: push transport is required")
	}
	if opts.Workers <= 0 {
		opts.Workers = 32
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 10 * time.Second
	}
	if opts.DefaultIcon == "" {
		opts.DefaultIcon = "/icon.png"
	}
	if opts.DefaultURL == "" {
		opts.DefaultURL = "/"
	}
	return &Dispatcher{
		store:     store,
		guard:     guard,
		transport: transport,
		opts:      opts,
		metrics:   m,
		logger:    orDiscard(logger),
		now:       time.Now,
	}, nil
}

type attemptOutcome int

const (
	outcomeDelivered attemptOutcome = iota
	outcomeExpired
	outcomeFailed
)

// Send pushes a campaign to every subscriber its segment selects. Expired
// handles are pruned, per-recipient failures are counted and never abort the
// send. The returned counts cover this send only; the campaign's stored
// counters accumulate across sends.
func (d *Dispatcher) Send(ctx context.Context, credential, campaignID string) (*model.SendResult, error) {
	_, campaign, err := d.guard.Campaign(ctx, credential, campaignID)
	if err != nil {
		return nil, err
	}
	targets, err := d.audience(ctx, campaign)
	if err != nil {
		return nil, err
	}

	started := d.now()
	base := d.payload(campaign)
	// attempts outlive a caller that hangs up; each one is bounded by its own timeout
	attemptCtx := context.WithoutCancel(ctx)

	var (
		mu     sync.Mutex
		result = model.SendResult{CampaignID: campaign.ID}
		g      errgroup.Group
	)
	g.SetLimit(d.opts.Workers)
	for _, sub := range targets {
		g.Go(func() error {
			outcome, err := d.attempt(attemptCtx, campaign.ID, base, sub)
			mu.Lock()
			if err != nil && len(result.Errors) < model.MaxSendErrors {
				result.Errors = append(result.Errors, model.SendError{SubscriberID: sub.ID, Error: err.Error()})
			}
			switch outcome {
			case outcomeDelivered:
				result.Sent++
				result.Delivered++
			case outcomeExpired:
				result.Failed++
				result.Pruned++
			default:
				result.Failed++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	stats := model.Stats{Sent: result.Sent, Delivered: result.Delivered, Failed: result.Failed}
	if _, err := d.store.CompleteCampaign(attemptCtx, campaign.ID, stats, d.now().UTC()); err != nil {
		d.logger.Warn("campaign vanished during send", "campaign_id", campaign.ID, "error", err)
		return &result, fromStore(err, "campaign")
	}
	d.metrics.ObserveSend(d.now().Sub(started))
	d.logger.Info("campaign sent",
		"campaign_id", campaign.ID,
		"website_id", campaign.WebsiteID,
		"targets", len(targets),
		"delivered", result.Delivered,
		"failed", result.Failed,
		"pruned", result.Pruned,
	)
	return &result, nil
}

// audience resolves the campaign's recipients against live metadata.
func (d *Dispatcher) audience(ctx context.Context, campaign *model.Campaign) ([]*model.Subscriber, error) {
	subs, err := d.store.ListSubscribers(ctx, campaign.WebsiteID)
	if err != nil {
		return nil, fromStore(err, "website")
	}
	if campaign.SegmentID == "" {
		return subs, nil
	}
	seg, err := d.store.GetSegment(ctx, campaign.SegmentID)
	if err != nil {
		return nil, fromStore(err, "segment")
	}
	if seg.WebsiteID != campaign.WebsiteID {
		return nil, newError(ErrNotFound, "segment not found")
	}
	return segment.Resolve(subs, seg.Rules), nil
}

func (d *Dispatcher) payload(campaign *model.Campaign) model.PushPayload {
	c := campaign.Content
	p := model.PushPayload{
		Title:      c.Title,
		Body:       c.Body,
		Icon:       c.Icon,
		Image:      c.Image,
		URL:        c.ClickURL,
		Actions:    c.Actions,
		CampaignID: campaign.ID,
	}
	if strings.TrimSpace(p.Icon) == "" {
		p.Icon = d.opts.DefaultIcon
	}
	if strings.TrimSpace(p.URL) == "" {
		p.URL = d.opts.DefaultURL
	}
	return p
}

// attempt delivers to one subscriber and applies the per-recipient side
// effect: a delivery record on success, removal on an expired handle. The
// returned error is the delivery failure, if any.
func (d *Dispatcher) attempt(ctx context.Context, campaignID string, base model.PushPayload, sub *model.Subscriber) (attemptOutcome, error) {
	base.SubscriberID = sub.ID
	body, err := json.Marshal(base)
	if err != nil {
		d.logger.Error("encode payload failed", "campaign_id", campaignID, "subscriber_id", sub.ID, "error", err)
		d.metrics.ObserveDelivery(metrics.OutcomeFailed)
		return outcomeFailed, err
	}

	callCtx, cancel := context.WithTimeout(ctx, d.opts.AttemptTimeout)
	err = d.transport.Deliver(callCtx, sub.Handle, body)
	cancel()

	switch {
	case err == nil:
		record := &model.DeliveryRecord{CampaignID: campaignID, SubscriberID: sub.ID, DeliveredAt: d.now().UTC()}
		if err := d.store.AppendDelivery(ctx, record); err != nil {
			d.logger.Warn("append delivery record failed", "campaign_id", campaignID, "subscriber_id", sub.ID, "error", err)
		}
		d.metrics.ObserveDelivery(metrics.OutcomeDelivered)
		return outcomeDelivered, nil
	case errors.Is(err, pushclient.ErrExpired):
		if err := d.store.RemoveSubscriber(ctx, sub.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			d.logger.Warn("prune subscriber failed", "subscriber_id", sub.ID, "error", err)
		}
		d.logger.Info("pruned expired subscriber", "campaign_id", campaignID, "subscriber_id", sub.ID)
		d.metrics.ObserveDelivery(metrics.OutcomeExpired)
		return outcomeExpired, err
	default:
		d.logger.Debug("delivery failed", "campaign_id", campaignID, "subscriber_id", sub.ID, "error", err)
		d.metrics.ObserveDelivery(metrics.OutcomeFailed)
		return outcomeFailed, err
	}
}
