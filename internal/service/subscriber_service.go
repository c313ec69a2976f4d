package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chirpy-labs/chirpy-push/internal/geoip"
	"github.com/chirpy-labs/chirpy-push/internal/metrics"
	"github.com/chirpy-labs/chirpy-push/internal/model"
	"github.com/chirpy-labs/chirpy-push/internal/storage"
)

// GeoLocator resolves a client address to a coarse location.
type GeoLocator interface {
	Lookup(ctx context.Context, ip string) (*geoip.Location, error)
}

// SubscriberService registers browsers and lists them for owners.
type SubscriberService struct {
	store      storage.Store
	guard      *Guard
	geo        GeoLocator
	geoTimeout time.Duration
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewSubscriberService builds the subscriber service. geo, m and logger may be nil.
func NewSubscriberService(store storage.Store, guard *Guard, geo GeoLocator, geoTimeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *SubscriberService {
	if geoTimeout <= 0 {
		geoTimeout = 2 * time.Second
	}
	return &SubscriberService{
		store:      store,
		guard:      guard,
		geo:        geo,
		geoTimeout: geoTimeout,
		metrics:    m,
		logger:     orDiscard(logger),
		now:        time.Now,
	}
}

// SubscribeRequest is what the embeddable client posts.
type SubscribeRequest struct {
	Handle   string         `json:"subscription"`
	Metadata model.Metadata `json:"metadata"`
	ClientIP string         `json:"-"`
}

// Register stores a new subscriber under the website the site key belongs to.
func (s *SubscriberService) Register(ctx context.Context, siteKey string, req SubscribeRequest) (*model.Subscriber, error) {
	website, err := s.guard.Site(ctx, siteKey)
	if err != nil {
		return nil, err
	}
	handle := strings.TrimSpace(req.Handle)
	if handle == "" {
		return nil, newError(ErrValidation, "subscription is required")
	}

	meta := req.Metadata
	s.enrich(ctx, &meta, req.ClientIP)
	now := s.now().UTC()
	meta.Platform = orUnknown(meta.Platform)
	meta.Browser = orUnknown(meta.Browser)
	meta.Country = orUnknown(meta.Country)
	meta.City = orUnknown(meta.City)
	meta.Language = orUnknown(meta.Language)
	meta.Timezone = orUnknown(meta.Timezone)
	meta.SubscribedAt = now

	sub := &model.Subscriber{
		ID:        uuid.NewString(),
		WebsiteID: website.ID,
		Handle:    handle,
		Metadata:  meta,
		CreatedAt: now,
	}
	if err := s.store.CreateSubscriber(ctx, sub); err != nil {
		return nil, fromStore(err, "website")
	}
	s.metrics.ObserveSubscriber()
	s.logger.Debug("subscriber registered", "website_id", website.ID, "subscriber_id", sub.ID)
	return sub, nil
}

// List returns a website's subscribers without their push handles.
func (s *SubscriberService) List(ctx context.Context, credential, websiteID string) ([]model.SubscriberView, error) {
	if _, _, err := s.guard.Website(ctx, credential, websiteID); err != nil {
		return nil, err
	}
	subs, err := s.store.ListSubscribers(ctx, websiteID)
	if err != nil {
		return nil, fromStore(err, "website")
	}
	out := make([]model.SubscriberView, 0, len(subs))
	for _, sub := range subs {
		out = append(out, model.SubscriberView{
			ID:        sub.ID,
			WebsiteID: sub.WebsiteID,
			Metadata:  sub.Metadata,
			CreatedAt: sub.CreatedAt,
		})
	}
	return out, nil
}

// enrich fills location fields the client left empty. Lookup failures are
// logged and otherwise ignored.
func (s *SubscriberService) enrich(ctx context.Context, meta *model.Metadata, ip string) {
	if s.geo == nil || ip == "" {
		return
	}
	if isKnown(meta.Country) && isKnown(meta.City) && isKnown(meta.Timezone) {
		return
	}
	lookupCtx, cancel := context.WithTimeout(ctx, s.geoTimeout)
	defer cancel()
	loc, err := s.geo.Lookup(lookupCtx, ip)
	if err != nil {
		if !errors.Is(err, geoip.ErrSkipped) {
			s.logger.Warn("geo lookup failed", "ip", ip, "error", err)
		}
		return
	}
	if !isKnown(meta.Country) {
		meta.Country = loc.Country
	}
	if !isKnown(meta.City) {
		meta.City = loc.City
	}
	if !isKnown(meta.Timezone) {
		meta.Timezone = loc.Timezone
	}
}

func isKnown(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != model.Unknown
}

func orUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return model.Unknown
	}
	return v
}
