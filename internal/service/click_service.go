package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chirpy-labs/chirpy-push/internal/metrics"
	"github.com/chirpy-labs/chirpy-push/internal/model"
	"github.com/chirpy-labs/chirpy-push/internal/storage"
)

// ClickService records notification clicks reported by browsers.
type ClickService struct {
	store   storage.Store
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewClickService builds the click service. m may be nil.
func NewClickService(store storage.Store, m *metrics.Metrics) *ClickService {
	return &ClickService{store: store, metrics: m, now: time.Now}
}

// Report records a click and bumps the campaign's clicked counter. It needs
// no credential. A subscriberID that is empty, no longer exists, or belongs to
// another website is stored as "unknown".
func (s *ClickService) Report(ctx context.Context, campaignID, subscriberID string) error {
	campaignID = strings.TrimSpace(campaignID)
	if campaignID == "" {
		return newError(ErrValidation, "campaignId is required")
	}
	campaign, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return fromStore(err, "campaign")
	}
	subscriberID, err = s.attribute(ctx, campaign, strings.TrimSpace(subscriberID))
	if err != nil {
		return err
	}
	record := &model.ClickRecord{
		CampaignID:   campaignID,
		SubscriberID: subscriberID,
		ClickedAt:    s.now().UTC(),
	}
	if err := s.store.RecordClick(ctx, record); err != nil {
		return fromStore(err, "campaign")
	}
	s.metrics.ObserveClick()
	return nil
}

func (s *ClickService) attribute(ctx context.Context, campaign *model.Campaign, subscriberID string) (string, error) {
	if subscriberID == "" {
		return model.UnknownSubscriber, nil
	}
	sub, err := s.store.GetSubscriber(ctx, subscriberID)
	if errors.Is(err, storage.ErrNotFound) {
		return model.UnknownSubscriber, nil
	}
	if err != nil {
		return "", err
	}
	if sub.WebsiteID != campaign.WebsiteID {
		return model.UnknownSubscriber, nil
	}
	return sub.ID, nil
}
