package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chirpy-labs/chirpy-push/internal/model"
	"github.com/chirpy-labs/chirpy-push/internal/storage"
)

// CampaignService manages campaign records. Sending lives in Dispatcher.
type CampaignService struct {
	store storage.Store
	guard *Guard
	now   func() time.Time
}

// NewCampaignService builds the campaign service.
func NewCampaignService(store storage.Store, guard *Guard) *CampaignService {
	return &CampaignService{store: store, guard: guard, now: time.Now}
}

// CreateCampaignRequest is the campaign creation payload.
type CreateCampaignRequest struct {
	WebsiteID   string         `json:"websiteId" validate:"required"`
	Title       string         `json:"title" validate:"required,max=200"`
	Body        string         `json:"body" validate:"required"`
	Icon        string         `json:"icon"`
	Image       string         `json:"image"`
	URL         string         `json:"url"`
	Actions     []model.Action `json:"actions"`
	SegmentID   string         `json:"segmentId"`
	ScheduledAt *time.Time     `json:"scheduledAt"`
}

// CampaignDetail is a campaign with its record counts.
type CampaignDetail struct {
	model.CampaignRow
	Deliveries int `json:"deliveries"`
	Clicks     int `json:"clicks"`
}

// Create stores a draft campaign, or a scheduled one when scheduledAt lies
// in the future.
func (s *CampaignService) Create(ctx context.Context, credential string, req CreateCampaignRequest) (*model.Campaign, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Body = strings.TrimSpace(req.Body)
	if _, _, err := s.guard.Website(ctx, credential, req.WebsiteID); err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.SegmentID != "" {
		seg, err := s.store.GetSegment(ctx, req.SegmentID)
		if err != nil {
			return nil, fromStore(err, "segment")
		}
		if seg.WebsiteID != req.WebsiteID {
			return nil, newError(ErrValidation, "segment belongs to another website")
		}
	}

	now := s.now().UTC()
	campaign := &model.Campaign{
		ID:        uuid.NewString(),
		WebsiteID: req.WebsiteID,
		Content: model.Content{
			Title:    req.Title,
			Body:     req.Body,
			Icon:     req.Icon,
			Image:    req.Image,
			ClickURL: req.URL,
			Actions:  req.Actions,
		},
		SegmentID: req.SegmentID,
		Status:    model.CampaignStatusDraft,
		CreatedAt: now,
	}
	if req.ScheduledAt != nil && req.ScheduledAt.After(now) {
		at := req.ScheduledAt.UTC()
		campaign.ScheduledAt = &at
		campaign.Status = model.CampaignStatusScheduled
	}
	if err := s.store.CreateCampaign(ctx, campaign); err != nil {
		return nil, fromStore(err, "website")
	}
	return campaign, nil
}

// List returns one website's campaigns, newest first.
func (s *CampaignService) List(ctx context.Context, credential, websiteID string) ([]model.CampaignRow, error) {
	if _, _, err := s.guard.Website(ctx, credential, websiteID); err != nil {
		return nil, err
	}
	campaigns, err := s.store.ListCampaigns(ctx, websiteID)
	if err != nil {
		return nil, fromStore(err, "website")
	}
	return toRows(campaigns), nil
}

// ListAll returns the campaigns of every website the caller owns, newest first.
func (s *CampaignService) ListAll(ctx context.Context, credential string) ([]model.CampaignRow, error) {
	account, err := s.guard.Account(ctx, credential)
	if err != nil {
		return nil, err
	}
	campaigns, err := ownedCampaigns(ctx, s.store, account.ID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(campaigns, func(i, j int) bool {
		return campaigns[i].CreatedAt.After(campaigns[j].CreatedAt)
	})
	return toRows(campaigns), nil
}

// Get returns one campaign with its delivery and click counts.
func (s *CampaignService) Get(ctx context.Context, credential, campaignID string) (*CampaignDetail, error) {
	_, campaign, err := s.guard.Campaign(ctx, credential, campaignID)
	if err != nil {
		return nil, err
	}
	deliveries, err := s.store.ListDeliveries(ctx, campaignID)
	if err != nil {
		return nil, fromStore(err, "campaign")
	}
	clicks, err := s.store.ListClicks(ctx, campaignID)
	if err != nil {
		return nil, fromStore(err, "campaign")
	}
	return &CampaignDetail{
		CampaignRow: model.CampaignRow{Campaign: campaign, CTR: roundedCTR(campaign.Stats)},
		Deliveries:  len(deliveries),
		Clicks:      len(clicks),
	}, nil
}

// Delete removes a campaign and its delivery and click records.
func (s *CampaignService) Delete(ctx context.Context, credential, campaignID string) error {
	if _, _, err := s.guard.Campaign(ctx, credential, campaignID); err != nil {
		return err
	}
	return fromStore(s.store.DeleteCampaign(ctx, campaignID), "campaign")
}

func ownedCampaigns(ctx context.Context, store storage.Store, accountID string) ([]*model.Campaign, error) {
	websites, err := store.ListWebsites(ctx, accountID)
	if err != nil {
		return nil, err
	}
	var out []*model.Campaign
	for _, w := range websites {
		campaigns, err := store.ListCampaigns(ctx, w.ID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, campaigns...)
	}
	return out, nil
}

func toRows(campaigns []*model.Campaign) []model.CampaignRow {
	rows := make([]model.CampaignRow, 0, len(campaigns))
	for _, c := range campaigns {
		rows = append(rows, model.CampaignRow{Campaign: c, CTR: roundedCTR(c.Stats)})
	}
	return rows
}

// roundedCTR is clicked/delivered as a percentage with two decimals, 0 when
// nothing was delivered.
func roundedCTR(stats model.Stats) float64 {
	return round2(percent(stats.Clicked, stats.Delivered, 0))
}

// percent returns num/den*100, or empty when den is zero.
func percent(num, den int, empty float64) float64 {
	if den == 0 {
		return empty
	}
	return float64(num) / float64(den) * 100
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
