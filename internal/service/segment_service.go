package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chirpy-labs/chirpy-push/internal/model"
	"github.com/chirpy-labs/chirpy-push/internal/segment"
	"github.com/chirpy-labs/chirpy-push/internal/storage"
)

// SegmentService manages saved audience filters.
type SegmentService struct {
	store storage.Store
	guard *Guard
	now   func() time.Time
}

// NewSegmentService builds the segment service.
func NewSegmentService(store storage.Store, guard *Guard) *SegmentService {
	return &SegmentService{store: store, guard: guard, now: time.Now}
}

// CreateSegmentRequest is the segment creation payload.
type CreateSegmentRequest struct {
	WebsiteID string       `json:"websiteId" validate:"required"`
	Name      string       `json:"name" validate:"required,max=120"`
	Rules     []model.Rule `json:"rules" validate:"dive"`
}

// SegmentView is a segment with its current audience size.
type SegmentView struct {
	*model.Segment
	SubscriberCount int `json:"subscriberCount"`
}

// Preview reports how many subscribers a rule set selects right now.
type Preview struct {
	Matching int `json:"matching"`
	Total    int `json:"total"`
}

// Create stores a new segment for a website the caller owns.
func (s *SegmentService) Create(ctx context.Context, credential string, req CreateSegmentRequest) (*model.Segment, error) {
	req.Name = strings.TrimSpace(req.Name)
	if _, _, err := s.guard.Website(ctx, credential, req.WebsiteID); err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := segment.ValidateRules(req.Rules); err != nil {
		return nil, newError(ErrValidation, "%v", err)
	}
	seg := &model.Segment{
		ID:        uuid.NewString(),
		WebsiteID: req.WebsiteID,
		Name:      req.Name,
		Rules:     req.Rules,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateSegment(ctx, seg); err != nil {
		return nil, fromStore(err, "website")
	}
	return seg, nil
}

// List returns a website's segments with live audience sizes.
func (s *SegmentService) List(ctx context.Context, credential, websiteID string) ([]SegmentView, error) {
	if _, _, err := s.guard.Website(ctx, credential, websiteID); err != nil {
		return nil, err
	}
	segments, err := s.store.ListSegments(ctx, websiteID)
	if err != nil {
		return nil, fromStore(err, "website")
	}
	subs, err := s.store.ListSubscribers(ctx, websiteID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	out := make([]SegmentView, 0, len(segments))
	for _, seg := range segments {
		out = append(out, SegmentView{Segment: seg, SubscriberCount: len(segment.Resolve(subs, seg.Rules))})
	}
	return out, nil
}

// Delete removes a segment. Campaigns referencing it fail to send afterwards.
func (s *SegmentService) Delete(ctx context.Context, credential, segmentID string) error {
	if _, _, err := s.guard.Segment(ctx, credential, segmentID); err != nil {
		return err
	}
	return fromStore(s.store.DeleteSegment(ctx, segmentID), "segment")
}

// Preview counts the subscribers of websiteID that rules would select.
func (s *SegmentService) Preview(ctx context.Context, credential, websiteID string, rules []model.Rule) (*Preview, error) {
	if _, _, err := s.guard.Website(ctx, credential, websiteID); err != nil {
		return nil, err
	}
	if err := segment.ValidateRules(rules); err != nil {
		return nil, newError(ErrValidation, "%v", err)
	}
	subs, err := s.store.ListSubscribers(ctx, websiteID)
	if err != nil {
		return nil, fromStore(err, "website")
	}
	return &Preview{Matching: len(segment.Resolve(subs, rules)), Total: len(subs)}, nil
}
