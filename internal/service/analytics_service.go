package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/chirpy-labs/chirpy-push/internal/model"
	"github.com/chirpy-labs/chirpy-push/internal/storage"
)

const (
	dayLayout     = "2006-01-02"
	growthDays    = 7
	maxGrowthDays = 366
	topLocations  = 10
)

// AnalyticsService aggregates the caller's data on demand. Nothing is
// precomputed; every call reads current store state.
type AnalyticsService struct {
	store storage.Store
	guard *Guard
	now   func() time.Time
}

// NewAnalyticsService builds the analytics service.
func NewAnalyticsService(store storage.Store, guard *Guard) *AnalyticsService {
	return &AnalyticsService{store: store, guard: guard, now: time.Now}
}

type ownedData struct {
	websites    []*model.Website
	subscribers map[string][]*model.Subscriber
	campaigns   []*model.Campaign
}

func (d *ownedData) allSubscribers() []*model.Subscriber {
	var out []*model.Subscriber
	for _, w := range d.websites {
		out = append(out, d.subscribers[w.ID]...)
	}
	return out
}

func (s *AnalyticsService) load(ctx context.Context, credential string) (*ownedData, error) {
	account, err := s.guard.Account(ctx, credential)
	if err != nil {
		return nil, err
	}
	return s.collect(ctx, account)
}

func (s *AnalyticsService) collect(ctx context.Context, account *model.Account) (*ownedData, error) {
	websites, err := s.store.ListWebsites(ctx, account.ID)
	if err != nil {
		return nil, fromStore(err, "account")
	}
	data := &ownedData{websites: websites, subscribers: make(map[string][]*model.Subscriber, len(websites))}
	for _, w := range websites {
		subs, err := s.store.ListSubscribers(ctx, w.ID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		data.subscribers[w.ID] = subs
		campaigns, err := s.store.ListCampaigns(ctx, w.ID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		data.campaigns = append(data.campaigns, campaigns...)
	}
	return data, nil
}

// Overview sums campaign counters across everything the caller owns.
func (s *AnalyticsService) Overview(ctx context.Context, credential string) (*model.Overview, error) {
	data, err := s.load(ctx, credential)
	if err != nil {
		return nil, err
	}
	out := &model.Overview{
		TotalCampaigns:   len(data.campaigns),
		TotalWebsites:    len(data.websites),
		TotalSubscribers: len(data.allSubscribers()),
	}
	for _, c := range data.campaigns {
		out.TotalSent += c.Stats.Sent
		out.TotalDelivered += c.Stats.Delivered
		out.TotalClicked += c.Stats.Clicked
		out.TotalFailed += c.Stats.Failed
	}
	out.AvgCTR = percent(out.TotalClicked, out.TotalDelivered, 0)
	out.DeliveryRate = percent(out.TotalDelivered, out.TotalSent, 100)
	return out, nil
}

// Growth counts new subscribers per calendar day over [from, to], both
// inclusive. Nil bounds default to the trailing seven days ending today.
// Every day in the range appears, zero-filled, in chronological order.
func (s *AnalyticsService) Growth(ctx context.Context, credential string, from, to *time.Time) ([]model.DayCount, error) {
	account, err := s.guard.Account(ctx, credential)
	if err != nil {
		return nil, err
	}
	today := startOfDay(s.now().UTC())
	end := today
	if to != nil {
		end = startOfDay(to.UTC())
	}
	start := end.AddDate(0, 0, -(growthDays - 1))
	if from != nil {
		start = startOfDay(from.UTC())
	}
	if end.Before(start) {
		return nil, newError(ErrValidation, "from must not be after to")
	}
	days := int(end.Sub(start).Hours()/24) + 1
	if days > maxGrowthDays {
		return nil, newError(ErrValidation, "range must not exceed %d days", maxGrowthDays)
	}

	data, err := s.collect(ctx, account)
	if err != nil {
		return nil, err
	}
	counter := make(map[string]int)
	for _, sub := range data.allSubscribers() {
		counter[sub.CreatedAt.Format(dayLayout)]++
	}
	out := make([]model.DayCount, 0, days)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		key := day.Format(dayLayout)
		out = append(out, model.DayCount{Date: key, Count: counter[key]})
	}
	return out, nil
}

// Breakdown groups the caller's subscribers by platform, browser, country
// and city, and reports per-website totals with the last seven days' growth.
func (s *AnalyticsService) Breakdown(ctx context.Context, credential string) (*model.Breakdown, error) {
	data, err := s.load(ctx, credential)
	if err != nil {
		return nil, err
	}
	subs := data.allSubscribers()
	out := &model.Breakdown{
		Total:     len(subs),
		Platforms: groupBy(subs, "platform", 0),
		Browsers:  groupBy(subs, "browser", 0),
		Countries: groupBy(subs, "country", topLocations),
		Cities:    groupBy(subs, "city", topLocations),
		Websites:  make([]model.WebsiteGrowth, 0, len(data.websites)),
	}
	recent := startOfDay(s.now().UTC()).AddDate(0, 0, -(growthDays - 1))
	for _, w := range data.websites {
		row := model.WebsiteGrowth{WebsiteID: w.ID, Domain: w.Domain, Total: len(data.subscribers[w.ID])}
		for _, sub := range data.subscribers[w.ID] {
			if !sub.CreatedAt.Before(recent) {
				row.Last7Days++
			}
		}
		out.Websites = append(out.Websites, row)
	}
	return out, nil
}

// CampaignReport summarizes one campaign's delivery and engagement.
func (s *AnalyticsService) CampaignReport(ctx context.Context, credential, campaignID string) (*model.CampaignReport, error) {
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
	counter := make(map[string]int)
	for _, c := range clicks {
		counter[c.ClickedAt.Format(dayLayout)]++
	}
	byDay := make([]model.DayCount, 0, len(counter))
	for day, n := range counter {
		byDay = append(byDay, model.DayCount{Date: day, Count: n})
	}
	sort.Slice(byDay, func(i, j int) bool { return byDay[i].Date < byDay[j].Date })

	return &model.CampaignReport{
		CampaignID:   campaign.ID,
		Status:       campaign.Status,
		Stats:        campaign.Stats,
		CTR:          percent(campaign.Stats.Clicked, campaign.Stats.Delivered, 0),
		DeliveryRate: percent(campaign.Stats.Delivered, campaign.Stats.Sent, 100),
		Deliveries:   len(deliveries),
		Clicks:       len(clicks),
		ClicksByDay:  byDay,
	}, nil
}

// groupBy counts subscribers per value of field, most common first with ties
// broken by name. limit <= 0 keeps every group.
func groupBy(subs []*model.Subscriber, field string, limit int) []model.GroupCount {
	counter := make(map[string]int)
	for _, sub := range subs {
		name := strings.TrimSpace(sub.Metadata.Field(field))
		if name == "" {
			name = model.Unknown
		}
		counter[name]++
	}
	out := make([]model.GroupCount, 0, len(counter))
	for name, n := range counter {
		out = append(out, model.GroupCount{
			Name:       name,
			Count:      n,
			Percentage: round2(percent(n, len(subs), 0)),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
