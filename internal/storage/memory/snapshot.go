package memory

import (
	"context"
	"sort"

	"github.com/chirpy-labs/chirpy-push/internal/model"
)

// Snapshot copies the whole store.
func (s *Store) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := &model.Snapshot{}
	for _, a := range s.accounts {
		snap.Accounts = append(snap.Accounts, cloneAccount(a))
	}
	for _, w := range s.websites {
		snap.Websites = append(snap.Websites, cloneWebsite(w))
	}
	for _, sub := range s.subscribers {
		snap.Subscribers = append(snap.Subscribers, cloneSubscriber(sub))
	}
	for _, seg := range s.segments {
		snap.Segments = append(snap.Segments, cloneSegment(seg))
	}
	for _, c := range s.campaigns {
		snap.Campaigns = append(snap.Campaigns, cloneCampaign(c))
	}
	for _, records := range s.deliveries {
		for _, r := range records {
			copied := *r
			snap.Deliveries = append(snap.Deliveries, &copied)
		}
	}
	for _, records := range s.clicks {
		for _, r := range records {
			copied := *r
			snap.Clicks = append(snap.Clicks, &copied)
		}
	}
	sort.Slice(snap.Accounts, func(i, j int) bool { return snap.Accounts[i].ID < snap.Accounts[j].ID })
	sort.Slice(snap.Websites, func(i, j int) bool { return snap.Websites[i].ID < snap.Websites[j].ID })
	sort.Slice(snap.Subscribers, func(i, j int) bool { return snap.Subscribers[i].ID < snap.Subscribers[j].ID })
	sort.Slice(snap.Segments, func(i, j int) bool { return snap.Segments[i].ID < snap.Segments[j].ID })
	sort.Slice(snap.Campaigns, func(i, j int) bool { return snap.Campaigns[i].ID < snap.Campaigns[j].ID })
	sort.SliceStable(snap.Deliveries, func(i, j int) bool {
		return snap.Deliveries[i].DeliveredAt.Before(snap.Deliveries[j].DeliveredAt)
	})
	sort.SliceStable(snap.Clicks, func(i, j int) bool {
		return snap.Clicks[i].ClickedAt.Before(snap.Clicks[j].ClickedAt)
	})
	return snap, nil
}

// Restore replaces the store contents with a snapshot. Records whose owner is
// missing from the snapshot are dropped.
func (s *Store) Restore(ctx context.Context, snap *model.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	if snap == nil {
		return nil
	}
	for _, a := range snap.Accounts {
		if err := s.insertAccount(a); err != nil {
			return err
		}
	}
	for _, w := range snap.Websites {
		if _, ok := s.accounts[w.AccountID]; !ok {
			continue
		}
		if err := s.insertWebsite(w); err != nil {
			return err
		}
	}
	for _, sub := range snap.Subscribers {
		_ = s.insertSubscriber(sub)
	}
	for _, seg := range snap.Segments {
		_ = s.insertSegment(seg)
	}
	for _, c := range snap.Campaigns {
		_ = s.insertCampaign(c)
	}
	for _, r := range snap.Deliveries {
		if _, ok := s.campaigns[r.CampaignID]; ok {
			copied := *r
			s.deliveries[r.CampaignID] = append(s.deliveries[r.CampaignID], &copied)
		}
	}
	for _, r := range snap.Clicks {
		if _, ok := s.campaigns[r.CampaignID]; ok {
			copied := *r
			s.clicks[r.CampaignID] = append(s.clicks[r.CampaignID], &copied)
		}
	}
	return nil
}

func cloneAccount(a *model.Account) *model.Account {
	copied := *a
	return &copied
}

func cloneWebsite(w *model.Website) *model.Website {
	copied := *w
	return &copied
}

func cloneSubscriber(sub *model.Subscriber) *model.Subscriber {
	copied := *sub
	if sub.Metadata.Attributes != nil {
		copied.Metadata.Attributes = make(map[string]string, len(sub.Metadata.Attributes))
		for k, v := range sub.Metadata.Attributes {
			copied.Metadata.Attributes[k] = v
		}
	}
	return &copied
}

func cloneSegment(seg *model.Segment) *model.Segment {
	copied := *seg
	copied.Rules = append([]model.Rule(nil), seg.Rules...)
	return &copied
}

func cloneCampaign(c *model.Campaign) *model.Campaign {
	copied := *c
	copied.Content.Actions = append([]model.Action(nil), c.Content.Actions...)
	if c.ScheduledAt != nil {
		t := *c.ScheduledAt
		copied.ScheduledAt = &t
	}
	if c.SentAt != nil {
		t := *c.SentAt
		copied.SentAt = &t
	}
	return &copied
}
