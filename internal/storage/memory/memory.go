package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chirpy-labs/chirpy-push/internal/model"
	"github.com/chirpy-labs/chirpy-push/internal/storage"
)

var _ storage.Store = (*Store)(nil)

type set map[string]struct{}

// Store keeps every entity in process memory. A single RWMutex guards all
// tables so child-set and record changes are observed together.
type Store struct {
	mu sync.RWMutex

	accounts    map[string]*model.Account
	websites    map[string]*model.Website
	subscribers map[string]*model.Subscriber
	segments    map[string]*model.Segment
	campaigns   map[string]*model.Campaign
	deliveries  map[string][]*model.DeliveryRecord
	clicks      map[string][]*model.ClickRecord

	accountByEmail map[string]string
	accountByKey   map[string]string
	websiteByKey   map[string]string
	// account id -> normalized domain -> website id
	domains map[string]map[string]string

	accountWebsites    map[string]set
	websiteSubscribers map[string]set
	websiteSegments    map[string]set
	websiteCampaigns   map[string]set
}

// New returns an empty store.
func New() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.accounts = make(map[string]*model.Account)
	s.websites = make(map[string]*model.Website)
	s.subscribers = make(map[string]*model.Subscriber)
	s.segments = make(map[string]*model.Segment)
	s.campaigns = make(map[string]*model.Campaign)
	s.deliveries = make(map[string][]*model.DeliveryRecord)
	s.clicks = make(map[string][]*model.ClickRecord)
	s.accountByEmail = make(map[string]string)
	s.accountByKey = make(map[string]string)
	s.websiteByKey = make(map[string]string)
	s.domains = make(map[string]map[string]string)
	s.accountWebsites = make(map[string]set)
	s.websiteSubscribers = make(map[string]set)
	s.websiteSegments = make(map[string]set)
	s.websiteCampaigns = make(map[string]set)
}

// CreateAccount inserts an account; email and API key must be unused.
func (s *Store) CreateAccount(ctx context.Context, account *model.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertAccount(account)
}

func (s *Store) insertAccount(account *model.Account) error {
	email := strings.ToLower(account.Email)
	if _, ok := s.accountByEmail[email]; ok {
		return storage.ErrConflict
	}
	if _, ok := s.accountByKey[account.APIKey]; ok {
		return storage.ErrConflict
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	s.accounts[account.ID] = cloneAccount(account)
	s.accountByEmail[email] = account.ID
	s.accountByKey[account.APIKey] = account.ID
	s.accountWebsites[account.ID] = make(set)
	s.domains[account.ID] = make(map[string]string)
	return nil
}

// GetAccount fetches an account by id.
func (s *Store) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneAccount(a), nil
}

// AccountByEmail fetches an account by its case-insensitive email.
func (s *Store) AccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.accountByEmail[strings.ToLower(email)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneAccount(s.accounts[id]), nil
}

// AccountByKey resolves a master API key.
func (s *Store) AccountByKey(ctx context.Context, apiKey string) (*model.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.accountByKey[apiKey]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneAccount(s.accounts[id]), nil
}

// CreateWebsite inserts a website under its account. The domain must already
// be normalized; duplicates within one account are rejected.
func (s *Store) CreateWebsite(ctx context.Context, website *model.Website) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertWebsite(website)
}

func (s *Store) insertWebsite(website *model.Website) error {
	if _, ok := s.accounts[website.AccountID]; !ok {
		return storage.ErrNotFound
	}
	if _, ok := s.domains[website.AccountID][website.Domain]; ok {
		return storage.ErrConflict
	}
	if _, ok := s.websiteByKey[website.SiteKey]; ok {
		return storage.ErrConflict
	}
	if website.CreatedAt.IsZero() {
		website.CreatedAt = time.Now().UTC()
	}
	s.websites[website.ID] = cloneWebsite(website)
	s.websiteByKey[website.SiteKey] = website.ID
	s.domains[website.AccountID][website.Domain] = website.ID
	s.accountWebsites[website.AccountID][website.ID] = struct{}{}
	s.websiteSubscribers[website.ID] = make(set)
	s.websiteSegments[website.ID] = make(set)
	s.websiteCampaigns[website.ID] = make(set)
	return nil
}

// GetWebsite fetches a website by id.
func (s *Store) GetWebsite(ctx context.Context, id string) (*model.Website, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.websites[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneWebsite(w), nil
}

// WebsiteByKey resolves a site credential.
func (s *Store) WebsiteByKey(ctx context.Context, siteKey string) (*model.Website, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.websiteByKey[siteKey]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneWebsite(s.websites[id]), nil
}

// ListWebsites returns an account's websites, oldest first.
func (s *Store) ListWebsites(ctx context.Context, accountID string) ([]*model.Website, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids, ok := s.accountWebsites[accountID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := make([]*model.Website, 0, len(ids))
	for id := range ids {
		out = append(out, cloneWebsite(s.websites[id]))
	}
	sort.Slice(out, func(i, j int) bool {
		return before(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID)
	})
	return out, nil
}

// DeleteWebsite removes a website and everything it owns.
func (s *Store) DeleteWebsite(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.websites[id]
	if !ok {
		return storage.ErrNotFound
	}
	for subID := range s.websiteSubscribers[id] {
		delete(s.subscribers, subID)
	}
	for segID := range s.websiteSegments[id] {
		delete(s.segments, segID)
	}
	for campID := range s.websiteCampaigns[id] {
		delete(s.campaigns, campID)
		delete(s.deliveries, campID)
		delete(s.clicks, campID)
	}
	delete(s.websiteSubscribers, id)
	delete(s.websiteSegments, id)
	delete(s.websiteCampaigns, id)
	delete(s.websiteByKey, w.SiteKey)
	delete(s.domains[w.AccountID], w.Domain)
	delete(s.accountWebsites[w.AccountID], id)
	delete(s.websites, id)
	return nil
}

// CreateSubscriber inserts a subscriber under its website.
func (s *Store) CreateSubscriber(ctx context.Context, sub *model.Subscriber) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertSubscriber(sub)
}

func (s *Store) insertSubscriber(sub *model.Subscriber) error {
	children, ok := s.websiteSubscribers[sub.WebsiteID]
	if !ok {
		return storage.ErrNotFound
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	s.subscribers[sub.ID] = cloneSubscriber(sub)
	children[sub.ID] = struct{}{}
	return nil
}

// GetSubscriber fetches a subscriber by id.
func (s *Store) GetSubscriber(ctx context.Context, id string) (*model.Subscriber, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subscribers[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneSubscriber(sub), nil
}

// ListSubscribers returns a website's current subscribers, oldest first.
func (s *Store) ListSubscribers(ctx context.Context, websiteID string) ([]*model.Subscriber, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids, ok := s.websiteSubscribers[websiteID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := make([]*model.Subscriber, 0, len(ids))
	for id := range ids {
		out = append(out, cloneSubscriber(s.subscribers[id]))
	}
	sort.Slice(out, func(i, j int) bool {
		return before(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID)
	})
	return out, nil
}

// RemoveSubscriber deletes a subscriber from the global table and from its
// website's child set.
func (s *Store) RemoveSubscriber(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscribers[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.websiteSubscribers[sub.WebsiteID], id)
	delete(s.subscribers, id)
	return nil
}

// CreateSegment inserts a segment under its website.
func (s *Store) CreateSegment(ctx context.Context, segment *model.Segment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertSegment(segment)
}

func (s *Store) insertSegment(segment *model.Segment) error {
	children, ok := s.websiteSegments[segment.WebsiteID]
	if !ok {
		return storage.ErrNotFound
	}
	if segment.CreatedAt.IsZero() {
		segment.CreatedAt = time.Now().UTC()
	}
	s.segments[segment.ID] = cloneSegment(segment)
	children[segment.ID] = struct{}{}
	return nil
}

// GetSegment fetches a segment by id.
func (s *Store) GetSegment(ctx context.Context, id string) (*model.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	seg, ok := s.segments[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneSegment(seg), nil
}

// ListSegments returns a website's segments, oldest first.
func (s *Store) ListSegments(ctx context.Context, websiteID string) ([]*model.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids, ok := s.websiteSegments[websiteID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := make([]*model.Segment, 0, len(ids))
	for id := range ids {
		out = append(out, cloneSegment(s.segments[id]))
	}
	sort.Slice(out, func(i, j int) bool {
		return before(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID)
	})
	return out, nil
}

// DeleteSegment removes a segment. Campaigns keep their segment id and stats.
func (s *Store) DeleteSegment(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seg, ok := s.segments[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.websiteSegments[seg.WebsiteID], id)
	delete(s.segments, id)
	return nil
}

// CreateCampaign inserts a campaign under its website.
func (s *Store) CreateCampaign(ctx context.Context, campaign *model.Campaign) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertCampaign(campaign)
}

func (s *Store) insertCampaign(campaign *model.Campaign) error {
	children, ok := s.websiteCampaigns[campaign.WebsiteID]
	if !ok {
		return storage.ErrNotFound
	}
	if campaign.CreatedAt.IsZero() {
		campaign.CreatedAt = time.Now().UTC()
	}
	s.campaigns[campaign.ID] = cloneCampaign(campaign)
	children[campaign.ID] = struct{}{}
	return nil
}

// GetCampaign fetches a campaign by id.
func (s *Store) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneCampaign(c), nil
}

// ListCampaigns returns a website's campaigns, newest first.
func (s *Store) ListCampaigns(ctx context.Context, websiteID string) ([]*model.Campaign, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids, ok := s.websiteCampaigns[websiteID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := make([]*model.Campaign, 0, len(ids))
	for id := range ids {
		out = append(out, cloneCampaign(s.campaigns[id]))
	}
	sort.Slice(out, func(i, j int) bool {
		return before(out[j].CreatedAt, out[j].ID, out[i].CreatedAt, out[i].ID)
	})
	return out, nil
}

// DeleteCampaign removes a campaign together with its delivery and click records.
func (s *Store) DeleteCampaign(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.websiteCampaigns[c.WebsiteID], id)
	delete(s.campaigns, id)
	delete(s.deliveries, id)
	delete(s.clicks, id)
	return nil
}

// CompleteCampaign folds one send's counters into the campaign and marks it sent.
func (s *Store) CompleteCampaign(ctx context.Context, id string, stats model.Stats, sentAt time.Time) (*model.Campaign, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c.Stats.Add(stats)
	c.Status = model.CampaignStatusSent
	at := sentAt.UTC()
	c.SentAt = &at
	return cloneCampaign(c), nil
}

// AppendDelivery stores a delivery record for an existing campaign.
func (s *Store) AppendDelivery(ctx context.Context, record *model.DeliveryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.campaigns[record.CampaignID]; !ok {
		return storage.ErrNotFound
	}
	if record.DeliveredAt.IsZero() {
		record.DeliveredAt = time.Now().UTC()
	}
	copied := *record
	s.deliveries[record.CampaignID] = append(s.deliveries[record.CampaignID], &copied)
	return nil
}

// ListDeliveries returns a campaign's delivery records in insertion order.
func (s *Store) ListDeliveries(ctx context.Context, campaignID string) ([]*model.DeliveryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.campaigns[campaignID]; !ok {
		return nil, storage.ErrNotFound
	}
	records := s.deliveries[campaignID]
	out := make([]*model.DeliveryRecord, 0, len(records))
	for _, r := range records {
		copied := *r
		out = append(out, &copied)
	}
	return out, nil
}

// RecordClick stores a click and bumps the campaign's clicked counter in the
// same step.
func (s *Store) RecordClick(ctx context.Context, record *model.ClickRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[record.CampaignID]
	if !ok {
		return storage.ErrNotFound
	}
	if record.ClickedAt.IsZero() {
		record.ClickedAt = time.Now().UTC()
	}
	copied := *record
	s.clicks[record.CampaignID] = append(s.clicks[record.CampaignID], &copied)
	c.Stats.Clicked++
	return nil
}

// ListClicks returns a campaign's click records in insertion order.
func (s *Store) ListClicks(ctx context.Context, campaignID string) ([]*model.ClickRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.campaigns[campaignID]; !ok {
		return nil, storage.ErrNotFound
	}
	records := s.clicks[campaignID]
	out := make([]*model.ClickRecord, 0, len(records))
	for _, r := range records {
		copied := *r
		out = append(out, &copied)
	}
	return out, nil
}

// Stats counts every stored entity.
func (s *Store) Stats(ctx context.Context) (model.PlatformStats, error) {
	if err := ctx.Err(); err != nil {
		return model.PlatformStats{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := model.PlatformStats{
		Accounts:    len(s.accounts),
		Websites:    len(s.websites),
		Subscribers: len(s.subscribers),
		Segments:    len(s.segments),
		Campaigns:   len(s.campaigns),
	}
	for _, d := range s.deliveries {
		st.Deliveries += len(d)
	}
	for _, c := range s.clicks {
		st.Clicks += len(c)
	}
	return st, nil
}

func before(ta time.Time, ida string, tb time.Time, idb string) bool {
	if !ta.Equal(tb) {
		return ta.Before(tb)
	}
	return ida < idb
}
