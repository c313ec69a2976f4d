package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chirpy-labs/chirpy-push/internal/config"
	"github.com/chirpy-labs/chirpy-push/internal/metrics"
	"github.com/chirpy-labs/chirpy-push/internal/model"
	"github.com/chirpy-labs/chirpy-push/internal/storage/memory"
)

// fakeTransport answers Deliver from a per-handle outcome table. Handles
// not in the table succeed.
type fakeTransport struct {
	mu       sync.Mutex
	outcomes map[string]error
	delay    time.Duration
	payloads map[string]model.PushPayload
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{outcomes: map[string]error{}, payloads: map[string]model.PushPayload{}}
}

func (f *fakeTransport) set(handle string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[handle] = err
}

func (f *fakeTransport) Deliver(ctx context.Context, handle string, payload []byte) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	var p model.PushPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads[handle] = p
	return f.outcomes[handle]
}

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

type fixture struct {
	ctx        context.Context
	store      *memory.Store
	transport  *fakeTransport
	metrics    *metrics.Metrics
	auth       *AuthService
	guard      *Guard
	accounts   *AccountService
	websites   *WebsiteService
	subs       *SubscriberService
	segments   *SegmentService
	campaigns  *CampaignService
	dispatcher *Dispatcher
	clicks     *ClickService
	analytics  *AnalyticsService
	admin      *AdminService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Default()
	store := memory.New()
	transport := newFakeTransport()
	m := metrics.New()
	auth := NewAuthService(cfg, store)
	guard := NewGuard(store, auth)
	dispatcher, err := NewDispatcher(store, guard, transport, DispatcherOptions{Workers: 4, AttemptTimeout: time.Second}, m, nil)
	require.NoError(t, err)
	return &fixture{
		ctx:        context.Background(),
		store:      store,
		transport:  transport,
		metrics:    m,
		auth:       auth,
		guard:      guard,
		accounts:   NewAccountService(store, guard, "vapid-public"),
		websites:   NewWebsiteService(store, guard),
		subs:       NewSubscriberService(store, guard, nil, time.Second, m, nil),
		segments:   NewSegmentService(store, guard),
		campaigns:  NewCampaignService(store, guard),
		dispatcher: dispatcher,
		clicks:     NewClickService(store, m),
		analytics:  NewAnalyticsService(store, guard),
		admin:      NewAdminService(store),
	}
}

func (f *fixture) register(t *testing.T, email string) string {
	t.Helper()
	reg, err := f.accounts.Register(f.ctx, email)
	require.NoError(t, err)
	return reg.APIKey
}

func (f *fixture) addSite(t *testing.T, key, domain string) *model.Website {
	t.Helper()
	w, err := f.websites.Add(f.ctx, key, domain)
	require.NoError(t, err)
	return w
}

func (f *fixture) subscribe(t *testing.T, site *model.Website, handle, platform string) *model.Subscriber {
	t.Helper()
	sub, err := f.subs.Register(f.ctx, site.SiteKey, SubscribeRequest{
		Handle:   handle,
		Metadata: model.Metadata{Platform: platform},
	})
	require.NoError(t, err)
	return sub
}

func (f *fixture) campaign(t *testing.T, key string, site *model.Website, segmentID string) *model.Campaign {
	t.Helper()
	c, err := f.campaigns.Create(f.ctx, key, CreateCampaignRequest{
		WebsiteID: site.ID,
		Title:     "Sale",
		Body:      "Everything must go",
		SegmentID: segmentID,
	})
	require.NoError(t, err)
	return c
}

func (f *fixture) websiteSubscribers(t *testing.T, websiteID string) int {
	t.Helper()
	subs, err := f.store.ListSubscribers(f.ctx, websiteID)
	require.NoError(t, err)
	return len(subs)
}
