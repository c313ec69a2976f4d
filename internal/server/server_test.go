package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chirpy-labs/chirpy-push/internal/config"
	"github.com/chirpy-labs/chirpy-push/internal/metrics"
	"github.com/chirpy-labs/chirpy-push/internal/pushclient"
	"github.com/chirpy-labs/chirpy-push/internal/service"
	"github.com/chirpy-labs/chirpy-push/internal/storage/memory"
)

type recordingTransport struct {
	mu      sync.Mutex
	handles []string
	expired map[string]bool
}

func (r *recordingTransport) Deliver(ctx context.Context, handle string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles = append(r.handles, handle)
	if r.expired[handle] {
		return pushclient.ErrExpired
	}
	return nil
}

func newTestServer(t *testing.T) (*Server, *recordingTransport) {
	t.Helper()
	cfg := config.Default()
	store := memory.New()
	m := metrics.New()
	transport := &recordingTransport{expired: map[string]bool{}}
	auth := service.NewAuthService(cfg, store)
	guard := service.NewGuard(store, auth)
	dispatcher, err := service.NewDispatcher(store, guard, transport, service.DispatcherOptions{
		Workers:        4,
		AttemptTimeout: time.Second,
	}, m, nil)
	require.NoError(t, err)
	svc := Services{
		Auth:           auth,
		Accounts:       service.NewAccountService(store, guard, "test-public-key"),
		Websites:       service.NewWebsiteService(store, guard),
		Subscribers:    service.NewSubscriberService(store, guard, nil, time.Second, m, nil),
		Segments:       service.NewSegmentService(store, guard),
		Campaigns:      service.NewCampaignService(store, guard),
		Dispatcher:     dispatcher,
		Clicks:         service.NewClickService(store, m),
		Analytics:      service.NewAnalyticsService(store, guard),
		Admin:          service.NewAdminService(store),
		VAPIDPublicKey: "test-public-key",
	}
	return New(cfg, svc, m, nil), transport
}

type call struct {
	method string
	path   string
	key    string
	bearer string
	body   any
}

func do(t *testing.T, s *Server, c call) (int, map[string]any) {
	t.Helper()
	var body io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.key != "" {
		req.Header.Set("X-API-Key", c.key)
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func register(t *testing.T, s *Server, email string) string {
	t.Helper()
	status, body := do(t, s, call{method: http.MethodPost, path: "/api/users/register", body: map[string]string{"email": email}})
	require.Equal(t, http.StatusCreated, status, body)
	return body["apiKey"].(string)
}

func addWebsite(t *testing.T, s *Server, key, domain string) (string, string) {
	t.Helper()
	status, body := do(t, s, call{method: http.MethodPost, path: "/api/websites/add", key: key, body: map[string]string{"domain": domain}})
	require.Equal(t, http.StatusCreated, status, body)
	w := body["website"].(map[string]any)
	return w["id"].(string), w["siteKey"].(string)
}

func subscribe(t *testing.T, s *Server, siteKey, endpoint, platform string) {
	t.Helper()
	status, body := do(t, s, call{method: http.MethodPost, path: "/api/subscribe", key: siteKey, body: map[string]any{
		"subscription": map[string]any{"endpoint": endpoint, "keys": map[string]string{"p256dh": "x", "auth": "y"}},
		"metadata":     map[string]string{"platform": platform},
	}})
	require.Equal(t, http.StatusCreated, status, body)
}

func TestCampaignLifecycle(t *testing.T) {
	s, transport := newTestServer(t)
	key := register(t, s, "owner@example.com")
	websiteID, siteKey := addWebsite(t, s, key, "https://shop.example.com/")

	subscribe(t, s, siteKey, "https://push.example/1", "ios")
	subscribe(t, s, siteKey, "https://push.example/2", "android")
	subscribe(t, s, siteKey, "https://push.example/3", "ios")

	status, body := do(t, s, call{method: http.MethodPost, path: "/api/segments/preview", key: key, body: map[string]any{
		"websiteId": websiteID,
		"rules":     []map[string]string{{"field": "platform", "operator": "is", "value": "ios"}},
	}})
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 2, body["matching"])

	status, body = do(t, s, call{method: http.MethodPost, path: "/api/campaigns/create", key: key, body: map[string]any{
		"websiteId": websiteID,
		"title":     "Hello",
		"body":      "World",
	}})
	require.Equal(t, http.StatusCreated, status, body)
	campaignID := body["campaignId"].(string)

	transport.expired[`{"endpoint":"https://push.example/2","keys":{"auth":"y","p256dh":"x"}}`] = true
	status, body = do(t, s, call{method: http.MethodPost, path: "/api/campaigns/" + campaignID + "/send", key: key})
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 2, body["delivered"])
	assert.EqualValues(t, 1, body["failed"])
	assert.EqualValues(t, 1, body["pruned"])
	assert.Len(t, transport.handles, 3)

	status, body = do(t, s, call{method: http.MethodGet, path: "/api/websites/" + websiteID + "/subscribers", key: key})
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 2, body["total"])

	status, _ = do(t, s, call{method: http.MethodPost, path: "/api/track/click", body: map[string]string{"campaignId": campaignID}})
	require.Equal(t, http.StatusOK, status)

	status, body = do(t, s, call{method: http.MethodGet, path: "/api/analytics/overview", key: key})
	require.Equal(t, http.StatusOK, status, body)
	ov := body["overview"].(map[string]any)
	assert.EqualValues(t, 2, ov["totalDelivered"])
	assert.EqualValues(t, 1, ov["totalClicked"])
	assert.EqualValues(t, 50, ov["avgCTR"])

	status, body = do(t, s, call{method: http.MethodGet, path: "/api/campaigns/all/list", key: key})
	require.Equal(t, http.StatusOK, status, body)
	rows := body["campaigns"].([]any)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 50, rows[0].(map[string]any)["ctr"])

	status, body = do(t, s, call{method: http.MethodGet, path: "/api/analytics/campaigns/" + campaignID, key: key})
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 2, body["report"].(map[string]any)["deliveries"])
}

func TestErrorStatuses(t *testing.T) {
	s, _ := newTestServer(t)
	owner := register(t, s, "owner@example.com")
	other := register(t, s, "other@example.com")
	websiteID, _ := addWebsite(t, s, owner, "a.com")

	cases := []struct {
		name   string
		call   call
		status int
	}{
		{"missing credential", call{method: http.MethodGet, path: "/api/websites"}, http.StatusUnauthorized},
		{"bad credential", call{method: http.MethodGet, path: "/api/websites", key: "mk_nope"}, http.StatusUnauthorized},
		{"foreign website", call{method: http.MethodDelete, path: "/api/websites/" + websiteID, key: other}, http.StatusForbidden},
		{"missing campaign", call{method: http.MethodPost, path: "/api/campaigns/nope/send", key: owner}, http.StatusNotFound},
		{"duplicate email", call{method: http.MethodPost, path: "/api/users/register", body: map[string]string{"email": "OWNER@example.com"}}, http.StatusConflict},
		{"duplicate domain", call{method: http.MethodPost, path: "/api/websites/add", key: owner, body: map[string]string{"domain": "http://A.com/"}}, http.StatusConflict},
		{"invalid email", call{method: http.MethodPost, path: "/api/users/register", body: map[string]string{"email": "nope"}}, http.StatusBadRequest},
		{"campaign without title", call{method: http.MethodPost, path: "/api/campaigns/create", key: owner, body: map[string]string{"websiteId": websiteID, "body": "b"}}, http.StatusBadRequest},
		{"click on missing campaign", call{method: http.MethodPost, path: "/api/track/click", body: map[string]string{"campaignId": "nope"}}, http.StatusNotFound},
		{"subscribe with master key", call{method: http.MethodPost, path: "/api/subscribe", key: owner, body: map[string]any{"subscription": "h"}}, http.StatusUnauthorized},
		{"bad growth date", call{method: http.MethodGet, path: "/api/analytics/growth?from=yesterday", key: owner}, http.StatusBadRequest},
		{"anonymous invalid campaign", call{method: http.MethodPost, path: "/api/campaigns/create", body: map[string]string{"body": "b"}}, http.StatusUnauthorized},
		{"anonymous invalid segment", call{method: http.MethodPost, path: "/api/segments/create", body: map[string]any{"rules": []map[string]string{{"field": "nope"}}}}, http.StatusUnauthorized},
		{"anonymous bad growth date", call{method: http.MethodGet, path: "/api/analytics/growth?from=yesterday"}, http.StatusUnauthorized},
		{"unknown key invalid campaign", call{method: http.MethodPost, path: "/api/campaigns/create", key: "mk_nope", body: map[string]string{"body": "b"}}, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := do(t, s, tc.call)
			assert.Equal(t, tc.status, status, body)
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestSessionLogin(t *testing.T) {
	s, _ := newTestServer(t)
	key := register(t, s, "owner@example.com")

	status, body := do(t, s, call{method: http.MethodPost, path: "/api/auth/login", body: map[string]string{"apiKey": key}})
	require.Equal(t, http.StatusOK, status, body)
	token := body["token"].(string)

	status, body = do(t, s, call{method: http.MethodGet, path: "/api/users/info", bearer: token})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "owner@example.com", body["user"].(map[string]any)["email"])
}

func TestGrowthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	key := register(t, s, "owner@example.com")

	status, body := do(t, s, call{method: http.MethodGet, path: "/api/analytics/growth?from=2024-03-01&to=2024-03-03", key: key})
	require.Equal(t, http.StatusOK, status, body)
	days := body["growth"].([]any)
	require.Len(t, days, 3)
	assert.Equal(t, "2024-03-01", days[0].(map[string]any)["date"])
}

func TestAdminEndpoints(t *testing.T) {
	s, _ := newTestServer(t)
	register(t, s, "owner@example.com")

	status, _ := do(t, s, call{method: http.MethodGet, path: "/admin/summary"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = do(t, s, call{method: http.MethodPost, path: "/admin/login", body: map[string]string{"username": "admin", "password": "bad"}})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := do(t, s, call{method: http.MethodPost, path: "/admin/login", body: map[string]string{"username": "admin", "password": "admin123"}})
	require.Equal(t, http.StatusOK, status, body)

	status, body = do(t, s, call{method: http.MethodGet, path: "/admin/summary", bearer: body["token"].(string)})
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 1, body["summary"].(map[string]any)["accounts"])
}

func TestHealthVAPIDAndMetrics(t *testing.T) {
	s, _ := newTestServer(t)

	status, body := do(t, s, call{method: http.MethodGet, path: "/health"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, body = do(t, s, call{method: http.MethodGet, path: "/api/vapid-public-key"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "test-public-key", body["publicKey"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "chirpy_push_http_requests_total")
}
