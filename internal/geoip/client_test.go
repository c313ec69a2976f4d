package geoip

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupServer(t *testing.T, hits *int32, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		assert.Equal(t, "/json/8.8.8.8", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("fields"), "country")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestLookupSuccess(t *testing.T) {
	var hits int32
	srv := lookupServer(t, &hits, `{"status":"success","country":"United States","city":"Mountain View","timezone":"America/Los_Angeles"}`)
	defer srv.Close()

	c, err := New(srv.URL+"/", time.Second, nil, 0)
	require.NoError(t, err)

	loc, err := c.Lookup(context.Background(), "8.8.8.8")
	require.NoError(t, err)
	assert.Equal(t, &Location{Country: "United States", City: "Mountain View", Timezone: "America/Los_Angeles"}, loc)
	assert.EqualValues(t, 1, hits)
}

func TestLookupFailureStatus(t *testing.T) {
	var hits int32
	srv := lookupServer(t, &hits, `{"status":"fail","message":"reserved range"}`)
	defer srv.Close()

	c, err := New(srv.URL, time.Second, nil, 0)
	require.NoError(t, err)
	_, err = c.Lookup(context.Background(), "8.8.8.8")
	assert.ErrorContains(t, err, "reserved range")
}

func TestLookupSkipsPrivateAddresses(t *testing.T) {
	c, err := New("http://127.0.0.1:1", time.Second, nil, 0)
	require.NoError(t, err)
	for _, ip := range []string{"", "garbage", "127.0.0.1", "10.1.2.3", "192.168.0.10", "::1"} {
		_, err := c.Lookup(context.Background(), ip)
		assert.ErrorIs(t, err, ErrSkipped, ip)
	}
}

func TestLookupUsesRedisCache(t *testing.T) {
	var hits int32
	srv := lookupServer(t, &hits, `{"status":"success","country":"Germany","city":"Berlin","timezone":"Europe/Berlin"}`)
	defer srv.Close()

	cache := setupTestRedis(t)
	c, err := New(srv.URL, time.Second, cache, time.Hour)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		loc, err := c.Lookup(context.Background(), "8.8.8.8")
		require.NoError(t, err)
		assert.Equal(t, "Berlin", loc.City)
	}
	assert.EqualValues(t, 1, hits)

	ttl := cache.TTL(context.Background(), "geo:8.8.8.8").Val()
	assert.Greater(t, ttl, time.Duration(0))
}

func TestNewValidatesURL(t *testing.T) {
	_, err := New("", time.Second, nil, 0)
	assert.Error(t, err)
	_, err = New("ip-api.com", time.Second, nil, 0)
	assert.Error(t, err)
}
