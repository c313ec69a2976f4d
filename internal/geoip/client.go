// Package geoip resolves client IP addresses to coarse locations through an
// ip-api.com compatible HTTP service, with an optional Redis cache.
package geoip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSkipped is returned for addresses that are never looked up
// (empty, private, loopback).
var ErrSkipped = errors.New("geoip: address not routable")

// Location is the subset of lookup data stored on subscribers.
type Location struct {
	Country  string `json:"country"`
	City     string `json:"city"`
	Timezone string `json:"timezone"`
}

// Client queries the lookup service.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	cache    *redis.Client
	cacheTTL time.Duration
}

// New creates a lookup client. cache may be nil.
func New(rawURL string, timeout time.Duration, cache *redis.Client, cacheTTL time.Duration) (*Client, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme == "" {
		return nil, fmt.Errorf("base url must include scheme")
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	return &Client{
		baseURL:  parsed,
		http:     &http.Client{Timeout: timeout},
		cache:    cache,
		cacheTTL: cacheTTL,
	}, nil
}

type lookupResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Country  string `json:"country"`
	City     string `json:"city"`
	Timezone string `json:"timezone"`
}

// Lookup resolves ip, consulting the cache first when configured.
func (c *Client) Lookup(ctx context.Context, ip string) (*Location, error) {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil || parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() || parsed.IsLinkLocalUnicast() {
		return nil, ErrSkipped
	}
	key := "geo:" + parsed.String()
	if loc := c.cached(ctx, key); loc != nil {
		return loc, nil
	}

	u := *c.baseURL
	u.Path = path.Join(c.baseURL.Path, "/json/", parsed.String())
	u.RawQuery = url.Values{"fields": {"status,message,country,city,timezone"}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geoip http status %s", resp.Status)
	}
	var payload lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if payload.Status != "success" {
		return nil, fmt.Errorf("geoip lookup failed: %s", payload.Message)
	}
	loc := &Location{Country: payload.Country, City: payload.City, Timezone: payload.Timezone}
	c.store(ctx, key, loc)
	return loc, nil
}

func (c *Client) cached(ctx context.Context, key string) *Location {
	if c.cache == nil {
		return nil
	}
	raw, err := c.cache.Get(ctx, key).Bytes()
	if err != nil {
		return nil
	}
	var loc Location
	if err := json.Unmarshal(raw, &loc); err != nil {
		return nil
	}
	return &loc
}

func (c *Client) store(ctx context.Context, key string, loc *Location) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(loc)
	if err != nil {
		return
	}
	c.cache.Set(ctx, key, raw, c.cacheTTL)
}
