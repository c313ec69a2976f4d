package pushclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// ErrExpired reports that the push service no longer knows the subscription.
// Callers should forget the handle; every other error may be transient.
var ErrExpired = errors.New("push subscription expired")

// Transport delivers one payload to one subscription handle.
type Transport interface {
	Deliver(ctx context.Context, handle string, payload []byte) error
}

// Options configures the Web Push client.
type Options struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subject         string
	TTL             int
	Timeout         time.Duration
}

// WebPush is a Transport backed by the Web Push protocol (VAPID + RFC 8291).
type WebPush struct {
	opts Options
	http *http.Client
}

// New creates a Web Push client.
func New(opts Options) (*WebPush, error) {
	if opts.VAPIDPublicKey == "" || opts.VAPIDPrivateKey == "" {
		return nil, fmt.Errorf("vapid keys are required")
	}
	if opts.Subject == "" {
		return nil, fmt.Errorf("vapid subject is required")
	}
	return &WebPush{
		opts: opts,
		http: &http.Client{
			Timeout: opts.Timeout,
		},
	}, nil
}

// PublicKey returns the VAPID public key handed to browsers.
func (c *WebPush) PublicKey() string {
	return c.opts.VAPIDPublicKey
}

// Deliver decodes the browser PushSubscription JSON in handle and posts the
// encrypted payload to its endpoint. 404 and 410 map to ErrExpired.
func (c *WebPush) Deliver(ctx context.Context, handle string, payload []byte) error {
	sub, err := DecodeHandle(handle)
	if err != nil {
		return err
	}
	resp, err := webpush.SendNotificationWithContext(ctx, payload, sub, &webpush.Options{
		HTTPClient:      c.http,
		Subscriber:      c.opts.Subject,
		VAPIDPublicKey:  c.opts.VAPIDPublicKey,
		VAPIDPrivateKey: c.opts.VAPIDPrivateKey,
		TTL:             c.opts.TTL,
		Urgency:         webpush.UrgencyNormal,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrExpired
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("push http status %s: %s", resp.Status, strings.TrimSpace(string(body)))
}

// DecodeHandle parses a browser PushSubscription JSON document.
func DecodeHandle(handle string) (*webpush.Subscription, error) {
	var sub webpush.Subscription
	if err := json.Unmarshal([]byte(handle), &sub); err != nil {
		return nil, fmt.Errorf("decode subscription: %w", err)
	}
	if sub.Endpoint == "" {
		return nil, fmt.Errorf("decode subscription: endpoint is required")
	}
	return &sub, nil
}

// GenerateVAPIDKeys returns a fresh (public, private) key pair.
func GenerateVAPIDKeys() (string, string, error) {
	private, public, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", err
	}
	return public, private, nil
}
