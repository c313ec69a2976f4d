package pushclient

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) *WebPush {
	t.Helper()
	public, private, err := GenerateVAPIDKeys()
	require.NoError(t, err)
	c, err := New(Options{
		VAPIDPublicKey:  public,
		VAPIDPrivateKey: private,
		Subject:         "mailto:test@example.com",
		TTL:             60,
		Timeout:         5 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func handleFor(t *testing.T, endpoint string) string {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)
	raw, err := json.Marshal(map[string]any{
		"endpoint": endpoint,
		"keys": map[string]string{
			"p256dh": base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
			"auth":   base64.RawURLEncoding.EncodeToString(auth),
		},
	})
	require.NoError(t, err)
	return string(raw)
}

func TestDeliverClassifiesStatus(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		expired bool
		ok      bool
	}{
		{name: "created", status: http.StatusCreated, ok: true},
		{name: "gone", status: http.StatusGone, expired: true},
		{name: "not found", status: http.StatusNotFound, expired: true},
		{name: "server error", status: http.StatusInternalServerError},
		{name: "rate limited", status: http.StatusTooManyRequests},
	}
	c := newClient(t)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var gotTTL, gotEncoding string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotTTL = r.Header.Get("TTL")
				gotEncoding = r.Header.Get("Content-Encoding")
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			err := c.Deliver(context.Background(), handleFor(t, srv.URL+"/push/abc"), []byte(`{"title":"hi"}`))
			switch {
			case tc.ok:
				require.NoError(t, err)
			case tc.expired:
				assert.ErrorIs(t, err, ErrExpired)
			default:
				require.Error(t, err)
				assert.NotErrorIs(t, err, ErrExpired)
			}
			assert.Equal(t, "60", gotTTL)
			assert.Equal(t, "aes128gcm", gotEncoding)
		})
	}
}

func TestDeliverRejectsMalformedHandle(t *testing.T) {
	c := newClient(t)
	err := c.Deliver(context.Background(), "not-json", []byte("{}"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrExpired)

	err = c.Deliver(context.Background(), `{"keys":{}}`, []byte("{}"))
	require.Error(t, err)
}

func TestDeliverUnreachableEndpointIsTransient(t *testing.T) {
	c := newClient(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := c.Deliver(context.Background(), handleFor(t, url), []byte("{}"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrExpired)
}

func TestNewRequiresKeys(t *testing.T) {
	_, err := New(Options{Subject: "mailto:x@example.com"})
	assert.Error(t, err)
	_, err = New(Options{VAPIDPublicKey: "a", VAPIDPrivateKey: "b"})
	assert.Error(t, err)
}
