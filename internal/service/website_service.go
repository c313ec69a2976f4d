package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chirpy-labs/chirpy-push/internal/crypto"
	"github.com/chirpy-labs/chirpy-push/internal/model"
	"github.com/chirpy-labs/chirpy-push/internal/storage"
)

// WebsiteService manages the websites of an account.
type WebsiteService struct {
	store storage.Store
	guard *Guard
	now   func() time.Time
}

// NewWebsiteService builds the website service.
func NewWebsiteService(store storage.Store, guard *Guard) *WebsiteService {
	return &WebsiteService{store: store, guard: guard, now: time.Now}
}

// NormalizeDomain trims, lower-cases and strips the scheme and trailing
// slashes so equivalent inputs collide.
func NormalizeDomain(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	return strings.TrimRight(d, "/")
}

// Add registers a domain under the caller's account and issues its site key.
func (s *WebsiteService) Add(ctx context.Context, credential, domain string) (*model.Website, error) {
	account, err := s.guard.Account(ctx, credential)
	if err != nil {
		return nil, err
	}
	domain = NormalizeDomain(domain)
	if domain == "" {
		return nil, newError(ErrValidation, "domain is required")
	}
	key, err := crypto.NewSiteKey()
	if err != nil {
		return nil, err
	}
	website := &model.Website{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		Domain:    domain,
		SiteKey:   key,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateWebsite(ctx, website); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, newError(ErrConflict, "Website already registered")
		}
		return nil, fromStore(err, "account")
	}
	return website, nil
}

// List returns the caller's websites with subscriber and campaign counts.
func (s *WebsiteService) List(ctx context.Context, credential string) ([]WebsiteSummary, error) {
	account, err := s.guard.Account(ctx, credential)
	if err != nil {
		return nil, err
	}
	return summarizeWebsites(ctx, s.store, account.ID)
}

// Delete removes a website and everything scoped to it.
func (s *WebsiteService) Delete(ctx context.Context, credential, websiteID string) error {
	if _, _, err := s.guard.Website(ctx, credential, websiteID); err != nil {
		return err
	}
	return fromStore(s.store.DeleteWebsite(ctx, websiteID), "website")
}
