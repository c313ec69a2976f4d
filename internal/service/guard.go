package service

import (
	"context"
	"errors"
	"strings"

	"github.com/chirpy-labs/chirpy-push/internal/model"
	"github.com/chirpy-labs/chirpy-push/internal/storage"
)

// Guard resolves credentials and checks that the caller's account owns the
// entity an operation targets. Every account-scoped operation goes through it.
type Guard struct {
	store storage.Store
	auth  *AuthService
}

// NewGuard builds a Guard. auth may be nil, in which case session tokens are
// not accepted.
func NewGuard(store storage.Store, auth *AuthService) *Guard {
	return &Guard{store: store, auth: auth}
}

// Account resolves a master API key or a session token to its account.
func (g *Guard) Account(ctx context.Context, credential string) (*model.Account, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, newError(ErrUnauthorized, "API key required")
	}
	account, err := g.store.AccountByKey(ctx, credential)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if g.auth != nil {
		if accountID, perr := g.auth.ParseSession(credential); perr == nil {
			account, err := g.store.GetAccount(ctx, accountID)
			if err == nil {
				return account, nil
			}
			if !errors.Is(err, storage.ErrNotFound) {
				return nil, err
			}
		}
	}
	return nil, newError(ErrUnauthorized, "Invalid API key")
}

// Website authorizes access to a website owned by the caller.
func (g *Guard) Website(ctx context.Context, credential, websiteID string) (*model.Account, *model.Website, error) {
	account, err := g.Account(ctx, credential)
	if err != nil {
		return nil, nil, err
	}
	website, err := g.ownedWebsite(ctx, account, websiteID)
	if err != nil {
		return nil, nil, err
	}
	return account, website, nil
}

// Campaign authorizes access to a campaign through its website.
func (g *Guard) Campaign(ctx context.Context, credential, campaignID string) (*model.Account, *model.Campaign, error) {
	account, err := g.Account(ctx, credential)
	if err != nil {
		return nil, nil, err
	}
	campaign, err := g.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, nil, fromStore(err, "campaign")
	}
	if _, err := g.ownedWebsite(ctx, account, campaign.WebsiteID); err != nil {
		return nil, nil, err
	}
	return account, campaign, nil
}

// Segment authorizes access to a segment through its website.
func (g *Guard) Segment(ctx context.Context, credential, segmentID string) (*model.Account, *model.Segment, error) {
	account, err := g.Account(ctx, credential)
	if err != nil {
		return nil, nil, err
	}
	segment, err := g.store.GetSegment(ctx, segmentID)
	if err != nil {
		return nil, nil, fromStore(err, "segment")
	}
	if _, err := g.ownedWebsite(ctx, account, segment.WebsiteID); err != nil {
		return nil, nil, err
	}
	return account, segment, nil
}

// Site resolves a website credential used by the subscription producer.
func (g *Guard) Site(ctx context.Context, siteKey string) (*model.Website, error) {
	siteKey = strings.TrimSpace(siteKey)
	if siteKey == "" {
		return nil, newError(ErrUnauthorized, "API key required")
	}
	website, err := g.store.WebsiteByKey(ctx, siteKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, newError(ErrUnauthorized, "Invalid API key")
		}
		return nil, err
	}
	return website, nil
}

func (g *Guard) ownedWebsite(ctx context.Context, account *model.Account, websiteID string) (*model.Website, error) {
	if strings.TrimSpace(websiteID) == "" {
		return nil, newError(ErrValidation, "websiteId is required")
	}
	website, err := g.store.GetWebsite(ctx, websiteID)
	if err != nil {
		return nil, fromStore(err, "website")
	}
	if website.AccountID != account.ID {
		return nil, newError(ErrForbidden, "access denied")
	}
	return website, nil
}
