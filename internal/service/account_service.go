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

// AccountService registers tenants and reports their summary.
type AccountService struct {
	store          storage.Store
	guard          *Guard
	vapidPublicKey string
	now            func() time.Time
}

// NewAccountService builds the account service.
func NewAccountService(store storage.Store, guard *Guard, vapidPublicKey string) *AccountService {
	return &AccountService{store: store, guard: guard, vapidPublicKey: vapidPublicKey, now: time.Now}
}

// RegisterRequest is the account sign-up payload.
type RegisterRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// Registration is returned once, on sign-up. It is the only time the
// master key is handed out.
type Registration struct {
	AccountID      string `json:"userId"`
	Email          string `json:"email"`
	APIKey         string `json:"apiKey"`
	VAPIDPublicKey string `json:"vapidPublicKey"`
}

// WebsiteSummary is a website row in account and website listings.
type WebsiteSummary struct {
	ID              string    `json:"id"`
	Domain          string    `json:"domain"`
	SiteKey         string    `json:"siteKey"`
	SubscriberCount int       `json:"subscriberCount"`
	CampaignCount   int       `json:"campaignCount"`
	CreatedAt       time.Time `json:"createdAt"`
}

// AccountInfo summarizes an account.
type AccountInfo struct {
	AccountID        string           `json:"userId"`
	Email            string           `json:"email"`
	CreatedAt        time.Time        `json:"createdAt"`
	Websites         []WebsiteSummary `json:"websites"`
	TotalWebsites    int              `json:"totalWebsites"`
	TotalSubscribers int              `json:"totalSubscribers"`
	TotalCampaigns   int              `json:"totalCampaigns"`
}

// Register creates an account for email and issues its master key.
func (s *AccountService) Register(ctx context.Context, email string) (*Registration, error) {
	req := RegisterRequest{Email: strings.ToLower(strings.TrimSpace(email))}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if _, err := s.store.AccountByEmail(ctx, req.Email); err == nil {
		return nil, newError(ErrConflict, "User already exists")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	key, err := crypto.NewMasterKey()
	if err != nil {
		return nil, err
	}
	account := &model.Account{
		ID:        uuid.NewString(),
		Email:     req.Email,
		APIKey:    key,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, newError(ErrConflict, "User already exists")
		}
		return nil, err
	}
	return &Registration{
		AccountID:      account.ID,
		Email:          account.Email,
		APIKey:         account.APIKey,
		VAPIDPublicKey: s.vapidPublicKey,
	}, nil
}

// Info returns the caller's account summary.
func (s *AccountService) Info(ctx context.Context, credential string) (*AccountInfo, error) {
	account, err := s.guard.Account(ctx, credential)
	if err != nil {
		return nil, err
	}
	websites, err := summarizeWebsites(ctx, s.store, account.ID)
	if err != nil {
		return nil, err
	}
	info := &AccountInfo{
		AccountID:     account.ID,
		Email:         account.Email,
		CreatedAt:     account.CreatedAt,
		Websites:      websites,
		TotalWebsites: len(websites),
	}
	for _, w := range websites {
		info.TotalSubscribers += w.SubscriberCount
		info.TotalCampaigns += w.CampaignCount
	}
	return info, nil
}

func summarizeWebsites(ctx context.Context, store storage.Store, accountID string) ([]WebsiteSummary, error) {
	websites, err := store.ListWebsites(ctx, accountID)
	if err != nil {
		return nil, err
	}
	out := make([]WebsiteSummary, 0, len(websites))
	for _, w := range websites {
		subs, err := store.ListSubscribers(ctx, w.ID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		campaigns, err := store.ListCampaigns(ctx, w.ID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		out = append(out, WebsiteSummary{
			ID:              w.ID,
			Domain:          w.Domain,
			SiteKey:         w.SiteKey,
			SubscriberCount: len(subs),
			CampaignCount:   len(campaigns),
			CreatedAt:       w.CreatedAt,
		})
	}
	return out, nil
}
