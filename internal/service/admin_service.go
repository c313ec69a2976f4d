package service

import (
	"context"

	"github.com/chirpy-labs/chirpy-push/internal/model"
	"github.com/chirpy-labs/chirpy-push/internal/storage"
)

// AdminService serves operator-only views.
type AdminService struct {
	store storage.Store
}

// NewAdminService builds the admin service.
func NewAdminService(store storage.Store) *AdminService {
	return &AdminService{store: store}
}

// Summary returns platform-wide entity counts.
func (s *AdminService) Summary(ctx context.Context) (model.PlatformStats, error) {
	return s.store.Stats(ctx)
}
