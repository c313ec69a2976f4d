package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	f := newFixture(t)

	reg, err := f.accounts.Register(f.ctx, "  Owner@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", reg.Email)
	assert.NotEmpty(t, reg.AccountID)
	assert.Regexp(t, `^mk_[A-Za-z0-9]+$`, reg.APIKey)
	assert.Equal(t, "vapid-public", reg.VAPIDPublicKey)

	_, err = f.accounts.Register(f.ctx, "OWNER@example.com")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)

	for _, email := range []string{"", "   ", "not-an-email"} {
		_, err := f.accounts.Register(f.ctx, email)
		assert.ErrorIs(t, err, ErrValidation, email)
	}
}

func TestAccountInfo(t *testing.T) {
	f := newFixture(t)
	key := f.register(t, "owner@example.com")
	a := f.addSite(t, key, "a.com")
	f.addSite(t, key, "b.com")
	f.subscribe(t, a, "h1", "ios")
	f.subscribe(t, a, "h2", "android")
	f.campaign(t, key, a, "")

	info, err := f.accounts.Info(f.ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", info.Email)
	assert.Equal(t, 2, info.TotalWebsites)
	assert.Equal(t, 2, info.TotalSubscribers)
	assert.Equal(t, 1, info.TotalCampaigns)
	require.Len(t, info.Websites, 2)

	_, err = f.accounts.Info(f.ctx, "mk_unknown")
	assert.ErrorIs(t, err, ErrUnauthorized)
}
