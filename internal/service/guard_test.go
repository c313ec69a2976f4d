package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chirpy-labs/chirpy-push/internal/model"
)

func TestGuardAccountCredentials(t *testing.T) {
	f := newFixture(t)
	key := f.register(t, "owner@example.com")

	_, err := f.guard.Account(f.ctx, "")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.guard.Account(f.ctx, "mk_nope")
	assert.ErrorIs(t, err, ErrUnauthorized)

	acc, err := f.guard.Account(f.ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", acc.Email)

	session, err := f.auth.Login(f.ctx, key)
	require.NoError(t, err)
	bySession, err := f.guard.Account(f.ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, bySession.ID)
}

func TestGuardSiteKeyIsNotAccountCredential(t *testing.T) {
	f := newFixture(t)
	key := f.register(t, "owner@example.com")
	site := f.addSite(t, key, "a.com")

	_, err := f.guard.Account(f.ctx, site.SiteKey)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.guard.Site(f.ctx, key)
	assert.ErrorIs(t, err, ErrUnauthorized)

	got, err := f.guard.Site(f.ctx, site.SiteKey)
	require.NoError(t, err)
	assert.Equal(t, site.ID, got.ID)
}

func TestGuardOwnership(t *testing.T) {
	f := newFixture(t)
	owner := f.register(t, "owner@example.com")
	other := f.register(t, "other@example.com")
	site := f.addSite(t, owner, "a.com")
	c := f.campaign(t, owner, site, "")

	_, _, err := f.guard.Website(f.ctx, other, site.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, _, err = f.guard.Website(f.ctx, owner, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = f.guard.Campaign(f.ctx, other, c.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, _, err = f.guard.Campaign(f.ctx, owner, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	// an unresolvable credential fails before the target is looked up
	_, _, err = f.guard.Campaign(f.ctx, "bogus", "missing")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCredentialCheckedBeforeInput(t *testing.T) {
	f := newFixture(t)
	f.register(t, "owner@example.com")
	badRules := []model.Rule{{Field: "nope", Operator: "startswith"}}
	from := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, -3)

	for _, credential := range []string{"", "mk_unknown"} {
		_, err := f.campaigns.Create(f.ctx, credential, CreateCampaignRequest{Body: "no title or website"})
		assert.ErrorIs(t, err, ErrUnauthorized, "campaign create with %q", credential)

		_, err = f.segments.Create(f.ctx, credential, CreateSegmentRequest{Rules: badRules})
		assert.ErrorIs(t, err, ErrUnauthorized, "segment create with %q", credential)

		_, err = f.segments.Preview(f.ctx, credential, "", badRules)
		assert.ErrorIs(t, err, ErrUnauthorized, "segment preview with %q", credential)

		_, err = f.analytics.Growth(f.ctx, credential, &from, &to)
		assert.ErrorIs(t, err, ErrUnauthorized, "growth with %q", credential)
	}
}
