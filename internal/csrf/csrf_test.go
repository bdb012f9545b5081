package csrf

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/convertlab/secgate/config"
	"github.com/convertlab/secgate/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuard(t *testing.T, singleUse bool, ttl time.Duration) *Guard {
	t.Helper()
	cfg := &config.SecurityConfig{
		CSRFTokenTTL:  ttl,
		CSRFSingleUse: singleUse,
	}
	return New(cfg, store.NewMemoryTokenStore())
}

func TestIssueAndValidate(t *testing.T) {
	ctx := context.Background()
	guard := newGuard(t, false, time.Minute)

	token, err := guard.Issue(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, token, 64, "32 random bytes hex encoded")

	assert.True(t, guard.Validate(ctx, "u1", token))
	assert.True(t, guard.Validate(ctx, "u1", token), "reusable until expiry outside single-use mode")
}

func TestValidateSingleUse(t *testing.T) {
	ctx := context.Background()
	guard := newGuard(t, true, time.Minute)

	token, err := guard.Issue(ctx, "u1")
	require.NoError(t, err)

	assert.True(t, guard.Validate(ctx, "u1", token))
	assert.False(t, guard.Validate(ctx, "u1", token), "consumed token must not validate again")
}

func TestValidateSubjectMismatch(t *testing.T) {
	ctx := context.Background()
	guard := newGuard(t, false, time.Minute)

	token, err := guard.Issue(ctx, "u1")
	require.NoError(t, err)

	assert.False(t, guard.Validate(ctx, "u2", token), "token is bound to the issuing subject")
}

func TestValidateRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	guard := newGuard(t, false, time.Minute)

	_, err := guard.Issue(ctx, "u1")
	require.NoError(t, err)

	assert.False(t, guard.Validate(ctx, "u1", ""))
	assert.False(t, guard.Validate(ctx, "u1", "deadbeef"))
}

func TestValidateExpiredToken(t *testing.T) {
	ctx := context.Background()
	guard := newGuard(t, false, 10*time.Millisecond)

	token, err := guard.Issue(ctx, "u1")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	assert.False(t, guard.Validate(ctx, "u1", token))
}

type failingTokenStore struct {
	store.TokenStore
	err error
}

func (s failingTokenStore) Get(ctx context.Context, key string) (string, error) {
	return "", s.err
}

func (s failingTokenStore) DeleteIfEquals(ctx context.Context, key string, value string) (bool, error) {
	return false, s.err
}

func TestValidateStoreOutageFailOpen(t *testing.T) {
	ctx := context.Background()
	cfg := &config.SecurityConfig{Level: config.LevelLow, CSRFTokenTTL: time.Minute}
	guard := New(cfg, failingTokenStore{err: errors.New("connection refused")})

	assert.True(t, guard.Validate(ctx, "u1", "deadbeef"), "LOW level fails open on store outage")
}

func TestValidateStoreOutageFailClosed(t *testing.T) {
	ctx := context.Background()
	cfg := &config.SecurityConfig{Level: config.LevelHigh, CSRFTokenTTL: time.Minute}
	guard := New(cfg, failingTokenStore{err: errors.New("connection refused")})

	assert.False(t, guard.Validate(ctx, "u1", "deadbeef"), "HIGH level fails closed on store outage")
}

func TestValidateConsumeOutageFailClosed(t *testing.T) {
	ctx := context.Background()
	cfg := &config.SecurityConfig{Level: config.LevelHigh, CSRFTokenTTL: time.Minute, CSRFSingleUse: true}
	backing := store.NewMemoryTokenStore()
	guard := New(cfg, &flakyTokenStore{TokenStore: backing})

	token, err := guard.Issue(ctx, "u1")
	require.NoError(t, err)

	assert.False(t, guard.Validate(ctx, "u1", token), "failed consumption denies under fail-closed")
}

// flakyTokenStore reads fine but cannot consume tokens.
type flakyTokenStore struct {
	store.TokenStore
}

func (s *flakyTokenStore) DeleteIfEquals(ctx context.Context, key string, value string) (bool, error) {
	return false, errors.New("connection reset")
}

func TestIssueReplacesPreviousToken(t *testing.T) {
	ctx := context.Background()
	guard := newGuard(t, false, time.Minute)

	first, err := guard.Issue(ctx, "u1")
	require.NoError(t, err)
	second, err := guard.Issue(ctx, "u1")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.False(t, guard.Validate(ctx, "u1", first))
	assert.True(t, guard.Validate(ctx, "u1", second))
}
