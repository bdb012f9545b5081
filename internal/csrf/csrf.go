package csrf

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"log/slog"

	"github.com/convertlab/secgate/config"
	"github.com/convertlab/secgate/internal/store"
)

const tokenLength = 32

// Guard issues and validates per-subject anti-forgery tokens backed by the
// token store. In single-use mode a token is consumed atomically on its first
// successful validation and never validates again.
type Guard struct {
	cfg    *config.SecurityConfig
	tokens store.TokenStore
}

func New(cfg *config.SecurityConfig, tokens store.TokenStore) *Guard {
	return &Guard{
		cfg:    cfg,
		tokens: tokens,
	}
}

// Issue generates a fresh random token bound to the subject, replacing any
// previously issued one.
func (g *Guard) Issue(ctx context.Context, subject string) (string, error) {
	b := make([]byte, tokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)
	if err := g.tokens.Set(ctx, subjectKey(subject), token, g.cfg.CSRFTokenTTL); err != nil {
		return "", err
	}
	return token, nil
}

// Validate reports whether the token matches the one stored for the subject.
// The comparison is constant-time; absence, expiry and mismatch are all false.
// A token store outage resolves via the fail-open/fail-closed policy.
func (g *Guard) Validate(ctx context.Context, subject string, token string) bool {
	if token == "" {
		return false
	}
	stored, err := g.tokens.Get(ctx, subjectKey(subject))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false
		}
		return g.storeUnavailable(subject, err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(token)) != 1 {
		return false
	}
	if g.cfg.CSRFSingleUse {
		consumed, err := g.tokens.DeleteIfEquals(ctx, subjectKey(subject), token)
		if err != nil {
			return g.storeUnavailable(subject, err)
		}
		return consumed
	}
	return true
}

// storeUnavailable resolves token store outages: deny under fail-closed,
// accept with a warning otherwise.
func (g *Guard) storeUnavailable(subject string, err error) bool {
	if g.cfg.FailClosed() {
		slog.Error("CSRF token store unavailable, denying request", "subject", subject, "error", err)
		return false
	}
	slog.Warn("CSRF token store unavailable, skipping CSRF check", "subject", subject, "error", err)
	return true
}

func subjectKey(subject string) string {
	return "csrf:" + subject
}
