package contentscan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"github.com/convertlab/secgate/config"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/semaphore"
)

const threatScanUnavailable = "scan_unavailable"

// Verdict is the transient result of scanning one file's content.
type Verdict struct {
	Threats []string
}

func (v Verdict) Safe() bool {
	return len(v.Threats) == 0
}

// MalwareScanner is the external binary-scanning capability. With malware
// scanning enabled, a nil scanner counts as a scanner outage.
type MalwareScanner interface {
	Scan(ctx context.Context, content []byte) (Verdict, error)
}

// Scanner runs the configured pattern checks and, when enabled, delegates to
// the external scanner under a bounded timeout and concurrency cap. Verdicts
// for identical content are cached by content hash and file type.
type Scanner struct {
	cfg      *config.SecurityConfig
	external MalwareScanner
	patterns []Pattern
	cache    *gocache.Cache
	sem      *semaphore.Weighted
}

func New(cfg *config.SecurityConfig, external MalwareScanner) *Scanner {
	return &Scanner{
		cfg:      cfg,
		external: external,
		patterns: defaultPatterns,
		cache:    gocache.New(cfg.ScanCacheTTL, 2*cfg.ScanCacheTTL),
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrentScans)),
	}
}

// Scan inspects content and returns a verdict. The pattern stage short-circuits
// before the expensive external scan; scanner unavailability resolves via the
// configured fail-open/fail-closed policy.
func (s *Scanner) Scan(ctx context.Context, content []byte, fileType string) Verdict {
	if !s.cfg.EnableMalwareScanning && !s.cfg.StrictFileValidation {
		return Verdict{}
	}

	cacheKey := contentKey(content, fileType)
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.(Verdict)
	}

	for _, pattern := range s.patterns {
		if pattern.Match(content) {
			verdict := Verdict{Threats: []string{pattern.ID}}
			s.cache.Set(cacheKey, verdict, gocache.DefaultExpiration)
			return verdict
		}
	}

	if !s.cfg.EnableMalwareScanning {
		verdict := Verdict{}
		s.cache.Set(cacheKey, verdict, gocache.DefaultExpiration)
		return verdict
	}
	if s.external == nil {
		return s.unavailable("no external scanner configured", nil)
	}

	if !s.sem.TryAcquire(1) {
		return s.unavailable("scan capacity exceeded", nil)
	}
	defer s.sem.Release(1)

	scanCtx, cancel := context.WithTimeout(ctx, s.cfg.ScanTimeout)
	defer cancel()

	verdict, err := s.external.Scan(scanCtx, content)
	if err != nil {
		return s.unavailable("external scanner failed", err)
	}
	s.cache.Set(cacheKey, verdict, gocache.DefaultExpiration)
	return verdict
}

// unavailable resolves scanner outages: deny under fail-closed, allow with a
// warning otherwise. These verdicts are never cached.
func (s *Scanner) unavailable(detail string, err error) Verdict {
	if s.cfg.FailClosed() {
		slog.Error("Malware scan unavailable, treating content as threat", "detail", detail, "error", err)
		return Verdict{Threats: []string{threatScanUnavailable}}
	}
	slog.Warn("Malware scan unavailable, allowing content", "detail", detail, "error", err)
	return Verdict{}
}

func contentKey(content []byte, fileType string) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:]) + "/" + fileType
}
