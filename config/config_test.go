package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/convertlab/secgate/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSecurityConfig() SecurityConfig {
	return SecurityConfig{
		Level:             LevelMedium,
		AllowedExtensions: []string{"pdf", "png"},
		MaxFileSizes:      map[string]int64{"default": 1000, "pdf": 5000},
		RateLimits:        map[string]int{"default": 60, "upload": 10},
		RateWindow:        time.Minute,
		TierMultipliers: map[string]float64{
			"basic":   1.0,
			"premium": 2.0,
		},
		CSRFTokenTTL:       time.Hour,
		ScanTimeout:        30 * time.Second,
		ScanCacheTTL:       time.Minute,
		MaxConcurrentScans: 4,
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	cfg := validSecurityConfig()
	assert.Empty(t, cfg.Validate())
}

func TestValidateIdempotence(t *testing.T) {
	cfg := validSecurityConfig()
	cfg.TierMultipliers["basic"] = 0

	first := cfg.Validate()
	second := cfg.Validate()
	assert.Equal(t, first, second)
}

func TestValidateRejectsZeroMultiplier(t *testing.T) {
	cfg := validSecurityConfig()
	cfg.TierMultipliers["basic"] = 0

	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "basic")
}

func TestValidateRejectsUnknownTier(t *testing.T) {
	cfg := validSecurityConfig()
	cfg.TierMultipliers["gold"] = 1.5

	errs := cfg.Validate()
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0], "gold")
}

func TestValidateRejectsBadLevel(t *testing.T) {
	cfg := validSecurityConfig()
	cfg.Level = "EXTREME"
	assert.NotEmpty(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveLimits(t *testing.T) {
	cfg := validSecurityConfig()
	cfg.RateLimits["upload"] = 0
	cfg.MaxFileSizes["pdf"] = -1

	errs := cfg.Validate()
	assert.Len(t, errs, 2)
}

func TestValidateRejectsNonPositiveScanCacheTTL(t *testing.T) {
	cfg := validSecurityConfig()
	cfg.ScanCacheTTL = 0

	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "scan cache TTL")
}

func TestValidateRejectsDuplicateExtension(t *testing.T) {
	cfg := validSecurityConfig()
	cfg.AllowedExtensions = []string{"pdf", "png", "pdf"}
	assert.NotEmpty(t, cfg.Validate())
}

func TestGetLimitTierScaling(t *testing.T) {
	cfg := validSecurityConfig()

	assert.Equal(t, 10, cfg.GetLimit(model.EndpointUpload, model.TierBasic))
	assert.Equal(t, 20, cfg.GetLimit(model.EndpointUpload, model.TierPremium))
	// Unknown class falls back to the default entry.
	assert.Equal(t, 60, cfg.GetLimit(model.EndpointClass("webhook"), model.TierBasic))
}

func TestGetLimitFloor(t *testing.T) {
	cfg := validSecurityConfig()
	cfg.RateLimits["upload"] = 1
	cfg.TierMultipliers["basic"] = 0.1

	assert.Equal(t, 1, cfg.GetLimit(model.EndpointUpload, model.TierBasic), "scaled limit floors at 1")
}

func TestGetMaxFileSize(t *testing.T) {
	cfg := validSecurityConfig()

	assert.Equal(t, int64(5000), cfg.GetMaxFileSize("pdf", model.TierBasic))
	assert.Equal(t, int64(5000), cfg.GetMaxFileSize("PDF", model.TierBasic))
	assert.Equal(t, int64(10000), cfg.GetMaxFileSize("pdf", model.TierPremium))
	assert.Equal(t, int64(1000), cfg.GetMaxFileSize("zip", model.TierBasic))
}

func TestIsFeatureEnabled(t *testing.T) {
	cfg := validSecurityConfig()
	cfg.EnableMalwareScanning = true
	cfg.EnableAuditLogging = false

	assert.True(t, cfg.IsFeatureEnabled(FeatureMalwareScanning))
	assert.False(t, cfg.IsFeatureEnabled(FeatureAuditLogging))
	assert.False(t, cfg.IsFeatureEnabled("no_such_feature"))
}

func TestFailClosed(t *testing.T) {
	cfg := validSecurityConfig()

	cfg.Level = LevelLow
	assert.False(t, cfg.FailClosed())
	cfg.Level = LevelHigh
	assert.True(t, cfg.FailClosed())

	failOpen := false
	cfg.FailClosedOverride = &failOpen
	assert.False(t, cfg.FailClosed(), "explicit override wins over the level")
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, LevelLow, cfg.Security.Level)
	assert.Empty(t, cfg.Validate())
}

func TestLoadConfigEnvironmentPreset(t *testing.T) {
	path := writeConfigFile(t, "environment: production\n")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, LevelHigh, cfg.Security.Level)
	assert.True(t, cfg.Security.EnableMalwareScanning)
	assert.True(t, cfg.Security.StrictFileValidation)
	assert.True(t, cfg.Security.CSRFSingleUse)
}

func TestLoadConfigFileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
environment: production
listenAddr: ":8443"
security:
  level: MEDIUM
  rateWindow: 30s
`)
	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, ":8443", cfg.ListenAddr)
	assert.Equal(t, LevelMedium, cfg.Security.Level)
	assert.Equal(t, 30*time.Second, cfg.Security.RateWindow)
}

func TestLoadConfigExplicitOverridesWin(t *testing.T) {
	path := writeConfigFile(t, "listenAddr: \":8443\"\nsecurity:\n  level: MEDIUM\n")

	cfg, err := LoadConfig(path, map[string]any{
		"listenAddr":     ":9000",
		"security.level": "HIGH",
	})
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, LevelHigh, cfg.Security.Level)
}

func TestLoadConfigEnvironmentOverrideSelectsPreset(t *testing.T) {
	cfg, err := LoadConfig("", map[string]any{"environment": "production"})
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, LevelHigh, cfg.Security.Level)
	assert.True(t, cfg.Security.EnableMalwareScanning)
}

func TestLoadConfigEnvVarOverridesFile(t *testing.T) {
	path := writeConfigFile(t, "listenAddr: \":8443\"\n")
	t.Setenv("SECGATE_LISTENADDR", ":7777")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.ListenAddr)
}

func TestLoadConfigNormalizesExtensions(t *testing.T) {
	path := writeConfigFile(t, `
security:
  allowedExtensions: [".PDF", "Png"]
`)
	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"pdf", "png"}, cfg.Security.AllowedExtensions)
	assert.True(t, cfg.Security.IsExtensionAllowed("pdf"))
}
