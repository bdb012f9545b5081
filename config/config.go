package config

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/convertlab/secgate/model"
	"github.com/convertlab/secgate/params"
	"github.com/spf13/viper"
)

const (
	DefaultListenAddr  = ":3000"
	DefaultEnvironment = "development"

	envPrefix = "SECGATE"
)

// SecurityLevel is a coarse preset that scales strictness of validation,
// rate limiting and the fail-open/fail-closed policy.
type SecurityLevel string

const (
	LevelLow    SecurityLevel = "LOW"
	LevelMedium SecurityLevel = "MEDIUM"
	LevelHigh   SecurityLevel = "HIGH"
)

// Feature names accepted by SecurityConfig.IsFeatureEnabled.
const (
	FeatureMalwareScanning  = "malware_scanning"
	FeatureStrictValidation = "strict_validation"
	FeatureAuditLogging     = "audit_logging"
	FeatureCSRFSingleUse    = "csrf_single_use"
)

type SecurityConfig struct {
	Level                 SecurityLevel      `yaml:"level"`
	AllowedExtensions     []string           `yaml:"allowedExtensions"`
	MaxFileSizes          map[string]int64   `yaml:"maxFileSizes"`
	RateLimits            map[string]int     `yaml:"rateLimits"`
	RateWindow            time.Duration      `yaml:"rateWindow"`
	TierMultipliers       map[string]float64 `yaml:"tierMultipliers"`
	EnableMalwareScanning bool               `yaml:"enableMalwareScanning"`
	StrictFileValidation  bool               `yaml:"strictFileValidation"`
	EnableAuditLogging    bool               `yaml:"enableAuditLogging"`
	CSRFSingleUse         bool               `yaml:"csrfSingleUse"`
	CSRFTokenTTL          time.Duration      `yaml:"csrfTokenTTL"`
	ScanTimeout           time.Duration      `yaml:"scanTimeout"`
	ScanCacheTTL          time.Duration      `yaml:"scanCacheTTL"`
	MaxConcurrentScans    int                `yaml:"maxConcurrentScans"`
	FailClosedOverride    *bool              `yaml:"failClosedOverride"`
	Headers               map[string]string  `yaml:"headers"`
}

type Config struct {
	Debug       bool           `yaml:"debug"`
	Environment string         `yaml:"environment"`
	ListenAddr  string         `yaml:"listenAddr"`
	RedisURL    string         `yaml:"redisURL"`
	ClamdAddr   string         `yaml:"clamdAddr"`
	Security    SecurityConfig `yaml:"security"`
}

// GetLimit returns the per-window request limit for an endpoint class, scaled
// by the tier multiplier, rounded down, with a floor of 1.
func (c *SecurityConfig) GetLimit(class model.EndpointClass, tier model.UserTier) int {
	base, ok := c.RateLimits[class.String()]
	if !ok {
		base = c.RateLimits["default"]
	}
	return scaleLimit(int64(base), c.tierMultiplier(tier))
}

// GetMaxFileSize returns the size cap in bytes for an extension, scaled by the
// tier multiplier, rounded down, with a floor of 1.
func (c *SecurityConfig) GetMaxFileSize(extension string, tier model.UserTier) int64 {
	base, ok := c.MaxFileSizes[strings.ToLower(extension)]
	if !ok {
		base = c.MaxFileSizes["default"]
	}
	return int64(scaleLimit(base, c.tierMultiplier(tier)))
}

func (c *SecurityConfig) tierMultiplier(tier model.UserTier) float64 {
	if mult, ok := c.TierMultipliers[tier.String()]; ok {
		return mult
	}
	return 1.0
}

func scaleLimit(base int64, mult float64) int {
	scaled := int(math.Floor(float64(base) * mult))
	if scaled < 1 {
		return 1
	}
	return scaled
}

func (c *SecurityConfig) IsFeatureEnabled(name string) bool {
	switch name {
	case FeatureMalwareScanning:
		return c.EnableMalwareScanning
	case FeatureStrictValidation:
		return c.StrictFileValidation
	case FeatureAuditLogging:
		return c.EnableAuditLogging
	case FeatureCSRFSingleUse:
		return c.CSRFSingleUse
	}
	return false
}

// FailClosed reports whether infrastructure unavailability denies the request.
// Derived from the security level unless explicitly overridden.
func (c *SecurityConfig) FailClosed() bool {
	if c.FailClosedOverride != nil {
		return *c.FailClosedOverride
	}
	return c.Level == LevelHigh
}

func (c *SecurityConfig) IsExtensionAllowed(extension string) bool {
	return slices.Contains(c.AllowedExtensions, strings.ToLower(extension))
}

// Validate returns a list of human-readable configuration errors. An empty
// list means the config is valid; callers must refuse to serve otherwise.
func (c *SecurityConfig) Validate() []string {
	var errs []string
	switch c.Level {
	case LevelLow, LevelMedium, LevelHigh:
	default:
		errs = append(errs, fmt.Sprintf("security level must be one of LOW, MEDIUM, HIGH, got %q", c.Level))
	}
	if c.RateWindow <= 0 {
		errs = append(errs, "rate window must be greater than zero")
	}
	for class, limit := range c.RateLimits {
		if class == "" {
			errs = append(errs, "rate limit endpoint class must not be empty")
		}
		if limit <= 0 {
			errs = append(errs, fmt.Sprintf("rate limit for endpoint class %q must be greater than zero", class))
		}
	}
	for ext, size := range c.MaxFileSizes {
		if size <= 0 {
			errs = append(errs, fmt.Sprintf("max file size for %q must be greater than zero", ext))
		}
	}
	for name, mult := range c.TierMultipliers {
		if _, err := model.ParseUserTier(name); err != nil {
			errs = append(errs, fmt.Sprintf("unknown tier %q in tier multipliers", name))
		}
		if mult <= 0 {
			errs = append(errs, fmt.Sprintf("tier multiplier for %q must be greater than zero", name))
		}
	}
	if len(c.AllowedExtensions) == 0 {
		errs = append(errs, "allowed extensions must not be empty")
	}
	seen := make(map[string]bool)
	for _, ext := range c.AllowedExtensions {
		if seen[ext] {
			errs = append(errs, fmt.Sprintf("duplicate allowed extension %q", ext))
		}
		seen[ext] = true
	}
	if c.EnableMalwareScanning && c.ScanTimeout <= 0 {
		errs = append(errs, "scan timeout must be greater than zero when malware scanning is enabled")
	}
	if c.ScanCacheTTL <= 0 {
		errs = append(errs, "scan cache TTL must be greater than zero")
	}
	if c.MaxConcurrentScans <= 0 {
		errs = append(errs, "max concurrent scans must be greater than zero")
	}
	if c.CSRFTokenTTL <= 0 {
		errs = append(errs, "CSRF token TTL must be greater than zero")
	}
	return errs
}

func (c *Config) Validate() []string {
	var errs []string
	switch c.Environment {
	case "development", "testing", "staging", "production":
	default:
		errs = append(errs, fmt.Sprintf("unknown environment %q", c.Environment))
	}
	return append(errs, c.Security.Validate()...)
}

func (c *Config) Sanitize() error {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.Environment == "" {
		c.Environment = DefaultEnvironment
	}
	c.Security.AllowedExtensions = normalizeExtensions(c.Security.AllowedExtensions)
	return nil
}

func normalizeExtensions(items []string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = strings.ToLower(strings.TrimPrefix(item, "."))
	}
	return out
}

func setBaseDefaults(v *viper.Viper) {
	v.SetDefault("environment", DefaultEnvironment)
	v.SetDefault("listenAddr", DefaultListenAddr)
	v.SetDefault("security.rateWindow", params.RateLimitWindow)
	v.SetDefault("security.csrfTokenTTL", params.CSRFTokenExpiration)
	v.SetDefault("security.scanTimeout", params.ScanTimeout)
	v.SetDefault("security.scanCacheTTL", params.ScanCacheTTL)
	v.SetDefault("security.maxConcurrentScans", params.MaxConcurrentScans)
	v.SetDefault("security.allowedExtensions", []string{
		"jpg", "jpeg", "png", "gif", "webp", "bmp", "tiff",
		"pdf", "doc", "docx", "xls", "xlsx", "txt", "csv",
	})
	v.SetDefault("security.maxFileSizes", map[string]int64{
		"default": 10 * 1024 * 1024,
		"pdf":     50 * 1024 * 1024,
		"docx":    20 * 1024 * 1024,
		"xlsx":    20 * 1024 * 1024,
	})
	v.SetDefault("security.rateLimits", map[string]int{
		"default": 60,
		"upload":  20,
		"api":     100,
		"auth":    10,
	})
	v.SetDefault("security.tierMultipliers", map[string]float64{
		"basic":      1.0,
		"premium":    2.0,
		"enterprise": 5.0,
		"admin":      10.0,
	})
	v.SetDefault("security.headers", map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "strict-origin-when-cross-origin",
		"Content-Security-Policy": "default-src 'self'",
	})
}

// applyEnvironmentDefaults fills the environment-specific preset underneath
// whatever the config file and environment variables already set.
func applyEnvironmentDefaults(v *viper.Viper, environment string) {
	switch environment {
	case "production", "staging":
		v.SetDefault("security.level", string(LevelHigh))
		v.SetDefault("security.enableMalwareScanning", true)
		v.SetDefault("security.strictFileValidation", true)
		v.SetDefault("security.enableAuditLogging", true)
		v.SetDefault("security.csrfSingleUse", true)
	case "testing":
		v.SetDefault("security.level", string(LevelMedium))
		v.SetDefault("security.strictFileValidation", true)
		v.SetDefault("security.enableAuditLogging", true)
	default:
		v.SetDefault("security.level", string(LevelLow))
		v.SetDefault("security.enableAuditLogging", true)
	}
}

// LoadConfig builds the config snapshot, applied in precedence order:
// explicit overrides > environment variables > config file > defaults.
// The result is read-only for the lifetime of the process.
func LoadConfig(filename string, overrides map[string]any) (*Config, error) {
	v := viper.New()
	setBaseDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if filename != "" {
		v.SetConfigFile(filename)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	for key, val := range overrides {
		v.Set(key, val)
	}

	// The preset must see the final environment, overrides included.
	applyEnvironmentDefaults(v, v.GetString("environment"))

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Sanitize(); err != nil {
		return nil, err
	}
	return &config, nil
}
