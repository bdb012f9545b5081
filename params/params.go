package params

import (
	"fmt"
	"time"
)

const (
	ServerBodyLimit    = 64 * 1024 * 1024
	ServerIdleTimeout  = 30 * time.Second
	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = 10 * time.Second
)

const (
	// RateLimitWindow is the default fixed window for request counting.
	RateLimitWindow = 60 * time.Second

	// CSRFTokenExpiration is the default lifetime of an issued CSRF token.
	CSRFTokenExpiration = 1 * time.Hour

	// ScanTimeout bounds a single external malware scan.
	ScanTimeout = 30 * time.Second

	// ScanCacheTTL is how long a verdict for identical content is reused.
	ScanCacheTTL = 15 * time.Minute

	MaxConcurrentScans = 8

	// MaxFilenameLength is the byte cap applied by filename sanitization.
	MaxFilenameLength = 255
)

const Version = "0.1.0"

func VersionWithCommit(gitCommit, gitDate string) string {
	version := Version
	if len(gitCommit) >= 8 {
		version += "-" + gitCommit[:8]
	}
	if gitDate != "" {
		version += "-" + gitDate
	}
	return fmt.Sprintf("secgate/v%s", version)
}
