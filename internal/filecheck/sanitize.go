package filecheck

import (
	"regexp"
	"strings"

	"github.com/convertlab/secgate/params"
	"github.com/google/uuid"
)

var disallowedChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SanitizeFilename rewrites an untrusted filename into a safe one: path
// traversal segments are dropped, characters outside [A-Za-z0-9._-] become
// underscores, the result is capped at 255 bytes and is never empty.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")

	var parts []string
	for _, segment := range strings.Split(name, "/") {
		segment = strings.TrimSpace(segment)
		if segment == "" || segment == "." || segment == ".." {
			continue
		}
		parts = append(parts, segment)
	}

	cleaned := disallowedChars.ReplaceAllString(strings.Join(parts, "_"), "_")
	for strings.Contains(cleaned, "..") {
		cleaned = strings.ReplaceAll(cleaned, "..", ".")
	}
	cleaned = strings.TrimLeft(cleaned, ".")

	if len(cleaned) > params.MaxFilenameLength {
		cleaned = cleaned[:params.MaxFilenameLength]
		cleaned = strings.TrimRight(cleaned, ".")
	}
	if cleaned == "" {
		return "upload_" + uuid.New().String()[:8]
	}
	return cleaned
}
