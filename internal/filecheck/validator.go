package filecheck

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/convertlab/secgate/config"
	"github.com/convertlab/secgate/model"
	"github.com/gabriel-vasile/mimetype"
)

type Reason string

const (
	ReasonInvalidType  Reason = "invalid_file_type"
	ReasonSizeExceeded Reason = "file_size_exceeded"
	ReasonMIMEMismatch Reason = "mime_mismatch"
)

// Result is the outcome of validating one attached file. Detail is operator
// facing and must never be returned to the end user verbatim.
type Result struct {
	Allowed bool
	Reason  Reason
	Detail  string
}

func allowed() Result {
	return Result{Allowed: true}
}

func denied(reason Reason, format string, args ...any) Result {
	return Result{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Validator checks attached files against the configured extension allow-list,
// tier-scaled size caps and, under strict validation, the declared-vs-sniffed
// MIME type agreement.
type Validator struct {
	cfg *config.SecurityConfig
}

func New(cfg *config.SecurityConfig) *Validator {
	return &Validator{cfg: cfg}
}

func (v *Validator) Validate(file model.FileUpload, tier model.UserTier) Result {
	ext := Extension(file.Filename)
	if ext == "" || !v.cfg.IsExtensionAllowed(ext) {
		return denied(ReasonInvalidType, "extension %q of %q is not allowed", ext, file.Filename)
	}

	maxSize := v.cfg.GetMaxFileSize(ext, tier)
	if file.Size > maxSize {
		return denied(ReasonSizeExceeded, "file %q is %d bytes, limit for .%s is %d", file.Filename, file.Size, ext, maxSize)
	}

	// MIME spoofing is a hard deny regardless of security level.
	if v.cfg.StrictFileValidation && file.DeclaredMIME != "" && len(file.Content) > 0 {
		sniffed := mimetype.Detect(file.Content)
		declared := normalizeMIME(file.DeclaredMIME)
		if !sniffedMatches(sniffed, declared) {
			return denied(ReasonMIMEMismatch, "file %q declared %q but content sniffed as %q", file.Filename, declared, sniffed.String())
		}
	}
	return allowed()
}

// Extension returns the lowercased last dot-segment of a filename, without
// the leading dot.
func Extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

func normalizeMIME(declared string) string {
	media, _, _ := strings.Cut(declared, ";")
	return strings.ToLower(strings.TrimSpace(media))
}

// sniffedMatches walks the detected type and its ancestors so that a declared
// base type accepts its more specific subtypes (e.g. text/plain for CSV).
func sniffedMatches(sniffed *mimetype.MIME, declared string) bool {
	for cur := sniffed; cur != nil; cur = cur.Parent() {
		if cur.Is(declared) {
			return true
		}
	}
	return false
}
