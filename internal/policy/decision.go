package policy

import "github.com/gofiber/fiber/v2"

// ErrorKind classifies why a request was denied. The kind maps to a generic
// user-facing message and an HTTP status; the deny detail stays in the audit
// log so thresholds and scanner signatures are never leaked to callers.
type ErrorKind string

const (
	KindCSRFInvalid           ErrorKind = "csrf_invalid"
	KindRateLimitExceeded     ErrorKind = "rate_limit_exceeded"
	KindInvalidFileType       ErrorKind = "invalid_file_type"
	KindFileSizeExceeded      ErrorKind = "file_size_exceeded"
	KindContentThreatDetected ErrorKind = "content_threat_detected"
	KindSubjectBlocked        ErrorKind = "subject_blocked"
)

// Message returns the generic end-user string for this kind.
func (k ErrorKind) Message() string {
	switch k {
	case KindCSRFInvalid:
		return "Invalid or missing request token."
	case KindRateLimitExceeded:
		return "Too many requests. Please try again later."
	case KindInvalidFileType:
		return "File type not supported."
	case KindFileSizeExceeded:
		return "File too large."
	case KindContentThreatDetected:
		return "Upload rejected."
	default:
		return "Request denied."
	}
}

func (k ErrorKind) StatusCode() int {
	switch k {
	case KindCSRFInvalid, KindSubjectBlocked:
		return fiber.StatusForbidden
	case KindRateLimitExceeded:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusBadRequest
	}
}

// Decision is the single per-request policy outcome. Detail is operator-only.
type Decision struct {
	Allowed bool
	Kind    ErrorKind
	Detail  string
}

func Allow() Decision {
	return Decision{Allowed: true}
}

func Deny(kind ErrorKind, detail string) Decision {
	return Decision{Kind: kind, Detail: detail}
}
