package policy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/convertlab/secgate/config"
	"github.com/convertlab/secgate/internal/contentscan"
	"github.com/convertlab/secgate/internal/csrf"
	"github.com/convertlab/secgate/internal/filecheck"
	"github.com/convertlab/secgate/internal/ratelimit"
	"github.com/convertlab/secgate/internal/store"
	"github.com/convertlab/secgate/model"
)

type stageFunc struct {
	name string
	fn   func(ctx context.Context, req *model.RequestDescriptor) Decision
}

func (s stageFunc) Name() string {
	return s.name
}

func (s stageFunc) Evaluate(ctx context.Context, req *model.RequestDescriptor) Decision {
	return s.fn(ctx, req)
}

// BlocklistStage denies subjects on the blocklist before any other check runs.
func BlocklistStage(blocklist store.Blocklist, cfg *config.SecurityConfig) Stage {
	return stageFunc{name: "blocklist", fn: func(ctx context.Context, req *model.RequestDescriptor) Decision {
		blocked, err := blocklist.Contains(ctx, req.Subject)
		if err != nil {
			if cfg.FailClosed() {
				slog.Error("Blocklist unavailable, denying request", "subject", req.Subject, "error", err)
				return Deny(KindSubjectBlocked, "blocklist unavailable: "+err.Error())
			}
			slog.Warn("Blocklist unavailable, allowing request", "subject", req.Subject, "error", err)
			return Allow()
		}
		if blocked {
			return Deny(KindSubjectBlocked, fmt.Sprintf("subject %q is on the blocklist", req.Subject))
		}
		return Allow()
	}}
}

// CSRFStage validates the anti-forgery token on state-mutating methods.
func CSRFStage(guard *csrf.Guard) Stage {
	return stageFunc{name: "csrf", fn: func(ctx context.Context, req *model.RequestDescriptor) Decision {
		if !req.IsMutating() {
			return Allow()
		}
		if !guard.Validate(ctx, req.Subject, req.CSRFToken) {
			return Deny(KindCSRFInvalid, fmt.Sprintf("token validation failed for subject %q method %s", req.Subject, req.Method))
		}
		return Allow()
	}}
}

func RateLimitStage(limiter *ratelimit.Limiter) Stage {
	return stageFunc{name: "ratelimit", fn: func(ctx context.Context, req *model.RequestDescriptor) Decision {
		res := limiter.CheckAndIncrement(ctx, req.Subject, req.Endpoint, req.Tier)
		if !res.Allowed {
			return Deny(KindRateLimitExceeded, fmt.Sprintf("count=%d limit=%d window retry after %s", res.Count, res.Limit, res.RetryAfter))
		}
		return Allow()
	}}
}

// FileValidationStage checks every attached file; the first rejected file
// denies the request.
func FileValidationStage(validator *filecheck.Validator) Stage {
	return stageFunc{name: "filecheck", fn: func(ctx context.Context, req *model.RequestDescriptor) Decision {
		if !req.HasFiles() {
			return Allow()
		}
		for _, file := range req.Files {
			res := validator.Validate(file, req.Tier)
			if !res.Allowed {
				return Deny(fileReasonKind(res.Reason), res.Detail)
			}
		}
		return Allow()
	}}
}

func fileReasonKind(reason filecheck.Reason) ErrorKind {
	switch reason {
	case filecheck.ReasonSizeExceeded:
		return KindFileSizeExceeded
	default:
		return KindInvalidFileType
	}
}

// ContentScanStage runs only for requests whose files already cleared
// validation; the engine's short-circuit guarantees the ordering.
func ContentScanStage(scanner *contentscan.Scanner) Stage {
	return stageFunc{name: "contentscan", fn: func(ctx context.Context, req *model.RequestDescriptor) Decision {
		if !req.HasFiles() {
			return Allow()
		}
		for _, file := range req.Files {
			if len(file.Content) == 0 {
				continue
			}
			verdict := scanner.Scan(ctx, file.Content, filecheck.Extension(file.Filename))
			if !verdict.Safe() {
				detail := fmt.Sprintf("file %q flagged: %s", file.Filename, strings.Join(verdict.Threats, ", "))
				return Deny(KindContentThreatDetected, detail)
			}
		}
		return Allow()
	}}
}
