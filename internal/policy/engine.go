package policy

import (
	"context"
	"log/slog"
	"time"

	"github.com/convertlab/secgate/config"
	"github.com/convertlab/secgate/model"
)

// Stage is one check in the policy pipeline. A stage that does not apply to
// the request (wrong method, no file attached) returns Allow.
type Stage interface {
	Name() string
	Evaluate(ctx context.Context, req *model.RequestDescriptor) Decision
}

// Engine runs the stages in their fixed order and short-circuits on the first
// deny. Expected security violations never propagate as errors past this
// boundary; callers only ever see a Decision.
type Engine struct {
	cfg    *config.SecurityConfig
	stages []Stage
	logger *slog.Logger
}

func NewEngine(cfg *config.SecurityConfig, stages ...Stage) *Engine {
	return &Engine{
		cfg:    cfg,
		stages: stages,
		logger: slog.With("component", "policy"),
	}
}

func (e *Engine) Evaluate(ctx context.Context, req *model.RequestDescriptor) Decision {
	start := time.Now()
	decision := Allow()
	stageName := ""
	for _, stage := range e.stages {
		decision = stage.Evaluate(ctx, req)
		if !decision.Allowed {
			stageName = stage.Name()
			break
		}
	}
	e.audit(req, decision, stageName, time.Since(start))
	return decision
}

// audit emits one structured record per evaluation, regardless of outcome.
func (e *Engine) audit(req *model.RequestDescriptor, decision Decision, stageName string, elapsed time.Duration) {
	if !e.cfg.EnableAuditLogging {
		return
	}
	attrs := []any{
		"subject", req.Subject,
		"endpoint", req.Endpoint,
		"method", req.Method,
		"tier", req.Tier,
		"elapsed", elapsed,
	}
	if decision.Allowed {
		e.logger.Info("Request allowed", attrs...)
		return
	}
	attrs = append(attrs, "stage", stageName, "reason", decision.Kind, "detail", decision.Detail)
	e.logger.Info("Request denied", attrs...)
}
