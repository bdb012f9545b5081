package headers

import (
	"github.com/convertlab/secgate/config"
	"github.com/gofiber/fiber/v2"
)

// Apply sets the configured security headers on the outbound response. It is
// deterministic, never reads request state and has no failure mode.
func Apply(ctx *fiber.Ctx, cfg *config.SecurityConfig) {
	for name, value := range cfg.Headers {
		ctx.Set(name, value)
	}
}

// New returns a middleware decorating every response after the handler ran.
func New(cfg *config.SecurityConfig) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		Apply(ctx, cfg)
		return err
	}
}
