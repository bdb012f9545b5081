package middlewares

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler turns unhandled errors into generic JSON responses. Expected
// policy denials never reach here; they are rendered by PolicyMiddleware.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error."
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}
	if code == fiber.StatusInternalServerError {
		slog.Error("Unhandled error", "code", code, "path", ctx.Path(), "error", err)
	}
	return ctx.Status(code).JSON(fiber.Map{"error": message})
}
