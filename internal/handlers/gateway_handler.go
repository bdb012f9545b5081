package handlers

import (
	"github.com/convertlab/secgate/internal/csrf"
	"github.com/convertlab/secgate/internal/filecheck"
	"github.com/convertlab/secgate/internal/middlewares"
	"github.com/convertlab/secgate/internal/middlewares/sessions"
	"github.com/gofiber/fiber/v2"
)

// GatewayHandler serves the thin HTTP surface around the policy pipeline:
// token issuance and the gated conversion entry point. Conversion itself is a
// downstream capability; requests reaching PostConvert have already cleared
// every policy stage.
type GatewayHandler struct {
	guard *csrf.Guard
}

func NewGatewayHandler(guard *csrf.Guard) *GatewayHandler {
	return &GatewayHandler{guard: guard}
}

func (h *GatewayHandler) GetCSRFToken(ctx *fiber.Ctx) error {
	sess := sessions.Get(ctx)
	token, err := h.guard.Issue(ctx.Context(), sess.Subject())
	if err != nil {
		return err
	}
	return ctx.JSON(fiber.Map{"csrfToken": token})
}

func (h *GatewayHandler) PostConvert(ctx *fiber.Ctx) error {
	descriptor := middlewares.Descriptor(ctx)
	if descriptor == nil || !descriptor.HasFiles() {
		return fiber.NewError(fiber.StatusBadRequest, "No file attached.")
	}

	accepted := make([]fiber.Map, 0, len(descriptor.Files))
	for _, file := range descriptor.Files {
		accepted = append(accepted, fiber.Map{
			"filename": filecheck.SanitizeFilename(file.Filename),
			"size":     file.Size,
			"status":   "accepted",
		})
	}
	return ctx.JSON(fiber.Map{
		"kind":  ctx.Params("kind"),
		"files": accepted,
	})
}
