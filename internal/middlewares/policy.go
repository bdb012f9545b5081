package middlewares

import (
	"fmt"
	"io"
	"strings"

	"github.com/convertlab/secgate/internal/middlewares/sessions"
	"github.com/convertlab/secgate/internal/policy"
	"github.com/convertlab/secgate/model"
	"github.com/gofiber/fiber/v2"
)

const descriptorContextKey = "descriptor"

// ClassifyEndpoint maps a route path to its endpoint class.
func ClassifyEndpoint(ctx *fiber.Ctx) model.EndpointClass {
	path := ctx.Path()
	switch {
	case strings.HasPrefix(path, "/convert") || strings.HasPrefix(path, "/upload"):
		return model.EndpointUpload
	case strings.HasPrefix(path, "/auth") || strings.HasPrefix(path, "/login"):
		return model.EndpointAuth
	default:
		return model.EndpointAPI
	}
}

// Descriptor returns the request descriptor attached by PolicyMiddleware, or
// nil for routes outside the gated surface.
func Descriptor(ctx *fiber.Ctx) *model.RequestDescriptor {
	desc, _ := ctx.Locals(descriptorContextKey).(*model.RequestDescriptor)
	return desc
}

// PolicyMiddleware normalizes the inbound request into a descriptor, runs the
// policy engine and translates a deny into its HTTP error. Denied responses
// carry only the generic per-kind message; specifics stay in the audit log.
func PolicyMiddleware(engine *policy.Engine, classify func(*fiber.Ctx) model.EndpointClass) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		descriptor, err := buildDescriptor(ctx, classify(ctx))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "malformed request")
		}

		decision := engine.Evaluate(ctx.Context(), descriptor)
		if !decision.Allowed {
			return ctx.Status(decision.Kind.StatusCode()).JSON(fiber.Map{
				"error": decision.Kind.Message(),
			})
		}

		ctx.Locals(descriptorContextKey, descriptor)
		return ctx.Next()
	}
}

func buildDescriptor(ctx *fiber.Ctx, class model.EndpointClass) (*model.RequestDescriptor, error) {
	sess := sessions.Get(ctx)

	tier := model.TierBasic
	if sess.Tier != "" {
		parsed, err := model.ParseUserTier(sess.Tier)
		if err != nil {
			return nil, err
		}
		tier = parsed
	}

	token := ctx.Get("X-CSRF-Token")
	if token == "" && ctx.Method() == fiber.MethodPost {
		token = ctx.FormValue("_csrf")
	}

	files, err := collectFiles(ctx)
	if err != nil {
		return nil, err
	}

	return &model.RequestDescriptor{
		Subject:   sess.Subject(),
		Tier:      tier,
		Endpoint:  class,
		Method:    ctx.Method(),
		Files:     files,
		CSRFToken: token,
	}, nil
}

func collectFiles(ctx *fiber.Ctx) ([]model.FileUpload, error) {
	form, err := ctx.MultipartForm()
	if err != nil || form == nil {
		// Not a multipart request.
		return nil, nil
	}

	var files []model.FileUpload
	for _, headers := range form.File {
		for _, header := range headers {
			f, err := header.Open()
			if err != nil {
				return nil, fmt.Errorf("open upload %q: %w", header.Filename, err)
			}
			content, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return nil, fmt.Errorf("read upload %q: %w", header.Filename, err)
			}
			files = append(files, model.FileUpload{
				Filename:     header.Filename,
				DeclaredMIME: header.Header.Get("Content-Type"),
				Size:         int64(len(content)),
				Content:      content,
			})
		}
	}
	return files, nil
}
