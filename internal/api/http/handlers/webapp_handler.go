package handlers

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Stagnxzione/ra-userbot/internal/api/dto"
	"github.com/Stagnxzione/ra-userbot/pkg/util"
)

// Notifier delivers a WebApp action to the user's chat.
type Notifier interface {
	NotifyUser(ctx context.Context, userID, action string) error
}

// WebAppHandler relays WebApp button presses into the chat.
type WebAppHandler struct {
	notifier Notifier
	validate *validator.Validate
	logger   *zap.Logger
}

// NewWebAppHandler constructs handler.
func NewWebAppHandler(notifier Notifier, logger *zap.Logger) *WebAppHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := validator.New()
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &WebAppHandler{notifier: notifier, validate: v, logger: logger}
}

// FromWebApp handles POST /api/from_webapp.
func (h *WebAppHandler) FromWebApp(c *fiber.Ctx) error {
	var req dto.WebAppRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", map[string]any{"body": err.Error()})
	}
	if err := h.validate.Struct(req); err != nil {
		return util.NewValidationError("invalid payload", validationDetails(err))
	}

	if err := h.notifier.NotifyUser(c.UserContext(), string(req.UserID), req.Action); err != nil {
		h.logger.Warn("webapp relay failed",
			zap.String("user_id", string(req.UserID)),
			zap.String("code", util.ToDomainError(err).Code),
			zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(dto.WebAppResponse{Status: "error", Details: err.Error()})
	}
	return c.JSON(dto.WebAppResponse{Status: "ok"})
}

func validationDetails(err error) map[string]any {
	details := map[string]any{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		details["body"] = err.Error()
		return details
	}
	for _, fe := range verrs {
		details[fe.Field()] = fe.Tag()
	}
	return details
}
