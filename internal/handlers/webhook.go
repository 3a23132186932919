package handlers

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/example/coursepay/internal/middleware"
	"github.com/example/coursepay/internal/services"
)

// WebhookHandler receives Paymob transaction callbacks.
type WebhookHandler struct {
	reconciler *services.Reconciler
}

func NewWebhookHandler(reconciler *services.Reconciler) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler}
}

// Paymob applies a processed-transaction callback. Event types other than
// TRANSACTION are acknowledged and dropped so the gateway stops retrying them.
func (h *WebhookHandler) Paymob(c *fiber.Ctx) error {
	var env services.WebhookEnvelope
	if err := json.Unmarshal(c.Body(), &env); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.reconciler.HandleWebhook(c.UserContext(), env, middleware.GetPaymobSignature(c))
	if errors.Is(err, services.ErrUnsupportedEvent) {
		return c.JSON(fiber.Map{"success": true, "ignored": true})
	}
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"paymentId": result.PaymentID,
		"status":    result.Status,
	})
}
