package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/coursepay/internal/models"
	"github.com/example/coursepay/internal/services"
	"github.com/example/coursepay/internal/utils"
)

// PaymentHandler serves the buyer-facing checkout and status endpoints.
type PaymentHandler struct {
	checkout   *services.CheckoutService
	reconciler *services.Reconciler
}

func NewPaymentHandler(checkout *services.CheckoutService, reconciler *services.Reconciler) *PaymentHandler {
	return &PaymentHandler{checkout: checkout, reconciler: reconciler}
}

type checkoutRequest struct {
	itemRef
	PaymentMethod string `json:"paymentMethod" validate:"omitempty,oneof=card voucher fawry"`
}

// Checkout opens a Paymob checkout for a paid course.
func (h *PaymentHandler) Checkout(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}

	var req checkoutRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := h.checkout.Initiate(c.UserContext(), purchaserFrom(identity), req.id(), req.PaymentMethod)
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"checkoutUrl": result.CheckoutURL,
		"paymentId":   result.PaymentID,
		"orderId":     result.OrderID,
		"amount":      result.Amount.InexactFloat64(),
		"currency":    result.Currency,
	})
}

type statusRequest struct {
	PaymentID string `json:"paymentId" validate:"omitempty,uuid"`
	OrderID   string `json:"orderId" validate:"omitempty,max=64"`
}

// Status reports the caller's payment, refreshing it from Paymob while pending.
func (h *PaymentHandler) Status(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}

	var req statusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	query := services.PollQuery{OrderID: strings.TrimSpace(req.OrderID)}
	if req.PaymentID != "" {
		query.PaymentID = uuid.MustParse(req.PaymentID)
	}

	payment, err := h.reconciler.Poll(c.UserContext(), identity.UserID, query)
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"payment": paymentView(payment),
	})
}

// List returns the caller's payment history.
func (h *PaymentHandler) List(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}

	pg := utils.ParsePagination(c)
	payments, total, err := h.checkout.ListPayments(c.UserContext(), identity.UserID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}

	views := make([]fiber.Map, 0, len(payments))
	for i := range payments {
		views = append(views, paymentView(&payments[i]))
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    views,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

func paymentView(p *models.Payment) fiber.Map {
	view := fiber.Map{
		"id":            p.ID,
		"status":        p.Status,
		"amount":        p.Amount.InexactFloat64(),
		"currency":      p.Currency,
		"paymentMethod": p.PaymentMethod,
		"orderId":       p.OrderRef(),
		"createdAt":     p.CreatedAt.UTC().Format(time.RFC3339),
		"item":          nil,
	}
	if p.CompletedAt != nil {
		view["completedAt"] = p.CompletedAt.UTC().Format(time.RFC3339)
	}
	if p.Course != nil {
		view["item"] = p.Course.Summary()
	}
	return view
}

func purchaserFrom(identity utils.Identity) services.Purchaser {
	return services.Purchaser{
		ID:       identity.UserID,
		Email:    identity.Email,
		FullName: identity.FullName,
		Phone:    identity.Phone,
	}
}
