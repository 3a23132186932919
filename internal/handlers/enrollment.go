package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/coursepay/internal/services"
)

// EnrollmentHandler serves enrollment paths that bypass the gateway.
type EnrollmentHandler struct {
	enrollments *services.EnrollmentService
}

func NewEnrollmentHandler(enrollments *services.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

type freeEnrollmentRequest struct {
	itemRef
}

// EnrollFree enrolls the caller in a free course.
func (h *EnrollmentHandler) EnrollFree(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}

	var req freeEnrollmentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	enrollment, err := h.enrollments.EnrollFree(c.UserContext(), identity.UserID, req.id())
	if err != nil {
		return serviceError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":    true,
		"enrollment": enrollment,
	})
}

type redeemRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

// Redeem spends an activation code.
func (h *EnrollmentHandler) Redeem(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}

	var req redeemRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	enrollment, err := h.enrollments.RedeemCode(c.UserContext(), identity.UserID, req.Code)
	if err != nil {
		return serviceError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":    true,
		"enrollment": enrollment,
	})
}

// List returns the caller's enrollments.
func (h *EnrollmentHandler) List(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}

	enrollments, err := h.enrollments.ListForUser(c.UserContext(), identity.UserID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": enrollments})
}
