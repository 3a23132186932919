package handlers

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/coursepay/internal/middleware"
	"github.com/example/coursepay/internal/utils"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// parseBody decodes the JSON body into dst and validates it.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(validationErrs) == 0 {
		return "invalid request"
	}
	fe := validationErrs[0]
	switch fe.Tag() {
	case "required", "required_without":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// itemRef is the purchasable item reference; courseId is accepted as an alias.
type itemRef struct {
	ItemID   string `json:"itemId" validate:"required_without=CourseID,omitempty,uuid"`
	CourseID string `json:"courseId" validate:"omitempty,uuid"`
}

func (r itemRef) id() uuid.UUID {
	if r.ItemID != "" {
		return uuid.MustParse(r.ItemID)
	}
	return uuid.MustParse(r.CourseID)
}

func currentIdentity(c *fiber.Ctx) (utils.Identity, error) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		return utils.Identity{}, fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	return identity, nil
}
