package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	PaymobSignatureHeader = "X-Paymob-Hmac"
	signatureContextKey   = "paymobSignature"
)

// PaymobSignature lifts the webhook signature into context. Paymob sends it
// as a header on newer integrations and as the hmac query parameter on older ones.
// Verification happens in the reconciler so that nothing is written for a bad call.
func PaymobSignature() fiber.Handler {
	return func(c *fiber.Ctx) error {
		signature := strings.TrimSpace(c.Get(PaymobSignatureHeader))
		if signature == "" {
			signature = strings.TrimSpace(c.Query("hmac"))
		}
		c.Locals(signatureContextKey, strings.ToLower(signature))
		return c.Next()
	}
}

// GetPaymobSignature returns the signature captured by PaymobSignature.
func GetPaymobSignature(c *fiber.Ctx) string {
	signature, _ := c.Locals(signatureContextKey).(string)
	return signature
}
