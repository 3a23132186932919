package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"gorm.io/gorm"

	"github.com/example/coursepay/internal/config"
	"github.com/example/coursepay/internal/handlers"
	"github.com/example/coursepay/internal/middleware"
	"github.com/example/coursepay/internal/services"
)

// Services are the long-lived components the routes dispatch to.
type Services struct {
	Checkout    *services.CheckoutService
	Reconciler  *services.Reconciler
	Enrollments *services.EnrollmentService
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, svc Services) {
	paymentHandler := handlers.NewPaymentHandler(svc.Checkout, svc.Reconciler)
	webhookHandler := handlers.NewWebhookHandler(svc.Reconciler)
	enrollmentHandler := handlers.NewEnrollmentHandler(svc.Enrollments)
	healthHandler := handlers.NewHealthHandler(db)

	app.Get("/healthz", healthHandler.Check)

	api := app.Group("/api")
	requireAuth := middleware.AuthMiddleware(cfg)

	// Paymob callbacks carry no bearer token. Registered ahead of the
	// authenticated group so the group's middleware never runs for it.
	api.Post("/payments/paymob/webhook", middleware.PaymobSignature(), webhookHandler.Paymob)

	payments := api.Group("/payments", requireAuth)
	payments.Post("/checkout", limiter.New(limiter.Config{
		Max:        10,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			if identity, ok := middleware.GetIdentity(c); ok {
				return identity.UserID.String()
			}
			return c.IP()
		},
	}), paymentHandler.Checkout)
	payments.Post("/status", paymentHandler.Status)
	payments.Get("/", paymentHandler.List)

	enrollments := api.Group("/enrollments", requireAuth)
	enrollments.Post("/free", enrollmentHandler.EnrollFree)
	enrollments.Post("/redeem", enrollmentHandler.Redeem)
	enrollments.Get("/", enrollmentHandler.List)
}
