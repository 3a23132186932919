package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/example/coursepay/internal/config"
	"github.com/example/coursepay/internal/handlers"
)

// NewApp builds the Fiber app with the shared middleware stack.
func NewApp(cfg *config.Config, log *zap.SugaredLogger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Coursepay API",
		ErrorHandler: handlers.ErrorHandler(log),
		BodyLimit:    1 << 20,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSAllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Paymob-Hmac",
	}))

	return app
}
