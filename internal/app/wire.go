package app

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/coursepay/internal/config"
	"github.com/example/coursepay/internal/database"
	"github.com/example/coursepay/internal/services"
)

// Components is the service graph shared by the API server and paymentctl.
type Components struct {
	DB          *gorm.DB
	Paymob      *services.PaymobClient
	Checkout    *services.CheckoutService
	Reconciler  *services.Reconciler
	Enrollments *services.EnrollmentService
	Sweeper     *services.Sweeper
}

// Wire connects to the database and builds every service from cfg.
func Wire(cfg *config.Config, log *zap.SugaredLogger) (*Components, error) {
	db, err := database.Connect(cfg, log)
	if err != nil {
		return nil, err
	}

	var notifier services.PaymentNotifier
	telegram, err := services.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramAdminChat, log)
	if err != nil {
		log.Warnw("telegram notifier unavailable", "error", err)
	} else if telegram != nil {
		notifier = telegram
	}

	paymob := services.NewPaymobClient(cfg.Paymob, log.Named("paymob"))
	reconciler := services.NewReconciler(db, paymob, cfg.Paymob, notifier, log.Named("reconciler"))

	return &Components{
		DB:          db,
		Paymob:      paymob,
		Checkout:    services.NewCheckoutService(db, paymob, log.Named("checkout")),
		Reconciler:  reconciler,
		Enrollments: services.NewEnrollmentService(db, log.Named("enrollment")),
		Sweeper: services.NewSweeper(
			db,
			reconciler,
			cfg.ReconcileInterval,
			cfg.ReconcileMinAge,
			cfg.ReconcileMaxAge,
			log.Named("sweeper"),
		),
	}, nil
}

// Close releases the database connection.
func (c *Components) Close() error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
