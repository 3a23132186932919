package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/example/coursepay/internal/logging"
	"github.com/example/coursepay/internal/models"
)

// Gateway is the part of PaymobClient checkout and reconciliation depend on.
type Gateway interface {
	StartCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	InquireTransaction(ctx context.Context, orderID string) (Transaction, error)
	Currency() string
}

// CheckoutResult is returned to the buyer after a successful checkout start.
type CheckoutResult struct {
	PaymentID   uuid.UUID
	OrderID     string
	CheckoutURL string
	Amount      decimal.Decimal
	Currency    string
}

// CheckoutService opens gateway checkouts for paid courses.
type CheckoutService struct {
	db      *gorm.DB
	gateway Gateway
	log     *zap.SugaredLogger
	now     func() time.Time
}

func NewCheckoutService(db *gorm.DB, gateway Gateway, log *zap.SugaredLogger) *CheckoutService {
	return &CheckoutService{db: db, gateway: gateway, log: log, now: time.Now}
}

// Initiate validates the purchase, opens a Paymob checkout and records a
// pending payment. Either a pending row exists afterwards or nothing was written.
func (s *CheckoutService) Initiate(ctx context.Context, buyer Purchaser, courseID uuid.UUID, method string) (*CheckoutResult, error) {
	log := s.log.With(logging.UserID(buyer.ID), "course_id", courseID.String())

	paymentMethod, ok := models.ParsePaymentMethod(method)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, method)
	}

	course, err := loadPublishedCourse(ctx, s.db, courseID)
	if err != nil {
		return nil, err
	}

	enrolled, err := isEnrolled(ctx, s.db, buyer.ID, courseID)
	if err != nil {
		return nil, err
	}
	if enrolled {
		log.Infow("checkout rejected", logging.Step("precheck"), "reason", "already enrolled")
		return nil, ErrAlreadyEnrolled
	}
	if course.IsFree() {
		return nil, ErrFreeCourse
	}

	amountCents := course.Price.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	description := course.ShortDescriptionEn
	if description == "" {
		description = course.TitleEn
	}

	session, err := s.gateway.StartCheckout(ctx, CheckoutRequest{
		Method:          paymentMethod,
		AmountCents:     amountCents,
		ItemName:        course.TitleEn,
		ItemDescription: description,
		Purchaser:       buyer,
	})
	if err != nil {
		log.Errorw("gateway checkout failed", logging.Step("gateway"), "error", err)
		return nil, fmt.Errorf("start checkout: %w", err)
	}
	log = log.With(logging.OrderID(session.OrderID))

	auditData, err := json.Marshal(map[string]any{
		"integration_id": session.IntegrationID,
		"billing_data":   session.Billing,
		"order_data":     session.Order,
		"initiated_at":   s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal payment data: %w", err)
	}

	orderID := session.OrderID
	payment := models.Payment{
		UserID:           buyer.ID,
		CourseID:         course.ID,
		Amount:           course.Price,
		AmountCents:      amountCents,
		Currency:         s.gateway.Currency(),
		PaymentMethod:    paymentMethod,
		PaymobOrderID:    &orderID,
		PaymobPaymentKey: session.PaymentKey,
		Status:           models.PaymentStatusPending,
		PaymentData:      datatypes.JSON(auditData),
	}
	if err := s.db.WithContext(ctx).Create(&payment).Error; err != nil {
		log.Errorw("failed to record payment", logging.Step("persist"), "error", err)
		return nil, fmt.Errorf("create payment: %w", err)
	}

	log.Infow("checkout started", logging.Step("checkout"), logging.PaymentID(payment.ID), "method", paymentMethod)

	return &CheckoutResult{
		PaymentID:   payment.ID,
		OrderID:     orderID,
		CheckoutURL: session.CheckoutURL,
		Amount:      course.Price,
		Currency:    payment.Currency,
	}, nil
}

func loadPublishedCourse(ctx context.Context, db *gorm.DB, courseID uuid.UUID) (*models.Course, error) {
	var course models.Course
	err := db.WithContext(ctx).
		Where("id = ? AND is_published = ?", courseID, true).
		First(&course).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCourseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load course: %w", err)
	}
	return &course, nil
}

func isEnrolled(ctx context.Context, db *gorm.DB, userID, courseID uuid.UUID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("student_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return count > 0, nil
}
