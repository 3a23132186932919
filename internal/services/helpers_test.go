package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/coursepay/internal/models"
	"github.com/example/coursepay/internal/services"
)

type fakeGateway struct {
	startFn   func(ctx context.Context, req services.CheckoutRequest) (*services.CheckoutSession, error)
	inquireFn func(ctx context.Context, orderID string) (services.Transaction, error)
}

func (f *fakeGateway) StartCheckout(ctx context.Context, req services.CheckoutRequest) (*services.CheckoutSession, error) {
	if f.startFn == nil {
		return nil, errors.New("unexpected checkout call")
	}
	return f.startFn(ctx, req)
}

func (f *fakeGateway) InquireTransaction(ctx context.Context, orderID string) (services.Transaction, error) {
	if f.inquireFn == nil {
		return services.Transaction{}, errors.New("unexpected inquiry call")
	}
	return f.inquireFn(ctx, orderID)
}

func (f *fakeGateway) Currency() string {
	return "EGP"
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []services.PaymentNotification
}

func (f *fakeNotifier) NotifyPaymentCompleted(_ context.Context, n services.PaymentNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, n)
	return nil
}

func (f *fakeNotifier) Calls() []services.PaymentNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]services.PaymentNotification(nil), f.calls...)
}

func seedPayment(t *testing.T, db *gorm.DB, userID uuid.UUID, course models.Course, orderID string) models.Payment {
	t.Helper()

	payment := models.Payment{
		UserID:        userID,
		CourseID:      course.ID,
		Amount:        course.Price,
		AmountCents:   course.Price.Shift(2).IntPart(),
		Currency:      "EGP",
		PaymentMethod: models.PaymentMethodCard,
		PaymobOrderID: &orderID,
		Status:        models.PaymentStatusPending,
	}
	require.NoError(t, db.Create(&payment).Error)
	return payment
}

func backdate(t *testing.T, db *gorm.DB, paymentID uuid.UUID, age time.Duration) {
	t.Helper()
	require.NoError(t, db.Model(&models.Payment{}).
		Where("id = ?", paymentID).
		UpdateColumn("created_at", time.Now().Add(-age)).Error)
}
