package services_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/coursepay/internal/logging"
	"github.com/example/coursepay/internal/models"
	"github.com/example/coursepay/internal/services"
	"github.com/example/coursepay/internal/testutil"
)

func buyer() services.Purchaser {
	return services.Purchaser{
		ID:       uuid.New(),
		Email:    "student@example.com",
		FullName: "Nour Hassan",
	}
}

func countPayments(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&count).Error)
	return count
}

func TestCheckout_WhenCardPurchase_ShouldReturnTokenURLAndPendingPayment(t *testing.T) {
	db := testutil.NewDB(t)
	fake := testutil.NewFakePaymob(t)
	client := services.NewPaymobClient(testutil.PaymobConfig(fake.URL()), logging.Nop())
	svc := services.NewCheckoutService(db, client, logging.Nop())
	course := testutil.SeedCourse(t, db, "99.00", true)
	user := buyer()

	result, err := svc.Initiate(context.Background(), user, course.ID, "card")
	require.NoError(t, err)

	require.Equal(t, "123", result.OrderID)
	require.Contains(t, result.CheckoutURL, "payment_token=pk_123")
	require.True(t, strings.HasPrefix(result.CheckoutURL, fake.URL()+"/acceptance/iframes/949862?"))
	require.Equal(t, "EGP", result.Currency)
	require.Equal(t, 99.0, result.Amount.InexactFloat64())

	payment := testutil.ReloadPayment(t, db, result.PaymentID)
	require.Equal(t, models.PaymentStatusPending, payment.Status)
	require.Equal(t, user.ID, payment.UserID)
	require.Equal(t, course.ID, payment.CourseID)
	require.EqualValues(t, 9900, payment.AmountCents)
	require.Equal(t, "123", payment.OrderRef())
	require.Equal(t, "pk_123", payment.PaymobPaymentKey)
	require.Equal(t, models.PaymentMethodCard, payment.PaymentMethod)
	require.Contains(t, string(payment.PaymentData), `"integration_id":5237776`)
	require.Contains(t, string(payment.PaymentData), `"billing_data"`)
}

func TestCheckout_ShouldConvertPriceToMinorUnits(t *testing.T) {
	db := testutil.NewDB(t)
	var gotCents int64
	gateway := &fakeGateway{
		startFn: func(_ context.Context, req services.CheckoutRequest) (*services.CheckoutSession, error) {
			gotCents = req.AmountCents
			return &services.CheckoutSession{OrderID: "55", PaymentKey: "pk", CheckoutURL: "https://pay/55"}, nil
		},
	}
	svc := services.NewCheckoutService(db, gateway, logging.Nop())
	course := testutil.SeedCourse(t, db, "149.99", true)

	_, err := svc.Initiate(context.Background(), buyer(), course.ID, "card")
	require.NoError(t, err)
	require.EqualValues(t, 14999, gotCents)
}

func TestCheckout_WhenFawryRequested_ShouldStoreVoucherMethod(t *testing.T) {
	db := testutil.NewDB(t)
	var gotMethod models.PaymentMethod
	gateway := &fakeGateway{
		startFn: func(_ context.Context, req services.CheckoutRequest) (*services.CheckoutSession, error) {
			gotMethod = req.Method
			return &services.CheckoutSession{OrderID: "77", PaymentKey: "pk", CheckoutURL: "https://pay/77"}, nil
		},
	}
	svc := services.NewCheckoutService(db, gateway, logging.Nop())
	course := testutil.SeedCourse(t, db, "50", true)

	result, err := svc.Initiate(context.Background(), buyer(), course.ID, "fawry")
	require.NoError(t, err)

	require.Equal(t, models.PaymentMethodVoucher, gotMethod)
	require.Equal(t, models.PaymentMethodVoucher, testutil.ReloadPayment(t, db, result.PaymentID).PaymentMethod)
}

func TestCheckout_WhenAlreadyEnrolled_ShouldRejectForEveryMethod(t *testing.T) {
	for _, method := range []string{"card", "voucher"} {
		t.Run(method, func(t *testing.T) {
			db := testutil.NewDB(t)
			svc := services.NewCheckoutService(db, &fakeGateway{}, logging.Nop())
			course := testutil.SeedCourse(t, db, "99.00", true)
			user := buyer()
			testutil.SeedEnrollment(t, db, user.ID, course.ID, models.EnrollmentTypePurchase)

			result, err := svc.Initiate(context.Background(), user, course.ID, method)

			require.ErrorIs(t, err, services.ErrAlreadyEnrolled)
			require.Nil(t, result)
			require.Zero(t, countPayments(t, db))
		})
	}
}

func TestCheckout_WhenCourseMissingOrUnpublished_ShouldReturnNotFound(t *testing.T) {
	db := testutil.NewDB(t)
	svc := services.NewCheckoutService(db, &fakeGateway{}, logging.Nop())
	unpublished := testutil.SeedCourse(t, db, "99.00", false)

	for _, id := range []uuid.UUID{unpublished.ID, uuid.New()} {
		_, err := svc.Initiate(context.Background(), buyer(), id, "card")
		require.ErrorIs(t, err, services.ErrCourseNotFound)
	}
	require.Zero(t, countPayments(t, db))
}

func TestCheckout_WhenCourseIsFree_ShouldPointToFreeEnrollment(t *testing.T) {
	db := testutil.NewDB(t)
	svc := services.NewCheckoutService(db, &fakeGateway{}, logging.Nop())
	course := testutil.SeedCourse(t, db, "0", true)

	_, err := svc.Initiate(context.Background(), buyer(), course.ID, "card")
	require.ErrorIs(t, err, services.ErrFreeCourse)
}

func TestCheckout_WhenMethodUnsupported_ShouldFailBeforeLookup(t *testing.T) {
	db := testutil.NewDB(t)
	svc := services.NewCheckoutService(db, &fakeGateway{}, logging.Nop())

	_, err := svc.Initiate(context.Background(), buyer(), uuid.New(), "bitcoin")
	require.ErrorIs(t, err, services.ErrUnsupportedMethod)
}

func TestCheckout_WhenGatewayFails_ShouldLeaveNoPayment(t *testing.T) {
	db := testutil.NewDB(t)
	fake := testutil.NewFakePaymob(t)
	fake.Fail("/acceptance/payment_keys", http.StatusBadGateway)
	client := services.NewPaymobClient(testutil.PaymobConfig(fake.URL()), logging.Nop())
	svc := services.NewCheckoutService(db, client, logging.Nop())
	course := testutil.SeedCourse(t, db, "99.00", true)

	_, err := svc.Initiate(context.Background(), buyer(), course.ID, "card")

	var gwErr *services.GatewayError
	require.True(t, errors.As(err, &gwErr))
	require.Equal(t, services.StepPaymentKey, gwErr.Step)
	require.Equal(t, http.StatusBadGateway, gwErr.Status)
	require.Zero(t, countPayments(t, db))
}

func TestListPayments_ShouldReturnOnlyCallersPaymentsNewestFirst(t *testing.T) {
	db := testutil.NewDB(t)
	svc := services.NewCheckoutService(db, &fakeGateway{}, logging.Nop())
	course := testutil.SeedCourse(t, db, "20", true)
	owner := uuid.New()

	first := seedPayment(t, db, owner, course, "1")
	second := seedPayment(t, db, owner, course, "2")
	backdate(t, db, first.ID, time.Hour)
	seedPayment(t, db, uuid.New(), course, "3")

	payments, total, err := svc.ListPayments(context.Background(), owner, 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, payments, 2)
	require.Equal(t, second.ID, payments[0].ID)
	require.NotNil(t, payments[0].Course)

	page, total, err := svc.ListPayments(context.Background(), owner, 1, 1)
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, page, 1)
	require.Equal(t, first.ID, page[0].ID)
}
