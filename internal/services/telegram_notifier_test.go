package services_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/coursepay/internal/logging"
	"github.com/example/coursepay/internal/models"
	"github.com/example/coursepay/internal/services"
)

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		amount   float64
		currency string
		want     string
	}{
		{0, "EGP", "0.00 EGP"},
		{99.5, "EGP", "99.50 EGP"},
		{1234.5, "EGP", "1,234.50 EGP"},
		{1234567.891, "USD", "1,234,567.89 USD"},
		{-1500, "", "-1,500.00 EGP"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			require.Equal(t, tt.want, services.FormatPrice(tt.amount, tt.currency))
		})
	}
}

func TestFormatPaymentMessage_ShouldEscapeCourseTitle(t *testing.T) {
	msg := services.FormatPaymentMessage(services.PaymentNotification{
		PaymentID:   uuid.New(),
		OrderID:     "123",
		UserID:      uuid.New(),
		CourseID:    uuid.New(),
		CourseTitle: "Grammar <b>&</b> Syntax",
		Amount:      2500,
		Currency:    "EGP",
		Method:      models.PaymentMethodVoucher,
		Source:      services.SourceWebhook,
	})

	require.Contains(t, msg, "Grammar &lt;b&gt;&amp;&lt;/b&gt; Syntax")
	require.Contains(t, msg, "2,500.00 EGP")
	require.Contains(t, msg, "Fawry voucher")
	require.Contains(t, msg, "<b>Order:</b> 123")
}

func TestFormatPaymentMessage_WithoutTitle_ShouldFallBackToCourseID(t *testing.T) {
	courseID := uuid.New()
	msg := services.FormatPaymentMessage(services.PaymentNotification{
		CourseID: courseID,
		Method:   models.PaymentMethodCard,
	})

	require.Contains(t, msg, courseID.String())
	require.Contains(t, msg, "<b>Method:</b> Card")
}

func TestNewTelegramNotifier_WhenNotConfigured_ShouldBeDisabled(t *testing.T) {
	notifier, err := services.NewTelegramNotifier("", "-100123", logging.Nop())
	require.NoError(t, err)
	require.Nil(t, notifier)

	notifier, err = services.NewTelegramNotifier("123:abc", "", logging.Nop())
	require.NoError(t, err)
	require.Nil(t, notifier)
}
