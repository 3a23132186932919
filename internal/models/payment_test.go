package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestPaymentStatus_CanTransition(t *testing.T) {
	statuses := []PaymentStatus{PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed}

	for _, from := range statuses {
		for _, to := range statuses {
			want := from == PaymentStatusPending && to != PaymentStatusPending
			require.Equal(t, want, from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestParsePaymentMethod(t *testing.T) {
	tests := []struct {
		in   string
		want PaymentMethod
		ok   bool
	}{
		{"", PaymentMethodCard, true},
		{"card", PaymentMethodCard, true},
		{"voucher", PaymentMethodVoucher, true},
		{"fawry", PaymentMethodVoucher, true},
		{"wallet", "", false},
	}

	for _, tt := range tests {
		got, ok := ParsePaymentMethod(tt.in)
		require.Equal(t, tt.ok, ok, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}
}

func TestPayment_OrderRef(t *testing.T) {
	require.Empty(t, Payment{}.OrderRef())

	orderID := "123"
	require.Equal(t, "123", Payment{PaymobOrderID: &orderID}.OrderRef())
}

func TestCourse_IsFree(t *testing.T) {
	require.True(t, Course{Price: decimal.Zero}.IsFree())
	require.True(t, Course{Price: decimal.RequireFromString("-1")}.IsFree())
	require.False(t, Course{Price: decimal.RequireFromString("0.01")}.IsFree())
}

func TestActivationCode_Expired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	require.False(t, ActivationCode{}.Expired(now))
	require.True(t, ActivationCode{ExpiresAt: &past}.Expired(now))
	require.False(t, ActivationCode{ExpiresAt: &future}.Expired(now))
}
