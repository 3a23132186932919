package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/coursepay/internal/logging"
	"github.com/example/coursepay/internal/models"
	"github.com/example/coursepay/internal/services"
	"github.com/example/coursepay/internal/testutil"
)

func TestSweeper_SweepOnce_ShouldResolveStalePendingPayments(t *testing.T) {
	db := testutil.NewDB(t)
	course := testutil.SeedCourse(t, db, "99.00", true)

	paid := seedPayment(t, db, uuid.New(), course, "1")
	declined := seedPayment(t, db, uuid.New(), course, "2")
	unknown := seedPayment(t, db, uuid.New(), course, "3")
	fresh := seedPayment(t, db, uuid.New(), course, "4")
	ancient := seedPayment(t, db, uuid.New(), course, "5")
	for _, id := range []uuid.UUID{paid.ID, declined.ID, unknown.ID} {
		backdate(t, db, id, 10*time.Minute)
	}
	backdate(t, db, ancient.ID, 72*time.Hour)

	var asked []string
	gateway := &fakeGateway{
		inquireFn: func(_ context.Context, orderID string) (services.Transaction, error) {
			asked = append(asked, orderID)
			switch orderID {
			case "1":
				raw, _ := json.Marshal(testutil.Transaction(orderID, 9900, true, false))
				return services.ParseTransaction(raw)
			case "2":
				raw, _ := json.Marshal(testutil.Transaction(orderID, 9900, false, false))
				return services.ParseTransaction(raw)
			default:
				return services.Transaction{}, errors.New("not found")
			}
		},
	}
	reconciler := services.NewReconciler(db, gateway, testutil.PaymobConfig("http://paymob.invalid"), nil, logging.Nop())
	sweeper := services.NewSweeper(db, reconciler, time.Minute, time.Minute, 24*time.Hour, logging.Nop())

	stats, err := sweeper.SweepOnce(context.Background())
	require.NoError(t, err)

	require.Equal(t, services.SweepStats{Checked: 3, Completed: 1, Failed: 1, Errors: 1}, stats)
	require.ElementsMatch(t, []string{"1", "2", "3"}, asked)

	require.Equal(t, models.PaymentStatusCompleted, testutil.ReloadPayment(t, db, paid.ID).Status)
	require.Equal(t, models.PaymentStatusFailed, testutil.ReloadPayment(t, db, declined.ID).Status)
	require.Equal(t, models.PaymentStatusPending, testutil.ReloadPayment(t, db, unknown.ID).Status)
	require.Equal(t, models.PaymentStatusPending, testutil.ReloadPayment(t, db, fresh.ID).Status)
	require.Equal(t, models.PaymentStatusPending, testutil.ReloadPayment(t, db, ancient.ID).Status)
	require.EqualValues(t, 1, testutil.CountEnrollments(t, db, paid.UserID, course.ID))
}

func TestSweeper_SweepOnce_WhenBatchFullOfUnanswered_ShouldStillReachNewerPayments(t *testing.T) {
	db := testutil.NewDB(t)
	course := testutil.SeedCourse(t, db, "99.00", true)

	for i := 0; i < 100; i++ {
		abandoned := seedPayment(t, db, uuid.New(), course, fmt.Sprintf("abandoned-%d", i))
		backdate(t, db, abandoned.ID, 20*time.Hour)
	}
	paid := seedPayment(t, db, uuid.New(), course, "paid")
	backdate(t, db, paid.ID, 10*time.Minute)

	gateway := &fakeGateway{
		inquireFn: func(_ context.Context, orderID string) (services.Transaction, error) {
			if orderID != "paid" {
				return services.Transaction{}, errors.New("no transaction for order")
			}
			raw, _ := json.Marshal(testutil.Transaction(orderID, 9900, true, false))
			return services.ParseTransaction(raw)
		},
	}
	reconciler := services.NewReconciler(db, gateway, testutil.PaymobConfig("http://paymob.invalid"), nil, logging.Nop())
	sweeper := services.NewSweeper(db, reconciler, time.Minute, time.Minute, 24*time.Hour, logging.Nop())

	first, err := sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 100, first.Checked)
	require.Equal(t, 100, first.Errors)

	second, err := sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, second.Completed)

	stored := testutil.ReloadPayment(t, db, paid.ID)
	require.Equal(t, models.PaymentStatusCompleted, stored.Status)
	require.NotNil(t, stored.LastCheckedAt)
}

func TestSweeper_Run_ShouldStopWhenContextCanceled(t *testing.T) {
	db := testutil.NewDB(t)
	refresher := &fakeRefresher{}
	sweeper := services.NewSweeper(db, refresher, 10*time.Millisecond, 0, 0, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

type fakeRefresher struct {
	refreshFn func(ctx context.Context, payment *models.Payment) (*models.Payment, error)
}

func (f *fakeRefresher) Refresh(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	if f.refreshFn == nil {
		return payment, nil
	}
	return f.refreshFn(ctx, payment)
}
