package poller_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/coursepay/internal/models"
	"github.com/example/coursepay/internal/poller"
)

// sequence returns the given statuses in order, then repeats the last one.
func sequence(calls *atomic.Int32, statuses ...models.PaymentStatus) poller.CheckerFunc {
	return func(context.Context, uuid.UUID) (models.PaymentStatus, error) {
		n := int(calls.Add(1)) - 1
		if n >= len(statuses) {
			n = len(statuses) - 1
		}
		return statuses[n], nil
	}
}

func TestPoller_ShouldStopOnTerminalStatus(t *testing.T) {
	tests := []struct {
		name    string
		final   models.PaymentStatus
		outcome poller.Outcome
	}{
		{"completed", models.PaymentStatusCompleted, poller.OutcomeCompleted},
		{"failed", models.PaymentStatusFailed, poller.OutcomeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			p := &poller.Poller{
				Interval: 5 * time.Millisecond,
				Timeout:  time.Second,
				Checker:  sequence(&calls, models.PaymentStatusPending, models.PaymentStatusPending, tt.final),
			}

			result := p.Start(context.Background(), uuid.New()).Result()

			require.Equal(t, tt.outcome, result.Outcome)
			require.Equal(t, tt.final, result.Status)
			require.EqualValues(t, 3, calls.Load())
		})
	}
}

func TestPoller_WhenNeverSettles_ShouldTimeOutPending(t *testing.T) {
	var calls atomic.Int32
	p := &poller.Poller{
		Interval: 5 * time.Millisecond,
		Timeout:  40 * time.Millisecond,
		Checker:  sequence(&calls, models.PaymentStatusPending),
	}

	result := p.Start(context.Background(), uuid.New()).Result()

	require.Equal(t, poller.OutcomeTimeout, result.Outcome)
	require.Equal(t, models.PaymentStatusPending, result.Status)
	require.Positive(t, calls.Load())
}

func TestPoller_Stop_ShouldCancelAndHaltChecks(t *testing.T) {
	var calls atomic.Int32
	p := &poller.Poller{
		Interval: 5 * time.Millisecond,
		Timeout:  time.Minute,
		Checker:  sequence(&calls, models.PaymentStatusPending),
	}

	watch := p.Start(context.Background(), uuid.New())
	time.Sleep(20 * time.Millisecond)
	watch.Stop()
	watch.Stop()

	require.Equal(t, poller.OutcomeCanceled, watch.Result().Outcome)

	seen := calls.Load()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, seen, calls.Load())
}

func TestPoller_WhenContextCanceled_ShouldEndWatch(t *testing.T) {
	var calls atomic.Int32
	p := &poller.Poller{
		Interval: 5 * time.Millisecond,
		Timeout:  time.Minute,
		Checker:  sequence(&calls, models.PaymentStatusPending),
	}

	ctx, cancel := context.WithCancel(context.Background())
	watch := p.Start(ctx, uuid.New())
	cancel()

	select {
	case <-watch.Done():
	case <-time.After(time.Second):
		t.Fatal("watch did not end")
	}
	require.Equal(t, poller.OutcomeCanceled, watch.Result().Outcome)
}

func TestPoller_CheckErrors_ShouldKeepPolling(t *testing.T) {
	var calls atomic.Int32
	checker := poller.CheckerFunc(func(context.Context, uuid.UUID) (models.PaymentStatus, error) {
		if calls.Add(1) < 3 {
			return "", errors.New("connection refused")
		}
		return models.PaymentStatusCompleted, nil
	})
	p := &poller.Poller{Interval: 5 * time.Millisecond, Timeout: time.Second, Checker: checker}

	result := p.Start(context.Background(), uuid.New()).Result()

	require.Equal(t, poller.OutcomeCompleted, result.Outcome)
	require.NoError(t, result.Err)
	require.EqualValues(t, 3, calls.Load())
}

func TestPoller_TimeoutAfterErrors_ShouldReportLastError(t *testing.T) {
	p := &poller.Poller{
		Interval: 5 * time.Millisecond,
		Timeout:  30 * time.Millisecond,
		Checker: poller.CheckerFunc(func(context.Context, uuid.UUID) (models.PaymentStatus, error) {
			return "", errors.New("bad gateway")
		}),
	}

	result := p.Start(context.Background(), uuid.New()).Result()

	require.Equal(t, poller.OutcomeTimeout, result.Outcome)
	require.EqualError(t, result.Err, "bad gateway")
}

func TestHTTPChecker_Check(t *testing.T) {
	paymentID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/payments/status", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"error":"invalid token"}`))
			return
		}

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, paymentID.String(), body["paymentId"])

		_, _ = w.Write([]byte(`{"success":true,"payment":{"status":"completed"}}`))
	}))
	defer srv.Close()

	status, err := poller.NewHTTPChecker(srv.URL+"/", "good-token").Check(context.Background(), paymentID)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusCompleted, status)

	_, err = poller.NewHTTPChecker(srv.URL, "stale").Check(context.Background(), paymentID)
	require.ErrorContains(t, err, "status 401")
	require.ErrorContains(t, err, "invalid token")
}
