package poller

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/coursepay/internal/models"
)

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeCanceled  Outcome = "canceled"
)

const (
	DefaultInterval = 3 * time.Second
	DefaultTimeout  = 10 * time.Minute
)

// Checker asks the server for the current status of a payment.
type Checker interface {
	Check(ctx context.Context, paymentID uuid.UUID) (models.PaymentStatus, error)
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, paymentID uuid.UUID) (models.PaymentStatus, error)

func (f CheckerFunc) Check(ctx context.Context, paymentID uuid.UUID) (models.PaymentStatus, error) {
	return f(ctx, paymentID)
}

// Result is how a watch ended. Status is the last status the server reported;
// Err is the last check error, if any.
type Result struct {
	Outcome Outcome
	Status  models.PaymentStatus
	Err     error
}

// Poller checks a payment on a fixed interval until it settles or the timeout passes.
// A timeout only ends the watch; the payment itself stays pending on the server.
type Poller struct {
	Interval time.Duration
	Timeout  time.Duration
	Checker  Checker
	Log      *zap.SugaredLogger
}

// Watch is one running poll loop.
type Watch struct {
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	result   Result
}

// Start begins watching paymentID. Cancelling ctx behaves like Stop.
func (p *Poller) Start(ctx context.Context, paymentID uuid.UUID) *Watch {
	ctx, cancel := context.WithCancel(ctx)
	w := &Watch{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go w.run(ctx, p, paymentID)
	return w
}

// Stop cancels the watch and waits for the loop to exit.
func (w *Watch) Stop() {
	w.stopOnce.Do(w.cancel)
	<-w.done
}

// Done is closed once the watch has ended.
func (w *Watch) Done() <-chan struct{} {
	return w.done
}

// Result blocks until the watch ends and returns its outcome.
func (w *Watch) Result() Result {
	<-w.done
	return w.result
}

func (w *Watch) run(ctx context.Context, p *Poller, paymentID uuid.UUID) {
	defer close(w.done)
	defer w.stopOnce.Do(w.cancel)

	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	log = log.With("payment_id", paymentID.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	status := models.PaymentStatusPending
	var lastErr error

	for {
		select {
		case <-ctx.Done():
			w.result = Result{Outcome: OutcomeCanceled, Status: status, Err: lastErr}
			return
		case <-deadline.C:
			log.Infow("payment verification timed out", "timeout", timeout)
			w.result = Result{Outcome: OutcomeTimeout, Status: status, Err: lastErr}
			return
		case <-ticker.C:
		}

		current, err := p.Checker.Check(ctx, paymentID)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			lastErr = err
			log.Warnw("payment status check failed", "error", err)
			continue
		}
		status = current

		switch current {
		case models.PaymentStatusCompleted:
			w.result = Result{Outcome: OutcomeCompleted, Status: current}
			return
		case models.PaymentStatusFailed:
			w.result = Result{Outcome: OutcomeFailed, Status: current}
			return
		}
	}
}
