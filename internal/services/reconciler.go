package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/coursepay/internal/config"
	"github.com/example/coursepay/internal/logging"
	"github.com/example/coursepay/internal/models"
)

const (
	WebhookTypeTransaction = "TRANSACTION"
	ProviderPaymob         = "paymob"

	SourceWebhook = "webhook"
	SourcePoll    = "poll"
	SourceSweep   = "sweep"
)

// WebhookEnvelope is the body Paymob posts to the processed callback URL.
type WebhookEnvelope struct {
	Type string          `json:"type"`
	Obj  json.RawMessage `json:"obj"`
}

// WebhookResult describes what a webhook delivery did.
type WebhookResult struct {
	PaymentID uuid.UUID
	Status    models.PaymentStatus
	Changed   bool
}

// PollQuery identifies a payment by internal id or gateway order id.
type PollQuery struct {
	PaymentID uuid.UUID
	OrderID   string
}

// PaymentNotification is sent once a payment reaches completed.
type PaymentNotification struct {
	PaymentID   uuid.UUID
	OrderID     string
	UserID      uuid.UUID
	CourseID    uuid.UUID
	CourseTitle string
	Amount      float64
	Currency    string
	Method      models.PaymentMethod
	Source      string
}

type PaymentNotifier interface {
	NotifyPaymentCompleted(ctx context.Context, n PaymentNotification) error
}

// Reconciler moves payments out of pending from webhook pushes, client polls
// and the background sweep. All three share apply.
type Reconciler struct {
	db       *gorm.DB
	gateway  Gateway
	hmac     *PaymobHMAC
	verify   bool
	notifier PaymentNotifier
	log      *zap.SugaredLogger
	now      func() time.Time

	notifyWG sync.WaitGroup
}

// NewReconciler wires the reconciler. notifier may be nil.
func NewReconciler(db *gorm.DB, gateway Gateway, cfg config.PaymobConfig, notifier PaymentNotifier, log *zap.SugaredLogger) *Reconciler {
	return &Reconciler{
		db:       db,
		gateway:  gateway,
		hmac:     NewPaymobHMAC(cfg.HMACSecret),
		verify:   cfg.VerifyHMAC(),
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// MapOutcome turns a gateway transaction into the status it implies.
// success=true completes, success=false or the error flag fails, and a
// transaction without a success flag says nothing, so it stays pending.
func MapOutcome(txn Transaction) models.PaymentStatus {
	switch {
	case txn.Success != nil && *txn.Success:
		return models.PaymentStatusCompleted
	case txn.Success != nil, txn.ErrorOccured:
		return models.PaymentStatusFailed
	default:
		return models.PaymentStatusPending
	}
}

// HandleWebhook authenticates and applies one gateway callback.
func (r *Reconciler) HandleWebhook(ctx context.Context, env WebhookEnvelope, signature string) (*WebhookResult, error) {
	if r.verify && !r.hmac.Verify(env.Obj, signature) {
		r.log.Warnw("webhook signature rejected", logging.Step(SourceWebhook), "has_signature", signature != "")
		return nil, ErrInvalidSignature
	}

	if !strings.EqualFold(env.Type, WebhookTypeTransaction) {
		r.log.Infow("webhook ignored", logging.Step(SourceWebhook), "type", env.Type)
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEvent, env.Type)
	}

	txn, err := ParseTransaction(env.Obj)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	orderID := txn.Order.ID.String()
	if orderID == "" {
		return nil, fmt.Errorf("%w: missing order id", ErrInvalidPayload)
	}

	log := r.log.With(logging.Step(SourceWebhook), logging.OrderID(orderID), "transaction_id", txn.ID.String())

	var payment models.Payment
	err = r.db.WithContext(ctx).Where("paymob_order_id = ?", orderID).First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warnw("webhook for unknown order")
		r.recordEvent(ctx, env, txn, nil, models.WebhookResultIgnored, ErrPaymentNotFound)
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load payment: %w", err)
	}

	changed, err := r.apply(ctx, &payment, MapOutcome(txn), txn, SourceWebhook)
	if err != nil {
		log.Errorw("failed to apply webhook", logging.PaymentID(payment.ID), "error", err)
		r.recordEvent(ctx, env, txn, &payment.ID, models.WebhookResultError, err)
		return nil, err
	}

	result := models.WebhookResultProcessed
	if !changed {
		result = models.WebhookResultIgnored
	}
	r.recordEvent(ctx, env, txn, &payment.ID, result, nil)

	log.Infow("webhook handled", logging.PaymentID(payment.ID), "status", payment.Status, "changed", changed)
	return &WebhookResult{PaymentID: payment.ID, Status: payment.Status, Changed: changed}, nil
}

// Poll returns the caller's payment, refreshing it from the gateway while it
// is still pending. Refresh failures are logged and the stored state returned.
func (r *Reconciler) Poll(ctx context.Context, userID uuid.UUID, q PollQuery) (*models.Payment, error) {
	if q.PaymentID == uuid.Nil && strings.TrimSpace(q.OrderID) == "" {
		return nil, ErrMissingIdentifier
	}

	payment, err := r.findOwned(ctx, userID, q)
	if err != nil {
		return nil, err
	}

	if payment.Status == models.PaymentStatusPending && payment.OrderRef() != "" {
		refreshed, err := r.refresh(ctx, payment, SourcePoll)
		if err != nil {
			r.log.Warnw("payment refresh failed",
				logging.Step(SourcePoll),
				logging.PaymentID(payment.ID),
				logging.OrderID(payment.OrderRef()),
				"error", err,
			)
		} else {
			payment = refreshed
		}
	}

	return payment, nil
}

// Refresh asks the gateway about a pending payment and applies the answer.
func (r *Reconciler) Refresh(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	return r.refresh(ctx, payment, SourceSweep)
}

func (r *Reconciler) refresh(ctx context.Context, payment *models.Payment, source string) (*models.Payment, error) {
	if payment.Status.IsTerminal() || payment.OrderRef() == "" {
		return payment, nil
	}

	txn, err := r.gateway.InquireTransaction(ctx, payment.OrderRef())
	if err != nil {
		return nil, err
	}

	outcome := MapOutcome(txn)
	if outcome == models.PaymentStatusPending {
		return payment, nil
	}

	if _, err := r.apply(ctx, payment, outcome, txn, source); err != nil {
		return nil, err
	}

	var reloaded models.Payment
	if err := r.db.WithContext(ctx).Preload("Course").First(&reloaded, "id = ?", payment.ID).Error; err != nil {
		return nil, fmt.Errorf("reload payment: %w", err)
	}
	return &reloaded, nil
}

func (r *Reconciler) findOwned(ctx context.Context, userID uuid.UUID, q PollQuery) (*models.Payment, error) {
	query := r.db.WithContext(ctx).Preload("Course").Where("user_id = ?", userID)
	if q.PaymentID != uuid.Nil {
		query = query.Where("id = ?", q.PaymentID)
	} else {
		query = query.Where("paymob_order_id = ?", strings.TrimSpace(q.OrderID))
	}

	var payment models.Payment
	err := query.First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load payment: %w", err)
	}
	return &payment, nil
}

// apply moves payment to outcome if it is still pending. It reports whether
// this call made the transition. A completed payment always ends with an
// enrollment, also when another caller made the transition first.
func (r *Reconciler) apply(ctx context.Context, payment *models.Payment, outcome models.PaymentStatus, txn Transaction, source string) (bool, error) {
	if outcome == models.PaymentStatusPending {
		return false, nil
	}

	log := r.log.With(logging.Step(source), logging.PaymentID(payment.ID), logging.OrderID(payment.OrderRef()))
	now := r.now()
	changed := false
	current := payment.Status

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if !models.PaymentStatusPending.CanTransition(outcome) {
			return fmt.Errorf("invalid outcome %q", outcome)
		}

		data, err := mergePaymentData(payment.PaymentData, source, outcome, txn, now)
		if err != nil {
			return err
		}

		updates := map[string]any{
			"status":                outcome,
			"paymob_transaction_id": txn.ID.String(),
			"payment_data":          data,
			"updated_at":            now,
		}
		if outcome == models.PaymentStatusCompleted {
			updates["completed_at"] = now
		}

		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentStatusPending).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("update payment: %w", res.Error)
		}
		changed = res.RowsAffected == 1

		if changed {
			current = outcome
		} else {
			var stored models.Payment
			if err := tx.Select("status").First(&stored, "id = ?", payment.ID).Error; err != nil {
				return fmt.Errorf("reload payment status: %w", err)
			}
			current = stored.Status
		}

		if current != models.PaymentStatusCompleted {
			return nil
		}
		return upsertPurchaseEnrollment(tx, payment, now)
	})
	if err != nil {
		return false, err
	}

	payment.Status = current
	if changed {
		log.Infow("payment status changed", "status", current)
		if current == models.PaymentStatusCompleted {
			payment.CompletedAt = &now
			r.notifyCompleted(*payment, source)
		}
	} else if current != outcome {
		log.Warnw("outcome ignored for terminal payment", "status", current, "outcome", outcome)
	}

	return changed, nil
}

func upsertPurchaseEnrollment(tx *gorm.DB, payment *models.Payment, now time.Time) error {
	paymentID := payment.ID
	enrollment := models.Enrollment{
		StudentID:      payment.UserID,
		CourseID:       payment.CourseID,
		PaymentID:      &paymentID,
		EnrollmentType: models.EnrollmentTypePurchase,
		PaymentStatus:  models.PaymentStatusCompleted,
		EnrolledAt:     now,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}, {Name: "course_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payment_id", "enrollment_type", "payment_status", "updated_at"}),
	}).Create(&enrollment).Error
	if err != nil {
		return fmt.Errorf("upsert enrollment: %w", err)
	}
	return nil
}

func mergePaymentData(existing datatypes.JSON, source string, outcome models.PaymentStatus, txn Transaction, now time.Time) (datatypes.JSON, error) {
	data := map[string]any{}
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &data); err != nil {
			data = map[string]any{"previous": json.RawMessage(existing)}
		}
	}

	if len(txn.Raw) > 0 {
		data["transaction_data"] = json.RawMessage(txn.Raw)
	}
	data["resolved_by"] = source
	data["last_checked"] = now.UTC().Format(time.RFC3339)
	if outcome == models.PaymentStatusCompleted {
		data["verified_at"] = now.UTC().Format(time.RFC3339)
	} else {
		data["failed_at"] = now.UTC().Format(time.RFC3339)
	}

	merged, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal payment data: %w", err)
	}
	return datatypes.JSON(merged), nil
}

func (r *Reconciler) recordEvent(ctx context.Context, env WebhookEnvelope, txn Transaction, paymentID *uuid.UUID, result string, cause error) {
	event := models.PaymentWebhookEvent{
		Provider:      ProviderPaymob,
		EventType:     env.Type,
		TransactionID: txn.ID.String(),
		OrderID:       txn.Order.ID.String(),
		PaymentID:     paymentID,
		Payload:       datatypes.JSON(env.Obj),
		Result:        result,
		ReceivedAt:    r.now(),
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	if err := r.db.WithContext(ctx).Create(&event).Error; err != nil {
		r.log.Warnw("failed to record webhook event", logging.Step(SourceWebhook), "error", err)
	}
}

func (r *Reconciler) notifyCompleted(payment models.Payment, source string) {
	if r.notifier == nil {
		return
	}

	r.notifyWG.Add(1)
	go func() {
		defer r.notifyWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		title := ""
		var course models.Course
		if err := r.db.WithContext(ctx).Select("title_en").First(&course, "id = ?", payment.CourseID).Error; err == nil {
			title = course.TitleEn
		}

		err := r.notifier.NotifyPaymentCompleted(ctx, PaymentNotification{
			PaymentID:   payment.ID,
			OrderID:     payment.OrderRef(),
			UserID:      payment.UserID,
			CourseID:    payment.CourseID,
			CourseTitle: title,
			Amount:      payment.Amount.InexactFloat64(),
			Currency:    payment.Currency,
			Method:      payment.PaymentMethod,
			Source:      source,
		})
		if err != nil {
			r.log.Warnw("payment notification failed", logging.PaymentID(payment.ID), "error", err)
		}
	}()
}

// Wait blocks until in-flight notifications have finished.
func (r *Reconciler) Wait() {
	r.notifyWG.Wait()
}
