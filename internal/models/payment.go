package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// IsTerminal reports whether no further transition is defined.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

// CanTransition allows only pending -> completed and pending -> failed.
func (s PaymentStatus) CanTransition(to PaymentStatus) bool {
	return s == PaymentStatusPending && to.IsTerminal()
}

type PaymentMethod string

const (
	PaymentMethodCard    PaymentMethod = "card"
	PaymentMethodVoucher PaymentMethod = "voucher"
)

// ParsePaymentMethod accepts the public method names; "fawry" is the
// gateway's name for the cash voucher route.
func ParsePaymentMethod(v string) (PaymentMethod, bool) {
	switch v {
	case "", string(PaymentMethodCard):
		return PaymentMethodCard, true
	case string(PaymentMethodVoucher), "fawry":
		return PaymentMethodVoucher, true
	default:
		return "", false
	}
}

// Payment is one checkout attempt against the gateway. Rows are never deleted.
type Payment struct {
	BaseModel
	UserID              uuid.UUID       `gorm:"type:uuid;index;not null" json:"user_id"`
	CourseID            uuid.UUID       `gorm:"type:uuid;index;not null" json:"course_id"`
	Course              *Course         `json:"course,omitempty"`
	Amount              decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
	AmountCents         int64           `gorm:"not null" json:"amount_cents"`
	Currency            string          `gorm:"size:3;not null" json:"currency"`
	PaymentMethod       PaymentMethod   `gorm:"size:16" json:"payment_method"`
	PaymobOrderID       *string         `gorm:"uniqueIndex" json:"paymob_order_id"`
	PaymobPaymentKey    string          `json:"-"`
	PaymobTransactionID string          `json:"paymob_transaction_id"`
	Status              PaymentStatus   `gorm:"size:16;index;not null;default:pending" json:"status"`
	PaymentData         datatypes.JSON  `json:"payment_data,omitempty"`
	CompletedAt         *time.Time      `json:"completed_at"`
	LastCheckedAt       *time.Time      `gorm:"index" json:"last_checked_at"`
}

// OrderRef returns the gateway order id or an empty string.
func (p Payment) OrderRef() string {
	if p.PaymobOrderID == nil {
		return ""
	}
	return *p.PaymobOrderID
}
