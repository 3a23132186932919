package services

import (
	"errors"
	"fmt"
)

var (
	ErrCourseNotFound    = errors.New("course not found or not published")
	ErrAlreadyEnrolled   = errors.New("user is already enrolled in this course")
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrMissingIdentifier = errors.New("either payment id or order id is required")
	ErrInvalidSignature  = errors.New("invalid webhook signature")
	ErrFreeCourse        = errors.New("course is free, enroll directly")
	ErrPaidCourse        = errors.New("course requires payment")
	ErrCodeInvalid       = errors.New("activation code not found")
	ErrCodeUsed          = errors.New("activation code has already been used")
	ErrCodeExpired       = errors.New("activation code has expired")
	ErrUnsupportedMethod = errors.New("unsupported payment method")
	ErrUnsupportedEvent  = errors.New("unsupported webhook event type")
	ErrInvalidPayload    = errors.New("invalid webhook payload")
)

// Gateway call steps, used in GatewayError and log fields.
const (
	StepAuth       = "auth"
	StepOrder      = "order"
	StepPaymentKey = "payment_key"
	StepInquiry    = "inquiry"
)

// GatewayError is a failed call to Paymob. Status is zero for transport errors.
type GatewayError struct {
	Step   string
	Status int
	Body   string
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("paymob %s failed: status %d", e.Step, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("paymob %s failed: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("paymob %s failed", e.Step)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IsGatewayError reports whether err wraps a *GatewayError.
func IsGatewayError(err error) bool {
	var gwErr *GatewayError
	return errors.As(err, &gwErr)
}
