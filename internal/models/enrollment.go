package models

import (
	"time"

	"github.com/google/uuid"
)

type EnrollmentType string

const (
	EnrollmentTypeFree     EnrollmentType = "free"
	EnrollmentTypePurchase EnrollmentType = "purchase"
	EnrollmentTypeVoucher  EnrollmentType = "voucher"
)

// Enrollment grants a student access to a course. The composite unique
// index is the authoritative guard against double enrollment.
type Enrollment struct {
	BaseModel
	StudentID        uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_enrollments_student_course" json:"student_id"`
	CourseID         uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_enrollments_student_course" json:"course_id"`
	PaymentID        *uuid.UUID     `gorm:"type:uuid" json:"payment_id"`
	ActivationCodeID *uuid.UUID     `gorm:"type:uuid" json:"activation_code_id"`
	EnrollmentType   EnrollmentType `gorm:"size:16" json:"enrollment_type"`
	PaymentStatus    PaymentStatus  `gorm:"size:16" json:"payment_status"`
	Progress         int            `gorm:"not null;default:0" json:"progress"`
	CompletedLessons int            `gorm:"not null;default:0" json:"completed_lessons"`
	EnrolledAt       time.Time      `json:"enrolled_at"`
	CompletedAt      *time.Time     `json:"completed_at"`
}
