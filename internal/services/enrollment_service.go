package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/coursepay/internal/logging"
	"github.com/example/coursepay/internal/models"
)

// EnrollmentService grants course access without a gateway payment.
type EnrollmentService struct {
	db  *gorm.DB
	log *zap.SugaredLogger
	now func() time.Time
}

func NewEnrollmentService(db *gorm.DB, log *zap.SugaredLogger) *EnrollmentService {
	return &EnrollmentService{db: db, log: log, now: time.Now}
}

// EnrollFree enrolls the user in a published course that costs nothing.
func (s *EnrollmentService) EnrollFree(ctx context.Context, userID, courseID uuid.UUID) (*models.Enrollment, error) {
	course, err := loadPublishedCourse(ctx, s.db, courseID)
	if err != nil {
		return nil, err
	}
	if !course.IsFree() {
		return nil, ErrPaidCourse
	}

	enrollment := models.Enrollment{
		StudentID:      userID,
		CourseID:       course.ID,
		EnrollmentType: models.EnrollmentTypeFree,
		PaymentStatus:  models.PaymentStatusCompleted,
		EnrolledAt:     s.now(),
	}
	if err := s.insertEnrollment(ctx, s.db, &enrollment); err != nil {
		return nil, err
	}

	s.log.Infow("free enrollment created", logging.Step("enroll_free"), logging.UserID(userID), "course_id", courseID.String())
	return &enrollment, nil
}

// RedeemCode spends a single-use activation code on its course.
func (s *EnrollmentService) RedeemCode(ctx context.Context, userID uuid.UUID, code string) (*models.Enrollment, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrCodeInvalid
	}

	var enrollment models.Enrollment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var activation models.ActivationCode
		err := tx.Where("code = ?", code).First(&activation).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCodeInvalid
		}
		if err != nil {
			return fmt.Errorf("load activation code: %w", err)
		}

		now := s.now()
		if activation.IsUsed {
			return ErrCodeUsed
		}
		if activation.Expired(now) {
			return ErrCodeExpired
		}

		if _, err := loadPublishedCourse(ctx, tx, activation.CourseID); err != nil {
			return err
		}

		res := tx.Model(&models.ActivationCode{}).
			Where("id = ? AND is_used = ?", activation.ID, false).
			Updates(map[string]any{
				"is_used":    true,
				"used_at":    now,
				"used_by":    userID,
				"updated_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("mark activation code used: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrCodeUsed
		}

		activationID := activation.ID
		enrollment = models.Enrollment{
			StudentID:        userID,
			CourseID:         activation.CourseID,
			ActivationCodeID: &activationID,
			EnrollmentType:   models.EnrollmentTypeVoucher,
			PaymentStatus:    models.PaymentStatusCompleted,
			EnrolledAt:       now,
		}
		return s.insertEnrollment(ctx, tx, &enrollment)
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("activation code redeemed", logging.Step("redeem"), logging.UserID(userID), "course_id", enrollment.CourseID.String())
	return &enrollment, nil
}

// ListForUser returns the user's enrollments, newest first.
func (s *EnrollmentService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	err := s.db.WithContext(ctx).
		Where("student_id = ?", userID).
		Order("enrolled_at DESC").
		Find(&enrollments).Error
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return enrollments, nil
}

// insertEnrollment checks for an existing row first; a concurrent insert that
// slips past the check is still stopped by the (student_id, course_id) index.
func (s *EnrollmentService) insertEnrollment(ctx context.Context, db *gorm.DB, enrollment *models.Enrollment) error {
	exists, err := isEnrolled(ctx, db, enrollment.StudentID, enrollment.CourseID)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyEnrolled
	}

	if err := db.WithContext(ctx).Create(enrollment).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return ErrAlreadyEnrolled
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate 23505")
}
