package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/coursepay/internal/models"
)

// ListPayments returns one page of the user's payments, newest first, and the total count.
func (s *CheckoutService) ListPayments(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Payment, int64, error) {
	query := s.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("user_id = ?", userID).
		Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}

	var payments []models.Payment
	err := query.Preload("Course").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&payments).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	return payments, total, nil
}
