package models

import (
	"time"

	"github.com/google/uuid"
)

// ActivationCode is a single-use voucher that unlocks one course.
type ActivationCode struct {
	BaseModel
	Code      string     `gorm:"uniqueIndex;not null" json:"code"`
	CourseID  uuid.UUID  `gorm:"type:uuid;index;not null" json:"course_id"`
	CreatedBy uuid.UUID  `gorm:"type:uuid" json:"created_by"`
	ExpiresAt *time.Time `json:"expires_at"`
	IsUsed    bool       `gorm:"not null;default:false" json:"is_used"`
	UsedAt    *time.Time `json:"used_at"`
	UsedBy    *uuid.UUID `gorm:"type:uuid" json:"used_by"`
}

func (a ActivationCode) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && now.After(*a.ExpiresAt)
}
