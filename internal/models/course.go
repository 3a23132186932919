package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Course is the purchasable item. Catalog management lives elsewhere;
// checkout only reads it.
type Course struct {
	BaseModel
	TeacherID          uuid.UUID       `gorm:"type:uuid;index" json:"teacher_id"`
	TitleEn            string          `json:"title_en"`
	TitleAr            string          `json:"title_ar"`
	ShortDescriptionEn string          `json:"short_description_en"`
	Price              decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"price"`
	IsPublished        bool            `gorm:"index" json:"is_published"`
}

// IsFree reports whether the course can be enrolled in without payment.
func (c Course) IsFree() bool {
	return !c.Price.IsPositive()
}

// CourseSummary is the course shape embedded in payment status responses.
type CourseSummary struct {
	ID      uuid.UUID `json:"id"`
	TitleEn string    `json:"title_en"`
	TitleAr string    `json:"title_ar"`
	Price   float64   `json:"price"`
}

func (c Course) Summary() CourseSummary {
	return CourseSummary{
		ID:      c.ID,
		TitleEn: c.TitleEn,
		TitleAr: c.TitleAr,
		Price:   c.Price.InexactFloat64(),
	}
}
