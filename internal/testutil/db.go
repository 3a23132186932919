// Package testutil holds fixtures shared by package tests: a throwaway SQLite
// database and a fake Paymob API.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/coursepay/internal/config"
	"github.com/example/coursepay/internal/database"
	"github.com/example/coursepay/internal/logging"
	"github.com/example/coursepay/internal/models"
)

// NewDB opens a migrated SQLite database in the test's temp dir.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	cfg := &config.Config{
		DatabaseDriver:   database.DriverSQLite,
		DatabaseURL:      filepath.Join(t.TempDir(), "coursepay.db"),
		DatabaseLogLevel: "silent",
	}
	db, err := database.Connect(cfg, logging.Nop())
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// SeedCourse inserts a course with the given price in major units.
func SeedCourse(t testing.TB, db *gorm.DB, price string, published bool) models.Course {
	t.Helper()

	course := models.Course{
		TeacherID:          uuid.New(),
		TitleEn:            "Intro to Arabic Calligraphy",
		TitleAr:            "مقدمة في الخط العربي",
		ShortDescriptionEn: "Learn the basics of Naskh script",
		Price:              decimal.RequireFromString(price),
		IsPublished:        published,
	}
	require.NoError(t, db.Create(&course).Error)
	return course
}

// SeedEnrollment inserts an enrollment for the pair.
func SeedEnrollment(t testing.TB, db *gorm.DB, userID, courseID uuid.UUID, kind models.EnrollmentType) models.Enrollment {
	t.Helper()

	enrollment := models.Enrollment{
		StudentID:      userID,
		CourseID:       courseID,
		EnrollmentType: kind,
		PaymentStatus:  models.PaymentStatusCompleted,
	}
	require.NoError(t, db.Create(&enrollment).Error)
	return enrollment
}

// CountEnrollments counts rows for the pair.
func CountEnrollments(t testing.TB, db *gorm.DB, userID, courseID uuid.UUID) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(&models.Enrollment{}).
		Where("student_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error)
	return count
}

// ReloadPayment reads the payment row as stored.
func ReloadPayment(t testing.TB, db *gorm.DB, id uuid.UUID) models.Payment {
	t.Helper()

	var payment models.Payment
	require.NoError(t, db.First(&payment, "id = ?", id).Error)
	return payment
}
