// Package testutil provides shared helpers for repository, engine and
// workflow tests: an in-memory database and a recording notifier.
package testutil

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"kursbot/internal/models"
)

// NewDB opens a fresh in-memory sqlite database with the full schema.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Course{},
		&models.CourseParticipation{},
		&models.Payment{},
		&models.ReferralPayment{},
		&models.ReferrerTicket{},
		&models.MandatoryChannel{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// SeedUser inserts a user and returns it with the generated ID set.
func SeedUser(t *testing.T, db *gorm.DB, user *models.User) *models.User {
	t.Helper()
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user %s: %v", user.FullName, err)
	}
	return user
}

// SeedCourse inserts a course.
func SeedCourse(t *testing.T, db *gorm.DB, course *models.Course) *models.Course {
	t.Helper()
	if err := db.Create(course).Error; err != nil {
		t.Fatalf("seed course %s: %v", course.Name, err)
	}
	return course
}
