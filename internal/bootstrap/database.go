package bootstrap

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"kursbot/internal/level"
	"kursbot/internal/models"
	"kursbot/internal/repository"
)

// MigrateAndSeed ensures required tables exist and inserts baseline rows.
func MigrateAndSeed(db *gorm.DB, adminChatID string) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	if err := seedDefaults(db, adminChatID); err != nil {
		return fmt.Errorf("seed defaults failed: %w", err)
	}
	return nil
}

func allModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Course{},
		&models.CourseParticipation{},
		&models.Payment{},
		&models.ReferralPayment{},
		&models.ReferrerTicket{},
		&models.MandatoryChannel{},
	}
}

func seedDefaults(db *gorm.DB, adminChatID string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := ensureAdmin(tx, adminChatID); err != nil {
			return err
		}
		return ensureCourseCatalog(tx)
	})
}

// ensureAdmin promotes the configured admin chat to an admin account so
// the sweep always has a fallback referrer to fall back to.
func ensureAdmin(tx *gorm.DB, adminChatID string) error {
	adminChatID = strings.TrimSpace(adminChatID)
	if adminChatID == "" || strings.HasPrefix(adminChatID, "-") {
		return nil // group chats cannot be referrers
	}

	var admin models.User
	err := tx.Where("telegram_id = ?", adminChatID).First(&admin).Error
	if repository.IsNotFound(err) {
		admin = models.User{
			TelegramID:  adminChatID,
			FullName:    "Administrator",
			PhoneNumber: "admin-" + adminChatID,
			Level:       level.Token(level.MaxStage),
			IsAdmin:     true,
			IsConfirmed: true,
			Step:        "none",
		}
		return tx.Create(&admin).Error
	}
	if err != nil {
		return err
	}
	if !admin.IsAdmin {
		return tx.Model(&admin).Update("is_admin", true).Error
	}
	return nil
}

// ensureCourseCatalog creates placeholder courses for every stage when
// the catalog is empty, so a fresh install has a working funnel.
func ensureCourseCatalog(tx *gorm.DB) error {
	var count int64
	if err := tx.Model(&models.Course{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	// Fresh registrations start at stage 0, so the catalog covers 0..MaxStage.
	for stage := 0; stage <= level.MaxStage; stage++ {
		course := models.Course{
			Name:     fmt.Sprintf("%d-bosqich kursi", stage),
			Level:    level.Token(stage),
			IsActive: true,
		}
		if err := tx.Create(&course).Error; err != nil {
			return err
		}
	}
	return nil
}
