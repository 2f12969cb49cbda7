package repository

import (
	"time"

	"gorm.io/gorm"

	"kursbot/internal/models"
)

// PaymentRepository handles course payment database operations.
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) WithTx(tx *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: tx}
}

// Create inserts a new payment.
func (r *PaymentRepository) Create(payment *models.Payment) error {
	return r.db.Create(payment).Error
}

// FindByID returns a payment with payer and course preloaded.
func (r *PaymentRepository) FindByID(id uint) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.Preload("User").Preload("Course").First(&payment, id).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByStatus returns payments in a given status with pagination.
func (r *PaymentRepository) FindByStatus(status string, limit, page int) ([]models.Payment, int64, error) {
	var payments []models.Payment
	var total int64

	db := r.db.Model(&models.Payment{}).Where("status = ?", status)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	err := db.Preload("User").Preload("Course").
		Limit(limit).Offset(offset).Order("created_at DESC").
		Find(&payments).Error
	if err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// TransitionFromPending moves a PENDING payment into a terminal status.
// The WHERE guard serializes concurrent reviewers: the second writer
// matches zero rows and gets false back.
func (r *PaymentRepository) TransitionFromPending(id uint, updates map[string]interface{}) (bool, error) {
	res := r.db.Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.PaymentStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ResetToPending moves a terminal payment back to PENDING, clearing the
// decision fields so a later confirmation re-arms its side effects.
func (r *PaymentRepository) ResetToPending(id uint) (bool, error) {
	res := r.db.Model(&models.Payment{}).
		Where("id = ? AND status IN ?", id, []string{models.PaymentStatusConfirmed, models.PaymentStatusRejected}).
		Updates(map[string]interface{}{
			"status":           models.PaymentStatusPending,
			"confirmed_by_id":  nil,
			"confirmed_at":     nil,
			"rejection_reason": "",
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetScreenshot stores the Telegram file id of the submitted receipt and
// the generated name it is archived under.
func (r *PaymentRepository) SetScreenshot(id uint, fileID, storageName string) error {
	return r.db.Model(&models.Payment{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"screenshot":      fileID,
			"screenshot_name": storageName,
		}).Error
}

// SetReviewMessage stores the delivery handle of the admin review prompt.
func (r *PaymentRepository) SetReviewMessage(id uint, chatID string, messageID int) error {
	return r.db.Model(&models.Payment{}).Where("id = ?", id).Updates(map[string]interface{}{
		"review_chat_id":    chatID,
		"review_message_id": messageID,
	}).Error
}

// FindStalePending returns PENDING payments submitted before the cutoff.
func (r *PaymentRepository) FindStalePending(cutoff time.Time) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.Preload("User").
		Where("status = ? AND created_at <= ?", models.PaymentStatusPending, cutoff).
		Order("created_at ASC").
		Find(&payments).Error
	return payments, err
}
