package repository

import (
	"gorm.io/gorm"

	"kursbot/internal/models"
)

// ReferralPaymentRepository handles referral-bonus payment database operations.
type ReferralPaymentRepository struct {
	db *gorm.DB
}

func NewReferralPaymentRepository(db *gorm.DB) *ReferralPaymentRepository {
	return &ReferralPaymentRepository{db: db}
}

func (r *ReferralPaymentRepository) WithTx(tx *gorm.DB) *ReferralPaymentRepository {
	return &ReferralPaymentRepository{db: tx}
}

// Create inserts a new referral payment.
func (r *ReferralPaymentRepository) Create(payment *models.ReferralPayment) error {
	return r.db.Create(payment).Error
}

// FindByID returns a referral payment with payer and beneficiary preloaded.
func (r *ReferralPaymentRepository) FindByID(id uint) (*models.ReferralPayment, error) {
	var payment models.ReferralPayment
	err := r.db.Preload("User").Preload("Referrer").First(&payment, id).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindPendingByUser returns the payer's open referral payment, if any.
func (r *ReferralPaymentRepository) FindPendingByUser(userID uint) (*models.ReferralPayment, error) {
	var payment models.ReferralPayment
	err := r.db.Where("user_id = ? AND status = ?", userID, models.PaymentStatusPending).
		Order("created_at DESC").
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByStatus returns referral payments in a given status with pagination.
func (r *ReferralPaymentRepository) FindByStatus(status string, limit, page int) ([]models.ReferralPayment, int64, error) {
	var payments []models.ReferralPayment
	var total int64

	db := r.db.Model(&models.ReferralPayment{}).Where("status = ?", status)
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

	err := db.Preload("User").Preload("Referrer").
		Limit(limit).Offset(offset).Order("created_at DESC").
		Find(&payments).Error
	if err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// TransitionFromPending moves a PENDING referral payment into a terminal
// status, serializing concurrent reviewers via the WHERE guard.
func (r *ReferralPaymentRepository) TransitionFromPending(id uint, updates map[string]interface{}) (bool, error) {
	res := r.db.Model(&models.ReferralPayment{}).
		Where("id = ? AND status = ?", id, models.PaymentStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ResetToPending moves a terminal referral payment back to PENDING.
func (r *ReferralPaymentRepository) ResetToPending(id uint) (bool, error) {
	res := r.db.Model(&models.ReferralPayment{}).
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
func (r *ReferralPaymentRepository) SetScreenshot(id uint, fileID, storageName string) error {
	return r.db.Model(&models.ReferralPayment{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"screenshot":      fileID,
			"screenshot_name": storageName,
		}).Error
}

// SetReviewMessage stores the delivery handle of the review prompt sent to
// the beneficiary.
func (r *ReferralPaymentRepository) SetReviewMessage(id uint, chatID string, messageID int) error {
	return r.db.Model(&models.ReferralPayment{}).Where("id = ?", id).Updates(map[string]interface{}{
		"review_chat_id":    chatID,
		"review_message_id": messageID,
	}).Error
}
