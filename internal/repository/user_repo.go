package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"kursbot/internal/models"
)

// UserRepository handles all user database operations.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

// FindByID finds a user by primary key.
func (r *UserRepository) FindByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByTelegramID finds a user by Telegram chat ID.
func (r *UserRepository) FindByTelegramID(telegramID string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByReferralCode finds a user owning the given referral code.
func (r *UserRepository) FindByReferralCode(code string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("referral_code = ?", code).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Exists reports whether a user with the Telegram ID is registered.
func (r *UserRepository) Exists(telegramID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.User{}).Where("telegram_id = ?", telegramID).Count(&count).Error
	return count > 0, err
}

// PhoneTaken reports whether another user already registered the number.
func (r *UserRepository) PhoneTaken(phone string, excludeID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.User{}).
		Where("phone_number = ? AND id <> ?", phone, excludeID).
		Count(&count).Error
	return count > 0, err
}

// Create inserts a new user.
func (r *UserRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// CreateWithReferrer inserts a new user and, when invited_by is set,
// recounts the inviter in the same transaction so the cached counter
// never lags behind the linkage.
func (r *UserRepository) CreateWithReferrer(user *models.User) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		if user.InvitedByID != nil {
			return r.WithTx(tx).RecountReferrals(*user.InvitedByID)
		}
		return nil
	})
}

// Update updates user fields by primary key.
func (r *UserRepository) Update(id uint, updates map[string]interface{}) error {
	return r.db.Model(&models.User{}).Where("id = ?", id).Updates(updates).Error
}

// UpdateStep moves the user's bot dialog to a new step.
func (r *UserRepository) UpdateStep(id uint, step string) error {
	return r.db.Model(&models.User{}).Where("id = ?", id).Update("step", step).Error
}

// UpdateLevel sets the user's stage token.
func (r *UserRepository) UpdateLevel(id uint, levelToken string) error {
	return r.db.Model(&models.User{}).Where("id = ?", id).Update("level", levelToken).Error
}

// SetInvitedBy reassigns the referral linkage.
func (r *UserRepository) SetInvitedBy(id uint, invitedByID *uint) error {
	return r.db.Model(&models.User{}).Where("id = ?", id).Update("invited_by_id", invitedByID).Error
}

// IncrementReferralCount bumps the cached counter by one. Only the
// payment-confirmation credit uses this; linkage changes recount instead.
func (r *UserRepository) IncrementReferralCount(id uint) error {
	return r.db.Model(&models.User{}).Where("id = ?", id).
		Update("referral_count", gorm.Expr("referral_count + ?", 1)).Error
}

// CountDirectInvitees counts users whose invited_by points at the given user.
func (r *UserRepository) CountDirectInvitees(id uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).Where("invited_by_id = ?", id).Count(&count).Error
	return count, err
}

// CountConfirmedInvitees counts direct invitees who are confirmed.
func (r *UserRepository) CountConfirmedInvitees(id uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).
		Where("invited_by_id = ? AND is_confirmed = ?", id, true).Count(&count).Error
	return count, err
}

// FindInvitees returns a page of the user's direct invitees, newest
// first, plus the total count.
func (r *UserRepository) FindInvitees(id uint, limit, offset int) ([]models.User, int64, error) {
	var total int64
	err := r.db.Model(&models.User{}).Where("invited_by_id = ?", id).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	var users []models.User
	err = r.db.Where("invited_by_id = ?", id).
		Order("created_at DESC").Limit(limit).Offset(offset).Find(&users).Error
	return users, total, err
}

// FindInvitedByAny returns every user whose inviter is in the given set.
func (r *UserRepository) FindInvitedByAny(ids []uint) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	err := r.db.Where("invited_by_id IN ?", ids).Order("id ASC").Find(&users).Error
	return users, err
}

// RecountReferrals recomputes referral_count from the invited_by set.
// Used by every path that changes linkage, so concurrent edits cannot
// drift the counter.
func (r *UserRepository) RecountReferrals(id uint) error {
	count, err := r.CountDirectInvitees(id)
	if err != nil {
		return fmt.Errorf("count invitees of user %d: %w", id, err)
	}
	return r.db.Model(&models.User{}).Where("id = ?", id).Update("referral_count", count).Error
}

// FindConfirmed returns all confirmed, unblocked users.
func (r *UserRepository) FindConfirmed() ([]models.User, error) {
	var users []models.User
	err := r.db.Where("is_confirmed = ? AND is_blocked = ?", true, false).Find(&users).Error
	return users, err
}

// FindAdmins returns all admin users.
func (r *UserRepository) FindAdmins() ([]models.User, error) {
	var users []models.User
	err := r.db.Where("is_admin = ?", true).Find(&users).Error
	return users, err
}

// TopAdminByReferralCount returns the admin with the most referrals, the
// designated fallback referrer for sweep auto-assignment.
func (r *UserRepository) TopAdminByReferralCount() (*models.User, error) {
	var user models.User
	err := r.db.Where("is_admin = ?", true).
		Order("referral_count DESC").
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindAll returns users with pagination and optional search.
func (r *UserRepository) FindAll(limit, page int, query string) ([]models.User, int64, error) {
	var users []models.User
	var total int64

	db := r.db.Model(&models.User{})
	if query != "" {
		search := "%" + query + "%"
		db = db.Where("telegram_id LIKE ? OR full_name LIKE ? OR phone_number LIKE ? OR telegram_username LIKE ?",
			search, search, search, search)
	}

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

	if err := db.Limit(limit).Offset(offset).Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// IsNotFound reports whether err is the store's missing-record error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
