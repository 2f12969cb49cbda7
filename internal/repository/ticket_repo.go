package repository

import (
	"time"

	"gorm.io/gorm"

	"kursbot/internal/models"
)

// TicketRepository handles referrer-update ticket database operations.
type TicketRepository struct {
	db *gorm.DB
}

func NewTicketRepository(db *gorm.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

func (r *TicketRepository) WithTx(tx *gorm.DB) *TicketRepository {
	return &TicketRepository{db: tx}
}

// Create inserts a new ticket.
func (r *TicketRepository) Create(ticket *models.ReferrerTicket) error {
	return r.db.Create(ticket).Error
}

// HasOpen reports whether the user already has an unprocessed ticket, so
// repeated consistency checks do not pile up duplicates.
func (r *TicketRepository) HasOpen(userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.ReferrerTicket{}).
		Where("user_id = ? AND is_processed = ?", userID, false).
		Count(&count).Error
	return count > 0, err
}

// FindOpen returns every unprocessed ticket with both parties preloaded.
func (r *TicketRepository) FindOpen() ([]models.ReferrerTicket, error) {
	var tickets []models.ReferrerTicket
	err := r.db.Preload("User").Preload("Referrer").
		Where("is_processed = ?", false).
		Order("created_at ASC").
		Find(&tickets).Error
	return tickets, err
}

// FindDue returns unprocessed tickets created on or before the cutoff,
// with both parties preloaded.
func (r *TicketRepository) FindDue(cutoff time.Time) ([]models.ReferrerTicket, error) {
	var tickets []models.ReferrerTicket
	err := r.db.Preload("User").Preload("Referrer").
		Where("is_processed = ? AND created_at <= ?", false, cutoff).
		Order("created_at ASC").
		Find(&tickets).Error
	return tickets, err
}

// MarkProcessed closes a ticket with the given outcome status.
func (r *TicketRepository) MarkProcessed(id uint, status string) error {
	now := time.Now()
	return r.db.Model(&models.ReferrerTicket{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_processed": true,
		"status":       status,
		"processed_at": now,
	}).Error
}

// CloseOpenForUser resolves any open tickets for a user, used after a
// manual replacement makes them moot.
func (r *TicketRepository) CloseOpenForUser(userID uint, status string) error {
	now := time.Now()
	return r.db.Model(&models.ReferrerTicket{}).
		Where("user_id = ? AND is_processed = ?", userID, false).
		Updates(map[string]interface{}{
			"is_processed": true,
			"status":       status,
			"processed_at": now,
		}).Error
}
