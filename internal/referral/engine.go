// Package referral implements the referral-graph consistency engine: level
// comparisons between users and their referrers, referrer replacement, and
// the sweep that auto-assigns a fallback referrer after the grace window.
package referral

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"kursbot/internal/level"
	"kursbot/internal/models"
	"kursbot/internal/notify"
	"kursbot/internal/repository"
)

// Failure reasons returned in structured results.
const (
	ReasonNotFound     = "not_found"
	ReasonNotAdmin     = "not_admin"
	ReasonLevelTooLow  = "level_too_low"
	ReasonSelfReferral = "self_referral"
)

// Engine evaluates and repairs referral-level consistency.
type Engine struct {
	db       *gorm.DB
	users    *repository.UserRepository
	tickets  *repository.TicketRepository
	notifier notify.Notifier
	logger   *zap.Logger
	grace    time.Duration
}

func NewEngine(db *gorm.DB, notifier notify.Notifier, grace time.Duration, logger *zap.Logger) *Engine {
	return &Engine{
		db:       db,
		users:    repository.NewUserRepository(db),
		tickets:  repository.NewTicketRepository(db),
		notifier: notifier,
		logger:   logger,
		grace:    grace,
	}
}

// PartySnapshot captures one side of a consistency decision at check time.
type PartySnapshot struct {
	UserID     uint   `json:"user_id"`
	TelegramID string `json:"telegram_id"`
	FullName   string `json:"full_name"`
	Level      string `json:"level"`
}

func snapshot(u *models.User) *PartySnapshot {
	return &PartySnapshot{
		UserID:     u.ID,
		TelegramID: u.TelegramID,
		FullName:   u.FullName,
		Level:      u.Level,
	}
}

// ConsistencyResult is the outcome of CheckConsistency.
type ConsistencyResult struct {
	NeedsReplacement bool           `json:"needs_replacement"`
	Message          string         `json:"message"`
	User             *PartySnapshot `json:"user,omitempty"`
	Referrer         *PartySnapshot `json:"referrer,omitempty"`
}

// CheckConsistency compares a user's level against their referrer's.
// When the user has overtaken the referrer it warns the referrer, opens a
// grace-window ticket (unless one is already open) and reports that a
// replacement is needed. It never replaces anything by itself.
func (e *Engine) CheckConsistency(userID uint) (*ConsistencyResult, error) {
	user, err := e.users.FindByID(userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return &ConsistencyResult{NeedsReplacement: false, Message: "user not found"}, nil
		}
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}

	if user.InvitedByID == nil {
		return &ConsistencyResult{NeedsReplacement: false, Message: "user has no referrer"}, nil
	}

	referrer, err := e.users.FindByID(*user.InvitedByID)
	if err != nil {
		if repository.IsNotFound(err) {
			return &ConsistencyResult{NeedsReplacement: false, Message: "referrer not found"}, nil
		}
		return nil, fmt.Errorf("load referrer %d: %w", *user.InvitedByID, err)
	}

	if level.Compare(user.Level, referrer.Level) <= 0 {
		return &ConsistencyResult{NeedsReplacement: false, Message: "referrer level is sufficient"}, nil
	}

	// Inconsistent. Open a ticket unless one is already pending, then warn.
	hasOpen, err := e.tickets.HasOpen(user.ID)
	if err != nil {
		return nil, fmt.Errorf("check open tickets for user %d: %w", user.ID, err)
	}
	if !hasOpen {
		ticket := &models.ReferrerTicket{
			UserID:        user.ID,
			ReferrerID:    referrer.ID,
			UserLevel:     user.Level,
			ReferrerLevel: referrer.Level,
			Status:        models.TicketStatusPending,
		}
		if err := e.tickets.Create(ticket); err != nil {
			return nil, fmt.Errorf("create referrer ticket: %w", err)
		}
	}

	e.notifier.ReferrerWarning(referrer, user, int(e.grace.Hours()))

	return &ConsistencyResult{
		NeedsReplacement: true,
		Message:          "referrer needs to upgrade their level",
		User:             snapshot(user),
		Referrer:         snapshot(referrer),
	}, nil
}

// Candidate is one suitable replacement referrer.
type Candidate struct {
	UserID        uint   `json:"user_id"`
	TelegramID    string `json:"telegram_id"`
	FullName      string `json:"full_name"`
	Level         string `json:"level"`
	LevelOrdinal  int    `json:"level_ordinal"`
	ReferralCount int    `json:"referral_count"`
}

// FindSuitableReferrers ranks confirmed users whose level is at or above the
// given user's, preferring higher-leveled and more-active referrers.
// Advisory only; used by admin tooling.
func (e *Engine) FindSuitableReferrers(userID uint, limit int) ([]Candidate, error) {
	user, err := e.users.FindByID(userID)
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	userOrdinal := level.Ordinal(user.Level)

	confirmed, err := e.users.FindConfirmed()
	if err != nil {
		return nil, fmt.Errorf("scan confirmed users: %w", err)
	}

	var candidates []Candidate
	for i := range confirmed {
		c := &confirmed[i]
		if c.ID == user.ID {
			continue
		}
		ordinal := level.Ordinal(c.Level)
		if ordinal < userOrdinal {
			continue
		}
		candidates = append(candidates, Candidate{
			UserID:        c.ID,
			TelegramID:    c.TelegramID,
			FullName:      c.FullName,
			Level:         c.Level,
			LevelOrdinal:  ordinal,
			ReferralCount: c.ReferralCount,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].LevelOrdinal != candidates[j].LevelOrdinal {
			return candidates[i].LevelOrdinal > candidates[j].LevelOrdinal
		}
		return candidates[i].ReferralCount > candidates[j].ReferralCount
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// ReplaceResult is the outcome of a referrer replacement attempt.
type ReplaceResult struct {
	OK          bool           `json:"ok"`
	Reason      string         `json:"reason,omitempty"`
	Message     string         `json:"message"`
	NewReferrer *PartySnapshot `json:"new_referrer,omitempty"`
}

func replaceFailure(reason, message string) *ReplaceResult {
	return &ReplaceResult{OK: false, Reason: reason, Message: message}
}

// ReplaceReferrer reassigns a user's referrer on behalf of an admin.
// Both referral counters are recomputed inside the same transaction; when
// any precondition fails nothing is mutated.
func (e *Engine) ReplaceReferrer(userID, newReferrerID, actingAdminID uint) (*ReplaceResult, error) {
	admin, err := e.users.FindByID(actingAdminID)
	if err != nil {
		if repository.IsNotFound(err) {
			return replaceFailure(ReasonNotFound, "acting admin not found"), nil
		}
		return nil, fmt.Errorf("load admin %d: %w", actingAdminID, err)
	}
	if !admin.IsAdmin {
		return replaceFailure(ReasonNotAdmin, "acting user has no admin rights"), nil
	}

	user, err := e.users.FindByID(userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return replaceFailure(ReasonNotFound, "user not found"), nil
		}
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}

	newReferrer, err := e.users.FindByID(newReferrerID)
	if err != nil {
		if repository.IsNotFound(err) {
			return replaceFailure(ReasonNotFound, "new referrer not found"), nil
		}
		return nil, fmt.Errorf("load new referrer %d: %w", newReferrerID, err)
	}

	if newReferrer.ID == user.ID {
		return replaceFailure(ReasonSelfReferral, "a user cannot refer themselves"), nil
	}
	if level.Compare(newReferrer.Level, user.Level) < 0 {
		return replaceFailure(ReasonLevelTooLow,
			fmt.Sprintf("new referrer level %s is below user level %s", newReferrer.Level, user.Level)), nil
	}

	if err := e.assign(user, newReferrer, admin.FullName, models.TicketStatusResolved); err != nil {
		return nil, err
	}

	return &ReplaceResult{
		OK:          true,
		Message:     "referrer replaced",
		NewReferrer: snapshot(newReferrer),
	}, nil
}

// assign performs the transactional reassignment and fires the three audit
// notifications after commit. ticketStatus is how open tickets for the user
// are closed.
func (e *Engine) assign(user, newReferrer *models.User, actingAdminName, ticketStatus string) error {
	var oldReferrer *models.User
	if user.InvitedByID != nil {
		prev, err := e.users.FindByID(*user.InvitedByID)
		if err == nil {
			oldReferrer = prev
		} else if !repository.IsNotFound(err) {
			return fmt.Errorf("load old referrer %d: %w", *user.InvitedByID, err)
		}
	}

	err := e.db.Transaction(func(tx *gorm.DB) error {
		users := e.users.WithTx(tx)
		tickets := e.tickets.WithTx(tx)

		newID := newReferrer.ID
		if err := users.SetInvitedBy(user.ID, &newID); err != nil {
			return fmt.Errorf("reassign invited_by: %w", err)
		}
		if oldReferrer != nil {
			if err := users.RecountReferrals(oldReferrer.ID); err != nil {
				return err
			}
		}
		if err := users.RecountReferrals(newReferrer.ID); err != nil {
			return err
		}
		return tickets.CloseOpenForUser(user.ID, ticketStatus)
	})
	if err != nil {
		return err
	}

	// Post-commit, best-effort. The reassignment stands even if none of
	// these reach their recipients.
	oldName := "-"
	if oldReferrer != nil {
		oldName = oldReferrer.FullName
	}
	e.notifier.ReferrerChanged(user, oldName, newReferrer.FullName, actingAdminName)
	e.notifier.NewReferral(newReferrer, user, actingAdminName)
	if oldReferrer != nil {
		e.notifier.ReferralRemoved(oldReferrer, user, actingAdminName)
	}

	e.logger.Info("referrer reassigned",
		zap.Uint("user_id", user.ID),
		zap.Uint("new_referrer_id", newReferrer.ID),
		zap.String("acting_admin", actingAdminName))
	return nil
}

// RootReferrer resolves the payee for referral-bonus payments: the direct
// inviter when that inviter is a root, otherwise the inviter's inviter.
// The walk stops at two hops regardless of how deep the chain goes.
func (e *Engine) RootReferrer(userID uint) (*models.User, error) {
	user, err := e.users.FindByID(userID)
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	if user.InvitedByID == nil {
		return nil, nil
	}

	inviter, err := e.users.FindByID(*user.InvitedByID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load inviter %d: %w", *user.InvitedByID, err)
	}
	if inviter.InvitedByID == nil {
		return inviter, nil
	}

	grand, err := e.users.FindByID(*inviter.InvitedByID)
	if err != nil {
		if repository.IsNotFound(err) {
			return inviter, nil
		}
		return nil, fmt.Errorf("load root referrer %d: %w", *inviter.InvitedByID, err)
	}
	return grand, nil
}
