package referral

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"kursbot/internal/level"
	"kursbot/internal/models"
	"kursbot/internal/repository"
)

// SweepReport summarizes one pass over due referrer tickets.
type SweepReport struct {
	Examined     int `json:"examined"`
	Resolved     int `json:"resolved"`
	AutoReplaced int `json:"auto_replaced"`
	Skipped      int `json:"skipped"`
}

// Sweep re-examines every unprocessed ticket older than the grace window.
// A referrer who has since caught up closes the ticket as resolved; anyone
// still behind loses the referral to the admin with the most referrals.
// Idempotent: processed tickets are never picked up again, and each
// auto-replacement fires its notifications exactly once.
func (e *Engine) Sweep(now time.Time) (*SweepReport, error) {
	cutoff := now.Add(-e.grace)
	due, err := e.tickets.FindDue(cutoff)
	if err != nil {
		return nil, fmt.Errorf("load due tickets: %w", err)
	}

	report := &SweepReport{Examined: len(due)}
	for i := range due {
		ticket := &due[i]
		if err := e.sweepTicket(ticket, report); err != nil {
			report.Skipped++
			e.logger.Error("sweep: ticket failed",
				zap.Uint("ticket_id", ticket.ID),
				zap.Uint("user_id", ticket.UserID),
				zap.Error(err))
		}
	}
	return report, nil
}

func (e *Engine) sweepTicket(ticket *models.ReferrerTicket, report *SweepReport) error {
	// Re-read both parties; the snapshots on the ticket are stale by now.
	user, err := e.users.FindByID(ticket.UserID)
	if err != nil {
		if repository.IsNotFound(err) {
			return e.tickets.MarkProcessed(ticket.ID, models.TicketStatusResolved)
		}
		return err
	}
	referrer, err := e.users.FindByID(ticket.ReferrerID)
	if err != nil && !repository.IsNotFound(err) {
		return err
	}

	// The user may have been manually reassigned since the ticket opened.
	stillLinked := user.InvitedByID != nil && referrer != nil && *user.InvitedByID == referrer.ID

	if stillLinked && level.Compare(referrer.Level, user.Level) >= 0 {
		if err := e.tickets.MarkProcessed(ticket.ID, models.TicketStatusResolved); err != nil {
			return err
		}
		report.Resolved++
		return nil
	}
	if !stillLinked {
		if err := e.tickets.MarkProcessed(ticket.ID, models.TicketStatusResolved); err != nil {
			return err
		}
		report.Resolved++
		return nil
	}

	fallback, err := e.users.TopAdminByReferralCount()
	if err != nil {
		if repository.IsNotFound(err) {
			// No admin to fall back to; leave the ticket for the next pass.
			return fmt.Errorf("no fallback admin available")
		}
		return err
	}
	if fallback.ID == user.ID {
		return fmt.Errorf("fallback admin is the affected user")
	}

	// The fallback admin acts as their own authorizer here; this is the
	// one replacement path with no human in the loop. The admin's level is
	// not checked: admins are roots of the referral forest.
	if err := e.assign(user, fallback, fallback.FullName, models.TicketStatusAutoReplaced); err != nil {
		return err
	}
	report.AutoReplaced++
	return nil
}

// RecountAllReferralCounts recomputes every cached referral counter from
// the invited_by relation. Run periodically to self-heal drift.
func (e *Engine) RecountAllReferralCounts() (int, error) {
	type row struct {
		ID    uint
		Count int
	}

	var actual []row
	err := e.db.Model(&models.User{}).
		Select("invited_by_id AS id, COUNT(*) AS count").
		Where("invited_by_id IS NOT NULL").
		Group("invited_by_id").
		Scan(&actual).Error
	if err != nil {
		return 0, fmt.Errorf("aggregate invitee counts: %w", err)
	}
	counts := make(map[uint]int, len(actual))
	for _, r := range actual {
		counts[r.ID] = r.Count
	}

	var stored []row
	err = e.db.Model(&models.User{}).
		Select("id, referral_count AS count").
		Scan(&stored).Error
	if err != nil {
		return 0, fmt.Errorf("load stored counts: %w", err)
	}

	fixed := 0
	for _, r := range stored {
		want := counts[r.ID]
		if r.Count == want {
			continue
		}
		if err := e.db.Model(&models.User{}).Where("id = ?", r.ID).
			Update("referral_count", want).Error; err != nil {
			return fixed, fmt.Errorf("fix count for user %d: %w", r.ID, err)
		}
		fixed++
	}
	return fixed, nil
}
