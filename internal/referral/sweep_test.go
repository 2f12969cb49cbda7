package referral

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kursbot/internal/models"
)

func seedTicket(t *testing.T, e *Engine, user, referrer *models.User, age time.Duration) *models.ReferrerTicket {
	t.Helper()
	ticket := &models.ReferrerTicket{
		UserID:        user.ID,
		ReferrerID:    referrer.ID,
		UserLevel:     user.Level,
		ReferrerLevel: referrer.Level,
		Status:        models.TicketStatusPending,
		CreatedAt:     time.Now().Add(-age),
	}
	require.NoError(t, e.tickets.Create(ticket))
	return ticket
}

func TestSweepIgnoresTicketsInsideGraceWindow(t *testing.T) {
	engine, db, recorder := newTestEngine(t)
	referrer := seedUser(t, db, "Rustam", "1-bosqich", nil)
	user := seedUser(t, db, "Umid", "2-bosqich", uintPtr(referrer.ID))
	seedTicket(t, engine, user, referrer, 2*time.Hour)

	report, err := engine.Sweep(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Examined)

	var got models.User
	require.NoError(t, db.First(&got, user.ID).Error)
	assert.Equal(t, referrer.ID, *got.InvitedByID)
	assert.Empty(t, recorder.Sent)
}

func TestSweepResolvesWhenReferrerCaughtUp(t *testing.T) {
	engine, db, recorder := newTestEngine(t)
	referrer := seedUser(t, db, "Rustam", "1-bosqich", nil)
	user := seedUser(t, db, "Umid", "2-bosqich", uintPtr(referrer.ID))
	ticket := seedTicket(t, engine, user, referrer, 30*time.Hour)

	// The referrer bought the next stage during the grace window.
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", referrer.ID).
		Update("level", "2-bosqich").Error)

	report, err := engine.Sweep(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Examined)
	assert.Equal(t, 1, report.Resolved)
	assert.Equal(t, 0, report.AutoReplaced)

	var got models.ReferrerTicket
	require.NoError(t, db.First(&got, ticket.ID).Error)
	assert.True(t, got.IsProcessed)
	assert.Equal(t, models.TicketStatusResolved, got.Status)
	require.NotNil(t, got.ProcessedAt)

	var u models.User
	require.NoError(t, db.First(&u, user.ID).Error)
	assert.Equal(t, referrer.ID, *u.InvitedByID, "link must stay intact")
	assert.Empty(t, recorder.Sent)
}

func TestSweepResolvesWhenLinkChangedMeanwhile(t *testing.T) {
	engine, db, recorder := newTestEngine(t)
	oldRef := seedUser(t, db, "Old", "1-bosqich", nil)
	other := seedUser(t, db, "Other", "5-bosqich", nil)
	user := seedUser(t, db, "Umid", "2-bosqich", uintPtr(oldRef.ID))
	ticket := seedTicket(t, engine, user, oldRef, 30*time.Hour)

	// A manual reassignment happened while the ticket was pending.
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).
		Update("invited_by_id", other.ID).Error)

	report, err := engine.Sweep(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Resolved)
	assert.Equal(t, 0, report.AutoReplaced)

	var got models.ReferrerTicket
	require.NoError(t, db.First(&got, ticket.ID).Error)
	assert.Equal(t, models.TicketStatusResolved, got.Status)
	assert.Empty(t, recorder.Sent)
}

func TestSweepAutoReplacesToTopAdmin(t *testing.T) {
	engine, db, recorder := newTestEngine(t)

	smallAdmin := seedUser(t, db, "SmallAdmin", "7-bosqich", nil)
	bigAdmin := seedUser(t, db, "BigAdmin", "7-bosqich", nil)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", smallAdmin.ID).
		Updates(map[string]interface{}{"is_admin": true, "referral_count": 2}).Error)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", bigAdmin.ID).
		Updates(map[string]interface{}{"is_admin": true, "referral_count": 8}).Error)

	referrer := seedUser(t, db, "Rustam", "1-bosqich", nil)
	user := seedUser(t, db, "Umid", "3-bosqich", uintPtr(referrer.ID))
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", referrer.ID).
		Update("referral_count", 1).Error)
	ticket := seedTicket(t, engine, user, referrer, 30*time.Hour)

	report, err := engine.Sweep(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Examined)
	assert.Equal(t, 1, report.AutoReplaced)
	assert.Equal(t, 0, report.Resolved)

	// The admin with the most referrals inherits the user.
	var u models.User
	require.NoError(t, db.First(&u, user.ID).Error)
	require.NotNil(t, u.InvitedByID)
	assert.Equal(t, bigAdmin.ID, *u.InvitedByID)

	// Both counters recomputed from the actual invitee sets.
	var oldGot, adminGot models.User
	require.NoError(t, db.First(&oldGot, referrer.ID).Error)
	require.NoError(t, db.First(&adminGot, bigAdmin.ID).Error)
	assert.Equal(t, 0, oldGot.ReferralCount)
	assert.Equal(t, 1, adminGot.ReferralCount)

	var got models.ReferrerTicket
	require.NoError(t, db.First(&got, ticket.ID).Error)
	assert.True(t, got.IsProcessed)
	assert.Equal(t, models.TicketStatusAutoReplaced, got.Status)

	assert.Equal(t, 1, recorder.CountKind("referrer_changed"))
	assert.Equal(t, 1, recorder.CountKind("new_referral"))
	assert.Equal(t, 1, recorder.CountKind("referral_removed"))
	assert.Equal(t, bigAdmin.TelegramID, recorder.ByKind("new_referral")[0].ChatID)
	assert.Equal(t, referrer.TelegramID, recorder.ByKind("referral_removed")[0].ChatID)

	// A second pass finds nothing to do and sends nothing more.
	report, err = engine.Sweep(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Examined)
	assert.Equal(t, 3, len(recorder.Sent))
}

func TestSweepSkipsWhenNoFallbackAdmin(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	referrer := seedUser(t, db, "Rustam", "1-bosqich", nil)
	user := seedUser(t, db, "Umid", "3-bosqich", uintPtr(referrer.ID))
	ticket := seedTicket(t, engine, user, referrer, 30*time.Hour)

	report, err := engine.Sweep(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Examined)
	assert.Equal(t, 1, report.Skipped)

	// Ticket stays open for the next pass.
	var got models.ReferrerTicket
	require.NoError(t, db.First(&got, ticket.ID).Error)
	assert.False(t, got.IsProcessed)
}

func TestRecountAllReferralCountsRepairsDrift(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	a := seedUser(t, db, "A", "5-bosqich", nil)
	seedUser(t, db, "B", "2-bosqich", uintPtr(a.ID))
	seedUser(t, db, "C", "2-bosqich", uintPtr(a.ID))
	drifted := seedUser(t, db, "D", "1-bosqich", nil)

	// a's counter is stale at 0; d claims invitees it never had.
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", drifted.ID).
		Update("referral_count", 5).Error)

	fixed, err := engine.RecountAllReferralCounts()
	require.NoError(t, err)
	assert.Equal(t, 2, fixed)

	var aGot, dGot models.User
	require.NoError(t, db.First(&aGot, a.ID).Error)
	require.NoError(t, db.First(&dGot, drifted.ID).Error)
	assert.Equal(t, 2, aGot.ReferralCount)
	assert.Equal(t, 0, dGot.ReferralCount)

	// A second run is a no-op.
	fixed, err = engine.RecountAllReferralCounts()
	require.NoError(t, err)
	assert.Equal(t, 0, fixed)
}
