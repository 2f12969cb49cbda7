package referral

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"kursbot/internal/models"
	"kursbot/internal/testutil"
)

func newTestEngine(t *testing.T) (*Engine, *gorm.DB, *testutil.RecordingNotifier) {
	t.Helper()
	db := testutil.NewDB(t)
	recorder := testutil.NewRecordingNotifier()
	engine := NewEngine(db, recorder, 24*time.Hour, zap.NewNop())
	return engine, db, recorder
}

func uintPtr(v uint) *uint { return &v }

var phoneSeq atomic.Int64

func seedUser(t *testing.T, db *gorm.DB, name, levelToken string, invitedBy *uint) *models.User {
	t.Helper()
	return testutil.SeedUser(t, db, &models.User{
		TelegramID:  fmt.Sprintf("tg-%s", name),
		FullName:    name,
		PhoneNumber: fmt.Sprintf("+99890%07d", phoneSeq.Add(1)),
		Level:       levelToken,
		InvitedByID: invitedBy,
		IsConfirmed: true,
	})
}

func TestCheckConsistencyNoReferrer(t *testing.T) {
	engine, db, recorder := newTestEngine(t)
	user := seedUser(t, db, "Aziz", "2-bosqich", nil)

	res, err := engine.CheckConsistency(user.ID)
	require.NoError(t, err)
	assert.False(t, res.NeedsReplacement)
	assert.Empty(t, recorder.Sent)
}

func TestCheckConsistencyReferrerAhead(t *testing.T) {
	engine, db, recorder := newTestEngine(t)
	referrer := seedUser(t, db, "Rustam", "3-bosqich", nil)
	user := seedUser(t, db, "Umid", "2-bosqich", uintPtr(referrer.ID))

	res, err := engine.CheckConsistency(user.ID)
	require.NoError(t, err)
	assert.False(t, res.NeedsReplacement)
	assert.Equal(t, 0, recorder.CountKind("referrer_warning"))
}

func TestCheckConsistencyMixedEncodings(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	referrer := seedUser(t, db, "Rustam", "level_2", nil)
	user := seedUser(t, db, "Umid", "2-bosqich", uintPtr(referrer.ID))

	// Same ordinal in different encodings is consistent.
	res, err := engine.CheckConsistency(user.ID)
	require.NoError(t, err)
	assert.False(t, res.NeedsReplacement)
}

func TestCheckConsistencyUserOvertook(t *testing.T) {
	engine, db, recorder := newTestEngine(t)
	referrer := seedUser(t, db, "Rustam", "1-bosqich", nil)
	user := seedUser(t, db, "Umid", "2-bosqich", uintPtr(referrer.ID))

	res, err := engine.CheckConsistency(user.ID)
	require.NoError(t, err)
	assert.True(t, res.NeedsReplacement)
	require.NotNil(t, res.User)
	require.NotNil(t, res.Referrer)
	assert.Equal(t, "2-bosqich", res.User.Level)
	assert.Equal(t, "1-bosqich", res.Referrer.Level)

	// The referrer got a warning and a grace ticket opened.
	warnings := recorder.ByKind("referrer_warning")
	require.Len(t, warnings, 1)
	assert.Equal(t, referrer.TelegramID, warnings[0].ChatID)

	var tickets []models.ReferrerTicket
	require.NoError(t, db.Find(&tickets).Error)
	require.Len(t, tickets, 1)
	assert.Equal(t, user.ID, tickets[0].UserID)
	assert.Equal(t, referrer.ID, tickets[0].ReferrerID)
	assert.Equal(t, models.TicketStatusPending, tickets[0].Status)
	assert.False(t, tickets[0].IsProcessed)
}

func TestCheckConsistencyNoDuplicateTickets(t *testing.T) {
	engine, db, recorder := newTestEngine(t)
	referrer := seedUser(t, db, "Rustam", "1-bosqich", nil)
	user := seedUser(t, db, "Umid", "3-bosqich", uintPtr(referrer.ID))

	for i := 0; i < 3; i++ {
		res, err := engine.CheckConsistency(user.ID)
		require.NoError(t, err)
		assert.True(t, res.NeedsReplacement)
	}

	var count int64
	require.NoError(t, db.Model(&models.ReferrerTicket{}).Count(&count).Error)
	assert.EqualValues(t, 1, count, "repeated checks must not pile up tickets")
	// Each check still re-warns the referrer.
	assert.Equal(t, 3, recorder.CountKind("referrer_warning"))
}

func TestRootReferrerTwoHopChain(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	a := seedUser(t, db, "A", "5-bosqich", nil)
	b := seedUser(t, db, "B", "3-bosqich", uintPtr(a.ID))
	c := seedUser(t, db, "C", "1-bosqich", uintPtr(b.ID))

	root, err := engine.RootReferrer(c.ID)
	require.NoError(t, err)
	require.NotNil(t, root)
	assert.Equal(t, a.ID, root.ID)

	root, err = engine.RootReferrer(b.ID)
	require.NoError(t, err)
	require.NotNil(t, root)
	assert.Equal(t, a.ID, root.ID)

	root, err = engine.RootReferrer(a.ID)
	require.NoError(t, err)
	assert.Nil(t, root)
}

func TestRootReferrerStopsAtTwoHops(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	a := seedUser(t, db, "A", "5-bosqich", nil)
	b := seedUser(t, db, "B", "4-bosqich", uintPtr(a.ID))
	c := seedUser(t, db, "C", "3-bosqich", uintPtr(b.ID))
	d := seedUser(t, db, "D", "1-bosqich", uintPtr(c.ID))

	// Payment routing walks at most two hops up from D: C, then B.
	root, err := engine.RootReferrer(d.ID)
	require.NoError(t, err)
	require.NotNil(t, root)
	assert.Equal(t, b.ID, root.ID)
}

func TestFindSuitableReferrersRanking(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	user := seedUser(t, db, "Umid", "2-bosqich", nil)

	low := seedUser(t, db, "Low", "1-bosqich", nil)
	samePoor := seedUser(t, db, "SamePoor", "2-bosqich", nil)
	sameRich := seedUser(t, db, "SameRich", "2-bosqich", nil)
	high := seedUser(t, db, "High", "5-bosqich", nil)
	unconfirmed := seedUser(t, db, "Shadow", "6-bosqich", nil)

	require.NoError(t, db.Model(&models.User{}).Where("id = ?", sameRich.ID).Update("referral_count", 9).Error)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", samePoor.ID).Update("referral_count", 1).Error)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", unconfirmed.ID).Update("is_confirmed", false).Error)

	candidates, err := engine.FindSuitableReferrers(user.ID, 10)
	require.NoError(t, err)

	ids := make([]uint, len(candidates))
	for i, c := range candidates {
		ids[i] = c.UserID
	}
	// Highest level first, then referral count; low-leveled, unconfirmed
	// and the user themselves are excluded.
	assert.Equal(t, []uint{high.ID, sameRich.ID, samePoor.ID}, ids)
	assert.NotContains(t, ids, low.ID)
	assert.NotContains(t, ids, user.ID)

	limited, err := engine.FindSuitableReferrers(user.ID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestReplaceReferrerSuccess(t *testing.T) {
	engine, db, recorder := newTestEngine(t)
	admin := seedUser(t, db, "Admin", "7-bosqich", nil)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", admin.ID).Update("is_admin", true).Error)

	oldRef := seedUser(t, db, "Old", "1-bosqich", nil)
	user := seedUser(t, db, "Umid", "2-bosqich", uintPtr(oldRef.ID))
	newRef := seedUser(t, db, "New", "2-bosqich", nil)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", oldRef.ID).Update("referral_count", 1).Error)

	res, err := engine.ReplaceReferrer(user.ID, newRef.ID, admin.ID)
	require.NoError(t, err)
	require.True(t, res.OK)
	require.NotNil(t, res.NewReferrer)
	assert.Equal(t, newRef.ID, res.NewReferrer.UserID)

	var got models.User
	require.NoError(t, db.First(&got, user.ID).Error)
	require.NotNil(t, got.InvitedByID)
	assert.Equal(t, newRef.ID, *got.InvitedByID)

	// Counts are recomputed from the invited_by sets, not nudged.
	var oldGot, newGot models.User
	require.NoError(t, db.First(&oldGot, oldRef.ID).Error)
	require.NoError(t, db.First(&newGot, newRef.ID).Error)
	assert.Equal(t, 0, oldGot.ReferralCount)
	assert.Equal(t, 1, newGot.ReferralCount)

	// Three audit notifications, each carrying the admin's name.
	assert.Equal(t, 1, recorder.CountKind("referrer_changed"))
	assert.Equal(t, 1, recorder.CountKind("new_referral"))
	assert.Equal(t, 1, recorder.CountKind("referral_removed"))
	for _, kind := range []string{"referrer_changed", "new_referral", "referral_removed"} {
		assert.Equal(t, "Admin", recorder.ByKind(kind)[0].AdminName)
	}
}

func TestReplaceReferrerLevelTooLow(t *testing.T) {
	engine, db, recorder := newTestEngine(t)
	admin := seedUser(t, db, "Admin", "7-bosqich", nil)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", admin.ID).Update("is_admin", true).Error)

	oldRef := seedUser(t, db, "Old", "2-bosqich", nil)
	user := seedUser(t, db, "Umid", "3-bosqich", uintPtr(oldRef.ID))
	newRef := seedUser(t, db, "New", "1-bosqich", nil)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", oldRef.ID).Update("referral_count", 1).Error)

	res, err := engine.ReplaceReferrer(user.ID, newRef.ID, admin.ID)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, ReasonLevelTooLow, res.Reason)

	// Nothing moved.
	var got, oldGot, newGot models.User
	require.NoError(t, db.First(&got, user.ID).Error)
	require.NoError(t, db.First(&oldGot, oldRef.ID).Error)
	require.NoError(t, db.First(&newGot, newRef.ID).Error)
	assert.Equal(t, oldRef.ID, *got.InvitedByID)
	assert.Equal(t, 1, oldGot.ReferralCount)
	assert.Equal(t, 0, newGot.ReferralCount)
	assert.Empty(t, recorder.Sent)
}

func TestReplaceReferrerNotAdmin(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	nobody := seedUser(t, db, "Nobody", "7-bosqich", nil)
	oldRef := seedUser(t, db, "Old", "2-bosqich", nil)
	user := seedUser(t, db, "Umid", "2-bosqich", uintPtr(oldRef.ID))
	newRef := seedUser(t, db, "New", "3-bosqich", nil)

	res, err := engine.ReplaceReferrer(user.ID, newRef.ID, nobody.ID)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, ReasonNotAdmin, res.Reason)
}

func TestReplaceReferrerTargetMissing(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	admin := seedUser(t, db, "Admin", "7-bosqich", nil)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", admin.ID).Update("is_admin", true).Error)
	user := seedUser(t, db, "Umid", "2-bosqich", nil)

	res, err := engine.ReplaceReferrer(user.ID, 9999, admin.ID)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, ReasonNotFound, res.Reason)
}

func TestReplaceReferrerSelf(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	admin := seedUser(t, db, "Admin", "7-bosqich", nil)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", admin.ID).Update("is_admin", true).Error)
	user := seedUser(t, db, "Umid", "2-bosqich", nil)

	res, err := engine.ReplaceReferrer(user.ID, user.ID, admin.ID)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, ReasonSelfReferral, res.Reason)
}

// Referral-count invariant: after any sequence of registrations and
// replacements, every counter equals the size of its invited_by set.
func TestReferralCountInvariantUnderRandomOps(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	rng := rand.New(rand.NewSource(7))

	admin := seedUser(t, db, "Admin", "7-bosqich", nil)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", admin.ID).Update("is_admin", true).Error)

	users := []*models.User{admin}
	for step := 0; step < 60; step++ {
		if rng.Intn(2) == 0 || len(users) < 3 {
			// Register a new user under a random existing one, through
			// the same path the bot registration uses.
			parent := users[rng.Intn(len(users))]
			u := &models.User{
				TelegramID:  fmt.Sprintf("tg-U%d", step),
				FullName:    fmt.Sprintf("U%d", step),
				PhoneNumber: fmt.Sprintf("+99890%07d", phoneSeq.Add(1)),
				Level:       "1-bosqich",
				InvitedByID: uintPtr(parent.ID),
				IsConfirmed: true,
			}
			require.NoError(t, engine.users.CreateWithReferrer(u))
			users = append(users, u)
		} else {
			// Replace a random user's referrer with a same-level peer.
			u := users[rng.Intn(len(users)-1)+1]
			target := users[rng.Intn(len(users))]
			if target.ID == u.ID {
				continue
			}
			res, err := engine.ReplaceReferrer(u.ID, target.ID, admin.ID)
			require.NoError(t, err)
			_ = res // level preconditions may legitimately fail; both paths must hold the invariant
		}

		var all []models.User
		require.NoError(t, db.Find(&all).Error)
		for _, u := range all {
			var actual int64
			require.NoError(t, db.Model(&models.User{}).
				Where("invited_by_id = ?", u.ID).Count(&actual).Error)
			assert.EqualValues(t, actual, u.ReferralCount,
				"user %s counter drifted at step %d", u.FullName, step)
		}
	}
}
