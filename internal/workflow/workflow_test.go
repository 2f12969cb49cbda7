package workflow

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"kursbot/internal/models"
	"kursbot/internal/referral"
	"kursbot/internal/testutil"

	"kursbot/internal/config"
)

type fixture struct {
	db       *gorm.DB
	service  *Service
	recorder *testutil.RecordingNotifier
	admin    *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	recorder := testutil.NewRecordingNotifier()
	engine := referral.NewEngine(db, recorder, 24*time.Hour, zap.NewNop())
	service := NewService(db, engine, recorder, config.ReferralConfig{
		BonusAmount: 200000,
		GraceWindow: 24 * time.Hour,
	}, "kursbot", zap.NewNop())

	admin := seedUser(t, db, "Admin", "7-bosqich", nil)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", admin.ID).
		Update("is_admin", true).Error)

	return &fixture{db: db, service: service, recorder: recorder, admin: admin}
}

var phoneSeq atomic.Int64

func seedUser(t *testing.T, db *gorm.DB, name, levelToken string, invitedBy *uint) *models.User {
	t.Helper()
	return testutil.SeedUser(t, db, &models.User{
		TelegramID:  fmt.Sprintf("tg-%s", name),
		FullName:    name,
		PhoneNumber: fmt.Sprintf("+99891%07d", phoneSeq.Add(1)),
		Level:       levelToken,
		InvitedByID: invitedBy,
	})
}

func uintPtr(v uint) *uint { return &v }

func (f *fixture) seedCoursePayment(t *testing.T, user *models.User, course *models.Course) *models.Payment {
	t.Helper()
	payment := &models.Payment{
		UserID:          user.ID,
		CourseID:        &course.ID,
		Kind:            models.PaymentKindCourse,
		Amount:          course.Price,
		Status:          models.PaymentStatusPending,
		Screenshot:      "photo-file-id",
		ReviewChatID:    "-100777",
		ReviewMessageID: 42,
	}
	require.NoError(t, f.db.Create(payment).Error)
	return payment
}

func (f *fixture) userByID(t *testing.T, id uint) *models.User {
	t.Helper()
	var u models.User
	require.NoError(t, f.db.First(&u, id).Error)
	return &u
}

func TestConfirmCoursePaymentFullChain(t *testing.T) {
	f := newFixture(t)

	// The catalog has stages 1 and 2, so a stage-1 purchase advances.
	course1 := testutil.SeedCourse(t, f.db, &models.Course{
		Name: "Birinchi bosqich", Price: 500000, Level: "1-bosqich", IsActive: true,
		PrivateChannelID: "https://t.me/+stage1",
	})
	testutil.SeedCourse(t, f.db, &models.Course{
		Name: "Ikkinchi bosqich", Price: 700000, Level: "2-bosqich", IsActive: true,
	})

	referrer := seedUser(t, f.db, "Rustam", "1-bosqich", nil)
	user := seedUser(t, f.db, "Umid", "1-bosqich", uintPtr(referrer.ID))
	payment := f.seedCoursePayment(t, user, course1)

	res, err := f.service.ConfirmCoursePayment(payment.ID, f.admin.ID)
	require.NoError(t, err)
	require.True(t, res.OK)

	var got models.Payment
	require.NoError(t, f.db.First(&got, payment.ID).Error)
	assert.Equal(t, models.PaymentStatusConfirmed, got.Status)
	require.NotNil(t, got.ConfirmedByID)
	assert.Equal(t, f.admin.ID, *got.ConfirmedByID)
	require.NotNil(t, got.ConfirmedAt)

	// Level advanced, referrer credited, participation recorded.
	assert.Equal(t, "2-bosqich", f.userByID(t, user.ID).Level)
	assert.Equal(t, 1, f.userByID(t, referrer.ID).ReferralCount)
	var participations int64
	require.NoError(t, f.db.Model(&models.CourseParticipation{}).
		Where("user_id = ? AND course_id = ?", user.ID, course1.ID).
		Count(&participations).Error)
	assert.EqualValues(t, 1, participations)

	// The user is now at stage 2 against a stage-1 referrer: the
	// confirmation still stands and the result flags the inconsistency.
	require.NotNil(t, res.Consistency)
	assert.True(t, res.Consistency.NeedsReplacement)
	assert.Equal(t, 1, f.recorder.CountKind("referrer_warning"))

	// Payer notified, review prompt retracted.
	confirmed := f.recorder.ByKind("payment_confirmed")
	require.Len(t, confirmed, 1)
	assert.Equal(t, user.TelegramID, confirmed[0].ChatID)
	assert.Equal(t, course1.Price, confirmed[0].Amount)
	assert.Equal(t, 1, f.recorder.CountKind("delete_review_prompt"))

	// An upward bonus payment opened towards the root referrer.
	var refPayments []models.ReferralPayment
	require.NoError(t, f.db.Find(&refPayments).Error)
	require.Len(t, refPayments, 1)
	assert.Equal(t, user.ID, refPayments[0].UserID)
	assert.Equal(t, referrer.ID, refPayments[0].ReferrerID)
	assert.Equal(t, 200000, refPayments[0].Amount)
	assert.Equal(t, models.PaymentStatusPending, refPayments[0].Status)
	assert.Equal(t, 1, f.recorder.CountKind("referral_payment_due"))
}

func TestConfirmCoursePaymentIdempotent(t *testing.T) {
	f := newFixture(t)
	course := testutil.SeedCourse(t, f.db, &models.Course{
		Name: "Birinchi bosqich", Price: 500000, Level: "1-bosqich", IsActive: true,
	})
	testutil.SeedCourse(t, f.db, &models.Course{
		Name: "Ikkinchi bosqich", Price: 700000, Level: "2-bosqich", IsActive: true,
	})
	referrer := seedUser(t, f.db, "Rustam", "5-bosqich", nil)
	user := seedUser(t, f.db, "Umid", "1-bosqich", uintPtr(referrer.ID))
	payment := f.seedCoursePayment(t, user, course)

	res, err := f.service.ConfirmCoursePayment(payment.ID, f.admin.ID)
	require.NoError(t, err)
	require.True(t, res.OK)

	res, err = f.service.ConfirmCoursePayment(payment.ID, f.admin.ID)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.True(t, res.AlreadyProcessed)
	assert.Equal(t, ReasonAlreadyProcessed, res.Reason)

	// The side-effect chain ran exactly once.
	assert.Equal(t, "2-bosqich", f.userByID(t, user.ID).Level)
	assert.Equal(t, 1, f.userByID(t, referrer.ID).ReferralCount)
	assert.Equal(t, 1, f.recorder.CountKind("payment_confirmed"))
}

func TestConfirmCoursePaymentNoNextStage(t *testing.T) {
	f := newFixture(t)
	// Final stage: nothing above it in the catalog.
	course := testutil.SeedCourse(t, f.db, &models.Course{
		Name: "Yettinchi bosqich", Price: 900000, Level: "7-bosqich", IsActive: true,
	})
	user := seedUser(t, f.db, "Umid", "7-bosqich", nil)
	payment := f.seedCoursePayment(t, user, course)

	res, err := f.service.ConfirmCoursePayment(payment.ID, f.admin.ID)
	require.NoError(t, err)
	require.True(t, res.OK)

	assert.Equal(t, "7-bosqich", f.userByID(t, user.ID).Level)
	var got models.Payment
	require.NoError(t, f.db.First(&got, payment.ID).Error)
	assert.Equal(t, models.PaymentStatusConfirmed, got.Status)
}

func TestConfirmCoursePaymentRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	course := testutil.SeedCourse(t, f.db, &models.Course{
		Name: "Birinchi bosqich", Price: 500000, Level: "1-bosqich", IsActive: true,
	})
	nobody := seedUser(t, f.db, "Nobody", "1-bosqich", nil)
	user := seedUser(t, f.db, "Umid", "1-bosqich", nil)
	payment := f.seedCoursePayment(t, user, course)

	res, err := f.service.ConfirmCoursePayment(payment.ID, nobody.ID)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, ReasonNotAdmin, res.Reason)

	var got models.Payment
	require.NoError(t, f.db.First(&got, payment.ID).Error)
	assert.Equal(t, models.PaymentStatusPending, got.Status)
}

func TestRejectCoursePaymentRequiresReason(t *testing.T) {
	f := newFixture(t)
	course := testutil.SeedCourse(t, f.db, &models.Course{
		Name: "Birinchi bosqich", Price: 500000, Level: "1-bosqich", IsActive: true,
	})
	user := seedUser(t, f.db, "Umid", "1-bosqich", nil)
	payment := f.seedCoursePayment(t, user, course)

	res, err := f.service.RejectCoursePayment(payment.ID, f.admin.ID, "")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, ReasonMissingReason, res.Reason)

	var got models.Payment
	require.NoError(t, f.db.First(&got, payment.ID).Error)
	assert.Equal(t, models.PaymentStatusPending, got.Status)
	assert.Empty(t, f.recorder.Sent)
}

func TestRejectCoursePayment(t *testing.T) {
	f := newFixture(t)
	course := testutil.SeedCourse(t, f.db, &models.Course{
		Name: "Birinchi bosqich", Price: 500000, Level: "1-bosqich", IsActive: true,
	})
	referrer := seedUser(t, f.db, "Rustam", "5-bosqich", nil)
	user := seedUser(t, f.db, "Umid", "1-bosqich", uintPtr(referrer.ID))
	payment := f.seedCoursePayment(t, user, course)

	res, err := f.service.RejectCoursePayment(payment.ID, f.admin.ID, "sumlar mos emas")
	require.NoError(t, err)
	require.True(t, res.OK)

	var got models.Payment
	require.NoError(t, f.db.First(&got, payment.ID).Error)
	assert.Equal(t, models.PaymentStatusRejected, got.Status)
	assert.Equal(t, "sumlar mos emas", got.RejectionReason)

	// No confirmation side effects on rejection.
	assert.Equal(t, "1-bosqich", f.userByID(t, user.ID).Level)
	assert.Equal(t, 0, f.userByID(t, referrer.ID).ReferralCount)

	rejected := f.recorder.ByKind("payment_rejected")
	require.Len(t, rejected, 1)
	assert.Equal(t, "sumlar mos emas", rejected[0].Reason)
}

func TestResetThenConfirmRerunsChain(t *testing.T) {
	f := newFixture(t)
	course := testutil.SeedCourse(t, f.db, &models.Course{
		Name: "Birinchi bosqich", Price: 500000, Level: "1-bosqich", IsActive: true,
	})
	testutil.SeedCourse(t, f.db, &models.Course{
		Name: "Ikkinchi bosqich", Price: 700000, Level: "2-bosqich", IsActive: true,
	})
	referrer := seedUser(t, f.db, "Rustam", "5-bosqich", nil)
	user := seedUser(t, f.db, "Umid", "1-bosqich", uintPtr(referrer.ID))
	payment := f.seedCoursePayment(t, user, course)

	res, err := f.service.RejectCoursePayment(payment.ID, f.admin.ID, "noaniq chek")
	require.NoError(t, err)
	require.True(t, res.OK)

	// Resetting a pending payment is refused.
	pending := f.seedCoursePayment(t, user, course)
	res, err = f.service.ResetCoursePayment(pending.ID, f.admin.ID)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, ReasonNotTerminal, res.Reason)

	res, err = f.service.ResetCoursePayment(payment.ID, f.admin.ID)
	require.NoError(t, err)
	require.True(t, res.OK)

	var got models.Payment
	require.NoError(t, f.db.First(&got, payment.ID).Error)
	assert.Equal(t, models.PaymentStatusPending, got.Status)
	assert.Empty(t, got.RejectionReason)
	assert.Nil(t, got.ConfirmedByID)
	assert.Nil(t, got.ConfirmedAt)

	// The re-armed payment confirms with the full chain.
	res, err = f.service.ConfirmCoursePayment(payment.ID, f.admin.ID)
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.Equal(t, "2-bosqich", f.userByID(t, user.ID).Level)
	assert.Equal(t, 1, f.userByID(t, referrer.ID).ReferralCount)
}

func TestSeedReferralPaymentUsesRootReferrer(t *testing.T) {
	f := newFixture(t)
	course := testutil.SeedCourse(t, f.db, &models.Course{
		Name: "Birinchi bosqich", Price: 500000, Level: "1-bosqich", IsActive: true,
	})
	// A invited B invited C; C's bonus flows to A, the root.
	a := seedUser(t, f.db, "A", "5-bosqich", nil)
	b := seedUser(t, f.db, "B", "3-bosqich", uintPtr(a.ID))
	c := seedUser(t, f.db, "C", "1-bosqich", uintPtr(b.ID))
	payment := f.seedCoursePayment(t, c, course)

	res, err := f.service.ConfirmCoursePayment(payment.ID, f.admin.ID)
	require.NoError(t, err)
	require.True(t, res.OK)

	var refPayments []models.ReferralPayment
	require.NoError(t, f.db.Find(&refPayments).Error)
	require.Len(t, refPayments, 1)
	assert.Equal(t, c.ID, refPayments[0].UserID)
	assert.Equal(t, a.ID, refPayments[0].ReferrerID)
}

func TestSeedReferralPaymentSkipsConfirmedMembers(t *testing.T) {
	f := newFixture(t)
	course := testutil.SeedCourse(t, f.db, &models.Course{
		Name: "Birinchi bosqich", Price: 500000, Level: "1-bosqich", IsActive: true,
	})
	referrer := seedUser(t, f.db, "Rustam", "5-bosqich", nil)
	user := seedUser(t, f.db, "Umid", "1-bosqich", uintPtr(referrer.ID))
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", user.ID).
		Update("is_confirmed", true).Error)
	payment := f.seedCoursePayment(t, user, course)

	res, err := f.service.ConfirmCoursePayment(payment.ID, f.admin.ID)
	require.NoError(t, err)
	require.True(t, res.OK)

	var count int64
	require.NoError(t, f.db.Model(&models.ReferralPayment{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
	assert.Equal(t, 0, f.recorder.CountKind("referral_payment_due"))
}

func (f *fixture) seedReferralBonus(t *testing.T, payer, beneficiary *models.User) *models.ReferralPayment {
	t.Helper()
	payment := &models.ReferralPayment{
		UserID:          payer.ID,
		ReferrerID:      beneficiary.ID,
		Amount:          200000,
		Status:          models.PaymentStatusPending,
		Screenshot:      "bonus-photo-id",
		ReviewChatID:    "-100777",
		ReviewMessageID: 55,
	}
	require.NoError(t, f.db.Create(payment).Error)
	return payment
}

func TestConfirmReferralPaymentIssuesCodeOnce(t *testing.T) {
	f := newFixture(t)
	beneficiary := seedUser(t, f.db, "Rustam", "5-bosqich", nil)
	payer := seedUser(t, f.db, "Umid", "2-bosqich", uintPtr(beneficiary.ID))
	payment := f.seedReferralBonus(t, payer, beneficiary)

	// The beneficiary confirms their own incoming payment.
	res, err := f.service.ConfirmReferralPayment(payment.ID, beneficiary.ID)
	require.NoError(t, err)
	require.True(t, res.OK)

	got := f.userByID(t, payer.ID)
	assert.True(t, got.IsConfirmed)
	require.NotNil(t, got.ReferralCode)
	assert.Len(t, *got.ReferralCode, 8)
	require.NotNil(t, got.ConfirmedByID)
	assert.Equal(t, beneficiary.ID, *got.ConfirmedByID)

	issued := f.recorder.ByKind("referral_code_issued")
	require.Len(t, issued, 1)
	assert.Equal(t, *got.ReferralCode, issued[0].Code)
	assert.Equal(t, payer.TelegramID, issued[0].ChatID)

	// Confirming again changes nothing and issues no second code.
	codeBefore := *got.ReferralCode
	res, err = f.service.ConfirmReferralPayment(payment.ID, beneficiary.ID)
	require.NoError(t, err)
	assert.True(t, res.AlreadyProcessed)
	assert.Equal(t, codeBefore, *f.userByID(t, payer.ID).ReferralCode)
	assert.Equal(t, 1, f.recorder.CountKind("referral_code_issued"))
}

func TestConfirmReferralPaymentKeepsExistingCode(t *testing.T) {
	f := newFixture(t)
	beneficiary := seedUser(t, f.db, "Rustam", "5-bosqich", nil)
	payer := seedUser(t, f.db, "Umid", "2-bosqich", uintPtr(beneficiary.ID))
	existing := "ABCD1234"
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", payer.ID).
		Update("referral_code", existing).Error)
	payment := f.seedReferralBonus(t, payer, beneficiary)

	res, err := f.service.ConfirmReferralPayment(payment.ID, f.admin.ID)
	require.NoError(t, err)
	require.True(t, res.OK)

	assert.Equal(t, existing, *f.userByID(t, payer.ID).ReferralCode)
	issued := f.recorder.ByKind("referral_code_issued")
	require.Len(t, issued, 1)
	assert.Equal(t, existing, issued[0].Code)
}

func TestReferralPaymentDecisionRights(t *testing.T) {
	f := newFixture(t)
	beneficiary := seedUser(t, f.db, "Rustam", "5-bosqich", nil)
	payer := seedUser(t, f.db, "Umid", "2-bosqich", uintPtr(beneficiary.ID))
	stranger := seedUser(t, f.db, "Stranger", "6-bosqich", nil)
	payment := f.seedReferralBonus(t, payer, beneficiary)

	res, err := f.service.ConfirmReferralPayment(payment.ID, stranger.ID)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, ReasonNotAllowed, res.Reason)

	var got models.ReferralPayment
	require.NoError(t, f.db.First(&got, payment.ID).Error)
	assert.Equal(t, models.PaymentStatusPending, got.Status)
	assert.False(t, f.userByID(t, payer.ID).IsConfirmed)
}

func TestRejectAndResetReferralPayment(t *testing.T) {
	f := newFixture(t)
	beneficiary := seedUser(t, f.db, "Rustam", "5-bosqich", nil)
	payer := seedUser(t, f.db, "Umid", "2-bosqich", uintPtr(beneficiary.ID))
	payment := f.seedReferralBonus(t, payer, beneficiary)

	res, err := f.service.RejectReferralPayment(payment.ID, beneficiary.ID, "")
	require.NoError(t, err)
	assert.Equal(t, ReasonMissingReason, res.Reason)

	res, err = f.service.RejectReferralPayment(payment.ID, beneficiary.ID, "pul kelmadi")
	require.NoError(t, err)
	require.True(t, res.OK)

	var got models.ReferralPayment
	require.NoError(t, f.db.First(&got, payment.ID).Error)
	assert.Equal(t, models.PaymentStatusRejected, got.Status)
	assert.Equal(t, "pul kelmadi", got.RejectionReason)
	assert.False(t, f.userByID(t, payer.ID).IsConfirmed)
	require.Len(t, f.recorder.ByKind("referral_payment_rejected"), 1)

	// Only admins reset; the beneficiary cannot.
	res, err = f.service.ResetReferralPayment(payment.ID, beneficiary.ID)
	require.NoError(t, err)
	assert.Equal(t, ReasonNotAdmin, res.Reason)

	res, err = f.service.ResetReferralPayment(payment.ID, f.admin.ID)
	require.NoError(t, err)
	require.True(t, res.OK)

	require.NoError(t, f.db.First(&got, payment.ID).Error)
	assert.Equal(t, models.PaymentStatusPending, got.Status)
	assert.Empty(t, got.RejectionReason)

	// The re-armed payment confirms normally.
	res, err = f.service.ConfirmReferralPayment(payment.ID, beneficiary.ID)
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.True(t, f.userByID(t, payer.ID).IsConfirmed)
}
