// Package workflow implements the payment-confirmation state machine.
//
// A payment is PENDING until an operator decides; CONFIRMED and REJECTED
// are terminal apart from an explicit reset back to PENDING. Confirmation
// side effects run at most once per transition: the status flip is an
// optimistic single-row update, so a second confirmer loses the race and
// gets an already-processed result instead of replaying the chain.
package workflow

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"kursbot/internal/config"
	"kursbot/internal/level"
	"kursbot/internal/models"
	"kursbot/internal/notify"
	"kursbot/internal/referral"
	"kursbot/internal/repository"
)

// Failure reasons returned in structured results.
const (
	ReasonNotFound         = "not_found"
	ReasonNotAdmin         = "not_admin"
	ReasonNotAllowed       = "not_allowed"
	ReasonAlreadyProcessed = "already_processed"
	ReasonMissingReason    = "missing_reason"
	ReasonNotTerminal      = "not_terminal"
)

// Service drives payment state transitions and their side effects.
type Service struct {
	db          *gorm.DB
	users       *repository.UserRepository
	courses     *repository.CourseRepository
	payments    *repository.PaymentRepository
	refPayments *repository.ReferralPaymentRepository
	engine      *referral.Engine
	notifier    notify.Notifier
	logger      *zap.Logger
	referralCfg config.ReferralConfig
	botUsername string
}

func NewService(
	db *gorm.DB,
	engine *referral.Engine,
	notifier notify.Notifier,
	referralCfg config.ReferralConfig,
	botUsername string,
	logger *zap.Logger,
) *Service {
	return &Service{
		db:          db,
		users:       repository.NewUserRepository(db),
		courses:     repository.NewCourseRepository(db),
		payments:    repository.NewPaymentRepository(db),
		refPayments: repository.NewReferralPaymentRepository(db),
		engine:      engine,
		notifier:    notifier,
		logger:      logger,
		referralCfg: referralCfg,
		botUsername: botUsername,
	}
}

// Result is the outcome of a state-transition attempt.
type Result struct {
	OK               bool                        `json:"ok"`
	AlreadyProcessed bool                        `json:"already_processed,omitempty"`
	Reason           string                      `json:"reason,omitempty"`
	Message          string                      `json:"message"`
	Consistency      *referral.ConsistencyResult `json:"consistency,omitempty"`
}

func failure(reason, message string) *Result {
	return &Result{OK: false, Reason: reason, Message: message}
}

func alreadyProcessed() *Result {
	return &Result{
		OK:               false,
		AlreadyProcessed: true,
		Reason:           ReasonAlreadyProcessed,
		Message:          "payment is not pending",
	}
}

// loadAdmin resolves the acting admin; every terminal transition requires one.
func (s *Service) loadAdmin(adminID uint) (*models.User, *Result, error) {
	admin, err := s.users.FindByID(adminID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, failure(ReasonNotFound, "confirming admin not found"), nil
		}
		return nil, nil, fmt.Errorf("load admin %d: %w", adminID, err)
	}
	if !admin.IsAdmin {
		return nil, failure(ReasonNotAdmin, "confirming user has no admin rights"), nil
	}
	return admin, nil, nil
}

// ConfirmCoursePayment moves a COURSE payment to CONFIRMED and applies the
// confirmation chain: level advance, referral credit and participation run
// in one transaction; the consistency check follows from the committed
// state and its failure never unwinds the confirmation; notifications are
// post-commit and best-effort.
func (s *Service) ConfirmCoursePayment(paymentID, adminID uint) (*Result, error) {
	admin, failRes, err := s.loadAdmin(adminID)
	if err != nil || failRes != nil {
		return failRes, err
	}

	payment, err := s.payments.FindByID(paymentID)
	if err != nil {
		if repository.IsNotFound(err) {
			return failure(ReasonNotFound, "payment not found"), nil
		}
		return nil, fmt.Errorf("load payment %d: %w", paymentID, err)
	}

	user := &payment.User
	now := time.Now()
	var advancedTo string
	won := false

	err = s.db.Transaction(func(tx *gorm.DB) error {
		payments := s.payments.WithTx(tx)
		users := s.users.WithTx(tx)
		courses := s.courses.WithTx(tx)

		ok, err := payments.TransitionFromPending(payment.ID, map[string]interface{}{
			"status":          models.PaymentStatusConfirmed,
			"confirmed_by_id": admin.ID,
			"confirmed_at":    now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return nil // lost the race; side effects stay un-run
		}
		won = true

		// Buying the course for the current stage unlocks the next one,
		// provided the catalog has a course there.
		next := level.Next(user.Level)
		if _, err := courses.FindActiveByLevel(next); err == nil {
			if err := users.UpdateLevel(user.ID, next); err != nil {
				return fmt.Errorf("advance level: %w", err)
			}
			advancedTo = next
		} else if !repository.IsNotFound(err) {
			return fmt.Errorf("lookup next-stage course: %w", err)
		}

		if user.InvitedByID != nil {
			if err := users.IncrementReferralCount(*user.InvitedByID); err != nil {
				return fmt.Errorf("credit referrer: %w", err)
			}
		}

		if payment.CourseID != nil {
			if err := courses.EnsureParticipation(user.ID, *payment.CourseID); err != nil {
				return fmt.Errorf("record participation: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("confirm payment %d: %w", paymentID, err)
	}
	if !won {
		return alreadyProcessed(), nil
	}
	if advancedTo != "" {
		user.Level = advancedTo
	}

	// The level just changed, so a fresh consistency check is mandatory.
	// Its failure is logged, never surfaced: the confirmation stands.
	consistency, err := s.engine.CheckConsistency(user.ID)
	if err != nil {
		s.logger.Error("consistency check after confirmation failed",
			zap.Uint("user_id", user.ID), zap.Error(err))
		consistency = nil
	}

	s.notifyCourseConfirmed(payment, user)
	s.seedReferralPayment(user)

	s.logger.Info("course payment confirmed",
		zap.Uint("payment_id", payment.ID),
		zap.Uint("user_id", user.ID),
		zap.String("level", user.Level),
		zap.Uint("admin_id", admin.ID))

	return &Result{OK: true, Message: "payment confirmed", Consistency: consistency}, nil
}

func (s *Service) notifyCourseConfirmed(payment *models.Payment, user *models.User) {
	courseName := ""
	channelLink := ""
	if payment.Course != nil {
		courseName = payment.Course.Name
		channelLink = payment.Course.PrivateChannelID
	}
	s.notifier.PaymentConfirmed(user, payment.Amount, courseName, channelLink)
	s.notifier.DeleteReviewPrompt(payment.ReviewChatID, payment.ReviewMessageID)
}

// seedReferralPayment opens the upward bonus payment after a confirmed
// course purchase. Skipped when the payer is already confirmed (their code
// is issued) or an open bonus payment exists.
func (s *Service) seedReferralPayment(user *models.User) {
	if user.IsConfirmed {
		return
	}

	root, err := s.engine.RootReferrer(user.ID)
	if err != nil {
		s.logger.Error("root referrer resolution failed",
			zap.Uint("user_id", user.ID), zap.Error(err))
		return
	}
	if root == nil {
		return
	}

	if _, err := s.refPayments.FindPendingByUser(user.ID); err == nil {
		return // one open bonus payment at a time
	} else if !repository.IsNotFound(err) {
		s.logger.Error("pending referral payment lookup failed",
			zap.Uint("user_id", user.ID), zap.Error(err))
		return
	}

	refPayment := &models.ReferralPayment{
		UserID:     user.ID,
		ReferrerID: root.ID,
		Amount:     s.referralCfg.BonusAmount,
		Status:     models.PaymentStatusPending,
	}
	if err := s.refPayments.Create(refPayment); err != nil {
		s.logger.Error("seeding referral payment failed",
			zap.Uint("user_id", user.ID), zap.Error(err))
		return
	}
	s.notifier.ReferralPaymentDue(user, root, refPayment.Amount)
}

// RejectCoursePayment moves a COURSE payment to REJECTED. A non-empty
// reason is required; the payer keeps their level and may resubmit.
func (s *Service) RejectCoursePayment(paymentID, adminID uint, reason string) (*Result, error) {
	if reason == "" {
		return failure(ReasonMissingReason, "a rejection reason is required"), nil
	}

	admin, failRes, err := s.loadAdmin(adminID)
	if err != nil || failRes != nil {
		return failRes, err
	}

	payment, err := s.payments.FindByID(paymentID)
	if err != nil {
		if repository.IsNotFound(err) {
			return failure(ReasonNotFound, "payment not found"), nil
		}
		return nil, fmt.Errorf("load payment %d: %w", paymentID, err)
	}

	ok, err := s.payments.TransitionFromPending(payment.ID, map[string]interface{}{
		"status":           models.PaymentStatusRejected,
		"rejection_reason": reason,
		"confirmed_by_id":  admin.ID,
		"confirmed_at":     time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("reject payment %d: %w", paymentID, err)
	}
	if !ok {
		return alreadyProcessed(), nil
	}

	s.notifier.PaymentRejected(&payment.User, payment.Amount, reason)
	s.notifier.DeleteReviewPrompt(payment.ReviewChatID, payment.ReviewMessageID)

	s.logger.Info("course payment rejected",
		zap.Uint("payment_id", payment.ID),
		zap.String("reason", reason),
		zap.Uint("admin_id", admin.ID))

	return &Result{OK: true, Message: "payment rejected"}, nil
}

// ResetCoursePayment moves a terminal payment back to PENDING so a mistaken
// decision can be redone. A later confirmation re-runs the full chain.
func (s *Service) ResetCoursePayment(paymentID, adminID uint) (*Result, error) {
	_, failRes, err := s.loadAdmin(adminID)
	if err != nil || failRes != nil {
		return failRes, err
	}

	ok, err := s.payments.ResetToPending(paymentID)
	if err != nil {
		return nil, fmt.Errorf("reset payment %d: %w", paymentID, err)
	}
	if !ok {
		return failure(ReasonNotTerminal, "payment is not in a terminal status"), nil
	}
	return &Result{OK: true, Message: "payment reset to pending"}, nil
}
