package workflow

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"kursbot/internal/models"
	"kursbot/internal/notify"
	"kursbot/internal/pkg/utils"
	"kursbot/internal/repository"
)

// canDecideReferralPayment: the beneficiary reviews their own incoming
// bonus payment; admins can decide any.
func canDecideReferralPayment(actor *models.User, payment *models.ReferralPayment) bool {
	return actor.IsAdmin || actor.ID == payment.ReferrerID
}

func (s *Service) loadReferralDecision(paymentID, actorID uint) (*models.ReferralPayment, *models.User, *Result, error) {
	payment, err := s.refPayments.FindByID(paymentID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil, failure(ReasonNotFound, "referral payment not found"), nil
		}
		return nil, nil, nil, fmt.Errorf("load referral payment %d: %w", paymentID, err)
	}

	actor, err := s.users.FindByID(actorID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil, failure(ReasonNotFound, "deciding user not found"), nil
		}
		return nil, nil, nil, fmt.Errorf("load deciding user %d: %w", actorID, err)
	}
	if !canDecideReferralPayment(actor, payment) {
		return nil, nil, failure(ReasonNotAllowed, "only the beneficiary or an admin can decide this payment"), nil
	}
	return payment, actor, nil, nil
}

// ConfirmReferralPayment moves a bonus payment to CONFIRMED: the payer
// becomes a confirmed member, gets a referral code (generated lazily,
// exactly once) and receives their deep link.
func (s *Service) ConfirmReferralPayment(paymentID, actorID uint) (*Result, error) {
	payment, actor, failRes, err := s.loadReferralDecision(paymentID, actorID)
	if err != nil || failRes != nil {
		return failRes, err
	}

	payer := &payment.User
	now := time.Now()
	won := false
	var code string

	err = s.db.Transaction(func(tx *gorm.DB) error {
		refPayments := s.refPayments.WithTx(tx)
		users := s.users.WithTx(tx)

		ok, err := refPayments.TransitionFromPending(payment.ID, map[string]interface{}{
			"status":          models.PaymentStatusConfirmed,
			"confirmed_by_id": actor.ID,
			"confirmed_at":    now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		won = true

		updates := map[string]interface{}{
			"is_confirmed":    true,
			"confirmed_by_id": actor.ID,
			"confirmed_at":    now,
		}
		if payer.ReferralCode == nil {
			generated, err := generateUniqueReferralCode(users)
			if err != nil {
				return err
			}
			updates["referral_code"] = generated
			code = generated
		} else {
			code = *payer.ReferralCode
		}
		return users.Update(payer.ID, updates)
	})
	if err != nil {
		return nil, fmt.Errorf("confirm referral payment %d: %w", paymentID, err)
	}
	if !won {
		return alreadyProcessed(), nil
	}

	link := notify.ReferralLink(s.botUsername, code)
	s.notifier.ReferralCodeIssued(payer, code, link, payment.Amount)
	s.notifier.DeleteReviewPrompt(payment.ReviewChatID, payment.ReviewMessageID)

	s.logger.Info("referral payment confirmed",
		zap.Uint("payment_id", payment.ID),
		zap.Uint("payer_id", payer.ID),
		zap.Uint("actor_id", actor.ID))

	return &Result{OK: true, Message: "referral payment confirmed"}, nil
}

// generateUniqueReferralCode draws random codes until one is free.
// Collisions on an 8-char code are vanishingly rare; the cap guards a
// broken random source from looping forever.
func generateUniqueReferralCode(users *repository.UserRepository) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		code := utils.GenerateReferralCode()
		_, err := users.FindByReferralCode(code)
		if repository.IsNotFound(err) {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("check referral code uniqueness: %w", err)
		}
	}
	return "", fmt.Errorf("could not generate a unique referral code")
}

// RejectReferralPayment moves a bonus payment to REJECTED. The payer's
// membership state is untouched; only the ledger entry records the outcome.
func (s *Service) RejectReferralPayment(paymentID, actorID uint, reason string) (*Result, error) {
	if reason == "" {
		return failure(ReasonMissingReason, "a rejection reason is required"), nil
	}

	payment, actor, failRes, err := s.loadReferralDecision(paymentID, actorID)
	if err != nil || failRes != nil {
		return failRes, err
	}

	ok, err := s.refPayments.TransitionFromPending(payment.ID, map[string]interface{}{
		"status":           models.PaymentStatusRejected,
		"rejection_reason": reason,
		"confirmed_by_id":  actor.ID,
		"confirmed_at":     time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("reject referral payment %d: %w", paymentID, err)
	}
	if !ok {
		return alreadyProcessed(), nil
	}

	s.notifier.ReferralPaymentRejected(&payment.User, reason)
	s.notifier.DeleteReviewPrompt(payment.ReviewChatID, payment.ReviewMessageID)

	return &Result{OK: true, Message: "referral payment rejected"}, nil
}

// ResetReferralPayment moves a terminal bonus payment back to PENDING.
func (s *Service) ResetReferralPayment(paymentID, actorID uint) (*Result, error) {
	_, failRes, err := s.loadAdmin(actorID)
	if err != nil || failRes != nil {
		return failRes, err
	}

	ok, err := s.refPayments.ResetToPending(paymentID)
	if err != nil {
		return nil, fmt.Errorf("reset referral payment %d: %w", paymentID, err)
	}
	if !ok {
		return failure(ReasonNotTerminal, "referral payment is not in a terminal status"), nil
	}
	return &Result{OK: true, Message: "referral payment reset to pending"}, nil
}
