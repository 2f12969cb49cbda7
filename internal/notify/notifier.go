// Package notify delivers user-facing messages for the referral engine and
// the payment workflow. Delivery is best-effort: callers never depend on a
// send succeeding, failures are logged and swallowed.
package notify

import (
	"kursbot/internal/models"
)

// Notifier is the outbound message contract consumed by the engine, the
// workflow and the cron jobs.
type Notifier interface {
	// Referral consistency.
	ReferrerWarning(referrer, user *models.User, deadlineHours int)
	ReferrerChanged(user *models.User, oldReferrerName, newReferrerName, adminName string)
	NewReferral(referrer, user *models.User, adminName string)
	ReferralRemoved(oldReferrer, user *models.User, adminName string)

	// Course payments.
	PaymentConfirmed(user *models.User, amount int, courseName, channelLink string)
	PaymentRejected(user *models.User, amount int, reason string)
	ReferralPaymentDue(user *models.User, beneficiary *models.User, amount int)

	// Referral-bonus payments.
	ReferralCodeIssued(user *models.User, code, link string, amount int)
	ReferralPaymentRejected(user *models.User, reason string)

	// DeleteReviewPrompt retracts an admin/beneficiary review message
	// after a decision. No-op when the handle is empty.
	DeleteReviewPrompt(chatID string, messageID int)
}
