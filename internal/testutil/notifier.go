package testutil

import (
	"sync"

	"kursbot/internal/models"
)

// Notification is one recorded outbound message.
type Notification struct {
	Kind      string
	ChatID    string
	AdminName string
	Reason    string
	Code      string
	Amount    int
}

// RecordingNotifier captures notifications instead of delivering them.
type RecordingNotifier struct {
	mu   sync.Mutex
	Sent []Notification
}

func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

func (r *RecordingNotifier) record(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sent = append(r.Sent, n)
}

// ByKind returns all recorded notifications of the given kind.
func (r *RecordingNotifier) ByKind(kind string) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.Sent {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// CountKind returns how many notifications of the kind were attempted.
func (r *RecordingNotifier) CountKind(kind string) int {
	return len(r.ByKind(kind))
}

func (r *RecordingNotifier) ReferrerWarning(referrer, user *models.User, deadlineHours int) {
	r.record(Notification{Kind: "referrer_warning", ChatID: referrer.TelegramID})
}

func (r *RecordingNotifier) ReferrerChanged(user *models.User, oldReferrerName, newReferrerName, adminName string) {
	r.record(Notification{Kind: "referrer_changed", ChatID: user.TelegramID, AdminName: adminName})
}

func (r *RecordingNotifier) NewReferral(referrer, user *models.User, adminName string) {
	r.record(Notification{Kind: "new_referral", ChatID: referrer.TelegramID, AdminName: adminName})
}

func (r *RecordingNotifier) ReferralRemoved(oldReferrer, user *models.User, adminName string) {
	r.record(Notification{Kind: "referral_removed", ChatID: oldReferrer.TelegramID, AdminName: adminName})
}

func (r *RecordingNotifier) PaymentConfirmed(user *models.User, amount int, courseName, channelLink string) {
	r.record(Notification{Kind: "payment_confirmed", ChatID: user.TelegramID, Amount: amount})
}

func (r *RecordingNotifier) PaymentRejected(user *models.User, amount int, reason string) {
	r.record(Notification{Kind: "payment_rejected", ChatID: user.TelegramID, Amount: amount, Reason: reason})
}

func (r *RecordingNotifier) ReferralPaymentDue(user *models.User, beneficiary *models.User, amount int) {
	r.record(Notification{Kind: "referral_payment_due", ChatID: user.TelegramID, Amount: amount})
}

func (r *RecordingNotifier) ReferralCodeIssued(user *models.User, code, link string, amount int) {
	r.record(Notification{Kind: "referral_code_issued", ChatID: user.TelegramID, Code: code, Amount: amount})
}

func (r *RecordingNotifier) ReferralPaymentRejected(user *models.User, reason string) {
	r.record(Notification{Kind: "referral_payment_rejected", ChatID: user.TelegramID, Reason: reason})
}

func (r *RecordingNotifier) DeleteReviewPrompt(chatID string, messageID int) {
	r.record(Notification{Kind: "delete_review_prompt", ChatID: chatID})
}
