package notify

import (
	"time"

	"go.uber.org/zap"

	"kursbot/internal/models"
	"kursbot/internal/pkg/telegram"
)

// TelegramNotifier sends messages through the direct Bot API client.
type TelegramNotifier struct {
	api         *telegram.BotAPI
	botUsername string
	logger      *zap.Logger
}

func NewTelegramNotifier(api *telegram.BotAPI, botUsername string, logger *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{api: api, botUsername: botUsername, logger: logger}
}

var _ Notifier = (*TelegramNotifier)(nil)

func (n *TelegramNotifier) send(chatID, text, kind string) {
	if chatID == "" {
		return
	}
	if _, err := n.api.SendMessage(chatID, text, nil); err != nil {
		n.logger.Warn("notification delivery failed",
			zap.String("kind", kind),
			zap.String("chat_id", chatID),
			zap.Error(err))
	}
}

func (n *TelegramNotifier) ReferrerWarning(referrer, user *models.User, deadlineHours int) {
	deadline := time.Now().Add(time.Duration(deadlineHours) * time.Hour)
	n.send(referrer.TelegramID,
		referrerWarningText(user.FullName, user.Level, referrer.Level, deadline),
		"referrer_warning")
}

func (n *TelegramNotifier) ReferrerChanged(user *models.User, oldReferrerName, newReferrerName, adminName string) {
	n.send(user.TelegramID,
		referrerChangedText(oldReferrerName, newReferrerName, adminName),
		"referrer_changed")
}

func (n *TelegramNotifier) NewReferral(referrer, user *models.User, adminName string) {
	n.send(referrer.TelegramID,
		newReferralText(user.FullName, user.Level, adminName),
		"new_referral")
}

func (n *TelegramNotifier) ReferralRemoved(oldReferrer, user *models.User, adminName string) {
	n.send(oldReferrer.TelegramID,
		referralRemovedText(user.FullName, user.Level, adminName),
		"referral_removed")
}

func (n *TelegramNotifier) PaymentConfirmed(user *models.User, amount int, courseName, channelLink string) {
	n.send(user.TelegramID, paymentConfirmedText(amount, courseName, channelLink), "payment_confirmed")
}

func (n *TelegramNotifier) PaymentRejected(user *models.User, amount int, reason string) {
	n.send(user.TelegramID, paymentRejectedText(amount, reason), "payment_rejected")
}

func (n *TelegramNotifier) ReferralPaymentDue(user *models.User, beneficiary *models.User, amount int) {
	n.send(user.TelegramID,
		referralPaymentDueText(beneficiary.FullName, beneficiary.CardNumber, beneficiary.CardHolderFullName, amount),
		"referral_payment_due")
}

func (n *TelegramNotifier) ReferralCodeIssued(user *models.User, code, link string, amount int) {
	n.send(user.TelegramID, referralCodeIssuedText(code, link, amount), "referral_code_issued")
}

func (n *TelegramNotifier) ReferralPaymentRejected(user *models.User, reason string) {
	n.send(user.TelegramID, referralPaymentRejectedText(reason), "referral_payment_rejected")
}

func (n *TelegramNotifier) DeleteReviewPrompt(chatID string, messageID int) {
	if chatID == "" || messageID == 0 {
		return
	}
	if err := n.api.DeleteMessage(chatID, messageID); err != nil {
		n.logger.Warn("failed to delete review prompt",
			zap.String("chat_id", chatID),
			zap.Int("message_id", messageID),
			zap.Error(err))
	}
}
