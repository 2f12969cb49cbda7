package bot

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"kursbot/internal/models"
)

// Card requisites are shown to invitees when their referral fee comes due,
// so members keep them current through this dialog.

func (b *Bot) startCardUpdate(c tele.Context, user *models.User) error {
	if err := b.repos.User.UpdateStep(user.ID, StepCardNumber); err != nil {
		b.logger.Error("card: failed to update step", zap.Uint("user_id", user.ID), zap.Error(err))
		return c.Send("Xatolik yuz berdi. Keyinroq urinib ko'ring.")
	}

	if user.CardNumber != "" {
		return c.Send(fmt.Sprintf(
			"Joriy kartangiz:\n<code>%s</code>\n👤 %s\n\nYangi karta raqamini yuboring:",
			user.CardNumber, user.CardHolderFullName,
		), tele.ModeHTML)
	}
	return c.Send("Karta raqamingizni yuboring (16 xonali):")
}

func (b *Bot) handleCardText(c tele.Context, user *models.User, text string) error {
	switch user.Step {
	case StepCardNumber:
		digits := strings.ReplaceAll(text, " ", "")
		if !isCardNumber(digits) {
			return c.Send("Karta raqami 16 ta raqamdan iborat bo'lishi kerak. Qaytadan yuboring:")
		}
		err := b.repos.User.Update(user.ID, map[string]interface{}{
			"processing_value": digits,
			"step":             StepCardHolder,
		})
		if err != nil {
			b.logger.Error("card: failed to stash number", zap.Uint("user_id", user.ID), zap.Error(err))
			return c.Send("Xatolik yuz berdi. Keyinroq urinib ko'ring.")
		}
		return c.Send("Karta egasining ism-familiyasini yozing:")

	case StepCardHolder:
		holder := strings.TrimSpace(text)
		if len(holder) < 3 {
			return c.Send("Ism-familiya juda qisqa. Qaytadan yozing:")
		}
		err := b.repos.User.Update(user.ID, map[string]interface{}{
			"card_number":           user.ProcessingValue,
			"card_holder_full_name": holder,
			"processing_value":      "",
			"step":                  StepNone,
		})
		if err != nil {
			b.logger.Error("card: failed to save requisites", zap.Uint("user_id", user.ID), zap.Error(err))
			return c.Send("Xatolik yuz berdi. Keyinroq urinib ko'ring.")
		}
		return c.Send("✅ Karta ma'lumotlari saqlandi.", b.keyboard.MainMenu(user))
	}
	return nil
}

func isCardNumber(s string) bool {
	if len(s) != 16 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
