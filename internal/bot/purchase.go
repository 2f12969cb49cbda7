package bot

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"kursbot/internal/level"
	"kursbot/internal/models"
	"kursbot/internal/pkg/utils"
)

// ── Course catalog and purchase ───────────────────────────────────────

func (b *Bot) sendCourseCatalog(c tele.Context, user *models.User) error {
	if ok, kb := b.subscriptionGate(user); !ok {
		return c.Send("Kurslarni ko'rish uchun avval kanallarga obuna bo'ling:", kb)
	}

	courses, err := b.repos.Course.FindActive()
	if err != nil {
		b.logger.Error("course catalog load failed", zap.Error(err))
		return c.Send("Xatolik yuz berdi. Keyinroq urinib ko'ring.")
	}
	if len(courses) == 0 {
		return c.Send("Hozircha faol kurslar yo'q.")
	}

	purchased := map[uint]bool{}
	participations, err := b.repos.Course.FindParticipations(user.ID)
	if err != nil {
		b.logger.Error("participation load failed", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	for _, p := range participations {
		purchased[p.CourseID] = true
	}

	return c.Send(
		fmt.Sprintf("Siz hozir <b>%s</b>dasiz. Kursni tanlang:", user.Level),
		b.keyboard.CourseCatalog(courses, user.Level, purchased),
		tele.ModeHTML,
	)
}

func (b *Bot) handleCourseSelect(c tele.Context, user *models.User, rawID string) error {
	id, err := strconv.ParseUint(rawID, 10, 32)
	if err != nil {
		return nil
	}
	course, err := b.repos.Course.FindByID(uint(id))
	if err != nil {
		return c.Send("Kurs topilmadi.")
	}

	// Purchases are sequential: only the course at the user's own stage.
	if level.Ordinal(course.Level) != level.Ordinal(user.Level) {
		return c.Send(fmt.Sprintf(
			"Bu kurs %s uchun. Siz hozir %sdasiz, avval o'z bosqichingizdagi kursni yakunlang.",
			course.Level, user.Level,
		))
	}

	card := CourseCard(course, b.cfg.Payment.CardNumber, b.cfg.Payment.CardHolder)
	return c.Send(card, b.keyboard.BuyCourse(course.ID), tele.ModeHTML)
}

func (b *Bot) handleBuyCourse(c tele.Context, user *models.User, rawID string) error {
	id, err := strconv.ParseUint(rawID, 10, 32)
	if err != nil {
		return nil
	}
	course, err := b.repos.Course.FindByID(uint(id))
	if err != nil {
		return c.Send("Kurs topilmadi.")
	}

	courseID := course.ID
	payment := &models.Payment{
		UserID:   user.ID,
		CourseID: &courseID,
		Kind:     models.PaymentKindCourse,
		Amount:   course.Price,
		Status:   models.PaymentStatusPending,
	}
	if err := b.repos.Payment.Create(payment); err != nil {
		b.logger.Error("payment create failed",
			zap.Uint("user_id", user.ID), zap.Uint("course_id", course.ID), zap.Error(err))
		return c.Send("Xatolik yuz berdi. Keyinroq urinib ko'ring.")
	}

	err = b.repos.User.Update(user.ID, map[string]interface{}{
		"step":             StepCourseReceipt,
		"processing_value": strconv.FormatUint(uint64(payment.ID), 10),
	})
	if err != nil {
		return c.Send("Xatolik yuz berdi. Keyinroq urinib ko'ring.")
	}

	return c.Send("To'lov chekini rasm ko'rinishida yuboring:")
}

func (b *Bot) handleCourseReceipt(c tele.Context, user *models.User) error {
	paymentID, err := strconv.ParseUint(user.ProcessingValue, 10, 32)
	if err != nil {
		_ = b.repos.User.UpdateStep(user.ID, StepNone)
		return c.Send("To'lov ma'lumotlari topilmadi. Qaytadan urinib ko'ring.")
	}
	payment, err := b.repos.Payment.FindByID(uint(paymentID))
	if err != nil {
		_ = b.repos.User.UpdateStep(user.ID, StepNone)
		return c.Send("To'lov ma'lumotlari topilmadi. Qaytadan urinib ko'ring.")
	}

	photo := c.Message().Photo
	if photo == nil {
		return c.Send("To'lov chekini rasm ko'rinishida yuboring.")
	}

	if err := b.repos.Payment.SetScreenshot(payment.ID, photo.FileID, utils.ScreenshotName(user.TelegramID)); err != nil {
		b.logger.Error("screenshot save failed", zap.Uint("payment_id", payment.ID), zap.Error(err))
	}

	courseName := ""
	if payment.Course != nil {
		courseName = payment.Course.Name
	}
	caption := fmt.Sprintf(
		"💳 <b>Yangi kurs to'lovi</b>\n\n👤 %s\n📞 %s\n📚 %s\n💰 %s so'm\n🆔 to'lov #%d",
		user.FullName, user.PhoneNumber, courseName,
		utils.FormatAmount(payment.Amount), payment.ID,
	)

	// The review prompt's delivery handle is stored on the payment so the
	// eventual decision can retract it.
	msgID, err := b.botAPI.SendPhoto(b.cfg.Bot.AdminChat, photo.FileID, caption, b.keyboard.CourseReview(payment.ID))
	if err != nil {
		b.logger.Error("review prompt delivery failed", zap.Uint("payment_id", payment.ID), zap.Error(err))
	} else {
		_ = b.repos.Payment.SetReviewMessage(payment.ID, b.cfg.Bot.AdminChat, msgID)
	}

	_ = b.repos.User.Update(user.ID, map[string]interface{}{
		"step":             StepNone,
		"processing_value": "",
	})

	return c.Send("Chekingiz qabul qilindi. Tasdiqlashni kuting.")
}

// ── Referral-bonus receipt ────────────────────────────────────────────

func (b *Bot) handleBonusSend(c tele.Context, user *models.User, rawID string) error {
	id, err := strconv.ParseUint(rawID, 10, 32)
	if err != nil {
		return nil
	}
	payment, err := b.repos.RefPayment.FindByID(uint(id))
	if err != nil || payment.UserID != user.ID {
		return c.Send("To'lov topilmadi.")
	}
	if payment.Status != models.PaymentStatusPending {
		return c.Send("Bu to'lov allaqachon ko'rib chiqilgan.")
	}

	err = b.repos.User.Update(user.ID, map[string]interface{}{
		"step":             StepBonusReceipt,
		"processing_value": strconv.FormatUint(uint64(payment.ID), 10),
	})
	if err != nil {
		return c.Send("Xatolik yuz berdi. Keyinroq urinib ko'ring.")
	}
	return c.Send("To'lov chekini rasm ko'rinishida yuboring:")
}

func (b *Bot) handleBonusReceipt(c tele.Context, user *models.User) error {
	paymentID, err := strconv.ParseUint(user.ProcessingValue, 10, 32)
	if err != nil {
		_ = b.repos.User.UpdateStep(user.ID, StepNone)
		return c.Send("To'lov ma'lumotlari topilmadi. Qaytadan urinib ko'ring.")
	}
	payment, err := b.repos.RefPayment.FindByID(uint(paymentID))
	if err != nil {
		_ = b.repos.User.UpdateStep(user.ID, StepNone)
		return c.Send("To'lov ma'lumotlari topilmadi. Qaytadan urinib ko'ring.")
	}

	photo := c.Message().Photo
	if photo == nil {
		return c.Send("To'lov chekini rasm ko'rinishida yuboring.")
	}

	if err := b.repos.RefPayment.SetScreenshot(payment.ID, photo.FileID, utils.ScreenshotName(user.TelegramID)); err != nil {
		b.logger.Error("screenshot save failed", zap.Uint("referral_payment_id", payment.ID), zap.Error(err))
	}

	caption := fmt.Sprintf(
		"🤝 <b>Referal to'lovi keldi</b>\n\n👤 %s\n📞 %s\n💰 %s so'm\n🆔 to'lov #%d\n\nPul kartangizga tushganini tekshirib, tasdiqlang.",
		user.FullName, user.PhoneNumber,
		utils.FormatAmount(payment.Amount), payment.ID,
	)

	// The beneficiary reviews their own incoming payment; the admin chat
	// gets a copy so a stuck review can be taken over.
	msgID, err := b.botAPI.SendPhoto(payment.Referrer.TelegramID, photo.FileID, caption, b.keyboard.BonusReview(payment.ID))
	if err != nil {
		b.logger.Error("bonus review delivery failed", zap.Uint("referral_payment_id", payment.ID), zap.Error(err))
	} else {
		_ = b.repos.RefPayment.SetReviewMessage(payment.ID, payment.Referrer.TelegramID, msgID)
	}
	if b.cfg.Bot.AdminChat != "" && b.cfg.Bot.AdminChat != payment.Referrer.TelegramID {
		_, _ = b.botAPI.SendPhoto(b.cfg.Bot.AdminChat, photo.FileID, caption, b.keyboard.BonusReview(payment.ID))
	}

	_ = b.repos.User.Update(user.ID, map[string]interface{}{
		"step":             StepNone,
		"processing_value": "",
	})

	return c.Send("Chekingiz yuborildi. Tasdiqlashni kuting.")
}
