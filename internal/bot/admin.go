package bot

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"kursbot/internal/models"
	"kursbot/internal/pkg/utils"
	"kursbot/internal/workflow"
)

// Admin review handlers. The workflow layer owns the state machine; these
// translate button presses into transitions and render the outcome.

func parseID(raw string) (uint, bool) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

func (b *Bot) handleCourseDecision(c tele.Context, actor *models.User, rawID string, confirm bool) error {
	id, ok := parseID(rawID)
	if !ok {
		return nil
	}
	if !actor.IsAdmin {
		return c.Respond(&tele.CallbackResponse{Text: "Sizda huquq yo'q"})
	}

	if !confirm {
		// Rejections need a reason; switch the admin into a reason dialog.
		err := b.repos.User.Update(actor.ID, map[string]interface{}{
			"step":             StepCourseReject,
			"processing_value": rawID,
		})
		if err != nil {
			return c.Send("Xatolik yuz berdi.")
		}
		return c.Send(fmt.Sprintf("To'lov #%d uchun rad etish sababini yozing:", id))
	}

	res, err := b.flow.ConfirmCoursePayment(id, actor.ID)
	if err != nil {
		b.logger.Error("course confirmation failed",
			zap.Uint("payment_id", id), zap.Error(err))
		return c.Send("Xatolik yuz berdi.")
	}
	return b.renderDecision(c, res, fmt.Sprintf("To'lov #%d tasdiqlandi.", id))
}

func (b *Bot) handleCourseReset(c tele.Context, actor *models.User, rawID string) error {
	id, ok := parseID(rawID)
	if !ok {
		return nil
	}
	res, err := b.flow.ResetCoursePayment(id, actor.ID)
	if err != nil {
		return c.Send("Xatolik yuz berdi.")
	}
	return b.renderDecision(c, res, fmt.Sprintf("To'lov #%d qayta ko'rib chiqishga qaytarildi.", id))
}

func (b *Bot) handleBonusDecision(c tele.Context, actor *models.User, rawID string, confirm bool) error {
	id, ok := parseID(rawID)
	if !ok {
		return nil
	}

	if !confirm {
		err := b.repos.User.Update(actor.ID, map[string]interface{}{
			"step":             StepBonusReject,
			"processing_value": rawID,
		})
		if err != nil {
			return c.Send("Xatolik yuz berdi.")
		}
		return c.Send(fmt.Sprintf("Referal to'lovi #%d uchun rad etish sababini yozing:", id))
	}

	res, err := b.flow.ConfirmReferralPayment(id, actor.ID)
	if err != nil {
		return c.Send("Xatolik yuz berdi.")
	}
	return b.renderDecision(c, res, fmt.Sprintf("Referal to'lovi #%d tasdiqlandi.", id))
}

func (b *Bot) handleBonusReset(c tele.Context, actor *models.User, rawID string) error {
	id, ok := parseID(rawID)
	if !ok {
		return nil
	}
	res, err := b.flow.ResetReferralPayment(id, actor.ID)
	if err != nil {
		return c.Send("Xatolik yuz berdi.")
	}
	return b.renderDecision(c, res, fmt.Sprintf("Referal to'lovi #%d qayta ko'rib chiqishga qaytarildi.", id))
}

// handleRejectReason completes a rejection once the admin types the reason.
func (b *Bot) handleRejectReason(c tele.Context, actor *models.User, reason string) error {
	id, ok := parseID(actor.ProcessingValue)
	if !ok || reason == "" {
		return c.Send("Rad etish sababini yozing:")
	}

	var res *workflow.Result
	var err error
	switch actor.Step {
	case StepCourseReject:
		res, err = b.flow.RejectCoursePayment(id, actor.ID, reason)
	case StepBonusReject:
		res, err = b.flow.RejectReferralPayment(id, actor.ID, reason)
	default:
		return nil
	}

	_ = b.repos.User.Update(actor.ID, map[string]interface{}{
		"step":             StepNone,
		"processing_value": "",
	})

	if err != nil {
		return c.Send("Xatolik yuz berdi.")
	}
	return b.renderDecision(c, res, fmt.Sprintf("To'lov #%d rad etildi.", id))
}

// renderDecision turns a workflow result into an operator-facing reply.
func (b *Bot) renderDecision(c tele.Context, res *workflow.Result, successText string) error {
	if res == nil {
		return c.Send("Xatolik yuz berdi.")
	}
	if res.AlreadyProcessed {
		return c.Send("Bu to'lov allaqachon ko'rib chiqilgan.")
	}
	if !res.OK {
		return c.Send("Amal bajarilmadi: " + res.Message)
	}

	text := successText
	if res.Consistency != nil && res.Consistency.NeedsReplacement {
		u := res.Consistency.User
		r := res.Consistency.Referrer
		text += fmt.Sprintf(
			"\n\n⚠️ %s (%s) o'z taklifchisi %s (%s)dan o'zib ketdi. Taklifchi ogohlantirildi.",
			u.FullName, u.Level, r.FullName, r.Level,
		)
		if candidates, err := b.engine.FindSuitableReferrers(u.UserID, 3); err == nil && len(candidates) > 0 {
			text += "\n\nO'rniga taklifchi bo'la oladiganlar:"
			for _, cand := range candidates {
				text += fmt.Sprintf("\n• %s (%s, %d taklif)", cand.FullName, cand.Level, cand.ReferralCount)
			}
		}
	}
	return c.Send(text)
}

// sendPendingReviews lists open payments with their receipt status, so an
// admin can chase reviews that lost their prompt message.
func (b *Bot) sendPendingReviews(c tele.Context, actor *models.User) error {
	payments, total, err := b.repos.Payment.FindByStatus(models.PaymentStatusPending, 10, 1)
	if err != nil {
		return c.Send("Xatolik yuz berdi.")
	}
	bonuses, bonusTotal, err := b.repos.RefPayment.FindByStatus(models.PaymentStatusPending, 10, 1)
	if err != nil {
		return c.Send("Xatolik yuz berdi.")
	}

	if total == 0 && bonusTotal == 0 {
		return c.Send("Kutilayotgan to'lovlar yo'q.")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>Kutilayotgan to'lovlar</b> (kurs: %d, referal: %d)\n", total, bonusTotal)
	for _, p := range payments {
		fmt.Fprintf(&sb, "\n#%d — %s, %s so'm", p.ID, p.User.FullName, utils.FormatAmount(p.Amount))
		if p.Screenshot == "" {
			sb.WriteString(" (chek hali yuborilmagan)")
		}
	}
	for _, p := range bonuses {
		fmt.Fprintf(&sb, "\nreferal #%d — %s, %s so'm", p.ID, p.User.FullName, utils.FormatAmount(p.Amount))
	}
	if err := c.Send(sb.String(), tele.ModeHTML); err != nil {
		return err
	}

	// Re-send decision keyboards for receipts whose prompt went missing.
	for _, p := range payments {
		if p.Screenshot != "" && p.ReviewMessageID == 0 {
			caption := fmt.Sprintf("💳 To'lov #%d — %s, %s so'm", p.ID, p.User.FullName, utils.FormatAmount(p.Amount))
			if msgID, err := b.botAPI.SendPhoto(actor.TelegramID, p.Screenshot, caption, b.keyboard.CourseReview(p.ID)); err == nil {
				_ = b.repos.Payment.SetReviewMessage(p.ID, actor.TelegramID, msgID)
			}
		}
	}
	return nil
}
