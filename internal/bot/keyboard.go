package bot

import (
	"fmt"

	tele "gopkg.in/telebot.v3"

	"kursbot/internal/level"
	"kursbot/internal/models"
	"kursbot/internal/pkg/utils"
)

// Reply keyboard labels.
const (
	BtnCourses  = "📚 Kurslar"
	BtnMyStatus = "📊 Mening holatim"
	BtnReferral = "🔗 Referal havola"
	BtnMyTeam   = "👥 Mening jamoam"
	BtnMyCard   = "💳 Mening kartam"
	BtnPending  = "🗂 Tasdiqlanmagan to'lovlar"
	BtnMale     = "Erkak"
	BtnFemale   = "Ayol"
	BtnContact  = "📱 Raqamni yuborish"
)

// KeyboardBuilder constructs the bot's keyboards.
type KeyboardBuilder struct{}

func NewKeyboardBuilder() *KeyboardBuilder {
	return &KeyboardBuilder{}
}

// MainMenu is the persistent reply keyboard. Admins get an extra row.
func (kb *KeyboardBuilder) MainMenu(user *models.User) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{ResizeKeyboard: true}
	rows := []tele.Row{
		menu.Row(menu.Text(BtnCourses)),
		menu.Row(menu.Text(BtnMyStatus), menu.Text(BtnReferral)),
		menu.Row(menu.Text(BtnMyTeam), menu.Text(BtnMyCard)),
	}
	if user.IsAdmin {
		rows = append(rows, menu.Row(menu.Text(BtnPending)))
	}
	menu.Reply(rows...)
	return menu
}

// Gender is the two-button registration keyboard.
func (kb *KeyboardBuilder) Gender() *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{ResizeKeyboard: true, OneTimeKeyboard: true}
	menu.Reply(menu.Row(menu.Text(BtnMale), menu.Text(BtnFemale)))
	return menu
}

// Contact requests the user's phone number.
func (kb *KeyboardBuilder) Contact() *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{ResizeKeyboard: true, OneTimeKeyboard: true}
	menu.Reply(menu.Row(menu.Contact(BtnContact)))
	return menu
}

// JoinChannels lists mandatory channels with a re-check button.
func (kb *KeyboardBuilder) JoinChannels(channels []models.MandatoryChannel) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	var rows []tele.Row
	for _, ch := range channels {
		rows = append(rows, menu.Row(menu.URL(ch.Name, ch.Link)))
	}
	rows = append(rows, menu.Row(menu.Data("✅ Obuna bo'ldim", "check_subscription")))
	menu.Inline(rows...)
	return menu
}

// CourseCatalog lists courses in three states: already bought, the one at
// the user's own stage, and everything still locked above it.
func (kb *KeyboardBuilder) CourseCatalog(courses []models.Course, userLevel string, purchased map[uint]bool) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	userOrdinal := level.Ordinal(userLevel)

	var rows []tele.Row
	for _, course := range courses {
		label := course.Name
		switch {
		case purchased[course.ID]:
			label = "✅ " + label
		case level.Ordinal(course.Level) == userOrdinal:
			label = "👉 " + label
		case level.Ordinal(course.Level) > userOrdinal:
			label = "🔒 " + label
		}
		rows = append(rows, menu.Row(menu.Data(label, fmt.Sprintf("course_%d", course.ID))))
	}
	menu.Inline(rows...)
	return menu
}

// TeamNav is the pagination and drill-down keyboard under the team list.
func (kb *KeyboardBuilder) TeamNav(page, totalPages int) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	var nav []tele.Btn
	if page > 0 {
		nav = append(nav, menu.Data("◀️ Oldingi", fmt.Sprintf("team_page_%d", page-1)))
	}
	if page < totalPages-1 {
		nav = append(nav, menu.Data("Keyingi ▶️", fmt.Sprintf("team_page_%d", page+1)))
	}
	var rows []tele.Row
	if len(nav) > 0 {
		rows = append(rows, menu.Row(nav...))
	}
	rows = append(rows, menu.Row(
		menu.Data("🌳 Referal daraxti", "team_tree"),
		menu.Data("📊 Statistika", "team_stats"),
	))
	menu.Inline(rows...)
	return menu
}

// BuyCourse is the single pay button under a course card.
func (kb *KeyboardBuilder) BuyCourse(courseID uint) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(menu.Data("💳 To'lovga o'tish", fmt.Sprintf("buy_%d", courseID))))
	return menu
}

// BonusSend starts the referral-bonus receipt dialog.
func (kb *KeyboardBuilder) BonusSend(paymentID uint) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(menu.Data("📸 Chekni yuborish", fmt.Sprintf("bonus_send_%d", paymentID))))
	return menu
}

// CourseReview is the admin decision keyboard under a course receipt.
func (kb *KeyboardBuilder) CourseReview(paymentID uint) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(
		menu.Data("✅ Tasdiqlash", fmt.Sprintf("payok_%d", paymentID)),
		menu.Data("❌ Rad etish", fmt.Sprintf("payno_%d", paymentID)),
	))
	return menu
}

// BonusReview is the decision keyboard under a referral-bonus receipt.
func (kb *KeyboardBuilder) BonusReview(paymentID uint) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(
		menu.Data("✅ Tasdiqlash", fmt.Sprintf("refok_%d", paymentID)),
		menu.Data("❌ Rad etish", fmt.Sprintf("refno_%d", paymentID)),
	))
	return menu
}

// ReviewReset re-opens a decided payment from a pending-list entry.
func (kb *KeyboardBuilder) ReviewReset(paymentID uint, referralBonus bool) *tele.ReplyMarkup {
	prefix := "payreset_"
	if referralBonus {
		prefix = "refreset_"
	}
	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(menu.Data("↩️ Qayta ko'rib chiqish", fmt.Sprintf("%s%d", prefix, paymentID))))
	return menu
}

// CourseCard renders the purchase offer text for a course.
func CourseCard(course *models.Course, cardNumber, cardHolder string) string {
	text := fmt.Sprintf(
		"<b>%s</b>\n\n%s\n\n💰 Narxi: <b>%s so'm</b>\n\n"+
			"To'lov uchun karta:\n<code>%s</code>\n👤 %s\n\n"+
			"To'lovni amalga oshirib, chekni shu yerga yuboring.",
		course.Name,
		course.Description,
		utils.FormatAmount(course.Price),
		cardNumber,
		cardHolder,
	)
	return text
}
