package notify

import (
	"fmt"
	"time"

	"kursbot/internal/pkg/utils"
)

// Message builders. Texts follow the originals sent to the Uzbek audience;
// keep HTML parse mode in mind when editing.

func referrerWarningText(userName, userLevel, referrerLevel string, deadline time.Time) string {
	return fmt.Sprintf(`⚠️ <b>MUHIM XABAR!</b>

🔔 Sizning referalingiz <b>%s</b> sizdan yuqori darajaga chiqdi:

📊 <b>Darajalar:</b>
• Uning darajasi: <code>%s</code>
• Sizning darajangiz: <code>%s</code>

⏰ <b>Sizga 24 soat vaqt beriladi!</b>
📅 Tugash vaqti: <b>%s</b>

❗️ Agar bu vaqt ichida darajangizni oshirmasangiz, admin tomonidan sizning o'rningizga boshqa referrer belgilanadi.`,
		userName, userLevel, referrerLevel, deadline.Format("02.01.2006 15:04"))
}

func referrerChangedText(oldReferrerName, newReferrerName, adminName string) string {
	return fmt.Sprintf(`🔄 <b>REFERRER ALMASHTIRILDI</b>

📤 <b>Eski referrer:</b> %s
📥 <b>Yangi referrer:</b> %s

👨‍💼 <b>Admin:</b> %s tomonidan amalga oshirildi.

ℹ️ Bu o'zgarish sizning hisobingizga ta'sir qilmaydi.`,
		oldReferrerName, newReferrerName, adminName)
}

func newReferralText(userName, userLevel, adminName string) string {
	return fmt.Sprintf(`👥 <b>YANGI REFERRAL QO'SHILDI!</b>

👤 <b>Foydalanuvchi:</b> %s
📊 <b>Daraja:</b> <code>%s</code>

👨‍💼 <b>Admin:</b> %s tomonidan qo'shildi.`,
		userName, userLevel, adminName)
}

func referralRemovedText(userName, userLevel, adminName string) string {
	return fmt.Sprintf(`📉 <b>REFERRAL OLIB TASHLANDI</b>

👤 <b>Foydalanuvchi:</b> %s
📊 <b>Daraja:</b> <code>%s</code>

👨‍💼 <b>Admin:</b> %s tomonidan amalga oshirildi.

❗️ <b>Sabab:</b> Foydalanuvchi darajasi sizning darajangizdan yuqori bo'lgani uchun.`,
		userName, userLevel, adminName)
}

func paymentConfirmedText(amount int, courseName, channelLink string) string {
	msg := fmt.Sprintf(`✅ <b>TO'LOV TASDIQLANDI!</b>

💰 <b>To'lov miqdori:</b> %s so'm
📚 <b>Kurs:</b> %s

🎉 Tabriklaymiz! Siz kursga qabul qilindingiz.`,
		utils.FormatAmount(amount), courseName)
	if channelLink != "" {
		msg += fmt.Sprintf("\n📲 Yopiq kanal: %s", channelLink)
	}
	return msg
}

func paymentRejectedText(amount int, reason string) string {
	return fmt.Sprintf(`❌ <b>TO'LOV RAD ETILDI</b>

💰 <b>To'lov miqdori:</b> %s so'm
❗️ <b>Sabab:</b> %s

🔄 To'lov kvitansiyasini tekshirib, yangidan ariza bering.`,
		utils.FormatAmount(amount), reason)
}

func referralPaymentDueText(beneficiaryName, cardNumber, cardHolder string, amount int) string {
	msg := fmt.Sprintf(`💡 <b>Referral tizimi:</b>

1️⃣ Siz avval %s so'm to'lovni amalga oshirishingiz kerak
2️⃣ To'lov tasdiqlangach, sizga maxsus referral kod beriladi
3️⃣ Har bir taklif qilgan odamingizdan %s so'm ishlaysiz!

👤 <b>Qabul qiluvchi:</b> %s`,
		utils.FormatAmount(amount), utils.FormatAmount(amount), beneficiaryName)
	if cardNumber != "" {
		msg += fmt.Sprintf("\n💳 <b>Karta:</b> <code>%s</code>\n<b>Karta egasi:</b> %s", cardNumber, cardHolder)
	}
	msg += "\n\nTo'lov qilganingizdan so'ng chekni (screenshot) yuboring."
	return msg
}

func referralCodeIssuedText(code, link string, amount int) string {
	return fmt.Sprintf(`🎉 Tabriklaymiz! Sizning referral to'lovingiz tasdiqlandi.

💰 <b>To'langan summa:</b> %s so'm
🆔 <b>Referral kod:</b> <code>%s</code>

🔗 Sizning referral havolangiz:
%s`,
		utils.FormatAmount(amount), code, link)
}

func referralPaymentRejectedText(reason string) string {
	msg := "❌ Sizning referral to'lovingiz rad etildi. Iltimos, to'lovni tekshirib qayta urinib ko'ring."
	if reason != "" {
		msg += fmt.Sprintf("\n❗️ <b>Sabab:</b> %s", reason)
	}
	return msg
}

// ReferralLink builds the deep link issued with a referral code.
func ReferralLink(botUsername, code string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", botUsername, code)
}
