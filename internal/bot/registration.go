package bot

import (
	"strconv"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"kursbot/internal/models"
	"kursbot/internal/pkg/utils"
)

// The registration dialog walks name → region → age → profession →
// gender → phone. Each answer is written immediately, so an abandoned
// dialog resumes at the first missing field.

func registrationPrompt(step string) string {
	switch step {
	case StepFullName:
		return "To'liq ism-familiyangizni yozing:"
	case StepRegion:
		return "Qaysi viloyatdansiz?"
	case StepAge:
		return "Yoshingizni yozing:"
	case StepProfession:
		return "Kasbingiz nima?"
	case StepGender:
		return "Jinsingizni tanlang:"
	case StepPhone:
		return "Telefon raqamingizni quyidagi tugma orqali yuboring:"
	}
	return ""
}

func (b *Bot) resumeRegistration(c tele.Context, user *models.User) error {
	step := user.Step
	switch step {
	case StepFullName, StepRegion, StepAge, StepProfession, StepGender, StepPhone:
	default:
		// The dialog state was lost; restart from the first missing field.
		step = StepFullName
		if user.FullName != "" {
			step = StepRegion
		}
		if user.Region != "" {
			step = StepAge
		}
		if user.Age > 0 {
			step = StepProfession
		}
		if user.Profession != "" {
			step = StepGender
		}
		if user.Gender != "" {
			step = StepPhone
		}
		_ = b.repos.User.UpdateStep(user.ID, step)
	}

	switch step {
	case StepGender:
		return c.Send(registrationPrompt(step), b.keyboard.Gender())
	case StepPhone:
		return c.Send(registrationPrompt(step), b.keyboard.Contact())
	default:
		return c.Send(registrationPrompt(step))
	}
}

func (b *Bot) handleRegistrationText(c tele.Context, user *models.User, text string) error {
	if text == "" {
		return c.Send(registrationPrompt(user.Step))
	}

	switch user.Step {
	case StepFullName:
		if len([]rune(text)) < 3 {
			return c.Send("Ism-familiya juda qisqa. Qaytadan yozing:")
		}
		if err := b.repos.User.Update(user.ID, map[string]interface{}{
			"full_name": text,
			"step":      StepRegion,
		}); err != nil {
			return b.registrationError(c, user, err)
		}
		return c.Send(registrationPrompt(StepRegion))

	case StepRegion:
		if err := b.repos.User.Update(user.ID, map[string]interface{}{
			"region": text,
			"step":   StepAge,
		}); err != nil {
			return b.registrationError(c, user, err)
		}
		return c.Send(registrationPrompt(StepAge))

	case StepAge:
		age, err := strconv.Atoi(text)
		if err != nil || age < 10 || age > 100 {
			return c.Send("Yoshingizni raqam bilan yozing (masalan, 25):")
		}
		if err := b.repos.User.Update(user.ID, map[string]interface{}{
			"age":  age,
			"step": StepProfession,
		}); err != nil {
			return b.registrationError(c, user, err)
		}
		return c.Send(registrationPrompt(StepProfession))

	case StepProfession:
		if err := b.repos.User.Update(user.ID, map[string]interface{}{
			"profession": text,
			"step":       StepGender,
		}); err != nil {
			return b.registrationError(c, user, err)
		}
		return c.Send(registrationPrompt(StepGender), b.keyboard.Gender())

	case StepGender:
		gender := ""
		switch text {
		case BtnMale:
			gender = models.GenderMale
		case BtnFemale:
			gender = models.GenderFemale
		default:
			return c.Send("Quyidagi tugmalardan birini tanlang:", b.keyboard.Gender())
		}
		if err := b.repos.User.Update(user.ID, map[string]interface{}{
			"gender": gender,
			"step":   StepPhone,
		}); err != nil {
			return b.registrationError(c, user, err)
		}
		return c.Send(registrationPrompt(StepPhone), b.keyboard.Contact())
	}

	return b.resumeRegistration(c, user)
}

func (b *Bot) finishRegistration(c tele.Context, user *models.User, rawPhone string) error {
	phone := utils.NormalizePhone(rawPhone)

	taken, err := b.repos.User.PhoneTaken(phone, user.ID)
	if err != nil {
		return b.registrationError(c, user, err)
	}
	if taken {
		return c.Send("Bu telefon raqami allaqachon ro'yxatdan o'tgan.")
	}

	if err := b.repos.User.Update(user.ID, map[string]interface{}{
		"phone_number": phone,
		"step":         StepNone,
	}); err != nil {
		return b.registrationError(c, user, err)
	}

	b.logger.Info("user registered",
		zap.Uint("user_id", user.ID),
		zap.String("telegram_id", user.TelegramID))

	fresh, err := b.repos.User.FindByID(user.ID)
	if err != nil {
		fresh = user
	}
	if err := c.Send("Ro'yxatdan o'tish yakunlandi!"); err != nil {
		return err
	}
	return b.sendMainMenu(c, fresh)
}

func (b *Bot) registrationError(c tele.Context, user *models.User, err error) error {
	b.logger.Error("registration step failed",
		zap.Uint("user_id", user.ID),
		zap.String("step", user.Step),
		zap.Error(err))
	return c.Send("Xatolik yuz berdi. Qaytadan urinib ko'ring.")
}
