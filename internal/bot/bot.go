// Package bot implements the Telegram side of the course funnel: the
// registration dialog, the stage catalog, receipt submission and the
// admin review prompts. Business decisions live in internal/workflow;
// handlers here only collect input and render results.
package bot

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"kursbot/internal/config"
	"kursbot/internal/models"
	"kursbot/internal/pkg/telegram"
	"kursbot/internal/referral"
	"kursbot/internal/repository"
	"kursbot/internal/workflow"
)

// Dialog steps stored on the user row.
const (
	StepNone          = "none"
	StepFullName      = "get_full_name"
	StepRegion        = "get_region"
	StepAge           = "get_age"
	StepProfession    = "get_profession"
	StepGender        = "get_gender"
	StepPhone         = "get_phone"
	StepCourseReceipt = "course_receipt"
	StepBonusReceipt  = "referral_receipt"
	StepCourseReject  = "course_reject_reason"
	StepBonusReject   = "referral_reject_reason"
	StepCardNumber    = "get_card_number"
	StepCardHolder    = "get_card_holder"
)

// Bot wraps the telebot instance and handlers.
type Bot struct {
	tb         *tele.Bot
	webhook    *tele.Webhook
	useWebhook bool
	cfg        *config.Config
	repos      *BotRepos
	flow       *workflow.Service
	engine     *referral.Engine
	keyboard   *KeyboardBuilder
	botAPI     *telegram.BotAPI
	logger     *zap.Logger
}

// BotRepos bundles all repositories needed by bot handlers.
type BotRepos struct {
	User       *repository.UserRepository
	Course     *repository.CourseRepository
	Channel    *repository.ChannelRepository
	Payment    *repository.PaymentRepository
	RefPayment *repository.ReferralPaymentRepository
}

// New creates and configures a new Bot instance.
func New(
	cfg *config.Config,
	repos *BotRepos,
	flow *workflow.Service,
	engine *referral.Engine,
	botAPI *telegram.BotAPI,
	logger *zap.Logger,
) (*Bot, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Bot.UpdateMode))
	if mode == "" {
		mode = "auto"
	}

	useWebhook := true
	switch mode {
	case "polling":
		useWebhook = false
	case "webhook":
		useWebhook = true
	default: // auto
		useWebhook = strings.TrimSpace(cfg.Bot.WebhookURL) != ""
	}

	var poller tele.Poller
	var webhook *tele.Webhook
	if useWebhook {
		if strings.TrimSpace(cfg.Bot.WebhookURL) == "" {
			return nil, fmt.Errorf("BOT_WEBHOOK_URL is required when BOT_UPDATE_MODE=webhook")
		}
		webhook = &tele.Webhook{
			Listen:   "", // Empty: we mount on Echo instead of telebot's own server
			Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.Bot.WebhookURL},
		}
		poller = webhook
	} else {
		poller = &tele.LongPoller{Timeout: 10 * time.Second}
	}

	pref := tele.Settings{
		Token:  cfg.Bot.Token,
		Poller: poller,
		OnError: func(err error, c tele.Context) {
			logger.Error("telebot error", zap.Error(err))
		},
	}

	tb, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telebot: %w", err)
	}

	b := &Bot{
		tb:         tb,
		webhook:    webhook,
		useWebhook: useWebhook,
		cfg:        cfg,
		repos:      repos,
		flow:       flow,
		engine:     engine,
		keyboard:   NewKeyboardBuilder(),
		botAPI:     botAPI,
		logger:     logger,
	}

	b.registerHandlers()

	return b, nil
}

// GetTelebot returns the underlying telebot instance for webhook integration.
func (b *Bot) GetTelebot() *tele.Bot {
	return b.tb
}

// WebhookHandler returns the webhook handler for mounting on Echo.
// Returns nil when running in long-polling mode.
func (b *Bot) WebhookHandler() http.Handler {
	return b.webhook
}

// Start begins polling/webhook processing.
func (b *Bot) Start() {
	if b.useWebhook {
		b.logger.Info("Starting Telegram bot", zap.String("mode", "webhook"), zap.String("webhook_url", b.cfg.Bot.WebhookURL))
	} else {
		// Long polling requires webhook to be removed first.
		if err := b.tb.RemoveWebhook(true); err != nil {
			b.logger.Warn("Failed to remove webhook before long polling", zap.Error(err))
		}
		b.logger.Info("Starting Telegram bot", zap.String("mode", "polling"))
	}
	b.tb.Start()
}

// Stop gracefully shuts down the bot.
func (b *Bot) Stop() {
	b.tb.Stop()
}

func (b *Bot) registerHandlers() {
	b.tb.Handle("/start", b.handleStart)
	b.tb.Handle(tele.OnText, b.handleText)
	b.tb.Handle(tele.OnContact, b.handleContact)
	b.tb.Handle(tele.OnCallback, b.handleCallback)
	b.tb.Handle(tele.OnPhoto, b.handlePhoto)
}

func chatIDOf(c tele.Context) string {
	return strconv.FormatInt(c.Chat().ID, 10)
}

// ── /start ────────────────────────────────────────────────────────────

func (b *Bot) handleStart(c tele.Context) error {
	chatID := chatIDOf(c)

	user, err := b.repos.User.FindByTelegramID(chatID)
	if repository.IsNotFound(err) {
		newUser := &models.User{
			TelegramID:       chatID,
			TelegramUsername: c.Sender().Username,
			Step:             StepFullName,
		}

		// Deep-link payload carries the inviter's referral code.
		if code := strings.TrimSpace(c.Message().Payload); code != "" {
			referrer, err := b.repos.User.FindByReferralCode(code)
			if err == nil && referrer.TelegramID != chatID {
				newUser.InvitedByID = &referrer.ID
			}
		}

		if err := b.repos.User.CreateWithReferrer(newUser); err != nil {
			b.logger.Error("failed to create user", zap.String("chat_id", chatID), zap.Error(err))
			return c.Send("Xatolik yuz berdi. Keyinroq urinib ko'ring.")
		}
		return c.Send("Assalomu alaykum! Kursga yozilish uchun avval ro'yxatdan o'tamiz.\n\nTo'liq ism-familiyangizni yozing:")
	}
	if err != nil {
		b.logger.Error("start: user lookup failed", zap.String("chat_id", chatID), zap.Error(err))
		return c.Send("Xatolik yuz berdi. Keyinroq urinib ko'ring.")
	}

	if user.IsBlocked {
		return c.Send("Sizning hisobingiz bloklangan.")
	}
	if user.PhoneNumber == "" {
		// Registration was abandoned midway; resume it.
		return b.resumeRegistration(c, user)
	}

	_ = b.repos.User.UpdateStep(user.ID, StepNone)
	return b.sendMainMenu(c, user)
}

// ── Text routing ──────────────────────────────────────────────────────

func (b *Bot) handleText(c tele.Context) error {
	chatID := chatIDOf(c)

	user, err := b.repos.User.FindByTelegramID(chatID)
	if err != nil {
		return c.Send("Iltimos, /start buyrug'ini bosing.")
	}
	if user.IsBlocked {
		return c.Send("Sizning hisobingiz bloklangan.")
	}

	text := strings.TrimSpace(c.Text())

	switch user.Step {
	case StepFullName, StepRegion, StepAge, StepProfession, StepGender:
		return b.handleRegistrationText(c, user, text)
	case StepPhone:
		return c.Send("Telefon raqamingizni quyidagi tugma orqali yuboring.", b.keyboard.Contact())
	case StepCourseReceipt, StepBonusReceipt:
		return c.Send("To'lov chekini rasm (screenshot) ko'rinishida yuboring.")
	case StepCourseReject, StepBonusReject:
		return b.handleRejectReason(c, user, text)
	case StepCardNumber, StepCardHolder:
		return b.handleCardText(c, user, text)
	}

	switch text {
	case BtnCourses:
		return b.sendCourseCatalog(c, user)
	case BtnMyStatus:
		return b.sendStatus(c, user)
	case BtnReferral:
		return b.sendReferralInfo(c, user)
	case BtnMyTeam:
		return b.sendTeam(c, user, 0, false)
	case BtnMyCard:
		return b.startCardUpdate(c, user)
	case BtnPending:
		if user.IsAdmin {
			return b.sendPendingReviews(c, user)
		}
	}

	return b.sendMainMenu(c, user)
}

// ── Contact ───────────────────────────────────────────────────────────

func (b *Bot) handleContact(c tele.Context) error {
	chatID := chatIDOf(c)
	user, err := b.repos.User.FindByTelegramID(chatID)
	if err != nil {
		return c.Send("Iltimos, /start buyrug'ini bosing.")
	}
	if user.Step != StepPhone {
		return nil
	}

	contact := c.Message().Contact
	if contact == nil || contact.PhoneNumber == "" {
		return c.Send("Telefon raqamingizni quyidagi tugma orqali yuboring.", b.keyboard.Contact())
	}
	return b.finishRegistration(c, user, contact.PhoneNumber)
}

// ── Photo ─────────────────────────────────────────────────────────────

func (b *Bot) handlePhoto(c tele.Context) error {
	chatID := chatIDOf(c)
	user, err := b.repos.User.FindByTelegramID(chatID)
	if err != nil {
		return nil
	}

	switch user.Step {
	case StepCourseReceipt:
		return b.handleCourseReceipt(c, user)
	case StepBonusReceipt:
		return b.handleBonusReceipt(c, user)
	}
	return nil
}

// ── Callback routing ──────────────────────────────────────────────────

func (b *Bot) handleCallback(c tele.Context) error {
	chatID := chatIDOf(c)

	data := strings.TrimPrefix(strings.TrimSpace(c.Callback().Data), "\f")
	if data == "" {
		data = c.Callback().Unique
	}

	user, err := b.repos.User.FindByTelegramID(chatID)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Iltimos, /start bosing"})
	}

	_ = c.Respond()

	switch {
	case data == "main_menu":
		_ = b.repos.User.UpdateStep(user.ID, StepNone)
		return b.sendMainMenu(c, user)

	case data == "check_subscription":
		return b.handleSubscriptionCheck(c, user)

	case strings.HasPrefix(data, "course_"):
		return b.handleCourseSelect(c, user, strings.TrimPrefix(data, "course_"))

	case strings.HasPrefix(data, "buy_"):
		return b.handleBuyCourse(c, user, strings.TrimPrefix(data, "buy_"))

	case strings.HasPrefix(data, "bonus_send_"):
		return b.handleBonusSend(c, user, strings.TrimPrefix(data, "bonus_send_"))

	case strings.HasPrefix(data, "team_page_"):
		return b.handleTeamPage(c, user, strings.TrimPrefix(data, "team_page_"))
	case data == "team_tree":
		return b.sendReferralTree(c, user)
	case data == "team_stats":
		return b.sendTeamStats(c, user)

	// Admin review decisions.
	case strings.HasPrefix(data, "payok_"):
		return b.handleCourseDecision(c, user, strings.TrimPrefix(data, "payok_"), true)
	case strings.HasPrefix(data, "payno_"):
		return b.handleCourseDecision(c, user, strings.TrimPrefix(data, "payno_"), false)
	case strings.HasPrefix(data, "payreset_"):
		return b.handleCourseReset(c, user, strings.TrimPrefix(data, "payreset_"))
	case strings.HasPrefix(data, "refok_"):
		return b.handleBonusDecision(c, user, strings.TrimPrefix(data, "refok_"), true)
	case strings.HasPrefix(data, "refno_"):
		return b.handleBonusDecision(c, user, strings.TrimPrefix(data, "refno_"), false)
	case strings.HasPrefix(data, "refreset_"):
		return b.handleBonusReset(c, user, strings.TrimPrefix(data, "refreset_"))

	default:
		b.logger.Debug("unknown callback", zap.String("data", data), zap.String("user", chatID))
		return nil
	}
}

// ── Menu and info screens ─────────────────────────────────────────────

func (b *Bot) sendMainMenu(c tele.Context, user *models.User) error {
	if ok, kb := b.subscriptionGate(user); !ok {
		return c.Send("Davom etish uchun quyidagi kanallarga obuna bo'ling:", kb)
	}
	return c.Send("Asosiy menyu:", b.keyboard.MainMenu(user))
}

// subscriptionGate checks mandatory channel membership. Returns the join
// keyboard when something is missing.
func (b *Bot) subscriptionGate(user *models.User) (bool, *tele.ReplyMarkup) {
	channels, err := b.repos.Channel.FindActive()
	if err != nil || len(channels) == 0 {
		return true, nil
	}

	var missing []models.MandatoryChannel
	for _, ch := range channels {
		if !ch.IsTelegram {
			continue // non-Telegram resources are listed, not verified
		}
		if !b.botAPI.IsChatMember(ch.TelegramID, user.TelegramID) {
			missing = append(missing, ch)
		}
	}
	if len(missing) == 0 {
		return true, nil
	}
	return false, b.keyboard.JoinChannels(missing)
}

func (b *Bot) handleSubscriptionCheck(c tele.Context, user *models.User) error {
	if ok, kb := b.subscriptionGate(user); !ok {
		return c.Send("Hali hamma kanalga obuna bo'lmadingiz.", kb)
	}
	return b.sendMainMenu(c, user)
}

func (b *Bot) sendStatus(c tele.Context, user *models.User) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>Sizning holatingiz</b>\n\n")
	fmt.Fprintf(&sb, "Bosqich: <b>%s</b>\n", user.Level)
	fmt.Fprintf(&sb, "Takliflar soni: <b>%d</b>\n", user.ReferralCount)
	if user.IsConfirmed {
		sb.WriteString("A'zolik: tasdiqlangan\n")
	} else {
		sb.WriteString("A'zolik: hali tasdiqlanmagan\n")
	}

	if user.InvitedByID != nil {
		if referrer, err := b.repos.User.FindByID(*user.InvitedByID); err == nil {
			fmt.Fprintf(&sb, "Taklif qilgan: %s (%s)\n", referrer.FullName, referrer.Level)
		}
	}
	return c.Send(sb.String(), tele.ModeHTML)
}

func (b *Bot) sendReferralInfo(c tele.Context, user *models.User) error {
	if !user.IsConfirmed || user.ReferralCode == nil {
		return c.Send("Referal havola olish uchun avval kurs va referal to'lovlarini yakunlang.")
	}

	link := fmt.Sprintf("https://t.me/%s?start=%s", b.cfg.Bot.Username, *user.ReferralCode)
	text := fmt.Sprintf(
		"<b>Sizning referal havolangiz</b>\n\n<code>%s</code>\n\nTaklif qilganlaringiz: <b>%d</b>",
		link, user.ReferralCount,
	)
	return c.Send(text, tele.ModeHTML)
}
