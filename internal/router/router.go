package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"kursbot/internal/handler/api"
	"kursbot/internal/middleware"
	"kursbot/internal/referral"
	"kursbot/internal/repository"
	"kursbot/internal/workflow"
)

// Setup configures all routes for the Echo server.
func Setup(
	e *echo.Echo,
	db *gorm.DB,
	flow *workflow.Service,
	engine *referral.Engine,
	logger *zap.Logger,
	apiKey string,
	updateDeduper middleware.UpdateDeduper,
	webhookHandler http.Handler,
) {
	// Global middleware
	e.Use(echomw.Recover())
	e.Use(middleware.CORS())

	repos := &api.Repos{
		User:       repository.NewUserRepository(db),
		Course:     repository.NewCourseRepository(db),
		Channel:    repository.NewChannelRepository(db),
		Payment:    repository.NewPaymentRepository(db),
		RefPayment: repository.NewReferralPaymentRepository(db),
		Ticket:     repository.NewTicketRepository(db),
	}
	h := api.NewHandler(repos, flow, engine)

	// Admin API, token-protected.
	apiGroup := e.Group("/api")
	apiGroup.Use(middleware.APIAuth(apiKey))
	apiGroup.Use(middleware.RequestLogger(logger))

	apiGroup.GET("/payments", h.ListPayments)
	apiGroup.POST("/payments/:id/confirm", h.ConfirmPayment)
	apiGroup.POST("/payments/:id/reject", h.RejectPayment)
	apiGroup.POST("/payments/:id/reset", h.ResetPayment)

	apiGroup.GET("/referral-payments", h.ListReferralPayments)
	apiGroup.POST("/referral-payments/:id/confirm", h.ConfirmReferralPayment)
	apiGroup.POST("/referral-payments/:id/reject", h.RejectReferralPayment)
	apiGroup.POST("/referral-payments/:id/reset", h.ResetReferralPayment)

	apiGroup.GET("/users", h.ListUsers)
	apiGroup.GET("/users/:id", h.GetUser)
	apiGroup.POST("/users/:id/check-consistency", h.CheckConsistency)
	apiGroup.GET("/users/:id/referrer-candidates", h.ListCandidates)
	apiGroup.POST("/users/:id/replace-referrer", h.ReplaceReferrer)

	apiGroup.GET("/tickets", h.ListTickets)
	apiGroup.POST("/referrals/sweep", h.RunSweep)
	apiGroup.POST("/referrals/recount", h.RecountReferrals)

	apiGroup.GET("/courses", h.ListCourses)
	apiGroup.POST("/courses", h.CreateCourse)

	// Telegram webhook (protected by IP check + deduplication)
	if webhookHandler != nil {
		botWebhookGroup := e.Group("/bot")
		botWebhookGroup.Use(middleware.TelegramIPCheck())
		botWebhookGroup.Use(middleware.TelegramUpdateDedup(updateDeduper))
		botWebhookGroup.POST("/webhook", echo.WrapHandler(webhookHandler))
	} else {
		logger.Info("Telegram webhook routes disabled (bot update mode is polling)")
	}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})
}
