// Package cron runs the periodic maintenance jobs: the grace-window
// sweep, the referral-counter recount and the stale-review reminder.
package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"kursbot/internal/config"
	"kursbot/internal/models"
	"kursbot/internal/pkg/telegram"
	"kursbot/internal/pkg/utils"
	"kursbot/internal/referral"
	"kursbot/internal/repository"
)

// How long a receipt may sit unreviewed before admins get a reminder.
const staleReviewAge = 12 * time.Hour

// Scheduler manages all cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	cfg    *config.Config
	engine *referral.Engine
	repos  *CronRepos
	botAPI *telegram.BotAPI
	logger *zap.Logger
}

// CronRepos bundles repositories needed by cron jobs.
type CronRepos struct {
	Payment    *repository.PaymentRepository
	RefPayment *repository.ReferralPaymentRepository
}

// New creates a new cron scheduler.
func New(cfg *config.Config, engine *referral.Engine, repos *CronRepos, botAPI *telegram.BotAPI, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		cfg:    cfg,
		engine: engine,
		repos:  repos,
		botAPI: botAPI,
		logger: logger,
	}
}

// Start registers and starts all cron jobs.
func (s *Scheduler) Start() {
	s.logger.Info("Starting cron scheduler...")

	// Grace-window sweep - every hour
	s.cron.AddFunc("0 0 * * * *", func() {
		s.logger.Debug("Running: referrer ticket sweep")
		s.sweepTickets()
	})

	// Referral counter self-heal - daily at 4 AM
	s.cron.AddFunc("0 0 4 * * *", func() {
		s.logger.Debug("Running: referral count recount")
		s.recountReferrals()
	})

	// Stale review reminder - daily at 10 AM
	s.cron.AddFunc("0 0 10 * * *", func() {
		s.logger.Debug("Running: stale review reminder")
		s.remindStaleReviews()
	})

	s.cron.Start()
	s.logger.Info("Cron scheduler started")
}

// Stop shuts down the scheduler. The returned context is done once any
// running job has finished.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("Stopping cron scheduler")
	return s.cron.Stop()
}

func (s *Scheduler) sweepTickets() {
	report, err := s.engine.Sweep(time.Now())
	if err != nil {
		s.logger.Error("ticket sweep failed", zap.Error(err))
		return
	}
	if report.Examined > 0 {
		s.logger.Info("ticket sweep completed",
			zap.Int("examined", report.Examined),
			zap.Int("resolved", report.Resolved),
			zap.Int("auto_replaced", report.AutoReplaced),
			zap.Int("skipped", report.Skipped))
	}
}

func (s *Scheduler) recountReferrals() {
	fixed, err := s.engine.RecountAllReferralCounts()
	if err != nil {
		s.logger.Error("referral recount failed", zap.Error(err))
		return
	}
	if fixed > 0 {
		s.logger.Warn("referral counters had drifted", zap.Int("fixed", fixed))
	}
}

// remindStaleReviews nudges the admin chat about receipts that have been
// waiting too long for a decision.
func (s *Scheduler) remindStaleReviews() {
	if s.cfg.Bot.AdminChat == "" {
		return
	}
	cutoff := time.Now().Add(-staleReviewAge)

	stale, err := s.repos.Payment.FindStalePending(cutoff)
	if err != nil {
		s.logger.Error("stale payment lookup failed", zap.Error(err))
		return
	}

	reminded := 0
	for _, p := range stale {
		if p.Screenshot == "" {
			continue // no receipt yet, nothing to review
		}
		text := fmt.Sprintf(
			"⏰ To'lov #%d (%s, %s so'm) %d soatdan beri tasdiqlanmagan.",
			p.ID, p.User.FullName, utils.FormatAmount(p.Amount),
			int(time.Since(p.CreatedAt).Hours()),
		)
		if _, err := s.botAPI.SendMessage(s.cfg.Bot.AdminChat, text, nil); err != nil {
			s.logger.Warn("stale review reminder failed",
				zap.Uint("payment_id", p.ID), zap.Error(err))
			continue
		}
		reminded++
	}

	bonuses, _, err := s.repos.RefPayment.FindByStatus(models.PaymentStatusPending, 100, 1)
	if err != nil {
		s.logger.Error("stale referral payment lookup failed", zap.Error(err))
		return
	}
	for _, p := range bonuses {
		if p.Screenshot == "" || p.CreatedAt.After(cutoff) {
			continue
		}
		text := fmt.Sprintf(
			"⏰ Referal to'lovi #%d (%s, %s so'm) %d soatdan beri tasdiqlanmagan.",
			p.ID, p.User.FullName, utils.FormatAmount(p.Amount),
			int(time.Since(p.CreatedAt).Hours()),
		)
		if _, err := s.botAPI.SendMessage(s.cfg.Bot.AdminChat, text, nil); err != nil {
			s.logger.Warn("stale review reminder failed",
				zap.Uint("referral_payment_id", p.ID), zap.Error(err))
			continue
		}
		reminded++
	}

	if reminded > 0 {
		s.logger.Info("stale review reminders sent", zap.Int("count", reminded))
	}
}
