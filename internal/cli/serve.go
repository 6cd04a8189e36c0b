package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"prayernote/internal/api"
	"prayernote/internal/handlers"
	"prayernote/internal/logger"
	"prayernote/internal/scheduler"
)

const alarmSyncInterval = time.Minute

type ServeCmd struct {
	Addr  string `help:"HTTP listen address (overrides PRAYERNOTE_HTTP_ADDR)."`
	NoBot bool   `help:"Send reminders but do not answer Telegram chats." name:"no-bot"`
}

// Run starts the reminder scheduler, the HTTP API and the Telegram bot, and
// blocks until SIGINT or SIGTERM.
func (s *ServeCmd) Run(c *Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifiers, bot, err := c.Notifiers()
	if err != nil {
		return err
	}
	if len(notifiers) == 0 {
		logger.Warn("No delivery channel configured, reminders stay unscheduled")
	}
	d := c.Dispatcher(notifiers)

	host, err := scheduler.NewGocronHost(c.Clock, c.Config.Location)
	if err != nil {
		return err
	}
	defer func() {
		if err := host.Shutdown(); err != nil {
			logger.Warn("Scheduler shutdown failed", "error", err)
		}
	}()
	// alarms stay unscheduled until a chat or browser subscribes
	host.Permitted = func() bool { return notifiers.Permitted(ctx) }
	sched := scheduler.New(host, d, c.Clock, c.Config.Location)

	if err := sched.Sync(ctx, c.DB); err != nil {
		logger.Error("Failed to restore alarms", "error", err)
	}
	// picks up alarms changed by other processes, e.g. the CLI
	err = host.Every(alarmSyncInterval, "alarm-sync", func() {
		if err := sched.Sync(ctx, c.DB); err != nil {
			logger.Error("Alarm sync failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	alarms, err := c.DB.WatchAlarms(ctx)
	if err != nil {
		return err
	}
	go func() {
		for list := range alarms {
			if err := sched.Restore(list); err != nil {
				logger.Error("Failed to reschedule alarms", "error", err)
			}
		}
	}()

	svc, closeBackup, err := c.Backup(ctx, true)
	if err != nil {
		logger.Warn("Backup disabled", "error", err)
	} else {
		defer closeBackup()
	}

	app := api.NewApp(&api.Server{
		DB:             c.DB,
		Resolver:       c.Resolver(),
		Dispatcher:     d,
		Notifier:       notifiers,
		Scheduler:      sched,
		Backup:         svc,
		Clock:          c.Clock,
		VapidPublicKey: c.Config.VapidPublicKey,
	})
	addr := s.Addr
	if addr == "" {
		addr = c.Config.HTTPAddr
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Listening", "addr", addr)
		serverErr <- app.Listen(addr)
	}()

	if bot != nil && !s.NoBot {
		h := handlers.NewHandler(bot, c.DB, c.Resolver(), d)
		h.Backup = svc
		h.Clock = c.Clock
		h.AllowedChats = c.Config.TelegramChats
		h.OnSubscribe = func() {
			if err := sched.RetryBlocked(); err != nil {
				logger.Warn("Failed to arm blocked alarms", "error", err)
			}
		}

		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates := bot.GetUpdatesChan(u)
		go h.Listen(ctx, updates)
		defer bot.StopReceivingUpdates()
		logger.Info("Telegram bot started", "account", bot.Self.UserName)
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("HTTP shutdown failed", "error", err)
	}
	return nil
}
