package cli

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jonboulle/clockwork"

	"prayernote/internal/backup"
	"prayernote/internal/config"
	"prayernote/internal/dispatcher"
	"prayernote/internal/keyring"
	"prayernote/internal/logger"
	"prayernote/internal/notify"
	"prayernote/internal/resolver"
	"prayernote/internal/storage"
)

// Context is shared by every command.
type Context struct {
	Config config.Config
	DB     *storage.DB
	Clock  clockwork.Clock
}

func (c *Context) Resolver() *resolver.Resolver {
	return resolver.New(c.DB, c.Clock, c.Config.Location)
}

// Notifiers builds every configured delivery channel. bot is nil when no
// Telegram token is set.
func (c *Context) Notifiers() (notify.Multi, *tgbotapi.BotAPI, error) {
	var (
		n   notify.Multi
		bot *tgbotapi.BotAPI
	)
	if c.Config.TelegramToken != "" {
		b, err := tgbotapi.NewBotAPI(c.Config.TelegramToken)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to telegram: %w", err)
		}
		logger.Info("Authorized on telegram", "account", b.Self.UserName)
		bot = b
		n = append(n, &notify.Telegram{Bot: b, Chats: c.DB})
	}
	if c.Config.WebPushConfigured() {
		n = append(n, &notify.WebPush{
			Subs:       c.DB,
			PublicKey:  c.Config.VapidPublicKey,
			PrivateKey: c.Config.VapidPrivateKey,
			Subject:    c.Config.VapidSubject,
		})
	}
	return n, bot, nil
}

func (c *Context) Dispatcher(n notify.Notifier) *dispatcher.Dispatcher {
	return dispatcher.New(c.Resolver(), c.DB, n, c.Clock, c.Config.Location, dispatcher.Options{
		NotifyWhenEmpty: c.Config.NotifyWhenEmpty,
	})
}

// backupDSN looks in the configuration first, then in the OS keyring.
func (c *Context) backupDSN() (string, error) {
	if c.Config.BackupDSN != "" {
		return c.Config.BackupDSN, nil
	}
	return keyring.GetBackupDSN()
}

// Backup opens the cloud backup service. With offline set, a missing
// connection string falls back to an in-memory store. The returned close
// func is never nil.
func (c *Context) Backup(ctx context.Context, offline bool) (*backup.Service, func() error, error) {
	userID := c.Config.BackupUserID
	if userID == "" {
		id, err := c.DB.DeviceID(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read device id: %w", err)
		}
		userID = id
	}

	dsn, err := c.backupDSN()
	if err != nil {
		if !offline || !(errors.Is(err, keyring.ErrNotFound) || errors.Is(err, keyring.ErrKeyringUnavailable)) {
			return nil, nil, fmt.Errorf("no backup database configured (set PRAYERNOTE_BACKUP_DSN or run 'prayernote backup set-dsn'): %w", err)
		}
		logger.Warn("No backup database configured, backups are kept in memory")
		return backup.NewService(backup.NewMemoryStore(), userID, c.Clock), func() error { return nil }, nil
	}

	store, err := backup.OpenPostgres(dsn)
	if err != nil {
		return nil, nil, err
	}
	return backup.NewService(store, userID, c.Clock), store.Close, nil
}
