package handlers

import (
	"context"
	"slices"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jonboulle/clockwork"

	"prayernote/internal/backup"
	"prayernote/internal/dispatcher"
	"prayernote/internal/logger"
	"prayernote/internal/resolver"
	"prayernote/internal/storage"
)

// Bot is the part of *tgbotapi.BotAPI the handlers use.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Handler struct {
	Bot        Bot
	DB         *storage.DB
	Resolver   *resolver.Resolver
	Dispatcher *dispatcher.Dispatcher
	// Backup is nil when no backup store is configured.
	Backup *backup.Service
	Clock  clockwork.Clock
	// AllowedChats limits the bot to these chats. When empty the bot belongs
	// to the subscribed chats, and /start is open only while there are none.
	AllowedChats []int64
	// OnSubscribe runs after a chat subscribes.
	OnSubscribe func()
}

func NewHandler(bot Bot, db *storage.DB, r *resolver.Resolver, d *dispatcher.Dispatcher) *Handler {
	return &Handler{Bot: bot, DB: db, Resolver: r, Dispatcher: d, Clock: clockwork.NewRealClock()}
}

// Listen handles updates until ctx is done or the channel closes.
func (h *Handler) Listen(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			h.HandleUpdate(ctx, upd)
		}
	}
}

func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.Message != nil:
		h.HandleMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		h.HandleCallback(ctx, upd.CallbackQuery)
	}
}

// authorized reports whether chatID may use the bot. start is set for a
// /start command.
func (h *Handler) authorized(ctx context.Context, chatID int64, start bool) bool {
	if len(h.AllowedChats) > 0 {
		return slices.Contains(h.AllowedChats, chatID)
	}
	chats, err := h.DB.ListChats(ctx)
	if err != nil {
		logger.Error("Failed to list chats", "error", err)
		return false
	}
	if slices.Contains(chats, chatID) {
		return true
	}
	return start && len(chats) == 0
}

func (h *Handler) send(chatID int64, text string) {
	h.sendMsg(tgbotapi.NewMessage(chatID, text))
}

func (h *Handler) sendWithMarkup(chatID int64, text string, markup any) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	h.sendMsg(msg)
}

func (h *Handler) sendMsg(msg tgbotapi.MessageConfig) {
	if _, err := h.Bot.Send(msg); err != nil {
		logger.Warn("Failed to send message", "chat_id", msg.ChatID, "error", err)
	}
}
