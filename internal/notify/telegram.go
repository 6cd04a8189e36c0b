package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"prayernote/internal/logger"
	"prayernote/internal/models"
)

// Sender is the part of *tgbotapi.BotAPI used to deliver messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ChatStore lists and prunes subscribed chats.
type ChatStore interface {
	ListChats(ctx context.Context) ([]int64, error)
	RemoveChat(ctx context.Context, chatID int64) error
}

// Telegram delivers reminders to every subscribed chat.
type Telegram struct {
	Bot   Sender
	Chats ChatStore
}

// DayCallback is the callback payload of the "open day" button.
func DayCallback(day models.Weekday) string {
	return fmt.Sprintf("day:%d", int(day))
}

// DayButton opens the assignments of a day inside the bot.
func DayButton(day models.Weekday) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Open "+day.String(), DayCallback(day)),
		),
	)
}

// Permitted is true when a bot is configured and at least one chat listens.
func (t *Telegram) Permitted(ctx context.Context) bool {
	if t == nil || t.Bot == nil || t.Chats == nil {
		return false
	}
	chats, err := t.Chats.ListChats(ctx)
	if err != nil {
		logger.Warn("Cannot list telegram chats", "error", err)
		return false
	}
	return len(chats) > 0
}

func (t *Telegram) Notify(ctx context.Context, n Notification) error {
	chats, err := t.Chats.ListChats(ctx)
	if err != nil {
		return fmt.Errorf("failed to list chats: %w", err)
	}

	text := Text(n)
	var errs []error
	sent := 0
	for _, chatID := range chats {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ReplyMarkup = DayButton(n.Day)
		if _, err := t.Bot.Send(msg); err != nil {
			if isBlocked(err) {
				logger.Info("Chat blocked the bot, unsubscribing", "chat_id", chatID)
				if err := t.Chats.RemoveChat(ctx, chatID); err != nil {
					logger.Warn("Failed to remove chat", "chat_id", chatID, "error", err)
				}
				continue
			}
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
			continue
		}
		sent++
	}
	logger.Debug("Telegram reminder sent", "chats", len(chats), "sent", sent)
	if sent == 0 && len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Text renders a notification as a chat message.
func Text(n Notification) string {
	body := n.Body
	if body == "" {
		body = n.Summary
	}
	if n.Title == "" {
		return body
	}
	return n.Title + "\n\n" + body
}

func isBlocked(err error) bool {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		return tgErr.Code == http.StatusForbidden
	}
	return false
}
