package handlers

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"prayernote/internal/logger"
	"prayernote/internal/models"
)

func (h *Handler) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !h.authorized(ctx, msg.Chat.ID, msg.IsCommand() && msg.Command() == "start") {
		logger.Warn("Rejected message from unknown chat", "chat_id", msg.Chat.ID)
		h.send(msg.Chat.ID, "This bot is private.")
		return
	}
	if msg.IsCommand() {
		h.HandleCommand(ctx, msg)
		return
	}
	h.HandleText(ctx, msg)
}

// HandleText serves the menu buttons, then whatever input the chat state
// is waiting for.
func (h *Handler) HandleText(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	switch text {
	case kbToday:
		h.setState(ctx, chatID, "")
		h.showDay(ctx, chatID, h.Resolver.Weekday())
		return
	case kbPersons:
		h.setState(ctx, chatID, "")
		h.showPersons(ctx, chatID)
		return
	case kbAnswered:
		h.setState(ctx, chatID, "")
		h.showAnswered(ctx, chatID)
		return
	case kbStats:
		h.setState(ctx, chatID, "")
		h.showStats(ctx, chatID, "")
		return
	}

	state, err := h.DB.ChatState(ctx, chatID)
	if err != nil {
		logger.Warn("Failed to read chat state", "chat_id", chatID, "error", err)
		return
	}
	if state == "" || text == "" {
		return
	}
	h.setState(ctx, chatID, "")

	if state == stateAwaitPerson {
		h.insertPerson(ctx, chatID, text, models.WeekdaySet{})
		return
	}
	if prefix, personID, ok := parseCallback(state); ok && prefix == stateAwaitTopic {
		h.insertTopic(ctx, chatID, personID, text)
		return
	}
	logger.Warn("Unknown chat state", "chat_id", chatID, "state", state)
}

func (h *Handler) setState(ctx context.Context, chatID int64, state string) {
	if err := h.DB.SetChatState(ctx, chatID, state); err != nil {
		logger.Warn("Failed to store chat state", "chat_id", chatID, "error", err)
	}
}
