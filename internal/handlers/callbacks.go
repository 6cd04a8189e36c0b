package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"prayernote/internal/logger"
	"prayernote/internal/models"
)

func (h *Handler) HandleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	// always answer callback
	if _, err := h.Bot.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		logger.Debug("Failed to answer callback", "error", err)
	}
	if cq.Message == nil {
		return
	}
	chatID := cq.Message.Chat.ID
	if !h.authorized(ctx, chatID, false) {
		logger.Warn("Rejected callback from unknown chat", "chat_id", chatID)
		return
	}

	prefix, id, ok := parseCallback(cq.Data)
	if !ok {
		logger.Warn("Unknown callback", "data", cq.Data)
		return
	}

	switch prefix {
	case cbDay:
		day := models.Weekday(id)
		if !day.Valid() {
			return
		}
		h.showDay(ctx, chatID, day)
	case cbPerson:
		h.handlePerson(ctx, chatID, id)
	case cbAnswer:
		h.handleAnswer(ctx, chatID, id)
	case cbRestore:
		h.handleRestore(ctx, chatID, id)
	case cbAddTopic:
		h.handleAddTopic(ctx, chatID, id)
	case cbToggle:
		h.handleToggle(ctx, chatID, id)
	}
}

func (h *Handler) handlePerson(ctx context.Context, chatID, personID int64) {
	p, err := h.DB.GetPerson(ctx, personID)
	if err != nil {
		h.fail(chatID, storeErr("get person", err))
		return
	}
	h.showPerson(ctx, chatID, p)
}

func (h *Handler) handleAnswer(ctx context.Context, chatID, topicID int64) {
	t, err := h.DB.MarkAnswered(ctx, topicID, h.Clock.Now())
	if err != nil {
		h.fail(chatID, storeErr("answer topic", err))
		return
	}
	h.send(chatID, "Praise! Marked as answered: "+t.Title)
	h.handlePerson(ctx, chatID, t.PersonID)
}

func (h *Handler) handleRestore(ctx context.Context, chatID, topicID int64) {
	t, err := h.DB.RestoreTopic(ctx, topicID)
	if err != nil {
		h.fail(chatID, storeErr("restore topic", err))
		return
	}
	h.send(chatID, "Back to active: "+t.Title)
	h.handlePerson(ctx, chatID, t.PersonID)
}

func (h *Handler) handleAddTopic(ctx context.Context, chatID, personID int64) {
	p, err := h.DB.GetPerson(ctx, personID)
	if err != nil {
		h.fail(chatID, storeErr("get person", err))
		return
	}
	h.setState(ctx, chatID, callback(stateAwaitTopic, p.ID))
	h.send(chatID, "Send the prayer topic for "+p.Name+".")
}

// handleToggle adds or removes today from the person's days.
func (h *Handler) handleToggle(ctx context.Context, chatID, personID int64) {
	p, err := h.DB.GetPerson(ctx, personID)
	if err != nil {
		h.fail(chatID, storeErr("get person", err))
		return
	}
	today := h.Resolver.Weekday()
	p.Days = p.Days.Toggle(today)
	if err := h.DB.SetPersonDays(ctx, p.ID, p.Days); err != nil {
		h.fail(chatID, storeErr("set days", err))
		return
	}
	h.showPerson(ctx, chatID, p)
}
