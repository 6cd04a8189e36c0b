package handlers

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	apperr "prayernote/internal/errors"
	"prayernote/internal/logger"
	"prayernote/internal/models"
	"prayernote/internal/notify"
	"prayernote/internal/storage"
)

func (h *Handler) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	// any command abandons a pending input
	if msg.Command() != "cancel" {
		h.setState(ctx, chatID, "")
	}

	switch msg.Command() {
	case "start":
		h.HandleStart(ctx, chatID)
	case "stop":
		h.HandleStop(ctx, chatID)
	case "help":
		h.send(chatID, helpText)
	case "cancel":
		h.setState(ctx, chatID, "")
		h.send(chatID, "Cancelled.")
	case "today":
		h.showDay(ctx, chatID, h.Resolver.Weekday())
	case "day":
		day, err := models.ParseWeekday(args)
		if err != nil {
			h.send(chatID, "Usage: /day <sun..sat or 0-7>")
			return
		}
		h.showDay(ctx, chatID, day)
	case "persons":
		h.showPersons(ctx, chatID)
	case "person":
		h.showPersonByName(ctx, chatID, args)
	case "addperson":
		h.addPerson(ctx, chatID, args)
	case "addtopic":
		h.addTopicByName(ctx, chatID, args)
	case "answered":
		h.showAnswered(ctx, chatID)
	case "stats":
		h.showStats(ctx, chatID, args)
	case "alarms":
		h.showAlarms(ctx, chatID)
	case "alarm":
		h.addAlarm(ctx, chatID, args)
	case "alarmoff":
		h.deleteAlarm(ctx, chatID, args)
	case "pray":
		h.pray(ctx, chatID)
	case "test":
		day := h.Resolver.Weekday()
		h.sendWithMarkup(chatID, notify.Text(notify.Test(day)), notify.DayButton(day))
	case "backup":
		h.createBackup(ctx, chatID)
	case "backups":
		h.listBackups(ctx, chatID)
	case "restore":
		h.restoreBackup(ctx, chatID, args)
	default:
		h.send(chatID, "Unknown command. Send /help for the list.")
	}
}

// HandleStart subscribes the chat to reminders and shows the main menu.
func (h *Handler) HandleStart(ctx context.Context, chatID int64) {
	if err := h.DB.AddChat(ctx, chatID); err != nil {
		h.fail(chatID, apperr.Store("subscribe chat", err))
		return
	}
	logger.Info("Chat subscribed", "chat_id", chatID)
	if h.OnSubscribe != nil {
		h.OnSubscribe()
	}
	h.sendWithMarkup(chatID, "You will receive your prayer reminders here.\nSend /help for the list of commands.", mainMenu)
}

func (h *Handler) HandleStop(ctx context.Context, chatID int64) {
	if err := h.DB.RemoveChat(ctx, chatID); err != nil {
		h.fail(chatID, apperr.Store("unsubscribe chat", err))
		return
	}
	logger.Info("Chat unsubscribed", "chat_id", chatID)
	h.sendWithMarkup(chatID, "Reminders stopped. Send /start to resume.", tgbotapi.NewRemoveKeyboard(true))
}

// fail reports err to the chat as a single line.
func (h *Handler) fail(chatID int64, err error) {
	logger.Error("Bot action failed", "chat_id", chatID, "error", err)
	var ve validator.ValidationErrors
	switch {
	case errors.Is(err, storage.ErrNotFound):
		h.send(chatID, "Not found.")
	case errors.Is(err, models.ErrInvalidTransition):
		h.send(chatID, "That topic was already updated.")
	case errors.As(err, &ve):
		h.send(chatID, "Invalid input: "+ve[0].Field()+" ("+ve[0].Tag()+")")
	default:
		h.send(chatID, apperr.UserMessage(err))
	}
}

// storeErr tags repository failures other than expected outcomes.
func storeErr(op string, err error) error {
	var ve validator.ValidationErrors
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, models.ErrInvalidTransition) || errors.As(err, &ve) {
		return err
	}
	return apperr.Store(op, err)
}

func (h *Handler) showDay(ctx context.Context, chatID int64, day models.Weekday) {
	assignments, err := h.Resolver.Resolve(ctx, day)
	if err != nil {
		h.fail(chatID, apperr.Store("resolve day", err))
		return
	}
	h.sendWithMarkup(chatID, dayText(day, assignments), dayKeyboard(day, assignments))
}

func (h *Handler) showPersons(ctx context.Context, chatID int64) {
	persons, err := h.DB.ListPersons(ctx)
	if err != nil {
		h.fail(chatID, apperr.Store("list persons", err))
		return
	}
	if len(persons) == 0 {
		h.send(chatID, "Nobody yet. Add someone with /addperson <name>")
		return
	}
	h.sendWithMarkup(chatID, fmt.Sprintf("%d persons", len(persons)), personButtons(persons))
}

func (h *Handler) showPersonByName(ctx context.Context, chatID int64, name string) {
	if name == "" {
		h.send(chatID, "Usage: /person <name>")
		return
	}
	p, err := h.DB.FindPersonByName(ctx, name)
	if err != nil {
		h.fail(chatID, storeErr("find person", err))
		return
	}
	h.showPerson(ctx, chatID, p)
}

func (h *Handler) showPerson(ctx context.Context, chatID int64, p *models.Person) {
	topics, err := h.DB.TopicsByPerson(ctx, p.ID)
	if err != nil {
		h.fail(chatID, apperr.Store("list topics", err))
		return
	}
	h.sendWithMarkup(chatID, personText(p, topics), personKeyboard(p, topics, h.Resolver.Weekday()))
}

// addPerson parses "<name> | <days>". Without a name the next message is
// taken as the name.
func (h *Handler) addPerson(ctx context.Context, chatID int64, args string) {
	name, rawDays := splitArgs(args)
	if name == "" {
		h.setState(ctx, chatID, stateAwaitPerson)
		h.send(chatID, "Send the name of the person.")
		return
	}
	days, err := models.ParseWeekdaySet(rawDays)
	if err != nil {
		h.send(chatID, err.Error())
		return
	}
	h.insertPerson(ctx, chatID, name, days)
}

func (h *Handler) insertPerson(ctx context.Context, chatID int64, name string, days models.WeekdaySet) {
	p := &models.Person{Name: name, Days: days, CreatedAt: h.Clock.Now()}
	if err := h.DB.InsertPerson(ctx, p); err != nil {
		h.fail(chatID, storeErr("insert person", err))
		return
	}
	h.showPerson(ctx, chatID, p)
}

func (h *Handler) addTopicByName(ctx context.Context, chatID int64, args string) {
	name, title := splitArgs(args)
	if name == "" || title == "" {
		h.send(chatID, "Usage: /addtopic <name> | <title>")
		return
	}
	p, err := h.DB.FindPersonByName(ctx, name)
	if err != nil {
		h.fail(chatID, storeErr("find person", err))
		return
	}
	h.insertTopic(ctx, chatID, p.ID, title)
}

func (h *Handler) insertTopic(ctx context.Context, chatID, personID int64, title string) {
	t := &models.Topic{PersonID: personID, Title: title, CreatedAt: h.Clock.Now()}
	if err := h.DB.AddTopic(ctx, t); err != nil {
		h.fail(chatID, storeErr("add topic", err))
		return
	}
	p, err := h.DB.GetPerson(ctx, personID)
	if err != nil {
		h.fail(chatID, storeErr("get person", err))
		return
	}
	h.showPerson(ctx, chatID, p)
}

func (h *Handler) showAnswered(ctx context.Context, chatID int64) {
	topics, err := h.DB.AnsweredTopics(ctx)
	if err != nil {
		h.fail(chatID, apperr.Store("answered topics", err))
		return
	}
	h.send(chatID, answeredText(topics))
}

func (h *Handler) showStats(ctx context.Context, chatID int64, args string) {
	months := storage.DefaultStatsMonths
	if args != "" {
		n, err := strconv.Atoi(args)
		if err != nil || !slices.Contains(storage.StatsPeriods, n) {
			h.send(chatID, fmt.Sprintf("Months must be one of %v", storage.StatsPeriods))
			return
		}
		months = n
	}
	now := h.Clock.Now()
	stats, err := h.DB.Stats(ctx, h.DB.PeriodStart(now, months), h.DB.PeriodEnd(now))
	if err != nil {
		h.fail(chatID, apperr.Store("stats", err))
		return
	}
	h.send(chatID, statsText(months, stats))
}

func (h *Handler) showAlarms(ctx context.Context, chatID int64) {
	alarms, err := h.DB.ListAlarms(ctx)
	if err != nil {
		h.fail(chatID, apperr.Store("list alarms", err))
		return
	}
	h.send(chatID, alarmsText(alarms))
}

func (h *Handler) addAlarm(ctx context.Context, chatID int64, args string) {
	hour, minute, err := models.ParseClock(args)
	if err != nil {
		h.send(chatID, "Usage: /alarm HH:MM")
		return
	}
	a := &models.Alarm{Hour: hour, Minute: minute, Enabled: true}
	if err := h.DB.InsertAlarm(ctx, a); err != nil {
		h.fail(chatID, storeErr("insert alarm", err))
		return
	}
	h.send(chatID, fmt.Sprintf("Reminder #%d set for %s every day.", a.ID, a.Clock()))
}

func (h *Handler) deleteAlarm(ctx context.Context, chatID int64, args string) {
	id, err := strconv.ParseInt(strings.TrimPrefix(args, "#"), 10, 64)
	if err != nil {
		h.send(chatID, "Usage: /alarmoff <id>")
		return
	}
	if err := h.DB.DeleteAlarm(ctx, id); err != nil {
		h.fail(chatID, storeErr("delete alarm", err))
		return
	}
	h.send(chatID, fmt.Sprintf("Reminder #%d deleted.", id))
}

// pray runs the reminder dispatch right away.
func (h *Handler) pray(ctx context.Context, chatID int64) {
	res, err := h.Dispatcher.Run(ctx)
	if err != nil {
		h.fail(chatID, err)
		return
	}
	if !res.Sent {
		h.send(chatID, fmt.Sprintf("No reminder sent: %s.", res.Skipped))
	}
}

func (h *Handler) createBackup(ctx context.Context, chatID int64) {
	if h.Backup == nil {
		h.send(chatID, "Backup is not configured.")
		return
	}
	id, err := h.Backup.BackupSelected(ctx, h.DB, nil, false)
	if err != nil {
		h.fail(chatID, err)
		return
	}
	sess, err := h.Backup.Session(ctx, id)
	if err != nil {
		h.fail(chatID, err)
		return
	}
	h.send(chatID, fmt.Sprintf("Backup saved: %s (%d persons, %d topics)", sess.ID, sess.TotalPersons, sess.TotalTopics))
}

func (h *Handler) listBackups(ctx context.Context, chatID int64) {
	if h.Backup == nil {
		h.send(chatID, "Backup is not configured.")
		return
	}
	sessions, err := h.Backup.Sessions(ctx)
	if err != nil {
		h.fail(chatID, err)
		return
	}
	h.send(chatID, sessionsText(sessions))
}

func (h *Handler) restoreBackup(ctx context.Context, chatID int64, id string) {
	if h.Backup == nil {
		h.send(chatID, "Backup is not configured.")
		return
	}
	if id == "" {
		h.send(chatID, "Usage: /restore <backup id>")
		return
	}
	report, err := h.Backup.Restore(ctx, id, h.DB)
	if err != nil {
		h.fail(chatID, err)
		return
	}
	h.send(chatID, report.String())
}
