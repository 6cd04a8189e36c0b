package handlers

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"prayernote/internal/backup"
	"prayernote/internal/models"
)

const (
	kbToday    = "Today"
	kbPersons  = "Persons"
	kbAnswered = "Answered prayers"
	kbStats    = "Statistics"
)

// Callback payload prefixes.
const (
	cbDay      = "day"
	cbPerson   = "person"
	cbAnswer   = "answer"
	cbRestore  = "restore"
	cbAddTopic = "addtopic"
	cbToggle   = "toggle"
)

const (
	stateAwaitPerson = "await_person"
	stateAwaitTopic  = "await_topic"
)

const helpText = `Commands:
/today - who to pray for today
/day <day> - assignments of another day (sun..sat, 0-7)
/persons - everyone you pray for
/person <name> - topics of one person
/addperson <name> | <days> - add a person, e.g. /addperson Alice | mon,thu
/addtopic <name> | <title> - add a prayer topic
/answered - answered prayers
/stats [months] - statistics over 1, 3, 6 or 12 months
/alarms - reminder times
/alarm HH:MM - add a reminder time
/alarmoff <id> - delete a reminder time
/pray - send today's reminder now
/test - send a test notification
/backup, /backups, /restore <id> - cloud backup
/stop - stop receiving reminders
/cancel - cancel the current input`

var mainMenu = tgbotapi.NewReplyKeyboard(
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(kbToday),
		tgbotapi.NewKeyboardButton(kbPersons),
	),
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(kbAnswered),
		tgbotapi.NewKeyboardButton(kbStats),
	),
)

func callback(prefix string, id int64) string {
	return prefix + ":" + strconv.FormatInt(id, 10)
}

// parseCallback splits "prefix:arg".
func parseCallback(data string) (string, int64, bool) {
	prefix, arg, ok := strings.Cut(data, ":")
	if !ok {
		return "", 0, false
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return "", 0, false
	}
	return prefix, id, true
}

func dayText(day models.Weekday, assignments []models.Assignment) string {
	if len(assignments) == 0 {
		return fmt.Sprintf("Nobody is assigned to %s.", day)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", day)
	for _, a := range assignments {
		if len(a.Topics) == 0 {
			fmt.Fprintf(&b, "\n• %s: no active topics", a.Person.Name)
			continue
		}
		titles := make([]string, len(a.Topics))
		for i, t := range a.Topics {
			titles[i] = t.Title
		}
		fmt.Fprintf(&b, "\n• %s: %s", a.Person.Name, strings.Join(titles, ", "))
	}
	return b.String()
}

// personButtons has one row per person that opens the person card.
func personButtons(persons []models.Person) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(persons))
	for _, p := range persons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(p.Name, callback(cbPerson, p.ID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func dayNavigation(day models.Weekday) []tgbotapi.InlineKeyboardButton {
	prev := (day + 6) % 7
	next := (day + 1) % 7
	if day == models.EveryDay {
		prev, next = 6, 0
	}
	return tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("« "+prev.String(), callback(cbDay, int64(prev))),
		tgbotapi.NewInlineKeyboardButtonData(next.String()+" »", callback(cbDay, int64(next))),
	)
}

func dayKeyboard(day models.Weekday, assignments []models.Assignment) tgbotapi.InlineKeyboardMarkup {
	persons := make([]models.Person, len(assignments))
	for i, a := range assignments {
		persons[i] = a.Person
	}
	kb := personButtons(persons)
	kb.InlineKeyboard = append(kb.InlineKeyboard, dayNavigation(day))
	return kb
}

func personText(p *models.Person, topics []models.Topic) string {
	var b strings.Builder
	b.WriteString(p.Name)
	if p.Memo != "" {
		fmt.Fprintf(&b, "\n%s", p.Memo)
	}
	days := "none"
	if len(p.Days) > 0 {
		days = p.Days.String()
	}
	fmt.Fprintf(&b, "\nDays: %s\n", days)
	if len(topics) == 0 {
		b.WriteString("\nNo prayer topics yet.")
	}
	for _, t := range topics {
		mark := "•"
		if t.Status == models.StatusAnswered {
			mark = "✓"
		}
		fmt.Fprintf(&b, "\n%s %s", mark, t.Title)
	}
	return b.String()
}

func personKeyboard(p *models.Person, topics []models.Topic, today models.Weekday) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, t := range topics {
		if t.Status == models.StatusAnswered {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Restore: "+t.Title, callback(cbRestore, t.ID)),
			))
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Answered: "+t.Title, callback(cbAnswer, t.ID)),
		))
	}
	toggle := "Add to " + today.String()
	if p.Days.Matches(today) {
		toggle = "Remove from " + today.String()
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Add topic", callback(cbAddTopic, p.ID)),
		tgbotapi.NewInlineKeyboardButtonData(toggle, callback(cbToggle, p.ID)),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func answeredText(topics []models.AnsweredTopic) string {
	if len(topics) == 0 {
		return "No answered prayers yet."
	}
	var b strings.Builder
	b.WriteString("Answered prayers\n")
	for _, t := range topics {
		at := ""
		if t.AnsweredAt != nil {
			at = t.AnsweredAt.Format("2006-01-02")
		}
		fmt.Fprintf(&b, "\n✓ %s: %s (%s)", t.PersonName, t.Title, at)
	}
	return b.String()
}

func statsText(months int, s *models.Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Last %d months\n", months)
	fmt.Fprintf(&b, "Prayers: %d\n", s.Total)
	fmt.Fprintf(&b, "Answer rate: %.0f%%\n", s.AnswerRate)
	fmt.Fprintf(&b, "Topics: %d active, %d answered\n", s.ActiveTopics, s.AnsweredTopics)
	if len(s.ByPerson) > 0 {
		b.WriteString("\nBy person:")
		for _, p := range s.ByPerson {
			fmt.Fprintf(&b, "\n• %s: %d", p.PersonName, p.Count)
		}
		b.WriteString("\n")
	}
	if len(s.Monthly) > 0 {
		b.WriteString("\nBy month:")
		for _, m := range s.Monthly {
			fmt.Fprintf(&b, "\n• %s: %d", m.Month, m.Count)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func alarmsText(alarms []models.Alarm) string {
	if len(alarms) == 0 {
		return "No reminder times. Add one with /alarm HH:MM"
	}
	var b strings.Builder
	b.WriteString("Reminder times\n")
	for _, a := range alarms {
		state := "on"
		if !a.Enabled {
			state = "off"
		}
		fmt.Fprintf(&b, "\n#%d %s (%s)", a.ID, a.Clock(), state)
	}
	return b.String()
}

func sessionsText(sessions []backup.Session) string {
	if len(sessions) == 0 {
		return "No backups yet."
	}
	var b strings.Builder
	b.WriteString("Backups\n")
	for _, s := range sessions {
		fmt.Fprintf(&b, "\n%s %s: %d persons, %d topics",
			s.Timestamp.Format("2006-01-02 15:04"), s.ID, s.TotalPersons, s.TotalTopics)
	}
	return b.String()
}

// splitArgs splits "a | b" into its two trimmed halves.
func splitArgs(s string) (string, string) {
	left, right, _ := strings.Cut(s, "|")
	return strings.TrimSpace(left), strings.TrimSpace(right)
}
