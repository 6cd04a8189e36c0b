package dispatcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"prayernote/internal/logger"
	"prayernote/internal/models"
	"prayernote/internal/notify"
)

// MaxPicks caps the (person, topic) pairs in one reminder.
const MaxPicks = 3

const (
	Title      = "Time to pray"
	EmptyTitle = "No prayers assigned today"
	EmptyBody  = "Nobody is assigned to today, or every topic is answered."
)

// Resolver lists the assignments of a day.
type Resolver interface {
	Resolve(ctx context.Context, day models.Weekday) ([]models.Assignment, error)
}

// HistoryRecorder writes at most one history row per topic and day.
type HistoryRecorder interface {
	RecordPrayed(ctx context.Context, topicID, personID int64, at time.Time) (bool, error)
}

// Pick is one line of a reminder.
type Pick struct {
	PersonID   int64  `json:"person_id"`
	PersonName string `json:"person_name"`
	TopicID    int64  `json:"topic_id"`
	TopicTitle string `json:"topic_title"`
}

// Result describes what one dispatch did.
type Result struct {
	Day      models.Weekday `json:"day"`
	Picks    []Pick         `json:"picks"`
	Recorded int            `json:"recorded"`
	Sent     bool           `json:"sent"`
	// Skipped explains why nothing was sent.
	Skipped string `json:"skipped,omitempty"`
}

type Options struct {
	// NotifyWhenEmpty emits a diagnostic notification on days without picks.
	NotifyWhenEmpty bool
}

type Dispatcher struct {
	resolver Resolver
	history  HistoryRecorder
	notifier notify.Notifier
	clock    clockwork.Clock
	loc      *time.Location
	opts     Options
}

func New(r Resolver, h HistoryRecorder, n notify.Notifier, clock clockwork.Clock, loc *time.Location, opts Options) *Dispatcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Dispatcher{resolver: r, history: h, notifier: n, clock: clock, loc: loc, opts: opts}
}

// Dispatch satisfies the scheduler's callback contract.
func (d *Dispatcher) Dispatch(ctx context.Context) error {
	_, err := d.Run(ctx)
	return err
}

// Run resolves today's assignments, records history for the picks and emits
// one reminder. Missing notification permission is a silent no-op.
func (d *Dispatcher) Run(ctx context.Context) (*Result, error) {
	now := d.clock.Now().In(d.loc)
	day := models.WeekdayOf(now)
	res := &Result{Day: day}

	assignments, err := d.resolver.Resolve(ctx, day)
	if err != nil {
		logger.Error("Failed to resolve assignments", "day", day, "error", err)
		return res, fmt.Errorf("failed to resolve %s: %w", day, err)
	}

	res.Picks = SelectPicks(assignments)
	if len(res.Picks) == 0 {
		if !d.opts.NotifyWhenEmpty {
			res.Skipped = "no assignments"
			logger.Info("Nothing to pray for today", "day", day)
			return res, nil
		}
		return res, d.emit(ctx, res, Empty(day))
	}

	for _, p := range res.Picks {
		inserted, err := d.history.RecordPrayed(ctx, p.TopicID, p.PersonID, now)
		if err != nil {
			logger.Error("Failed to record history", "topic_id", p.TopicID, "error", err)
			return res, err
		}
		if inserted {
			res.Recorded++
		}
	}

	return res, d.emit(ctx, res, Compose(day, res.Picks))
}

func (d *Dispatcher) emit(ctx context.Context, res *Result, n notify.Notification) error {
	if d.notifier == nil || !d.notifier.Permitted(ctx) {
		res.Skipped = "notification permission missing"
		logger.Warn("Notification permission missing, reminder not shown", "day", res.Day)
		return nil
	}
	if err := d.notifier.Notify(ctx, n); err != nil {
		logger.Error("Failed to emit reminder", "day", res.Day, "error", err)
		return fmt.Errorf("failed to emit reminder: %w", err)
	}
	res.Sent = true
	logger.Info("Reminder sent", "day", res.Day, "picks", len(res.Picks), "recorded", res.Recorded)
	return nil
}

// SelectPicks takes the first active topic of each person, in order, until
// MaxPicks pairs are collected.
func SelectPicks(assignments []models.Assignment) []Pick {
	var picks []Pick
	for _, a := range assignments {
		if len(a.Topics) == 0 {
			continue
		}
		t := a.Topics[0]
		picks = append(picks, Pick{
			PersonID:   a.Person.ID,
			PersonName: a.Person.Name,
			TopicID:    t.ID,
			TopicTitle: t.Title,
		})
		if len(picks) >= MaxPicks {
			break
		}
	}
	return picks
}

// Compose renders picks as one notification. A single pick is shown as is,
// several are summarised by count with every line in the body.
func Compose(day models.Weekday, picks []Pick) notify.Notification {
	lines := make([]string, len(picks))
	for i, p := range picks {
		lines[i] = fmt.Sprintf("• %s: %s", p.PersonName, p.TopicTitle)
	}
	body := strings.Join(lines, "\n")
	summary := body
	if len(picks) > 1 {
		summary = fmt.Sprintf("%d prayer topics", len(picks))
	}
	return notify.Notification{
		Title:   Title,
		Summary: summary,
		Body:    body,
		Day:     day,
		Link:    notify.DayLink(day),
	}
}

// Empty is the diagnostic notification for days without picks.
func Empty(day models.Weekday) notify.Notification {
	return notify.Notification{
		Title:   EmptyTitle,
		Summary: EmptyBody,
		Body:    EmptyBody,
		Day:     day,
		Link:    notify.DayLink(day),
	}
}
