package notify

import (
	"context"
	"errors"
	"fmt"

	"prayernote/internal/logger"
	"prayernote/internal/models"
)

const (
	ChannelID          = "daily_prayer_channel"
	ChannelName        = "Daily prayer reminders"
	ChannelDescription = "Sends prayer reminders at the times you set"
	ChannelImportance  = "high"

	// LinkScheme prefixes every deep link into the app.
	LinkScheme = "prayernote://home"
)

// Notification is one reminder as shown to the user.
type Notification struct {
	Title string
	// Summary is the collapsed one-line text.
	Summary string
	// Body is the expanded text with one line per pick.
	Body string
	Day  models.Weekday
	Link string
}

// Notifier is a surface that can show notifications.
type Notifier interface {
	// Permitted is consulted right before each emission and never cached.
	Permitted(ctx context.Context) bool
	Notify(ctx context.Context, n Notification) error
}

// DayLink is the deep link that opens the day-filtered home view.
func DayLink(day models.Weekday) string {
	return fmt.Sprintf("%s?dayOfWeek=%d", LinkScheme, int(day))
}

// Test builds the notification sent by the "test notification" action.
func Test(day models.Weekday) Notification {
	return Notification{
		Title:   "Test notification",
		Summary: "Notifications are working.",
		Body:    "Notifications are working. Your daily prayer reminders will appear like this.",
		Day:     day,
		Link:    DayLink(day),
	}
}

// Multi emits to every permitted child.
type Multi []Notifier

func (m Multi) Permitted(ctx context.Context) bool {
	for _, n := range m {
		if n.Permitted(ctx) {
			return true
		}
	}
	return false
}

// Notify sends to each permitted child and fails only if all attempts fail.
func (m Multi) Notify(ctx context.Context, n Notification) error {
	var (
		errs []error
		sent int
	)
	for _, child := range m {
		if !child.Permitted(ctx) {
			continue
		}
		if err := child.Notify(ctx, n); err != nil {
			logger.Warn("Notifier failed", "notifier", fmt.Sprintf("%T", child), "error", err)
			errs = append(errs, err)
			continue
		}
		sent++
	}
	if sent == 0 && len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
