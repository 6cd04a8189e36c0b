package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"

	apperr "prayernote/internal/errors"
	"prayernote/internal/models"
	"prayernote/internal/notify"
	"prayernote/internal/storage"
)

type TodayCmd struct {
	Day string `help:"Show another day instead (sun..sat, 0-7)." short:"d"`
}

func (cmd *TodayCmd) Run(c *Context) error {
	r := c.Resolver()
	day := r.Weekday()
	if cmd.Day != "" {
		d, err := models.ParseWeekday(cmd.Day)
		if err != nil {
			return err
		}
		day = d
	}
	assignments, err := r.Resolve(context.Background(), day)
	if err != nil {
		return apperr.Store("resolve day", err)
	}
	if len(assignments) == 0 {
		fmt.Printf("Nobody is assigned to %s\n", day)
		return nil
	}
	fmt.Printf("%s:\n", day)
	for _, a := range assignments {
		if len(a.Topics) == 0 {
			fmt.Printf("  %s: no active topics\n", a.Person.Name)
			continue
		}
		titles := make([]string, len(a.Topics))
		for i, t := range a.Topics {
			titles[i] = t.Title
		}
		fmt.Printf("  %s: %s\n", a.Person.Name, strings.Join(titles, ", "))
	}
	return nil
}

type StatsCmd struct {
	Months int `help:"Period in months: 1, 3, 6 or 12." default:"6" short:"m"`
}

func (cmd *StatsCmd) Run(c *Context) error {
	if !slices.Contains(storage.StatsPeriods, cmd.Months) {
		return fmt.Errorf("months must be one of %v", storage.StatsPeriods)
	}
	now := c.Clock.Now()
	s, err := c.DB.Stats(context.Background(), c.DB.PeriodStart(now, cmd.Months), c.DB.PeriodEnd(now))
	if err != nil {
		return apperr.Store("stats", err)
	}
	fmt.Printf("Last %d months (%s to %s)\n", cmd.Months,
		s.Start.Format("2006-01-02"), s.End.AddDate(0, 0, -1).Format("2006-01-02"))
	fmt.Printf("  Prayers:     %d\n", s.Total)
	fmt.Printf("  Answer rate: %.1f%%\n", s.AnswerRate)
	fmt.Printf("  Topics:      %d active, %d answered\n", s.ActiveTopics, s.AnsweredTopics)
	if len(s.ByPerson) > 0 {
		fmt.Println("By person:")
		for _, p := range s.ByPerson {
			fmt.Printf("  %-20s %d\n", p.PersonName, p.Count)
		}
	}
	if len(s.Monthly) > 0 {
		fmt.Println("By month:")
		for _, m := range s.Monthly {
			fmt.Printf("  %s %d\n", m.Month, m.Count)
		}
	}
	return nil
}

// DispatchCmd sends today's reminder right away, as an alarm would.
type DispatchCmd struct{}

func (cmd *DispatchCmd) Run(c *Context) error {
	n, _, err := c.Notifiers()
	if err != nil {
		return err
	}
	res, err := c.Dispatcher(n).Run(context.Background())
	if err != nil {
		return err
	}
	for _, p := range res.Picks {
		fmt.Printf("  %s: %s\n", p.PersonName, p.TopicTitle)
	}
	fmt.Printf("Recorded %d prayers for %s\n", res.Recorded, res.Day)
	if !res.Sent {
		fmt.Printf("No reminder sent: %s\n", res.Skipped)
	}
	return nil
}

type NotifyTestCmd struct{}

func (cmd *NotifyTestCmd) Run(c *Context) error {
	n, _, err := c.Notifiers()
	if err != nil {
		return err
	}
	ctx := context.Background()
	if !n.Permitted(ctx) {
		return fmt.Errorf("no subscribed chat or browser: %w", apperr.ErrPermission)
	}
	if err := n.Notify(ctx, notify.Test(c.Resolver().Weekday())); err != nil {
		return err
	}
	fmt.Println("Test notification sent")
	return nil
}

// TodayToggleCmd adds the person to today's weekday, or removes them.
type TodayToggleCmd struct {
	Person string `arg:"" help:"Id or exact name."`
}

func (cmd *TodayToggleCmd) Run(c *Context) error {
	ctx := context.Background()
	p, err := c.findPerson(ctx, cmd.Person)
	if err != nil {
		return err
	}
	today := c.Resolver().Weekday()
	p.Days = p.Days.Toggle(today)
	if err := c.DB.SetPersonDays(ctx, p.ID, p.Days); err != nil {
		return err
	}
	if p.Days.Matches(today) {
		fmt.Printf("%s is assigned to %s\n", p.Name, today)
	} else {
		fmt.Printf("%s is no longer assigned to %s\n", p.Name, today)
	}
	return nil
}
