package cli

import (
	"context"
	"fmt"

	"prayernote/internal/models"
	"prayernote/internal/scheduler"
)

// A running daemon picks alarm changes up on its next sync.

type AlarmAddCmd struct {
	Time     string `arg:"" help:"Time of day as HH:MM."`
	Disabled bool   `help:"Store the alarm switched off."`
}

func (cmd *AlarmAddCmd) Run(c *Context) error {
	hour, minute, err := models.ParseClock(cmd.Time)
	if err != nil {
		return err
	}
	a := &models.Alarm{Hour: hour, Minute: minute, Enabled: !cmd.Disabled}
	if err := c.DB.InsertAlarm(context.Background(), a); err != nil {
		return err
	}
	fmt.Printf("Added alarm #%d at %s\n", a.ID, a.Clock())
	return nil
}

type AlarmListCmd struct{}

func (cmd *AlarmListCmd) Run(c *Context) error {
	alarms, err := c.DB.ListAlarms(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list alarms: %w", err)
	}
	if len(alarms) == 0 {
		fmt.Println("No alarms")
		return nil
	}
	now := c.Clock.Now().In(c.Config.Location)
	fmt.Println("Alarms:")
	for _, a := range alarms {
		if !a.Enabled {
			fmt.Printf("  #%d %s (off)\n", a.ID, a.Clock())
			continue
		}
		next := scheduler.NextOccurrence(now, a.Hour, a.Minute)
		fmt.Printf("  #%d %s (next %s)\n", a.ID, a.Clock(), next.Format("Mon 2006-01-02 15:04"))
	}
	return nil
}

type AlarmEnableCmd struct {
	ID int64 `arg:"" help:"Alarm id."`
}

func (cmd *AlarmEnableCmd) Run(c *Context) error {
	a, err := c.DB.SetAlarmEnabled(context.Background(), cmd.ID, true)
	if err != nil {
		return err
	}
	fmt.Printf("Alarm #%d at %s enabled\n", a.ID, a.Clock())
	return nil
}

type AlarmDisableCmd struct {
	ID int64 `arg:"" help:"Alarm id."`
}

func (cmd *AlarmDisableCmd) Run(c *Context) error {
	a, err := c.DB.SetAlarmEnabled(context.Background(), cmd.ID, false)
	if err != nil {
		return err
	}
	fmt.Printf("Alarm #%d at %s disabled\n", a.ID, a.Clock())
	return nil
}

type AlarmDeleteCmd struct {
	ID int64 `arg:"" help:"Alarm id."`
}

func (cmd *AlarmDeleteCmd) Run(c *Context) error {
	if err := c.DB.DeleteAlarm(context.Background(), cmd.ID); err != nil {
		return err
	}
	fmt.Printf("Deleted alarm #%d\n", cmd.ID)
	return nil
}
