package models

import (
	"fmt"
	"time"
)

// Alarm is a daily reminder slot.
type Alarm struct {
	ID      int64 `db:"id"      json:"id"`
	Hour    int   `db:"hour"    json:"hour"    validate:"min=0,max=23"`
	Minute  int   `db:"minute"  json:"minute"  validate:"min=0,max=59"`
	Enabled bool  `db:"enabled" json:"enabled"`
}

func (a *Alarm) Validate() error {
	return validate.Struct(a)
}

// Clock renders the slot as HH:MM.
func (a Alarm) Clock() string {
	return fmt.Sprintf("%02d:%02d", a.Hour, a.Minute)
}

// ParseClock parses an HH:MM string into hour and minute.
func ParseClock(s string) (int, int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time format (expected HH:MM): %w", err)
	}
	return t.Hour(), t.Minute(), nil
}
