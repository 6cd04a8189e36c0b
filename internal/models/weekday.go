package models

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Weekday is 0 (Sunday) through 6 (Saturday), or EveryDay.
type Weekday int

// EveryDay marks a person as assigned to all days of the week.
const EveryDay Weekday = 7

// WeekdayOf converts a calendar instant to its Weekday.
func WeekdayOf(t time.Time) Weekday {
	return Weekday(t.Weekday())
}

func (d Weekday) Valid() bool {
	return d >= 0 && d <= EveryDay
}

func (d Weekday) String() string {
	if d == EveryDay {
		return "Every day"
	}
	if d >= 0 && d < EveryDay {
		return time.Weekday(d).String()
	}
	return fmt.Sprintf("Weekday(%d)", int(d))
}

var weekdayNames = map[string]Weekday{
	"sun": 0, "sunday": 0,
	"mon": 1, "monday": 1,
	"tue": 2, "tuesday": 2,
	"wed": 3, "wednesday": 3,
	"thu": 4, "thursday": 4,
	"fri": 5, "friday": 5,
	"sat": 6, "saturday": 6,
	"all": EveryDay, "daily": EveryDay, "every": EveryDay,
}

// ParseWeekday accepts a day name, an abbreviation or a number 0-7.
func ParseWeekday(s string) (Weekday, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if d, ok := weekdayNames[s]; ok {
		return d, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || !Weekday(n).Valid() {
		return 0, fmt.Errorf("invalid weekday: %s", s)
	}
	return Weekday(n), nil
}

// WeekdaySet is the set of days a person is assigned to, kept sorted.
type WeekdaySet []Weekday

// ParseWeekdaySet parses a comma-separated list such as "mon,wed,7".
func ParseWeekdaySet(s string) (WeekdaySet, error) {
	if strings.TrimSpace(s) == "" {
		return WeekdaySet{}, nil
	}
	var set WeekdaySet
	for _, part := range strings.Split(s, ",") {
		d, err := ParseWeekday(part)
		if err != nil {
			return nil, err
		}
		set = set.With(d)
	}
	return set, nil
}

func (s WeekdaySet) Validate() error {
	for _, d := range s {
		if !d.Valid() {
			return fmt.Errorf("invalid weekday %d", int(d))
		}
	}
	return nil
}

func (s WeekdaySet) Has(d Weekday) bool {
	return slices.Contains(s, d)
}

// Matches reports whether a person with this set is due on day d.
func (s WeekdaySet) Matches(d Weekday) bool {
	return s.Has(d) || s.Has(EveryDay)
}

func (s WeekdaySet) With(d Weekday) WeekdaySet {
	if s.Has(d) {
		return s
	}
	out := append(slices.Clone(s), d)
	slices.Sort(out)
	return out
}

func (s WeekdaySet) Without(d Weekday) WeekdaySet {
	return slices.DeleteFunc(slices.Clone(s), func(x Weekday) bool { return x == d })
}

// Toggle flips d, keeping EveryDay consistent with the seven single days.
// Removing a day from an EveryDay set leaves the other six.
func (s WeekdaySet) Toggle(d Weekday) WeekdaySet {
	if d == EveryDay {
		if s.Has(EveryDay) {
			return s.Without(EveryDay)
		}
		return s.With(EveryDay)
	}
	if s.Matches(d) {
		out := s.Without(EveryDay)
		if s.Has(EveryDay) {
			for i := Weekday(0); i < EveryDay; i++ {
				out = out.With(i)
			}
		}
		return out.Without(d)
	}
	out := s.With(d)
	for i := Weekday(0); i < EveryDay; i++ {
		if !out.Has(i) {
			return out
		}
	}
	return out.With(EveryDay)
}

func (s WeekdaySet) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = d.String()
	}
	return strings.Join(parts, ", ")
}
