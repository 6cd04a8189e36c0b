package models

import (
	"encoding/json"
	"slices"
	"testing"
	"time"
)

func TestTopicAnsweredInvariant(t *testing.T) {
	topic := Topic{PersonID: 1, Title: "health", Status: StatusActive}
	if err := topic.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := topic.MarkAnswered(at); err != nil {
		t.Fatalf("MarkAnswered: %v", err)
	}
	if topic.Status != StatusAnswered || topic.AnsweredAt == nil || !topic.AnsweredAt.Equal(at) {
		t.Fatalf("expected answered at %v, got %+v", at, topic)
	}
	if err := topic.MarkAnswered(at); err != ErrInvalidTransition {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}

	if err := topic.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if topic.Status != StatusActive || topic.AnsweredAt != nil {
		t.Fatalf("expected active with nil answered_at, got %+v", topic)
	}
	if err := topic.Restore(); err != ErrInvalidTransition {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestTopicValidateRejectsInconsistentAnswer(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name  string
		topic Topic
	}{
		{"answered without time", Topic{PersonID: 1, Title: "a", Status: StatusAnswered}},
		{"active with time", Topic{PersonID: 1, Title: "a", Status: StatusActive, AnsweredAt: &now}},
		{"empty title", Topic{PersonID: 1}},
		{"no person", Topic{Title: "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.topic.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestPersonValidate(t *testing.T) {
	p := Person{Name: ""}
	if err := p.Validate(); err == nil {
		t.Error("expected error for empty name")
	}
	p = Person{Name: "Alice", Days: WeekdaySet{1, 9}}
	if err := p.Validate(); err == nil {
		t.Error("expected error for weekday 9")
	}
	p = Person{Name: "Alice", Days: WeekdaySet{0, EveryDay}}
	if err := p.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAlarmValidate(t *testing.T) {
	tests := []struct {
		alarm Alarm
		ok    bool
	}{
		{Alarm{Hour: 0, Minute: 0}, true},
		{Alarm{Hour: 23, Minute: 59}, true},
		{Alarm{Hour: 24, Minute: 0}, false},
		{Alarm{Hour: 7, Minute: 60}, false},
		{Alarm{Hour: -1, Minute: 0}, false},
	}
	for _, tt := range tests {
		err := tt.alarm.Validate()
		if (err == nil) != tt.ok {
			t.Errorf("%s: expected ok=%v, got err=%v", tt.alarm.Clock(), tt.ok, err)
		}
	}
}

func TestWeekdaySetMatches(t *testing.T) {
	monday := WeekdaySet{1}
	if !monday.Matches(1) {
		t.Error("expected monday to match day 1")
	}
	if monday.Matches(2) {
		t.Error("expected monday not to match day 2")
	}
	daily := WeekdaySet{EveryDay}
	for d := Weekday(0); d <= EveryDay; d++ {
		if !daily.Matches(d) {
			t.Errorf("expected every-day set to match %v", d)
		}
	}
}

func TestWeekdaySetToggle(t *testing.T) {
	var s WeekdaySet
	for d := Weekday(0); d < EveryDay; d++ {
		s = s.Toggle(d)
	}
	if !s.Has(EveryDay) {
		t.Fatalf("expected EveryDay after selecting all days, got %v", s)
	}
	s = s.Toggle(3)
	if s.Has(EveryDay) || s.Has(3) {
		t.Fatalf("expected EveryDay and 3 removed, got %v", s)
	}
}

func TestWeekdaySetToggleOffEveryDay(t *testing.T) {
	s := WeekdaySet{EveryDay}.Toggle(1)
	if s.Matches(1) {
		t.Fatalf("expected Monday removed, got %v", s)
	}
	want := WeekdaySet{0, 2, 3, 4, 5, 6}
	if !slices.Equal(s, want) {
		t.Fatalf("expected %v, got %v", want, s)
	}
	if s = s.Toggle(1); !slices.Equal(s, WeekdaySet{0, 1, 2, 3, 4, 5, 6, EveryDay}) {
		t.Errorf("expected every day again, got %v", s)
	}
}

func TestParseWeekdaySet(t *testing.T) {
	s, err := ParseWeekdaySet("mon, Wed,5,all")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := WeekdaySet{1, 3, 5, EveryDay}
	if len(s) != len(want) {
		t.Fatalf("expected %v, got %v", want, s)
	}
	for i := range want {
		if s[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, s)
		}
	}
	if _, err := ParseWeekdaySet("funday"); err == nil {
		t.Error("expected error for unknown day")
	}
}

func TestTopicStatusJSON(t *testing.T) {
	b, err := json.Marshal(StatusAnswered)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"ANSWERED"` {
		t.Errorf("expected \"ANSWERED\", got %s", b)
	}
	var s TopicStatus
	if err := json.Unmarshal([]byte(`"active"`), &s); err != nil {
		t.Fatal(err)
	}
	if s != StatusActive {
		t.Errorf("expected active, got %v", s)
	}
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("07:05")
	if err != nil || h != 7 || m != 5 {
		t.Errorf("expected 7:05, got %d:%d (%v)", h, m, err)
	}
	if _, _, err := ParseClock("7am"); err == nil {
		t.Error("expected error")
	}
}
