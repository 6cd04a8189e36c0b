package models

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrInvalidTransition is returned when a topic status change does not apply.
var ErrInvalidTransition = errors.New("invalid topic status transition")

// Person is somebody the user prays for.
type Person struct {
	ID        int64      `db:"id"         json:"id"`
	Name      string     `db:"name"       json:"name"     validate:"required,max=200"`
	Memo      string     `db:"memo"       json:"memo"     validate:"max=2000"`
	Days      WeekdaySet `db:"-"          json:"days"`
	Priority  int        `db:"priority"   json:"priority"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

func (p *Person) Validate() error {
	if err := validate.Struct(p); err != nil {
		return err
	}
	return p.Days.Validate()
}

// Topic is a single prayer request tied to a person.
type Topic struct {
	ID         int64       `db:"id"          json:"id"`
	PersonID   int64       `db:"person_id"   json:"person_id"   validate:"required"`
	Title      string      `db:"title"       json:"title"       validate:"required,max=500"`
	Priority   int         `db:"priority"    json:"priority"`
	Status     TopicStatus `db:"status"      json:"status"`
	CreatedAt  time.Time   `db:"created_at"  json:"created_at"`
	AnsweredAt *time.Time  `db:"answered_at" json:"answered_at,omitempty"` // nil unless answered
}

func (t *Topic) Validate() error {
	if err := validate.Struct(t); err != nil {
		return err
	}
	if !t.Status.Valid() {
		return errors.New("unknown topic status")
	}
	if (t.Status == StatusAnswered) != (t.AnsweredAt != nil) {
		return errors.New("answered_at must be set exactly when status is answered")
	}
	return nil
}

// MarkAnswered moves an active topic to answered at the given instant.
func (t *Topic) MarkAnswered(at time.Time) error {
	if t.Status != StatusActive {
		return ErrInvalidTransition
	}
	t.Status = StatusAnswered
	t.AnsweredAt = &at
	return nil
}

// Restore reverts an answered topic to active and clears the answer time.
func (t *Topic) Restore() error {
	if t.Status != StatusAnswered {
		return ErrInvalidTransition
	}
	t.Status = StatusActive
	t.AnsweredAt = nil
	return nil
}

// History records that a topic was surfaced on a given day.
type History struct {
	ID       int64     `db:"id"        json:"id"`
	TopicID  int64     `db:"topic_id"  json:"topic_id"`
	PersonID int64     `db:"person_id" json:"person_id"`
	PrayedAt time.Time `db:"prayed_at" json:"prayed_at"`
}

// Assignment pairs a person with the active topics to surface for a day.
type Assignment struct {
	Person Person  `json:"person"`
	Topics []Topic `json:"topics"`
}

// PersonStat is a history count grouped by person.
type PersonStat struct {
	PersonID   int64  `json:"person_id"`
	PersonName string `json:"person_name"`
	Count      int    `json:"count"`
}

// MonthStat is a history count grouped by calendar month (YYYY-MM).
type MonthStat struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// AnsweredTopic is an answered topic with its person's name for listings.
type AnsweredTopic struct {
	Topic
	PersonName string `json:"person_name"`
}

// Stats summarises prayer activity over a period.
type Stats struct {
	Start          time.Time    `json:"start"`
	End            time.Time    `json:"end"`
	Total          int          `json:"total"`
	ByPerson       []PersonStat `json:"by_person"`
	Monthly        []MonthStat  `json:"monthly"`
	AnswerRate     float64      `json:"answer_rate"`
	ActiveTopics   int          `json:"active_topics"`
	AnsweredTopics int          `json:"answered_topics"`
}

// PushSubscription is a browser endpoint registered for web push.
type PushSubscription struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
	P256dh   string `json:"p256dh"   validate:"required"`
	Auth     string `json:"auth"     validate:"required"`
}

func (s *PushSubscription) Validate() error {
	return validate.Struct(s)
}
