package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"prayernote/internal/models"
)

// Store is the read side of storage the resolver needs.
type Store interface {
	PersonsByDay(ctx context.Context, day models.Weekday) ([]models.Person, error)
	ActiveTopicsForDay(ctx context.Context, day models.Weekday) ([]models.Topic, error)
}

// Resolver answers "who do I pray for on this day".
type Resolver struct {
	store Store
	clock clockwork.Clock
	loc   *time.Location
}

func New(store Store, clock clockwork.Clock, loc *time.Location) *Resolver {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Resolver{store: store, clock: clock, loc: loc}
}

// Weekday is the current day of week in the resolver's location.
func (r *Resolver) Weekday() models.Weekday {
	return models.WeekdayOf(r.clock.Now().In(r.loc))
}

// Resolve returns persons due on day, each with its active topics.
// Passing EveryDay returns only persons marked for every day.
// Persons without active topics are included with an empty list.
func (r *Resolver) Resolve(ctx context.Context, day models.Weekday) ([]models.Assignment, error) {
	if !day.Valid() {
		return nil, fmt.Errorf("invalid weekday %d", int(day))
	}

	persons, err := r.store.PersonsByDay(ctx, day)
	if err != nil {
		return nil, err
	}
	topics, err := r.store.ActiveTopicsForDay(ctx, day)
	if err != nil {
		return nil, err
	}

	byPerson := make(map[int64][]models.Topic, len(persons))
	for _, t := range topics {
		byPerson[t.PersonID] = append(byPerson[t.PersonID], t)
	}

	res := make([]models.Assignment, 0, len(persons))
	for _, p := range persons {
		ts := byPerson[p.ID]
		if ts == nil {
			ts = []models.Topic{}
		}
		res = append(res, models.Assignment{Person: p, Topics: ts})
	}
	return res, nil
}

// Today resolves the current weekday.
func (r *Resolver) Today(ctx context.Context) (models.Weekday, []models.Assignment, error) {
	day := r.Weekday()
	res, err := r.Resolve(ctx, day)
	return day, res, err
}
