package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"prayernote/internal/logger"
	"prayernote/internal/models"
)

// Host registers one-shot wake triggers. It owns process-wide timer state.
type Host interface {
	// Arm registers fire to run once at the given instant, replacing any
	// trigger already registered under id.
	Arm(id int64, at time.Time, fire func()) error
	Disarm(id int64)
	// CanArm reports whether exact triggers may currently be registered.
	CanArm() bool
}

// Dispatcher is invoked every time an alarm fires.
type Dispatcher interface {
	Dispatch(ctx context.Context) error
}

type State int

const (
	Unscheduled State = iota
	Armed
	Fired
)

func (s State) String() string {
	switch s {
	case Armed:
		return "armed"
	case Fired:
		return "fired"
	default:
		return "unscheduled"
	}
}

// WarnPermission is shown while alarms wait for the exact-alarm permission.
const WarnPermission = "Exact alarm permission is missing, some reminders are not scheduled"

// NextOccurrence returns the next instant strictly after now at hour:minute
// wall-clock time in now's location. When today's slot has passed it moves to
// the same wall-clock time on the next calendar day, so across a DST change
// the gap is 23 or 25 hours.
func NextOccurrence(now time.Time, hour, minute int) time.Time {
	y, m, d := now.Date()
	next := time.Date(y, m, d, hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(y, m, d+1, hour, minute, 0, 0, now.Location())
	}
	return next
}

type entry struct {
	alarm models.Alarm
	state State
	next  time.Time
}

// Scheduler keeps one armed trigger per enabled alarm and re-arms it after
// every firing.
type Scheduler struct {
	host       Host
	dispatcher Dispatcher
	clock      clockwork.Clock
	loc        *time.Location

	mu      sync.Mutex
	entries map[int64]*entry
	blocked map[int64]struct{}
}

func New(host Host, dispatcher Dispatcher, clock clockwork.Clock, loc *time.Location) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		host:       host,
		dispatcher: dispatcher,
		clock:      clock,
		loc:        loc,
		entries:    make(map[int64]*entry),
		blocked:    make(map[int64]struct{}),
	}
}

// Schedule arms an enabled alarm at its next occurrence, or cancels a
// disabled one. Missing permission leaves the alarm unscheduled with a
// warning and is not an error.
func (s *Scheduler) Schedule(a models.Alarm) error {
	if !a.Enabled {
		s.Cancel(a.ID)
		return nil
	}
	if err := a.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[a.ID]; ok && e.state != Unscheduled && e.alarm == a {
		return nil
	}
	return s.arm(a, s.clock.Now().In(s.loc))
}

// arm must be called with mu held.
func (s *Scheduler) arm(a models.Alarm, from time.Time) error {
	s.host.Disarm(a.ID)
	e := &entry{alarm: a, state: Unscheduled}
	s.entries[a.ID] = e

	if !s.host.CanArm() {
		s.blocked[a.ID] = struct{}{}
		logger.Warn("Cannot arm alarm without permission", "alarm_id", a.ID, "at", a.Clock())
		return nil
	}

	next := NextOccurrence(from, a.Hour, a.Minute)
	if now := s.clock.Now().In(s.loc); !next.After(now) {
		next = NextOccurrence(now, a.Hour, a.Minute)
	}
	id := a.ID
	if err := s.host.Arm(id, next, func() { s.Fire(id) }); err != nil {
		return fmt.Errorf("failed to arm alarm %d: %w", id, err)
	}
	delete(s.blocked, id)
	e.state = Armed
	e.next = next
	logger.Info("Alarm armed", "alarm_id", id, "next", next.Format(time.RFC3339))
	return nil
}

// Cancel disarms the alarm and forgets it.
func (s *Scheduler) Cancel(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.host.Disarm(id)
	delete(s.entries, id)
	delete(s.blocked, id)
	logger.Debug("Alarm cancelled", "alarm_id", id)
}

// Restore re-arms every enabled alarm from persisted state and drops
// triggers for alarms that are no longer present or enabled. Each alarm ends
// with at most one trigger.
func (s *Scheduler) Restore(alarms []models.Alarm) error {
	keep := make(map[int64]bool, len(alarms))
	for _, a := range alarms {
		if a.Enabled {
			keep[a.ID] = true
		}
	}

	s.mu.Lock()
	for id := range s.entries {
		if !keep[id] {
			s.host.Disarm(id)
			delete(s.entries, id)
			delete(s.blocked, id)
		}
	}
	s.mu.Unlock()

	var errs []error
	for _, a := range alarms {
		if err := s.Schedule(a); err != nil {
			errs = append(errs, err)
		}
	}
	logger.Debug("Alarms restored", "count", len(keep))
	return errors.Join(errs...)
}

// AlarmSource lists persisted alarms.
type AlarmSource interface {
	ListAlarms(ctx context.Context) ([]models.Alarm, error)
}

// Sync restores from the persisted alarm list. Alarms already armed for the
// same time are left untouched.
func (s *Scheduler) Sync(ctx context.Context, src AlarmSource) error {
	alarms, err := src.ListAlarms(ctx)
	if err != nil {
		return fmt.Errorf("failed to load alarms: %w", err)
	}
	return s.Restore(alarms)
}

// RetryBlocked arms alarms that were left unscheduled for lack of permission.
func (s *Scheduler) RetryBlocked() error {
	s.mu.Lock()
	var pending []models.Alarm
	for id := range s.blocked {
		if e, ok := s.entries[id]; ok {
			pending = append(pending, e.alarm)
		}
	}
	s.mu.Unlock()

	var errs []error
	for _, a := range pending {
		if err := s.Schedule(a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Fire runs the dispatcher for the alarm and arms the next occurrence on
// the following calendar day.
func (s *Scheduler) Fire(id int64) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		logger.Debug("Ignoring fire of unknown alarm", "alarm_id", id)
		return
	}
	e.state = Fired
	firedAt := e.next
	if firedAt.IsZero() {
		firedAt = s.clock.Now().In(s.loc)
	}
	s.mu.Unlock()

	logger.Info("Alarm fired", "alarm_id", id, "at", firedAt.Format(time.RFC3339))
	if s.dispatcher != nil {
		if err := s.dispatcher.Dispatch(context.Background()); err != nil {
			logger.Error("Dispatch failed", "alarm_id", id, "error", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Cancelled or rescheduled while dispatching.
	if cur, ok := s.entries[id]; !ok || cur != e {
		return
	}
	if err := s.arm(e.alarm, firedAt); err != nil {
		logger.Error("Failed to re-arm alarm", "alarm_id", id, "error", err)
	}
}

// State returns the current state of an alarm.
func (s *Scheduler) State(id int64) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		return e.state
	}
	return Unscheduled
}

// Next returns the armed instant of an alarm.
func (s *Scheduler) Next(id int64) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.state != Armed {
		return time.Time{}, false
	}
	return e.next, true
}

// Armed lists the ids of armed alarms in ascending order.
func (s *Scheduler) Armed() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for id, e := range s.entries {
		if e.state == Armed {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Warnings returns persistent problems to show the user.
func (s *Scheduler) Warnings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.blocked) == 0 {
		return nil
	}
	return []string{fmt.Sprintf("%s (%d)", WarnPermission, len(s.blocked))}
}
