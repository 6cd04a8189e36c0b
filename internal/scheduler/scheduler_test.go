package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/jonboulle/clockwork"

	"prayernote/internal/models"
)

type fakeHost struct {
	mu      sync.Mutex
	denied  bool
	armed   map[int64]time.Time
	fires   map[int64]func()
	armCall int
}

func newFakeHost() *fakeHost {
	return &fakeHost{armed: map[int64]time.Time{}, fires: map[int64]func(){}}
}

func (h *fakeHost) Arm(id int64, at time.Time, fire func()) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.armCall++
	h.armed[id] = at
	h.fires[id] = fire
	return nil
}

func (h *fakeHost) Disarm(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.armed, id)
	delete(h.fires, id)
}

func (h *fakeHost) CanArm() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.denied
}

func (h *fakeHost) at(id int64) (time.Time, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	at, ok := h.armed[id]
	return at, ok
}

func (h *fakeHost) fire(t *testing.T, id int64) {
	t.Helper()
	h.mu.Lock()
	f, ok := h.fires[id]
	h.mu.Unlock()
	if !ok {
		t.Fatalf("alarm %d is not armed", id)
	}
	f()
}

type countingDispatcher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (d *countingDispatcher) Dispatch(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return d.err
}

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("failed to load %s: %v", name, err)
	}
	return loc
}

func TestNextOccurrence(t *testing.T) {
	now := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name         string
		hour, minute int
		want         time.Time
	}{
		{"later today", 21, 0, time.Date(2024, 3, 4, 21, 0, 0, 0, time.UTC)},
		{"already passed", 7, 0, time.Date(2024, 3, 5, 7, 0, 0, 0, time.UTC)},
		{"exactly now", 12, 0, time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)},
		{"one minute ahead", 12, 1, time.Date(2024, 3, 4, 12, 1, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextOccurrence(now, tt.hour, tt.minute)
			if !got.Equal(tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestNextOccurrenceAcrossMonthEnd(t *testing.T) {
	now := time.Date(2024, 2, 29, 22, 0, 0, 0, time.UTC)
	got := NextOccurrence(now, 7, 30)
	want := time.Date(2024, 3, 1, 7, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestNextOccurrenceDSTKeepsWallClock(t *testing.T) {
	ny := mustLoad(t, "America/New_York")
	tests := []struct {
		name  string
		fired time.Time
		gap   time.Duration
	}{
		{"spring forward", time.Date(2024, 3, 9, 7, 0, 0, 0, ny), 23 * time.Hour},
		{"fall back", time.Date(2024, 11, 2, 7, 0, 0, 0, ny), 25 * time.Hour},
		{"regular day", time.Date(2024, 6, 1, 7, 0, 0, 0, ny), 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := NextOccurrence(tt.fired, 7, 0)
			if next.Hour() != 7 || next.Minute() != 0 {
				t.Errorf("expected 07:00 wall clock, got %s", next.Format("15:04"))
			}
			if next.Day() == tt.fired.Day() {
				t.Errorf("expected next calendar day, got %v", next)
			}
			if gap := next.Sub(tt.fired); gap != tt.gap {
				t.Errorf("expected gap %v, got %v", tt.gap, gap)
			}
		})
	}
}

func TestRestoreArmsWithoutDuplicates(t *testing.T) {
	now := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	host := newFakeHost()
	s := New(host, &countingDispatcher{}, clockwork.NewFakeClockAt(now), time.UTC)

	alarms := []models.Alarm{
		{ID: 1, Hour: 7, Minute: 0, Enabled: true},
		{ID: 2, Hour: 21, Minute: 0, Enabled: true},
	}
	for i := 0; i < 2; i++ {
		if err := s.Restore(alarms); err != nil {
			t.Fatalf("restore %d failed: %v", i, err)
		}
	}

	if len(host.armed) != 2 {
		t.Fatalf("expected 2 triggers, got %d", len(host.armed))
	}
	if at, _ := host.at(1); !at.Equal(time.Date(2024, 3, 5, 7, 0, 0, 0, time.UTC)) {
		t.Errorf("expected 07:00 tomorrow, got %v", at)
	}
	if at, _ := host.at(2); !at.Equal(time.Date(2024, 3, 4, 21, 0, 0, 0, time.UTC)) {
		t.Errorf("expected 21:00 today, got %v", at)
	}
	if got := s.Armed(); len(got) != 2 {
		t.Errorf("expected 2 armed alarms, got %v", got)
	}
}

func TestRestoreDropsDisabledAndRemoved(t *testing.T) {
	now := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	host := newFakeHost()
	s := New(host, &countingDispatcher{}, clockwork.NewFakeClockAt(now), time.UTC)

	s.Restore([]models.Alarm{
		{ID: 1, Hour: 7, Enabled: true},
		{ID: 2, Hour: 8, Enabled: true},
		{ID: 3, Hour: 9, Enabled: true},
	})
	s.Restore([]models.Alarm{
		{ID: 1, Hour: 7, Enabled: true},
		{ID: 2, Hour: 8, Enabled: false},
	})

	if _, ok := host.at(2); ok {
		t.Error("expected disabled alarm to be disarmed")
	}
	if _, ok := host.at(3); ok {
		t.Error("expected removed alarm to be disarmed")
	}
	if s.State(1) != Armed || s.State(2) != Unscheduled || s.State(3) != Unscheduled {
		t.Errorf("unexpected states: %s %s %s", s.State(1), s.State(2), s.State(3))
	}
}

func TestFireDispatchesAndRearmsNextDay(t *testing.T) {
	now := time.Date(2024, 3, 4, 6, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)
	host := newFakeHost()
	d := &countingDispatcher{}
	s := New(host, d, clock, time.UTC)

	if err := s.Schedule(models.Alarm{ID: 1, Hour: 7, Minute: 0, Enabled: true}); err != nil {
		t.Fatalf("failed to schedule: %v", err)
	}
	first, _ := host.at(1)

	clock.Advance(time.Hour)
	host.fire(t, 1)

	if d.calls != 1 {
		t.Errorf("expected 1 dispatch, got %d", d.calls)
	}
	second, ok := host.at(1)
	if !ok {
		t.Fatal("expected alarm re-armed after firing")
	}
	if gap := second.Sub(first); gap != 24*time.Hour {
		t.Errorf("expected re-arm 24h later, got %v", gap)
	}
	if s.State(1) != Armed {
		t.Errorf("expected armed, got %s", s.State(1))
	}
}

func TestFireRearmsDespiteDispatchError(t *testing.T) {
	now := time.Date(2024, 3, 4, 6, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)
	host := newFakeHost()
	s := New(host, &countingDispatcher{err: errors.New("db locked")}, clock, time.UTC)

	s.Schedule(models.Alarm{ID: 1, Hour: 7, Enabled: true})
	clock.Advance(time.Hour)
	host.fire(t, 1)

	if next, ok := s.Next(1); !ok || !next.Equal(time.Date(2024, 3, 5, 7, 0, 0, 0, time.UTC)) {
		t.Errorf("expected re-arm for tomorrow, got %v (%v)", next, ok)
	}
}

func TestLateFireSkipsPastSlot(t *testing.T) {
	now := time.Date(2024, 3, 4, 6, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)
	host := newFakeHost()
	s := New(host, &countingDispatcher{}, clock, time.UTC)

	s.Schedule(models.Alarm{ID: 1, Hour: 7, Enabled: true})
	clock.Advance(50 * time.Hour)
	host.fire(t, 1)

	next, _ := s.Next(1)
	if !next.After(clock.Now()) {
		t.Errorf("expected future re-arm, got %v at %v", next, clock.Now())
	}
	if next.Hour() != 7 {
		t.Errorf("expected 07:00, got %v", next)
	}
}

func TestPermissionDeniedLeavesUnscheduled(t *testing.T) {
	now := time.Date(2024, 3, 4, 6, 0, 0, 0, time.UTC)
	host := newFakeHost()
	host.denied = true
	s := New(host, &countingDispatcher{}, clockwork.NewFakeClockAt(now), time.UTC)

	if err := s.Schedule(models.Alarm{ID: 1, Hour: 7, Enabled: true}); err != nil {
		t.Fatalf("expected no error on denied permission, got %v", err)
	}
	if s.State(1) != Unscheduled {
		t.Errorf("expected unscheduled, got %s", s.State(1))
	}
	if len(s.Warnings()) != 1 {
		t.Errorf("expected a warning, got %v", s.Warnings())
	}
	if _, ok := host.at(1); ok {
		t.Error("expected no trigger")
	}

	host.mu.Lock()
	host.denied = false
	host.mu.Unlock()
	if err := s.RetryBlocked(); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if s.State(1) != Armed {
		t.Errorf("expected armed after permission granted, got %s", s.State(1))
	}
	if len(s.Warnings()) != 0 {
		t.Errorf("expected warnings cleared, got %v", s.Warnings())
	}
}

func TestDisableCancels(t *testing.T) {
	host := newFakeHost()
	s := New(host, &countingDispatcher{}, clockwork.NewFakeClock(), time.UTC)

	a := models.Alarm{ID: 1, Hour: 7, Enabled: true}
	s.Schedule(a)
	a.Enabled = false
	s.Schedule(a)

	if _, ok := host.at(1); ok {
		t.Error("expected trigger removed on disable")
	}
	if s.State(1) != Unscheduled {
		t.Errorf("expected unscheduled, got %s", s.State(1))
	}
}

func TestFireAfterCancelDoesNothing(t *testing.T) {
	host := newFakeHost()
	d := &countingDispatcher{}
	s := New(host, d, clockwork.NewFakeClock(), time.UTC)

	s.Schedule(models.Alarm{ID: 1, Hour: 7, Enabled: true})
	host.mu.Lock()
	fire := host.fires[1]
	host.mu.Unlock()
	s.Cancel(1)
	fire()

	if d.calls != 0 {
		t.Errorf("expected no dispatch, got %d", d.calls)
	}
	if _, ok := host.at(1); ok {
		t.Error("expected no re-arm after cancel")
	}
}

func TestGocronHostFires(t *testing.T) {
	host, err := NewGocronHost(nil, time.UTC)
	if err != nil {
		t.Fatalf("failed to create host: %v", err)
	}
	defer host.Shutdown()

	fired := make(chan struct{}, 1)
	if err := host.Arm(1, time.Now().Add(200*time.Millisecond), func() { fired <- struct{}{} }); err != nil {
		t.Fatalf("failed to arm: %v", err)
	}
	if host.Pending() != 1 {
		t.Errorf("expected 1 pending trigger, got %d", host.Pending())
	}

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("trigger did not fire")
	}
}

func TestGocronHostDisarm(t *testing.T) {
	host, err := NewGocronHost(nil, time.UTC)
	if err != nil {
		t.Fatalf("failed to create host: %v", err)
	}
	defer host.Shutdown()

	fired := make(chan struct{}, 1)
	host.Arm(1, time.Now().Add(300*time.Millisecond), func() { fired <- struct{}{} })
	host.Arm(1, time.Now().Add(time.Hour), func() { fired <- struct{}{} })
	host.Disarm(1)

	if host.Pending() != 0 {
		t.Errorf("expected no pending triggers, got %d", host.Pending())
	}
	select {
	case <-fired:
		t.Error("disarmed trigger fired")
	case <-time.After(time.Second):
	}
}

type alarmList []models.Alarm

func (l alarmList) ListAlarms(context.Context) ([]models.Alarm, error) {
	return l, nil
}

type failingSource struct{}

func (failingSource) ListAlarms(context.Context) ([]models.Alarm, error) {
	return nil, errors.New("disk gone")
}

func TestSyncLeavesArmedAlarmsAlone(t *testing.T) {
	now := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	host := newFakeHost()
	s := New(host, &countingDispatcher{}, clockwork.NewFakeClockAt(now), time.UTC)
	ctx := context.Background()

	src := alarmList{{ID: 1, Hour: 21, Minute: 0, Enabled: true}}
	for i := 0; i < 3; i++ {
		if err := s.Sync(ctx, src); err != nil {
			t.Fatalf("sync %d failed: %v", i, err)
		}
	}
	if host.armCall != 1 {
		t.Errorf("expected a single arm call, got %d", host.armCall)
	}

	// moved to another time
	src = alarmList{{ID: 1, Hour: 22, Minute: 30, Enabled: true}}
	if err := s.Sync(ctx, src); err != nil {
		t.Fatal(err)
	}
	if at, _ := host.at(1); !at.Equal(time.Date(2024, 3, 4, 22, 30, 0, 0, time.UTC)) {
		t.Errorf("expected 22:30 today, got %v", at)
	}

	if err := s.Sync(ctx, failingSource{}); err == nil {
		t.Error("expected the source error")
	}
	if _, ok := host.at(1); !ok {
		t.Error("expected a failed sync to keep the trigger")
	}
}

func TestGocronHostEvery(t *testing.T) {
	host, err := NewGocronHost(nil, time.UTC)
	if err != nil {
		t.Fatalf("failed to create host: %v", err)
	}
	defer host.Shutdown()

	ticks := make(chan struct{}, 10)
	if err := host.Every(100*time.Millisecond, "tick", func() { ticks <- struct{}{} }); err != nil {
		t.Fatalf("failed to add job: %v", err)
	}
	for i := 0; i < 2; i++ {
		select {
		case <-ticks:
		case <-time.After(5 * time.Second):
			t.Fatalf("tick %d did not happen", i)
		}
	}
	if host.Pending() != 0 {
		t.Errorf("expected periodic jobs not to count as triggers, got %d", host.Pending())
	}
}
