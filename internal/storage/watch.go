package storage

import (
	"context"
	"slices"
	"sync"

	"prayernote/internal/logger"
	"prayernote/internal/models"
)

const (
	tablePersons     = "persons"
	tableTopics      = "prayer_topics"
	tableAssignments = "day_assignments"
	tableHistory     = "prayer_history"
	tableAlarms      = "alarm_times"
)

// hub fans out table change signals to active watchers.
type hub struct {
	mu   sync.Mutex
	next int
	subs map[int]*subscription
}

type subscription struct {
	tables []string
	ch     chan struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[int]*subscription)}
}

func (h *hub) subscribe(tables []string) (int, <-chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	s := &subscription{tables: tables, ch: make(chan struct{}, 1)}
	h.subs[h.next] = s
	return h.next, s.ch
}

func (h *hub) unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

// notify marks every watcher of any of the tables as stale. Pending signals
// coalesce, so a slow watcher re-queries once for a burst of writes.
func (h *hub) notify(tables ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		if !slices.ContainsFunc(tables, func(t string) bool { return slices.Contains(s.tables, t) }) {
			continue
		}
		select {
		case s.ch <- struct{}{}:
		default:
		}
	}
}

// watch emits load's result now and again after every change to tables,
// until ctx is done. The channel is closed on exit.
func watch[T any](ctx context.Context, h *hub, tables []string, load func(context.Context) (T, error)) (<-chan T, error) {
	id, changed := h.subscribe(tables)
	first, err := load(ctx)
	if err != nil {
		h.unsubscribe(id)
		return nil, err
	}

	out := make(chan T, 1)
	out <- first
	go func() {
		defer close(out)
		defer h.unsubscribe(id)
		for {
			select {
			case <-ctx.Done():
				return
			case <-changed:
			}
			v, err := load(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("Watch query failed", "tables", tables, "error", err)
				continue
			}
			select {
			case out <- v:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// WatchPersons yields the person list on every person or assignment change.
func (d *DB) WatchPersons(ctx context.Context) (<-chan []models.Person, error) {
	return watch(ctx, d.hub, []string{tablePersons, tableAssignments}, d.ListPersons)
}

// WatchTopics yields the topics of one person on every topic change.
func (d *DB) WatchTopics(ctx context.Context, personID int64) (<-chan []models.Topic, error) {
	return watch(ctx, d.hub, []string{tableTopics}, func(ctx context.Context) ([]models.Topic, error) {
		return d.TopicsByPerson(ctx, personID)
	})
}

// WatchAlarms yields the alarm list on every alarm change.
func (d *DB) WatchAlarms(ctx context.Context) (<-chan []models.Alarm, error) {
	return watch(ctx, d.hub, []string{tableAlarms}, d.ListAlarms)
}
