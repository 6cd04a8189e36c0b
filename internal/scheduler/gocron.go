package scheduler

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"prayernote/internal/logger"
)

// GocronHost arms alarms as gocron one-time jobs.
type GocronHost struct {
	s gocron.Scheduler

	// Permitted reports whether arming is allowed. Nil means always.
	Permitted func() bool

	mu   sync.Mutex
	jobs map[int64]uuid.UUID
}

func NewGocronHost(clock clockwork.Clock, loc *time.Location) (*GocronHost, error) {
	opts := []gocron.SchedulerOption{}
	if clock != nil {
		opts = append(opts, gocron.WithClock(clock))
	}
	if loc != nil {
		opts = append(opts, gocron.WithLocation(loc))
	}
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	s.Start()
	return &GocronHost{s: s, jobs: make(map[int64]uuid.UUID)}, nil
}

func (h *GocronHost) Arm(id int64, at time.Time, fire func()) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(id)

	tag := strconv.FormatInt(id, 10)
	j, err := h.s.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(at)),
		gocron.NewTask(fire),
		gocron.WithName("alarm-"+tag),
		gocron.WithTags("alarm", tag),
	)
	if err != nil {
		return err
	}
	h.jobs[id] = j.ID()
	return nil
}

func (h *GocronHost) Disarm(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(id)
}

func (h *GocronHost) removeLocked(id int64) {
	jobID, ok := h.jobs[id]
	if !ok {
		return
	}
	delete(h.jobs, id)
	if err := h.s.RemoveJob(jobID); err != nil {
		logger.Debug("Remove job", "alarm_id", id, "error", err)
	}
}

func (h *GocronHost) CanArm() bool {
	if h.Permitted == nil {
		return true
	}
	return h.Permitted()
}

// Every runs task periodically, first after one interval.
func (h *GocronHost) Every(interval time.Duration, name string, task func()) error {
	_, err := h.s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	return err
}

// Pending returns the number of registered triggers.
func (h *GocronHost) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.jobs)
}

func (h *GocronHost) Shutdown() error {
	return h.s.Shutdown()
}
