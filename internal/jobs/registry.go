package jobs

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"appshell/internal/domain"
	"appshell/internal/logging"
	"appshell/internal/transcribe"
)

// ErrUnknownJob is returned when a transition names a job never created.
var ErrUnknownJob = errors.New("unknown job")

// defaultRecent bounds the terminal snapshots kept for display.
const defaultRecent = 50

// Registry tracks concurrent in-flight jobs and recently finished ones.
type Registry struct {
	mu        sync.RWMutex
	active    map[string]domain.JobSnapshot
	recent    []domain.JobSnapshot
	maxRecent int
	bus       *EventBus
	logger    *slog.Logger
}

// NewRegistry creates an empty registry publishing to bus (may be nil).
func NewRegistry(bus *EventBus, maxRecent int, logger *slog.Logger) *Registry {
	if maxRecent <= 0 {
		maxRecent = defaultRecent
	}
	return &Registry{
		active:    make(map[string]domain.JobSnapshot),
		maxRecent: maxRecent,
		bus:       bus,
		logger:    logging.NewComponentLogger(logger, "jobs"),
	}
}

// JobTransition implements transcribe.Observer.
func (r *Registry) JobTransition(t transcribe.Transition) {
	if err := r.Apply(t); err != nil {
		r.logger.Error("rejected job transition",
			logging.String(logging.FieldJobID, t.JobID),
			logging.Error(err),
		)
	}
}

// Apply validates and records one transition.
func (r *Registry) Apply(t transcribe.Transition) error {
	r.mu.Lock()
	snapshot, known := r.active[t.JobID]
	switch {
	case t.From == "" && t.To == domain.JobStateCreated:
		if known {
			r.mu.Unlock()
			return fmt.Errorf("job %s already registered", t.JobID)
		}
		snapshot = domain.JobSnapshot{ID: t.JobID, StartedAt: t.Started}
	case !known:
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownJob, t.JobID)
	case snapshot.State != t.From:
		r.mu.Unlock()
		return fmt.Errorf("job %s is %s, transition expects %s", t.JobID, snapshot.State, t.From)
	case !domain.ValidJobTransition(t.From, t.To):
		r.mu.Unlock()
		return fmt.Errorf("invalid transition: %s -> %s", t.From, t.To)
	}

	snapshot.State = t.To
	snapshot.UpdatedAt = t.At
	snapshot.ExitCode = t.ExitCode
	snapshot.Duration = t.Elapsed()
	snapshot.ErrorLabel = t.Label

	if t.To.IsTerminal() {
		delete(r.active, t.JobID)
		r.recent = append(r.recent, snapshot)
		if len(r.recent) > r.maxRecent {
			r.recent = append([]domain.JobSnapshot(nil), r.recent[len(r.recent)-r.maxRecent:]...)
		}
	} else {
		r.active[t.JobID] = snapshot
	}
	r.mu.Unlock()

	r.publish(t)
	return nil
}

func (r *Registry) publish(t transcribe.Transition) {
	if r.bus == nil {
		return
	}
	event := Event{
		Timestamp: t.At.UTC(),
		JobID:     t.JobID,
		Type:      EventTypeState,
		State:     t.To,
		Label:     t.Label,
		ExitCode:  t.ExitCode,
	}
	if t.To.IsTerminal() {
		event.Type = EventTypeResult
		if t.To != domain.JobStateCompleted {
			event.Type = EventTypeError
		}
		event.ElapsedMS = t.Elapsed().Milliseconds()
	}
	r.bus.Publish(event)
}

// Get returns the snapshot of an active or recently finished job.
func (r *Registry) Get(jobID string) (domain.JobSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if snapshot, ok := r.active[jobID]; ok {
		return snapshot, true
	}
	for i := len(r.recent) - 1; i >= 0; i-- {
		if r.recent[i].ID == jobID {
			return r.recent[i], true
		}
	}
	return domain.JobSnapshot{}, false
}

// Active returns in-flight jobs ordered by start time.
func (r *Registry) Active() []domain.JobSnapshot {
	r.mu.RLock()
	out := make([]domain.JobSnapshot, 0, len(r.active))
	for _, snapshot := range r.active {
		out = append(out, snapshot)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Recent returns finished jobs, newest first.
func (r *Registry) Recent() []domain.JobSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.JobSnapshot, 0, len(r.recent))
	for i := len(r.recent) - 1; i >= 0; i-- {
		out = append(out, r.recent[i])
	}
	return out
}

// InFlight reports the number of non-terminal jobs.
func (r *Registry) InFlight() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}
