// Package schedule defers campaign runs to a future wall-clock time,
// with inspection and cancellation until they fire.
package schedule

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unfoldedlabs/sheetmail/internal/campaign"
)

var ErrNotFound = errors.New("scheduled job not found")

const TypeOneTime = "one-time"

// RunFunc executes a campaign when its job fires.
type RunFunc func(ctx context.Context, p campaign.Params) (campaign.Summary, error)

// Job is one pending deferred campaign.
type Job struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	FireAt time.Time       `json:"fire_at"`
	Params campaign.Params `json:"params"`

	timer *time.Timer
}

// Registry tracks pending one-time jobs in memory, optionally mirrored
// into a Store for restart recovery. Firing is fire-and-forget: runner
// errors are logged, never propagated, and the job is removed
// regardless of outcome.
type Registry struct {
	run   RunFunc
	store Store
	log   *slog.Logger
	now   func() time.Time

	mu   sync.Mutex
	jobs map[string]*Job
}

func NewRegistry(run RunFunc, store Store, log *slog.Logger) *Registry {
	if store == nil {
		store = NewMemory()
	}
	return &Registry{
		run:   run,
		store: store,
		log:   log,
		now:   time.Now,
		jobs:  make(map[string]*Job),
	}
}

// ScheduleOnce registers a deferred run of p at p.StartAt (immediately
// when that is already past) and returns without blocking.
func (r *Registry) ScheduleOnce(p campaign.Params) Job {
	job := &Job{
		ID:     uuid.NewString(),
		Type:   TypeOneTime,
		FireAt: p.StartAt,
		Params: p,
	}
	// Persist before arming: a past-due job fires at once, and its
	// Delete must not land before the Put.
	if err := r.store.Put(*job); err != nil {
		r.log.Warn("cannot persist scheduled job, it will not survive a restart",
			"id", job.ID, "error", err)
	}
	r.arm(job)
	r.log.Info("scheduled campaign",
		"id", job.ID, "fire_at", job.FireAt, "sheet", p.SpreadsheetID)
	return *job
}

func (r *Registry) arm(job *Job) {
	delay := job.FireAt.Sub(r.now())
	if delay < 0 {
		delay = 0
	}
	r.mu.Lock()
	r.jobs[job.ID] = job
	job.timer = time.AfterFunc(delay, func() { r.fire(job.ID) })
	r.mu.Unlock()
}

func (r *Registry) fire(id string) {
	r.mu.Lock()
	job, ok := r.jobs[id]
	delete(r.jobs, id)
	r.mu.Unlock()
	if !ok {
		return
	}
	if err := r.store.Delete(id); err != nil {
		r.log.Warn("cannot remove fired job from store", "id", id, "error", err)
	}

	sum, err := r.run(context.Background(), job.Params)
	if err != nil {
		r.log.Error("scheduled campaign failed",
			"id", id, "sheet", job.Params.SpreadsheetID, "error", err)
		return
	}
	r.log.Info("scheduled campaign complete",
		"id", id, "sheet", job.Params.SpreadsheetID,
		"attempted", sum.Attempted, "sent", sum.Sent, "failed", sum.Failed)
}

// List returns a snapshot of all pending jobs ordered by fire time.
func (r *Registry) List() []Job {
	r.mu.Lock()
	jobs := make([]Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		jobs = append(jobs, *j)
	}
	r.mu.Unlock()
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].FireAt.Before(jobs[j].FireAt) })
	return jobs
}

// Cancel aborts a pending job. ErrNotFound means the id is unknown or
// the job already fired.
func (r *Registry) Cancel(id string) error {
	r.mu.Lock()
	job, ok := r.jobs[id]
	if ok {
		job.timer.Stop()
		delete(r.jobs, id)
	}
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	if err := r.store.Delete(id); err != nil {
		r.log.Warn("cannot remove canceled job from store", "id", id, "error", err)
	}
	r.log.Info("canceled scheduled campaign", "id", id)
	return nil
}

// Restore re-arms every job still in the store, keeping ids. Past-due
// jobs fire immediately.
func (r *Registry) Restore() error {
	jobs, err := r.store.List()
	if err != nil {
		return err
	}
	for _, j := range jobs {
		job := j
		r.arm(&job)
		r.log.Info("restored scheduled campaign", "id", job.ID, "fire_at", job.FireAt)
	}
	return nil
}

// Close stops all pending timers without firing them. Jobs stay in the
// store for the next Restore.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, job := range r.jobs {
		job.timer.Stop()
		delete(r.jobs, id)
	}
}
