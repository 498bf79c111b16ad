package submit

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/secdesk/abuse-portal/internal/model"
	"github.com/secdesk/abuse-portal/internal/report"
)

// RunState is the lifecycle of one submission run. A run is only created
// once all required form fields validated, so there is no exposed idle state.
type RunState string

const (
	StateRunning   RunState = "running"
	StateComplete  RunState = "complete"
	StateCancelled RunState = "cancelled"
)

// Run is the live state of one bulk submission, mutated only by its
// orchestrator goroutine plus user-initiated cancel/clear actions.
type Run struct {
	ID string

	mu        sync.Mutex
	state     RunState
	percent   int
	total     int
	succeeded int
	logs      []model.SubmissionLogEntry
	cancel    context.CancelFunc
}

// Status is an immutable snapshot of a run for API responses.
type Status struct {
	ID        string                     `json:"runId"`
	State     RunState                   `json:"state"`
	Percent   int                        `json:"percent"`
	Total     int                        `json:"total"`
	Succeeded int                        `json:"succeeded"`
	Logs      []model.SubmissionLogEntry `json:"logs"`
}

// Append implements Sink.
func (r *Run) Append(entry model.SubmissionLogEntry) {
	r.mu.Lock()
	r.logs = append(r.logs, entry)
	r.mu.Unlock()
}

// Progress implements Sink.
func (r *Run) Progress(percent int) {
	r.mu.Lock()
	r.percent = percent
	r.mu.Unlock()
}

// Snapshot copies the run state for serving.
func (r *Run) Snapshot() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	logs := make([]model.SubmissionLogEntry, len(r.logs))
	copy(logs, r.logs)
	return Status{
		ID:        r.ID,
		State:     r.state,
		Percent:   r.percent,
		Total:     r.total,
		Succeeded: r.succeeded,
		Logs:      logs,
	}
}

// Cancel stops a running loop. It returns false if the run already finished.
// Already-dispatched results remain in the log.
func (r *Run) Cancel() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRunning {
		return false
	}
	r.cancel()
	return true
}

// ClearLogs discards the accumulated log entries of a finished run.
func (r *Run) ClearLogs() {
	r.mu.Lock()
	r.logs = nil
	r.mu.Unlock()
}

func (r *Run) finish(sum Summary) {
	r.mu.Lock()
	r.succeeded = sum.Succeeded
	if sum.Cancelled {
		r.state = StateCancelled
	} else {
		r.state = StateComplete
		r.percent = 100
	}
	r.mu.Unlock()
}

// Registry tracks submission runs in memory for the lifetime of the process.
type Registry struct {
	orch *Orchestrator

	mu   sync.Mutex
	runs map[string]*Run
}

// NewRegistry creates a run registry backed by the given orchestrator.
func NewRegistry(orch *Orchestrator) *Registry {
	return &Registry{
		orch: orch,
		runs: make(map[string]*Run),
	}
}

// Start launches a submission run in its own goroutine and returns it
// immediately. The run's context is detached from the starting request, so
// the loop outlives the HTTP call that kicked it off; it ends on completion
// or an explicit Cancel.
func (reg *Registry) Start(form report.Form, entries []model.TargetEntry, bearer string, opts Options) *Run {
	ctx, cancel := context.WithCancel(context.Background())
	run := &Run{
		ID:     uuid.New().String(),
		state:  StateRunning,
		total:  len(entries),
		cancel: cancel,
	}

	reg.mu.Lock()
	reg.runs[run.ID] = run
	reg.mu.Unlock()

	go func() {
		defer cancel()
		sum := reg.orch.Execute(ctx, form, entries, bearer, opts, run)
		run.finish(sum)
	}()

	return run
}

// Get returns a run by ID.
func (reg *Registry) Get(id string) (*Run, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	run, ok := reg.runs[id]
	return run, ok
}
