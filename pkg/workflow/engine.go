package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/benekli/minerva/pkg/config"
	"github.com/benekli/minerva/pkg/router"
)

// Status is a node's execution state. Transitions are monotonic: a
// terminal status never changes.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusSkipped
}

// ExecutionRecord tracks one node through a run.
type ExecutionRecord struct {
	Status   Status `json:"status"`
	Attempts int    `json:"attempts"`
	Result   string `json:"result,omitempty"`
	Err      string `json:"error,omitempty"`
}

// Executor runs one node's work. The engine owns scheduling; the executor
// owns semantics.
type Executor interface {
	ExecuteNode(ctx context.Context, kind router.TaskKind, input string) (string, error)
}

// RunResult is a finished run.
type RunResult struct {
	RunID   string                      `json:"run_id"`
	Records map[string]*ExecutionRecord `json:"records"`
}

// Succeeded reports whether every node reached succeeded.
func (r *RunResult) Succeeded() bool {
	for _, record := range r.Records {
		if record.Status != StatusSucceeded {
			return false
		}
	}
	return true
}

// eventBufferSize is the per-run event channel capacity. A slow consumer
// loses events past this buffer; DroppedEvents counts them.
const eventBufferSize = 128

// Run is one in-flight plan execution. Events delivers lifecycle
// notifications and is closed when the run finishes.
type Run struct {
	ID     string
	Events <-chan Event

	events  chan Event
	dropped atomic.Int64
	done    chan struct{}
	result  *RunResult
}

// Wait blocks until the run finishes.
func (r *Run) Wait() *RunResult {
	<-r.done
	return r.result
}

// DroppedEvents reports how many events were lost to a slow consumer.
func (r *Run) DroppedEvents() int64 {
	return r.dropped.Load()
}

func (r *Run) emit(event Event) {
	event.RunID = r.ID
	event.Time = time.Now()
	select {
	case r.events <- event:
	default:
		r.dropped.Add(1)
	}
}

// Engine schedules plans.
type Engine struct {
	cfg      *config.WorkflowConfig
	executor Executor
	logger   *slog.Logger
}

// NewEngine creates the engine.
func NewEngine(cfg *config.WorkflowConfig, executor Executor, logger *slog.Logger) (*Engine, error) {
	if executor == nil {
		return nil, fmt.Errorf("node executor is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, executor: executor, logger: logger}, nil
}

// Start validates the plan and launches it. The returned Run's Events
// channel carries lifecycle events until the run completes.
func (e *Engine) Start(ctx context.Context, plan *Plan) (*Run, error) {
	if err := plan.Validate(e.cfg.MaxPlanNodes); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}

	events := make(chan Event, eventBufferSize)
	run := &Run{
		ID:     uuid.NewString(),
		Events: events,
		events: events,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(run.done)
		defer close(events)
		run.result = e.execute(ctx, plan, run)
		run.emit(Event{Type: EventRunCompleted})
	}()

	return run, nil
}

// Execute runs a plan to completion, discarding events.
func (e *Engine) Execute(ctx context.Context, plan *Plan) (*RunResult, error) {
	run, err := e.Start(ctx, plan)
	if err != nil {
		return nil, err
	}
	for range run.Events {
	}
	return run.Wait(), nil
}

type nodeOutcome struct {
	id     string
	record ExecutionRecord
}

// execute is the completion-driven scheduler. Each finished node is applied
// on its own and the ready set re-derived immediately, so a node whose
// dependencies are done starts without waiting on unrelated slow nodes. The
// records map has a single writer: this goroutine. Node goroutines get their
// input up front and report back over the outcomes channel.
func (e *Engine) execute(ctx context.Context, plan *Plan, run *Run) *RunResult {
	records := make(map[string]*ExecutionRecord, len(plan.Nodes))
	for _, node := range plan.Nodes {
		records[node.ID] = &ExecutionRecord{Status: StatusPending}
	}

	sem := semaphore.NewWeighted(int64(e.cfg.MaxConcurrentNodes))

	// Buffered for the whole plan so a finishing node never blocks on the
	// scheduler while it waits in sem.Acquire.
	outcomes := make(chan nodeOutcome, len(plan.Nodes))
	inFlight := 0

	for {
		progressed := e.propagateSkips(plan, records, run)

		for _, node := range readyNodes(plan, records) {
			records[node.ID].Status = StatusRunning
			run.emit(Event{NodeID: node.ID, Type: EventStarted})
			progressed = true

			if err := sem.Acquire(ctx, 1); err != nil {
				records[node.ID].Status = StatusFailed
				records[node.ID].Err = err.Error()
				run.emit(Event{NodeID: node.ID, Type: EventFailed, Err: err.Error()})
				continue
			}

			input := substituteTemplate(node.InputTemplate, node.DependsOn, records)
			inFlight++
			go func(node *TaskNode, input string) {
				defer sem.Release(1)
				outcomes <- nodeOutcome{id: node.ID, record: e.runNode(ctx, node, input, run)}
			}(node, input)
		}

		if inFlight > 0 {
			outcome := <-outcomes
			inFlight--
			*records[outcome.id] = outcome.record
			continue
		}

		if allTerminal(records) {
			break
		}
		if !progressed {
			// Cancellation can strand pending nodes; mark them skipped.
			for id, record := range records {
				if !record.Status.Terminal() {
					record.Status = StatusSkipped
					record.Err = "run aborted"
					run.emit(Event{NodeID: id, Type: EventSkipped, Err: record.Err})
				}
			}
		}
	}

	return &RunResult{RunID: run.ID, Records: records}
}

// runNode executes one node with its retry budget and timeout. The input is
// substituted by the scheduler before launch; the goroutine never touches
// the records map.
func (e *Engine) runNode(ctx context.Context, node *TaskNode, input string, run *Run) ExecutionRecord {
	budget := node.RetryBudget
	if budget == 0 {
		budget = e.cfg.DefaultRetryBudget
	}
	timeout := time.Duration(node.TimeoutMS) * time.Millisecond
	if timeout == 0 {
		timeout = e.cfg.DefaultNodeTimeout.Duration()
	}

	record := ExecutionRecord{Status: StatusRunning}
	var lastErr error

	for attempt := 1; attempt <= budget; attempt++ {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		record.Attempts = attempt

		nodeCtx, cancel := context.WithTimeout(ctx, timeout)
		result, err := e.executor.ExecuteNode(nodeCtx, node.Kind, input)
		cancel()

		if err == nil {
			record.Status = StatusSucceeded
			record.Result = result
			run.emit(Event{NodeID: node.ID, Type: EventSucceeded, Attempt: attempt})
			return record
		}

		lastErr = err
		e.logger.Warn("node attempt failed",
			"node", node.ID, "kind", node.Kind, "attempt", attempt, "error", err)
		run.emit(Event{NodeID: node.ID, Type: EventAttemptFailed, Attempt: attempt, Err: err.Error()})
	}

	record.Status = StatusFailed
	if lastErr != nil {
		record.Err = lastErr.Error()
	}
	run.emit(Event{NodeID: node.ID, Type: EventFailed, Attempt: record.Attempts, Err: record.Err})
	return record
}

// propagateSkips marks pending nodes with a failed or skipped dependency
// as skipped, repeating until the transitive closure settles.
func (e *Engine) propagateSkips(plan *Plan, records map[string]*ExecutionRecord, run *Run) bool {
	progressed := false
	for changed := true; changed; {
		changed = false
		for _, node := range plan.Nodes {
			record := records[node.ID]
			if record.Status != StatusPending {
				continue
			}
			for _, dep := range node.DependsOn {
				depStatus := records[dep].Status
				if depStatus == StatusFailed || depStatus == StatusSkipped {
					record.Status = StatusSkipped
					record.Err = fmt.Sprintf("dependency %q did not succeed", dep)
					run.emit(Event{NodeID: node.ID, Type: EventSkipped, Err: record.Err})
					changed = true
					progressed = true
					break
				}
			}
		}
	}
	return progressed
}

func readyNodes(plan *Plan, records map[string]*ExecutionRecord) []*TaskNode {
	var ready []*TaskNode
	for i := range plan.Nodes {
		node := &plan.Nodes[i]
		if records[node.ID].Status != StatusPending {
			continue
		}
		allDone := true
		for _, dep := range node.DependsOn {
			if records[dep].Status != StatusSucceeded {
				allDone = false
				break
			}
		}
		if allDone {
			ready = append(ready, node)
		}
	}
	return ready
}

func allTerminal(records map[string]*ExecutionRecord) bool {
	for _, record := range records {
		if !record.Status.Terminal() {
			return false
		}
	}
	return true
}

// substituteTemplate replaces {{dep_id}} placeholders with dependency
// results.
func substituteTemplate(template string, deps []string, records map[string]*ExecutionRecord) string {
	out := template
	for _, dep := range deps {
		out = strings.ReplaceAll(out, "{{"+dep+"}}", records[dep].Result)
	}
	return out
}
