package tools

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Status of a dispatched call
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Result is the outcome of exactly one Request
type Result struct {
	Status Status
	Call   Call  // nil when the request did not validate
	Task   *Task // set on success
	Reason string
}

// OK reports whether a task was created
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// Wire is the response payload sent back on the live channel
func (r Result) Wire() map[string]any {
	out := map[string]any{"result": string(r.Status)}
	if r.Reason != "" {
		out["reason"] = r.Reason
	}
	return out
}

// TaskSink receives every task the dispatcher creates
type TaskSink interface {
	TaskCreated(Task)
}

// TaskSinkFunc adapts a function to TaskSink
type TaskSinkFunc func(Task)

func (f TaskSinkFunc) TaskCreated(t Task) { f(t) }

// Dispatcher executes validated tool calls. It does not know which path the
// request came from.
type Dispatcher struct {
	sink   TaskSink
	logger zerolog.Logger
	newID  func() string
}

// NewDispatcher creates a dispatcher that reports tasks to sink
func NewDispatcher(sink TaskSink, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		sink:   sink,
		logger: logger.With().Str("component", "tools").Logger(),
		newID:  uuid.NewString,
	}
}

// Dispatch runs req and never panics; failures are reported in the result
func (d *Dispatcher) Dispatch(req Request) Result {
	call, err := Parse(req)
	if err != nil {
		d.logger.Warn().
			Err(err).
			Str("tool", req.Name).
			Str("call_id", req.ID).
			Msg("Rejected tool call")
		return Result{Status: StatusFailure, Reason: err.Error()}
	}

	task := d.build(call)
	if err := d.deliver(task); err != nil {
		d.logger.Error().Err(err).Str("tool", call.ToolName()).Msg("Task callback failed")
		return Result{Status: StatusFailure, Call: call, Reason: err.Error()}
	}

	d.logger.Info().
		Str("tool", call.ToolName()).
		Str("call_id", req.ID).
		Str("task_id", task.ID).
		Str("assignee", task.Assignee).
		Msg("Task created")
	return Result{Status: StatusSuccess, Call: call, Task: &task}
}

func (d *Dispatcher) build(call Call) Task {
	det := call.details()
	task := Task{
		ID:       d.newID(),
		Title:    det.Title,
		Status:   "pending",
		Category: "work",
		Assignee: AssigneeMe,
		Priority: det.Priority,
		Deadline: det.Deadline,
		Time:     det.Time,
		Location: det.Location,
	}
	if dc, ok := call.(DelegateTaskCall); ok {
		task.Assignee = dc.EmployeeName
	}
	return task
}

func (d *Dispatcher) deliver(task Task) (err error) {
	if d.sink == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task callback panicked: %v", r)
		}
	}()
	d.sink.TaskCreated(task)
	return nil
}
