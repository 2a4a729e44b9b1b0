package tools

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type taskRecorder struct {
	tasks []Task
}

func (r *taskRecorder) TaskCreated(t Task) {
	r.tasks = append(r.tasks, t)
}

func newTestDispatcher() (*Dispatcher, *taskRecorder) {
	rec := &taskRecorder{}
	return NewDispatcher(rec, zerolog.Nop()), rec
}

func TestDispatch_CreateTask(t *testing.T) {
	d, rec := newTestDispatcher()

	res := d.Dispatch(Request{Name: NameCreateTask, Args: map[string]any{"title": "Call client"}})

	if !res.OK() {
		t.Fatalf("Expected success, got %s (%s)", res.Status, res.Reason)
	}
	if len(rec.tasks) != 1 {
		t.Fatalf("Expected callback invoked once, got %d", len(rec.tasks))
	}
	task := rec.tasks[0]
	if task.Assignee != "me" {
		t.Errorf("Expected assignee 'me', got '%s'", task.Assignee)
	}
	if task.Priority != PriorityMedium {
		t.Errorf("Expected priority 'medium', got '%s'", task.Priority)
	}
	if task.Status != "pending" {
		t.Errorf("Expected status 'pending', got '%s'", task.Status)
	}
	if task.Category != "work" {
		t.Errorf("Expected category 'work', got '%s'", task.Category)
	}
	if task.ID == "" {
		t.Error("Expected task to have an id")
	}
	if res.Task == nil || res.Task.ID != task.ID {
		t.Error("Expected result to carry the created task")
	}
}

func TestDispatch_DelegateTask(t *testing.T) {
	d, rec := newTestDispatcher()

	res := d.Dispatch(Request{
		ID:   "x1",
		Name: NameDelegateTask,
		Args: map[string]any{"title": "Prepare report", "employee_name": "joão"},
	})

	if !res.OK() {
		t.Fatalf("Expected success, got %s (%s)", res.Status, res.Reason)
	}
	if len(rec.tasks) != 1 {
		t.Fatalf("Expected callback invoked once, got %d", len(rec.tasks))
	}
	if rec.tasks[0].Assignee != "João" {
		t.Errorf("Expected assignee 'João', got '%s'", rec.tasks[0].Assignee)
	}
	if !rec.tasks[0].IsDelegated() {
		t.Error("Expected task to be delegated")
	}
}

func TestDispatch_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"create without title", Request{Name: NameCreateTask, Args: map[string]any{}}},
		{"create with nil args", Request{Name: NameCreateTask}},
		{"create with blank title", Request{Name: NameCreateTask, Args: map[string]any{"title": "   "}}},
		{"delegate without employee", Request{Name: NameDelegateTask, Args: map[string]any{"title": "Report"}}},
		{"delegate without title", Request{Name: NameDelegateTask, Args: map[string]any{"employee_name": "ana"}}},
		{"unknown tool", Request{Name: "delete_task", Args: map[string]any{"title": "x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, rec := newTestDispatcher()
			res := d.Dispatch(tt.req)
			if res.Status != StatusFailure {
				t.Errorf("Expected failure, got %s", res.Status)
			}
			if res.Task != nil {
				t.Error("Expected no task on failure")
			}
			if len(rec.tasks) != 0 {
				t.Errorf("Expected no callback, got %d", len(rec.tasks))
			}
			if res.Reason == "" {
				t.Error("Expected a failure reason")
			}
		})
	}
}

func TestDispatch_OptionalFields(t *testing.T) {
	d, rec := newTestDispatcher()

	d.Dispatch(Request{Name: NameCreateTask, Args: map[string]any{
		"title":    "Dentist",
		"priority": "HIGH",
		"deadline": "20/05/2025",
		"time":     "14:00",
		"location": "Downtown",
	}})

	task := rec.tasks[0]
	if task.Priority != PriorityHigh {
		t.Errorf("Expected priority 'high', got '%s'", task.Priority)
	}
	if task.Deadline != "20/05/2025" || task.Time != "14:00" || task.Location != "Downtown" {
		t.Errorf("Unexpected optional fields: %+v", task)
	}
}

func TestDispatch_PanickingSink(t *testing.T) {
	d := NewDispatcher(TaskSinkFunc(func(Task) { panic("boom") }), zerolog.Nop())

	res := d.Dispatch(Request{Name: NameCreateTask, Args: map[string]any{"title": "x"}})
	if res.Status != StatusFailure {
		t.Errorf("Expected failure when callback panics, got %s", res.Status)
	}
}

func TestParse(t *testing.T) {
	call, err := Parse(Request{Name: NameDelegateTask, Args: map[string]any{"title": "Deploy", "employee_name": "MARIA  clara"}})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	dc, ok := call.(DelegateTaskCall)
	if !ok {
		t.Fatalf("Expected DelegateTaskCall, got %T", call)
	}
	if dc.EmployeeName != "Maria  Clara" {
		t.Errorf("Expected 'Maria  Clara', got '%s'", dc.EmployeeName)
	}

	if _, err := Parse(Request{Name: "nope"}); !errors.Is(err, ErrUnknownTool) {
		t.Errorf("Expected ErrUnknownTool, got %v", err)
	}
	if _, err := Parse(Request{Name: NameCreateTask}); !errors.Is(err, ErrMissingField) {
		t.Errorf("Expected ErrMissingField, got %v", err)
	}
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in   string
		want Priority
	}{
		{"low", PriorityLow},
		{"Medium", PriorityMedium},
		{" high ", PriorityHigh},
		{"", PriorityMedium},
		{"urgent", PriorityMedium},
	}
	for _, tt := range tests {
		if got := ParsePriority(tt.in); got != tt.want {
			t.Errorf("ParsePriority(%q): expected %s, got %s", tt.in, tt.want, got)
		}
	}
}

func TestTitleCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"joão", "João"},
		{"ana MARIA", "Ana Maria"},
		{"  pedro", "  Pedro"},
		{"élise\tdupont", "Élise\tDupont"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := TitleCase(tt.in); got != tt.want {
			t.Errorf("TitleCase(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestResultWire(t *testing.T) {
	ok := Result{Status: StatusSuccess}.Wire()
	if ok["result"] != "success" {
		t.Errorf("Expected result 'success', got %v", ok["result"])
	}
	if _, has := ok["reason"]; has {
		t.Error("Expected no reason on success")
	}

	fail := Result{Status: StatusFailure, Reason: "missing required field: title"}.Wire()
	if fail["result"] != "failure" || fail["reason"] == nil {
		t.Errorf("Unexpected failure payload: %v", fail)
	}
}

func TestDeclarations(t *testing.T) {
	decls := Declarations()
	if len(decls) != 2 {
		t.Fatalf("Expected 2 declarations, got %d", len(decls))
	}
	if decls[0].Name != NameCreateTask || decls[1].Name != NameDelegateTask {
		t.Errorf("Unexpected declaration names: %s, %s", decls[0].Name, decls[1].Name)
	}
	req := decls[1].Parameters.Required
	if len(req) != 2 || req[0] != "title" || req[1] != "employee_name" {
		t.Errorf("Unexpected delegate_task required fields: %v", req)
	}
	if len(Tool().FunctionDeclarations) != 2 {
		t.Error("Expected tool to wrap both declarations")
	}
}
