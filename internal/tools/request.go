package tools

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Tool names declared to the model
const (
	NameCreateTask   = "create_task"
	NameDelegateTask = "delegate_task"
)

var (
	ErrUnknownTool  = errors.New("unknown tool")
	ErrMissingField = errors.New("missing required field")
)

// Request is a function call as it arrives from the model. ID is only set on
// the live channel.
type Request struct {
	ID   string
	Name string
	Args map[string]any
}

// Call is the validated form of a Request: CreateTaskCall or DelegateTaskCall
type Call interface {
	ToolName() string
	details() Details
}

// Details are the optional fields shared by both tools
type Details struct {
	Title    string
	Priority Priority
	Deadline string
	Time     string
	Location string
}

// CreateTaskCall adds a task to the user's own agenda
type CreateTaskCall struct {
	Details
}

func (CreateTaskCall) ToolName() string    { return NameCreateTask }
func (c CreateTaskCall) details() Details { return c.Details }

// DelegateTaskCall hands a task to a team member
type DelegateTaskCall struct {
	Details
	EmployeeName string // title-cased
}

func (DelegateTaskCall) ToolName() string    { return NameDelegateTask }
func (c DelegateTaskCall) details() Details { return c.Details }

// Parse validates req against the declared schema of its tool
func Parse(req Request) (Call, error) {
	switch req.Name {
	case NameCreateTask:
		d, err := parseDetails(req.Args)
		if err != nil {
			return nil, err
		}
		return CreateTaskCall{Details: d}, nil

	case NameDelegateTask:
		d, err := parseDetails(req.Args)
		if err != nil {
			return nil, err
		}
		name := stringArg(req.Args, "employee_name")
		if name == "" {
			return nil, fmt.Errorf("%w: employee_name", ErrMissingField)
		}
		return DelegateTaskCall{Details: d, EmployeeName: TitleCase(name)}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, req.Name)
	}
}

func parseDetails(args map[string]any) (Details, error) {
	title := stringArg(args, "title")
	if title == "" {
		return Details{}, fmt.Errorf("%w: title", ErrMissingField)
	}
	return Details{
		Title:    title,
		Priority: ParsePriority(stringArg(args, "priority")),
		Deadline: stringArg(args, "deadline"),
		Time:     stringArg(args, "time"),
		Location: stringArg(args, "location"),
	}, nil
}

// stringArg reads a scalar argument as trimmed text; other shapes count as absent
func stringArg(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}
