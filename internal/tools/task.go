package tools

import (
	"strings"
	"unicode"
)

// Priority of a task
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority accepts low, medium or high in any case; anything else is medium
func ParsePriority(s string) Priority {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p
	default:
		return PriorityMedium
	}
}

// AssigneeMe marks a task kept by the user
const AssigneeMe = "me"

// Task is the record handed to the task-created callback
type Task struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Status   string   `json:"status"`
	Category string   `json:"category"`
	Assignee string   `json:"assignee"`
	Priority Priority `json:"priority"`
	Deadline string   `json:"deadline,omitempty"` // DD/MM/YYYY
	Time     string   `json:"time,omitempty"`     // HH:MM
	Location string   `json:"location,omitempty"`
}

// IsDelegated reports whether the task belongs to a team member
func (t Task) IsDelegated() bool {
	return t.Assignee != AssigneeMe
}

// TitleCase lower-cases s and upper-cases the first letter of every
// whitespace-delimited word. Whitespace is kept as is.
func TitleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	wordStart := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) {
			wordStart = true
			b.WriteRune(r)
			continue
		}
		if wordStart {
			r = unicode.ToUpper(r)
			wordStart = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
