package chat

import (
	"regexp"
	"strings"
	"time"
)

// Role of a conversation turn
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one entry of the conversation log
type Message struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	// HistoryLimit is how many prior messages go out with each request
	HistoryLimit = 6

	Greeting        = "Alpha protocol active. I am your strategic intelligence. How can I optimize your day?"
	FallbackMessage = "Protocol failure. Please try again."
)

// GreetingMessage opens every conversation log
func GreetingMessage(now time.Time) Message {
	return Message{Role: RoleModel, Text: Greeting, Timestamp: now}
}

// RecentHistory returns at most the last HistoryLimit messages
func RecentHistory(history []Message) []Message {
	if len(history) <= HistoryLimit {
		return history
	}
	return history[len(history)-HistoryLimit:]
}

var speakerLabel = regexp.MustCompile(`^[A-Za-z\x{C0}-\x{D6}\x{D8}-\x{F6}\x{F8}-\x{FF}\s]+:\s*`)

// CleanText removes emphasis markers and a leading "Speaker:" label
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "*", "")
	text = speakerLabel.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
