package chat

import (
	"fmt"

	"github.com/lexiqai/eva-gateway/internal/tools"
)

// feedbackFor renders the confirmation appended to the reply for one call
func feedbackFor(req tools.Request, res tools.Result) string {
	if !res.OK() || res.Task == nil {
		return fmt.Sprintf("\n\n⚠️ **COMMAND REJECTED**\n%s: %s", req.Name, res.Reason)
	}
	if res.Task.IsDelegated() {
		return fmt.Sprintf("\n\n📡 **TRANSMISSION**\nRecipient: %s\nTask: %q", res.Task.Assignee, res.Task.Title)
	}
	return fmt.Sprintf("\n\n📅 **AGENDA**\n%q added to your routine.", res.Task.Title)
}
