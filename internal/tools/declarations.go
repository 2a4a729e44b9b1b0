package tools

import "google.golang.org/genai"

var priorityEnum = []string{string(PriorityLow), string(PriorityMedium), string(PriorityHigh)}

func optionalProperties() map[string]*genai.Schema {
	return map[string]*genai.Schema{
		"priority": {Type: genai.TypeString, Enum: priorityEnum},
		"deadline": {Type: genai.TypeString, Description: "Date, strictly in DD/MM/YYYY format (e.g. 31/12/2024)."},
		"time":     {Type: genai.TypeString, Description: "Time of day, HH:MM (e.g. 14:00)."},
		"location": {Type: genai.TypeString, Description: "Where it happens, if applicable."},
	}
}

// CreateTaskDeclaration describes create_task to the model
func CreateTaskDeclaration() *genai.FunctionDeclaration {
	props := optionalProperties()
	props["title"] = &genai.Schema{Type: genai.TypeString, Description: "Title of the appointment or task."}
	return &genai.FunctionDeclaration{
		Name:        NameCreateTask,
		Description: "Creates a personal task or appointment on the user's agenda.",
		Parameters: &genai.Schema{
			Type:       genai.TypeObject,
			Properties: props,
			Required:   []string{"title"},
		},
	}
}

// DelegateTaskDeclaration describes delegate_task to the model
func DelegateTaskDeclaration() *genai.FunctionDeclaration {
	props := optionalProperties()
	props["title"] = &genai.Schema{Type: genai.TypeString, Description: "Clear description of what must be done."}
	props["employee_name"] = &genai.Schema{Type: genai.TypeString, Description: "Name of the team member receiving the task."}
	return &genai.FunctionDeclaration{
		Name:        NameDelegateTask,
		Description: "Assigns work to a specific member of the team.",
		Parameters: &genai.Schema{
			Type:       genai.TypeObject,
			Properties: props,
			Required:   []string{"title", "employee_name"},
		},
	}
}

// Declarations returns both tool declarations, shared by the live and text paths
func Declarations() []*genai.FunctionDeclaration {
	return []*genai.FunctionDeclaration{CreateTaskDeclaration(), DelegateTaskDeclaration()}
}

// Tool wraps Declarations for a model request
func Tool() *genai.Tool {
	return &genai.Tool{FunctionDeclarations: Declarations()}
}

// RequestFromFunctionCall converts a model function call
func RequestFromFunctionCall(fc *genai.FunctionCall) Request {
	if fc == nil {
		return Request{}
	}
	return Request{ID: fc.ID, Name: fc.Name, Args: fc.Args}
}
