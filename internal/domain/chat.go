package domain

// ChatMessage is the provider-agnostic chat message shape used by the
// orchestrator and the generator integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// GenerationRequest is everything a generator needs for one completion call.
// Zero sampling values are meaningful and must be sent as-is.
type GenerationRequest struct {
	Model            string
	Messages         []ChatMessage
	Temperature      float64
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
	MaxTokens        int
}

// SystemPrompt returns the content of the first system message, if any.
func (r GenerationRequest) SystemPrompt() string {
	for _, m := range r.Messages {
		if m.Role == RoleSystem {
			return m.Content
		}
	}
	return ""
}
