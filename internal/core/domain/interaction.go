package domain

import "time"

// Interaction is a persisted record of one pipeline call, written by the
// HTTP layer after the envelope is returned.
type Interaction struct {
	ID           string         `json:"id"`
	InputText    string         `json:"input_text"`
	Context      string         `json:"context,omitempty"`
	TemplateName string         `json:"template_name,omitempty"`
	Status       string         `json:"status"`
	FinalOutput  string         `json:"final_output,omitempty"`
	Error        string         `json:"error,omitempty"`
	TokenUsage   *Usage         `json:"token_usage,omitempty"`
	Duration     time.Duration  `json:"duration"`
	CreatedAt    time.Time      `json:"created_at"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}
