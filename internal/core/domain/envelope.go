// Package domain holds the envelope types passed between pipeline stages
// and hooks, plus the pipeline error taxonomy.
package domain

import "time"

// Request is the input envelope built from caller arguments. Pre-hooks
// receive and may mutate it before the pipeline stages run.
type Request struct {
	InputText string `json:"input_text"`
	Context   any    `json:"context,omitempty"`

	// Metadata carries hook-supplied annotations through the call.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Preprocessed is the normalized output of the preprocessing stage,
// consumed by the prompt composer.
type Preprocessed struct {
	Input   string
	Context any
}

// Usage reports token consumption as returned by the inference API, or as
// approximated by the mock path.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// InferenceResult is the output of the inference stage. Usage is nil when
// the API response carried no usage block.
type InferenceResult struct {
	Content string `json:"content"`
	Usage   *Usage `json:"usage,omitempty"`
}

// StatusFailed marks a failure-shaped result envelope.
const StatusFailed = "failed"

// Result is the terminal envelope returned to the caller. Exactly one of
// the success fields (FinalOutput, ContextUsed, Timestamp, TokenUsage) or
// the failure fields (Error, Status) is populated, never both.
// Post-hooks receive and may mutate it before it is returned.
type Result struct {
	FinalOutput string    `json:"final_output,omitempty"`
	ContextUsed any       `json:"context_used,omitempty"`
	Timestamp   time.Time `json:"timestamp,omitzero"`
	TokenUsage  *Usage    `json:"token_usage,omitempty"`

	// Failure shape. Input and Context echo the original caller arguments
	// for classified pipeline errors; both are omitted for unexpected
	// internal errors.
	Error   string `json:"error,omitempty"`
	Input   string `json:"input,omitempty"`
	Context any    `json:"context,omitempty"`
	Status  string `json:"status,omitempty"`

	// Metadata carries post-hook annotations back to the caller.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Failed reports whether the result is failure-shaped.
func (r *Result) Failed() bool {
	return r.Status == StatusFailed
}

// Failure builds a failure envelope for a classified pipeline error,
// echoing the original input and context.
func Failure(msg, input string, context any) *Result {
	return &Result{
		Error:   msg,
		Input:   input,
		Context: context,
		Status:  StatusFailed,
	}
}

// InternalFailure builds the opaque failure envelope used for unexpected
// errors. It deliberately carries no detail about what went wrong.
func InternalFailure() *Result {
	return &Result{
		Error:  "internal pipeline error",
		Status: StatusFailed,
	}
}
