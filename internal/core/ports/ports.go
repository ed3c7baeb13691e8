// Package ports defines the collaborator interfaces the pipeline depends
// on. Concrete implementations live in their own packages; no-op defaults
// are provided where a collaborator is optional.
package ports

import (
	"context"
	"time"

	"github.com/promptops/llmpipe/internal/core/domain"
)

// Inferencer sends a composed prompt to a text-generation backend and
// returns the model output with usage statistics.
type Inferencer interface {
	Complete(ctx context.Context, prompt string) (*domain.InferenceResult, error)
}

// Validator gates envelopes on schema violations. Implementations return a
// classified validation error on rejection and nil on pass.
type Validator interface {
	ValidateInput(ctx context.Context, req *domain.Request) error
	ValidateOutput(ctx context.Context, res *domain.Result) error
}

// MetricsCollector is a fire-and-forget metrics sink. Implementations must
// never return errors or panic; a disabled collector is a no-op.
type MetricsCollector interface {
	RecordRequest()
	RecordSuccess()
	RecordFailure()
	RecordTokenUsage(usage *domain.Usage)
	TimePipeline(start time.Time)
	TimeInference(start time.Time)
}

// TemplateStore resolves a prompt template by name. Load returns the
// template text, or an error the composer treats as not-found.
type TemplateStore interface {
	Load(name string) (string, error)
}

// InteractionStore persists per-call interaction records.
type InteractionStore interface {
	SaveInteraction(ctx context.Context, interaction *domain.Interaction) error
	ListInteractions(ctx context.Context, limit int) ([]*domain.Interaction, error)
	Close() error
}
