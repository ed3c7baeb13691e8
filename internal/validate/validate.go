// Package validate implements the schema gate applied around the pipeline
// stages: input envelopes are rejected when input_text is blank, output
// envelopes when final_output is blank.
package validate

import (
	"context"
	"log/slog"
	"strings"

	"github.com/promptops/llmpipe/internal/core/domain"
	"github.com/promptops/llmpipe/internal/core/ports"
)

// Schema validates envelopes against the pipeline I/O contract.
type Schema struct {
	logger *slog.Logger
}

// New creates a schema validator.
func New(logger *slog.Logger) *Schema {
	if logger == nil {
		logger = slog.Default()
	}
	return &Schema{logger: logger}
}

// ValidateInput rejects input envelopes whose input_text is empty after
// trimming.
func (s *Schema) ValidateInput(_ context.Context, req *domain.Request) error {
	if req == nil {
		return domain.Errorf(domain.KindValidation, "input envelope is missing")
	}
	if strings.TrimSpace(req.InputText) == "" {
		s.logger.Error("input validation error", "reason", "empty input_text")
		return domain.Errorf(domain.KindValidation, "input_text cannot be empty")
	}
	return nil
}

// ValidateOutput rejects result envelopes whose final_output is empty after
// trimming.
func (s *Schema) ValidateOutput(_ context.Context, res *domain.Result) error {
	if res == nil {
		return domain.Errorf(domain.KindValidation, "result envelope is missing")
	}
	if strings.TrimSpace(res.FinalOutput) == "" {
		s.logger.Error("output validation error", "reason", "empty final_output")
		return domain.Errorf(domain.KindValidation, "final_output cannot be empty")
	}
	return nil
}

// Passthrough is the no-op validator used when schema validation is
// disabled.
type Passthrough struct{}

func (Passthrough) ValidateInput(context.Context, *domain.Request) error { return nil }

func (Passthrough) ValidateOutput(context.Context, *domain.Result) error { return nil }

var (
	_ ports.Validator = (*Schema)(nil)
	_ ports.Validator = Passthrough{}
)
