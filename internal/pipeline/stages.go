package pipeline

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/promptops/llmpipe/internal/core/domain"
)

// fallbackTemplate substitutes for a template file that cannot be read.
const fallbackTemplate = "User: {user_input}\nContext: {context}\nResponse:"

// Preprocess normalizes the raw input per configuration: trim first, then
// lowercase. The context value passes through unchanged.
func (p *Pipeline) Preprocess(inputText string, context any) *domain.Preprocessed {
	processed := inputText

	if p.cfg.StripInput {
		processed = strings.TrimSpace(processed)
	}
	if p.cfg.LowercaseInput {
		processed = strings.ToLower(processed)
	}

	p.logger.Debug("preprocessed input", slog.String("input", processed))

	return &domain.Preprocessed{Input: processed, Context: context}
}

// ComposePrompt renders the named template (or the configured default) with
// the preprocessed input and context. A template that cannot be loaded is
// replaced by the built-in fallback.
func (p *Pipeline) ComposePrompt(pre *domain.Preprocessed, templateName string) (string, error) {
	if pre == nil {
		return "", domain.Errorf(domain.KindCompose, "missing preprocessed data")
	}

	name := templateName
	if name == "" {
		name = p.cfg.DefaultTemplate
	}

	tmpl, err := p.templates.Load(name)
	if err != nil {
		p.logger.Warn("template not found, using fallback template",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		tmpl = fallbackTemplate
	}

	prompt := strings.NewReplacer(
		"{user_input}", pre.Input,
		"{context}", fmt.Sprint(pre.Context),
	).Replace(tmpl)

	p.logger.Debug("composed prompt", slog.String("prompt", prompt))
	return prompt, nil
}

// PostprocessOutput applies output normalization and packages the success
// envelope with a wall-clock completion timestamp.
func (p *Pipeline) PostprocessOutput(inf *domain.InferenceResult, context any) (*domain.Result, error) {
	if inf == nil {
		return nil, domain.Errorf(domain.KindOutput, "missing inference result")
	}

	output := inf.Content
	if p.cfg.UppercaseOutput {
		output = strings.ToUpper(output)
	}

	return &domain.Result{
		FinalOutput: output,
		ContextUsed: context,
		Timestamp:   time.Now(),
		TokenUsage:  inf.Usage,
	}, nil
}
