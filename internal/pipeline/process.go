package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/promptops/llmpipe/internal/core/domain"
)

// ProcessOption configures a single Process call.
type ProcessOption func(*processOptions)

type processOptions struct {
	templateName string
}

// WithTemplate overrides the configured default template for this call.
func WithTemplate(name string) ProcessOption {
	return func(o *processOptions) {
		o.templateName = name
	}
}

// Process runs the complete pipeline: pre-hooks, input validation, the four
// stages, output validation, and post-hooks. It never returns an error to
// the caller; every failure is converted into a failure-shaped envelope.
// Classified pipeline errors are reported with their message; anything else
// (including a panic in a stage or hook) maps to an opaque internal error.
func (p *Pipeline) Process(ctx context.Context, inputText string, contextVal any, opts ...ProcessOption) (result *domain.Result) {
	var o processOptions
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	p.metrics.RecordRequest()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic during pipeline execution",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			p.metrics.RecordFailure()
			result = domain.InternalFailure()
		}
	}()

	res, err := p.run(ctx, inputText, contextVal, o.templateName)
	if err != nil {
		p.metrics.RecordFailure()

		var perr *domain.Error
		if errors.As(err, &perr) {
			p.logger.Error("pipeline error",
				slog.String("kind", string(perr.Kind)),
				slog.String("error", err.Error()),
			)
			return domain.Failure(err.Error(), inputText, contextVal)
		}

		p.logger.Error("unexpected error", slog.String("error", err.Error()))
		return domain.InternalFailure()
	}

	p.metrics.RecordSuccess()
	p.metrics.TimePipeline(start)

	p.logger.Info("processing completed successfully")
	return res
}

// run sequences the hooks, validation, and stages. Stage errors propagate
// to Process, the single catch boundary.
func (p *Pipeline) run(ctx context.Context, inputText string, contextVal any, templateName string) (*domain.Result, error) {
	req := &domain.Request{InputText: inputText, Context: contextVal}

	for _, hook := range p.preHooks {
		next, err := hook.TransformRequest(ctx, req)
		if err != nil {
			return nil, err
		}
		if next != nil {
			req = next
		}
	}

	if err := p.validator.ValidateInput(ctx, req); err != nil {
		return nil, err
	}

	p.logger.Info("processing input", slog.String("input", firstN(req.InputText, 50)))

	pre := p.Preprocess(req.InputText, req.Context)

	prompt, err := p.ComposePrompt(pre, templateName)
	if err != nil {
		return nil, err
	}

	inf, err := p.inferencer.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	res, err := p.PostprocessOutput(inf, req.Context)
	if err != nil {
		return nil, err
	}

	if res.TokenUsage != nil {
		p.logger.Info("token usage",
			slog.Int("total", res.TokenUsage.TotalTokens),
			slog.Int("prompt", res.TokenUsage.PromptTokens),
			slog.Int("completion", res.TokenUsage.CompletionTokens),
		)
	}

	if err := p.validator.ValidateOutput(ctx, res); err != nil {
		return nil, err
	}

	for _, hook := range p.postHooks {
		next, err := hook.TransformResult(ctx, res)
		if err != nil {
			return nil, err
		}
		if next != nil {
			res = next
		}
	}

	return res, nil
}

func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
