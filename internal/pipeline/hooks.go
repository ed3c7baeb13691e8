package pipeline

import (
	"context"

	"github.com/promptops/llmpipe/internal/core/domain"
)

// PreHook transforms the input envelope before validation and the pipeline
// stages. Hooks run synchronously in registration order; each receives the
// envelope produced by the previous hook.
type PreHook interface {
	TransformRequest(ctx context.Context, req *domain.Request) (*domain.Request, error)
}

// PreHookFunc adapts a function to the PreHook interface.
type PreHookFunc func(ctx context.Context, req *domain.Request) (*domain.Request, error)

func (f PreHookFunc) TransformRequest(ctx context.Context, req *domain.Request) (*domain.Request, error) {
	return f(ctx, req)
}

// PostHook transforms the result envelope after validation, just before it
// is returned to the caller.
type PostHook interface {
	TransformResult(ctx context.Context, res *domain.Result) (*domain.Result, error)
}

// PostHookFunc adapts a function to the PostHook interface.
type PostHookFunc func(ctx context.Context, res *domain.Result) (*domain.Result, error)

func (f PostHookFunc) TransformResult(ctx context.Context, res *domain.Result) (*domain.Result, error) {
	return f(ctx, res)
}

// AddPreHook registers a pre-processing hook. Hooks execute in the order
// they were added. Registration is not safe once the pipeline is serving.
func (p *Pipeline) AddPreHook(hook PreHook) {
	p.preHooks = append(p.preHooks, hook)
	p.logger.Info("added pre-processing hook")
}

// AddPostHook registers a post-processing hook. Hooks execute in the order
// they were added.
func (p *Pipeline) AddPostHook(hook PostHook) {
	p.postHooks = append(p.postHooks, hook)
	p.logger.Info("added post-processing hook")
}
