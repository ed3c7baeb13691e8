// Package pipeline implements the four-stage request pipeline: input
// preprocessing, prompt composition, inference, and output postprocessing,
// orchestrated by Process with pre/post hook extension points.
package pipeline

import (
	"log/slog"
	"time"

	"github.com/promptops/llmpipe/internal/core/ports"
	"github.com/promptops/llmpipe/internal/inference"
	"github.com/promptops/llmpipe/internal/metrics"
	"github.com/promptops/llmpipe/internal/template"
	"github.com/promptops/llmpipe/internal/validate"
)

// Config is the flat, fully-resolved set of pipeline tunables. It is
// read-only after construction; the host performs any environment or file
// resolution before handing it over.
type Config struct {
	// Inference backend.
	APIURL     string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int

	// Text normalization.
	StripInput      bool
	LowercaseInput  bool
	UppercaseOutput bool

	// Prompt templates.
	TemplateDir     string
	DefaultTemplate string
}

// DefaultConfig mirrors the service defaults: normalization on, uppercase
// off, templates under prompt_templates/.
func DefaultConfig() Config {
	return Config{
		StripInput:      true,
		LowercaseInput:  true,
		TemplateDir:     "prompt_templates",
		DefaultTemplate: "default.txt",
	}
}

// Option configures a Pipeline at construction time.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics sink. The default is a no-op.
func WithMetrics(collector ports.MetricsCollector) Option {
	return func(p *Pipeline) {
		p.metrics = collector
	}
}

// WithValidator sets the schema gate applied around the stages. The
// default is a passthrough.
func WithValidator(v ports.Validator) Option {
	return func(p *Pipeline) {
		p.validator = v
	}
}

// WithInferencer replaces the inference backend. The default is an HTTP
// client built from the Config's inference fields.
func WithInferencer(inf ports.Inferencer) Option {
	return func(p *Pipeline) {
		p.inferencer = inf
	}
}

// WithTemplates replaces the template store. The default reads files under
// Config.TemplateDir.
func WithTemplates(store ports.TemplateStore) Option {
	return func(p *Pipeline) {
		p.templates = store
	}
}

// Pipeline is the composed preprocessing, prompt composition, inference,
// and postprocessing sequence. A single instance serves concurrent Process
// calls; configuration and hook lists must not change once serving starts.
type Pipeline struct {
	cfg        Config
	logger     *slog.Logger
	metrics    ports.MetricsCollector
	validator  ports.Validator
	inferencer ports.Inferencer
	templates  ports.TemplateStore

	preHooks  []PreHook
	postHooks []PostHook
}

// New creates a pipeline from a resolved configuration. Collaborators not
// supplied via options get working defaults: no-op metrics, passthrough
// validation, a file template store, and an inference client that falls
// back to mock responses when no API key is configured.
func New(cfg Config, opts ...Option) *Pipeline {
	if cfg.DefaultTemplate == "" {
		cfg.DefaultTemplate = "default.txt"
	}

	p := &Pipeline{cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.metrics == nil {
		p.metrics = metrics.Nop{}
	}
	if p.validator == nil {
		p.validator = validate.Passthrough{}
	}
	if p.templates == nil {
		p.templates = template.NewStore(cfg.TemplateDir)
	}
	if p.inferencer == nil {
		p.inferencer = inference.NewClient(inference.Config{
			APIURL:     cfg.APIURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
		},
			inference.WithLogger(p.logger),
			inference.WithMetrics(p.metrics),
		)
	}

	p.logger.Info("pipeline initialized", slog.String("model", cfg.Model))
	return p
}
