package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/promptops/llmpipe/internal/core/domain"
	"github.com/promptops/llmpipe/internal/validate"
)

// mockInferencer records prompts and returns a configured result or error.
type mockInferencer struct {
	result  *domain.InferenceResult
	err     error
	prompts []string
}

func (m *mockInferencer) Complete(_ context.Context, prompt string) (*domain.InferenceResult, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// mockCollector counts sink calls.
type mockCollector struct {
	requests, successes, failures atomic.Int64
	pipelineTimed, inferenceTimed atomic.Int64
	tokens                        atomic.Int64
}

func (m *mockCollector) RecordRequest() { m.requests.Add(1) }
func (m *mockCollector) RecordSuccess() { m.successes.Add(1) }
func (m *mockCollector) RecordFailure() { m.failures.Add(1) }

func (m *mockCollector) RecordTokenUsage(u *domain.Usage) {
	if u != nil {
		m.tokens.Add(int64(u.TotalTokens))
	}
}

func (m *mockCollector) TimePipeline(time.Time)  { m.pipelineTimed.Add(1) }
func (m *mockCollector) TimeInference(time.Time) { m.inferenceTimed.Add(1) }

// stubTemplates serves a fixed template and records the requested name.
type stubTemplates struct {
	tmpl string
	name string
}

func (s *stubTemplates) Load(name string) (string, error) {
	s.name = name
	return s.tmpl, nil
}

func TestProcess_EndToEnd(t *testing.T) {
	inf := &mockInferencer{result: &domain.InferenceResult{
		Content: "Test response",
		Usage:   &domain.Usage{PromptTokens: 5, CompletionTokens: 2, TotalTokens: 7},
	}}
	p := newTestPipeline(t, DefaultConfig(), WithInferencer(inf))

	res := p.Process(context.Background(), "test input", "test context")

	if res.Failed() {
		t.Fatalf("unexpected failure: %s", res.Error)
	}
	if res.FinalOutput != "Test response" {
		t.Errorf("final_output = %q", res.FinalOutput)
	}
	if res.ContextUsed != "test context" {
		t.Errorf("context_used = %v", res.ContextUsed)
	}
	if res.TokenUsage == nil || res.TokenUsage.TotalTokens != 7 {
		t.Errorf("token_usage = %+v", res.TokenUsage)
	}
	if res.Timestamp.IsZero() {
		t.Error("timestamp not stamped")
	}
}

func TestProcess_HookMutationsVisible(t *testing.T) {
	inf := &mockInferencer{result: &domain.InferenceResult{Content: "reply"}}
	cfg := Config{TemplateDir: t.TempDir()} // normalization off, fallback template
	p := newTestPipeline(t, cfg, WithInferencer(inf))

	p.AddPreHook(PreHookFunc(func(_ context.Context, req *domain.Request) (*domain.Request, error) {
		req.InputText += " PRE"
		return req, nil
	}))
	p.AddPostHook(PostHookFunc(func(_ context.Context, res *domain.Result) (*domain.Result, error) {
		res.FinalOutput += " POST"
		return res, nil
	}))

	res := p.Process(context.Background(), "test input", nil)

	if res.Failed() {
		t.Fatalf("unexpected failure: %s", res.Error)
	}
	if len(inf.prompts) != 1 || !strings.Contains(inf.prompts[0], "test input PRE") {
		t.Errorf("pre-hook mutation not visible downstream: %q", inf.prompts)
	}
	if res.FinalOutput != "reply POST" {
		t.Errorf("post-hook mutation not applied: %q", res.FinalOutput)
	}
}

func TestProcess_HooksRunInRegistrationOrder(t *testing.T) {
	inf := &mockInferencer{result: &domain.InferenceResult{Content: "reply"}}
	p := newTestPipeline(t, Config{TemplateDir: t.TempDir()}, WithInferencer(inf))

	for _, suffix := range []string{"1", "2", "3"} {
		s := suffix
		p.AddPreHook(PreHookFunc(func(_ context.Context, req *domain.Request) (*domain.Request, error) {
			req.InputText += s
			return req, nil
		}))
	}

	res := p.Process(context.Background(), "x", nil)
	if res.Failed() {
		t.Fatalf("unexpected failure: %s", res.Error)
	}
	if !strings.Contains(inf.prompts[0], "x123") {
		t.Errorf("hooks ran out of order: %q", inf.prompts[0])
	}
}

func TestProcess_StageFailureYieldsFailureEnvelope(t *testing.T) {
	inf := &mockInferencer{err: domain.Errorf(domain.KindTransport, "failed to get response after 3 attempts")}
	p := newTestPipeline(t, DefaultConfig(), WithInferencer(inf))

	res := p.Process(context.Background(), "some input", "some context")

	if !res.Failed() {
		t.Fatal("expected failure envelope")
	}
	if res.Status != domain.StatusFailed {
		t.Errorf("status = %q", res.Status)
	}
	if !strings.Contains(res.Error, "failed to get response after 3 attempts") {
		t.Errorf("classified error should carry detail, got %q", res.Error)
	}
	if res.Input != "some input" || res.Context != "some context" {
		t.Errorf("failure envelope should echo input/context, got %q/%v", res.Input, res.Context)
	}
	if res.FinalOutput != "" {
		t.Error("failure envelope must not carry success fields")
	}
}

func TestProcess_UnexpectedErrorIsOpaque(t *testing.T) {
	inf := &mockInferencer{err: errors.New("boom: internal detail")}
	p := newTestPipeline(t, DefaultConfig(), WithInferencer(inf))

	res := p.Process(context.Background(), "input", nil)

	if !res.Failed() {
		t.Fatal("expected failure envelope")
	}
	if res.Error != "internal pipeline error" {
		t.Errorf("unexpected errors must be suppressed, got %q", res.Error)
	}
	if strings.Contains(res.Error, "internal detail") {
		t.Error("internal detail leaked to caller")
	}
	if res.Input != "" {
		t.Error("opaque envelope should not echo input")
	}
}

func TestProcess_PanicConvertedToFailure(t *testing.T) {
	inf := &mockInferencer{result: &domain.InferenceResult{Content: "ok"}}
	p := newTestPipeline(t, DefaultConfig(), WithInferencer(inf))

	p.AddPreHook(PreHookFunc(func(_ context.Context, _ *domain.Request) (*domain.Request, error) {
		panic("hook went sideways")
	}))

	res := p.Process(context.Background(), "input", nil)

	if !res.Failed() {
		t.Fatal("expected failure envelope")
	}
	if res.Error != "internal pipeline error" {
		t.Errorf("panic must map to the opaque envelope, got %q", res.Error)
	}
}

func TestProcess_ValidationRejectsBlankInput(t *testing.T) {
	inf := &mockInferencer{result: &domain.InferenceResult{Content: "ok"}}
	p := newTestPipeline(t, DefaultConfig(),
		WithInferencer(inf),
		WithValidator(validate.New(discardLogger())),
	)

	res := p.Process(context.Background(), "   ", nil)

	if !res.Failed() {
		t.Fatal("expected failure envelope")
	}
	if !strings.Contains(res.Error, "input_text cannot be empty") {
		t.Errorf("error = %q", res.Error)
	}
	if len(inf.prompts) != 0 {
		t.Error("inference must not run on rejected input")
	}
}

func TestProcess_MetricsOnSuccessAndFailure(t *testing.T) {
	collector := &mockCollector{}
	inf := &mockInferencer{result: &domain.InferenceResult{Content: "ok"}}
	p := newTestPipeline(t, DefaultConfig(), WithInferencer(inf), WithMetrics(collector))

	p.Process(context.Background(), "input", nil)

	if got := collector.requests.Load(); got != 1 {
		t.Errorf("requests = %d", got)
	}
	if got := collector.successes.Load(); got != 1 {
		t.Errorf("successes = %d", got)
	}
	if got := collector.pipelineTimed.Load(); got != 1 {
		t.Errorf("pipeline latency observations = %d", got)
	}

	inf.err = domain.Errorf(domain.KindProtocol, "inference failed")
	p.Process(context.Background(), "input", nil)

	if got := collector.requests.Load(); got != 2 {
		t.Errorf("requests = %d", got)
	}
	if got := collector.failures.Load(); got != 1 {
		t.Errorf("failures = %d", got)
	}
	if got := collector.successes.Load(); got != 1 {
		t.Errorf("successes after failure = %d", got)
	}
}

func TestProcess_TemplateOverride(t *testing.T) {
	store := &stubTemplates{tmpl: "T: {user_input}"}
	inf := &mockInferencer{result: &domain.InferenceResult{Content: "ok"}}
	p := newTestPipeline(t, DefaultConfig(), WithInferencer(inf), WithTemplates(store))

	p.Process(context.Background(), "input", nil, WithTemplate("custom.txt"))

	if store.name != "custom.txt" {
		t.Errorf("template name = %q", store.name)
	}
	if inf.prompts[0] != "T: input" {
		t.Errorf("prompt = %q", inf.prompts[0])
	}
}

func TestProcess_ConcurrentCalls(t *testing.T) {
	collector := &mockCollector{}
	inf := &mockInferencer{result: &domain.InferenceResult{Content: "ok"}}
	p := newTestPipeline(t, DefaultConfig(), WithMetrics(collector))
	// Shared instance, per-call inferencer state would race; use a
	// stateless one here.
	p.inferencer = inferencerFunc(func(ctx context.Context, prompt string) (*domain.InferenceResult, error) {
		return inf.result, nil
	})

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			res := p.Process(context.Background(), "concurrent input", nil)
			if res.Failed() {
				t.Errorf("unexpected failure: %s", res.Error)
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	if got := collector.requests.Load(); got != 8 {
		t.Errorf("requests = %d", got)
	}
}

type inferencerFunc func(ctx context.Context, prompt string) (*domain.InferenceResult, error)

func (f inferencerFunc) Complete(ctx context.Context, prompt string) (*domain.InferenceResult, error) {
	return f(ctx, prompt)
}
