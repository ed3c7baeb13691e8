package pipeline

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/promptops/llmpipe/internal/core/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPipeline(t *testing.T, cfg Config, opts ...Option) *Pipeline {
	t.Helper()
	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	return New(cfg, opts...)
}

func TestPreprocess_DefaultNormalization(t *testing.T) {
	p := newTestPipeline(t, DefaultConfig())

	pre := p.Preprocess("  Hello World  ", "ctx")
	if pre.Input != "hello world" {
		t.Errorf("expected %q, got %q", "hello world", pre.Input)
	}
	if pre.Context != "ctx" {
		t.Errorf("context should pass through unchanged, got %v", pre.Context)
	}
}

func TestPreprocess_FlagCombinations(t *testing.T) {
	const input = "  Hello World  "

	tests := []struct {
		name      string
		strip     bool
		lowercase bool
		want      string
	}{
		{"both", true, true, "hello world"},
		{"strip only", true, false, "Hello World"},
		{"lowercase only", false, true, "  hello world  "},
		{"neither", false, false, "  Hello World  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(t, Config{StripInput: tt.strip, LowercaseInput: tt.lowercase})
			if got := p.Preprocess(input, nil).Input; got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestComposePrompt_Substitution(t *testing.T) {
	dir := t.TempDir()
	tmpl := "Question: {user_input}\nBackground: {context}\nAnswer:"
	if err := os.WriteFile(filepath.Join(dir, "qa.txt"), []byte(tmpl), 0o644); err != nil {
		t.Fatal(err)
	}

	p := newTestPipeline(t, Config{TemplateDir: dir})
	prompt, err := p.ComposePrompt(&domain.Preprocessed{Input: "why is the sky blue", Context: "physics"}, "qa.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "Question: why is the sky blue\nBackground: physics\nAnswer:"
	if prompt != want {
		t.Errorf("got %q, want %q", prompt, want)
	}
}

func TestComposePrompt_DefaultTemplateName(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "default.txt"), []byte("D: {user_input}"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := newTestPipeline(t, Config{TemplateDir: dir, DefaultTemplate: "default.txt"})
	prompt, err := p.ComposePrompt(&domain.Preprocessed{Input: "hi", Context: nil}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prompt != "D: hi" {
		t.Errorf("got %q", prompt)
	}
}

func TestComposePrompt_FallbackOnMissingTemplate(t *testing.T) {
	p := newTestPipeline(t, Config{TemplateDir: t.TempDir()})

	prompt, err := p.ComposePrompt(&domain.Preprocessed{Input: "hello", Context: "greeting"}, "missing.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(prompt, "User: hello") || !strings.Contains(prompt, "Context: greeting") {
		t.Errorf("fallback template not applied: %q", prompt)
	}
}

func TestComposePrompt_MissingPreprocessedData(t *testing.T) {
	p := newTestPipeline(t, DefaultConfig())

	_, err := p.ComposePrompt(nil, "")
	if err == nil {
		t.Fatal("expected error")
	}
	if kind, ok := domain.KindOf(err); !ok || kind != domain.KindCompose {
		t.Errorf("expected compose error, got %v", err)
	}
}

func TestPostprocessOutput_Uppercase(t *testing.T) {
	inf := &domain.InferenceResult{Content: "Hello there"}

	p := newTestPipeline(t, Config{UppercaseOutput: true})
	res, err := p.PostprocessOutput(inf, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.FinalOutput != "HELLO THERE" {
		t.Errorf("got %q", res.FinalOutput)
	}

	p = newTestPipeline(t, Config{})
	res, err = p.PostprocessOutput(inf, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.FinalOutput != "Hello there" {
		t.Errorf("content should be unchanged, got %q", res.FinalOutput)
	}
}

func TestPostprocessOutput_Envelope(t *testing.T) {
	usage := &domain.Usage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7}
	p := newTestPipeline(t, Config{})

	res, err := p.PostprocessOutput(&domain.InferenceResult{Content: "ok", Usage: usage}, "my context")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ContextUsed != "my context" {
		t.Errorf("context_used = %v", res.ContextUsed)
	}
	if res.Timestamp.IsZero() {
		t.Error("timestamp not stamped")
	}
	if res.TokenUsage != usage {
		t.Error("token usage not packaged")
	}
	if res.Failed() {
		t.Error("success envelope must not be failure-shaped")
	}
}

func TestPostprocessOutput_NilUsageStaysNil(t *testing.T) {
	p := newTestPipeline(t, Config{})

	res, err := p.PostprocessOutput(&domain.InferenceResult{Content: "ok"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TokenUsage != nil {
		t.Errorf("expected nil token usage, got %+v", res.TokenUsage)
	}
}

func TestPostprocessOutput_MissingResult(t *testing.T) {
	p := newTestPipeline(t, Config{})

	_, err := p.PostprocessOutput(nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if kind, ok := domain.KindOf(err); !ok || kind != domain.KindOutput {
		t.Errorf("expected output error, got %v", err)
	}
}
