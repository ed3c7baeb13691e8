package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	err := Errorf(KindCompose, "missing required key %q", "input")
	if err.Error() != `missing required key "input"` {
		t.Errorf("message = %q", err.Error())
	}

	wrapped := WrapError(KindTransport, errors.New("connection refused"), "request failed")
	if wrapped.Error() != "request failed: connection refused" {
		t.Errorf("wrapped message = %q", wrapped.Error())
	}
	if !errors.Is(wrapped, wrapped.Err) {
		t.Error("wrapped error should unwrap to the cause")
	}
}

func TestKindOf(t *testing.T) {
	err := Errorf(KindValidation, "bad input")
	if kind, ok := KindOf(err); !ok || kind != KindValidation {
		t.Errorf("KindOf = %v, %v", kind, ok)
	}

	// Classification survives wrapping.
	outer := fmt.Errorf("stage failed: %w", err)
	if kind, ok := KindOf(outer); !ok || kind != KindValidation {
		t.Errorf("KindOf through wrap = %v, %v", kind, ok)
	}

	if _, ok := KindOf(errors.New("plain")); ok {
		t.Error("plain errors must not classify")
	}
}

func TestFailureEnvelopes(t *testing.T) {
	f := Failure("it broke", "original input", "ctx")
	if !f.Failed() {
		t.Error("failure envelope should report Failed")
	}
	if f.Error != "it broke" || f.Input != "original input" || f.Context != "ctx" {
		t.Errorf("envelope = %+v", f)
	}
	if f.FinalOutput != "" || !f.Timestamp.IsZero() {
		t.Error("failure envelope must not carry success fields")
	}

	opaque := InternalFailure()
	if opaque.Error != "internal pipeline error" || opaque.Input != "" {
		t.Errorf("internal failure = %+v", opaque)
	}

	ok := &Result{FinalOutput: "done"}
	if ok.Failed() {
		t.Error("success envelope should not report Failed")
	}
}
