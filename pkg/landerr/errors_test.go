package landerr

import (
	"errors"
	"testing"
)

func TestSessionErrorUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := NewSessionError("sess1", "enqueue", base)
	if !errors.Is(err, base) {
		t.Fatalf("expected errors.Is to find wrapped base error")
	}
	if err.Error() == "" {
		t.Fatalf("expected non-empty error string")
	}
}

func TestHandlerPanicUnwrapsToInvariantViolation(t *testing.T) {
	err := &HandlerPanic{LandID: "counter:x", TypeID: "Increment", Recovered: "boom"}
	if !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("expected HandlerPanic to unwrap to ErrInvariantViolation")
	}
}

func TestStructuredErrorCarriesCode(t *testing.T) {
	err := New(CodeResolverFailed, "fetchProduct failed", map[string]any{"resolver": "fetchProduct"})
	if err.Code != CodeResolverFailed {
		t.Fatalf("code = %s, want %s", err.Code, CodeResolverFailed)
	}
	if err.Error() == "" {
		t.Fatalf("expected non-empty error string")
	}
}
