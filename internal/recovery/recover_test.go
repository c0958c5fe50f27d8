package recovery

import (
	"errors"
	"io"
	"log/slog"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecoverToValue(t *testing.T) {
	logger := discardLogger()

	t.Run("returns value", func(t *testing.T) {
		v, err := RecoverToValue(logger, "ok", func() (int, error) { return 42, nil })
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != 42 {
			t.Errorf("value = %d, want 42", v)
		}
	})

	t.Run("converts panic", func(t *testing.T) {
		v, err := RecoverToValue(logger, "boom", func() (int, error) { panic("bad fetch") })
		if !errors.Is(err, ErrPanic) {
			t.Fatalf("Expected ErrPanic, got %v", err)
		}
		if v != 0 {
			t.Errorf("value = %d, want zero", v)
		}
	})
}

func TestRecoverToError(t *testing.T) {
	sentinel := errors.New("sentinel")
	if err := RecoverToError(discardLogger(), "op", func() error { return sentinel }); !errors.Is(err, sentinel) {
		t.Fatalf("Expected sentinel error, got %v", err)
	}
	if err := RecoverToError(discardLogger(), "op", func() error { panic(sentinel) }); !errors.Is(err, ErrPanic) {
		t.Fatalf("Expected ErrPanic, got %v", err)
	}
}

func TestRecover(t *testing.T) {
	if !Recover(discardLogger(), "op", func() {}) {
		t.Error("Expected ok for normal return")
	}
	if Recover(discardLogger(), "op", func() { panic("x") }) {
		t.Error("Expected not ok after panic")
	}
	// nil logger falls back to slog.Default
	if Recover(nil, "op", func() { panic("x") }) {
		t.Error("Expected not ok after panic with nil logger")
	}
}
