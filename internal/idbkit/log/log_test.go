package log

import (
	"log/slog"
	"testing"
)

func TestRecoverPanicRunsCleanup(t *testing.T) {
	cleaned := false
	func() {
		defer RecoverPanic("test", func() { cleaned = true })
		panic("boom")
	}()
	if !cleaned {
		t.Error("cleanup did not run after panic")
	}
}

func TestRecoverPanicNoPanic(t *testing.T) {
	cleaned := false
	func() {
		defer RecoverPanic("test", func() { cleaned = true })
	}()
	if cleaned {
		t.Error("cleanup ran without a panic")
	}
}

func TestSetupDebug(t *testing.T) {
	t.Setenv("IDBKIT_LOG_TO_FILE", "")
	Setup(true)
	if !Initialized() {
		t.Fatal("Setup did not initialize")
	}
	if !slog.Default().Enabled(t.Context(), slog.LevelDebug) {
		t.Error("debug level not enabled after Setup(true)")
	}
}
