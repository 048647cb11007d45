package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	t.Run("json at warn", func(t *testing.T) {
		var buf bytes.Buffer
		logger := SetupLogger(&buf, "warn", "json")

		logger.Info("dropped")
		slog.Warn("kept", "count", 3)

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 1 {
			t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
			t.Fatalf("not JSON: %v", err)
		}
		if rec["msg"] != "kept" || rec["count"] != float64(3) {
			t.Fatalf("unexpected record %v", rec)
		}
	})

	t.Run("text default", func(t *testing.T) {
		var buf bytes.Buffer
		SetupLogger(&buf, "", "text")
		slog.Info("hello")
		if !strings.Contains(buf.String(), "msg=hello") {
			t.Fatalf("unexpected output %q", buf.String())
		}
	})
}

func TestCleanupAfterRunsCleanup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stopped := false
	var got context.Context
	done := cleanupAfter(ctx, func() { stopped = true }, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Second,
		func(c context.Context) { got = c })

	select {
	case <-done:
		t.Fatal("cleanup must wait for cancellation")
	case <-time.After(20 * time.Millisecond):
	}

	cancel()
	WaitForShutdown(ctx, done)
	if !stopped || got == nil {
		t.Fatalf("stop called = %v, cleanup ran = %v", stopped, got != nil)
	}
	if _, ok := got.Deadline(); !ok {
		t.Fatal("cleanup context should carry the shutdown deadline")
	}
}

func TestCleanupAfterGivesUpAtTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	defer close(release)

	done := cleanupAfter(ctx, func() {}, slog.New(slog.NewTextHandler(io.Discard, nil)), 10*time.Millisecond,
		func(context.Context) { <-release })
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("shutdown did not give up after the timeout")
	}
}
