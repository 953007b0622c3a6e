package handlers

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/locks"
	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/progress"
)

func TestHealthHandler_GetLivez(t *testing.T) {
	handler := NewHealthHandler("1.0.0")

	output, err := handler.GetLivez(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Body.Status != "ok" {
		t.Errorf("expected status 'ok', got '%s'", output.Body.Status)
	}
}

func TestHealthHandler_GetReadyz(t *testing.T) {
	t.Run("returns not_ready when db not configured", func(t *testing.T) {
		handler := NewHealthHandler("1.0.0")

		output, err := handler.GetReadyz(context.Background(), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if output.Body.Status != "not_ready" {
			t.Errorf("expected status 'not_ready' when db not configured, got '%s'", output.Body.Status)
		}
		if output.Body.Components["database"] != "not_configured" {
			t.Errorf("expected database component to be 'not_configured', got '%s'", output.Body.Components["database"])
		}
	})
}

func TestHealthHandler_GetHealth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := locks.NewRegistry(logger, time.Minute, time.Minute, time.Millisecond)
	store := progress.NewStore(logger, time.Hour)

	registry.Acquire("vid1", "test", nil)
	store.Set("vid1", 50, progress.StatusDownloading, "downloading")

	handler := NewHealthHandler("1.0.0").
		WithLockRegistry(registry).
		WithProgressStore(store)

	output, err := handler.GetHealth(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if output.Body.Version != "1.0.0" {
		t.Errorf("expected version '1.0.0', got '%s'", output.Body.Version)
	}
	if output.Body.Downloads.HeldLocks != 1 {
		t.Errorf("expected 1 held lock, got %d", output.Body.Downloads.HeldLocks)
	}
	if output.Body.Downloads.TrackedProgress != 1 {
		t.Errorf("expected 1 tracked progress entry, got %d", output.Body.Downloads.TrackedProgress)
	}
	if output.Body.CPUInfo.Cores < 1 {
		t.Errorf("expected at least one CPU core, got %d", output.Body.CPUInfo.Cores)
	}
	if output.Body.Checks["database"] != "unknown" {
		t.Errorf("expected database check 'unknown' without a db, got '%s'", output.Body.Checks["database"])
	}
}
