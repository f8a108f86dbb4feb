package system

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestExecRunner_Run(t *testing.T) {
	r := NewExecRunner(5 * time.Second)

	out, err := r.Run(context.Background(), "sh", "-c", "echo hello; echo noise >&2")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.TrimSpace(out) != "hello" {
		t.Errorf("got %q, want stdout only", out)
	}
}

func TestExecRunner_RunError(t *testing.T) {
	r := NewExecRunner(5 * time.Second)

	_, err := r.Run(context.Background(), "sh", "-c", "echo boom >&2; exit 3")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected stderr in error, got %v", err)
	}
}

func TestExecRunner_Timeout(t *testing.T) {
	r := NewExecRunner(50 * time.Millisecond)

	_, err := r.Run(context.Background(), "sleep", "5")
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Errorf("expected timeout error, got %v", err)
	}
}

func TestExecRunner_Background(t *testing.T) {
	r := NewExecRunner(0)
	if err := r.Background("true"); err != nil {
		t.Fatalf("Background: %v", err)
	}
	if err := r.Background("/nonexistent/binary"); err == nil {
		t.Error("expected error for missing binary")
	}
}
