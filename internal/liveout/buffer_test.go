package liveout

import (
	"strings"
	"testing"
)

func TestAppendAndGet(t *testing.T) {
	b := NewBuffer()
	b.BeginRun("a1", StatusPreparing)
	b.Append("a1", "hello ")
	b.Append("a1", "world")

	rec := b.Get("a1")
	if rec == nil {
		t.Fatal("expected record for a1")
	}
	if rec.Output != "hello world" {
		t.Errorf("Output = %q, want %q", rec.Output, "hello world")
	}
	if rec.Status != StatusPreparing {
		t.Errorf("Status = %s, want %s", rec.Status, StatusPreparing)
	}
}

func TestGetUnknownAgent(t *testing.T) {
	b := NewBuffer()
	if rec := b.Get("nope"); rec != nil {
		t.Errorf("Get(unknown) = %+v, want nil", rec)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	b := NewBuffer()
	b.Append("a1", "original")

	rec := b.Get("a1")
	rec.Output = "mutated"

	if got := b.Get("a1").Output; got != "original" {
		t.Errorf("internal record mutated through Get copy: %q", got)
	}
}

func TestAppendCapsAtMaxBytes(t *testing.T) {
	b := NewBuffer()
	b.BeginRun("a1", StatusRunning)

	// Write well past the cap in chunks and track the full concatenation.
	var full strings.Builder
	chunk := strings.Repeat("x", 1000) + "\n"
	for i := 0; i < 2*MaxBytes/len(chunk)+1; i++ {
		b.Append("a1", chunk)
		full.WriteString(chunk)
	}

	rec := b.Get("a1")
	if len(rec.Output) > MaxBytes {
		t.Errorf("Output length = %d, exceeds cap %d", len(rec.Output), MaxBytes)
	}
	if !strings.HasPrefix(rec.Output, "[...output truncated...]") {
		t.Error("truncated output should start with the truncation marker")
	}

	// The newest content must be preserved: the buffer's suffix equals the
	// suffix of the full concatenation.
	suffix := rec.Output[len("[...output truncated...]\n"):]
	if !strings.HasSuffix(full.String(), suffix) {
		t.Error("buffer tail does not match the tail of the full output")
	}
	if len(suffix) == 0 {
		t.Error("truncation kept no recent content")
	}
}

func TestBeginRunKeepsHistoryWithSeparator(t *testing.T) {
	b := NewBuffer()
	b.BeginRun("a1", StatusRunning)
	b.Append("a1", "first run output")
	b.SetStatus("a1", StatusCompleted)

	b.BeginRun("a1", StatusPreparing)
	b.Append("a1", "second run output")

	rec := b.Get("a1")
	if !strings.Contains(rec.Output, "first run output") {
		t.Error("prior run output should be retained")
	}
	if !strings.Contains(rec.Output, "new run") {
		t.Error("expected a run separator between executions")
	}
	if !strings.Contains(rec.Output, "second run output") {
		t.Error("current run output missing")
	}
	if rec.Error != "" {
		t.Errorf("Error should be cleared on new run, got %q", rec.Error)
	}
}

func TestSetErrorPreservesTimeoutStatus(t *testing.T) {
	b := NewBuffer()
	b.BeginRun("a1", StatusRunning)
	b.SetStatus("a1", StatusTimeout)
	b.SetError("a1", "execution timed out")

	rec := b.Get("a1")
	if rec.Status != StatusTimeout {
		t.Errorf("Status = %s, want %s (timeout is distinct from generic error)", rec.Status, StatusTimeout)
	}
	if rec.Error != "execution timed out" {
		t.Errorf("Error = %q", rec.Error)
	}
}
