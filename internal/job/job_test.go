package job

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	j := New()

	if j.ID == "" {
		t.Error("expected job ID to be set")
	}
	if !strings.HasPrefix(j.ID, "job-") {
		t.Errorf("expected job- prefix, got %q", j.ID)
	}
	if j.Status != StatusProcessing {
		t.Errorf("expected status %s, got %s", StatusProcessing, j.Status)
	}
	if j.Stage != "queued" {
		t.Errorf("expected stage queued, got %q", j.Stage)
	}
	if j.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestNew_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		j := New()
		if seen[j.ID] {
			t.Fatalf("duplicate job ID: %s", j.ID)
		}
		seen[j.ID] = true
	}
}

func TestJob_MarkDone(t *testing.T) {
	j := New()

	if err := j.MarkDone("/tmp/out.mp4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.Status != StatusDone {
		t.Errorf("expected done, got %s", j.Status)
	}
	if j.Stage != "done" {
		t.Errorf("expected stage done, got %q", j.Stage)
	}
	if j.OutputPath != "/tmp/out.mp4" {
		t.Errorf("expected output path set, got %q", j.OutputPath)
	}
	if j.Error != "" {
		t.Errorf("done job must not carry an error, got %q", j.Error)
	}
}

func TestJob_MarkError(t *testing.T) {
	j := New()

	if err := j.MarkError("assemble: clip 003 seg_2_ar: fetch: request failed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.Status != StatusError {
		t.Errorf("expected error status, got %s", j.Status)
	}
	if j.Error != "assemble: clip 003 seg_2_ar: fetch: request failed" {
		t.Errorf("error message not captured verbatim: %q", j.Error)
	}
	if j.OutputPath != "" {
		t.Errorf("failed job must not carry an output path, got %q", j.OutputPath)
	}
}

func TestJob_TerminalTransitionsRejected(t *testing.T) {
	done := New()
	_ = done.MarkDone("/tmp/out.mp4")
	if err := done.MarkError("too late"); err != ErrAlreadyTerminal {
		t.Errorf("expected ErrAlreadyTerminal, got %v", err)
	}
	if err := done.MarkDone("/tmp/other.mp4"); err != ErrAlreadyTerminal {
		t.Errorf("expected ErrAlreadyTerminal, got %v", err)
	}
	if done.OutputPath != "/tmp/out.mp4" {
		t.Errorf("terminal job mutated: %q", done.OutputPath)
	}

	failed := New()
	_ = failed.MarkError("broken")
	if err := failed.MarkDone("/tmp/out.mp4"); err != ErrAlreadyTerminal {
		t.Errorf("expected ErrAlreadyTerminal, got %v", err)
	}
	if failed.Error != "broken" {
		t.Errorf("terminal job mutated: %q", failed.Error)
	}
}

func TestJob_SetStage(t *testing.T) {
	j := New()

	j.SetStage("tts_intro")
	if got := j.GetStage(); got != "tts_intro" {
		t.Errorf("expected tts_intro, got %q", got)
	}

	// Terminal jobs keep their final stage.
	_ = j.MarkDone("/tmp/out.mp4")
	j.SetStage("render_mp4")
	if got := j.GetStage(); got != "done" {
		t.Errorf("expected stage done after terminal, got %q", got)
	}
}

func TestJob_IsTerminal(t *testing.T) {
	j := New()
	if j.IsTerminal() {
		t.Error("processing job should not be terminal")
	}
	_ = j.MarkDone("/tmp/out.mp4")
	if !j.IsTerminal() {
		t.Error("done job should be terminal")
	}
}

func TestJob_Age(t *testing.T) {
	j := New()
	j.CreatedAt = time.Now().Add(-time.Hour)
	if age := j.Age(); age < 59*time.Minute {
		t.Errorf("expected age around 1h, got %s", age)
	}
}

func TestJob_Clone(t *testing.T) {
	j := New()
	j.BackgroundPaths = []string{"/tmp/bg_00.jpg", "/tmp/bg_01.jpg"}
	j.CTAPath = "/tmp/cta.png"

	c := j.Clone()
	if c.ID != j.ID || c.Status != j.Status || c.CTAPath != j.CTAPath {
		t.Error("clone fields differ")
	}

	// Mutating the clone's slice must not affect the original.
	c.BackgroundPaths[0] = "/tmp/changed.jpg"
	if j.BackgroundPaths[0] != "/tmp/bg_00.jpg" {
		t.Error("clone shares backing array with original")
	}
}

func TestJob_ConcurrentAccess(t *testing.T) {
	j := New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			j.SetStage("concat")
		}()
		go func() {
			defer wg.Done()
			_ = j.GetStatus()
			_ = j.Clone()
		}()
	}
	wg.Wait()
}
