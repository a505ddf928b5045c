package jobs

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestTracker() *Tracker {
	return NewTracker(uuid.New(), "talk.mp3", "whisper", "en")
}

func TestTrackerForwardPath(t *testing.T) {
	tr := newTestTracker()
	if tr.State() != StateQueued {
		t.Fatalf("new tracker in state %s", tr.State())
	}
	for _, next := range []State{StateExtracting, StateSegmenting, StateTranscribing, StateAggregating} {
		if err := tr.Transition(next); err != nil {
			t.Fatalf("transition to %s failed: %v", next, err)
		}
		if tr.State() != next {
			t.Fatalf("state = %s, want %s", tr.State(), next)
		}
	}
	if err := tr.Finish("the transcript"); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	snap := tr.Snapshot()
	if snap.State != StateFinished {
		t.Errorf("state = %s", snap.State)
	}
	if snap.FinalTranscript != "the transcript" {
		t.Errorf("transcript = %q", snap.FinalTranscript)
	}
	if snap.ErrorMessage != "" {
		t.Errorf("finished job carries error message %q", snap.ErrorMessage)
	}
	if snap.FinishedAt.IsZero() {
		t.Error("FinishedAt not set")
	}
}

func TestTrackerRejectsBackwardTransition(t *testing.T) {
	tr := newTestTracker()
	if err := tr.Transition(StateSegmenting); err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	err := tr.Transition(StateExtracting)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("backward transition returned %v", err)
	}
	err = tr.Transition(StateSegmenting)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("repeated transition returned %v", err)
	}
}

func TestTrackerTerminalStatesAreFinal(t *testing.T) {
	tr := newTestTracker()
	if err := tr.Fail("decode failed"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}

	if err := tr.Transition(StateExtracting); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("transition out of Error returned %v", err)
	}
	if err := tr.Finish("late transcript"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Finish after Error returned %v", err)
	}

	snap := tr.Snapshot()
	if snap.ErrorMessage != "decode failed" {
		t.Errorf("error message = %q", snap.ErrorMessage)
	}
	if snap.FinalTranscript != "" {
		t.Errorf("failed job carries transcript %q", snap.FinalTranscript)
	}
}

func TestTrackerProgressLog(t *testing.T) {
	tr := newTestTracker()
	tr.SetChunkCount(3)
	tr.ChunkStarted(0, 3, 1)
	tr.ChunkRetrying(0, 3, 1, 4, 2*time.Second, errors.New("rate limited"))
	tr.ChunkStarted(0, 3, 2)
	tr.ChunkSucceeded(0, 3)
	tr.ChunkFailed(2, 3, 1, errors.New("bad key"))

	snap := tr.Snapshot()
	var lines []string
	for _, entry := range snap.Progress {
		if entry.Time.IsZero() {
			t.Error("progress entry missing timestamp")
		}
		lines = append(lines, entry.Message)
	}
	joined := strings.Join(lines, "\n")
	for _, want := range []string{
		"segmented into 3 chunks",
		"chunk 1/3 transcribing",
		"chunk 1/3 retrying in 2s after error (attempt 1/4): rate limited",
		"chunk 1/3 transcribing (attempt 2)",
		"chunk 1/3 done",
		"chunk 3/3 failed: bad key",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("progress log missing %q:\n%s", want, joined)
		}
	}

	if snap.Chunks[0].Status != ChunkSucceeded {
		t.Errorf("chunk 0 status = %s", snap.Chunks[0].Status)
	}
	if snap.Chunks[0].Attempts != 2 {
		t.Errorf("chunk 0 attempts = %d, want 2", snap.Chunks[0].Attempts)
	}
	if snap.Chunks[1].Status != ChunkPending {
		t.Errorf("chunk 1 status = %s", snap.Chunks[1].Status)
	}
	if snap.Chunks[2].Status != ChunkFailedFatal {
		t.Errorf("chunk 2 status = %s", snap.Chunks[2].Status)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	tr := newTestTracker()
	snap := tr.Snapshot()
	before := len(snap.Progress)
	tr.Append("more work")
	if len(snap.Progress) != before {
		t.Error("snapshot shares the live progress slice")
	}
}

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()
	tr := newTestTracker()
	reg.Add(tr)

	got, err := reg.Get(tr.ID())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != tr {
		t.Error("Get returned a different tracker")
	}

	if _, err := reg.Get(uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown ID returned %v", err)
	}
}

func TestRegistryActiveCount(t *testing.T) {
	reg := NewRegistry()
	running := newTestTracker()
	done := newTestTracker()
	if err := done.Finish("done"); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	reg.Add(running)
	reg.Add(done)

	if got := reg.ActiveCount(); got != 1 {
		t.Errorf("ActiveCount = %d, want 1", got)
	}
}

func TestRegistrySweep(t *testing.T) {
	reg := NewRegistry()
	old := newTestTracker()
	if err := old.Finish("done"); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	fresh := newTestTracker()
	running := newTestTracker()
	reg.Add(old)
	reg.Add(fresh)
	reg.Add(running)

	// Pretend an hour passed since old finished.
	reg.now = func() time.Time { return time.Now().Add(time.Hour) }

	removed := reg.Sweep(30 * time.Minute)
	if removed != 1 {
		t.Fatalf("Sweep removed %d, want 1", removed)
	}
	if _, err := reg.Get(old.ID()); !errors.Is(err, ErrNotFound) {
		t.Error("old terminal job survived the sweep")
	}
	if _, err := reg.Get(running.ID()); err != nil {
		t.Error("running job was evicted")
	}
}
