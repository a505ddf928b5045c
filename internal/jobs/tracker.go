package jobs

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Tracker owns one job's mutable state. All mutation happens behind its
// mutex; readers get copies via Snapshot. It implements the dispatcher's
// Sink so chunk status changes land in the progress log directly.
type Tracker struct {
	mu sync.Mutex

	id         uuid.UUID
	filename   string
	provider   string
	language   string
	state      State
	progress   []LogEntry
	chunks     []ChunkState
	transcript string
	errMessage string
	createdAt  time.Time
	finishedAt time.Time

	now func() time.Time
}

// NewTracker starts a job in the Queued state.
func NewTracker(id uuid.UUID, filename, providerName, language string) *Tracker {
	t := &Tracker{
		id:       id,
		filename: filename,
		provider: providerName,
		language: language,
		state:    StateQueued,
		now:      time.Now,
	}
	t.createdAt = t.now()
	t.appendLocked("job queued")
	return t
}

// Transition advances the job to a later stage. Moving backwards, repeating
// a stage, or leaving a terminal state is rejected.
func (t *Tracker) Transition(to State) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	toRank, ok := stateRank[to]
	if !ok {
		return fmt.Errorf("unknown state %q", to)
	}
	if t.state.IsTerminal() || toRank <= stateRank[t.state] {
		return invalidTransition(t.state, to)
	}
	t.state = to
	if to.IsTerminal() {
		t.finishedAt = t.now()
	}
	t.appendLocked(string(to))
	return nil
}

// Append adds a free-form progress line.
func (t *Tracker) Append(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.appendLocked(message)
}

func (t *Tracker) appendLocked(message string) {
	t.progress = append(t.progress, LogEntry{Time: t.now(), Message: message})
}

// SetChunkCount sizes the per-chunk status table at the start of the
// transcribing stage.
func (t *Tracker) SetChunkCount(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chunks = make([]ChunkState, n)
	for i := range t.chunks {
		t.chunks[i] = ChunkState{Status: ChunkPending}
	}
	t.appendLocked(fmt.Sprintf("segmented into %d chunks", n))
}

// Finish moves the job to Finished and records the transcript. The
// transcript is only ever set here.
func (t *Tracker) Finish(transcript string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.IsTerminal() {
		return invalidTransition(t.state, StateFinished)
	}
	t.state = StateFinished
	t.transcript = transcript
	t.finishedAt = t.now()
	t.appendLocked("finished")
	return nil
}

// Fail moves the job to Error with a human-readable message. The message is
// only ever set here.
func (t *Tracker) Fail(message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.IsTerminal() {
		return invalidTransition(t.state, StateError)
	}
	t.state = StateError
	t.errMessage = message
	t.finishedAt = t.now()
	t.appendLocked("error: " + message)
	return nil
}

// Snapshot returns a copy of everything a caller may observe. The progress
// log and chunk table are copied so the caller can hold them across further
// mutation.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		ID:              t.id,
		Filename:        t.filename,
		Provider:        t.provider,
		Language:        t.language,
		State:           t.state,
		Progress:        append([]LogEntry(nil), t.progress...),
		Chunks:          append([]ChunkState(nil), t.chunks...),
		FinalTranscript: t.transcript,
		ErrorMessage:    t.errMessage,
		CreatedAt:       t.createdAt,
		FinishedAt:      t.finishedAt,
	}
}

// State returns the current lifecycle stage.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// ID returns the job identifier.
func (t *Tracker) ID() uuid.UUID {
	return t.id
}

// setChunkLocked ignores out-of-range indexes; the dispatcher only reports
// indexes it was handed.
func (t *Tracker) setChunkLocked(index int, status ChunkStatus, attempt int) {
	if index < 0 || index >= len(t.chunks) {
		return
	}
	t.chunks[index].Status = status
	if attempt > t.chunks[index].Attempts {
		t.chunks[index].Attempts = attempt
	}
}

// ChunkStarted implements the dispatch sink.
func (t *Tracker) ChunkStarted(index, total, attempt int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setChunkLocked(index, ChunkInFlight, attempt)
	if attempt == 1 {
		t.appendLocked(fmt.Sprintf("chunk %d/%d transcribing", index+1, total))
	} else {
		t.appendLocked(fmt.Sprintf("chunk %d/%d transcribing (attempt %d)", index+1, total, attempt))
	}
}

// ChunkRetrying implements the dispatch sink.
func (t *Tracker) ChunkRetrying(index, total, attempt, budget int, wait time.Duration, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setChunkLocked(index, ChunkFailedRetryable, attempt)
	t.appendLocked(fmt.Sprintf("chunk %d/%d retrying in %s after error (attempt %d/%d): %v",
		index+1, total, wait.Round(time.Millisecond), attempt, budget, err))
}

// ChunkFailed implements the dispatch sink.
func (t *Tracker) ChunkFailed(index, total, attempt int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setChunkLocked(index, ChunkFailedFatal, attempt)
	t.appendLocked(fmt.Sprintf("chunk %d/%d failed: %v", index+1, total, err))
}

// ChunkSucceeded implements the dispatch sink.
func (t *Tracker) ChunkSucceeded(index, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setChunkLocked(index, ChunkSucceeded, 0)
	t.appendLocked(fmt.Sprintf("chunk %d/%d done", index+1, total))
}
