// Package jobs tracks transcription jobs through their lifecycle and keeps
// the in-memory registry callers poll for progress.
package jobs

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is a job's lifecycle stage. Transitions move strictly forward;
// a job never revisits an earlier stage.
type State string

const (
	StateQueued       State = "queued"
	StateExtracting   State = "extracting"
	StateSegmenting   State = "segmenting"
	StateTranscribing State = "transcribing"
	StateAggregating  State = "aggregating"
	StateFinished     State = "finished"
	StateError        State = "error"
)

// stateRank orders the forward path. Terminal states share the top rank so
// Finished and Error are mutually unreachable.
var stateRank = map[State]int{
	StateQueued:       0,
	StateExtracting:   1,
	StateSegmenting:   2,
	StateTranscribing: 3,
	StateAggregating:  4,
	StateFinished:     5,
	StateError:        5,
}

// IsTerminal reports whether the state ends the lifecycle.
func (s State) IsTerminal() bool {
	return s == StateFinished || s == StateError
}

// ChunkStatus is the per-chunk progress within the transcribing stage.
type ChunkStatus string

const (
	ChunkPending         ChunkStatus = "pending"
	ChunkInFlight        ChunkStatus = "in_flight"
	ChunkSucceeded       ChunkStatus = "succeeded"
	ChunkFailedRetryable ChunkStatus = "failed_retryable"
	ChunkFailedFatal     ChunkStatus = "failed_fatal"
)

// ChunkState pairs a chunk's status with how many attempts it has consumed.
// Attempts never exceed the provider's retry ceiling.
type ChunkState struct {
	Status   ChunkStatus
	Attempts int
}

// LogEntry is one timestamped progress line.
type LogEntry struct {
	Time    time.Time
	Message string
}

// Snapshot is a point-in-time copy of a job's externally visible state.
type Snapshot struct {
	ID              uuid.UUID
	Filename        string
	Provider        string
	Language        string
	State           State
	Progress        []LogEntry
	Chunks          []ChunkState
	FinalTranscript string
	ErrorMessage    string
	CreatedAt       time.Time
	FinishedAt      time.Time
}

// ErrNotFound marks a lookup for a job the registry does not hold.
var ErrNotFound = errors.New("job not found")

// ErrInvalidTransition marks an attempt to move a job backwards or out of a
// terminal state. It indicates a bug in the pipeline, not a runtime
// condition.
var ErrInvalidTransition = errors.New("invalid state transition")

func invalidTransition(from, to State) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
