package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"scribed/internal/config"
	"scribed/internal/history"
	"scribed/internal/jobs"
	"scribed/internal/logging"
	"scribed/internal/media"
	"scribed/internal/provider"
	"scribed/internal/segment"
	"scribed/internal/testsupport"
)

const testRate = 8000

// scriptedTranscriber keys outcomes by chunk payload size, which is unique
// when chunk durations differ. Entries are consumed front to back; a nil
// error yields the entry's text.
type scriptedTranscriber struct {
	mu      sync.Mutex
	scripts map[int][]scriptStep
	calls   int
	block   chan struct{} // when set, Transcribe waits on it
}

type scriptStep struct {
	text string
	err  error
}

func (f *scriptedTranscriber) Name() string { return "scripted" }

func (f *scriptedTranscriber) Transcribe(ctx context.Context, req provider.Request) (string, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	script := f.scripts[len(req.Audio)]
	if len(script) == 0 {
		return "", fmt.Errorf("no script for payload of %d bytes", len(req.Audio))
	}
	step := script[0]
	f.scripts[len(req.Audio)] = script[1:]
	return step.text, step.err
}

// testEngine wires an engine around a fake transcriber and an injected
// normalizer that skips ffmpeg entirely.
func testEngine(t *testing.T, cfg *config.Config, store *history.Store, audio *media.Audio, fake provider.Transcriber) *Engine {
	t.Helper()
	e := New(cfg, store, logging.NewNop())
	e.normalize = func(ctx context.Context, path string) (*media.Audio, error) {
		return audio, nil
	}
	e.newTranscriber = func(choice provider.Choice, pcfg config.Provider) (provider.Transcriber, error) {
		return fake, nil
	}
	t.Cleanup(e.Stop)
	return e
}

func testConfigWithChunks(t *testing.T) *config.Config {
	cfg := testsupport.NewConfig(t)
	cfg.Segmenter.ChunkDurationSeconds = 2
	cfg.Segmenter.LookbackSeconds = 1
	cfg.Providers.Whisper.BackoffBaseMS = 1
	cfg.Providers.Whisper.BackoffCapMS = 2
	cfg.Providers.GPT4o.BackoffBaseMS = 1
	cfg.Providers.GPT4o.BackoffCapMS = 2
	return cfg
}

// writeUpload drops a placeholder media file for SubmitJob to stage. Its
// content is irrelevant because the normalizer is stubbed.
func writeUpload(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		t.Fatalf("writing upload: %v", err)
	}
	return path
}

// planPayloads computes the chunk payload sizes the engine will produce for
// the audio under the config's segmenter options.
func planPayloads(t *testing.T, cfg *config.Config, audio *media.Audio) []int {
	t.Helper()
	opts := segment.OptionsFromConfig(cfg.Segmenter)
	plan, err := segment.Plan(audio, opts)
	if err != nil {
		t.Fatalf("planning chunks: %v", err)
	}
	sizes := make([]int, len(plan))
	for i, chunk := range plan {
		sizes[i] = len(segment.Cut(audio, chunk, opts.BoundaryGuard))
	}
	return sizes
}

func waitTerminal(t *testing.T, e *Engine, id uuid.UUID) jobs.Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := e.GetProgress(id)
		if err != nil {
			t.Fatalf("GetProgress failed: %v", err)
		}
		if snap.State.IsTerminal() {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return jobs.Snapshot{}
}

// multiChunkAudio yields three chunks of distinct durations under a 2s
// ceiling: gaps at 1.5s and 3.2s cut a 5s stream into 1.8s + 1.7s + 1.5s.
func multiChunkAudio() *media.Audio {
	return testsupport.SyntheticAudio(5*time.Second, testRate,
		testsupport.Gap{Start: 1500 * time.Millisecond, Length: 600 * time.Millisecond},
		testsupport.Gap{Start: 3200 * time.Millisecond, Length: 600 * time.Millisecond},
	)
}

func TestSubmitJobHappyPath(t *testing.T) {
	cfg := testConfigWithChunks(t)
	audio := multiChunkAudio()
	sizes := planPayloads(t, cfg, audio)
	if len(sizes) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(sizes))
	}

	fake := &scriptedTranscriber{scripts: map[int][]scriptStep{}}
	for i, size := range sizes {
		fake.scripts[size] = []scriptStep{{text: fmt.Sprintf("part-%d", i)}}
	}
	store := testsupport.MustOpenHistory(t, cfg)
	e := testEngine(t, cfg, store, audio, fake)

	id, err := e.SubmitJob(context.Background(), Request{
		SourcePath: writeUpload(t, "talk.mp3"),
		Provider:   "whisper",
		Language:   "en",
	})
	if err != nil {
		t.Fatalf("SubmitJob failed: %v", err)
	}

	snap := waitTerminal(t, e, id)
	if snap.State != jobs.StateFinished {
		t.Fatalf("job ended in %s: %s", snap.State, snap.ErrorMessage)
	}
	if snap.FinalTranscript != "part-0 part-1 part-2" {
		t.Errorf("transcript = %q", snap.FinalTranscript)
	}
	if snap.ErrorMessage != "" {
		t.Errorf("finished job carries error %q", snap.ErrorMessage)
	}

	// Progress walked every stage in order.
	var stages []string
	for _, entry := range snap.Progress {
		stages = append(stages, entry.Message)
	}
	joined := strings.Join(stages, "\n")
	for _, want := range []string{"extracting", "segmenting", "transcribing", "aggregating", "finished"} {
		if !strings.Contains(joined, want) {
			t.Errorf("progress log missing %q:\n%s", want, joined)
		}
	}

	// The record landed in history and the staged upload is gone.
	rec, err := store.Get(context.Background(), id.String())
	if err != nil {
		t.Fatalf("history record missing: %v", err)
	}
	if rec.Transcript != snap.FinalTranscript || rec.Filename != "talk.mp3" {
		t.Errorf("history record = %+v", rec)
	}
	entries, err := os.ReadDir(cfg.Paths.StagingDir)
	if err != nil {
		t.Fatalf("reading staging dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("staging dir still holds %d files", len(entries))
	}
}

func TestTransientFailuresRecover(t *testing.T) {
	cfg := testConfigWithChunks(t)
	cfg.Providers.Whisper.BackoffBaseMS = 1
	cfg.Providers.Whisper.BackoffCapMS = 2
	audio := multiChunkAudio()
	sizes := planPayloads(t, cfg, audio)

	transient := &provider.Error{Provider: "whisper", Kind: provider.KindTransient, Status: 429, Err: errors.New("rate limited")}
	fake := &scriptedTranscriber{scripts: map[int][]scriptStep{
		sizes[0]: {{text: "part-0"}},
		sizes[1]: {{err: transient}, {err: transient}, {text: "part-1"}},
		sizes[2]: {{text: "part-2"}},
	}}
	e := testEngine(t, cfg, nil, audio, fake)

	id, err := e.SubmitJob(context.Background(), Request{SourcePath: writeUpload(t, "talk.mp3"), Provider: "whisper"})
	if err != nil {
		t.Fatalf("SubmitJob failed: %v", err)
	}

	snap := waitTerminal(t, e, id)
	if snap.State != jobs.StateFinished {
		t.Fatalf("job ended in %s: %s", snap.State, snap.ErrorMessage)
	}
	if snap.FinalTranscript != "part-0 part-1 part-2" {
		t.Errorf("transcript = %q", snap.FinalTranscript)
	}
	if got := strings.Count(progressText(snap), "chunk 2/3 retrying"); got != 2 {
		t.Errorf("progress log has %d retry entries for chunk 2, want 2:\n%s", got, progressText(snap))
	}
	if snap.Chunks[1].Attempts != 3 {
		t.Errorf("chunk 2 consumed %d attempts, want 3", snap.Chunks[1].Attempts)
	}
}

func TestFatalChunkFailsWholeJob(t *testing.T) {
	cfg := testConfigWithChunks(t)
	audio := multiChunkAudio()
	sizes := planPayloads(t, cfg, audio)

	fatal := &provider.Error{Provider: "whisper", Kind: provider.KindFatal, Status: 400, Err: errors.New("unsupported audio")}
	fake := &scriptedTranscriber{scripts: map[int][]scriptStep{
		sizes[0]: {{text: "part-0"}},
		sizes[1]: {{err: fatal}},
		sizes[2]: {{text: "part-2"}},
	}}
	store := testsupport.MustOpenHistory(t, cfg)
	e := testEngine(t, cfg, store, audio, fake)

	id, err := e.SubmitJob(context.Background(), Request{SourcePath: writeUpload(t, "talk.mp3"), Provider: "whisper"})
	if err != nil {
		t.Fatalf("SubmitJob failed: %v", err)
	}

	snap := waitTerminal(t, e, id)
	if snap.State != jobs.StateError {
		t.Fatalf("job ended in %s", snap.State)
	}
	// All-or-nothing: no partial transcript anywhere.
	if snap.FinalTranscript != "" {
		t.Errorf("failed job exposes transcript %q", snap.FinalTranscript)
	}
	if !strings.Contains(snap.ErrorMessage, "chunk 1") {
		t.Errorf("error message = %q", snap.ErrorMessage)
	}

	rec, err := store.Get(context.Background(), id.String())
	if err != nil {
		t.Fatalf("history record missing: %v", err)
	}
	if rec.Transcript != "" || rec.Error == "" {
		t.Errorf("history record = %+v", rec)
	}
}

func TestDecodeFailureFailsJob(t *testing.T) {
	cfg := testConfigWithChunks(t)
	fake := &scriptedTranscriber{scripts: map[int][]scriptStep{}}
	e := testEngine(t, cfg, nil, nil, fake)
	e.normalize = func(ctx context.Context, path string) (*media.Audio, error) {
		return nil, fmt.Errorf("%w: no audio stream", media.ErrDecode)
	}

	id, err := e.SubmitJob(context.Background(), Request{SourcePath: writeUpload(t, "broken.mp4")})
	if err != nil {
		t.Fatalf("SubmitJob failed: %v", err)
	}
	snap := waitTerminal(t, e, id)
	if snap.State != jobs.StateError {
		t.Fatalf("job ended in %s", snap.State)
	}
	if !strings.Contains(snap.ErrorMessage, "no audio stream") {
		t.Errorf("error message = %q", snap.ErrorMessage)
	}
	if fake.calls != 0 {
		t.Errorf("transcriber was called %d times for an undecodable file", fake.calls)
	}
}

// lockedBuffer serializes writes so the pipeline goroutine and the test can
// share one log sink.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPipelineLogsCarryJobContext(t *testing.T) {
	cfg := testConfigWithChunks(t)
	audio := multiChunkAudio()
	sizes := planPayloads(t, cfg, audio)

	fatal := &provider.Error{Provider: "whisper", Kind: provider.KindFatal, Status: 400, Err: errors.New("unsupported audio")}
	fake := &scriptedTranscriber{scripts: map[int][]scriptStep{
		sizes[0]: {{text: "part-0"}},
		sizes[1]: {{err: fatal}},
		sizes[2]: {{text: "part-2"}},
	}}

	sink := &lockedBuffer{}
	e := New(cfg, nil, slog.New(slog.NewTextHandler(sink, nil)))
	e.normalize = func(ctx context.Context, path string) (*media.Audio, error) {
		return audio, nil
	}
	e.newTranscriber = func(choice provider.Choice, pcfg config.Provider) (provider.Transcriber, error) {
		return fake, nil
	}
	t.Cleanup(e.Stop)

	id, err := e.SubmitJob(context.Background(), Request{SourcePath: writeUpload(t, "talk.mp3"), Provider: "whisper"})
	if err != nil {
		t.Fatalf("SubmitJob failed: %v", err)
	}
	waitTerminal(t, e, id)

	logs := sink.String()
	for _, want := range []string{
		"job_id=" + id.String(),
		"provider=whisper",
		"stage=transcribing",
		"chunk=1",
	} {
		if !strings.Contains(logs, want) {
			t.Errorf("log output missing %q:\n%s", want, logs)
		}
	}
}

func TestSubmitJobValidation(t *testing.T) {
	cfg := testConfigWithChunks(t)
	e := testEngine(t, cfg, nil, testsupport.SyntheticAudio(time.Second, testRate), &scriptedTranscriber{})

	cases := []struct {
		name string
		req  Request
	}{
		{"unsupported extension", Request{SourcePath: writeUpload(t, "notes.txt")}},
		{"unknown provider", Request{SourcePath: writeUpload(t, "a.mp3"), Provider: "deepgram"}},
		{"bad language", Request{SourcePath: writeUpload(t, "b.mp3"), Language: "not a language"}},
		{"oversized hint", Request{SourcePath: writeUpload(t, "c.mp3"), Provider: "whisper", Hint: strings.Repeat("x", 10_000)}},
	}
	for _, tc := range cases {
		if _, err := e.SubmitJob(context.Background(), tc.req); !errors.Is(err, ErrValidation) {
			t.Errorf("%s: got %v, want ErrValidation", tc.name, err)
		}
	}
}

func TestActiveJobCap(t *testing.T) {
	cfg := testConfigWithChunks(t)
	cfg.Engine.MaxActiveJobs = 1
	audio := testsupport.SyntheticAudio(time.Second, testRate)

	release := make(chan struct{})
	fake := &scriptedTranscriber{
		scripts: map[int][]scriptStep{len(segment.Cut(audio, segment.Chunk{Start: 0, End: audio.Duration()}, 0)): {{text: "done"}}},
		block:   release,
	}
	e := testEngine(t, cfg, nil, audio, fake)

	first, err := e.SubmitJob(context.Background(), Request{SourcePath: writeUpload(t, "one.mp3")})
	if err != nil {
		t.Fatalf("first SubmitJob failed: %v", err)
	}
	if _, err := e.SubmitJob(context.Background(), Request{SourcePath: writeUpload(t, "two.mp3")}); !errors.Is(err, ErrBusy) {
		t.Errorf("second SubmitJob returned %v, want ErrBusy", err)
	}

	close(release)
	waitTerminal(t, e, first)

	// Capacity frees up once the first job is terminal.
	if _, err := e.SubmitJob(context.Background(), Request{SourcePath: writeUpload(t, "three.mp3")}); err != nil {
		t.Errorf("SubmitJob after completion failed: %v", err)
	}
}

func TestGetProgressUnknownJob(t *testing.T) {
	cfg := testConfigWithChunks(t)
	e := testEngine(t, cfg, nil, nil, &scriptedTranscriber{})
	if _, err := e.GetProgress(uuid.New()); !errors.Is(err, jobs.ErrNotFound) {
		t.Errorf("GetProgress returned %v, want ErrNotFound", err)
	}
}

func progressText(snap jobs.Snapshot) string {
	var lines []string
	for _, entry := range snap.Progress {
		lines = append(lines, entry.Message)
	}
	return strings.Join(lines, "\n")
}
