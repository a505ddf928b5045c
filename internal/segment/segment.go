package segment

import (
	"errors"
	"fmt"
	"math"
	"time"

	"scribed/internal/config"
	"scribed/internal/media"
)

// ErrEmptyMedia marks a zero-duration stream. The job fails fast; no chunks
// are produced.
var ErrEmptyMedia = errors.New("empty media")

// analysisWindow is the RMS window used for silence detection.
const analysisWindow = 10 * time.Millisecond

// Chunk is one contiguous slice of the normalized stream, the unit of
// transcription work. Chunks of a plan partition the stream: Start of chunk
// i+1 equals End of chunk i.
type Chunk struct {
	Index int
	Start time.Duration
	End   time.Duration
}

// Duration returns the chunk length excluding any boundary guard.
func (c Chunk) Duration() time.Duration {
	return c.End - c.Start
}

// Options control silence detection and chunk sizing.
type Options struct {
	// ChunkCeiling is the maximum chunk duration D.
	ChunkCeiling time.Duration
	// MinSilence is the minimum quiet interval that qualifies as a cut candidate.
	MinSilence time.Duration
	// SilenceThreshold is the normalized RMS amplitude below which a window
	// counts as silent, in [0, 1).
	SilenceThreshold float64
	// Lookback bounds how far before the ceiling a cut candidate may fall.
	Lookback time.Duration
	// BoundaryGuard extends each materialized chunk past its End to avoid
	// clipping words at cut edges. Guard audio is deduplicated during
	// aggregation and never affects chunk ordering.
	BoundaryGuard time.Duration
}

// OptionsFromConfig converts the configuration section into segmenter options.
func OptionsFromConfig(cfg config.Segmenter) Options {
	return Options{
		ChunkCeiling:     time.Duration(cfg.ChunkDurationSeconds) * time.Second,
		MinSilence:       time.Duration(cfg.MinSilenceMS) * time.Millisecond,
		SilenceThreshold: cfg.SilenceThreshold,
		Lookback:         time.Duration(cfg.LookbackSeconds) * time.Second,
		BoundaryGuard:    time.Duration(cfg.BoundaryGuardMS) * time.Millisecond,
	}
}

// Plan scans the stream for silence candidates and produces the ordered
// chunk sequence. Time ranges partition [0, duration]; no chunk exceeds the
// ceiling. When no silence candidate falls inside the lookback window before
// a ceiling boundary, the chunk is hard-cut at the ceiling: coverage wins
// over avoiding mid-word cuts.
func Plan(audio *media.Audio, opts Options) ([]Chunk, error) {
	if audio == nil || len(audio.Samples) == 0 || audio.Duration() <= 0 {
		return nil, ErrEmptyMedia
	}
	if opts.ChunkCeiling <= 0 {
		return nil, fmt.Errorf("chunk ceiling must be positive, got %v", opts.ChunkCeiling)
	}

	total := audio.Duration()
	if total <= opts.ChunkCeiling {
		return []Chunk{{Index: 0, Start: 0, End: total}}, nil
	}

	candidates := silenceCandidates(audio, opts)

	var chunks []Chunk
	cursor := time.Duration(0)
	for total-cursor > opts.ChunkCeiling {
		boundary := cursor + opts.ChunkCeiling
		cut := boundary
		if candidate, ok := bestCandidate(candidates, cursor, boundary, opts.Lookback); ok {
			cut = candidate
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Start: cursor, End: cut})
		cursor = cut
	}
	chunks = append(chunks, Chunk{Index: len(chunks), Start: cursor, End: total})

	return chunks, nil
}

// Window materializes a chunk's samples, extending past the cut point by the
// boundary guard (clamped to the stream).
func Window(audio *media.Audio, chunk Chunk, guard time.Duration) []int16 {
	return audio.Window(chunk.Start, chunk.End+guard)
}

// Cut materializes a chunk (guard included) as WAV bytes ready for upload.
func Cut(audio *media.Audio, chunk Chunk, guard time.Duration) []byte {
	return media.EncodeWAV(Window(audio, chunk, guard), audio.SampleRate)
}

// silenceCandidates returns cut points, ordered ascending, at the midpoints
// of quiet intervals lasting at least MinSilence.
func silenceCandidates(audio *media.Audio, opts Options) []time.Duration {
	windowSamples := int(int64(analysisWindow) * int64(audio.SampleRate) / int64(time.Second))
	if windowSamples <= 0 {
		windowSamples = 1
	}

	var candidates []time.Duration
	runStart := -1
	flush := func(endWindow int) {
		if runStart < 0 {
			return
		}
		startOffset := time.Duration(runStart) * analysisWindow
		endOffset := time.Duration(endWindow) * analysisWindow
		if endOffset-startOffset >= opts.MinSilence {
			candidates = append(candidates, startOffset+(endOffset-startOffset)/2)
		}
		runStart = -1
	}

	windows := len(audio.Samples) / windowSamples
	for w := 0; w < windows; w++ {
		window := audio.Samples[w*windowSamples : (w+1)*windowSamples]
		if rms(window) < opts.SilenceThreshold {
			if runStart < 0 {
				runStart = w
			}
			continue
		}
		flush(w)
	}
	flush(windows)

	return candidates
}

// bestCandidate picks the cut point closest to boundary within the lookback
// window, strictly after the current cursor. Candidates must be sorted
// ascending; the latest qualifying point is closest to the boundary, and an
// earlier point only wins a (theoretical) distance tie by being scanned last.
func bestCandidate(candidates []time.Duration, cursor, boundary, lookback time.Duration) (time.Duration, bool) {
	earliest := boundary - lookback
	if earliest < cursor {
		earliest = cursor
	}
	for i := len(candidates) - 1; i >= 0; i-- {
		c := candidates[i]
		if c > boundary {
			continue
		}
		if c <= earliest || c <= cursor {
			break
		}
		return c, true
	}
	return 0, false
}

func rms(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
