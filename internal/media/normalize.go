package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ErrDecode marks media that cannot be decoded into an audio stream. Decode
// failures are fatal to the job; they are never retried.
var ErrDecode = errors.New("decode error")

// NormalizeRate is the sample rate every upload is resampled to before
// silence analysis.
const NormalizeRate = 16000

// Normalizer decodes uploaded media into linear PCM.
type Normalizer struct {
	FFmpeg  string
	FFprobe string
}

// Normalize extracts the audio track from the container at path and decodes
// it to mono 16 kHz signed 16-bit PCM.
func (n Normalizer) Normalize(ctx context.Context, path string) (*Audio, error) {
	probe, err := Inspect(ctx, n.FFprobe, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if probe.AudioStreamCount() == 0 {
		return nil, fmt.Errorf("%w: container has no audio track", ErrDecode)
	}

	bin := strings.TrimSpace(n.FFmpeg)
	if bin == "" {
		bin = "ffmpeg"
	}

	cmd := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-i", path,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(NormalizeRate),
		"-f", "s16le",
		"-",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: ffmpeg decode: %v: %s", ErrDecode, err, strings.TrimSpace(stderr.String()))
	}

	samples, err := ParsePCM(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return &Audio{Samples: samples, SampleRate: NormalizeRate}, nil
}

// ParsePCM converts raw little-endian s16 bytes into samples.
func ParsePCM(raw []byte) ([]int16, error) {
	if len(raw)%2 != 0 {
		return nil, errors.New("pcm stream truncated mid-sample")
	}
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	return samples, nil
}
