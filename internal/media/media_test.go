package media

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"
)

func TestParseProbeOutput(t *testing.T) {
	payload := []byte(`{
		"streams": [
			{"index": 0, "codec_name": "h264", "codec_type": "video"},
			{"index": 1, "codec_name": "aac", "codec_type": "audio", "sample_rate": "48000", "channels": 2}
		],
		"format": {"filename": "talk.mp4", "duration": "601.04", "format_name": "mov,mp4"}
	}`)

	result, err := ParseProbeOutput(payload)
	if err != nil {
		t.Fatalf("ParseProbeOutput: %v", err)
	}
	if result.AudioStreamCount() != 1 {
		t.Fatalf("audio streams = %d, want 1", result.AudioStreamCount())
	}
	if got := result.DurationSeconds(); got != 601.04 {
		t.Fatalf("duration = %v, want 601.04", got)
	}
}

func TestParseProbeOutputRejectsGarbage(t *testing.T) {
	if _, err := ParseProbeOutput([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestParsePCMRoundTrip(t *testing.T) {
	want := []int16{0, 100, -100, 32767, -32768}
	raw := make([]byte, len(want)*2)
	for i, s := range want {
		binary.LittleEndian.PutUint16(raw[2*i:], uint16(s))
	}

	got, err := ParsePCM(raw)
	if err != nil {
		t.Fatalf("ParsePCM: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("length %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestParsePCMRejectsOddLength(t *testing.T) {
	if _, err := ParsePCM([]byte{0x01}); err == nil {
		t.Fatal("expected error for truncated stream")
	}
}

func TestAudioDurationAndWindows(t *testing.T) {
	audio := &Audio{Samples: make([]int16, NormalizeRate*3), SampleRate: NormalizeRate}
	if audio.Duration() != 3*time.Second {
		t.Fatalf("duration = %v", audio.Duration())
	}
	window := audio.Window(time.Second, 2*time.Second)
	if len(window) != NormalizeRate {
		t.Fatalf("window length = %d, want %d", len(window), NormalizeRate)
	}
	// Out-of-range offsets clamp instead of panicking.
	if got := audio.Window(10*time.Second, 20*time.Second); len(got) != 0 {
		t.Fatalf("clamped window length = %d, want 0", len(got))
	}
}

func TestEncodeWAVHeader(t *testing.T) {
	samples := []int16{1, 2, 3, 4}
	wav := EncodeWAV(samples, NormalizeRate)

	if len(wav) != 44+len(samples)*2 {
		t.Fatalf("wav length = %d", len(wav))
	}
	if !bytes.Equal(wav[0:4], []byte("RIFF")) || !bytes.Equal(wav[8:12], []byte("WAVE")) {
		t.Fatal("missing RIFF/WAVE markers")
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != NormalizeRate {
		t.Fatalf("sample rate = %d", rate)
	}
	if dataLen := binary.LittleEndian.Uint32(wav[40:44]); dataLen != uint32(len(samples)*2) {
		t.Fatalf("data length = %d", dataLen)
	}
}
