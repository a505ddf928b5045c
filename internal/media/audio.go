package media

import "time"

// Audio is a decoded single-channel PCM stream.
type Audio struct {
	Samples    []int16
	SampleRate int
}

// Duration returns the total length of the stream.
func (a *Audio) Duration() time.Duration {
	if a == nil || a.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(a.Samples)) * time.Second / time.Duration(a.SampleRate)
}

// SampleAt converts a time offset into a sample index, clamped to the stream.
func (a *Audio) SampleAt(offset time.Duration) int {
	if a == nil || a.SampleRate <= 0 {
		return 0
	}
	idx := int(int64(offset) * int64(a.SampleRate) / int64(time.Second))
	if idx < 0 {
		return 0
	}
	if idx > len(a.Samples) {
		return len(a.Samples)
	}
	return idx
}

// Window returns the samples covering [start, end), clamped to the stream.
func (a *Audio) Window(start, end time.Duration) []int16 {
	lo := a.SampleAt(start)
	hi := a.SampleAt(end)
	if hi < lo {
		hi = lo
	}
	return a.Samples[lo:hi]
}
