package testsupport

import (
	"time"

	"scribed/internal/media"
)

// Gap marks a silent interval inside a synthetic stream.
type Gap struct {
	Start  time.Duration
	Length time.Duration
}

// SyntheticAudio builds a voiced PCM stream with silence carved out at the
// given gaps. Voiced regions alternate a loud sample pattern so windowed RMS
// sits well above any reasonable silence threshold.
func SyntheticAudio(total time.Duration, sampleRate int, gaps ...Gap) *media.Audio {
	n := int(int64(total) * int64(sampleRate) / int64(time.Second))
	samples := make([]int16, n)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 12000
		} else {
			samples[i] = -12000
		}
	}
	for _, gap := range gaps {
		lo := int(int64(gap.Start) * int64(sampleRate) / int64(time.Second))
		hi := int(int64(gap.Start+gap.Length) * int64(sampleRate) / int64(time.Second))
		if lo < 0 {
			lo = 0
		}
		if hi > n {
			hi = n
		}
		for i := lo; i < hi; i++ {
			samples[i] = 0
		}
	}
	return &media.Audio{Samples: samples, SampleRate: sampleRate}
}
