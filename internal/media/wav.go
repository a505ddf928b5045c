package media

import (
	"bytes"
	"encoding/binary"
)

// EncodeWAV wraps mono s16 samples in a minimal RIFF/WAVE container so chunk
// payloads can be uploaded to providers that reject raw PCM.
func EncodeWAV(samples []int16, sampleRate int) []byte {
	dataLen := len(samples) * 2
	buf := bytes.NewBuffer(make([]byte, 0, 44+dataLen))

	writeString := func(s string) { buf.WriteString(s) }
	writeU32 := func(v uint32) { _ = binary.Write(buf, binary.LittleEndian, v) }
	writeU16 := func(v uint16) { _ = binary.Write(buf, binary.LittleEndian, v) }

	writeString("RIFF")
	writeU32(uint32(36 + dataLen))
	writeString("WAVE")

	writeString("fmt ")
	writeU32(16)
	writeU16(1) // PCM
	writeU16(1) // mono
	writeU32(uint32(sampleRate))
	writeU32(uint32(sampleRate * 2)) // byte rate
	writeU16(2)                      // block align
	writeU16(16)                     // bits per sample

	writeString("data")
	writeU32(uint32(dataLen))
	for _, s := range samples {
		_ = binary.Write(buf, binary.LittleEndian, s)
	}

	return buf.Bytes()
}
