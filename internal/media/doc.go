// Package media normalizes uploaded containers into a linear PCM stream the
// segmenter can analyze. It wraps ffprobe for container inspection and ffmpeg
// for decoding, and encodes sample windows back to WAV for provider upload.
package media
