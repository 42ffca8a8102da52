package audio

import (
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// SamplesToWAV encodes float32 PCM samples as a 16-bit mono WAV byte slice.
// The result is a complete container that decodes on its own.
func SamplesToWAV(samples []float32, sampleRate int) []byte {
	ints := make([]int, len(samples))
	for i, s := range samples {
		clamped := max(-1.0, min(1.0, s))
		ints[i] = int(clamped * math.MaxInt16)
	}

	out := &memFile{buf: make([]byte, 0, 44+len(samples)*2)}
	enc := wav.NewEncoder(out, sampleRate, 16, 1, 1)
	// memFile writes cannot fail
	_ = enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           ints,
		SourceBitDepth: 16,
	})
	_ = enc.Close()
	return out.buf
}

// memFile is an in-memory io.WriteSeeker for the encoder, which seeks back to
// patch chunk sizes once the samples are written.
type memFile struct {
	buf []byte
	pos int
}

func (f *memFile) Write(p []byte) (int, error) {
	if end := f.pos + len(p); end > len(f.buf) {
		f.buf = append(f.buf, make([]byte, end-len(f.buf))...)
	}
	n := copy(f.buf[f.pos:], p)
	f.pos += n
	return n, nil
}

func (f *memFile) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(f.pos) + offset
	case io.SeekEnd:
		abs = int64(len(f.buf)) + offset
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("seek: negative position %d", abs)
	}
	f.pos = int(abs)
	return abs, nil
}

// ReadWAV decodes a PCM WAV stream into mono float32 samples normalized to
// [-1, 1]. Multi-channel input is averaged down to one channel; the source
// sample rate is returned unchanged.
func ReadWAV(r io.ReadSeeker) ([]float32, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("not a valid wav file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode wav: %w", err)
	}
	return toMono(buf, int(dec.BitDepth)), int(dec.SampleRate), nil
}

func toMono(buf *goaudio.IntBuffer, bitDepth int) []float32 {
	channels := 1
	if buf.Format != nil && buf.Format.NumChannels > 0 {
		channels = buf.Format.NumChannels
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float32(int64(1) << (bitDepth - 1))

	frames := len(buf.Data) / channels
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			sum += float32(buf.Data[i*channels+ch])
		}
		out[i] = sum / float32(channels) / scale
	}
	return out
}
