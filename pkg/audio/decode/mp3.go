package decode

import (
	"bytes"
	"encoding/binary"
	"io"
	"time"

	"github.com/hajimehoshi/go-mp3"
	"github.com/pkg/errors"
)

// go-mp3 always emits 16-bit little endian stereo
const mp3BytesPerFrame = 4

// decodeMP3 decodes MPEG audio, reading no further than the analysis cap
func decodeMP3(data []byte, maxDuration time.Duration) (*pcm, error) {
	d, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open mp3 stream")
	}

	rate := d.SampleRate()
	if rate <= 0 {
		return nil, errors.New("mp3 stream reports no sample rate")
	}

	limit := maxFrames(rate, maxDuration)
	// one frame past the cap tells us the input was longer
	want := (limit + 1) * mp3BytesPerFrame

	raw := make([]byte, 0, min(want, 1<<20))
	chunk := make([]byte, 32*1024)
	for len(raw) < want {
		n, err := d.Read(chunk)
		raw = append(raw, chunk[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to decode mp3 frames")
		}
		if n == 0 {
			break
		}
	}

	frames := len(raw) / mp3BytesPerFrame
	truncated := false
	if frames > limit {
		frames = limit
		truncated = true
	}

	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		left := int16(binary.LittleEndian.Uint16(raw[i*4:]))
		right := int16(binary.LittleEndian.Uint16(raw[i*4+2:]))
		mono[i] = (float64(left) + float64(right)) / 2 / 32768
	}

	return &pcm{
		mono:       mono,
		sampleRate: rate,
		channels:   2,
		truncated:  truncated,
	}, nil
}
