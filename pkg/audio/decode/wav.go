package decode

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"time"

	"github.com/go-audio/wav"
	"github.com/pkg/errors"
)

const wavFormatIEEEFloat = 3

// decodeWAV decodes integer and IEEE float PCM WAV data, downmixing to mono
func decodeWAV(data []byte, maxDuration time.Duration) (*pcm, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if err := d.FwdToPCM(); err != nil {
		return nil, errors.Wrap(err, "failed to locate wav data chunk")
	}
	if err := d.Err(); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "failed to read wav headers")
	}
	if d.NumChans == 0 || d.SampleRate == 0 || d.PCMChunk == nil {
		return nil, errors.New("invalid wav header")
	}

	channels := int(d.NumChans)
	rate := int(d.SampleRate)
	limit := maxFrames(rate, maxDuration) * channels

	var (
		interleaved []float64
		err         error
	)
	if d.WavAudioFormat == wavFormatIEEEFloat {
		interleaved, err = readFloatPCM(d, limit)
	} else {
		interleaved, err = readIntPCM(d, limit)
	}
	if err != nil {
		return nil, err
	}

	truncated := false
	if len(interleaved) > limit {
		interleaved = interleaved[:limit]
		truncated = true
	}

	return &pcm{
		mono:       downmix(interleaved, channels),
		sampleRate: rate,
		channels:   channels,
		truncated:  truncated,
	}, nil
}

// readIntPCM reads integer PCM through the go-audio buffer and scales it to [-1, 1]
func readIntPCM(d *wav.Decoder, limit int) ([]float64, error) {
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read wav pcm")
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(d.BitDepth)
	}
	if bitDepth < 8 || bitDepth > 32 {
		return nil, errors.Errorf("unsupported wav bit depth %d", bitDepth)
	}

	n := len(buf.Data)
	if n > limit+1 {
		// keep one extra sample so the caller can tell the input was truncated
		n = limit + 1
	}

	out := make([]float64, n)
	if bitDepth == 8 {
		// 8-bit wav is unsigned
		for i := 0; i < n; i++ {
			out[i] = (float64(buf.Data[i]) - 128) / 128
		}
		return out, nil
	}

	scale := math.Exp2(float64(bitDepth - 1))
	for i := 0; i < n; i++ {
		out[i] = float64(buf.Data[i]) / scale
	}
	return out, nil
}

// readFloatPCM reads 32 or 64-bit IEEE float samples straight from the data chunk
func readFloatPCM(d *wav.Decoder, limit int) ([]float64, error) {
	width := int(d.BitDepth) / 8
	if width != 4 && width != 8 {
		return nil, errors.Errorf("unsupported float wav bit depth %d", d.BitDepth)
	}

	size := int64(d.PCMChunk.Size)
	if capBytes := int64(limit+1) * int64(width); size > capBytes {
		size = capBytes
	}

	raw, err := io.ReadAll(io.LimitReader(d.PCMChunk, size))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read float wav pcm")
	}

	n := len(raw) / width
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		chunk := raw[i*width : (i+1)*width]
		if width == 4 {
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(chunk)))
		} else {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(chunk))
		}
	}
	return out, nil
}

// downmix averages interleaved channels into a mono signal
func downmix(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		return interleaved
	}

	frames := len(interleaved) / channels
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		mono[i] = sum / float64(channels)
	}
	return mono
}
