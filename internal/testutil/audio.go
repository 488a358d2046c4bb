// Package testutil generates deterministic audio fixtures for tests.
package testutil

import (
	"errors"
	"io"
	"math"
	"math/rand/v2"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

// Sine returns amplitude*sin(2*pi*freq*t) sampled at rate for the given number of seconds
func Sine(freq, amplitude, seconds float64, rate int) []float64 {
	n := int(seconds * float64(rate))
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return out
}

// Clicks returns short decaying noise bursts every period samples
func Clicks(period, total, burst int, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]float64, total)
	for start := 0; start < total; start += period {
		for i := 0; i < burst && start+i < total; i++ {
			decay := math.Exp(-float64(i) / float64(burst) * 4)
			out[start+i] = 0.9 * decay * (rng.Float64()*2 - 1)
		}
	}
	return out
}

// Noise returns uniform white noise in [-amplitude, amplitude]
func Noise(amplitude float64, n int, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * (rng.Float64()*2 - 1)
	}
	return out
}

// EncodeWAV encodes mono or interleaved samples in [-1, 1] as a 16-bit PCM WAV file
func EncodeWAV(samples []float64, rate, channels int) ([]byte, error) {
	data := make([]int, len(samples))
	for i, s := range samples {
		s = math.Max(-1, math.Min(1, s))
		data[i] = int(math.Round(s * 32767))
	}

	f := &memFile{}
	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return f.buf, nil
}

// MustEncodeWAV is EncodeWAV for fixtures that cannot fail
func MustEncodeWAV(samples []float64, rate, channels int) []byte {
	b, err := EncodeWAV(samples, rate, channels)
	if err != nil {
		panic(err)
	}
	return b
}

// flacBlockSize is the number of samples per channel in each encoded FLAC frame
const flacBlockSize = 4096

// EncodeFLAC encodes mono or interleaved samples in [-1, 1] as a 16-bit FLAC stream with
// verbatim subframes
func EncodeFLAC(samples []float64, rate, channels int) ([]byte, error) {
	if channels < 1 || channels > 2 {
		return nil, errors.New("flac fixtures support one or two channels")
	}
	layout := frame.ChannelsMono
	if channels == 2 {
		layout = frame.ChannelsLR
	}

	f := &memFile{}
	enc, err := flac.NewEncoder(f, &meta.StreamInfo{
		BlockSizeMin:  16,
		BlockSizeMax:  65535,
		SampleRate:    uint32(rate),
		NChannels:     uint8(channels),
		BitsPerSample: 16,
	})
	if err != nil {
		return nil, err
	}

	perChannel := len(samples) / channels
	for start := 0; start < perChannel; start += flacBlockSize {
		n := min(flacBlockSize, perChannel-start)
		subframes := make([]*frame.Subframe, channels)
		for c := range subframes {
			block := make([]int32, n)
			for i := range block {
				s := math.Max(-1, math.Min(1, samples[(start+i)*channels+c]))
				block[i] = int32(math.Round(s * 32767))
			}
			subframes[c] = &frame.Subframe{
				SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
				Samples:   block,
				NSamples:  n,
			}
		}

		err := enc.WriteFrame(&frame.Frame{
			Header: frame.Header{
				BlockSize:     uint16(n),
				SampleRate:    uint32(rate),
				Channels:      layout,
				BitsPerSample: 16,
			},
			Subframes: subframes,
		})
		if err != nil {
			return nil, err
		}
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return f.buf, nil
}

// memFile is an in-memory io.WriteSeeker for the wav and flac encoders
type memFile struct {
	buf []byte
	pos int
}

func (m *memFile) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(m.pos) + offset
	case io.SeekEnd:
		next = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if next < 0 {
		return 0, errors.New("negative position")
	}
	m.pos = int(next)
	return next, nil
}
