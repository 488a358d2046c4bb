package decode

import (
	"bytes"
	"io"
	"math"
	"time"

	"github.com/mewkiz/flac"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// decodeFLAC decodes a FLAC stream frame by frame until the analysis cap is reached
func decodeFLAC(data []byte, maxDuration time.Duration) (result *pcm, err error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open flac stream")
	}
	defer func() {
		err = multierr.Append(err, stream.Close())
	}()

	info := stream.Info
	if info == nil || info.NChannels == 0 || info.SampleRate == 0 {
		return nil, errors.New("invalid flac stream info")
	}

	channels := int(info.NChannels)
	rate := int(info.SampleRate)
	scale := math.Exp2(float64(info.BitsPerSample) - 1)
	limit := maxFrames(rate, maxDuration)

	mono := make([]float64, 0, min(limit, 1<<20))
	truncated := false

	for len(mono) < limit {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse flac frame")
		}

		n := len(frame.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			if len(mono) == limit {
				truncated = true
				break
			}
			var sum float64
			for c := 0; c < channels && c < len(frame.Subframes); c++ {
				sum += float64(frame.Subframes[c].Samples[i])
			}
			mono = append(mono, sum/float64(channels)/scale)
		}
	}

	if !truncated && len(mono) == limit {
		// there may be more frames behind the cap
		if _, err := stream.ParseNext(); err == nil {
			truncated = true
		}
	}

	return &pcm{
		mono:       mono,
		sampleRate: rate,
		channels:   channels,
		truncated:  truncated,
	}, nil
}
