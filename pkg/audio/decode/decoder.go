// Package decode turns encoded audio bytes into a mono, fixed-rate, duration-capped signal.
package decode

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/RyanBlaney/latency-benchmark-common/logging"

	"github.com/RyanBlaney/audio-emotion/pkg/common"
)

// Signal is decoded mono PCM normalised to [-1, 1]
type Signal struct {
	Samples        []float64     `json:"-"`
	SampleRate     int           `json:"sample_rate"`     // Rate of Samples after resampling
	SourceRate     int           `json:"source_rate"`     // Rate of the encoded input
	SourceChannels int           `json:"source_channels"` // Channels before downmix
	Format         string        `json:"format"`          // Resolved container format
	Truncated      bool          `json:"truncated"`       // Input was longer than the analysis cap
	Duration       time.Duration `json:"duration"`
}

// Config holds decoder settings
type Config struct {
	SampleRate  int           // Target sample rate
	MaxDuration time.Duration // Analysis cap; longer inputs are truncated
	ContentType string        // Content hint passed to the transcode fallback
	TempDir     string        // Directory for transcode scratch files ("" uses the OS default)
}

// DefaultConfig returns the decoder settings used for emotion analysis
func DefaultConfig() Config {
	return Config{
		SampleRate:  22050,
		MaxDuration: 30 * time.Second,
		ContentType: "music",
	}
}

// Decoder decodes WAV, MP3 and FLAC natively and hands any other container to the
// ffmpeg-backed transcoder
type Decoder struct {
	config Config
	logger logging.Logger
}

// pcm is the intermediate mono result of a container decoder at its native rate
type pcm struct {
	mono       []float64
	sampleRate int
	channels   int
	truncated  bool
}

// NewDecoder creates a new decoder
func NewDecoder(config Config) *Decoder {
	if config.SampleRate <= 0 {
		config.SampleRate = DefaultConfig().SampleRate
	}
	if config.MaxDuration <= 0 {
		config.MaxDuration = DefaultConfig().MaxDuration
	}
	if config.ContentType == "" {
		config.ContentType = DefaultConfig().ContentType
	}

	return &Decoder{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component":   "audio_decoder",
			"sample_rate": config.SampleRate,
		}),
	}
}

// Config returns the decoder settings
func (d *Decoder) Config() Config {
	return d.config
}

// Decode decodes data into a mono signal at the configured rate. formatHint may be a file
// extension, a file name or a MIME type; when it is empty or unknown the container is sniffed.
func (d *Decoder) Decode(ctx context.Context, data []byte, formatHint string) (*Signal, error) {
	if len(data) == 0 {
		return nil, common.NewError(common.KindDecode, "decode", "no audio data", nil)
	}

	format := ResolveFormat(data, formatHint)
	if format == "" {
		return nil, common.NewError(common.KindDecode, "decode",
			fmt.Sprintf("unrecognised audio container (hint %q)", formatHint), nil)
	}

	logger := d.logger.WithFields(logging.Fields{
		"function": "Decode",
		"format":   format,
		"bytes":    len(data),
	})

	var (
		raw *pcm
		err error
	)
	switch format {
	case FormatWAV:
		raw, err = decodeWAV(data, d.config.MaxDuration)
	case FormatMP3:
		raw, err = decodeMP3(data, d.config.MaxDuration)
	case FormatFLAC:
		raw, err = decodeFLAC(data, d.config.MaxDuration)
	default:
		raw, err = d.decodeExternal(ctx, data, format)
	}
	if err != nil {
		logger.Debug("Decoding failed", logging.Fields{"error": err.Error()})
		return nil, common.NewError(common.KindDecode, "decode",
			fmt.Sprintf("failed to decode %s audio", format), err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	samples := Resample(raw.mono, raw.sampleRate, d.config.SampleRate)

	// resampling rounds up, so re-apply the cap at the target rate
	maxSamples := int(math.Ceil(d.config.MaxDuration.Seconds() * float64(d.config.SampleRate)))
	truncated := raw.truncated
	if len(samples) > maxSamples {
		samples = samples[:maxSamples]
		truncated = true
	}

	signal := &Signal{
		Samples:        samples,
		SampleRate:     d.config.SampleRate,
		SourceRate:     raw.sampleRate,
		SourceChannels: raw.channels,
		Format:         format,
		Truncated:      truncated,
		Duration:       time.Duration(float64(len(samples)) / float64(d.config.SampleRate) * float64(time.Second)),
	}

	logger.Debug("Audio decoded", logging.Fields{
		"source_rate":     raw.sampleRate,
		"source_channels": raw.channels,
		"samples":         len(samples),
		"duration_sec":    signal.Duration.Seconds(),
		"truncated":       truncated,
	})

	return signal, nil
}

// maxFrames returns how many frames at rate fit in the analysis cap
func maxFrames(rate int, maxDuration time.Duration) int {
	return int(math.Ceil(maxDuration.Seconds() * float64(rate)))
}
