package decode

import (
	"context"
	"os"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	streamcommon "github.com/RyanBlaney/latency-benchmark-common/stream/common"
	"github.com/RyanBlaney/sonido-sonar/transcode"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// decodeExternal decodes containers without a native decoder (m4a, aac, ogg, ...) through the
// ffmpeg-backed normalising decoder. The decoder works on files, so the bytes are staged in a
// scratch file that is removed afterwards.
func (d *Decoder) decodeExternal(ctx context.Context, data []byte, format string) (result *pcm, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(d.config.TempDir, "audio-emotion-*."+format)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create transcode scratch file")
	}
	defer func() {
		err = multierr.Append(err, os.Remove(tmp.Name()))
	}()

	_, werr := tmp.Write(data)
	if werr = multierr.Append(werr, tmp.Close()); werr != nil {
		return nil, errors.Wrap(werr, "failed to write transcode scratch file")
	}

	decoder := transcode.NewNormalizingDecoder(d.config.ContentType)
	anyData, err := decoder.DecodeFile(tmp.Name())
	if err != nil {
		return nil, errors.Wrapf(err, "ffmpeg could not decode %s input", format)
	}

	audioData := streamcommon.ConvertToAudioData(anyData)
	if audioData == nil {
		return nil, errors.Errorf("transcoder returned unexpected type: %T", anyData)
	}

	rate := int(audioData.SampleRate)
	channels := int(audioData.Channels)
	if rate <= 0 {
		return nil, errors.New("transcoder reported no sample rate")
	}
	if channels <= 0 {
		channels = 1
	}

	interleaved := make([]float64, len(audioData.PCM))
	for i, v := range audioData.PCM {
		interleaved[i] = float64(v)
	}

	limit := maxFrames(rate, d.config.MaxDuration) * channels
	truncated := false
	if len(interleaved) > limit {
		interleaved = interleaved[:limit]
		truncated = true
	}

	d.logger.Debug("Audio transcoded", logging.Fields{
		"format":      format,
		"sample_rate": rate,
		"channels":    channels,
	})

	return &pcm{
		mono:       downmix(interleaved, channels),
		sampleRate: rate,
		channels:   channels,
		truncated:  truncated,
	}, nil
}
