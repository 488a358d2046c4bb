package training

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/RyanBlaney/audio-emotion/configs"
	"github.com/RyanBlaney/audio-emotion/pkg/audio/extractors"
	"github.com/RyanBlaney/audio-emotion/pkg/common"
	"github.com/RyanBlaney/audio-emotion/pkg/dataset"
	"github.com/RyanBlaney/audio-emotion/pkg/emotion"
)

type TrainerTestSuite struct {
	suite.Suite
	engine *Engine
	ctx    context.Context
}

func (s *TrainerTestSuite) SetupTest() {
	s.engine = NewEngine(configs.GetDefaultTrainingConfig(), extractors.DefaultLayout(13).FeatureNames())
	s.ctx = context.Background()
}

// clustered returns perClass samples per label; the first informative features encode the
// label and the rest are noise
func clustered(labels []emotion.Emotion, perClass, width, informative int, seed uint64) []dataset.Sample {
	rng := rand.New(rand.NewPCG(seed, 0))
	var out []dataset.Sample
	for c, label := range labels {
		for i := 0; i < perClass; i++ {
			v := make([]float64, width)
			for j := range v {
				if j < informative {
					v[j] = float64(c)*100 + rng.Float64()
				} else {
					v[j] = rng.NormFloat64()
				}
			}
			out = append(out, dataset.Sample{ID: label.String(), Vector: v, Emotion: label})
		}
	}
	return out
}

func (s *TrainerTestSuite) TestInsufficientData() {
	_, err := s.engine.Train(s.ctx, clustered([]emotion.Emotion{emotion.Happy}, 1, 30, 1, 1))
	s.Require().Error(err)
	s.ErrorIs(err, common.ErrInsufficientData)

	_, err = s.engine.Train(s.ctx, nil)
	s.ErrorIs(err, common.ErrInsufficientData)
}

func (s *TrainerTestSuite) TestTwoSamplesEvaluateOnTrainingData() {
	samples := clustered([]emotion.Emotion{emotion.Happy, emotion.Sad}, 1, 30, 1, 2)

	res, err := s.engine.Train(s.ctx, samples)
	s.Require().NoError(err)

	s.True(res.Report.EvaluatedOnTrainingData)
	s.True(res.Artifact.EvaluatedOnTrainingData)
	s.Equal(2, res.Report.TrainSize)
	s.Equal(2, res.Report.TestSize)
	s.Equal(1.0, res.Report.Accuracy)
	s.NotEmpty(res.Report.Warnings)
}

func (s *TrainerTestSuite) TestThreeSamplesHoldOutOne() {
	samples := clustered([]emotion.Emotion{emotion.Happy, emotion.Sad, emotion.Angry}, 1, 30, 1, 3)

	res, err := s.engine.Train(s.ctx, samples)
	s.Require().NoError(err)

	s.False(res.Report.EvaluatedOnTrainingData)
	s.Equal(2, res.Report.TrainSize)
	s.Equal(1, res.Report.TestSize)
	s.GreaterOrEqual(res.Report.Accuracy, 0.0)
	s.LessOrEqual(res.Report.Accuracy, 1.0)
	s.Equal(3, res.Artifact.TrainingDataCount)
}

func (s *TrainerTestSuite) TestSeparableDataTrainsAccurately() {
	samples := clustered(emotion.All(), 10, 30, 10, 4)

	res, err := s.engine.Train(s.ctx, samples)
	s.Require().NoError(err)

	s.Equal(56, res.Report.TrainSize)
	s.Equal(14, res.Report.TestSize)
	s.GreaterOrEqual(res.Report.Accuracy, 0.8)
	s.Equal(30, res.Artifact.FeatureCount)
	s.Len(res.Report.TopFeatures, 15)
	s.Less(res.Report.TopFeatures[0].Index, 10, "an informative feature ranks first")
	s.NotEmpty(res.Report.PerLabel)
}

func (s *TrainerTestSuite) TestTruncatesToShortestVector() {
	samples := clustered([]emotion.Emotion{emotion.Happy, emotion.Sad}, 3, 30, 1, 5)
	samples[2].Vector = samples[2].Vector[:28]

	res, err := s.engine.Train(s.ctx, samples)
	s.Require().NoError(err)

	s.True(res.Report.Truncated)
	s.Equal(2, res.Report.DroppedDimensions)
	s.Equal(28, res.Report.FeatureCount)
	s.Equal(28, res.Artifact.Scaler.NFeatures())
	s.Len(res.Artifact.FeatureNames, 28)
	s.NotEmpty(res.Report.Warnings)
}

func (s *TrainerTestSuite) TestDoesNotMutateSamples() {
	samples := clustered([]emotion.Emotion{emotion.Fear, emotion.Disgust}, 4, 30, 1, 6)
	before, err := json.Marshal(samples)
	s.Require().NoError(err)

	_, err = s.engine.Train(s.ctx, samples)
	s.Require().NoError(err)

	after, err := json.Marshal(samples)
	s.Require().NoError(err)
	s.Equal(before, after)
}

func (s *TrainerTestSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	_, err := s.engine.Train(ctx, clustered([]emotion.Emotion{emotion.Happy, emotion.Sad}, 3, 30, 1, 7))
	s.ErrorIs(err, context.Canceled)
}

func TestTrainerTestSuite(t *testing.T) {
	suite.Run(t, new(TrainerTestSuite))
}

func TestTrainingIsDeterministic(t *testing.T) {
	engine := NewEngine(configs.GetDefaultTrainingConfig(), nil)
	samples := clustered([]emotion.Emotion{emotion.Neutral, emotion.Surprised, emotion.Happy}, 5, 30, 1, 8)

	first, err := engine.Train(context.Background(), samples)
	require.NoError(t, err)
	second, err := engine.Train(context.Background(), samples)
	require.NoError(t, err)

	a, err := json.Marshal(first.Artifact.Model)
	require.NoError(t, err)
	b, err := json.Marshal(second.Artifact.Model)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, first.Report.Accuracy, second.Report.Accuracy)
	assert.Equal(t, "feature_0", first.Artifact.FeatureNames[0])
}
