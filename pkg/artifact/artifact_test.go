package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/audio-emotion/pkg/common"
	"github.com/RyanBlaney/audio-emotion/pkg/emotion"
	"github.com/RyanBlaney/audio-emotion/pkg/model"
)

func fitted(t *testing.T, labels ...string) *Artifact {
	t.Helper()
	if len(labels) == 0 {
		labels = []string{"Happy", "Sad", "Angry"}
	}

	var X [][]float64
	var y []string
	for c, label := range labels {
		for i := 0; i < 4; i++ {
			X = append(X, []float64{float64(c) * 5, float64(i), float64(c + i)})
			y = append(y, label)
		}
	}

	scaler := model.NewStandardScaler()
	require.NoError(t, scaler.Fit(X))
	scaled, err := scaler.TransformAll(X)
	require.NoError(t, err)

	config := model.DefaultForestConfig()
	config.NEstimators = 10
	forest := model.NewRandomForest(config)
	require.NoError(t, forest.Fit(scaled, y))

	a := New(forest, scaler, 0.75, len(X))
	a.FeatureNames = []string{"a", "b", "c"}
	return a
}

func predictAll(t *testing.T, a *Artifact, rows [][]float64) [][]float64 {
	t.Helper()
	var out [][]float64
	for _, row := range rows {
		scaled, err := a.Scaler.Transform(row)
		require.NoError(t, err)
		proba, err := a.Model.PredictProba(scaled)
		require.NoError(t, err)
		out = append(out, proba)
	}
	return out
}

func TestSerializeRoundTrip(t *testing.T) {
	a := fitted(t)

	data, err := Serialize(a)
	require.NoError(t, err)
	assert.Equal(t, zstdMagic, data[:4])

	restored, err := Deserialize(data)
	require.NoError(t, err)

	assert.Equal(t, CurrentVersion, restored.Version)
	assert.Equal(t, ModelTypeRandomForest, restored.ModelType)
	assert.Equal(t, 0.75, restored.Accuracy)
	assert.Equal(t, 12, restored.TrainingDataCount)
	assert.Equal(t, 3, restored.FeatureCount)
	assert.Equal(t, emotion.All(), restored.Emotions)
	assert.True(t, a.CreatedAt.Equal(restored.CreatedAt))

	rows := [][]float64{{0, 1, 1}, {5, 2, 3}, {10, 0, 2}, {2.5, 1.5, 1.5}}
	assert.Equal(t, predictAll(t, a, rows), predictAll(t, restored, rows))
}

func TestSaveAndLoad(t *testing.T) {
	a := fitted(t)
	path := filepath.Join(t.TempDir(), "model.emo")

	require.NoError(t, Save(path, a))
	restored, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, a.Metadata().Classes, restored.Metadata().Classes)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")

	_, err = Load(filepath.Join(t.TempDir(), "missing.emo"))
	assert.Error(t, err)
}

func TestLoadAnnotatesSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.emo")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	require.ErrorIs(t, err, common.ErrCorruptArtifact)
	assert.Contains(t, err.Error(), path)
}

func TestDeserializeLegacyPlainJSON(t *testing.T) {
	a := fitted(t)
	doc := map[string]any{
		"model":    a.Model,
		"scaler":   a.Scaler,
		"accuracy": 0.5,
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	restored, err := Deserialize(data)
	require.NoError(t, err)
	assert.Equal(t, LegacyVersion, restored.Version)
	assert.Equal(t, ModelTypeUnknown, restored.ModelType)
	assert.Equal(t, 3, restored.FeatureCount, "derived from the scaler")
	assert.Equal(t, emotion.All(), restored.Emotions)
	assert.False(t, restored.CreatedAt.IsZero())
}

func TestDeserializeRejections(t *testing.T) {
	a := fitted(t)
	base := func() map[string]any {
		return map[string]any{
			"version":  CurrentVersion,
			"model":    a.Model,
			"scaler":   a.Scaler,
			"accuracy": 0.9,
		}
	}

	tests := []struct {
		name   string
		mutate func(map[string]any)
		want   *common.Error
	}{
		{"missing scaler", func(d map[string]any) { delete(d, "scaler") }, common.ErrIncompatibleArtifact},
		{"missing model", func(d map[string]any) { delete(d, "model") }, common.ErrIncompatibleArtifact},
		{"null accuracy", func(d map[string]any) { d["accuracy"] = nil }, common.ErrIncompatibleArtifact},
		{"unknown version", func(d map[string]any) { d["version"] = "9.9" }, common.ErrIncompatibleArtifact},
		{"wrong model type", func(d map[string]any) { d["model"] = "forest" }, common.ErrIncompatibleArtifact},
		{"feature count mismatch", func(d map[string]any) { d["feature_count"] = 30 }, common.ErrIncompatibleArtifact},
		{"unknown emotion list", func(d map[string]any) { d["emotions"] = []string{"Bored"} }, common.ErrIncompatibleArtifact},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := base()
			tt.mutate(doc)
			data, err := json.Marshal(doc)
			require.NoError(t, err)

			_, err = Deserialize(data)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDeserializeToleratesOptionalFields(t *testing.T) {
	a := fitted(t)
	base := func() map[string]any {
		return map[string]any{
			"version":  CurrentVersion,
			"model":    a.Model,
			"scaler":   a.Scaler,
			"accuracy": 0.9,
		}
	}

	tests := []struct {
		name   string
		mutate func(map[string]any)
		check  func(*testing.T, *Artifact)
	}{
		{"epoch created_at", func(d map[string]any) { d["created_at"] = 1.7e9 }, func(t *testing.T, r *Artifact) {
			assert.Equal(t, time.Unix(1700000000, 0).UTC(), r.CreatedAt)
		}},
		{"rfc3339 created_at", func(d map[string]any) { d["created_at"] = "2024-03-01T12:30:00Z" }, func(t *testing.T, r *Artifact) {
			assert.Equal(t, time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC), r.CreatedAt)
		}},
		{"unreadable created_at", func(d map[string]any) { d["created_at"] = "yesterday" }, func(t *testing.T, r *Artifact) {
			assert.False(t, r.CreatedAt.IsZero())
		}},
		{"string feature_count", func(d map[string]any) { d["feature_count"] = "Unknown" }, func(t *testing.T, r *Artifact) {
			assert.Equal(t, 3, r.FeatureCount, "derived from the scaler")
		}},
		{"numeric model_type", func(d map[string]any) { d["model_type"] = 7 }, func(t *testing.T, r *Artifact) {
			assert.Equal(t, ModelTypeUnknown, r.ModelType)
		}},
		{"string training_data_count", func(d map[string]any) { d["training_data_count"] = "many" }, func(t *testing.T, r *Artifact) {
			assert.Zero(t, r.TrainingDataCount)
		}},
		{"mixed feature_names", func(d map[string]any) { d["feature_names"] = []any{"a", 1} }, func(t *testing.T, r *Artifact) {
			assert.Nil(t, r.FeatureNames)
		}},
		{"emotions as string", func(d map[string]any) { d["emotions"] = "Happy" }, func(t *testing.T, r *Artifact) {
			assert.Equal(t, emotion.All(), r.Emotions)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := base()
			tt.mutate(doc)
			data, err := json.Marshal(doc)
			require.NoError(t, err)

			restored, err := Deserialize(data)
			require.NoError(t, err)
			tt.check(t, restored)
		})
	}
}

func TestDeserializeUnknownClass(t *testing.T) {
	a := fitted(t, "Happy", "Bored")
	data, err := json.Marshal(a)
	require.NoError(t, err)

	_, err = Deserialize(data)
	assert.ErrorIs(t, err, common.ErrIncompatibleArtifact)
	assert.Contains(t, err.Error(), "Bored")
}

func TestDeserializeCorrupt(t *testing.T) {
	for name, data := range map[string][]byte{
		"garbage":       []byte("this is not a model"),
		"empty":         nil,
		"bad zstd":      append([]byte{0x28, 0xb5, 0x2f, 0xfd}, 0x00, 0x01, 0x02),
		"json array":    []byte("[1, 2, 3]"),
		"truncated doc": []byte(`{"model": {`),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Deserialize(data)
			assert.ErrorIs(t, err, common.ErrCorruptArtifact)
		})
	}
}

func TestSerializeRequiresModel(t *testing.T) {
	_, err := Serialize(&Artifact{})
	assert.ErrorIs(t, err, common.ErrIncompatibleArtifact)
}

func TestTopFeaturesAndMetadata(t *testing.T) {
	a := fitted(t)

	top := a.TopFeatures(2)
	require.Len(t, top, 2)
	assert.GreaterOrEqual(t, top[0].Importance, top[1].Importance)
	assert.Contains(t, []string{"a", "b", "c"}, top[0].Feature)

	all := a.TopFeatures(0)
	require.Len(t, all, 3)
	total := 0.0
	for _, f := range all {
		total += f.Importance
	}
	assert.InDelta(t, 1, total, 1e-9)

	m := a.Metadata()
	assert.Equal(t, []string{"Angry", "Happy", "Sad"}, m.Classes)
	assert.Equal(t, 10, m.Trees)
	assert.Equal(t, CurrentVersion, m.Fields()["version"])
}
