package artifact

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/multierr"

	"github.com/RyanBlaney/audio-emotion/pkg/common"
	"github.com/RyanBlaney/audio-emotion/pkg/emotion"
)

// zstdMagic prefixes every zstd frame
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// requiredFields must be present and non-null in every artifact document
var requiredFields = []string{"model", "scaler", "accuracy"}

// Serialize encodes a as a zstd-compressed JSON document
func Serialize(a *Artifact) ([]byte, error) {
	if a == nil || a.Model == nil || a.Scaler == nil {
		return nil, common.NewError(common.KindIncompatibleArtifact, "serialize", "artifact is missing its model or scaler", nil)
	}

	doc, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to encode artifact: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	out := enc.EncodeAll(doc, nil)
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zstd encoder: %w", err)
	}
	return out, nil
}

// Deserialize decodes an artifact document, compressed or plain JSON. Unparseable input is a
// corrupt artifact; a well-formed document that lacks required fields, has an unknown version,
// or whose model cannot serve the label set is an incompatible artifact. Optional metadata of
// the wrong type is logged and left at its default.
func Deserialize(data []byte) (*Artifact, error) {
	if bytes.HasPrefix(data, zstdMagic) {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		plain, err := dec.DecodeAll(data, nil)
		dec.Close()
		if err != nil {
			return nil, common.NewError(common.KindCorruptArtifact, "deserialize", "compressed payload is damaged", err)
		}
		data = plain
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, common.NewError(common.KindCorruptArtifact, "deserialize", "artifact is not a valid document", err)
	}

	for _, field := range requiredFields {
		raw, ok := doc[field]
		if !ok || isNull(raw) {
			return nil, incompatible(fmt.Sprintf("required field %q is missing", field), nil)
		}
	}

	a := &Artifact{
		Version:   LegacyVersion,
		ModelType: ModelTypeUnknown,
		Emotions:  emotion.All(),
	}

	if err := decodeField(doc, "model", &a.Model); err != nil {
		return nil, err
	}
	if err := decodeField(doc, "scaler", &a.Scaler); err != nil {
		return nil, err
	}
	if err := decodeField(doc, "accuracy", &a.Accuracy); err != nil {
		return nil, err
	}

	logger := logging.WithFields(logging.Fields{
		"component": "artifact",
		"function":  "Deserialize",
	})
	decodeOptional(doc, "version", &a.Version, logger)
	decodeOptional(doc, "training_data_count", &a.TrainingDataCount, logger)
	decodeOptional(doc, "model_type", &a.ModelType, logger)
	decodeOptional(doc, "feature_count", &a.FeatureCount, logger)
	decodeOptional(doc, "evaluated_on_training_data", &a.EvaluatedOnTrainingData, logger)
	decodeOptional(doc, "feature_names", &a.FeatureNames, logger)
	decodeCreatedAt(doc, &a.CreatedAt, logger)

	var names []string
	if decodeOptional(doc, "emotions", &names, logger) {
		labels, err := parseLabels(names)
		if err != nil {
			return nil, err
		}
		a.Emotions = labels
	}

	if !supportedVersions[a.Version] {
		return nil, incompatible(fmt.Sprintf("unsupported artifact version %q", a.Version), nil)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	if err := validate(a); err != nil {
		return nil, err
	}
	if a.FeatureCount == 0 {
		a.FeatureCount = a.Scaler.NFeatures()
	}
	return a, nil
}

// Save writes a to path, replacing any existing file atomically
func Save(path string, a *Artifact) (err error) {
	data, err := Serialize(a)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".artifact-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary artifact file: %w", err)
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, os.Remove(tmp.Name()))
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		err = multierr.Append(fmt.Errorf("failed to write artifact: %w", err), tmp.Close())
		return err
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close artifact file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return nil
}

// Load reads and validates the artifact at path
func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	a, err := Deserialize(data)
	if err != nil {
		var e *common.Error
		if errors.As(err, &e) {
			return nil, e.WithSource(path)
		}
		return nil, err
	}
	return a, nil
}

func decodeField(doc map[string]json.RawMessage, field string, dst any) error {
	if err := json.Unmarshal(doc[field], dst); err != nil {
		return incompatible(fmt.Sprintf("field %q has the wrong type", field), err)
	}
	return nil
}

// decodeOptional decodes an optional field into dst and reports whether it did. A field of the
// wrong type is logged and dst keeps its default.
func decodeOptional[T any](doc map[string]json.RawMessage, field string, dst *T, logger logging.Logger) bool {
	raw, ok := doc[field]
	if !ok || isNull(raw) {
		return false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		logger.Warn("Ignoring artifact field with the wrong type", logging.Fields{
			"field": field,
			"error": err.Error(),
		})
		return false
	}
	*dst = v
	return true
}

// decodeCreatedAt accepts an RFC 3339 string or a Unix timestamp in seconds
func decodeCreatedAt(doc map[string]json.RawMessage, dst *time.Time, logger logging.Logger) {
	raw, ok := doc["created_at"]
	if !ok || isNull(raw) {
		return
	}

	var epoch float64
	if err := json.Unmarshal(raw, &epoch); err == nil {
		sec, frac := math.Modf(epoch)
		*dst = time.Unix(int64(sec), int64(frac*1e9)).UTC()
		return
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, text); err == nil {
			*dst = t.UTC()
			return
		}
	}

	logger.Warn("Ignoring unreadable artifact creation time", logging.Fields{
		"field": "created_at",
		"value": string(raw),
	})
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func validate(a *Artifact) error {
	if err := a.Scaler.Validate(); err != nil {
		return incompatible("scaler is unusable", err)
	}
	if err := a.Model.Validate(); err != nil {
		return incompatible("model is unusable", err)
	}
	if a.Model.NFeatures() != a.Scaler.NFeatures() {
		return incompatible(fmt.Sprintf("model expects %d features but scaler produces %d",
			a.Model.NFeatures(), a.Scaler.NFeatures()), nil)
	}
	if a.FeatureCount != 0 && a.FeatureCount != a.Scaler.NFeatures() {
		return incompatible(fmt.Sprintf("feature_count %d does not match the scaler's %d features",
			a.FeatureCount, a.Scaler.NFeatures()), nil)
	}
	if _, err := parseLabels(a.Model.Classes()); err != nil {
		return err
	}
	return nil
}

func parseLabels(names []string) ([]emotion.Emotion, error) {
	labels := make([]emotion.Emotion, 0, len(names))
	for _, name := range names {
		e := emotion.Emotion(name)
		if !e.Valid() {
			return nil, incompatible(fmt.Sprintf("class %q is not a known emotion", name), nil)
		}
		labels = append(labels, e)
	}
	return labels, nil
}

func incompatible(message string, cause error) error {
	return common.NewError(common.KindIncompatibleArtifact, "deserialize", message, cause)
}
