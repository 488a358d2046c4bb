package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"

	"github.com/RyanBlaney/audio-emotion/configs"
	"github.com/RyanBlaney/audio-emotion/internal/session"
	"github.com/RyanBlaney/audio-emotion/internal/testutil"
)

type ServerTestSuite struct {
	suite.Suite
	config  *configs.Config
	handler http.Handler
	low     []byte
	high    []byte
}

func (s *ServerTestSuite) SetupSuite() {
	s.low = testutil.MustEncodeWAV(testutil.Sine(220, 0.05, 0.5, 22050), 22050, 1)
	s.high = testutil.MustEncodeWAV(testutil.Sine(3000, 0.5, 0.5, 22050), 22050, 1)
}

func (s *ServerTestSuite) SetupTest() {
	s.config = configs.GetDefaultConfig()
	s.config.Server.Mode = gin.TestMode
	s.rebuild()
}

func (s *ServerTestSuite) rebuild() {
	controller, err := session.NewController(s.config)
	s.Require().NoError(err)
	s.handler = New(s.config, controller).Handler()
}

func (s *ServerTestSuite) upload(method, path, field, filename string, data []byte, fields map[string]string) *httptest.ResponseRecorder {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		s.Require().NoError(w.WriteField(k, v))
	}
	if field != "" {
		part, err := w.CreateFormFile(field, filename)
		s.Require().NoError(err)
		_, err = part.Write(data)
		s.Require().NoError(err)
	}
	s.Require().NoError(w.Close())

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *ServerTestSuite) do(method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *ServerTestSuite) decode(rec *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *ServerTestSuite) TestHealth() {
	rec := s.do(http.MethodGet, "/healthz", nil)
	s.Equal(http.StatusOK, rec.Code)
	body := s.decode(rec)
	s.Equal("ok", body["status"])
	s.Equal(false, body["model_loaded"])
}

func (s *ServerTestSuite) TestAnalyzeWithoutModel() {
	rec := s.upload(http.MethodPost, "/analyze/audio", "audio", "clip.wav", s.high, nil)
	s.Equal(http.StatusServiceUnavailable, rec.Code)
	s.Contains(s.decode(rec)["error"], "no trained model")
}

func (s *ServerTestSuite) TestAnalyzeWithHeuristic() {
	s.config.Server.AllowHeuristic = true
	s.rebuild()

	rec := s.upload(http.MethodPost, "/analyze/audio", "audio", "clip.wav", s.high, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	body := s.decode(rec)
	s.Equal("heuristic", body["model_used"])
	s.NotEmpty(body["emotion"])
	s.Len(body["probabilities"], 7)
	features, ok := body["features"].(map[string]any)
	s.Require().True(ok)
	for _, key := range []string{"spectral_centroid", "spectral_rolloff", "zero_crossing_rate", "tempo", "rms_energy"} {
		s.Contains(features, key)
	}

	rec = s.upload(http.MethodPost, "/analyze/audio", "audio", "clip.wav", []byte("not audio"), nil)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("DECODE_FAILED", s.decode(rec)["kind"])

	rec = s.upload(http.MethodPost, "/analyze/audio", "audio", "silence.wav", testutil.MustEncodeWAV(make([]float64, 4096), 22050, 1), nil)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("EMPTY_SIGNAL", s.decode(rec)["kind"])

	rec = s.upload(http.MethodPost, "/analyze/audio", "", "", nil, map[string]string{"other": "x"})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerTestSuite) TestTrainingWorkflow() {
	rec := s.upload(http.MethodPost, "/training/samples", "audio", "low.wav", s.low, map[string]string{"emotion": "sad"})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	s.Equal("Sad", s.decode(rec)["emotion"])

	rec = s.upload(http.MethodPost, "/training/samples", "audio", "high.wav", s.high, map[string]string{"emotion": "Happy"})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.upload(http.MethodPost, "/training/samples", "audio", "high.wav", s.high, map[string]string{"emotion": "bored"})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/training/samples", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(float64(2), s.decode(rec)["total_samples"])

	rec = s.do(http.MethodGet, "/model", nil)
	s.Equal(http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, "/training/train", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	report, ok := s.decode(rec)["report"].(map[string]any)
	s.Require().True(ok)
	s.Equal(float64(1), report["accuracy"])
	s.Equal(true, report["evaluated_on_training_data"])

	rec = s.do(http.MethodGet, "/model", nil)
	s.Equal(http.StatusOK, rec.Code)

	rec = s.upload(http.MethodPost, "/analyze/audio", "audio", "clip.wav", s.high, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Equal("trained", s.decode(rec)["model_used"])

	rec = s.do(http.MethodGet, "/model/artifact", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	artifactBytes := rec.Body.Bytes()
	s.NotEmpty(artifactBytes)

	rec = s.do(http.MethodDelete, "/training/samples", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(float64(2), s.decode(rec)["removed"])

	// a fresh server accepts the exported artifact
	s.rebuild()
	rec = s.do(http.MethodPut, "/model", artifactBytes)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.upload(http.MethodPut, "/model", "model", "model.emo", artifactBytes, nil)
	s.Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPut, "/model", []byte("garbage"))
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	s.Equal("CORRUPT_ARTIFACT", s.decode(rec)["kind"])
}

func (s *ServerTestSuite) TestTrainWithoutSamples() {
	rec := s.do(http.MethodPost, "/training/train", nil)
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	s.Equal("INSUFFICIENT_DATA", s.decode(rec)["kind"])

	rec = s.do(http.MethodGet, "/model/artifact", nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}
