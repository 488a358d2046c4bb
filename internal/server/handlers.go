package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/gin-gonic/gin"

	"github.com/RyanBlaney/audio-emotion/internal/session"
	"github.com/RyanBlaney/audio-emotion/pkg/common"
	"github.com/RyanBlaney/audio-emotion/pkg/emotion"
)

// audioField is the multipart field carrying uploaded audio
const audioField = "audio"

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"model_loaded": s.controller.ActiveModel() != nil,
		"time":         time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	if s.controller.ActiveModel() == nil && !s.config.AllowHeuristic {
		abortWithError(c, http.StatusServiceUnavailable, session.ErrNoModel)
		return
	}

	name, data, err := readUpload(c)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	result, err := s.controller.Predict(ctx, data, name)
	if err != nil {
		s.logger.Warn("Analysis failed", logging.Fields{"file": name, "error": err.Error()})
		abortWithError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleAddSample(c *gin.Context) {
	label, err := emotion.Parse(c.PostForm("emotion"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	name, data, err := readUpload(c)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	sample, err := s.controller.AddSample(ctx, name, data, label)
	if err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":            sample.ID,
		"source":        sample.Source,
		"emotion":       sample.Emotion,
		"feature_count": len(sample.Vector),
		"total_samples": len(s.controller.Samples()),
	})
}

func (s *Server) handleDatasetReport(c *gin.Context) {
	c.JSON(http.StatusOK, s.controller.DatasetReport())
}

func (s *Server) handleClearSamples(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"removed": s.controller.ClearDataset()})
}

func (s *Server) handleTrain(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	result, err := s.controller.Train(ctx)
	if err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"report":   result.Report,
		"metadata": result.Artifact.Metadata(),
	})
}

func (s *Server) handleModelInfo(c *gin.Context) {
	a := s.controller.ActiveModel()
	if a == nil {
		abortWithError(c, http.StatusNotFound, session.ErrNoModel)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"metadata":     a.Metadata(),
		"top_features": a.TopFeatures(15),
	})
}

func (s *Server) handleUploadModel(c *gin.Context) {
	var (
		data []byte
		err  error
	)
	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		_, data, err = readFormFile(c, "model")
	} else {
		data, err = io.ReadAll(c.Request.Body)
	}
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	a, err := s.controller.ImportModel(data)
	if err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"metadata": a.Metadata()})
}

func (s *Server) handleDownloadModel(c *gin.Context) {
	data, err := s.controller.ExportModel()
	if err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="emotion-model.emo"`)
	c.Data(http.StatusOK, "application/zstd", data)
}

func readUpload(c *gin.Context) (string, []byte, error) {
	return readFormFile(c, audioField)
}

func readFormFile(c *gin.Context, field string) (string, []byte, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return "", nil, fmt.Errorf("missing multipart field %q: %w", field, err)
	}
	f, err := header.Open()
	if err != nil {
		return "", nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return "", nil, fmt.Errorf("uploaded file %q is empty", header.Filename)
	}
	return header.Filename, data, nil
}

// statusFor maps pipeline errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNoModel):
		return http.StatusNotFound
	case errors.Is(err, common.ErrDecode), errors.Is(err, common.ErrEmptySignal):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrCorruptArtifact), errors.Is(err, common.ErrIncompatibleArtifact):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, status int, err error) {
	body := gin.H{"error": err.Error()}
	if kind := common.KindOf(err); kind != "" {
		body["kind"] = kind
	}
	c.AbortWithStatusJSON(status, body)
}
