package app

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/RyanBlaney/latency-benchmark-common/output"
)

// newFormatter returns the formatter for format, falling back to JSON
func newFormatter(format string) output.Formatter {
	switch strings.ToLower(format) {
	case "json":
		return &output.JSONFormatter{}
	case "yaml":
		return &output.YAMLFormatter{}
	case "csv":
		return &output.CSVFormatter{}
	case "table":
		return &output.TableFormatter{}
	default:
		return &output.JSONFormatter{}
	}
}

// output formats data and writes it to the output file or stdout
func (app *EmotionApp) output(data map[string]any) error {
	formatted, err := newFormatter(app.ctx.OutputFormat).Format(sanitize(data), true)
	if err != nil {
		return fmt.Errorf("failed to format output data: %w", err)
	}

	if app.ctx.OutputFile != "" {
		return app.writeToFile(formatted)
	}
	_, err = os.Stdout.Write(formatted)
	return err
}

// writeToFile writes data to the specified output file
func (app *EmotionApp) writeToFile(data []byte) error {
	dir := filepath.Dir(app.ctx.OutputFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(app.ctx.OutputFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	app.logger.Debug("Results written to file", logging.Fields{
		"output_file": app.ctx.OutputFile,
		"size_bytes":  len(data),
	})
	return nil
}

// sanitize replaces infinite and NaN values, which JSON cannot encode, with zero
func sanitize(data any) any {
	switch v := data.(type) {
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return 0.0
		}
		return v
	case map[string]any:
		result := make(map[string]any, len(v))
		for k, val := range v {
			result[k] = sanitize(val)
		}
		return result
	case map[string]float64:
		result := make(map[string]float64, len(v))
		for k, val := range v {
			result[k] = sanitize(val).(float64)
		}
		return result
	case []map[string]any:
		result := make([]map[string]any, len(v))
		for i, val := range v {
			result[i] = sanitize(val).(map[string]any)
		}
		return result
	case []float64:
		result := make([]float64, len(v))
		for i, val := range v {
			result[i] = sanitize(val).(float64)
		}
		return result
	default:
		return data
	}
}
