package app

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/audio-emotion/internal/session"
	"github.com/RyanBlaney/audio-emotion/pkg/emotion"
)

// audioExtensions are the file types picked up from a data directory
var audioExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".flac": true,
	".m4a":  true,
}

// Manifest lists labelled audio files
type Manifest struct {
	Samples []ManifestEntry `yaml:"samples"`
}

// ManifestEntry is one labelled file. Relative paths are resolved against the manifest's directory.
type ManifestEntry struct {
	Path    string `yaml:"path"`
	Emotion string `yaml:"emotion"`
}

// LoadManifest reads a YAML manifest and converts it into batch items
func LoadManifest(path string) ([]session.BatchItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest YAML: %w", err)
	}

	base := filepath.Dir(path)
	items := make([]session.BatchItem, 0, len(manifest.Samples))
	for i, entry := range manifest.Samples {
		if entry.Path == "" {
			return nil, fmt.Errorf("manifest entry %d has no path", i)
		}
		label, err := emotion.Parse(entry.Emotion)
		if err != nil {
			return nil, fmt.Errorf("manifest entry %d (%s): %w", i, entry.Path, err)
		}
		file := entry.Path
		if !filepath.IsAbs(file) {
			file = filepath.Join(base, file)
		}
		items = append(items, session.BatchItem{Path: file, Emotion: label})
	}
	return items, nil
}

// ScanDataDir collects audio files laid out as dir/<emotion>/<file>. Directories that are not
// emotion names are skipped with a warning.
func ScanDataDir(dir string, logger logging.Logger) ([]session.BatchItem, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	var items []session.BatchItem
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		label, err := emotion.Parse(entry.Name())
		if err != nil {
			if logger != nil {
				logger.Warn("Skipping directory that is not an emotion", logging.Fields{
					"directory": entry.Name(),
				})
			}
			continue
		}

		root := filepath.Join(dir, entry.Name())
		var files []string
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && audioExtensions[strings.ToLower(filepath.Ext(path))] {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", root, err)
		}

		sort.Strings(files)
		for _, file := range files {
			items = append(items, session.BatchItem{Path: file, Emotion: label})
		}
	}
	return items, nil
}
