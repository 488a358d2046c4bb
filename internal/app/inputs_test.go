package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/audio-emotion/pkg/emotion"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "manifest.yaml")
	writeFile(t, manifest, []byte(`samples:
  - path: clips/a.wav
    emotion: happy
  - path: /abs/b.mp3
    emotion: SAD
`))

	items, err := LoadManifest(manifest)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, filepath.Join(dir, "clips", "a.wav"), items[0].Path)
	assert.Equal(t, emotion.Happy, items[0].Emotion)
	assert.Equal(t, "/abs/b.mp3", items[1].Path)
	assert.Equal(t, emotion.Sad, items[1].Emotion)
}

func TestLoadManifestErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadManifest(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	writeFile(t, bad, []byte("samples:\n  - path: a.wav\n    emotion: bored\n"))
	_, err = LoadManifest(bad)
	assert.ErrorContains(t, err, "unknown emotion")

	nopath := filepath.Join(dir, "nopath.yaml")
	writeFile(t, nopath, []byte("samples:\n  - emotion: happy\n"))
	_, err = LoadManifest(nopath)
	assert.ErrorContains(t, err, "no path")

	broken := filepath.Join(dir, "broken.yaml")
	writeFile(t, broken, []byte("samples: [unterminated"))
	_, err = LoadManifest(broken)
	assert.Error(t, err)
}

func TestScanDataDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "happy", "b.wav"), []byte("x"))
	writeFile(t, filepath.Join(dir, "happy", "a.MP3"), []byte("x"))
	writeFile(t, filepath.Join(dir, "happy", "notes.txt"), []byte("x"))
	writeFile(t, filepath.Join(dir, "Sad", "nested", "c.flac"), []byte("x"))
	writeFile(t, filepath.Join(dir, "misc", "d.wav"), []byte("x"))
	writeFile(t, filepath.Join(dir, "top.wav"), []byte("x"))

	items, err := ScanDataDir(dir, nil)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, filepath.Join(dir, "Sad", "nested", "c.flac"), items[0].Path)
	assert.Equal(t, emotion.Sad, items[0].Emotion)
	assert.Equal(t, filepath.Join(dir, "happy", "a.MP3"), items[1].Path)
	assert.Equal(t, filepath.Join(dir, "happy", "b.wav"), items[2].Path)
	assert.Equal(t, emotion.Happy, items[2].Emotion)

	_, err = ScanDataDir(filepath.Join(dir, "missing"), nil)
	assert.Error(t, err)
}
