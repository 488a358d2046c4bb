package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigKey(t *testing.T) {
	assert.Equal(t, "model.path", configKey("model"))
	assert.Equal(t, "server.allow_heuristic", configKey("allow-heuristic"))
	assert.Equal(t, "manifest", configKey("manifest"))
}

func TestBindFlagsAppliesConfigValues(t *testing.T) {
	v := viper.New()
	v.Set("server.addr", ":9100")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("addr", ":8000", "")
	cmd.Flags().String("model", "", "")
	require.NoError(t, cmd.Flags().Set("model", "flag.emo"))

	require.NoError(t, bindFlags(cmd, v))

	addr, err := cmd.Flags().GetString("addr")
	require.NoError(t, err)
	assert.Equal(t, ":9100", addr)
	assert.Equal(t, "flag.emo", v.GetString("model.path"))
}

func TestLoadItemsFromDataDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "angry"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "angry", "a.wav"), []byte("x"), 0o644))

	previous := dataDir
	dataDir = dir
	t.Cleanup(func() { dataDir = previous })

	items, err := loadItems("")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Angry", string(items[0].Emotion))
}
