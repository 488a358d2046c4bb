package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/audio-emotion/internal/app"
)

var (
	configFile   string
	verbose      bool
	logLevel     string
	outputFormat string
	outputFile   string
	configDir    string
	dataDir      string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "audio-emotion",
	Short: "Audio emotion classification toolkit",
	Long: `Extracts acoustic features from audio clips and classifies the emotion they convey.

Clips are decoded to mono PCM, summarised as MFCC, spectral, chroma, tempo and
energy descriptors, and classified by a random forest trained on labelled
examples. Without a trained model a deterministic heuristic is used instead.

Key features:
- WAV, MP3 and FLAC decoding with a transcoding fallback for other containers
- Training from a YAML manifest or a directory per emotion
- Self-describing compressed model artifacts
- HTTP API for analysis, sample collection and training`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "",
		"config directory (default is $HOME/.config/audio-emotion)")

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default is $HOME/.config/audio-emotion/audio-emotion.yaml)")

	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "",
		"data directory (default is $HOME/.local/share/audio-emotion)")

	// Output and logging flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table",
		"output format (json, table, csv, yaml)")
	rootCmd.PersistentFlags().StringVar(&outputFile, "output-file", "",
		"write results to a file instead of stdout")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("output_format", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("config_dir", rootCmd.PersistentFlags().Lookup("config-dir"))
	viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if configFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(configFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}

		// Search config in home directory and /etc
		viper.AddConfigPath(home)
		viper.AddConfigPath(filepath.Join(home, ".config", "audio-emotion"))
		viper.AddConfigPath("/etc/audio-emotion")
		viper.AddConfigPath("./configs")
		viper.SetConfigName("audio-emotion")
		viper.SetConfigType("yaml")
	}

	// Environment variable support
	viper.SetEnvPrefix("AUDIO_EMOTION")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	// Set default values
	setDefaults()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}
}

// initializeConfig initializes configuration after flags are parsed
func initializeConfig(cmd *cobra.Command) error {
	// Bind all flags to viper
	return bindFlags(cmd, viper.GetViper())
}

// flagKeys maps command flags onto nested configuration keys
var flagKeys = map[string]string{
	"model":           "model.path",
	"addr":            "server.addr",
	"allow-heuristic": "server.allow_heuristic",
	"log-file":        "logging.file",
	"metrics":         "logging.metrics",
	"workers":         "training.workers",
	"estimators":      "training.estimators",
	"seed":            "training.seed",
}

// configKey returns the configuration key a flag is bound to
func configKey(name string) string {
	if key, ok := flagKeys[name]; ok {
		return key
	}
	return name
}

// bindFlags binds each cobra flag to its associated viper configuration
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var lastErr error

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key := configKey(f.Name)

		// Environment variable name
		envVarSuffix := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))

		// Apply the viper config value to the flag when the flag is not set and viper has a value
		if !f.Changed && v.IsSet(key) {
			val := v.Get(key)
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				lastErr = err
			}
		}

		// Bind the flag to viper
		if err := v.BindPFlag(key, f); err != nil {
			lastErr = err
		}

		// Bind to environment variable
		if err := v.BindEnv(key, "AUDIO_EMOTION_"+envVarSuffix); err != nil {
			lastErr = err
		}
	})

	return lastErr
}

// setDefaults sets the directory defaults; component defaults live in configs
func setDefaults() {
	home, _ := os.UserHomeDir()
	viper.SetDefault("config_dir", filepath.Join(home, ".config", "audio-emotion"))
	viper.SetDefault("data_dir", filepath.Join(home, ".local", "share", "audio-emotion"))
}

// newAppContext builds the application context shared by the subcommands
func newAppContext(modelPath string) *app.Context {
	return &app.Context{
		OutputFile:   outputFile,
		OutputFormat: viper.GetString("output_format"),
		ModelPath:    modelPath,
		Verbose:      viper.GetBool("verbose"),
	}
}

// runWithApp creates the application and runs fn with a context cancelled on interrupt
func runWithApp(appCtx *app.Context, fn func(ctx context.Context, a *app.EmotionApp) error) error {
	a, err := app.NewEmotionApp(appCtx)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, a)
}

// GetConfig returns the current viper instance
func GetConfig() *viper.Viper {
	return viper.GetViper()
}
