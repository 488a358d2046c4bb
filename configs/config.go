package configs

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	// Application settings
	Verbose      bool   `mapstructure:"verbose"`
	LogLevel     string `mapstructure:"log_level"`
	OutputFormat string `mapstructure:"output_format"`

	// Audio decoding configuration
	Audio AudioConfig `mapstructure:"audio"`

	// Feature extraction configuration
	Features FeatureConfig `mapstructure:"features"`

	// Training configuration
	Training TrainingConfig `mapstructure:"training"`

	// Heuristic fallback configuration
	Heuristic HeuristicConfig `mapstructure:"heuristic"`

	// Model artifact configuration
	Model ModelConfig `mapstructure:"model"`

	// HTTP server configuration
	Server ServerConfig `mapstructure:"server"`

	// Log writer configuration
	Logging LoggingConfig `mapstructure:"logging"`
}

// AudioConfig contains audio decoding settings
type AudioConfig struct {
	SampleRate   int           `mapstructure:"sample_rate"`
	MaxDuration  time.Duration `mapstructure:"max_duration"`
	SilenceFloor float64       `mapstructure:"silence_floor"`
	ContentType  string        `mapstructure:"content_type"` // Content hint for the transcode fallback
}

// FeatureConfig contains feature extraction settings
type FeatureConfig struct {
	FrameSize        int     `mapstructure:"frame_size"`
	HopSize          int     `mapstructure:"hop_size"`
	MFCCCoefficients int     `mapstructure:"mfcc_coefficients"`
	MelBands         int     `mapstructure:"mel_bands"`
	TopDB            float64 `mapstructure:"top_db"`
	RolloffPercent   float64 `mapstructure:"rolloff_percent"`
	ChromaMinFreq    float64 `mapstructure:"chroma_min_freq"`
	ChromaMaxFreq    float64 `mapstructure:"chroma_max_freq"`
	MinTempo         float64 `mapstructure:"min_tempo"`
	MaxTempo         float64 `mapstructure:"max_tempo"`
	PriorTempo       float64 `mapstructure:"prior_tempo"`
}

// TrainingConfig contains classifier training settings
type TrainingConfig struct {
	Estimators      int     `mapstructure:"estimators"`
	TestFraction    float64 `mapstructure:"test_fraction"`
	Seed            uint64  `mapstructure:"seed"`
	MinSamples      int     `mapstructure:"min_samples"`
	MaxDepth        int     `mapstructure:"max_depth"`
	MinSamplesSplit int     `mapstructure:"min_samples_split"`
	Workers         int     `mapstructure:"workers"`
	ImportanceTopN  int     `mapstructure:"importance_top_n"`
}

// HeuristicConfig contains the thresholds of the untrained fallback predictor
type HeuristicConfig struct {
	CentroidThreshold float64 `mapstructure:"centroid_threshold"`
	EnergyThreshold   float64 `mapstructure:"energy_threshold"`
	FastTempo         float64 `mapstructure:"fast_tempo"`
	SlowTempo         float64 `mapstructure:"slow_tempo"`
	NoiseSigma        float64 `mapstructure:"noise_sigma"`
	ProbabilityFloor  float64 `mapstructure:"probability_floor"`
	MinConfidence     float64 `mapstructure:"min_confidence"`
	MaxConfidence     float64 `mapstructure:"max_confidence"`
}

// ModelConfig contains model artifact settings
type ModelConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	Mode           string        `mapstructure:"mode"`
	AllowHeuristic bool          `mapstructure:"allow_heuristic"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LoggingConfig contains log writer settings
type LoggingConfig struct {
	File    string `mapstructure:"file"`
	Metrics bool   `mapstructure:"metrics"`
}

// LoadConfig loads configuration from the global viper instance
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(viper.GetViper())
}

// LoadConfigFrom loads configuration from v, filling unset keys with defaults
func LoadConfigFrom(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}

	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// ValidateConfig validates the configuration
func ValidateConfig(config *Config) error {
	if config.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio sample rate must be positive")
	}

	if config.Audio.MaxDuration <= 0 {
		return fmt.Errorf("audio max duration must be positive")
	}

	if config.Audio.SilenceFloor < 0 {
		return fmt.Errorf("silence floor cannot be negative")
	}

	if config.Features.FrameSize <= 0 || config.Features.FrameSize&(config.Features.FrameSize-1) != 0 {
		return fmt.Errorf("frame size must be a positive power of two")
	}

	if config.Features.HopSize <= 0 || config.Features.HopSize > config.Features.FrameSize {
		return fmt.Errorf("hop size must be positive and no larger than the frame size")
	}

	if config.Features.MFCCCoefficients <= 0 || config.Features.MFCCCoefficients > config.Features.MelBands {
		return fmt.Errorf("mfcc coefficients must be between 1 and the number of mel bands")
	}

	if config.Features.RolloffPercent <= 0 || config.Features.RolloffPercent >= 1 {
		return fmt.Errorf("rolloff percent must be between 0 and 1")
	}

	if config.Features.MinTempo <= 0 || config.Features.MaxTempo <= config.Features.MinTempo {
		return fmt.Errorf("tempo range must be positive and increasing")
	}

	if config.Training.Estimators <= 0 {
		return fmt.Errorf("training estimators must be positive")
	}

	if config.Training.TestFraction <= 0 || config.Training.TestFraction >= 1 {
		return fmt.Errorf("test fraction must be between 0 and 1")
	}

	if config.Training.MinSamples < 2 {
		return fmt.Errorf("training requires a minimum of at least 2 samples")
	}

	if config.Heuristic.MinConfidence <= 0 || config.Heuristic.MaxConfidence > 1 ||
		config.Heuristic.MaxConfidence < config.Heuristic.MinConfidence {
		return fmt.Errorf("heuristic confidence range must lie within (0, 1]")
	}

	if config.Heuristic.ProbabilityFloor <= 0 {
		return fmt.Errorf("heuristic probability floor must be positive")
	}

	if config.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server max upload bytes must be positive")
	}

	return nil
}
