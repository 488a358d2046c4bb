package configs

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults sets default configuration values for all components
func setDefaults(v *viper.Viper) {
	def := GetDefaultConfig()

	// Application defaults
	if !v.IsSet("log_level") {
		v.Set("log_level", def.LogLevel)
	}
	if !v.IsSet("output_format") {
		v.Set("output_format", def.OutputFormat)
	}

	// Audio decoding defaults
	if !v.IsSet("audio.sample_rate") {
		v.Set("audio.sample_rate", def.Audio.SampleRate)
	}
	if !v.IsSet("audio.max_duration") {
		v.Set("audio.max_duration", def.Audio.MaxDuration)
	}
	if !v.IsSet("audio.silence_floor") {
		v.Set("audio.silence_floor", def.Audio.SilenceFloor)
	}
	if !v.IsSet("audio.content_type") {
		v.Set("audio.content_type", def.Audio.ContentType)
	}

	// Feature extraction defaults
	if !v.IsSet("features.frame_size") {
		v.Set("features.frame_size", def.Features.FrameSize)
	}
	if !v.IsSet("features.hop_size") {
		v.Set("features.hop_size", def.Features.HopSize)
	}
	if !v.IsSet("features.mfcc_coefficients") {
		v.Set("features.mfcc_coefficients", def.Features.MFCCCoefficients)
	}
	if !v.IsSet("features.mel_bands") {
		v.Set("features.mel_bands", def.Features.MelBands)
	}
	if !v.IsSet("features.top_db") {
		v.Set("features.top_db", def.Features.TopDB)
	}
	if !v.IsSet("features.rolloff_percent") {
		v.Set("features.rolloff_percent", def.Features.RolloffPercent)
	}
	if !v.IsSet("features.chroma_min_freq") {
		v.Set("features.chroma_min_freq", def.Features.ChromaMinFreq)
	}
	if !v.IsSet("features.chroma_max_freq") {
		v.Set("features.chroma_max_freq", def.Features.ChromaMaxFreq)
	}
	if !v.IsSet("features.min_tempo") {
		v.Set("features.min_tempo", def.Features.MinTempo)
	}
	if !v.IsSet("features.max_tempo") {
		v.Set("features.max_tempo", def.Features.MaxTempo)
	}
	if !v.IsSet("features.prior_tempo") {
		v.Set("features.prior_tempo", def.Features.PriorTempo)
	}

	// Training defaults
	if !v.IsSet("training.estimators") {
		v.Set("training.estimators", def.Training.Estimators)
	}
	if !v.IsSet("training.test_fraction") {
		v.Set("training.test_fraction", def.Training.TestFraction)
	}
	if !v.IsSet("training.seed") {
		v.Set("training.seed", def.Training.Seed)
	}
	if !v.IsSet("training.min_samples") {
		v.Set("training.min_samples", def.Training.MinSamples)
	}
	if !v.IsSet("training.max_depth") {
		v.Set("training.max_depth", def.Training.MaxDepth)
	}
	if !v.IsSet("training.min_samples_split") {
		v.Set("training.min_samples_split", def.Training.MinSamplesSplit)
	}
	if !v.IsSet("training.workers") {
		v.Set("training.workers", def.Training.Workers)
	}
	if !v.IsSet("training.importance_top_n") {
		v.Set("training.importance_top_n", def.Training.ImportanceTopN)
	}

	setHeuristicDefaults(v, def.Heuristic)

	// Server defaults
	if !v.IsSet("server.addr") {
		v.Set("server.addr", def.Server.Addr)
	}
	if !v.IsSet("server.mode") {
		v.Set("server.mode", def.Server.Mode)
	}
	if !v.IsSet("server.allow_heuristic") {
		v.Set("server.allow_heuristic", def.Server.AllowHeuristic)
	}
	if !v.IsSet("server.max_upload_bytes") {
		v.Set("server.max_upload_bytes", def.Server.MaxUploadBytes)
	}
	if !v.IsSet("server.read_timeout") {
		v.Set("server.read_timeout", def.Server.ReadTimeout)
	}
	if !v.IsSet("server.write_timeout") {
		v.Set("server.write_timeout", def.Server.WriteTimeout)
	}
	if !v.IsSet("server.request_timeout") {
		v.Set("server.request_timeout", def.Server.RequestTimeout)
	}
}

// setHeuristicDefaults sets the fallback predictor thresholds
func setHeuristicDefaults(v *viper.Viper, def HeuristicConfig) {
	if !v.IsSet("heuristic.centroid_threshold") {
		v.Set("heuristic.centroid_threshold", def.CentroidThreshold)
	}
	if !v.IsSet("heuristic.energy_threshold") {
		v.Set("heuristic.energy_threshold", def.EnergyThreshold)
	}
	if !v.IsSet("heuristic.fast_tempo") {
		v.Set("heuristic.fast_tempo", def.FastTempo)
	}
	if !v.IsSet("heuristic.slow_tempo") {
		v.Set("heuristic.slow_tempo", def.SlowTempo)
	}
	if !v.IsSet("heuristic.noise_sigma") {
		v.Set("heuristic.noise_sigma", def.NoiseSigma)
	}
	if !v.IsSet("heuristic.probability_floor") {
		v.Set("heuristic.probability_floor", def.ProbabilityFloor)
	}
	if !v.IsSet("heuristic.min_confidence") {
		v.Set("heuristic.min_confidence", def.MinConfidence)
	}
	if !v.IsSet("heuristic.max_confidence") {
		v.Set("heuristic.max_confidence", def.MaxConfidence)
	}
}

// GetDefaultConfig returns a Config struct with all default values set
func GetDefaultConfig() *Config {
	return &Config{
		Verbose:      false,
		LogLevel:     "info",
		OutputFormat: "table",

		Audio:     GetDefaultAudioConfig(),
		Features:  GetDefaultFeatureConfig(),
		Training:  GetDefaultTrainingConfig(),
		Heuristic: GetDefaultHeuristicConfig(),
		Server:    GetDefaultServerConfig(),
	}
}

// GetDefaultAudioConfig returns default audio decoding settings
func GetDefaultAudioConfig() AudioConfig {
	return AudioConfig{
		SampleRate:   22050,
		MaxDuration:  30 * time.Second,
		SilenceFloor: 1e-4,
		ContentType:  "music",
	}
}

// GetDefaultFeatureConfig returns default feature extraction settings
func GetDefaultFeatureConfig() FeatureConfig {
	return FeatureConfig{
		FrameSize:        2048,
		HopSize:          512,
		MFCCCoefficients: 13,
		MelBands:         128,
		TopDB:            80,
		RolloffPercent:   0.85,
		ChromaMinFreq:    65.4, // C2
		ChromaMaxFreq:    8000,
		MinTempo:         30,
		MaxTempo:         300,
		PriorTempo:       120,
	}
}

// GetDefaultTrainingConfig returns default training settings
func GetDefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Estimators:      100,
		TestFraction:    0.2,
		Seed:            42,
		MinSamples:      2,
		MaxDepth:        0, // unlimited
		MinSamplesSplit: 2,
		Workers:         4,
		ImportanceTopN:  15,
	}
}

// GetDefaultHeuristicConfig returns default fallback predictor thresholds
func GetDefaultHeuristicConfig() HeuristicConfig {
	return HeuristicConfig{
		CentroidThreshold: 2000,
		EnergyThreshold:   0.1,
		FastTempo:         120,
		SlowTempo:         80,
		NoiseSigma:        0.1,
		ProbabilityFloor:  0.01,
		MinConfidence:     0.4,
		MaxConfidence:     0.8,
	}
}

// GetDefaultServerConfig returns default HTTP server settings
func GetDefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:           ":8000",
		Mode:           "release",
		AllowHeuristic: false,
		MaxUploadBytes: 50 << 20,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
		RequestTimeout: 60 * time.Second,
	}
}
