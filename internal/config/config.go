// Package config loads application configuration and initializes the
// global logger. Every knob that affects scoring lives here so a ranking
// run is fully reproducible from a stated configuration record.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Classifier ClassifierConfig `yaml:"classifier" mapstructure:"classifier"`
	Match      MatchConfig      `yaml:"match" mapstructure:"match"`
	Redirect   RedirectConfig   `yaml:"redirect" mapstructure:"redirect"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ScoringConfig holds the composite-score weights and transforms.
// Weights must each be in [0,1] and sum to 1.0; the score package
// validates this before any scoring starts.
type ScoringConfig struct {
	DistanceWeight   float64 `yaml:"distance_weight" mapstructure:"distance_weight"`
	UrgencyWeight    float64 `yaml:"urgency_weight" mapstructure:"urgency_weight"`
	ComplianceWeight float64 `yaml:"compliance_weight" mapstructure:"compliance_weight"`
	QualityWeight    float64 `yaml:"quality_weight" mapstructure:"quality_weight"`

	Urgency  UrgencyWeights    `yaml:"urgency" mapstructure:"urgency"`
	Distance DistanceTransform `yaml:"distance" mapstructure:"distance"`

	// DistanceFallback and QualityFallback name the policy applied when
	// the input is absent: "neutral", "worst", "best", or (distance
	// only) "undefined" to leave the composite score undefined.
	DistanceFallback string `yaml:"distance_fallback" mapstructure:"distance_fallback"`
	QualityFallback  string `yaml:"quality_fallback" mapstructure:"quality_fallback"`
}

// UrgencyWeights maps each urgency tier to its sub-score in [0,1].
// Unknown is its own explicit tier: postings with no recorded urgency
// must not silently score like green ones.
type UrgencyWeights struct {
	Red     float64 `yaml:"red" mapstructure:"red"`
	Orange  float64 `yaml:"orange" mapstructure:"orange"`
	Green   float64 `yaml:"green" mapstructure:"green"`
	Unknown float64 `yaml:"unknown" mapstructure:"unknown"`
}

// DistanceTransform selects the decreasing curve turning kilometers into
// a [0,1] sub-score.
//
//   - "step": production tiers: under NearKM scores 1.0, under MidKM
//     0.8, under FarKM 0.5, beyond that the floor.
//   - "linear": 1 - d/CutoffKM, clamped at the floor past the cutoff.
//   - "exp": 2^(-d/HalfDistanceKM), clamped at the floor.
type DistanceTransform struct {
	Curve          string  `yaml:"curve" mapstructure:"curve"`
	NearKM         float64 `yaml:"near_km" mapstructure:"near_km"`
	MidKM          float64 `yaml:"mid_km" mapstructure:"mid_km"`
	FarKM          float64 `yaml:"far_km" mapstructure:"far_km"`
	CutoffKM       float64 `yaml:"cutoff_km" mapstructure:"cutoff_km"`
	HalfDistanceKM float64 `yaml:"half_distance_km" mapstructure:"half_distance_km"`
	Floor          float64 `yaml:"floor" mapstructure:"floor"`
}

// ClassifierConfig configures the diploma classifier.
type ClassifierConfig struct {
	// RulesPath points at a YAML rule table replacing the built-in one.
	RulesPath string `yaml:"rules_path" mapstructure:"rules_path"`
}

// MatchConfig configures the ranking fan-out.
type MatchConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// RedirectConfig configures the redirect radar.
type RedirectConfig struct {
	MinCurrentKM float64 `yaml:"min_current_km" mapstructure:"min_current_km"`
	RadiusKM     float64 `yaml:"radius_km" mapstructure:"radius_km"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GRANDIR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "grandir.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("match.workers", 8)
	v.SetDefault("redirect.min_current_km", 10)
	v.SetDefault("redirect.radius_km", 5)

	v.SetDefault("scoring.distance_weight", 0.30)
	v.SetDefault("scoring.urgency_weight", 0.30)
	v.SetDefault("scoring.compliance_weight", 0.20)
	v.SetDefault("scoring.quality_weight", 0.20)
	v.SetDefault("scoring.urgency.red", 1.0)
	v.SetDefault("scoring.urgency.orange", 0.66)
	v.SetDefault("scoring.urgency.green", 0.33)
	v.SetDefault("scoring.urgency.unknown", 0.0)
	v.SetDefault("scoring.distance.curve", "step")
	v.SetDefault("scoring.distance.near_km", 3)
	v.SetDefault("scoring.distance.mid_km", 10)
	v.SetDefault("scoring.distance.far_km", 20)
	v.SetDefault("scoring.distance.cutoff_km", 30)
	v.SetDefault("scoring.distance.half_distance_km", 10)
	v.SetDefault("scoring.distance.floor", 0.0)
	v.SetDefault("scoring.distance_fallback", "neutral")
	v.SetDefault("scoring.quality_fallback", "neutral")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
