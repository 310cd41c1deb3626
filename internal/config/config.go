// Package config loads the benchmark configuration from file and
// environment and bootstraps the global logger.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/caldarium/qa-bench/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	OutputDir      string           `yaml:"output_dir" mapstructure:"output_dir"`
	Seed           int64            `yaml:"seed" mapstructure:"seed"`
	Engines        []string         `yaml:"engines" mapstructure:"engines"`
	Workers        int              `yaml:"workers" mapstructure:"workers"`
	DocTimeoutSecs int              `yaml:"doc_timeout_secs" mapstructure:"doc_timeout_secs"`
	Legibility     float64          `yaml:"legibility_threshold" mapstructure:"legibility_threshold"`
	Thresholds     ThresholdConfig  `yaml:"thresholds" mapstructure:"thresholds"`
	Dedupe         DedupeConfig     `yaml:"dedupe" mapstructure:"dedupe"`
	Log            LogConfig        `yaml:"log" mapstructure:"log"`
	DocumentTypes  []TypeConfig     `yaml:"document_types" mapstructure:"document_types"`
}

// TypeConfig describes one document type's corpus and schema.
type TypeConfig struct {
	Name           string            `yaml:"name" mapstructure:"name"`
	PayloadDir     string            `yaml:"payload_dir" mapstructure:"payload_dir"`
	GroundTruthDir string            `yaml:"ground_truth_dir" mapstructure:"ground_truth_dir"`
	SchemaPath     string            `yaml:"schema_path" mapstructure:"schema_path"`
	Fields         []model.FieldSpec `yaml:"fields" mapstructure:"fields"`
}

// ThresholdConfig holds the quality bars metric results are judged against.
type ThresholdConfig struct {
	HybridKappa    float64  `yaml:"hybrid_kappa" mapstructure:"hybrid_kappa"`
	CriticalF1     float64  `yaml:"critical_f1" mapstructure:"critical_f1"`
	CriticalFields []string `yaml:"critical_fields" mapstructure:"critical_fields"`
}

// DedupeConfig configures the duplicate pass.
type DedupeConfig struct {
	MergeThreshold float64 `yaml:"merge_threshold" mapstructure:"merge_threshold"`
	ReviewFloor    float64 `yaml:"review_floor" mapstructure:"review_floor"`
	WeightsFile    string  `yaml:"weights_file" mapstructure:"weights_file"`
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
	v.SetEnvPrefix("QABENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("output_dir", "benchmark_output")
	v.SetDefault("seed", 42)
	v.SetDefault("workers", 4)
	v.SetDefault("doc_timeout_secs", 30)
	v.SetDefault("legibility_threshold", 0.55)
	v.SetDefault("thresholds.hybrid_kappa", 0.85)
	v.SetDefault("thresholds.critical_f1", 0.90)
	v.SetDefault("dedupe.merge_threshold", 0.92)
	v.SetDefault("dedupe.review_floor", 0.75)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate reports fatal configuration errors. These abort the run before
// any document is evaluated; per-document failures never do.
func (c *Config) Validate() error {
	if c.Dedupe.MergeThreshold < 0 || c.Dedupe.MergeThreshold > 1 {
		return eris.Errorf("config: dedupe.merge_threshold %v outside [0,1]", c.Dedupe.MergeThreshold)
	}
	if c.Dedupe.ReviewFloor < 0 || c.Dedupe.ReviewFloor > c.Dedupe.MergeThreshold {
		return eris.Errorf("config: dedupe.review_floor %v outside [0, merge_threshold]", c.Dedupe.ReviewFloor)
	}
	if c.Legibility <= 0 || c.Legibility > 1 {
		return eris.Errorf("config: legibility_threshold %v outside (0,1]", c.Legibility)
	}
	if len(c.DocumentTypes) == 0 {
		return eris.New("config: no document types configured")
	}
	seen := map[string]bool{}
	for _, tc := range c.DocumentTypes {
		if tc.Name == "" {
			return eris.New("config: document type with empty name")
		}
		if seen[tc.Name] {
			return eris.Errorf("config: duplicate document type %q", tc.Name)
		}
		seen[tc.Name] = true
		if len(tc.Fields) == 0 {
			return eris.Errorf("config: document type %q has no fields", tc.Name)
		}
		for _, dir := range []string{tc.PayloadDir, tc.GroundTruthDir} {
			info, err := os.Stat(dir)
			if err != nil || !info.IsDir() {
				return eris.Errorf("config: document type %q: missing corpus dir %q", tc.Name, dir)
			}
		}
		if _, err := os.Stat(tc.SchemaPath); err != nil {
			return eris.Errorf("config: document type %q: missing schema %q", tc.Name, tc.SchemaPath)
		}
	}
	if c.Dedupe.WeightsFile != "" {
		if _, err := os.Stat(c.Dedupe.WeightsFile); err != nil {
			return eris.Errorf("config: missing dedupe weights file %q", c.Dedupe.WeightsFile)
		}
	}
	return nil
}

// Digest returns a stable hash of the effective configuration, recorded in
// the report's run metadata.
func (c *Config) Digest() string {
	data, _ := json.Marshal(c)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
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
