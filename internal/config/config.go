// Package config loads corpusgen configuration: compiled-in defaults,
// overlaid by an optional YAML file, overlaid by CORPUSGEN_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the config file looked up in the working directory
// when --config is not given.
const DefaultConfigFile = "corpusgen.yaml"

// ErrInvalidConfig marks configuration errors, which abort before any
// remote call and map to their own exit code.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full corpusgen configuration tree.
type Config struct {
	Corpus     CorpusConfig     `yaml:"corpus"`
	Generation GenerationConfig `yaml:"generation"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// CorpusConfig locates the corpus input and the files the pipeline
// persists.
type CorpusConfig struct {
	File         string `yaml:"file"          envconfig:"CORPUSGEN_CORPUS_FILE"`
	OutputFile   string `yaml:"output_file"   envconfig:"CORPUSGEN_OUTPUT_FILE"`
	ProgressFile string `yaml:"progress_file" envconfig:"CORPUSGEN_PROGRESS_FILE"`
}

// GenerationConfig controls batching and the remote generation request.
type GenerationConfig struct {
	Model               string  `yaml:"model"                 envconfig:"CORPUSGEN_MODEL"`
	BatchSize           int     `yaml:"batch_size"            envconfig:"CORPUSGEN_BATCH_SIZE"`
	MaxBatches          int     `yaml:"max_batches"           envconfig:"CORPUSGEN_MAX_BATCHES"`
	QueueURL            string  `yaml:"queue_url"             envconfig:"CORPUSGEN_QUEUE_URL"`
	Temperature         float64 `yaml:"temperature"           envconfig:"CORPUSGEN_TEMPERATURE"`
	MaxTokens           int     `yaml:"max_tokens"            envconfig:"CORPUSGEN_MAX_TOKENS"`
	PollIntervalSeconds int     `yaml:"poll_interval_seconds" envconfig:"CORPUSGEN_POLL_INTERVAL_SECONDS"`
}

// PollInterval returns the poll interval as a duration.
func (g GenerationConfig) PollInterval() time.Duration {
	return time.Duration(g.PollIntervalSeconds) * time.Second
}

// LoggingConfig controls the zerolog output.
type LoggingConfig struct {
	Level  string `yaml:"level"  envconfig:"CORPUSGEN_LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"CORPUSGEN_LOG_FORMAT"`
	File   string `yaml:"file"   envconfig:"CORPUSGEN_LOG_FILE"`
}

// Default returns the compiled-in configuration.
func Default() *Config {
	return &Config{
		Corpus: CorpusConfig{
			File:         "corpus.txt",
			OutputFile:   "llm_expanded_corpus.txt",
			ProgressFile: "expand_progress.json",
		},
		Generation: GenerationConfig{
			Model:               "qwen/qwen-2.5-72b-instruct",
			BatchSize:           10,
			MaxBatches:          10,
			QueueURL:            "https://queue.fal.run/openrouter/router",
			Temperature:         0.7,
			MaxTokens:           4096,
			PollIntervalSeconds: 2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load builds the effective configuration. An explicit path must exist; an
// empty path falls back to DefaultConfigFile in the working directory,
// which may be absent. Environment variables are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if path == "" {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %w", ErrInvalidConfig, path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// No config file: defaults plus environment.
	default:
		return nil, fmt.Errorf("%w: reading %s: %w", ErrInvalidConfig, path, err)
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("%w: applying environment overrides: %w", ErrInvalidConfig, err)
	}

	return cfg, nil
}

// Validate checks settings that must be rejected before any work begins.
func (c *Config) Validate() error {
	if c.Generation.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive, got %d",
			ErrInvalidConfig, c.Generation.BatchSize)
	}
	if c.Generation.MaxBatches < 0 {
		return fmt.Errorf("%w: max batches must be >= 0, got %d",
			ErrInvalidConfig, c.Generation.MaxBatches)
	}
	if c.Generation.PollIntervalSeconds <= 0 {
		return fmt.Errorf("%w: poll interval must be positive, got %d",
			ErrInvalidConfig, c.Generation.PollIntervalSeconds)
	}
	if c.Corpus.File == "" {
		return fmt.Errorf("%w: corpus file must be set", ErrInvalidConfig)
	}
	return nil
}

// DefaultYAML is the commented starter file written by `corpusgen config
// init`.
const DefaultYAML = `# corpusgen configuration
corpus:
  file: corpus.txt
  output_file: llm_expanded_corpus.txt
  progress_file: expand_progress.json

generation:
  model: qwen/qwen-2.5-72b-instruct
  batch_size: 10
  max_batches: 10
  queue_url: https://queue.fal.run/openrouter/router
  temperature: 0.7
  max_tokens: 4096
  poll_interval_seconds: 2

logging:
  level: info
  # auto picks console on a terminal, json otherwise
  format: auto
  # file: corpusgen.log
`
