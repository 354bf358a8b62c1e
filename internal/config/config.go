// Package config provides configuration management for the Clipforge Agent.
// Configuration is loaded from environment variables with sensible defaults;
// a local .env file is honoured when present.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Default values
	DefaultPort     = 8790
	DefaultLogLevel = "info"
	DefaultDataDir  = ".clipforge"

	// Environment variable names
	EnvPort     = "CLIPFORGE_PORT"
	EnvLogLevel = "CLIPFORGE_LOG_LEVEL"
	EnvDataDir  = "CLIPFORGE_DATA_DIR"
	EnvProfile  = "CLIPFORGE_PROFILE"

	// Backend environment variable names
	EnvCohereAPIKey = "COHERE_API_KEY"
	EnvCohereModel  = "CLIPFORGE_COHERE_MODEL"
	EnvTTSBaseURL   = "CLIPFORGE_TTS_BASE_URL"
	EnvTTSAPIKey    = "DEEPGRAM_API_KEY"
	EnvImageBaseURL = "CLIPFORGE_IMAGE_BASE_URL"
	EnvImageAPIKey  = "TOGETHER_API_KEY"
	EnvImageModel   = "CLIPFORGE_IMAGE_MODEL"
	EnvClipBaseURL  = "CLIPFORGE_CLIP_BASE_URL"
	EnvClipAPIKey   = "VEO_API_KEY"

	// Retry environment variable names
	EnvMaxAttempts = "CLIPFORGE_MAX_ATTEMPTS"
	EnvBaseDelay   = "CLIPFORGE_BASE_DELAY_S"

	// Database filename
	DBFilename = "clipforge.db"

	// Profile filename
	ProfileFilename = "profile.yaml"

	// Backend defaults
	DefaultCohereModel  = "command-r-08-2024"
	DefaultTTSBaseURL   = "https://api.deepgram.com"
	DefaultImageBaseURL = "https://api.together.xyz"
	DefaultImageModel   = "black-forest-labs/FLUX.1-schnell-Free"

	// Retry defaults
	DefaultMaxAttempts = 3
	DefaultBaseDelayS  = 2
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	RunsDir() string
	ProfilePath() string

	CohereAPIKey() string
	CohereModel() string
	TTSBaseURL() string
	TTSAPIKey() string
	ImageBaseURL() string
	ImageAPIKey() string
	ImageModel() string
	ClipBaseURL() string
	ClipAPIKey() string

	MaxAttempts() int
	BaseDelay() time.Duration
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port        int
	logLevel    string
	dataDir     string
	profilePath string

	cohereAPIKey string
	cohereModel  string
	ttsBaseURL   string
	ttsAPIKey    string
	imageBaseURL string
	imageAPIKey  string
	imageModel   string
	clipBaseURL  string
	clipAPIKey   string

	maxAttempts int
	baseDelay   time.Duration
}

// New creates a new EnvConfig with defaults and environment variable overrides.
// A .env file in the working directory is loaded first if it exists.
func New() (*EnvConfig, error) {
	_ = godotenv.Load()

	cfg := &EnvConfig{
		port:         DefaultPort,
		logLevel:     DefaultLogLevel,
		dataDir:      defaultDataDir(),
		cohereModel:  DefaultCohereModel,
		ttsBaseURL:   DefaultTTSBaseURL,
		imageBaseURL: DefaultImageBaseURL,
		imageModel:   DefaultImageModel,
		maxAttempts:  DefaultMaxAttempts,
		baseDelay:    DefaultBaseDelayS * time.Second,
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	// Override log level from environment
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	// Override data directory from environment
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if pp := os.Getenv(EnvProfile); pp != "" {
		cfg.profilePath = pp
	}

	cfg.cohereAPIKey = os.Getenv(EnvCohereAPIKey)
	cfg.ttsAPIKey = os.Getenv(EnvTTSAPIKey)
	cfg.imageAPIKey = os.Getenv(EnvImageAPIKey)
	cfg.clipAPIKey = os.Getenv(EnvClipAPIKey)

	if m := os.Getenv(EnvCohereModel); m != "" {
		cfg.cohereModel = m
	}
	if u := os.Getenv(EnvTTSBaseURL); u != "" {
		cfg.ttsBaseURL = u
	}
	if u := os.Getenv(EnvImageBaseURL); u != "" {
		cfg.imageBaseURL = u
	}
	if m := os.Getenv(EnvImageModel); m != "" {
		cfg.imageModel = m
	}
	cfg.clipBaseURL = os.Getenv(EnvClipBaseURL)

	if a := os.Getenv(EnvMaxAttempts); a != "" {
		attempts, err := strconv.Atoi(a)
		if err != nil || attempts < 1 {
			return nil, fmt.Errorf("invalid %s: must be a positive integer", EnvMaxAttempts)
		}
		cfg.maxAttempts = attempts
	}

	if d := os.Getenv(EnvBaseDelay); d != "" {
		secs, err := strconv.Atoi(d)
		if err != nil || secs < 0 {
			return nil, fmt.Errorf("invalid %s: must be a non-negative integer", EnvBaseDelay)
		}
		cfg.baseDelay = time.Duration(secs) * time.Second
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// RunsDir returns the directory where per-run assets are written
func (c *EnvConfig) RunsDir() string {
	return filepath.Join(c.dataDir, "runs")
}

// ProfilePath returns the path to the YAML generation profile
func (c *EnvConfig) ProfilePath() string {
	if c.profilePath != "" {
		return c.profilePath
	}
	return filepath.Join(c.dataDir, ProfileFilename)
}

func (c *EnvConfig) CohereAPIKey() string { return c.cohereAPIKey }

func (c *EnvConfig) CohereModel() string { return c.cohereModel }

func (c *EnvConfig) TTSBaseURL() string { return c.ttsBaseURL }

func (c *EnvConfig) TTSAPIKey() string { return c.ttsAPIKey }

func (c *EnvConfig) ImageBaseURL() string { return c.imageBaseURL }

func (c *EnvConfig) ImageAPIKey() string { return c.imageAPIKey }

func (c *EnvConfig) ImageModel() string { return c.imageModel }

func (c *EnvConfig) ClipBaseURL() string { return c.clipBaseURL }

func (c *EnvConfig) ClipAPIKey() string { return c.clipAPIKey }

// MaxAttempts returns the retry ceiling for external generative calls
func (c *EnvConfig) MaxAttempts() int {
	return c.maxAttempts
}

// BaseDelay returns the base backoff delay between retries
func (c *EnvConfig) BaseDelay() time.Duration {
	return c.baseDelay
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
