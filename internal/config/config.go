package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Audio       AudioConfig       `toml:"audio"`       // Microphone capture settings
	Recognizer  RecognizerConfig  `toml:"recognizer"`  // Streaming speech recognition service settings
	Session     SessionConfig     `toml:"session"`     // Resumable streaming session settings
	Translation TranslationConfig `toml:"translation"` // Translation provider settings
	Recording   RecordingConfig   `toml:"recording"`   // Per-connection audio recording settings
	Server      ServerConfig      `toml:"server"`      // Caption/status HTTP server settings
	Display     DisplayConfig     `toml:"display"`     // Console caption output settings
	Logging     LoggingConfig     `toml:"logging"`     // Application logging settings
}

// AudioConfig contains microphone capture configuration
type AudioConfig struct {
	SampleRate int    `toml:"sample_rate"` // Capture sample rate in Hz (e.g., 16000)
	Channels   int    `toml:"channels"`    // Number of capture channels (1 for mono)
	ChunkMs    int    `toml:"chunk_ms"`    // Duration of one capture chunk in milliseconds (e.g., 100)
	Device     string `toml:"device"`      // Input device name substring; empty selects the system default
}

// RecognizerConfig contains settings for the streaming recognition service
type RecognizerConfig struct {
	URL             string `toml:"url"`               // WebSocket endpoint of the streaming recognizer (ws:// or wss://)
	APIKey          string `toml:"api_key"`           // Bearer token; falls back to GLOSSA_RECOGNIZER_API_KEY if empty
	Language        string `toml:"language"`          // Source language code (e.g., "en-US")
	Model           string `toml:"model"`             // Recognition model identifier (provider-specific, optional)
	InterimResults  bool   `toml:"interim_results"`   // Request provisional results for in-progress audio
	MaxAlternatives int    `toml:"max_alternatives"`  // Ranked alternatives requested per result (>= 1)
	DialRetries     int    `toml:"dial_retries"`      // Connection attempts before giving up
	DialIntervalSec int    `toml:"dial_interval_sec"` // Seconds to wait between connection attempts
}

// SessionConfig contains the resumable streaming session parameters
type SessionConfig struct {
	StreamingLimitMs int `toml:"streaming_limit_ms"` // Hard per-connection duration cap in milliseconds
	MaxOverlapMs     int `toml:"max_overlap_ms"`     // Upper bound on trailing audio resent across a restart, in milliseconds
}

// TranslationConfig contains settings for the translation provider
type TranslationConfig struct {
	Enabled        bool   `toml:"enabled"`         // Enable or disable translation of finalized transcripts
	Provider       string `toml:"provider"`        // Translation provider: "gemini" or "openai"
	APIKey         string `toml:"api_key"`         // Provider API key; falls back to GLOSSA_TRANSLATION_API_KEY, then GEMINI_API_KEY/OPENAI_API_KEY
	BaseURL        string `toml:"base_url"`        // Base URL for OpenAI-compatible endpoints (openai provider only)
	Model          string `toml:"model"`           // Chat/generation model to translate with
	TargetLanguage string `toml:"target_language"` // Target language code (e.g., "es")
	TimeoutSeconds int    `toml:"timeout_seconds"` // Per-request timeout in seconds
	QueueSize      int    `toml:"queue_size"`      // Finalized transcripts buffered ahead of the translator
}

// RecordingConfig contains settings for saving per-connection audio
type RecordingConfig struct {
	Enabled bool   `toml:"enabled"` // Write each closed connection's audio to a numbered WAV file
	Dir     string `toml:"dir"`     // Directory for WAV files (created if missing)
	DBPath  string `toml:"db_path"` // SQLite index path; empty defaults to <dir>/recordings.db
}

// ServerConfig contains caption/status HTTP server configuration
type ServerConfig struct {
	Enabled          bool   `toml:"enabled"`               // Serve the status API and caption WebSocket
	Host             string `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1)
	Port             int    `toml:"port"`                  // HTTP port for the server
	ReadTimeoutSecs  int    `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request
	WriteTimeoutSecs int    `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 recommended for WebSocket streaming)
	IdleTimeoutSecs  int    `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request on a keep-alive connection
	StaticFilesDir   string `toml:"static_files_dir"`      // Directory of the bundled caption page (e.g., "www")
}

// DisplayConfig contains console caption output configuration
type DisplayConfig struct {
	Console bool `toml:"console"` // Print interim/final captions and translations to stdout
	Color   bool `toml:"color"`   // Style console captions (red interim, green final)
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read the config file
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // Location in configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			// File exists, try to load it
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate validates the configuration and applies defaults for unset fields
func (c *Config) Validate() error {
	// Audio defaults and checks
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.SampleRate < 8000 {
		return fmt.Errorf("invalid sample_rate: %d (must be >= 8000)", c.Audio.SampleRate)
	}
	if c.Audio.Channels == 0 {
		c.Audio.Channels = 1
	}
	if c.Audio.Channels != 1 && c.Audio.Channels != 2 {
		return fmt.Errorf("invalid channels: %d (must be 1 or 2)", c.Audio.Channels)
	}
	if c.Audio.ChunkMs == 0 {
		c.Audio.ChunkMs = 100
	}
	if c.Audio.ChunkMs < 10 {
		return fmt.Errorf("invalid chunk_ms: %d (must be >= 10)", c.Audio.ChunkMs)
	}

	// Session defaults and checks
	if c.Session.StreamingLimitMs == 0 {
		c.Session.StreamingLimitMs = 240000
	}
	if c.Session.StreamingLimitMs < c.Audio.ChunkMs {
		return fmt.Errorf("streaming_limit_ms (%d) must be at least one chunk (%d ms)", c.Session.StreamingLimitMs, c.Audio.ChunkMs)
	}
	if c.Session.MaxOverlapMs < 0 {
		return fmt.Errorf("max_overlap_ms must not be negative: %d", c.Session.MaxOverlapMs)
	}
	if c.Session.MaxOverlapMs == 0 {
		c.Session.MaxOverlapMs = 1000
	}

	// Recognizer defaults and checks
	if c.Recognizer.URL == "" {
		return fmt.Errorf("recognizer url is required")
	}
	if c.Recognizer.Language == "" {
		c.Recognizer.Language = "en-US"
	}
	if c.Recognizer.MaxAlternatives == 0 {
		c.Recognizer.MaxAlternatives = 1
	}
	if c.Recognizer.MaxAlternatives < 1 {
		return fmt.Errorf("max_alternatives must be >= 1: %d", c.Recognizer.MaxAlternatives)
	}
	if c.Recognizer.DialRetries == 0 {
		c.Recognizer.DialRetries = 3
	}
	if c.Recognizer.DialIntervalSec == 0 {
		c.Recognizer.DialIntervalSec = 2
	}
	if c.Recognizer.APIKey == "" {
		c.Recognizer.APIKey = os.Getenv("GLOSSA_RECOGNIZER_API_KEY")
	}

	// Translation defaults and checks
	if c.Translation.Enabled {
		if c.Translation.Provider == "" {
			c.Translation.Provider = "gemini"
		}
		if c.Translation.Provider != "gemini" && c.Translation.Provider != "openai" {
			return fmt.Errorf("invalid translation provider: %s (must be 'gemini' or 'openai')", c.Translation.Provider)
		}
		if c.Translation.TargetLanguage == "" {
			return fmt.Errorf("translation target_language is required when translation is enabled")
		}
		if c.Translation.Model == "" {
			if c.Translation.Provider == "gemini" {
				c.Translation.Model = "gemini-2.0-flash"
			} else {
				c.Translation.Model = "gpt-4o-mini"
			}
		}
		if c.Translation.TimeoutSeconds == 0 {
			c.Translation.TimeoutSeconds = 30
		}
		if c.Translation.QueueSize == 0 {
			c.Translation.QueueSize = 64
		}
		if c.Translation.APIKey == "" {
			c.Translation.APIKey = os.Getenv("GLOSSA_TRANSLATION_API_KEY")
		}
		if c.Translation.APIKey == "" {
			if c.Translation.Provider == "gemini" {
				c.Translation.APIKey = os.Getenv("GEMINI_API_KEY")
			} else {
				c.Translation.APIKey = os.Getenv("OPENAI_API_KEY")
			}
		}
		if c.Translation.APIKey == "" {
			return fmt.Errorf("translation api_key is required when translation is enabled")
		}
	}

	// Recording defaults
	if c.Recording.Enabled {
		if c.Recording.Dir == "" {
			c.Recording.Dir = "recordings"
		}
		if c.Recording.DBPath == "" {
			c.Recording.DBPath = filepath.Join(c.Recording.Dir, "recordings.db")
		}
	}

	// Server defaults and checks
	if c.Server.Enabled {
		if c.Server.Host == "" {
			c.Server.Host = "127.0.0.1"
		}
		if c.Server.Port == 0 {
			c.Server.Port = 8137
		}
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return fmt.Errorf("invalid server port: %d", c.Server.Port)
		}
		if c.Server.ReadTimeoutSecs == 0 {
			c.Server.ReadTimeoutSecs = 15
		}
		if c.Server.IdleTimeoutSecs == 0 {
			c.Server.IdleTimeoutSecs = 60
		}
		if c.Server.StaticFilesDir == "" {
			c.Server.StaticFilesDir = "www"
		}
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}

	return nil
}

// ChunkDuration returns the nominal duration of one capture chunk
func (c *Config) ChunkDuration() time.Duration {
	return time.Duration(c.Audio.ChunkMs) * time.Millisecond
}

// StreamingLimit returns the per-connection duration cap
func (c *Config) StreamingLimit() time.Duration {
	return time.Duration(c.Session.StreamingLimitMs) * time.Millisecond
}

// MaxOverlap returns the upper bound on audio resent across a restart
func (c *Config) MaxOverlap() time.Duration {
	return time.Duration(c.Session.MaxOverlapMs) * time.Millisecond
}

// ChunkBytes returns the size in bytes of one capture chunk (16-bit samples)
func (c *Config) ChunkBytes() int {
	return c.Audio.SampleRate * c.Audio.ChunkMs / 1000 * c.Audio.Channels * 2
}
