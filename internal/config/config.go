package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete squatview configuration
type Config struct {
	InstanceID       string         `yaml:"instance_id"`
	ShutdownTimeoutS int            `yaml:"shutdown_timeout_s"` // Graceful shutdown timeout in seconds (default: 5)
	Server           ServerConfig   `yaml:"server"`
	Analyzer         AnalyzerConfig `yaml:"analyzer"`
	Playback         PlaybackConfig `yaml:"playback"`
	Store            StoreConfig    `yaml:"store"`
	MQTT             MQTTConfig     `yaml:"mqtt"`
}

// ServerConfig contains the HTTP API settings
type ServerConfig struct {
	Addr          string `yaml:"addr"`            // host:port for the API (default: :8080)
	HealthAddr    string `yaml:"health_addr"`     // host:port for health endpoints (default: :8081)
	MaxUploadMB   int    `yaml:"max_upload_mb"`   // upload size cap (default: 100)
	ReadTimeoutS  int    `yaml:"read_timeout_s"`  // default: 180, uploads are slow
	WriteTimeoutS int    `yaml:"write_timeout_s"` // default: 180
}

// AnalyzerConfig contains pose-analysis service settings
type AnalyzerConfig struct {
	BaseURL           string `yaml:"base_url"`
	TimeoutS          int    `yaml:"timeout_s"`           // per-request timeout (default: 120)
	KeepaliveInterval int    `yaml:"keepalive_interval_s"` // ping interval, 0 disables (default: 600)
	LocalFallback     bool   `yaml:"local_fallback"`       // fabricate data when remote fails
}

// PlaybackConfig contains replay settings
type PlaybackConfig struct {
	DrawRateHz int     `yaml:"draw_rate_hz"` // overlay loop frequency (default: 30)
	SimRate    float64 `yaml:"sim_rate"`     // headless replay speed multiplier (default: 1.0)
}

// StoreConfig contains session persistence settings
type StoreConfig struct {
	DataDir string `yaml:"data_dir"` // default: ./data
}

// MQTTConfig contains MQTT broker settings. An empty broker disables the
// session event emitter.
type MQTTConfig struct {
	Broker string          `yaml:"broker"`
	Topics MQTTTopics      `yaml:"topics"`
	QoS    map[string]byte `yaml:"qos"`
}

// MQTTTopics contains topic templates
type MQTTTopics struct {
	Sessions string `yaml:"sessions"`
	Health   string `yaml:"health"`
}

// Load reads and parses a YAML configuration file. A .env file next to the
// process, if present, is loaded first so environment overrides can fill
// secrets the YAML omits.
func Load(path string) (*Config, error) {
	// Missing .env is fine, only a malformed one is an error.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides lets deployment environments redirect the external
// endpoints without editing the YAML.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SQUATVIEW_ANALYZER_URL"); v != "" {
		cfg.Analyzer.BaseURL = v
	}
	if v := os.Getenv("SQUATVIEW_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv("SQUATVIEW_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("SQUATVIEW_DATA_DIR"); v != "" {
		cfg.Store.DataDir = v
	}
}
