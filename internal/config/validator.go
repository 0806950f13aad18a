package config

import (
	"fmt"
	"regexp"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Validate checks the configuration and fills defaults in place
func Validate(cfg *Config) error {
	if cfg.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	if cfg.ShutdownTimeoutS <= 0 {
		cfg.ShutdownTimeoutS = 5
	}

	// Server defaults
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.HealthAddr == "" {
		cfg.Server.HealthAddr = ":8081"
	}
	if cfg.Server.MaxUploadMB <= 0 {
		cfg.Server.MaxUploadMB = 100
	}
	if cfg.Server.ReadTimeoutS <= 0 {
		cfg.Server.ReadTimeoutS = 180
	}
	if cfg.Server.WriteTimeoutS <= 0 {
		cfg.Server.WriteTimeoutS = 180
	}

	// Analyzer: a missing base URL is only valid with the local fallback,
	// otherwise the service could never produce a document.
	if cfg.Analyzer.BaseURL == "" && !cfg.Analyzer.LocalFallback {
		return fmt.Errorf("analyzer.base_url is required unless analyzer.local_fallback is enabled")
	}
	if cfg.Analyzer.TimeoutS <= 0 {
		cfg.Analyzer.TimeoutS = 120
	}
	if cfg.Analyzer.KeepaliveInterval < 0 {
		return fmt.Errorf("analyzer.keepalive_interval_s must be >= 0")
	}
	if cfg.Analyzer.KeepaliveInterval == 0 && cfg.Analyzer.BaseURL != "" {
		cfg.Analyzer.KeepaliveInterval = 600
	}

	// Playback defaults
	if cfg.Playback.DrawRateHz <= 0 {
		cfg.Playback.DrawRateHz = 30
	}
	if cfg.Playback.DrawRateHz > 120 {
		return fmt.Errorf("playback.draw_rate_hz must be <= 120")
	}
	if cfg.Playback.SimRate <= 0 {
		cfg.Playback.SimRate = 1.0
	}

	if cfg.Store.DataDir == "" {
		cfg.Store.DataDir = "./data"
	}

	// MQTT is optional. Defaults only apply when a broker is configured.
	if cfg.MQTT.Broker != "" {
		if cfg.MQTT.Topics.Sessions == "" {
			cfg.MQTT.Topics.Sessions = fmt.Sprintf("squatview/sessions/%s", cfg.InstanceID)
		}
		if cfg.MQTT.Topics.Health == "" {
			cfg.MQTT.Topics.Health = fmt.Sprintf("squatview/health/%s", cfg.InstanceID)
		}
		if cfg.MQTT.QoS == nil {
			cfg.MQTT.QoS = map[string]byte{
				"sessions": 1,
				"health":   0,
			}
		}
	}

	return nil
}
