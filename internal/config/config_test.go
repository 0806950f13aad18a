package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "squatview.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

const minimalConfig = `
instance_id: gym-floor-1
analyzer:
  base_url: https://analyzer.example.com
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"server addr", cfg.Server.Addr, ":8080"},
		{"health addr", cfg.Server.HealthAddr, ":8081"},
		{"max upload", cfg.Server.MaxUploadMB, 100},
		{"analyzer timeout", cfg.Analyzer.TimeoutS, 120},
		{"keepalive interval", cfg.Analyzer.KeepaliveInterval, 600},
		{"draw rate", cfg.Playback.DrawRateHz, 30},
		{"sim rate", cfg.Playback.SimRate, 1.0},
		{"data dir", cfg.Store.DataDir, "./data"},
		{"shutdown timeout", cfg.ShutdownTimeoutS, 5},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
instance_id: gym-floor-2
shutdown_timeout_s: 10
server:
  addr: ":9000"
  max_upload_mb: 50
analyzer:
  base_url: https://analyzer.example.com
  timeout_s: 60
  keepalive_interval_s: 300
  local_fallback: true
playback:
  draw_rate_hz: 60
  sim_rate: 4.0
store:
  data_dir: /var/lib/squatview
mqtt:
  broker: broker.example.com:1883
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("server addr = %q, want :9000", cfg.Server.Addr)
	}
	if cfg.Playback.DrawRateHz != 60 {
		t.Errorf("draw rate = %d, want 60", cfg.Playback.DrawRateHz)
	}
	if !cfg.Analyzer.LocalFallback {
		t.Error("local_fallback = false, want true")
	}
	if cfg.MQTT.Topics.Sessions != "squatview/sessions/gym-floor-2" {
		t.Errorf("sessions topic = %q, want the instance default", cfg.MQTT.Topics.Sessions)
	}
	if cfg.MQTT.QoS["sessions"] != 1 {
		t.Errorf("sessions qos = %d, want 1", cfg.MQTT.QoS["sessions"])
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			"missing instance id",
			func(c *Config) { c.InstanceID = "" },
			"instance_id",
		},
		{
			"uppercase instance id",
			func(c *Config) { c.InstanceID = "Gym-1" },
			"pattern",
		},
		{
			"no analyzer and no fallback",
			func(c *Config) { c.Analyzer.BaseURL = ""; c.Analyzer.LocalFallback = false },
			"analyzer.base_url",
		},
		{
			"draw rate too high",
			func(c *Config) { c.Playback.DrawRateHz = 500 },
			"draw_rate_hz",
		},
		{
			"negative keepalive",
			func(c *Config) { c.Analyzer.KeepaliveInterval = -1 },
			"keepalive_interval_s",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				InstanceID: "gym-floor-1",
				Analyzer:   AnalyzerConfig{BaseURL: "https://analyzer.example.com"},
			}
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("Validate() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SQUATVIEW_ANALYZER_URL", "https://override.example.com")
	t.Setenv("SQUATVIEW_ADDR", ":7777")

	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Analyzer.BaseURL != "https://override.example.com" {
		t.Errorf("analyzer base_url = %q, want the env override", cfg.Analyzer.BaseURL)
	}
	if cfg.Server.Addr != ":7777" {
		t.Errorf("server addr = %q, want :7777", cfg.Server.Addr)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() error = nil, want read error")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "instance_id: [unclosed")); err == nil {
		t.Error("Load() error = nil, want parse error")
	}
}

func TestKeepaliveDisabledWithoutRemote(t *testing.T) {
	cfg := &Config{
		InstanceID: "gym-floor-1",
		Analyzer:   AnalyzerConfig{LocalFallback: true},
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Analyzer.KeepaliveInterval != 0 {
		t.Errorf("keepalive interval = %d, want 0 with no remote analyzer", cfg.Analyzer.KeepaliveInterval)
	}
}
