// Package config loads coach settings from a YAML file, a .env file and the
// environment, on top of built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath = "coach.yaml"

	EnvGeminiKey = "GEMINI_API_KEY"
	EnvTTSKey    = "GOOGLE_TTS_API_KEY"
)

type Config struct {
	Session  SessionConfig  `yaml:"session"`
	Advisory AdvisoryConfig `yaml:"advisory"`
	Speech   SpeechConfig   `yaml:"speech"`
	Ingest   IngestConfig   `yaml:"ingest"`
	MQTT     MQTTConfig     `yaml:"mqtt"`

	GeminiAPIKey string `yaml:"-"`
	TTSAPIKey    string `yaml:"-"`
}

type SessionConfig struct {
	SampleMs       int  `yaml:"sample_ms"`
	PoseMs         int  `yaml:"pose_ms"`
	TipMs          int  `yaml:"tip_ms"`
	EmitMs         int  `yaml:"emit_ms"`
	SpeakSummaries bool `yaml:"speak_summaries"`
}

type ChannelConfig struct {
	TTLMs         int `yaml:"ttl_ms"`
	MinIntervalMs int `yaml:"min_interval_ms"`
	MaxEntries    int `yaml:"max_entries"`
}

type AdvisoryConfig struct {
	Provider    string        `yaml:"provider"` // gemini, none
	Model       string        `yaml:"model"`
	RetainCache bool          `yaml:"retain_cache"`
	Seed        int64         `yaml:"seed"` // 0 = time based
	Classify    ChannelConfig `yaml:"classify"`
	Tip         ChannelConfig `yaml:"tip"`
}

type SpeechConfig struct {
	Engine        string `yaml:"engine"` // google, log
	Voice         string `yaml:"voice"`
	MinIntervalMs int    `yaml:"min_interval_ms"`
	Cues          bool   `yaml:"cues"`
}

type IngestConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

func Default() *Config {
	return &Config{
		Session: SessionConfig{
			SampleMs:       200,
			PoseMs:         1000,
			TipMs:          3000,
			EmitMs:         1000,
			SpeakSummaries: true,
		},
		Advisory: AdvisoryConfig{
			Provider: "gemini",
			Model:    "gemini-2.5-flash",
			Classify: ChannelConfig{TTLMs: 2000, MinIntervalMs: 1000, MaxEntries: 50},
			Tip:      ChannelConfig{TTLMs: 3000, MinIntervalMs: 2000, MaxEntries: 30},
		},
		Speech: SpeechConfig{
			Engine:        "google",
			Voice:         "en-US-Standard-C",
			MinIntervalMs: 4000,
			Cues:          true,
		},
		Ingest: IngestConfig{Enabled: true, Addr: ":8090"},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			ClientID:    "coach",
			TopicPrefix: "coach",
		},
	}
}

// Load reads path over the defaults. An empty path falls back to
// DefaultPath when it exists, else the defaults are used as is.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat(DefaultPath); err != nil {
			return cfg, nil
		}
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadEnv loads envFile (missing file ignored) and picks up API keys.
func (c *Config) LoadEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	c.GeminiAPIKey = os.Getenv(EnvGeminiKey)
	c.TTSAPIKey = os.Getenv(EnvTTSKey)
	return nil
}

func Validate(c *Config) error {
	s := c.Session
	if s.SampleMs <= 0 || s.PoseMs <= 0 || s.TipMs <= 0 || s.EmitMs <= 0 {
		return fmt.Errorf("session intervals must be positive")
	}
	switch c.Advisory.Provider {
	case "gemini", "none":
	default:
		return fmt.Errorf("unknown advisory provider %q", c.Advisory.Provider)
	}
	for name, ch := range map[string]ChannelConfig{"classify": c.Advisory.Classify, "tip": c.Advisory.Tip} {
		if ch.TTLMs <= 0 || ch.MinIntervalMs < 0 || ch.MaxEntries <= 0 {
			return fmt.Errorf("advisory.%s: ttl and max_entries must be positive", name)
		}
	}
	switch c.Speech.Engine {
	case "google", "log":
	default:
		return fmt.Errorf("unknown speech engine %q", c.Speech.Engine)
	}
	if c.Speech.MinIntervalMs < 0 {
		return fmt.Errorf("speech.min_interval_ms must not be negative")
	}
	if c.Ingest.Enabled && c.Ingest.Addr == "" {
		return fmt.Errorf("ingest.addr is required when ingest is enabled")
	}
	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
		}
		if c.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
		}
	}
	return nil
}

func Ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
