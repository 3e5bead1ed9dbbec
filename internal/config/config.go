// Package config resolves console settings from defaults, an optional YAML
// file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigFile = "RTCONSOLE_CONFIG"
	EnvRelayURL   = "REALTIME_RELAY_URL"
	EnvAPIKey     = "OPENAI_API_KEY"
	EnvAPIKeyAlt  = "OPENAI_KEY"
	EnvAudioDir   = "RTCONSOLE_AUDIO_DIR"

	dirName        = "rtconsole"
	configFileName = "config.yaml"
	altFileName    = "config.yml"
)

const DefaultInstructions = `System settings:
Tool use: enabled.

Instructions:
- You are an artificial intelligence agent responsible for helping test realtime voice capabilities
- Please make sure to respond with a helpful voice via audio
- Be kind, helpful, and courteous
- It is okay to ask the user questions
- Use tools and functions you have available liberally, it is part of the training apparatus
- Be open to exploration and conversation
- Remember: Understand user requests for arithmetic operations and provide quick, concise answers by performing the calculations.

- Keep the tone emotive and friendly.
- Speak quickly to maintain an engaging pace.
- Responses should be short and conversational. Aim for clarity and brevity.

# Steps
- Listen for the operation and numbers.
- Validate the input for arithmetic operations.
- Perform the calculation.
- Present the result clearly and briefly.

# Notes
- Handle easy operations like addition, subtraction, multiplication, and division.
- Avoid overly complex operations or queries outside basic arithmetic.
- If input is unclear, ask a clarifying question.

Personality:
- Be upbeat and genuine
- Try speaking quickly as if excited
`

type Config struct {
	URL               string
	RelayURL          string
	Model             string
	Voice             string
	Instructions      string
	Transcription     string
	Temperature       float64
	Greeting          string
	TurnMode          string
	AudioDir          string
	MetricsAddr       string
	DialTimeout       time.Duration
	MicSampleRate     int
	SpeakerSampleRate int

	// Path is the file the config was read from, empty if none was found.
	Path string
}

type fileConfig struct {
	URL               string   `yaml:"url"`
	RelayURL          string   `yaml:"relay_url"`
	Model             string   `yaml:"model"`
	Voice             string   `yaml:"voice"`
	Instructions      string   `yaml:"instructions"`
	Transcription     string   `yaml:"transcription"`
	Temperature       *float64 `yaml:"temperature"`
	Greeting          *string  `yaml:"greeting"`
	TurnMode          string   `yaml:"turn_mode"`
	AudioDir          string   `yaml:"audio_dir"`
	MetricsAddr       string   `yaml:"metrics_addr"`
	DialTimeout       string   `yaml:"dial_timeout"`
	MicSampleRate     int      `yaml:"mic_sample_rate"`
	SpeakerSampleRate int      `yaml:"speaker_sample_rate"`
}

func Default() Config {
	return Config{
		Model:             "gpt-4o-realtime-preview-2024-10-01",
		Voice:             "alloy",
		Instructions:      DefaultInstructions,
		Transcription:     "whisper-1",
		Temperature:       0.8,
		Greeting:          "Hello!",
		TurnMode:          "manual",
		AudioDir:          DefaultPath("audio"),
		DialTimeout:       10 * time.Second,
		MicSampleRate:     24_000,
		SpeakerSampleRate: 24_000,
	}
}

// Load returns the defaults overlaid with the config file, if any, and the
// environment.
func Load() (Config, error) {
	cfg := Default()

	path, ok, err := resolveFilePath()
	if err != nil {
		return Config{}, err
	}
	if ok {
		fc, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := cfg.apply(fc); err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
		cfg.Path = path
	}

	if v := envString(EnvRelayURL); v != "" {
		cfg.RelayURL = v
	}
	if v := envString(EnvAudioDir); v != "" {
		cfg.AudioDir = v
	}

	return cfg, nil
}

func (c *Config) apply(fc fileConfig) error {
	setString(&c.URL, fc.URL)
	setString(&c.RelayURL, fc.RelayURL)
	setString(&c.Model, fc.Model)
	setString(&c.Voice, fc.Voice)
	setString(&c.Instructions, fc.Instructions)
	setString(&c.Transcription, fc.Transcription)
	setString(&c.TurnMode, fc.TurnMode)
	setString(&c.MetricsAddr, fc.MetricsAddr)
	if fc.AudioDir != "" {
		dir, err := expandPath(fc.AudioDir)
		if err != nil {
			return fmt.Errorf("audio_dir: %w", err)
		}
		c.AudioDir = dir
	}
	if fc.Temperature != nil {
		c.Temperature = *fc.Temperature
	}
	if fc.Greeting != nil {
		c.Greeting = *fc.Greeting
	}
	if fc.DialTimeout != "" {
		d, err := time.ParseDuration(fc.DialTimeout)
		if err != nil {
			return fmt.Errorf("dial_timeout: %w", err)
		}
		c.DialTimeout = d
	}
	if fc.MicSampleRate < 0 || fc.SpeakerSampleRate < 0 {
		return errors.New("sample rates must be positive")
	}
	if fc.MicSampleRate > 0 {
		c.MicSampleRate = fc.MicSampleRate
	}
	if fc.SpeakerSampleRate > 0 {
		c.SpeakerSampleRate = fc.SpeakerSampleRate
	}
	return nil
}

// APIKey returns the key from the environment, if set.
func APIKey() string {
	if v := envString(EnvAPIKey); v != "" {
		return v
	}
	return envString(EnvAPIKeyAlt)
}

func readFile(path string) (fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fileConfig{}, fmt.Errorf("decode config file %s: %w", path, err)
	}
	return fc, nil
}

func resolveFilePath() (string, bool, error) {
	if explicit := envString(EnvConfigFile); explicit != "" {
		path, err := expandPath(explicit)
		if err != nil {
			return "", false, fmt.Errorf("resolve %s: %w", EnvConfigFile, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			return "", false, fmt.Errorf("config file %s: %w", path, err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config file %s is a directory", path)
		}
		return path, true, nil
	}

	for _, candidate := range []string{DefaultPath(configFileName), DefaultPath(altFileName)} {
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", false, fmt.Errorf("config path %s is a directory", candidate)
			}
			return candidate, true, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("stat config file %s: %w", candidate, err)
		}
	}
	return "", false, nil
}

// DefaultPath joins parts onto the per-user config directory
// (~/.config/rtconsole on Linux).
func DefaultPath(parts ...string) string {
	root, err := os.UserConfigDir()
	if err != nil || strings.TrimSpace(root) == "" {
		root = "."
	}
	return filepath.Join(append([]string{root, dirName}, parts...)...)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, strings.TrimPrefix(trimmed, "~")), nil
	}
	return trimmed, nil
}

func envString(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// ParseSampleRate accepts values like "24000" or "24k".
func ParseSampleRate(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	mult := 1
	if strings.HasSuffix(s, "k") {
		mult = 1000
		s = strings.TrimSuffix(s, "k")
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid sample rate %q", s)
	}
	return n * mult, nil
}
