package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Audio    AudioConfig    `yaml:"audio"`
	VAD      VADConfig      `yaml:"vad"`
	Exchange ExchangeConfig `yaml:"exchange"`
	Playback PlaybackConfig `yaml:"playback"`
	Control  ControlConfig  `yaml:"control"`
	Pushover PushoverConfig `yaml:"pushover"`
	Log      LogConfig      `yaml:"log"`
}

type AudioConfig struct {
	Source     string `yaml:"source"` // microphone | file
	FilePath   string `yaml:"file_path"`
	Realtime   bool   `yaml:"realtime"`
	SampleRate int    `yaml:"sample_rate"`
	FrameSize  int    `yaml:"frame_size"`
	Encoding   string `yaml:"encoding"` // wav | ogg
}

type VADConfig struct {
	VoiceThreshold    float64 `yaml:"voice_threshold"`
	SilenceDuration   string  `yaml:"silence_duration"`
	RestartDelay      string  `yaml:"restart_delay"`
	MinUtteranceBytes int     `yaml:"min_utterance_bytes"`
	Strict            bool    `yaml:"strict"`
}

type ExchangeConfig struct {
	BaseURL     string `yaml:"base_url"`
	Timeout     string `yaml:"timeout"`
	MaxAttempts int    `yaml:"max_attempts"`
}

type PlaybackConfig struct {
	Mode    string   `yaml:"mode"` // command | file | none
	Command []string `yaml:"command"`
	Dir     string   `yaml:"dir"`
}

type ControlConfig struct {
	Addr      string `yaml:"addr"`
	AuthToken string `yaml:"auth_token"`
	AutoStart bool   `yaml:"auto_start"`
}

type PushoverConfig struct {
	Token   string `yaml:"token"`
	UserKey string `yaml:"user_key"`
	Enabled bool   `yaml:"enabled"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse expands ${ENV} references, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Audio.Source == "" {
		c.Audio.Source = "microphone"
	}
	if c.Audio.FilePath == "" {
		c.Audio.FilePath = "./audio"
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.FrameSize == 0 {
		c.Audio.FrameSize = 2048
	}
	if c.Audio.Encoding == "" {
		c.Audio.Encoding = "wav"
	}
	if c.VAD.VoiceThreshold == 0 {
		c.VAD.VoiceThreshold = 0.02
	}
	if c.VAD.SilenceDuration == "" {
		c.VAD.SilenceDuration = "1500ms"
	}
	if c.VAD.RestartDelay == "" {
		c.VAD.RestartDelay = "0s"
	}
	if c.VAD.MinUtteranceBytes == 0 {
		c.VAD.MinUtteranceBytes = 10000
	}
	if c.Exchange.BaseURL == "" {
		c.Exchange.BaseURL = "http://localhost:5000"
	}
	if c.Exchange.Timeout == "" {
		c.Exchange.Timeout = "60s"
	}
	if c.Exchange.MaxAttempts == 0 {
		c.Exchange.MaxAttempts = 1
	}
	if c.Playback.Mode == "" {
		c.Playback.Mode = "command"
	}
	if len(c.Playback.Command) == 0 {
		c.Playback.Command = []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet", "-"}
	}
	if c.Playback.Dir == "" {
		c.Playback.Dir = "./replies"
	}
	if c.Control.Addr == "" {
		c.Control.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Audio.Source {
	case "microphone", "file":
	default:
		errs = append(errs, fmt.Errorf("audio.source: unknown source %q", c.Audio.Source))
	}
	switch c.Audio.Encoding {
	case "wav", "ogg":
	default:
		errs = append(errs, fmt.Errorf("audio.encoding: unknown encoding %q", c.Audio.Encoding))
	}
	if c.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate: must be positive, got %d", c.Audio.SampleRate))
	}
	if c.Audio.FrameSize <= 0 {
		errs = append(errs, fmt.Errorf("audio.frame_size: must be positive, got %d", c.Audio.FrameSize))
	}

	if c.VAD.VoiceThreshold < 0 || c.VAD.VoiceThreshold >= 1 {
		errs = append(errs, fmt.Errorf("vad.voice_threshold: must be in [0, 1), got %v", c.VAD.VoiceThreshold))
	}
	if _, err := c.SilenceDuration(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.RestartDelay(); err != nil {
		errs = append(errs, err)
	}
	if c.VAD.MinUtteranceBytes < 0 {
		errs = append(errs, fmt.Errorf("vad.min_utterance_bytes: must not be negative, got %d", c.VAD.MinUtteranceBytes))
	}

	if _, err := c.ExchangeTimeout(); err != nil {
		errs = append(errs, err)
	}
	if c.Exchange.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("exchange.max_attempts: must be at least 1, got %d", c.Exchange.MaxAttempts))
	}

	switch c.Playback.Mode {
	case "command", "file", "none":
	default:
		errs = append(errs, fmt.Errorf("playback.mode: unknown mode %q", c.Playback.Mode))
	}

	if c.Pushover.Enabled && (c.Pushover.Token == "" || c.Pushover.UserKey == "") {
		errs = append(errs, errors.New("pushover: token and user_key are required when enabled"))
	}

	return errors.Join(errs...)
}

func (c *Config) SilenceDuration() (time.Duration, error) {
	return parseDuration("vad.silence_duration", c.VAD.SilenceDuration, false)
}

func (c *Config) RestartDelay() (time.Duration, error) {
	return parseDuration("vad.restart_delay", c.VAD.RestartDelay, true)
}

func (c *Config) ExchangeTimeout() (time.Duration, error) {
	return parseDuration("exchange.timeout", c.Exchange.Timeout, false)
}

func parseDuration(field, value string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("%s: must be positive, got %s", field, value)
	}
	return d, nil
}
