package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"voice-call/config"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := config.Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Audio.Source != "microphone" || cfg.Audio.SampleRate != 16000 || cfg.Audio.FrameSize != 2048 {
		t.Errorf("audio defaults: %+v", cfg.Audio)
	}
	if cfg.VAD.VoiceThreshold != 0.02 || cfg.VAD.MinUtteranceBytes != 10000 {
		t.Errorf("vad defaults: %+v", cfg.VAD)
	}
	if d, _ := cfg.SilenceDuration(); d != 1500*time.Millisecond {
		t.Errorf("silence duration: got %v", d)
	}
	if d, _ := cfg.RestartDelay(); d != 0 {
		t.Errorf("restart delay: got %v", d)
	}
	if cfg.Exchange.MaxAttempts != 1 {
		t.Errorf("exchange attempts: got %d, want 1", cfg.Exchange.MaxAttempts)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("log defaults: %+v", cfg.Log)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("VOICE_CALL_TOKEN", "s3cret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
audio:
  source: file
  file_path: ./fixtures
vad:
  silence_duration: 2s
  restart_delay: 100ms
control:
  auth_token: ${VOICE_CALL_TOKEN}
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Control.AuthToken != "s3cret" {
		t.Errorf("auth token: got %q", cfg.Control.AuthToken)
	}
	if cfg.Audio.Source != "file" || cfg.Audio.FilePath != "./fixtures" {
		t.Errorf("audio: %+v", cfg.Audio)
	}
	if d, _ := cfg.SilenceDuration(); d != 2*time.Second {
		t.Errorf("silence duration: got %v", d)
	}
	if d, _ := cfg.RestartDelay(); d != 100*time.Millisecond {
		t.Errorf("restart delay: got %v", d)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"source", "audio: {source: bluetooth}", "audio.source"},
		{"encoding", "audio: {encoding: mp3}", "audio.encoding"},
		{"threshold", "vad: {voice_threshold: 1.5}", "vad.voice_threshold"},
		{"silence", "vad: {silence_duration: soon}", "vad.silence_duration"},
		{"zero silence", "vad: {silence_duration: 0s}", "vad.silence_duration"},
		{"attempts", "exchange: {max_attempts: -2}", "exchange.max_attempts"},
		{"playback", "playback: {mode: bluetooth}", "playback.mode"},
		{"pushover", "pushover: {enabled: true}", "pushover"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
