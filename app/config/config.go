package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

const defaultPath = "config.yaml"

type Config struct {
	Log        Log        `yaml:"log"`
	Gemini     Gemini     `yaml:"gemini"`
	Server     Server     `yaml:"server"`
	Settings   Settings   `yaml:"settings"`
	Session    Session    `yaml:"session"`
	Transcribe Transcribe `yaml:"transcribe"`
}

type Gemini struct {
	// Generative Language API base url
	BaseURL string `yaml:"base_url" example:"https://generativelanguage.googleapis.com/v1beta" validate:"required,url"`
	// API key used when none is saved in settings
	APIKey string `yaml:"api_key" example:"AIzaSyA-abc123def456ghi789jkl012mno345pq"`
}

type Server struct {
	// Address of the HTTP API
	Listen string `yaml:"listen" example:":8080" validate:"required"`
}

type Settings struct {
	// Path of the persisted settings file
	Path string `yaml:"path" example:"data/settings.jsonl" validate:"required"`
}

type Session struct {
	// Session is ended automatically after this duration
	MaxDuration time.Duration `yaml:"max_duration" example:"1h" validate:"gt=0"`
	// Persona used when none is requested
	DefaultPersona string `yaml:"default_persona" example:"interview" validate:"required"`
}

type Transcribe struct {
	// Run the SpeechKit transcription adapter
	Enabled bool `yaml:"enabled" example:"false"`
	// ffmpeg input (url, file or device)
	Source string `yaml:"source" example:"https://example.com/live.m3u8" validate:"required_if=Enabled true"`
	// Yandex Cloud service account key
	KeyFile string `yaml:"key_file" example:"service-account-key.json"`
	// Recognition languages
	Languages []string `yaml:"languages" example:"en-US"`
}

type Log struct {
	// Minimal console level: debug, info, warn or error
	Level string `yaml:"level" example:"debug" validate:"omitempty,oneof=debug info warn error"`
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

func Load() (*Config, error) {
	return LoadFile(defaultPath)
}

func LoadFile(path string) (*Config, error) {
	var result Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Errorf("failed to read config file: %w", err)
	}

	if err = yaml.Unmarshal(data, &result); err != nil {
		return nil, oops.Errorf("failed to parse YAML config: %w", err)
	}

	if result.Gemini.BaseURL == "" {
		result.Gemini.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if result.Server.Listen == "" {
		result.Server.Listen = ":8080"
	}
	if result.Settings.Path == "" {
		result.Settings.Path = "data/settings.jsonl"
	}
	if result.Session.MaxDuration == 0 {
		result.Session.MaxDuration = time.Hour
	}
	if result.Session.DefaultPersona == "" {
		result.Session.DefaultPersona = "interview"
	}
	if result.Transcribe.KeyFile == "" {
		result.Transcribe.KeyFile = "service-account-key.json"
	}
	if len(result.Transcribe.Languages) == 0 {
		result.Transcribe.Languages = []string{"en-US"}
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	return &result, nil
}
