package server

import (
	"cuecard/app/service/orchestrator"
	"cuecard/app/service/session"
	"cuecard/app/service/settings"
)

type startSessionRequest struct {
	Persona string `json:"persona" validate:"omitempty,max=64"`
}

type sessionResponse struct {
	Active   bool               `json:"active"`
	Session  *session.Session   `json:"session,omitempty"`
	Guidance orchestrator.State `json:"guidance"`
	Chat     orchestrator.State `json:"chat"`
}

type textRequest struct {
	Text string `json:"text" validate:"required,max=8000"`
}

type guidanceResponse struct {
	Guidance  string `json:"guidance"`
	LastError string `json:"last_error,omitempty"`
	Typing    bool   `json:"typing"`
}

type settingsResponse struct {
	HasAPIKey     bool              `json:"has_api_key"`
	APIKey        string            `json:"gemini_api_key,omitempty"`
	CustomPrompts map[string]string `json:"custom_prompts"`
	Usage         settings.Usage    `json:"usage"`
}

type updateSettingsRequest struct {
	GeminiAPIKey  *string           `json:"gemini_api_key" validate:"omitempty,max=256"`
	CustomPrompts map[string]string `json:"custom_prompts" validate:"omitempty,dive,keys,required,endkeys,max=4000"`
}

type errorResponse struct {
	Error string `json:"error"`
}
