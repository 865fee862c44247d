package session

import (
	"time"

	"cuecard/app/service/prompt"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

type Session struct {
	ID        string     `json:"id"`
	Persona   string     `json:"persona"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Status    Status     `json:"status"`
}

// Config is everything a session needs to start.
type Config struct {
	Persona      prompt.Persona
	APIKey       string
	CustomPrompt string
}
