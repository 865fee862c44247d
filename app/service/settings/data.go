package settings

const (
	KeyGeminiAPIKey  = "gemini_api_key"
	KeyTotalSessions = "total_sessions"
	KeyTotalSeconds  = "total_seconds"

	customPromptPrefix = "custom_prompt_"
)

// CustomPromptKey returns the key holding the extra context of a persona.
func CustomPromptKey(persona string) string {
	return customPromptPrefix + persona
}

type jsonLineItem struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Usage struct {
	TotalSessions int64 `json:"total_sessions"`
	TotalSeconds  int64 `json:"total_seconds"`
}
