package prompt

import (
	"embed"
	"fmt"

	"github.com/elliotchance/pie/v2"
)

//go:embed persona/*.txt
var templates embed.FS

const DefaultPersona = "interview"

// Persona selects the system instruction and the response-length policy.
type Persona struct {
	ID           string `json:"id"`
	DisplayName  string `json:"display_name"`
	Description  string `json:"description"`
	MaxSentences int    `json:"max_sentences"`
}

var personas = []Persona{
	{ID: "interview", DisplayName: "Job Interview", Description: "Get real-time coaching", MaxSentences: 3},
	{ID: "sales", DisplayName: "Sales Call", Description: "Optimize your pitch", MaxSentences: 3},
	{ID: "meeting", DisplayName: "Meeting", Description: "Stay on track", MaxSentences: 3},
	{ID: "negotiation", DisplayName: "Negotiation", Description: "Strategic guidance", MaxSentences: 3},
	{ID: "exam", DisplayName: "Exam", Description: "Quick answers", MaxSentences: 2},
}

func Personas() []Persona {
	result := make([]Persona, len(personas))
	copy(result, personas)

	return result
}

// Lookup returns the persona with the given id, or the default persona and false.
func Lookup(id string) (Persona, bool) {
	index := pie.FindFirstUsing(personas, func(p Persona) bool {
		return p.ID == id
	})
	if index < 0 {
		fallback, _ := Lookup(DefaultPersona)
		return fallback, false
	}

	return personas[index], true
}

func (p Persona) template() string {
	data, err := templates.ReadFile(fmt.Sprintf("persona/%s.txt", p.ID))
	if err != nil {
		data, _ = templates.ReadFile(fmt.Sprintf("persona/%s.txt", DefaultPersona))
	}

	return string(data)
}
