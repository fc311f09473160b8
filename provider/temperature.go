package provider

import (
	"fmt"
	"strings"
)

// Temperature is a named sampling preset pairing temperature with top-p.
type Temperature struct {
	Name        string
	Temperature float64
	TopP        float64
	Description string
}

var (
	CodeGeneration = Temperature{
		Name: "code-generation", Temperature: 0.2, TopP: 0.1,
		Description: "Generates code that adheres to established patterns and conventions. Output is more deterministic and focused. Useful for generating syntactically correct code.",
	}
	CreativeWriting = Temperature{
		Name: "creative-writing", Temperature: 0.7, TopP: 0.8,
		Description: "Generates creative and diverse text for storytelling. Output is more exploratory and less constrained by patterns.",
	}
	ChatbotResponses = Temperature{
		Name: "chatbot-responses", Temperature: 0.5, TopP: 0.5,
		Description: "Generates conversational responses that balance coherence and diversity. Output is more natural and engaging.",
	}
	CodeCommentGeneration = Temperature{
		Name: "code-comment-generation", Temperature: 0.3, TopP: 0.2,
		Description: "Generated code comments are more likely to be concise and relevant. Output is more deterministic and adheres to conventions.",
	}
	DataAnalysisScripting = Temperature{
		Name: "data-analysis-scripting", Temperature: 0.2, TopP: 0.1,
		Description: "Generated data analysis scripts are more likely to be correct and efficient. Output is more deterministic and focused.",
	}
	ExploratoryCodeWriting = Temperature{
		Name: "exploratory-code-writing", Temperature: 0.6, TopP: 0.7,
		Description: "Generates code that explores alternative solutions and creative approaches. Output is less constrained by established patterns.",
	}
)

// Temperatures lists every preset.
var Temperatures = []Temperature{
	CodeGeneration,
	CreativeWriting,
	ChatbotResponses,
	CodeCommentGeneration,
	DataAnalysisScripting,
	ExploratoryCodeWriting,
}

// ParseTemperature resolves a preset by name. An empty name selects
// ChatbotResponses.
func ParseTemperature(name string) (Temperature, error) {
	if name == "" {
		return ChatbotResponses, nil
	}
	for _, t := range Temperatures {
		if strings.EqualFold(t.Name, name) {
			return t, nil
		}
	}
	return Temperature{}, fmt.Errorf("unknown temperature preset: %s", name)
}
