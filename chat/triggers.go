package chat

import (
	"strings"

	"chatview/config"
)

// Trigger reacts to final assistant replies. ShouldActivate sees the text of
// every committed reply; Activate runs when it returns true.
type Trigger interface {
	ShouldActivate(response string) bool
	Activate()
}

// TriggerFunc builds a Trigger from two functions.
type TriggerFunc struct {
	Match func(response string) bool
	Fire  func()
}

func (t TriggerFunc) ShouldActivate(response string) bool { return t.Match != nil && t.Match(response) }

func (t TriggerFunc) Activate() {
	if t.Fire != nil {
		t.Fire()
	}
}

// ContainsTrigger fires when a reply contains phrase, ignoring case.
func ContainsTrigger(phrase string, fire func()) Trigger {
	phrase = strings.ToLower(phrase)
	return TriggerFunc{
		Match: func(response string) bool {
			return strings.Contains(strings.ToLower(response), phrase)
		},
		Fire: fire,
	}
}

// Suggestion is a canned prompt offered before the user has said anything.
type Suggestion struct {
	Title string
	Body  string
	// Prompt is sent when the suggestion is picked. Empty means Title and
	// Body joined by a space.
	Prompt string
}

func (s Suggestion) Text() string {
	if s.Prompt != "" {
		return s.Prompt
	}
	return strings.TrimSpace(s.Title + " " + s.Body)
}

// SuggestionsFromConfig converts the [[suggestions]] entries.
func SuggestionsFromConfig(entries []config.SuggestionConfig) []Suggestion {
	out := make([]Suggestion, 0, len(entries))
	for _, e := range entries {
		if e.Title == "" && e.Body == "" && e.Prompt == "" {
			continue
		}
		out = append(out, Suggestion{Title: e.Title, Body: e.Body, Prompt: e.Prompt})
	}
	return out
}
