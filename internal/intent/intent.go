// Package intent maps inbound text to the fixed bot commands and to a
// free-form country choice.
package intent

import (
	"strings"

	"github.com/Vovarama1992/support-relay/internal/models"
)

type Intent string

const (
	None        Intent = ""
	Start       Intent = "start"
	AIPick      Intent = "ai_pick"
	AIHistory   Intent = "ai_history"
	AIYesterday Intent = "ai_yesterday"
	Help        Intent = "help"
)

// Order matters only for commands sharing a prefix; none do today.
var commands = []struct {
	prefix string
	intent Intent
}{
	{"/start", Start},
	{"/ai_pick", AIPick},
	{"/ai_history", AIHistory},
	{"/ai_yesterday", AIYesterday},
	{"/help", Help},
}

// Classify matches the trimmed text against the command prefixes,
// case-insensitively.
func Classify(text string) Intent {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return None
	}
	for _, c := range commands {
		if strings.HasPrefix(t, c.prefix) {
			return c.intent
		}
	}
	return None
}

// IsDigest reports whether the intent is answered from prediction data.
func (i Intent) IsDigest() bool {
	return i == AIPick || i == AIHistory || i == AIYesterday
}

// CountryChoice recognizes a country name, flag glyph or bare code in text.
func CountryChoice(text string) models.Country {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return models.CountryUnset
	}
	switch {
	case t == "ph",
		strings.Contains(t, "菲律宾"),
		strings.Contains(t, "philippines"),
		strings.Contains(t, "🇵🇭"):
		return models.CountryPH
	case t == "us", t == "usa",
		strings.Contains(t, "美国"),
		strings.Contains(t, "united states"),
		strings.Contains(t, "🇺🇸"):
		return models.CountryUS
	}
	return models.CountryUnset
}
