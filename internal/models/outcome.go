package models

import (
	"sort"
	"strings"
)

type Outcome string

const (
	OutcomeUnknown Outcome = ""
	OutcomeHome    Outcome = "home"
	OutcomeDraw    Outcome = "draw"
	OutcomeAway    Outcome = "away"
)

// Numeric codes come from the evaluation pipeline: 3 home, 1 draw, 0 away.
var outcomeVocabulary = map[string]Outcome{
	"3":    OutcomeHome,
	"home": OutcomeHome,
	"h":    OutcomeHome,
	"主胜":   OutcomeHome,
	"1":    OutcomeDraw,
	"draw": OutcomeDraw,
	"d":    OutcomeDraw,
	"平局":   OutcomeDraw,
	"主平":   OutcomeDraw,
	"0":    OutcomeAway,
	"away": OutcomeAway,
	"a":    OutcomeAway,
	"客胜":   OutcomeAway,
}

func NormalizeOutcome(token string) Outcome {
	return outcomeVocabulary[strings.ToLower(strings.TrimSpace(token))]
}

// OutcomeTokens lists the raw tokens mapping to o, for building SQL filters.
func OutcomeTokens(o Outcome) []string {
	var out []string
	for k, v := range outcomeVocabulary {
		if v == o {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
