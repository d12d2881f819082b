package prediction

import (
	"math"
	"time"

	"github.com/Vovarama1992/support-relay/internal/models"
)

// MinConfidence is the strict lower bound for digest and pick rows.
const MinConfidence = 0.6

// IsSuccess reports whether both outcomes normalize to the same known value.
func IsSuccess(predicted string, actual *string) bool {
	if actual == nil {
		return false
	}
	p := models.NormalizeOutcome(predicted)
	return p != models.OutcomeUnknown && p == models.NormalizeOutcome(*actual)
}

// Accuracy is the success percentage, rounded to one decimal, over settled
// rows whose kickoff lies in [start, end). Nil bounds are open. An empty
// selection yields 0.
func Accuracy(rows []models.Evaluation, start, end *time.Time) float64 {
	total, success := 0, 0
	for _, r := range rows {
		if !r.Settled() {
			continue
		}
		if start != nil && r.Kickoff.Before(*start) {
			continue
		}
		if end != nil && !r.Kickoff.Before(*end) {
			continue
		}
		total++
		if IsSuccess(r.Predicted, r.Actual) {
			success++
		}
	}
	if total == 0 {
		return 0
	}
	return roundTenth(float64(success) * 100 / float64(total))
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
