package prediction

import (
	"context"

	"github.com/Vovarama1992/support-relay/internal/models"
	"github.com/Vovarama1992/support-relay/internal/timewindow"
)

// Repo — read-only access to evaluations joined with fixtures.
type Repo interface {
	SettledBetRows(ctx context.Context) ([]models.Evaluation, error)
	YesterdayRows(ctx context.Context, w timewindow.Window, minConfidence float64) ([]models.Evaluation, error)
	YesterdayAccuracy(ctx context.Context, w timewindow.Window, minConfidence float64) (float64, error)
	PickRows(ctx context.Context, w timewindow.Window, minConfidence float64) ([]models.Evaluation, error)
}

// Service renders the three prediction digests for a recipient's country.
// Failures degrade to the canned "no data" texts.
type Service interface {
	HistoryDigest(ctx context.Context, country models.Country) string
	YesterdayDigest(ctx context.Context, country models.Country) string
	// PickDigest returns one block per match, or the single no-picks text.
	PickDigest(ctx context.Context, country models.Country) []string
}
