package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Vovarama1992/support-relay/internal/models"
	"github.com/Vovarama1992/support-relay/internal/timewindow"
)

// outcomeExpr normalizes an outcome column to 'home'/'draw'/'away' (NULL when
// unknown) using the same vocabulary as models.NormalizeOutcome.
func outcomeExpr(col string) string {
	var b strings.Builder
	b.WriteString("CASE")
	for _, o := range []models.Outcome{models.OutcomeHome, models.OutcomeDraw, models.OutcomeAway} {
		quoted := make([]string, 0, 8)
		for _, tok := range models.OutcomeTokens(o) {
			quoted = append(quoted, "'"+strings.ReplaceAll(tok, "'", "''")+"'")
		}
		fmt.Fprintf(&b, " WHEN LOWER(TRIM(%s)) IN (%s) THEN '%s'", col, strings.Join(quoted, ", "), o)
	}
	b.WriteString(" END")
	return b.String()
}

// successExpr is 1 when both outcomes normalize to the same known value.
var successExpr = fmt.Sprintf(
	"CASE WHEN %s = %s THEN 1 ELSE 0 END",
	outcomeExpr("e.predict_winner"),
	outcomeExpr("e.result"),
)

const evalColumns = `
	e.fixture_id,
	e.predict_winner,
	e.result,
	COALESCE(e.confidence, 0),
	COALESCE(e.key_tag_evidence, ''),
	f.fixture_date,
	COALESCE(f.home_name, ''),
	COALESCE(f.away_name, '')`

const evalJoin = `
	FROM ai_eval e
	INNER JOIN api_football_fixtures f ON f.fixture_id = e.fixture_id`

// SettledBetRows returns every settled, recommendation-flagged evaluation,
// newest kickoff first.
func (s *Store) SettledBetRows(ctx context.Context) ([]models.Evaluation, error) {
	q := `SELECT ` + evalColumns + `, ` + successExpr + evalJoin + `
		WHERE COALESCE(e.if_bet, 0) = 1
		  AND e.result IS NOT NULL
		  AND f.fixture_date IS NOT NULL
		ORDER BY f.fixture_date DESC, e.fixture_id DESC`
	return s.queryEvaluations(ctx, q, true)
}

// YesterdayRows returns settled picks above minConfidence kicking off inside
// w, oldest first, each carrying the SQL-computed success marker.
func (s *Store) YesterdayRows(ctx context.Context, w timewindow.Window, minConfidence float64) ([]models.Evaluation, error) {
	q := `SELECT ` + evalColumns + `, ` + successExpr + evalJoin + `
		WHERE COALESCE(e.if_bet, 0) = 1
		  AND e.confidence > $1
		  AND e.result IS NOT NULL
		  AND f.fixture_date >= $2 AND f.fixture_date < $3
		ORDER BY f.fixture_date ASC, e.fixture_id ASC`
	return s.queryEvaluations(ctx, q, true, minConfidence, utc(w.Start), utc(w.End))
}

// YesterdayAccuracy is the aggregate over the same filter as YesterdayRows,
// rounded to one decimal in SQL.
func (s *Store) YesterdayAccuracy(ctx context.Context, w timewindow.Window, minConfidence float64) (float64, error) {
	q := `SELECT COALESCE(ROUND(SUM(` + successExpr + `) * 100.0 / NULLIF(COUNT(*), 0), 1), 0)` + evalJoin + `
		WHERE COALESCE(e.if_bet, 0) = 1
		  AND e.confidence > $1
		  AND e.result IS NOT NULL
		  AND f.fixture_date >= $2 AND f.fixture_date < $3`
	var acc sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, q, minConfidence, utc(w.Start), utc(w.End)).Scan(&acc); err != nil {
		return 0, fmt.Errorf("yesterday accuracy: %w", err)
	}
	return acc.Float64, nil
}

// PickRows returns upcoming recommended picks above minConfidence inside w,
// ordered by kickoff.
func (s *Store) PickRows(ctx context.Context, w timewindow.Window, minConfidence float64) ([]models.Evaluation, error) {
	q := `SELECT ` + evalColumns + evalJoin + `
		WHERE COALESCE(e.if_bet, 0) = 1
		  AND e.confidence > $1
		  AND f.fixture_date >= $2 AND f.fixture_date < $3
		ORDER BY f.fixture_date ASC, e.fixture_id ASC`
	return s.queryEvaluations(ctx, q, false, minConfidence, utc(w.Start), utc(w.End))
}

func (s *Store) queryEvaluations(ctx context.Context, q string, withSuccess bool, args ...any) ([]models.Evaluation, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	defer rows.Close()

	var out []models.Evaluation
	for rows.Next() {
		var (
			e         models.Evaluation
			predicted sql.NullString
			actual    sql.NullString
			success   int64
		)
		dest := []any{&e.FixtureID, &predicted, &actual, &e.Confidence, &e.Tags, &e.Kickoff, &e.Home, &e.Away}
		if withSuccess {
			dest = append(dest, &success)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		e.Predicted = predicted.String
		e.Actual = nullStringPtr(actual)
		e.Kickoff = e.Kickoff.UTC()
		e.IfBet = true
		e.Success = success == 1
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluations: %w", err)
	}
	return out, nil
}
