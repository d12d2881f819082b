package prediction

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Vovarama1992/support-relay/internal/logger"
	"github.com/Vovarama1992/support-relay/internal/models"
	"github.com/Vovarama1992/support-relay/internal/timewindow"
)

var outcomeLabels = map[models.Outcome]string{
	models.OutcomeHome: "主胜",
	models.OutcomeDraw: "主平",
	models.OutcomeAway: "客胜",
}

type Options struct {
	// Offsets maps a country to its UTC offset in hours; missing means 0.
	Offsets  map[models.Country]int
	LinkBase string
	Now      func() time.Time
}

type service struct {
	repo     Repo
	offsets  map[models.Country]int
	linkBase string
	now      func() time.Time
	log      *logger.Logger
}

func NewService(repo Repo, opts Options, log *logger.Logger) Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &service{
		repo:     repo,
		offsets:  opts.Offsets,
		linkBase: opts.LinkBase,
		now:      opts.Now,
		log:      log.With("component", "prediction"),
	}
}

func (s *service) offset(country models.Country) int {
	return s.offsets[country]
}

func (s *service) HistoryDigest(ctx context.Context, country models.Country) string {
	rows, err := s.repo.SettledBetRows(ctx)
	if err != nil {
		s.log.Error("history rows failed", "error", err)
		return NoHistoryText
	}
	if len(rows) == 0 {
		return NoHistoryText
	}

	now := s.now().UTC()
	last7 := timewindow.Last7Days(now)
	yesterday := timewindow.Yesterday(now, s.offset(country))

	overall := Accuracy(rows, nil, nil)
	acc7 := Accuracy(rows, &last7.Start, &last7.End)
	accYesterday := Accuracy(rows, &yesterday.Start, &yesterday.End)

	recent := make([]models.Evaluation, len(rows))
	copy(recent, rows)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].Kickoff.After(recent[j].Kickoff)
	})
	if len(recent) > recentCount {
		recent = recent[:recentCount]
	}
	var marks strings.Builder
	for _, r := range recent {
		marks.WriteString(mark(IsSuccess(r.Predicted, r.Actual)))
	}
	line := marks.String()
	if line == "" {
		line = noRecentText
	}

	return fmt.Sprintf(historyFormat, overall, acc7, accYesterday, line)
}

func (s *service) YesterdayDigest(ctx context.Context, country models.Country) string {
	offset := s.offset(country)
	w := timewindow.Yesterday(s.now(), offset)
	log := s.log.With("country", country, "offset", offset, "start", w.Start, "end", w.End)

	rows, err := s.repo.YesterdayRows(ctx, w, MinConfidence)
	if err != nil {
		log.Error("yesterday rows failed", "error", err)
		return NoYesterdayText
	}
	if len(rows) == 0 {
		log.Debug("no yesterday rows")
		return NoYesterdayText
	}
	acc, err := s.repo.YesterdayAccuracy(ctx, w, MinConfidence)
	if err != nil {
		log.Warn("yesterday aggregate failed, using per-row accuracy", "error", err)
		acc = Accuracy(rows, nil, nil)
	}

	lines := make([]string, 0, len(rows))
	for i, r := range rows {
		lines = append(lines, fmt.Sprintf(yesterdayLineFormat, i+1, r.Home, r.Away, mark(r.Success)))
	}
	return fmt.Sprintf(yesterdayHeaderFormat, acc) + strings.Join(lines, "\n")
}

func (s *service) PickDigest(ctx context.Context, country models.Country) []string {
	offset := s.offset(country)
	w := timewindow.Tomorrow(s.now(), offset)
	log := s.log.With("country", country, "offset", offset, "start", w.Start, "end", w.End)

	rows, err := s.repo.PickRows(ctx, w, MinConfidence)
	if err != nil {
		log.Error("pick rows failed", "error", err)
		return []string{NoPicksText}
	}
	if len(rows) == 0 {
		log.Debug("no pick rows")
		return []string{NoPicksText}
	}

	blocks := make([]string, 0, len(rows))
	for i, r := range rows {
		blocks = append(blocks, fmt.Sprintf(pickBlockFormat,
			i+1, r.Home, r.Away,
			timewindow.LocalNow(r.Kickoff, offset).Format("2006-01-02 15:04"),
			outcomeLabel(r.Predicted),
			int(math.Round(r.Confidence*100)),
			FormatTags(r.Tags),
			s.linkBase, r.FixtureID,
		))
	}
	return blocks
}

// JoinBlocks is the single-message form of a pick digest.
func JoinBlocks(blocks []string) string {
	return strings.Join(blocks, "\n\n")
}

func outcomeLabel(raw string) string {
	if label, ok := outcomeLabels[models.NormalizeOutcome(raw)]; ok {
		return label
	}
	return raw
}

func mark(ok bool) string {
	if ok {
		return markSuccess
	}
	return markFailure
}
