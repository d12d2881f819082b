// Package push sends the daily digests at fixed local times.
package push

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Vovarama1992/support-relay/internal/logger"
	"github.com/Vovarama1992/support-relay/internal/models"
	"github.com/Vovarama1992/support-relay/internal/prediction"
	"github.com/Vovarama1992/support-relay/internal/router"
	"github.com/Vovarama1992/support-relay/internal/timewindow"
)

const (
	YesterdayHour = 11
	PickHour      = 20
	tickSpec      = "* * * * *"
)

type Ledger interface {
	ListPushTargets(ctx context.Context) ([]models.PushTarget, error)
	ClaimPush(ctx context.Context, userID int64, pushDate string, pushType models.PushType) (bool, error)
}

type Sink interface {
	Send(ctx context.Context, addr models.Address, text string) error
	SendWithButton(ctx context.Context, addr models.Address, text, label, url string) error
}

type Options struct {
	Offsets     map[models.Country]int
	ButtonLabel string
	ButtonURL   string
}

type Scheduler struct {
	ledger  Ledger
	digests prediction.Service
	sink    Sink
	opts    Options
	log     *logger.Logger
}

func NewScheduler(ledger Ledger, digests prediction.Service, sink Sink, opts Options, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{
		ledger:  ledger,
		digests: digests,
		sink:    sink,
		opts:    opts,
		log:     log.With("component", "push"),
	}
}

// Tick runs one pass over all push targets and returns how many digests were
// sent. A user is pushed only when the ledger claim for its local date
// succeeds.
func (s *Scheduler) Tick(ctx context.Context, nowUTC time.Time) int {
	targets, err := s.ledger.ListPushTargets(ctx)
	if err != nil {
		s.log.Error("list push targets failed", "error", err)
		return 0
	}
	sent := 0
	for _, t := range targets {
		offset := s.opts.Offsets[t.Country]
		local := timewindow.LocalNow(nowUTC, offset)
		if local.Minute() != 0 {
			continue
		}
		var pushType models.PushType
		switch local.Hour() {
		case YesterdayHour:
			pushType = models.PushYesterday
		case PickHour:
			pushType = models.PushPick
		default:
			continue
		}
		if s.push(ctx, t, pushType, timewindow.LocalDate(nowUTC, offset)) {
			sent++
		}
	}
	return sent
}

func (s *Scheduler) push(ctx context.Context, t models.PushTarget, pushType models.PushType, date string) bool {
	log := s.log.With("user_id", t.UserID, "chatroom_id", t.ChatroomID, "type", pushType, "date", date)
	claimed, err := s.ledger.ClaimPush(ctx, t.UserID, date, pushType)
	if err != nil {
		log.Error("push claim failed", "error", err)
		return false
	}
	if !claimed {
		return false
	}

	addr := models.Address{Platform: models.PlatformTelegram, ChatHandle: t.ChatroomID}
	switch pushType {
	case models.PushYesterday:
		for _, part := range router.Chunk(s.digests.YesterdayDigest(ctx, t.Country), router.MaxChunk) {
			if err := s.sink.Send(ctx, addr, part); err != nil {
				log.Warn("yesterday push failed", "error", err)
				break
			}
		}
	case models.PushPick:
		for _, block := range s.digests.PickDigest(ctx, t.Country) {
			if err := s.sendBlock(ctx, addr, block); err != nil {
				log.Warn("pick push failed", "error", err)
				break
			}
		}
	}
	log.Info("digest pushed")
	return true
}

func (s *Scheduler) sendBlock(ctx context.Context, addr models.Address, text string) error {
	if s.opts.ButtonURL == "" {
		return s.sink.Send(ctx, addr, text)
	}
	return s.sink.SendWithButton(ctx, addr, text, s.opts.ButtonLabel, s.opts.ButtonURL)
}

// Run ticks at the start of every minute until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cronLogger{s.log}), cron.SkipIfStillRunning(cronLogger{s.log})),
	)
	if _, err := c.AddFunc(tickSpec, func() {
		s.Tick(ctx, time.Now().UTC())
	}); err != nil {
		return err
	}
	c.Start()
	s.log.Info("push scheduler started", "spec", tickSpec)

	<-ctx.Done()
	<-c.Stop().Done()
	s.log.Info("push scheduler stopped")
	return nil
}

// cronLogger adapts the service logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
