package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Vovarama1992/support-relay/internal/models"
	"github.com/Vovarama1992/support-relay/internal/prediction"
	"github.com/Vovarama1992/support-relay/internal/timewindow"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "relay.db")
	s, err := Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

type evalSeed struct {
	fixtureID  int64
	kickoff    time.Time
	predicted  string
	actual     *string
	confidence float64
	ifBet      int
	tags       string
	home, away string
}

func seedEval(t *testing.T, s *Store, e evalSeed) {
	t.Helper()
	ctx := context.Background()
	if e.home == "" {
		e.home, e.away = "Home", "Away"
	}
	if _, err := s.DB().ExecContext(ctx, `
		INSERT INTO api_football_fixtures (fixture_id, fixture_date, home_name, away_name)
		VALUES ($1, $2, $3, $4)
	`, e.fixtureID, e.kickoff.UTC(), e.home, e.away); err != nil {
		t.Fatalf("seed fixture: %v", err)
	}
	if _, err := s.DB().ExecContext(ctx, `
		INSERT INTO ai_eval (fixture_id, predict_winner, result, confidence, key_tag_evidence, if_bet)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.fixtureID, e.predicted, e.actual, e.confidence, e.tags, e.ifBet); err != nil {
		t.Fatalf("seed eval: %v", err)
	}
}

func TestDetectDialect(t *testing.T) {
	tests := map[string]Dialect{
		"postgres://u:p@h:5432/db":    DialectPostgres,
		"postgresql://u@h/db":         DialectPostgres,
		"host=db user=relay dbname=r": DialectPostgres,
		"/var/lib/relay/relay.db":     DialectSQLite,
		"relay.db":                    DialectSQLite,
	}
	for dsn, want := range tests {
		if got := DetectDialect(dsn); got != want {
			t.Errorf("DetectDialect(%q) = %q, want %q", dsn, got, want)
		}
	}
}

func TestOpen_CreatesDirectoryAndIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "relay.db")
	s, err := Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	s.Close()
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("database file not created: %v", err)
	}
	s2, err := Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("second Open (migrations rerun) failed: %v", err)
	}
	defer s2.Close()
	if err := s2.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestUpsertUser_MergeMatchesMergeUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

	first := models.User{ExternalID: "42", Username: strPtr("alice"), ChatroomID: strPtr("room-1"), Country: models.CountryPH, UpdatedAt: t0}
	id1, err := s.UpsertUser(ctx, first)
	if err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}

	incoming := models.User{ExternalID: "42", UpdatedAt: t0.Add(time.Minute)}
	id2, err := s.UpsertUser(ctx, incoming)
	if err != nil {
		t.Fatalf("second UpsertUser failed: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected same id, got %d and %d", id1, id2)
	}

	got, err := s.GetUserByExternalID(ctx, "42")
	if err != nil {
		t.Fatalf("GetUserByExternalID failed: %v", err)
	}
	first.ID = id1
	want := models.MergeUser(&first, incoming)
	if got.Username == nil || *got.Username != *want.Username {
		t.Errorf("username: got %v, want %v", got.Username, *want.Username)
	}
	if got.ChatroomID == nil || *got.ChatroomID != *want.ChatroomID {
		t.Errorf("chatroom: got %v, want %v", got.ChatroomID, *want.ChatroomID)
	}
	if got.Country != want.Country {
		t.Errorf("country: got %q, want %q", got.Country, want.Country)
	}
	if !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Errorf("updated_at: got %v, want %v", got.UpdatedAt, want.UpdatedAt)
	}

	if _, err := s.UpsertUser(ctx, models.User{ExternalID: "42", Country: models.CountryUS, UpdatedAt: t0.Add(2 * time.Minute)}); err != nil {
		t.Fatalf("country upsert failed: %v", err)
	}
	got, _ = s.GetUserByExternalID(ctx, "42")
	if got.Country != models.CountryUS || *got.Username != "alice" {
		t.Errorf("expected US and kept username, got %+v", got)
	}
}

func TestUpsertUser_RequiresExternalID(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.UpsertUser(context.Background(), models.User{}); err == nil {
		t.Fatal("expected error for empty external id")
	}
}

func TestGetUserByExternalID_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetUserByExternalID(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCountryForChat(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.UpsertUser(ctx, models.User{ExternalID: "u1", ChatroomID: strPtr("room-1"), Country: models.CountryUS}); err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}
	if _, err := s.UpsertUser(ctx, models.User{ExternalID: "u2", Country: models.CountryPH}); err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}

	if c, err := s.CountryForChat(ctx, "room-1", "u2"); err != nil || c != models.CountryUS {
		t.Errorf("chatroom lookup: got %q, %v", c, err)
	}
	if c, err := s.CountryForChat(ctx, "room-unknown", "u2"); err != nil || c != models.CountryPH {
		t.Errorf("external id fallback: got %q, %v", c, err)
	}
	if c, err := s.CountryForChat(ctx, "", "nobody"); err != nil || c != models.CountryUnset {
		t.Errorf("unknown user: got %q, %v", c, err)
	}
}

func TestLogMessage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	uid, err := s.UpsertUser(ctx, models.User{ExternalID: "u1"})
	if err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}
	conv := int64(9)
	if err := s.LogMessage(ctx, models.LoggedMessage{ChatroomID: "room-1", ConversationID: &conv, UserID: &uid, Content: "hi", MessageType: "incoming"}); err != nil {
		t.Fatalf("LogMessage failed: %v", err)
	}
	if err := s.LogMessage(ctx, models.LoggedMessage{ChatroomID: "room-1", Content: "anon"}); err != nil {
		t.Fatalf("LogMessage without user failed: %v", err)
	}
	n, err := s.CountMessages(ctx, "room-1")
	if err != nil || n != 2 {
		t.Errorf("expected 2 messages, got %d (%v)", n, err)
	}
}

func TestClaimPush_ConcurrentClaimsSucceedOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	uid, err := s.UpsertUser(ctx, models.User{ExternalID: "42"})
	if err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}

	var (
		wg      sync.WaitGroup
		success atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.ClaimPush(ctx, uid, "2024-03-10", models.PushPick)
			if err != nil {
				t.Errorf("ClaimPush failed: %v", err)
				return
			}
			if ok {
				success.Add(1)
			}
		}()
	}
	wg.Wait()

	if success.Load() != 1 {
		t.Fatalf("expected exactly one successful claim, got %d", success.Load())
	}
	n, err := s.CountPushes(ctx, uid, "2024-03-10", models.PushPick)
	if err != nil || n != 1 {
		t.Fatalf("expected one ledger row, got %d (%v)", n, err)
	}

	ok, err := s.ClaimPush(ctx, uid, "2024-03-10", models.PushYesterday)
	if err != nil || !ok {
		t.Errorf("different push type should claim, got %v (%v)", ok, err)
	}
	ok, err = s.ClaimPush(ctx, uid, "2024-03-11", models.PushPick)
	if err != nil || !ok {
		t.Errorf("different date should claim, got %v (%v)", ok, err)
	}
}

func TestListPushTargets_LatestPerChatroom(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

	mustUpsert := func(u models.User) int64 {
		id, err := s.UpsertUser(ctx, u)
		if err != nil {
			t.Fatalf("UpsertUser failed: %v", err)
		}
		return id
	}
	mustUpsert(models.User{ExternalID: "old", ChatroomID: strPtr("room-1"), Country: models.CountryPH, UpdatedAt: t0})
	newer := mustUpsert(models.User{ExternalID: "new", ChatroomID: strPtr("room-1"), Country: models.CountryUS, UpdatedAt: t0.Add(time.Hour)})
	mustUpsert(models.User{ExternalID: "nocountry", ChatroomID: strPtr("room-2"), UpdatedAt: t0})
	mustUpsert(models.User{ExternalID: "noroom", Country: models.CountryPH, UpdatedAt: t0})
	other := mustUpsert(models.User{ExternalID: "other", ChatroomID: strPtr("room-3"), Country: models.CountryPH, UpdatedAt: t0})

	targets, err := s.ListPushTargets(ctx)
	if err != nil {
		t.Fatalf("ListPushTargets failed: %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets, got %+v", targets)
	}
	byRoom := map[string]models.PushTarget{}
	for _, tg := range targets {
		byRoom[tg.ChatroomID] = tg
	}
	if byRoom["room-1"].UserID != newer || byRoom["room-1"].Country != models.CountryUS {
		t.Errorf("room-1 should resolve to the newest user, got %+v", byRoom["room-1"])
	}
	if byRoom["room-3"].UserID != other {
		t.Errorf("unexpected room-3 target %+v", byRoom["room-3"])
	}
}

func TestYesterdayRowsMatchAggregate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 11, 4, 0, 0, 0, time.UTC)
	w := timewindow.Yesterday(now, 8) // [2024-03-09T16:00Z, 2024-03-10T16:00Z)

	base := w.Start.Add(2 * time.Hour)
	seeds := []evalSeed{
		{fixtureID: 1, kickoff: base, predicted: "3", actual: strPtr("home"), confidence: 0.8, ifBet: 1},
		{fixtureID: 2, kickoff: base.Add(time.Hour), predicted: "1", actual: strPtr("D"), confidence: 0.7, ifBet: 1},
		{fixtureID: 3, kickoff: base.Add(2 * time.Hour), predicted: "away", actual: strPtr("0"), confidence: 0.9, ifBet: 1},
		{fixtureID: 4, kickoff: base.Add(3 * time.Hour), predicted: "0", actual: strPtr("home"), confidence: 0.65, ifBet: 1},
		{fixtureID: 5, kickoff: base.Add(4 * time.Hour), predicted: "3", actual: strPtr("1"), confidence: 0.75, ifBet: 1},
		// filtered out: low confidence, not a bet, unsettled, outside window
		{fixtureID: 6, kickoff: base, predicted: "3", actual: strPtr("3"), confidence: 0.5, ifBet: 1},
		{fixtureID: 7, kickoff: base, predicted: "3", actual: strPtr("3"), confidence: 0.9, ifBet: 0},
		{fixtureID: 8, kickoff: base, predicted: "3", actual: nil, confidence: 0.9, ifBet: 1},
		{fixtureID: 9, kickoff: w.End, predicted: "3", actual: strPtr("3"), confidence: 0.9, ifBet: 1},
	}
	for _, e := range seeds {
		seedEval(t, s, e)
	}

	rows, err := s.YesterdayRows(ctx, w, prediction.MinConfidence)
	if err != nil {
		t.Fatalf("YesterdayRows failed: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(rows))
	}
	successes := 0
	for i, r := range rows {
		if r.FixtureID != int64(i+1) {
			t.Errorf("expected kickoff ascending order, row %d is fixture %d", i, r.FixtureID)
		}
		if r.Success != prediction.IsSuccess(r.Predicted, r.Actual) {
			t.Errorf("fixture %d: SQL marker %v disagrees with IsSuccess", r.FixtureID, r.Success)
		}
		if r.Success {
			successes++
		}
	}
	if successes != 3 {
		t.Errorf("expected 3 successes, got %d", successes)
	}

	acc, err := s.YesterdayAccuracy(ctx, w, prediction.MinConfidence)
	if err != nil {
		t.Fatalf("YesterdayAccuracy failed: %v", err)
	}
	if acc != 60.0 {
		t.Errorf("expected 60.0, got %v", acc)
	}
	if got := prediction.Accuracy(rows, nil, nil); got != acc {
		t.Errorf("per-row accuracy %v disagrees with aggregate %v", got, acc)
	}
}

func TestYesterdayAccuracy_EmptyWindow(t *testing.T) {
	s := newTestStore(t)
	w := timewindow.Yesterday(time.Date(2024, 3, 11, 4, 0, 0, 0, time.UTC), 0)
	acc, err := s.YesterdayAccuracy(context.Background(), w, prediction.MinConfidence)
	if err != nil {
		t.Fatalf("YesterdayAccuracy failed: %v", err)
	}
	if acc != 0 {
		t.Errorf("expected 0, got %v", acc)
	}
}

func TestSettledBetRowsAndPickRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 10, 4, 0, 0, 0, time.UTC)

	seedEval(t, s, evalSeed{fixtureID: 1, kickoff: now.Add(-48 * time.Hour), predicted: "3", actual: strPtr("3"), confidence: 0.4, ifBet: 1})
	seedEval(t, s, evalSeed{fixtureID: 2, kickoff: now.Add(-24 * time.Hour), predicted: "0", actual: strPtr("3"), confidence: 0.9, ifBet: 1})
	seedEval(t, s, evalSeed{fixtureID: 3, kickoff: now.Add(-24 * time.Hour), predicted: "0", actual: strPtr("0"), confidence: 0.9, ifBet: 0})
	tomorrow := timewindow.Tomorrow(now, 8)
	seedEval(t, s, evalSeed{fixtureID: 10, kickoff: tomorrow.Start.Add(3 * time.Hour), predicted: "1", confidence: 0.7, ifBet: 1, tags: "BTTS"})
	seedEval(t, s, evalSeed{fixtureID: 11, kickoff: tomorrow.Start.Add(time.Hour), predicted: "3", confidence: 0.8, ifBet: 1})
	seedEval(t, s, evalSeed{fixtureID: 12, kickoff: tomorrow.End.Add(time.Hour), predicted: "3", confidence: 0.8, ifBet: 1})
	seedEval(t, s, evalSeed{fixtureID: 13, kickoff: tomorrow.Start.Add(time.Hour), predicted: "3", confidence: 0.6, ifBet: 1})

	settled, err := s.SettledBetRows(ctx)
	if err != nil {
		t.Fatalf("SettledBetRows failed: %v", err)
	}
	if len(settled) != 2 || settled[0].FixtureID != 2 || settled[1].FixtureID != 1 {
		t.Fatalf("expected fixtures [2 1] newest first, got %+v", settled)
	}
	if settled[0].Success || !settled[1].Success {
		t.Errorf("unexpected success markers %+v", settled)
	}

	picks, err := s.PickRows(ctx, tomorrow, prediction.MinConfidence)
	if err != nil {
		t.Fatalf("PickRows failed: %v", err)
	}
	if len(picks) != 2 || picks[0].FixtureID != 11 || picks[1].FixtureID != 10 {
		t.Fatalf("expected picks [11 10], got %+v", picks)
	}
	if picks[1].Tags != "BTTS" || picks[1].Actual != nil {
		t.Errorf("unexpected pick row %+v", picks[1])
	}
	if !picks[0].Kickoff.Equal(tomorrow.Start.Add(time.Hour)) {
		t.Errorf("kickoff not round-tripped: %v", picks[0].Kickoff)
	}
}

func TestThreads(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

	if _, err := s.LatestActiveThread(ctx, models.PlatformTelegram, "room-1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	exp := now.Add(30 * time.Minute)
	oldID, err := s.InsertThread(ctx, models.Thread{Platform: models.PlatformTelegram, ChatroomID: "room-1", AgentThreadID: "t-old", StartedAt: now.Add(-time.Hour), ExpiresAt: &exp})
	if err != nil {
		t.Fatalf("InsertThread failed: %v", err)
	}
	newID, err := s.InsertThread(ctx, models.Thread{Platform: models.PlatformTelegram, ChatroomID: "room-1", AgentThreadID: "t-new", StartedAt: now, ExpiresAt: &exp})
	if err != nil {
		t.Fatalf("InsertThread failed: %v", err)
	}

	th, err := s.LatestActiveThread(ctx, models.PlatformTelegram, "room-1")
	if err != nil {
		t.Fatalf("LatestActiveThread failed: %v", err)
	}
	if th.ID != newID || th.AgentThreadID != "t-new" || th.Status != models.ThreadActive {
		t.Fatalf("expected newest thread, got %+v", th)
	}

	later := now.Add(10 * time.Minute)
	if err := s.TouchThread(ctx, models.PlatformTelegram, "room-1", "t-new", later, later.Add(30*time.Minute)); err != nil {
		t.Fatalf("TouchThread failed: %v", err)
	}
	th, _ = s.LatestActiveThread(ctx, models.PlatformTelegram, "room-1")
	if th.LastActivityAt == nil || !th.LastActivityAt.Equal(later) {
		t.Errorf("last activity not renewed: %v", th.LastActivityAt)
	}
	if th.ExpiresAt == nil || !th.ExpiresAt.Equal(later.Add(30*time.Minute)) {
		t.Errorf("expiry not renewed: %v", th.ExpiresAt)
	}

	if err := s.ExpireThread(ctx, newID); err != nil {
		t.Fatalf("ExpireThread failed: %v", err)
	}
	th, err = s.LatestActiveThread(ctx, models.PlatformTelegram, "room-1")
	if err != nil || th.ID != oldID {
		t.Fatalf("expected fallback to older active row, got %+v (%v)", th, err)
	}

	if _, err := s.LatestActiveThread(ctx, models.PlatformChatwoot, "room-1"); err != ErrNotFound {
		t.Errorf("platforms must not share threads, got %v", err)
	}
	if _, err := s.InsertThread(ctx, models.Thread{Platform: models.PlatformChatwoot, ChatroomID: "room-2", AgentThreadID: "t-new", StartedAt: now}); err == nil {
		t.Error("expected unique violation on agent_thread_id")
	}
	n, err := s.CountThreads(ctx, models.PlatformTelegram, "room-1")
	if err != nil || n != 2 {
		t.Errorf("expected 2 rows kept, got %d (%v)", n, err)
	}
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" || DetectDialect(dsn) != DialectPostgres {
		t.Skip("DATABASE_URL not set to a postgres DSN")
	}
	s, err := Open(context.Background(), dsn)
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	ext := "pg-test-" + time.Now().Format("20060102150405.000000000")
	uid, err := s.UpsertUser(ctx, models.User{ExternalID: ext, Country: models.CountryPH})
	if err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}
	ok, err := s.ClaimPush(ctx, uid, "2024-03-10", models.PushPick)
	if err != nil || !ok {
		t.Fatalf("first claim: %v %v", ok, err)
	}
	ok, err = s.ClaimPush(ctx, uid, "2024-03-10", models.PushPick)
	if err != nil || ok {
		t.Fatalf("second claim should fail: %v %v", ok, err)
	}
	w := timewindow.Yesterday(time.Now(), 8)
	if _, err := s.YesterdayAccuracy(ctx, w, prediction.MinConfidence); err != nil {
		t.Fatalf("YesterdayAccuracy failed: %v", err)
	}
}
