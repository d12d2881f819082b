package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/Vovarama1992/support-relay/internal/agent"
	"github.com/Vovarama1992/support-relay/internal/chatwoot"
	"github.com/Vovarama1992/support-relay/internal/config"
	"github.com/Vovarama1992/support-relay/internal/httpapi"
	"github.com/Vovarama1992/support-relay/internal/lark"
	"github.com/Vovarama1992/support-relay/internal/logger"
	"github.com/Vovarama1992/support-relay/internal/models"
	"github.com/Vovarama1992/support-relay/internal/prediction"
	"github.com/Vovarama1992/support-relay/internal/push"
	"github.com/Vovarama1992/support-relay/internal/router"
	"github.com/Vovarama1992/support-relay/internal/store"
	"github.com/Vovarama1992/support-relay/internal/tasks"
	"github.com/Vovarama1992/support-relay/internal/telegram"
	"github.com/Vovarama1992/support-relay/internal/thread"
)

func main() {
	cfg, cfgErr := config.Load()

	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer lg.Sync()

	if cfgErr != nil {
		lg.Fatal("config error", "error", cfgErr)
	}
	for _, w := range cfg.Warnings {
		lg.Warn("config", "warning", w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	st, err := store.Open(openCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		lg.Fatal("db open error", "error", err)
	}
	defer st.Close()
	lg.Info("store ready", "dialect", st.Dialect())

	// --- Outbound ---
	pool := tasks.NewPool(cfg.TaskWorkers, cfg.TaskQueueSize, lg)
	tg := telegram.NewClient(cfg.TelegramToken, "", lg)
	cw := chatwoot.NewClient(cfg.ChatwootBaseURL, cfg.ChatwootToken, cfg.AllowedInboxes, lg)
	alerts := lark.NewClient(cfg.LarkWebhookURL, lg)

	var (
		ag      agent.Agent
		creator thread.Creator
	)
	switch {
	case cfg.AgentURL != "":
		a := agent.NewHTTPAgent(cfg.AgentURL, cfg.AgentEndpoint, cfg.AgentName, lg)
		ag, creator = a, a
		lg.Info("agent: http", "url", cfg.AgentURL, "endpoint", cfg.AgentEndpoint)
	case cfg.OpenAIKey != "":
		a := agent.NewOpenAIAgent(cfg.OpenAIKey, cfg.OpenAIModel, "", lg)
		ag, creator = a, a
		lg.Info("agent: openai", "model", cfg.OpenAIModel)
	default:
		lg.Warn("no agent configured, free-form messages are only logged")
	}

	// --- Core ---
	threads := thread.NewManager(st, creator, thread.Options{
		TTLs: map[models.Platform]time.Duration{
			models.PlatformTelegram: cfg.ThreadTTL(models.PlatformTelegram),
			models.PlatformChatwoot: cfg.ThreadTTL(models.PlatformChatwoot),
		},
		MaxAge: cfg.ThreadMaxAge,
	}, lg)
	digests := prediction.NewService(st, prediction.Options{
		Offsets:  cfg.CountryOffsets,
		LinkBase: cfg.FixtureLinkBase,
	}, lg)
	rt := router.New(router.Deps{
		Sinks: map[models.Platform]router.MessageSink{
			models.PlatformChatwoot: cw,
			models.PlatformTelegram: tg,
		},
		Users:     st,
		Digests:   digests,
		Threads:   threads,
		Agent:     ag,
		Escalator: alerts,
		Tasks:     pool,
		AgentName: cfg.AgentName,
	}, lg)
	scheduler := push.NewScheduler(st, digests, tg, push.Options{
		Offsets:     cfg.CountryOffsets,
		ButtonLabel: cfg.PushButtonLabel,
		ButtonURL:   cfg.PushButtonURL,
	}, lg)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Chatwoot-Event"},
	}))

	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB: st,
		Integrations: map[string]bool{
			"chatwoot": cfg.ChatwootBaseURL != "" && cfg.ChatwootToken != "",
			"telegram": cfg.TelegramToken != "",
			"lark":     cfg.LarkWebhookURL != "",
			"agent":    ag != nil,
		},
		TaskStats: pool.Stats,
	})
	chatwoot.RegisterRoutes(r, chatwoot.NewHandler(rt, pool, lg))
	telegram.RegisterRoutes(r, telegram.NewHandler(rt, pool, lg))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return pool.Run(gctx) })
	g.Go(func() error { return scheduler.Run(gctx) })
	g.Go(func() error {
		if err := tg.SetWebhook(gctx, cfg.TelegramHookURL); err != nil {
			lg.Error("telegram setWebhook failed", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		lg.Error("server error", "error", err)
	}
	lg.Info("shutdown complete")
}
