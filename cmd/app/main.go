// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/config"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/ports/adapter"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/ports/repository"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/adapters/notify"
	tele "github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/adapters/telegram"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/adapters/vertesia"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/api"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/db/badger"
	pg "github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/db/postgres"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/logging"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/metrics"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/persist"
	red "github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/redis"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/scheduler"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/security"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/worker"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/usecase"
)

// set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

// durable is the selected key-value backend plus an optional distributed lock.
type durable struct {
	kv     repository.KVStore
	locker repository.Locker
	close  func()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*durable, error) {
	switch cfg.Store.Driver {
	case "redis":
		cli, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		return &durable{
			kv:     red.NewKVStore(cli, "scout:"),
			locker: red.NewLocker(cli),
			close:  func() { _ = cli.Close() },
		}, nil
	case "postgres":
		pool, err := pg.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if err := pg.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
		return &durable{kv: pg.NewKVRepo(pool), close: pool.Close}, nil
	default:
		st, err := badger.Open(cfg.Store.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("badger: %w", err)
		}
		return &durable{kv: st, close: func() { _ = st.Close() }}, nil
	}
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	logger.Info().Str("version", version).Str("store", cfg.Store.Driver).Msg("starting scout")

	// ---- Storage ----
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open store")
	}
	defer store.close()

	jobs := persist.NewJobStore(store.kv, cfg.Jobs.ActiveKey, cfg.Jobs.Ceiling, logger)
	history := persist.NewHistoryLog(store.kv, cfg.Jobs.HistoryKey, logger)
	chatKV := store.kv
	if cfg.Store.EncryptionKey != "" {
		enc, err := security.NewEncryptionService(cfg.Store.EncryptionKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("encryption")
		}
		chatKV = security.NewSealedKV(store.kv, enc)
	}
	chats := persist.NewChatHistory(chatKV, cfg.Chat.HistoryKey, cfg.Chat.MaxSaved, logger)
	pulseState := persist.NewPulseState(store.kv)

	// ---- Vendor ----
	client, err := vertesia.New(cfg.Vertesia, cfg.Chat.MaxIterations, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("vertesia client")
	}
	runs := vertesia.NewLimitedRuns(client, cfg.Vertesia.MaxConcurrent)

	// ---- Notifications ----
	hub := api.NewHub(logger)
	targets := []adapter.JobNotifier{hub, notify.NewLogNotifier(logger)}
	if cfg.Telegram.Token != "" {
		tn, err := tele.NewNotifier(cfg.Telegram, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram notifier")
		}
		tn.Start(ctx)
		defer tn.Close()
		targets = append(targets, tn)
	}
	notifier := notify.NewMultiNotifier(targets...)

	// ---- Use cases ----
	library := usecase.NewLibraryUseCase(client, logger)

	collectionPool := worker.NewPool(4, logger)
	collectionPool.Start(ctx)
	defer collectionPool.Stop()
	collections := usecase.NewCollectionsUseCase(client, collectionPool, logger)

	detector := usecase.NewDetector(runs, library, usecase.DetectorConfig{
		PollInterval:    cfg.Jobs.PollInterval,
		PassiveInterval: cfg.Jobs.PassiveInterval,
		Ceiling:         cfg.Jobs.Ceiling,
	}, logger)
	research := usecase.NewResearchUseCase(runs, jobs, history, detector, notifier, usecase.Interactions{
		Research:   cfg.Vertesia.ResearchInteraction,
		WhiteLabel: cfg.Vertesia.WhiteLabelInteraction,
	}, logger)

	chat := usecase.NewChatUseCase(runs, chats, collections, hub, usecase.ChatOptions{
		Interaction:    cfg.Vertesia.ChatInteraction,
		HistoryWindow:  cfg.Chat.HistoryWindow,
		MinAnswerChars: cfg.Chat.MinAnswerChars,
		StreamTimeout:  cfg.Chat.StreamTimeout,
	}, logger)

	digestPool := worker.NewPool(4, logger)
	digestPool.Start(ctx)
	defer digestPool.Stop()
	pulse := usecase.NewPulseUseCase(runs, client, pulseState, store.locker, digestPool, usecase.PulseOptions{
		Interaction:      cfg.Vertesia.PulseInteraction,
		Gate:             cfg.Pulse.Gate,
		GenerationWait:   cfg.Pulse.GenerationWait,
		UploadSettle:     cfg.Pulse.UploadSettle,
		Keywords:         cfg.Pulse.Keywords,
		MaxUploadsPerDay: cfg.Pulse.MaxUploadsPerDay,
	}, logger)

	// ---- Startup ----
	if n, err := library.Refresh(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial library refresh failed")
	} else {
		logger.Info().Int("documents", n).Msg("library loaded")
	}
	if _, err := collections.Load(ctx); err != nil {
		logger.Warn().Err(err).Msg("collections load failed")
	}
	detector.Start(ctx, research)
	if n := research.RestoreOnStartup(ctx); n > 0 {
		logger.Info().Int("jobs", n).Msg("resumed tracking")
	}

	// ---- Scheduler ----
	sched := scheduler.NewScheduler(10*time.Minute, logger)
	if cfg.Pulse.Enabled {
		if err := sched.Add("pulse", cfg.Pulse.DailyCron, pulse.Generate); err != nil {
			logger.Fatal().Err(err).Msg("schedule pulse")
		}
		if _, err := pulse.LoadDigests(ctx); err != nil {
			logger.Warn().Err(err).Msg("digest load failed")
		}
		go func() {
			if err := pulse.CheckAndGenerateIfNeeded(ctx); err != nil {
				logger.Info().Err(err).Msg("startup pulse check skipped")
			}
		}()
	}
	sched.Start(ctx)

	// ---- HTTP ----
	var pulseAPI api.Pulse
	if cfg.Pulse.Enabled {
		pulseAPI = pulse
	}
	apiSrv := api.NewServer(api.Deps{
		Research:    research,
		Chat:        chat,
		Library:     library,
		Collections: collections,
		Pulse:       pulseAPI,
		History:     usecase.NewHistoryUseCase(history),
		Hub:         hub,
	}, cfg.Vertesia.Timeout, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Admin.Port),
		Handler:           apiSrv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown requested")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	hub.Close()
	sched.Stop()
	chat.Cancel()
	chat.Wait()
	cancel()
	detector.Stop()
	apiSrv.Close()
	pulse.Close()
}
