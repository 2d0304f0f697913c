package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/auth"
	"quiz-duel-service/internal/config"
	"quiz-duel-service/internal/content"
	"quiz-duel-service/internal/infra/memory"
	"quiz-duel-service/internal/infra/postgres"
	redisstore "quiz-duel-service/internal/infra/redis"
	transport "quiz-duel-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz duel server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, log, err := loadWithLogger(configPath)
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", zap.Error(err))
		return err
	}
	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 2*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.PoolLoader = memory.NewStaticPoolLoader(content.Bank())
	if pool != nil {
		loader = postgres.NewPoolLoader(pool)
	}

	contentTTL := config.TTLDuration(cfg.Content.TTL, 10*time.Minute)
	var pools app.ContentSource
	if redisClient != nil {
		pools = redisstore.NewPoolRepository(redisClient, loader, contentTTL)
	} else {
		pools = memory.NewPoolRepository(loader, contentTTL)
	}

	var store app.RoomRepository
	if redisClient != nil {
		store = redisstore.NewRoomStore(redisClient, redisTTL)
	} else {
		store = memory.NewRoomStore()
	}

	var (
		ledger    app.Ledger
		standings app.Standings
	)
	if cfg.Postgres.URL != "" {
		db := postgres.Open(cfg.Postgres.URL)
		defer db.Close()
		pg := postgres.NewLedger(db)
		ledger, standings = pg, pg
	} else {
		mem := memory.NewLedger()
		ledger, standings = mem, mem
		log.Warn("postgres not configured, match history is kept in memory")
	}

	timings := timingsFrom(cfg)
	hub := transport.NewHub(0, log)
	recorder := app.NewRecorder(ledger, hub, log, timings.RecorderQueue)
	service := app.NewMatchService(store, pools, hub, recorder,
		app.WithTimings(timings),
		app.WithLogger(log),
	)
	wsHandler := transport.NewWSHandler(service, hub, verifier, log)

	mux := http.NewServeMux()
	transport.NewAPI(standings, verifier, log).Register(mux)
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting quiz duel service", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		// Shutdown does not touch hijacked websockets; closing them finishes
		// any match still in play so its outcome reaches the recorder.
		if cerr := hub.CloseAll(shutdownCtx); cerr != nil {
			log.Warn("websocket clients did not close", zap.Error(cerr))
		}
		if rerr := recorder.Close(shutdownCtx); rerr != nil {
			log.Warn("recorder did not drain", zap.Error(rerr))
		}
		return err
	})
	return g.Wait()
}

func timingsFrom(cfg config.Config) app.Timings {
	t := app.DefaultTimings()
	m := cfg.Match
	t.LeadTime = config.TTLDuration(m.LeadTime, t.LeadTime)
	t.Debounce = config.TTLDuration(m.Debounce, t.Debounce)
	t.PerQuestion = config.TTLDuration(m.PerQuestionBudget, t.PerQuestion)
	if m.MaxAnswerLength > 0 {
		t.MaxAnswerLen = m.MaxAnswerLength
	}
	if m.RecorderQueue > 0 {
		t.RecorderQueue = m.RecorderQueue
	}
	if len(m.TimeBudgets) > 0 {
		t.Budgets = make(map[int]time.Duration, len(m.TimeBudgets))
		for total, raw := range m.TimeBudgets {
			t.Budgets[total] = config.TTLDuration(raw, t.PerQuestion*time.Duration(total))
		}
	}
	return t
}
