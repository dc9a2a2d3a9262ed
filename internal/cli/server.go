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
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/config"
	"quiz-battle-service/internal/infra/memory"
	"quiz-battle-service/internal/infra/postgres"
	redisstore "quiz-battle-service/internal/infra/redis"
	"quiz-battle-service/internal/logger"
	transport "quiz-battle-service/internal/transport/http"
)

const (
	defaultPort        = "8080"
	defaultQuestionTTL = 10 * time.Minute
	defaultRetention   = 7 * 24 * time.Hour
	shutdownTimeout    = 5 * time.Second
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the battle server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := buildDeps(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.close()

	opts := app.Options{
		Duration:      config.TTLDuration(cfg.Battle.Duration, app.DefaultBattleDuration),
		QuestionCount: cfg.Battle.QuestionCount,
		Difficulty:    cfg.Battle.Difficulty,
		PendingTTL:    config.TTLDuration(cfg.Battle.PendingTTL, app.DefaultPendingTTL),
	}
	service := app.NewBattleService(deps.store, deps.pool, deps.inbox, opts, log)

	if cfg.Auth.JWTSecret == "" {
		log.Warn().Msg("JWT secret not set; trusting X-User-* headers for identity")
	}
	handler := transport.NewRouter(service, log, transport.RouterOptions{
		JWTSecret:      cfg.Auth.JWTSecret,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = defaultPort
	}
	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", finalPort).Msg("starting quiz battle service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type deps struct {
	store  app.BattleStore
	pool   app.QuestionPool
	inbox  app.Inbox
	closer []func()
}

func (d *deps) close() {
	for i := len(d.closer) - 1; i >= 0; i-- {
		d.closer[i]()
	}
}

// buildDeps picks Redis for shared battle state when configured and Postgres for the question
// pool and inbox; anything missing falls back to the in-memory adapters.
func buildDeps(ctx context.Context, cfg config.Config, log zerolog.Logger) (*deps, error) {
	d := &deps{}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		d.closer = append(d.closer, func() { _ = redisClient.Close() })
		if err := redisClient.Ping(ctx).Err(); err != nil {
			d.close()
			return nil, err
		}
	}

	var source memory.QuestionSource = memory.NewStaticQuestionPool(sampleQuestions())
	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, log); err != nil {
			d.close()
			return nil, err
		}
		pgPool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			d.close()
			return nil, err
		}
		d.closer = append(d.closer, pgPool.Close)
		source = postgres.NewQuestionLoader(pgPool)

		db := postgres.OpenBun(cfg.Postgres.URL)
		d.closer = append(d.closer, func() { _ = db.Close() })
		d.inbox = postgres.NewInbox(db)
	}

	questionTTL := config.TTLDuration(cfg.Questions.TTL, defaultQuestionTTL)
	if redisClient != nil {
		pendingTTL := config.TTLDuration(cfg.Battle.PendingTTL, app.DefaultPendingTTL)
		retention := config.TTLDuration(cfg.Battle.Retention, defaultRetention)
		d.store = redisstore.NewBattleStore(redisClient, pendingTTL, retention)
		d.pool = redisstore.NewQuestionCache(redisClient, source, questionTTL)
		if d.inbox == nil {
			d.inbox = redisstore.NewInbox(redisClient)
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis battle store")
	} else {
		d.store = memory.NewBattleStore()
		d.pool = memory.NewQuestionCache(source, questionTTL)
		if d.inbox == nil {
			d.inbox = memory.NewInbox()
		}
		log.Warn().Msg("redis not configured; battles are kept in process memory")
	}
	return d, nil
}
