package cli

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-battle-service/internal/completion"
	"quiz-battle-service/internal/config"
	"quiz-battle-service/internal/infra/postgres"
	redisstore "quiz-battle-service/internal/infra/redis"
	"quiz-battle-service/internal/logger"
)

// NewSeedCmd generates questions with the completion API and stores them in the pool.
func NewSeedCmd(configPath *string) *cobra.Command {
	var course, topic, level string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate MCQs for a topic and add them to the question pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log := logger.New(cfg.Log.Level).With().Str("topic", topic).Str("level", level).Logger()

			if cfg.Postgres.URL == "" {
				return errors.New("postgres url not configured")
			}
			if err := runMigrations(ctx, cfg, log); err != nil {
				return err
			}

			client := completion.NewClient(completion.Options{
				URL:       cfg.Completion.URL,
				APIKey:    cfg.Completion.APIKey,
				Model:     cfg.Completion.Model,
				MaxTokens: cfg.Completion.MaxTokens,
			})
			questions, err := completion.NewGenerator(client, log).Generate(ctx, course, topic, level)
			if errors.Is(err, completion.ErrMalformedResponse) {
				log.Error().Err(err).Msg("model returned no usable questions; nothing seeded")
				return nil
			}
			if err != nil {
				return err
			}
			if len(questions) == 0 {
				log.Warn().Msg("no gradable questions generated; nothing seeded")
				return nil
			}

			pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			written, err := postgres.NewQuestionWriter(pool).Save(ctx, topic, questions)
			if err != nil {
				return err
			}

			if cfg.Redis.Addr != "" {
				rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
				defer rdb.Close()
				if err := redisstore.NewQuestionCache(rdb, nil, 0).Invalidate(ctx, strings.ToLower(level)); err != nil {
					log.Warn().Err(err).Msg("failed to invalidate cached question pool")
				}
			}
			log.Info().Int("generated", len(questions)).Int("written", written).Msg("question pool seeded")
			return nil
		},
	}
	cmd.Flags().StringVar(&course, "course", "General Knowledge", "course the questions belong to")
	cmd.Flags().StringVar(&topic, "topic", "", "topic to generate questions about")
	cmd.Flags().StringVar(&level, "level", "medium", "difficulty level")
	_ = cmd.MarkFlagRequired("topic")
	return cmd
}
