package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/config"
	"assessment-service/internal/domain"
	"assessment-service/internal/infra/generator"
	"assessment-service/internal/infra/memory"
	"assessment-service/internal/infra/postgres"
	infraredis "assessment-service/internal/infra/redis"
	"assessment-service/internal/logging"
	"assessment-service/internal/metrics"
	transport "assessment-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newStartCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the assessment server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), opts.configPath, opts.port)
		},
	}
}

// cachingRanker is a ranker that must hear about gradings to stay fresh.
type cachingRanker interface {
	app.Ranker
	app.GradeNotifier
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	metrics.Register(prometheus.DefaultRegisterer)

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	leaderboardTTL := config.TTLDuration(cfg.Leaderboard.TTL, 30*time.Second)
	var ranker cachingRanker
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
		ranker = infraredis.NewLeaderboardCache(redisClient, app.NewLeaderboard(store), leaderboardTTL, log)
		log.Info("leaderboard cache: redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		ranker = memory.NewLeaderboardCache(app.NewLeaderboard(store), leaderboardTTL)
		log.Info("leaderboard cache: memory")
	}
	hub := app.NewLeaderboardHub(ranker)

	difficulty := app.DifficultyConfig{
		HardThreshold:   cfg.Difficulty.HardThreshold,
		MediumThreshold: cfg.Difficulty.MediumThreshold,
	}
	var upstream app.ContentGenerator
	if cfg.Generator.BaseURL != "" {
		upstream = generator.NewClient(generator.Config{
			BaseURL:           cfg.Generator.BaseURL,
			APIKey:            cfg.Generator.APIKey,
			Model:             cfg.Generator.Model,
			Timeout:           config.TTLDuration(cfg.Generator.Timeout, 30*time.Second),
			RequestsPerSecond: cfg.Generator.RequestsPerSecond,
			Burst:             cfg.Generator.Burst,
		}, log.Named("generator"))
	} else {
		log.Warn("generator base URL not configured, serving placeholder content")
	}
	content := generator.WithFallback(upstream, difficulty, log.Named("generator"))

	estimator := app.NewPerformanceEstimator(store, app.PerformanceConfig{
		Window:         cfg.Performance.Window,
		DefaultAverage: cfg.Performance.DefaultAverage,
	})
	adapter := app.NewDifficultyAdapter(estimator, difficulty)
	// The cache is invalidated before the hub re-ranks through it.
	grading := app.NewGradingService(store, content,
		app.WithNotifiers(ranker, hub),
		app.WithLogger(log.Named("grading")),
	)
	quizzes := app.NewQuizService(store, content, estimator, adapter, log.Named("quizzes"))

	api := transport.NewAPI(grading, quizzes, ranker, transport.APIConfig{
		DefaultLeaderboardLimit: cfg.Leaderboard.DefaultLimit,
		RequestTimeout:          config.TTLDuration(cfg.Server.RequestTimeout, 15*time.Second),
	}, log.Named("http"))
	wsHandler := transport.NewWSHandler(grading, hub, log.Named("ws"))

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           transport.NewRouter(api, wsHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting assessment service", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down server")
	case err, ok := <-serveErr:
		if ok {
			log.Error("server failed", zap.Error(err))
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.TTLDuration(cfg.Server.ShutdownTimeout, 5*time.Second))
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openStore picks Postgres when configured and otherwise a seeded in-memory store.
func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (app.Store, func(), error) {
	if cfg.Postgres.URL == "" {
		store := memory.NewStore()
		seedSample(store)
		log.Info("entity store: memory (sample data seeded)")
		return store, func() {}, nil
	}

	db := openBun(cfg.Postgres.URL)
	if err := migrateDB(ctx, db, log); err != nil {
		db.Close()
		return nil, nil, err
	}
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Info("entity store: postgres")
	return postgres.NewStore(db, postgres.NewHistoryReader(pool)), func() {
		pool.Close()
		db.Close()
	}, nil
}

// seedSample gives the in-memory store two users and a quiz to play with.
func seedSample(store *memory.Store) {
	store.AddUser(domain.User{Username: "alice", Email: "alice@example.com"})
	store.AddUser(domain.User{Username: "bob", Email: "bob@example.com"})
	store.AddQuiz(domain.Quiz{
		Title:           "Arithmetic warm-up",
		Description:     "Addition and multiplication basics.",
		Subject:         "math",
		GradeLevel:      3,
		DurationMinutes: 10,
		CreatedAt:       time.Now(),
		Questions: []domain.Question{
			{
				Text:       "What is 2 + 2?",
				Hint:       "Count on your fingers.",
				Difficulty: domain.DifficultyEasy,
				Points:     1,
				Answers: []domain.Answer{
					{Text: "3"},
					{Text: "4", Correct: true},
					{Text: "5"},
				},
			},
			{
				Text:       "What is 6 x 7?",
				Difficulty: domain.DifficultyMedium,
				Points:     2,
				Answers: []domain.Answer{
					{Text: "42", Correct: true},
					{Text: "36"},
					{Text: "48"},
				},
			},
		},
	})
}
