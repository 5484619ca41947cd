package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	mrand "math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classquiz-service/internal/app"
	"classquiz-service/internal/auth"
	"classquiz-service/internal/config"
	"classquiz-service/internal/infra/file"
	"classquiz-service/internal/infra/memory"
	"classquiz-service/internal/infra/postgres"
	redisinfra "classquiz-service/internal/infra/redis"
	"classquiz-service/internal/mcq"
	transport "classquiz-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
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

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}

	quizStore, recordStore, cleanup, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	cacheTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var cachedQuizzes app.QuizStore
	var registry app.AttemptRegistry
	if redisClient != nil {
		cachedQuizzes = redisinfra.NewCachedQuizStore(redisClient, quizStore, cacheTTL)
		registry = redisinfra.NewAttemptRegistry(redisClient, cacheTTL)
	} else {
		cachedQuizzes = memory.NewCachedQuizStore(quizStore, cacheTTL)
		registry = memory.NewAttemptRegistry()
	}

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = randomSecret()
		log.Printf("auth.jwt_secret not set, generated an ephemeral signing key; sessions will not survive a restart")
	}
	tokenTTL := config.TTLDuration(cfg.Auth.TokenTTL, 8*time.Hour)
	authn := auth.New(cfg.Auth.Username, cfg.Auth.Password, secret, tokenTTL)

	quizService := app.NewQuizService(cachedQuizzes)
	attemptService := app.NewAttemptService(recordStore)
	generator := buildGenerator(cfg)

	api := transport.NewAPI(quizService, attemptService, generator, authn)
	wsHandler := transport.NewWSHandler(quizService, attemptService, registry)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(api, wsHandler, cfg.CORS.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting classquiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openStores picks the persistence backend: Postgres when a URL is
// configured, the flat-file data directory otherwise.
func openStores(ctx context.Context, cfg config.Config) (app.QuizStore, app.RecordStore, func(), error) {
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return nil, nil, nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, nil, err
		}
		return postgres.NewQuizStore(pool), postgres.NewRecordStore(pool), pool.Close, nil
	}

	quizzes, err := file.OpenQuizStore(cfg.Store.Dir)
	if err != nil {
		return nil, nil, nil, err
	}
	records, err := file.OpenRecordStore(cfg.Store.Dir)
	if err != nil {
		return nil, nil, nil, err
	}
	return quizzes, records, func() {}, nil
}

// buildGenerator assembles the question generation chain: the remote
// model first when configured, then the local heuristics.
func buildGenerator(cfg config.Config) *mcq.Generator {
	var remote mcq.Strategy
	if cfg.Generator.RemoteURL != "" {
		timeout := config.TTLDuration(cfg.Generator.Timeout, 20*time.Second)
		remote = mcq.NewRemoteStrategy(cfg.Generator.RemoteURL, cfg.Generator.RemoteToken, timeout)
	}
	rnd := mrand.New(mrand.NewSource(time.Now().UnixNano()))
	return mcq.NewDefaultChain(remote, cfg.NLP.Enabled, rnd)
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("generate signing key: %v", err)
	}
	return hex.EncodeToString(buf)
}
