package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"mcq-contest-service/internal/app"
	"mcq-contest-service/internal/config"
	"mcq-contest-service/internal/docstore"
	"mcq-contest-service/internal/infra/memory"
	pgstore "mcq-contest-service/internal/infra/postgres"
	redisinfra "mcq-contest-service/internal/infra/redis"
	transport "mcq-contest-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the contest server",
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

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
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

	deps, err := buildServices(ctx, cfg)
	if err != nil {
		return err
	}

	sweepCtx, stopSweeps := context.WithCancel(ctx)
	defer stopSweeps()
	go deps.sweeper.Run(sweepCtx,
		config.TTLDuration(cfg.Sweep.FinalizeInterval, time.Minute),
		config.TTLDuration(cfg.Sweep.CleanupInterval, time.Hour),
	)

	api := transport.NewAPI(deps.auth, deps.contests, deps.rejoin)
	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      api.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting contest service on :%s", finalPort)
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

type services struct {
	store    docstore.Store
	auth     *app.AuthService
	contests *app.ContestService
	rejoin   *app.RejoinService
	sweeper  *app.Sweeper
}

// buildServices wires the storage, cache, and service graph from config.
// Postgres and Redis are both optional: without them the service runs fully
// in memory, which is what local development and most tests use.
func buildServices(ctx context.Context, cfg config.Config) (*services, error) {
	var store docstore.Store = memory.NewDocStore()
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		store = pgstore.NewDocStore(pool)
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	loader := app.NewStoreQuestionLoader(store)
	questionTTL := config.TTLDuration(cfg.Questions.CacheTTL, 10*time.Minute)
	var questions app.QuestionSource
	if redisClient != nil {
		questions = redisinfra.NewQuestionCache(redisClient, loader, questionTTL)
	} else {
		questions = memory.NewQuestionCache(loader, questionTTL)
	}

	authTTL := config.TTLDuration(cfg.Auth.CacheTTL, 30*time.Second)
	var authCache app.AuthCache
	if redisClient != nil {
		authCache = redisinfra.NewAuthCache(redisClient, authTTL)
	} else {
		authCache = memory.NewAuthCache(authTTL)
	}

	var locker app.Locker
	if redisClient != nil {
		locker = redisinfra.NewLocker(redisClient)
	} else {
		locker = memory.NewLocker()
	}

	auth := app.NewAuthService(store, authCache, config.TTLDuration(cfg.Auth.InactivityWindow, time.Hour))
	contests := app.NewContestService(store, questions,
		app.WithStatsDenominator(cfg.Stats.CompletionDenominator),
	)
	rejoin := app.NewRejoinService(store, auth)
	sweeper := app.NewSweeper(store, contests, auth, locker,
		config.TTLDuration(cfg.Sweep.LeaseTTL, time.Minute))

	return &services{
		store:    store,
		auth:     auth,
		contests: contests,
		rejoin:   rejoin,
		sweeper:  sweeper,
	}, nil
}
