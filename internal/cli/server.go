package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"imb-test-portal/internal/app"
	"imb-test-portal/internal/config"
	"imb-test-portal/internal/infra/memory"
	pgstore "imb-test-portal/internal/infra/postgres"
	redislisting "imb-test-portal/internal/infra/redis"
	transport "imb-test-portal/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the portal server",
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

	var store app.SubmissionStore = memory.NewSubmissionStore()
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		store = pgstore.NewSubmissionStore(pool)
	}

	answerKey := cfg.Portal.AnswerKey
	if len(answerKey) == 0 {
		answerKey = sampleAnswerKey()
	}
	adminEmails := config.SplitEmails(cfg.Portal.AdminEmails)

	var lister app.ScoredLister = app.NewScoringLister(store, answerKey)
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cacheTTL := config.TTLDuration(cfg.Redis.TTL, time.Minute)
		lister = redislisting.NewListingCache(redisClient, lister, cacheTTL)
	}
	service := app.NewPortalService(store, lister, answerKey, adminEmails)

	handler := transport.NewHandler(service)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler.Register(mux)
	mux.HandleFunc("/ws/leaderboard", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	testDuration := config.TTLDuration(cfg.Portal.TestDuration, 90*time.Minute)
	log.Printf("portal configured: %d questions, %s test duration, %d admin(s)", service.QuestionCount(), testDuration, len(adminEmails))

	go func() {
		log.Printf("starting test portal on :%s", finalPort)
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

// sampleAnswerKey is the fallback when no key is configured; replace it via
// portal.answer_key before a real competition.
func sampleAnswerKey() []int64 {
	return []int64{15552, 2, 108, 16}
}
