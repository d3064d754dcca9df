package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"

	accountsdb "ms-passes/internal/accounts/db"
	accounts "ms-passes/internal/accounts/service"
	"ms-passes/internal/auth"
	"ms-passes/internal/config"
	"ms-passes/internal/database"
	"ms-passes/internal/database/migrations"
	"ms-passes/internal/kafka"
	"ms-passes/internal/logger"
	passdb "ms-passes/internal/passes/db"
	"ms-passes/internal/passes/layout"
	"ms-passes/internal/passes/pass_api"
	qr "ms-passes/internal/passes/qr_generator"
	passes "ms-passes/internal/passes/service"
	"ms-passes/internal/passes/template"
)

func newLogger(cfg *config.Config) *logger.Logger {
	opts := logger.Options{Console: os.Stdout, MinLevel: logger.INFO}
	if cfg.Log.FileEnabled {
		opts.Dir = cfg.Log.Dir
	}
	if cfg.Log.Debug {
		opts.MinLevel = logger.DEBUG
	}

	log, err := logger.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return log
}

func newPublisher(cfg *config.Config, log *logger.Logger) kafka.Publisher {
	if !cfg.Kafka.Enabled {
		log.Info("KAFKA", "Kafka disabled, domain events are not published")
		return kafka.NopPublisher{}
	}

	topics := []string{cfg.Kafka.Topics.PassesGenerated, cfg.Kafka.Topics.PassRedeemed}
	if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics, log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	}

	log.Info("KAFKA", fmt.Sprintf("Kafka producer initialized for %v", cfg.Kafka.Brokers))
	return kafka.NewProducer(cfg.Kafka.Brokers, log)
}

func newRevocationStore(cfg *config.Config, log *logger.Logger) (auth.RevocationStore, *redis.Client) {
	if cfg.Redis.Addr == "" {
		log.Warn("AUTH", "REDIS_ADDR not set, logged out sessions are only remembered by this process")
		return auth.NewMemoryRevocationStore(), nil
	}

	client, err := auth.InitializeRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
	if err != nil {
		log.Fatal("AUTH", err.Error())
	}
	return auth.NewRedisRevocationStore(client), client
}

func newSheetGenerator(cfg *config.Config, log *logger.Logger) *template.SheetPDFGenerator {
	fonts := template.DefaultFonts()
	if cfg.Passes.FontDir != "" {
		loaded, err := template.LoadFonts(cfg.Passes.FontDir)
		if err != nil {
			log.Fatal("PDF", err.Error())
		}
		fonts = loaded
	}
	return template.NewSheetPDFGenerator(qr.NewQRGenerator(), fonts)
}

func healthHandler(bunDB *bun.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := bunDB.PingContext(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}
}

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	defer logger.Close()

	logger.Info("APP", "Starting Pass Service initialization")
	if envErr != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}

	defaultLayout, err := layout.ParsePolicy(cfg.Passes.DefaultLayout)
	if err != nil {
		logger.Fatal("CONFIG", err.Error())
	}

	ctx := context.Background()
	bunDB, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		if err := migrations.Run(bunDB, logger); err != nil {
			logger.Fatal("DATABASE", fmt.Sprintf("Migration failed: %v", err))
		}
	}

	revocations, redisClient := newRevocationStore(cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	publisher := newPublisher(cfg, logger)
	defer publisher.Close()

	userService := accounts.NewUserService(&accountsdb.DB{Bun: bunDB}, logger)
	if err := userService.EnsureDefaultAdmin(ctx, cfg.Auth.DefaultAdmin, cfg.Auth.DefaultPassword); err != nil {
		logger.Fatal("ACCOUNTS", err.Error())
	}

	passService := passes.NewPassService(&passdb.DB{Bun: bunDB}, publisher, newSheetGenerator(cfg, logger), logger)
	passService.MaxAttempts = cfg.Passes.CodeRetries
	passService.Topics = passes.Topics{
		PassesGenerated: cfg.Kafka.Topics.PassesGenerated,
		PassRedeemed:    cfg.Kafka.Topics.PassRedeemed,
	}

	authenticator := auth.NewAuthenticator(
		auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL),
		revocations,
		cfg.Auth.CookieName,
		logger,
	)
	authenticator.Users = userService

	handler := pass_api.NewHandler(passService, userService, authenticator, logger)
	handler.DefaultLayout = defaultLayout
	handler.CookieSecure = cfg.Auth.CookieSecure

	logger.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(pass_api.AccessLog(logger))

	r.Get("/healthz", healthHandler(bunDB))
	handler.RegisterRoutes(r)
	logger.Info("ROUTER", "Routes registered for /login, /logout, /admin, /worker and /client")

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("Pass Service running on %s", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "Pass Service shutdown complete")
	}
}
