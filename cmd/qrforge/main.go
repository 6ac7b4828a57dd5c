package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/qrforge/qrforge/internal/config"
	"github.com/qrforge/qrforge/internal/server"
	"github.com/qrforge/qrforge/internal/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load env if it exists
	godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var postgres *storage.Postgres
	if dsn := cfg.Secrets.DatabaseDSN; dsn != "" {
		postgres, err = storage.NewPostgres(dsn)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to postgres")
		}
		defer postgres.Close()

		if err := postgres.AutoMigrate(); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
		log.Info().Msg("connected to postgres")
	} else {
		log.Warn().Msg("DATABASE_DSN not set, accounts will not survive a restart")
	}

	var redis *storage.RedisClient
	if addr := cfg.RedisAddr(); addr != "" {
		redis, err = storage.NewRedis(addr, cfg.Secrets.RedisPassword, cfg.Secrets.RedisDB)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redis.Close()
		log.Info().Msg("connected to redis")
	} else {
		log.Warn().Msg("REDIS_ADDR not set, image caching disabled")
	}

	srv, err := server.New(cfg, postgres, redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize server")
	}

	go func() {
		addr := ":" + cfg.Server.Port
		if err := srv.Run(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}
