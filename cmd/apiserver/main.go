// Command apiserver serves the HTTP API and dashboard WebSocket feed: task
// submission, listing, retrieval, cancellation, health, and metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobmcallan/mediaqueue/internal/api"
	"github.com/bobmcallan/mediaqueue/internal/common"
	"github.com/bobmcallan/mediaqueue/internal/dashboard"
	"github.com/bobmcallan/mediaqueue/internal/metrics"
	"github.com/bobmcallan/mediaqueue/internal/store/mongostore"
	"github.com/bobmcallan/mediaqueue/internal/store/redisqueue"
	"github.com/bobmcallan/mediaqueue/internal/task"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	config, err := common.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := common.NewLogger(config.Logging.Level)
	common.PrintBanner(config, logger, "api-server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := mongostore.Connect(ctx, config.Mongo.URI, config.Mongo.Database, config.Mongo.Collection, config.Mongo.GetTimeout())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Mongo")
	}
	defer store.Close(context.Background())

	queue := redisqueue.New(config.Redis.Addr, config.Redis.Password, config.Redis.DB, logger)
	defer queue.Close()

	hub := dashboard.NewHub(logger)
	go hub.Run()

	counters := metrics.New()
	if err := counters.Sync(ctx, store); err != nil {
		logger.Warn().Err(err).Msg("Initial metrics sync failed")
	}

	svc := task.NewService(store, queue, queue, counters, hub, logger, config.Engine.DefaultMaxRetries)

	router := api.NewRouter(&api.Server{
		Task:    svc,
		Hub:     hub,
		Metrics: counters,
		Queue:   queue,
		Store:   store,
		Logger:  logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("API server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("API server failed")
		}
	}()

	<-ctx.Done()
	common.PrintShutdownBanner(logger, "api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
