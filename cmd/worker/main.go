// Command worker runs the dequeue/process/finalize loop for exactly one
// task_type, selected via -task-type or MEDIAQUEUE_TASK_TYPE.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bobmcallan/mediaqueue/internal/common"
	"github.com/bobmcallan/mediaqueue/internal/engine"
	"github.com/bobmcallan/mediaqueue/internal/metrics"
	"github.com/bobmcallan/mediaqueue/internal/models"
	"github.com/bobmcallan/mediaqueue/internal/processor"
	"github.com/bobmcallan/mediaqueue/internal/store/mongostore"
	"github.com/bobmcallan/mediaqueue/internal/store/redisqueue"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	taskTypeFlag := flag.String("task-type", "", "task type this worker processes: video, audio, or image")
	flag.Parse()

	config, err := common.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	taskTypeStr := *taskTypeFlag
	if taskTypeStr == "" {
		taskTypeStr = os.Getenv("MEDIAQUEUE_TASK_TYPE")
	}
	taskType := models.TaskType(taskTypeStr)
	if !taskType.Valid() {
		fmt.Fprintf(os.Stderr, "invalid or missing -task-type: %q (want video, audio, or image)\n", taskTypeStr)
		os.Exit(1)
	}

	logger := common.NewLogger(config.Logging.Level)
	common.PrintBanner(config, logger, "worker:"+string(taskType))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := mongostore.Connect(ctx, config.Mongo.URI, config.Mongo.Database, config.Mongo.Collection, config.Mongo.GetTimeout())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Mongo")
	}
	defer store.Close(context.Background())

	queue := redisqueue.New(config.Redis.Addr, config.Redis.Password, config.Redis.DB, logger)
	defer queue.Close()

	proc, ok := processor.For(taskType, processor.Config{
		Ticks:        config.Engine.ProcessorTicks,
		TickInterval: config.Engine.GetProcessorTickInterval(),
	})
	if !ok {
		logger.Fatal().Str("task_type", string(taskType)).Msg("No processor registered for task type")
	}

	w := engine.New(
		taskType,
		store,
		queue,
		queue,
		metrics.New(),
		nil,
		logger,
		engine.Timing{
			EmptyQueueSleep:     config.Engine.GetEmptyQueueSleep(),
			DequeueErrorBackoff: config.Engine.GetDequeueErrorBackoff(),
			CancelGrace:         config.Engine.GetCancelGrace(),
		},
		proc,
	)

	logger.Info().Str("task_type", string(taskType)).Msg("Worker starting")
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Msg("Worker loop exited with error")
	}

	common.PrintShutdownBanner(logger, "worker:"+string(taskType))
}
