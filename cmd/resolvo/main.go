// -----------------------------------------------------------------------
// Resolvo - batch AI puzzle analysis scheduler
// -----------------------------------------------------------------------

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/resolvo/internal/common"
	"github.com/ternarybob/resolvo/internal/scheduler"
	"github.com/ternarybob/resolvo/internal/services/datasets"
	"github.com/ternarybob/resolvo/internal/services/events"
	"github.com/ternarybob/resolvo/internal/services/llm"
	"github.com/ternarybob/resolvo/internal/storage/badger"
)

func main() {
	configPath := flag.String("config", "resolvo.toml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(common.GetVersion())
		return
	}

	var configPaths []string
	if _, err := os.Stat(*configPath); err == nil {
		configPaths = append(configPaths, *configPath)
	}

	config, err := common.LoadFromFiles(configPaths...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	db, err := badger.NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open session store")
	}
	defer db.Close()

	store := badger.NewSessionStorage(db, logger)
	catalog := datasets.NewCatalog(&config.Datasets, logger)

	eventService := events.NewService(logger)
	defer eventService.Close()
	if err := events.SubscribeLogger(eventService, logger); err != nil {
		logger.Fatal().Err(err).Msg("Failed to subscribe event logger")
	}

	factory := llm.NewProviderFactory(&config.Claude, &config.Gemini, &config.LLM, logger)
	defer factory.Close()

	analyzer := llm.NewAnalyzer(factory, catalog, logger)
	processor := scheduler.NewItemProcessor(analyzer, store, logger)
	tracker := scheduler.NewProgressTracker(store, config.Scheduler.ProgressCacheTTLDuration(), logger)

	sched := scheduler.NewScheduler(store, catalog, processor, tracker, eventService, &config.Scheduler, logger)
	if err := sched.Start(config.Scheduler.JanitorSchedule); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start scheduler")
	}
	defer sched.Stop()

	logger.Info().
		Str("version", common.GetVersion()).
		Str("data_dir", config.Storage.Badger.Path).
		Str("datasets_dir", config.Datasets.Dir).
		Int("max_active_jobs", config.Scheduler.MaxActiveJobs).
		Msg("Resolvo started")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received")
}
