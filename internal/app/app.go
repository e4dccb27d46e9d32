// Package app wires services together and owns their lifecycle.
package app

import (
	"fmt"
	"path/filepath"

	"github.com/ternarybob/arbor"

	"github.com/pjsousa/jobato-platform/internal/common"
	"github.com/pjsousa/jobato-platform/internal/services/activation"
	"github.com/pjsousa/jobato-platform/internal/services/cache"
	"github.com/pjsousa/jobato-platform/internal/services/dedupe"
	"github.com/pjsousa/jobato-platform/internal/services/evaluation"
	"github.com/pjsousa/jobato-platform/internal/services/events"
	"github.com/pjsousa/jobato-platform/internal/services/fetch"
	"github.com/pjsousa/jobato-platform/internal/services/ingestion"
	"github.com/pjsousa/jobato-platform/internal/services/quota"
	"github.com/pjsousa/jobato-platform/internal/services/registry"
	"github.com/pjsousa/jobato-platform/internal/services/retrain"
	"github.com/pjsousa/jobato-platform/internal/services/scoring"
	"github.com/pjsousa/jobato-platform/internal/services/search"
	"github.com/pjsousa/jobato-platform/internal/storage/sqlite"
	"github.com/pjsousa/jobato-platform/internal/worker"
)

// App holds all wired services.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	Stream     *events.Stream
	Registry   *registry.Registry
	Evaluation *evaluation.Service
	Activation *activation.Service
	Retrain    *retrain.Service

	EvaluationStore *sqlite.EvaluationStorage
	QuotaStore      *sqlite.QuotaStorage

	runWorker *worker.RunWorker
	scheduler *retrain.Scheduler
}

// New wires the application from configuration. Nothing is started yet.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	dataDir := config.DataDir()
	configDir := config.ConfigDir()

	evaluationStore, err := sqlite.NewEvaluationStorage(filepath.Join(dataDir, "db", "evaluations.db"), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open evaluation store: %w", err)
	}

	quotaStore, err := sqlite.NewQuotaStorage(filepath.Join(dataDir, "db", "quota.db"), logger)
	if err != nil {
		evaluationStore.Close()
		return nil, fmt.Errorf("failed to open quota ledger: %w", err)
	}

	catalog, err := registry.LoadCatalog(configDir)
	if err != nil {
		evaluationStore.Close()
		quotaStore.Close()
		return nil, fmt.Errorf("failed to load model catalog: %w", err)
	}
	modelRegistry := registry.NewRegistry(catalog, logger)

	cachePolicy, err := cache.LoadPolicy(configDir)
	if err != nil {
		evaluationStore.Close()
		quotaStore.Close()
		return nil, fmt.Errorf("failed to load cache policy: %w", err)
	}
	cacheService := cache.NewService(dataDir, cachePolicy, logger)

	quotaConfig, err := quota.LoadConfig(configDir)
	if err != nil {
		evaluationStore.Close()
		quotaStore.Close()
		return nil, fmt.Errorf("failed to load quota config: %w", err)
	}
	dispatcher := quota.NewDispatcher(quotaConfig, quotaStore, logger)

	searchClient, resolver, err := search.NewFromConfig(config, logger)
	if err != nil {
		evaluationStore.Close()
		quotaStore.Close()
		return nil, err
	}

	fetcher := fetch.NewHTMLFetcher(dataDir, logger)
	ingestor := ingestion.NewIngestor(searchClient, resolver, fetcher, cacheService, dispatcher, logger)
	deduper := dedupe.NewService(logger)
	scorer := scoring.NewService(modelRegistry, evaluationStore, logger)

	stream := events.NewStream(config.RedisAddr(), logger)
	runWorker := worker.NewRunWorker(stream, stream, ingestor, deduper, scorer, dataDir, logger)

	workers := evaluation.LoadWorkerCount(configDir)
	evaluationService := evaluation.NewService(modelRegistry, evaluationStore, dataDir, workers, logger)
	activationService := activation.NewService(modelRegistry, evaluationStore, logger)
	retrainService := retrain.NewService(modelRegistry, evaluationStore, activationService, dataDir, config.Retrain.ArtifactDir, logger)

	application := &App{
		Config:          config,
		Logger:          logger,
		Stream:          stream,
		Registry:        modelRegistry,
		Evaluation:      evaluationService,
		Activation:      activationService,
		Retrain:         retrainService,
		EvaluationStore: evaluationStore,
		QuotaStore:      quotaStore,
		runWorker:       runWorker,
	}

	if config.Retrain.Enabled {
		scheduler, err := retrain.NewScheduler(retrainService, config.Retrain.Schedule, logger)
		if err != nil {
			evaluationStore.Close()
			quotaStore.Close()
			stream.Close()
			return nil, fmt.Errorf("failed to build retrain scheduler: %w", err)
		}
		application.scheduler = scheduler
	}

	return application, nil
}

// Start launches the run worker and the retrain scheduler.
func (a *App) Start() {
	a.runWorker.Start()
	if a.scheduler != nil {
		a.scheduler.Start()
	}
}

// Stop shuts down background work and closes storage.
func (a *App) Stop() {
	a.runWorker.Stop()
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if err := a.Stream.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close event stream")
	}
	if err := a.EvaluationStore.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close evaluation store")
	}
	if err := a.QuotaStore.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close quota ledger")
	}
	a.Logger.Info().Msg("Application stopped")
}
