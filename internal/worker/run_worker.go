package worker

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/pjsousa/jobato-platform/internal/common"
	"github.com/pjsousa/jobato-platform/internal/interfaces"
	"github.com/pjsousa/jobato-platform/internal/models"
	"github.com/pjsousa/jobato-platform/internal/services/dedupe"
	"github.com/pjsousa/jobato-platform/internal/services/events"
	"github.com/pjsousa/jobato-platform/internal/services/ingestion"
	"github.com/pjsousa/jobato-platform/internal/services/scoring"
	"github.com/pjsousa/jobato-platform/internal/storage/sqlite"
)

// RunWorker consumes run.requested events from the stream and executes the
// run pipeline: snapshot, ingest, dedupe, score, pointer swap, completion event.
type RunWorker struct {
	stream    *events.Stream
	publisher interfaces.EventPublisher
	ingestor  *ingestion.Ingestor
	deduper   *dedupe.Service
	scorer    *scoring.Service
	dataDir   string
	logger    arbor.ILogger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRunWorker wires the run pipeline consumer.
func NewRunWorker(
	stream *events.Stream,
	publisher interfaces.EventPublisher,
	ingestor *ingestion.Ingestor,
	deduper *dedupe.Service,
	scorer *scoring.Service,
	dataDir string,
	logger arbor.ILogger,
) *RunWorker {
	return &RunWorker{
		stream:    stream,
		publisher: publisher,
		ingestor:  ingestor,
		deduper:   deduper,
		scorer:    scorer,
		dataDir:   dataDir,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start launches the consume loop. Reading begins at the stream tail: only
// events published after startup are processed.
func (w *RunWorker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	common.SafeGo(w.logger, "run-worker", func() {
		defer close(w.done)
		w.consume(ctx)
	})

	if w.logger != nil {
		w.logger.Info().Str("stream", events.StreamName).Msg("Run worker started")
	}
}

// Stop cancels the consume loop and waits up to five seconds for it to drain.
func (w *RunWorker) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	select {
	case <-w.done:
	case <-time.After(5 * time.Second):
		if w.logger != nil {
			w.logger.Warn().Msg("Run worker did not stop within timeout")
		}
	}
}

func (w *RunWorker) consume(ctx context.Context) {
	lastID := "$"
	for {
		if ctx.Err() != nil {
			return
		}

		entries, err := w.stream.Read(ctx, lastID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if w.logger != nil {
				w.logger.Warn().Err(err).Msg("Event stream read failed, retrying")
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, entry := range entries {
			lastID = entry.ID

			event, err := events.ParseRunEvent(entry.Values)
			if err != nil {
				if w.logger != nil {
					w.logger.Warn().Str("entry_id", entry.ID).Err(err).Msg("Skipping malformed event")
				}
				continue
			}
			if event.EventType != events.TypeRunRequested {
				continue
			}

			w.handleRun(ctx, event)
		}
	}
}

// handleRun executes the pipeline for one requested run and publishes the
// completion or failure event. Events whose payload carries no usable
// runInputs are logged and skipped without emitting a failure.
func (w *RunWorker) handleRun(ctx context.Context, event *events.RunEvent) {
	runID := event.RunID
	requestedModel := ""
	if raw, ok := event.Payload["modelId"].(string); ok {
		requestedModel = raw
	}

	inputs, err := ingestion.ExtractRunInputs(event.Payload)
	if err != nil {
		if w.logger != nil {
			w.logger.Warn().Str("run_id", runID).Str("event_id", event.EventID).Err(err).Msg("Skipping run request with invalid inputs")
		}
		return
	}

	if w.logger != nil {
		w.logger.Info().
			Str("run_id", runID).
			Str("event_id", event.EventID).
			Int("inputs", len(inputs)).
			Msg("Run requested")
	}

	start := time.Now()
	outcome, err := w.executeRun(ctx, runID, requestedModel, inputs)
	if err != nil {
		w.publishFailure(ctx, runID, err, time.Since(start))
		return
	}
	w.publishCompletion(ctx, runID, outcome, time.Since(start))
}

type runOutcome struct {
	ingestion ingestion.Outcome
	relevant  int
}

func (w *RunWorker) executeRun(ctx context.Context, runID, requestedModel string, inputs []models.RunInput) (*runOutcome, error) {
	runPath, err := PrepareRunDatabase(w.dataDir, runID)
	if err != nil {
		return nil, err
	}

	storage, err := sqlite.NewResultStorage(runPath, w.logger)
	if err != nil {
		return nil, err
	}
	defer storage.Close()

	ingestOutcome, err := w.ingestor.Run(ctx, storage, runID, inputs)
	if err != nil {
		return nil, err
	}

	// Dedupe failure degrades the run but does not fail it: scoring still
	// proceeds over the unmarked rows.
	if _, err := w.deduper.Run(storage, runID); err != nil {
		if w.logger != nil {
			w.logger.Warn().Str("run_id", runID).Err(err).Msg("Deduplication failed, continuing unmarked")
		}
	}

	if _, err := w.scorer.Run(storage, runID, requestedModel); err != nil {
		return nil, err
	}

	relevant, err := storage.CountRelevant(runID)
	if err != nil {
		return nil, err
	}

	if err := UpdateDBPointer(w.dataDir, runID); err != nil {
		return nil, err
	}

	return &runOutcome{ingestion: ingestOutcome, relevant: relevant}, nil
}

func (w *RunWorker) publishCompletion(ctx context.Context, runID string, outcome *runOutcome, elapsed time.Duration) {
	zeroResults := outcome.ingestion.ZeroResults
	if zeroResults == nil {
		zeroResults = []ingestion.ZeroResult{}
	}
	payload := map[string]interface{}{
		"status":           outcome.ingestion.Status,
		"issuedCalls":      outcome.ingestion.IssuedCalls,
		"persistedResults": outcome.ingestion.PersistedResults,
		"newJobsCount":     outcome.ingestion.NewJobsCount,
		"relevantCount":    outcome.relevant,
		"skipped404":       outcome.ingestion.Skipped404,
		"zeroResults":      zeroResults,
	}
	if outcome.ingestion.Reason != "" {
		payload["reason"] = outcome.ingestion.Reason
	}
	w.publish(ctx, events.TypeRunCompleted, runID, payload)

	if w.logger != nil {
		w.logger.Info().
			Str("run_id", runID).
			Str("status", outcome.ingestion.Status).
			Int("persisted", outcome.ingestion.PersistedResults).
			Int("relevant", outcome.relevant).
			Dur("duration", elapsed).
			Msg("Run completed")
	}
}

func (w *RunWorker) publishFailure(ctx context.Context, runID string, runErr error, elapsed time.Duration) {
	errorCode := models.ClassifyRunError(runErr)
	payload := map[string]interface{}{
		"errorCode": errorCode,
		"message":   models.TruncateErrorMessage(runErr.Error(), 100),
	}
	w.publish(ctx, events.TypeRunFailed, runID, payload)

	if w.logger != nil {
		w.logger.Error().
			Str("run_id", runID).
			Str("error_code", errorCode).
			Dur("duration", elapsed).
			Err(runErr).
			Msg("Run failed")
	}
}

func (w *RunWorker) publish(ctx context.Context, eventType, runID string, payload map[string]interface{}) {
	event, err := events.BuildRunEvent(eventType, runID, payload)
	if err != nil {
		if w.logger != nil {
			w.logger.Error().Str("run_id", runID).Err(err).Msg("Failed to build completion event")
		}
		return
	}
	fields, err := event.Fields()
	if err != nil {
		if w.logger != nil {
			w.logger.Error().Str("run_id", runID).Err(err).Msg("Failed to encode completion event")
		}
		return
	}
	if err := w.publisher.Publish(ctx, fields); err != nil {
		if w.logger != nil {
			w.logger.Error().Str("run_id", runID).Err(err).Msg("Failed to publish completion event")
		}
	}
}
