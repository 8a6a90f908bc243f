// Package worker runs the asynchronous enrichment pipeline for submissions.
package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"feedbackapp/internal/config"
	"feedbackapp/internal/models"
	"feedbackapp/internal/observability"
	"feedbackapp/internal/services"
	contextutils "feedbackapp/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// Status describes the current state of the pool.
type Status struct {
	Running    bool      `json:"running"`
	Workers    int       `json:"workers"`
	QueueDepth int       `json:"queue_depth"`
	Processed  int64     `json:"processed"`
	Failed     int64     `json:"failed"`
	LastRun    time.Time `json:"last_run"`
}

// Pool consumes submission IDs from a bounded queue and enriches each one:
// claim, classify (remote when configured, heuristic otherwise), store.
type Pool struct {
	submissions services.SubmissionServiceInterface
	enrichment  services.EnrichmentServiceInterface
	cfg         *config.Config
	logger      *observability.Logger

	queue chan int
	wg    sync.WaitGroup

	stopJanitor chan struct{}
	janitorDone chan struct{}

	mu        sync.RWMutex
	running   bool
	processed int64
	failed    int64
	lastRun   time.Time
}

// NewPool creates a new enrichment pool.
func NewPool(submissions services.SubmissionServiceInterface, enrichment services.EnrichmentServiceInterface, cfg *config.Config, logger *observability.Logger) *Pool {
	if submissions == nil {
		panic("NewPool: submissions is nil")
	}
	if enrichment == nil {
		panic("NewPool: enrichment is nil")
	}
	if cfg == nil {
		panic("NewPool: cfg is nil")
	}
	if logger == nil {
		panic("NewPool: logger is nil")
	}

	queueSize := cfg.Enrichment.QueueSize
	if queueSize <= 0 {
		queueSize = config.DefaultEnrichmentQueueSize
	}

	return &Pool{
		submissions: submissions,
		enrichment:  enrichment,
		cfg:         cfg,
		logger:      logger,
		queue:       make(chan int, queueSize),
		stopJanitor: make(chan struct{}),
		janitorDone: make(chan struct{}),
	}
}

// Start launches the worker goroutines and the janitor loop. The janitor
// re-queues submissions whose enrichment is still pending, which covers
// entries dropped when the queue was full and entries left over from a
// previous process.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	workers := p.workerCount()
	p.mu.Unlock()

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.workerLoop(ctx)
	}
	go p.janitorLoop(ctx)

	p.logger.Info(ctx, "Enrichment pool started", map[string]interface{}{
		"workers":    workers,
		"queue_size": cap(p.queue),
	})
}

func (p *Pool) workerCount() int {
	return p.cfg.EnrichmentWorkers()
}

// Enqueue offers a submission ID to the pool without blocking. It returns
// false when the queue is full or the pool is stopped; the janitor will pick
// the submission up later either way.
func (p *Pool) Enqueue(id int) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.running {
		return false
	}
	select {
	case p.queue <- id:
		return true
	default:
		return false
	}
}

// Status returns a snapshot of pool state.
func (p *Pool) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Status{
		Running:    p.running,
		Workers:    p.workerCount(),
		QueueDepth: len(p.queue),
		Processed:  p.processed,
		Failed:     p.failed,
		LastRun:    p.lastRun,
	}
}

func (p *Pool) workerLoop(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case submissionID, ok := <-p.queue:
			if !ok {
				return
			}
			p.process(ctx, submissionID)
		case <-ctx.Done():
			return
		}
	}
}

// process runs the enrichment pipeline for a single submission.
func (p *Pool) process(ctx context.Context, submissionID int) {
	var err error
	ctx, span := observability.TraceWorkerFunction(ctx, "process_submission",
		observability.AttributeSubmissionID(submissionID),
	)
	defer observability.FinishSpan(span, &err)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during enrichment: %v", r)
			p.logger.Error(ctx, "Enrichment panicked", err, map[string]interface{}{
				"submission_id": submissionID,
			})
			p.markFailed(ctx, submissionID)
		}
	}()

	sub, err := p.submissions.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		if contextutils.IsError(err, contextutils.ErrSubmissionNotFound) {
			// Deleted before the worker got to it.
			span.SetAttributes(attribute.String("worker.result", "gone"))
			err = nil
			return
		}
		p.logger.Error(ctx, "Failed to load submission for enrichment", err, map[string]interface{}{
			"submission_id": submissionID,
		})
		return
	}

	claimed, err := p.submissions.ClaimEnrichment(ctx, submissionID)
	if err != nil {
		p.logger.Error(ctx, "Failed to claim submission", err, map[string]interface{}{
			"submission_id": submissionID,
		})
		return
	}
	if !claimed {
		// Another worker holds it or it is already done.
		span.SetAttributes(attribute.String("worker.result", "not_claimed"))
		return
	}

	result := p.enrich(ctx, sub.Message)
	if err = p.submissions.CompleteEnrichment(ctx, submissionID, result); err != nil {
		p.logger.Error(ctx, "Failed to store enrichment result", err, map[string]interface{}{
			"submission_id": submissionID,
		})
		p.markFailed(ctx, submissionID)
		return
	}

	p.mu.Lock()
	p.processed++
	p.lastRun = time.Now()
	p.mu.Unlock()

	span.SetAttributes(
		attribute.String("worker.result", "done"),
		attribute.String("submission.language", result.DetectedLanguage),
	)
}

// enrich produces a result for the message, preferring the remote classifier
// and falling back to local heuristics when it is unavailable or fails.
func (p *Pool) enrich(ctx context.Context, message string) *models.EnrichmentResult {
	// Blank messages get no tags at all, only the unknown language marker.
	if strings.TrimSpace(message) == "" {
		return &models.EnrichmentResult{DetectedLanguage: "unknown"}
	}

	if p.enrichment.RemoteEnabled() {
		result, err := p.enrichment.Enrich(ctx, message)
		if err == nil {
			return result
		}
		p.logger.Warn(ctx, "Remote enrichment failed, using heuristic fallback", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return services.FallbackEnrich(message)
}

func (p *Pool) markFailed(ctx context.Context, submissionID int) {
	p.mu.Lock()
	p.failed++
	p.mu.Unlock()

	if err := p.submissions.FailEnrichment(ctx, submissionID); err != nil {
		p.logger.Error(ctx, "Failed to mark enrichment failed", err, map[string]interface{}{
			"submission_id": submissionID,
		})
	}
}

// janitorLoop periodically re-queues submissions stuck in pending state.
func (p *Pool) janitorLoop(ctx context.Context) {
	defer close(p.janitorDone)

	ticker := time.NewTicker(config.WorkerJanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.requeuePending(ctx)
		case <-p.stopJanitor:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pool) requeuePending(ctx context.Context) {
	var err error
	ctx, span := observability.TraceWorkerFunction(ctx, "requeue_pending")
	defer observability.FinishSpan(span, &err)

	capacity := cap(p.queue) - len(p.queue)
	if capacity <= 0 {
		return
	}

	ids, err := p.submissions.PendingEnrichmentIDs(ctx, config.WorkerJanitorMinAge, capacity)
	if err != nil {
		p.logger.Error(ctx, "Failed to list pending submissions", err, map[string]interface{}{})
		return
	}
	if len(ids) == 0 {
		return
	}

	queued := 0
	for _, id := range ids {
		if p.Enqueue(id) {
			queued++
		}
	}
	span.SetAttributes(attribute.Int("worker.requeued", queued))
	p.logger.Info(ctx, "Re-queued pending submissions", map[string]interface{}{
		"found":  len(ids),
		"queued": queued,
	})
}

// Shutdown stops the janitor, drains the queue, and waits for workers to
// finish in-flight jobs. Jobs still queued when the context expires stay in
// pending state and are picked up on the next start.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	close(p.stopJanitor)
	select {
	case <-p.janitorDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	close(p.queue)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info(ctx, "Enrichment pool shutdown completed")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
