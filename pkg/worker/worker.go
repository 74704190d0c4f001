// Package worker implements the transcript batch orchestrator: it selects
// candidate episodes, fans them out over a bounded pool of transcript fetches,
// persists artifacts and status rows, and reports a run summary. At most one
// run executes cluster-wide, guarded by a named advisory lock.
package worker

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"podnotes/pkg/archive"
	"podnotes/pkg/domain"
	"podnotes/pkg/storage"
	"podnotes/pkg/taddy"
)

// LockName is the advisory lock guarding cross-instance mutual exclusion.
const LockName = "transcript_worker"

// Config holds the orchestrator's externally supplied settings. Validation
// happens at the configuration boundary; the worker only coerces obviously
// unusable values.
type Config struct {
	// LookbackHours bounds how far back candidate episodes are selected.
	LookbackHours int

	// MaxEpisodes caps candidates per run.
	MaxEpisodes int

	// Concurrency is the bounded pool size for transcript fetches.
	Concurrency int

	// Enabled gates the whole worker; a disabled worker returns a zero summary.
	Enabled bool

	// UseAdvisoryLock toggles the cross-instance lock.
	UseAdvisoryLock bool
}

// Store is the subset of the database the orchestrator needs.
type Store interface {
	SelectCandidates(ctx context.Context, lookbackHours, limit int) ([]domain.Episode, error)
	UpsertTranscriptRecord(ctx context.Context, rec *domain.TranscriptRecord) error
}

// TranscriptService fetches one episode's transcript.
type TranscriptService interface {
	GetTranscript(ctx context.Context, episode domain.Episode) domain.TranscriptResult
}

// ArtifactWriter uploads a transcript artifact and returns its object key.
type ArtifactWriter interface {
	Write(ctx context.Context, artifact *storage.Artifact) (string, error)
}

// Locker is a named, non-blocking, datastore-mediated mutex.
type Locker interface {
	TryLock(ctx context.Context, name string) (bool, error)
	Unlock(ctx context.Context, name string) error
}

// Archiver stores raw fetch payloads for reprocessing. Optional.
type Archiver interface {
	SaveFetch(ctx context.Context, doc *archive.FetchDocument) error
}

// Worker runs one transcript acquisition batch per invocation.
type Worker struct {
	cfg       Config
	store     Store
	service   TranscriptService
	artifacts ArtifactWriter
	locker    Locker
	archiver  Archiver

	// abort is the cooperative quota-exhaustion flag: checked before each new
	// dispatch, never cancels in-flight work.
	abort    atomic.Bool
	warnOnce sync.Once
}

// New creates a worker. Locker and archiver are optional; see SetLocker and
// SetArchiver.
func New(cfg Config, store Store, service TranscriptService, artifacts ArtifactWriter) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Worker{
		cfg:       cfg,
		store:     store,
		service:   service,
		artifacts: artifacts,
	}
}

// SetLocker installs the advisory lock implementation. Required when
// Config.UseAdvisoryLock is set.
func (w *Worker) SetLocker(locker Locker) {
	w.locker = locker
}

// SetArchiver enables best-effort raw fetch archiving.
func (w *Worker) SetArchiver(archiver Archiver) {
	w.archiver = archiver
}

// Run executes one batch and returns its summary. Run-level problems (worker
// disabled, lock held elsewhere) produce a zero-valued summary, not an error;
// only a failed candidate query propagates as an error so the scheduling layer
// can account for the failed job.
func (w *Worker) Run(ctx context.Context) (*domain.RunSummary, error) {
	summary := &domain.RunSummary{}

	if !w.cfg.Enabled {
		log.Printf("Transcript worker is disabled, skipping run")
		return summary, nil
	}

	if w.cfg.UseAdvisoryLock {
		if w.locker == nil {
			log.Printf("Transcript worker: advisory lock enabled but no locker configured, skipping run")
			return summary, nil
		}
		acquired, err := w.locker.TryLock(ctx, LockName)
		if err != nil {
			log.Printf("Transcript worker: advisory lock error: %v", err)
			return summary, nil
		}
		if !acquired {
			log.Printf("Transcript worker: lock %q held by another instance, skipping run", LockName)
			return summary, nil
		}
		defer func() {
			if err := w.locker.Unlock(ctx, LockName); err != nil {
				log.Printf("Transcript worker: release lock %q: %v", LockName, err)
			}
		}()
	}

	candidates, err := w.store.SelectCandidates(ctx, w.cfg.LookbackHours, w.cfg.MaxEpisodes)
	if err != nil {
		return summary, err
	}

	summary.TotalCandidates = len(candidates)
	if len(candidates) == 0 {
		log.Printf("Transcript worker: no candidate episodes in the last %dh", w.cfg.LookbackHours)
		return summary, nil
	}

	log.Printf("Transcript worker: processing %d candidate episodes (concurrency %d)",
		len(candidates), w.cfg.Concurrency)

	w.abort.Store(false)
	outcomes := w.dispatch(ctx, candidates)

	var totalLatency time.Duration
	for outcome := range outcomes {
		summary.Processed++
		totalLatency += outcome.latency

		switch outcome.kind {
		case domain.ResultFull, domain.ResultPartial:
			summary.Succeeded++
		case domain.ResultProcessing:
			summary.Processing++
		case domain.ResultError:
			summary.Errors++
		}
	}
	if summary.Processed > 0 {
		summary.AvgLatency = totalLatency / time.Duration(summary.Processed)
	}

	log.Printf("Transcript worker: run complete: %d candidates, %d processed, %d succeeded, %d processing, %d errors, avg latency %s",
		summary.TotalCandidates, summary.Processed, summary.Succeeded,
		summary.Processing, summary.Errors, summary.AvgLatency)
	return summary, nil
}

type episodeOutcome struct {
	kind    domain.ResultKind
	latency time.Duration
}

// dispatch feeds candidates to a bounded pool. The feeder checks the abort
// flag before every send: once quota exhaustion is detected, queued candidates
// are abandoned (no record written, eligible next run) while in-flight fetches
// finish.
func (w *Worker) dispatch(ctx context.Context, candidates []domain.Episode) <-chan episodeOutcome {
	jobs := make(chan domain.Episode)
	outcomes := make(chan episodeOutcome, len(candidates))

	go func() {
		defer close(jobs)
		for _, ep := range candidates {
			if w.abort.Load() {
				return
			}
			select {
			case jobs <- ep:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ep := range jobs {
				start := time.Now()
				kind := w.processEpisode(ctx, ep)
				outcomes <- episodeOutcome{kind: kind, latency: time.Since(start)}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	return outcomes
}

// processEpisode fetches one transcript and persists the outcome. Returns the
// result kind actually recorded (an upload or upsert failure downgrades the
// outcome to error).
func (w *Worker) processEpisode(ctx context.Context, ep domain.Episode) domain.ResultKind {
	result := w.service.GetTranscript(ctx, ep)
	w.archiveFetch(ctx, ep, result)

	switch result.Kind {
	case domain.ResultFull, domain.ResultPartial:
		path, err := w.artifacts.Write(ctx, &storage.Artifact{
			EpisodeID:  ep.ID,
			ShowID:     ep.ShowID,
			Transcript: result.Text,
			WordCount:  result.WordCount,
			Source:     result.Source,
			FetchedAt:  time.Now().UTC(),
		})
		if err != nil {
			result = domain.TranscriptResult{
				Kind:         domain.ResultError,
				ErrorMessage: "Failed to upload transcript to storage: " + err.Error(),
			}
			return w.handleError(ep, result)
		}

		rec := &domain.TranscriptRecord{
			EpisodeID:   ep.ID,
			Status:      result.RecordStatus(),
			StoragePath: path,
			WordCount:   result.WordCount,
			Source:      result.Source,
		}
		if err := w.store.UpsertTranscriptRecord(ctx, rec); err != nil {
			log.Printf("Transcript worker: record upsert for episode %s: %v", ep.ID, err)
			return domain.ResultError
		}
		return result.Kind

	case domain.ResultProcessing, domain.ResultNotFound, domain.ResultNoMatch:
		rec := &domain.TranscriptRecord{
			EpisodeID: ep.ID,
			Status:    result.RecordStatus(),
			Source:    result.Source,
		}
		if err := w.store.UpsertTranscriptRecord(ctx, rec); err != nil {
			log.Printf("Transcript worker: record upsert for episode %s: %v", ep.ID, err)
			return domain.ResultError
		}
		return result.Kind

	default:
		return w.handleError(ep, result)
	}
}

// handleError logs a per-episode error and raises the run-level abort flag on
// quota exhaustion. No status row is written: the episode stays eligible for
// the next run.
func (w *Worker) handleError(ep domain.Episode, result domain.TranscriptResult) domain.ResultKind {
	if result.ErrorMessage == taddy.QuotaExceededMessage || taddy.IsQuotaExhaustedMessage(result.ErrorMessage) {
		w.abort.Store(true)
		w.warnOnce.Do(func() {
			log.Printf("Transcript worker: quota exhausted - aborting remaining episodes for this run")
		})
		return domain.ResultError
	}

	log.Printf("Transcript worker: episode %s: %s", ep.ID, result.ErrorMessage)
	return domain.ResultError
}

// archiveFetch stores the raw result when archiving is enabled. Best-effort:
// failures are logged and ignored.
func (w *Worker) archiveFetch(ctx context.Context, ep domain.Episode, result domain.TranscriptResult) {
	if w.archiver == nil {
		return
	}
	doc := &archive.FetchDocument{
		EpisodeID:  ep.ID,
		ShowID:     ep.ShowID,
		GUID:       ep.GUID,
		ResultKind: string(result.Kind),
		Transcript: result.Text,
		WordCount:  result.WordCount,
		FetchedAt:  time.Now().UTC(),
	}
	if err := w.archiver.SaveFetch(ctx, doc); err != nil {
		log.Printf("Transcript worker: archive fetch for episode %s: %v", ep.ID, err)
	}
}
