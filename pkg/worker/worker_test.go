package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"podnotes/pkg/domain"
	"podnotes/pkg/storage"
)

type fakeStore struct {
	mu         sync.Mutex
	candidates []domain.Episode
	selectErr  error
	upsertErr  error
	records    map[string]domain.TranscriptRecord
}

func newFakeStore(candidates []domain.Episode) *fakeStore {
	return &fakeStore{
		candidates: candidates,
		records:    make(map[string]domain.TranscriptRecord),
	}
}

func (s *fakeStore) SelectCandidates(ctx context.Context, lookbackHours, limit int) ([]domain.Episode, error) {
	if s.selectErr != nil {
		return nil, s.selectErr
	}
	if limit < len(s.candidates) {
		return s.candidates[:limit], nil
	}
	return s.candidates, nil
}

func (s *fakeStore) UpsertTranscriptRecord(ctx context.Context, rec *domain.TranscriptRecord) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.EpisodeID] = *rec
	return nil
}

func (s *fakeStore) record(episodeID string) (domain.TranscriptRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[episodeID]
	return rec, ok
}

type fakeService struct {
	delay       time.Duration
	results     map[string]domain.TranscriptResult
	calls       atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (s *fakeService) GetTranscript(ctx context.Context, episode domain.Episode) domain.TranscriptResult {
	s.calls.Add(1)
	current := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	for {
		max := s.maxInFlight.Load()
		if current <= max || s.maxInFlight.CompareAndSwap(max, current) {
			break
		}
	}

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	if result, ok := s.results[episode.ID]; ok {
		return result
	}
	return domain.TranscriptResult{
		Kind: domain.ResultFull, Text: "hello world", WordCount: 2,
		Source: "taddy", CreditsConsumed: 1,
	}
}

type fakeArtifacts struct {
	mu      sync.Mutex
	err     error
	written []storage.Artifact
}

func (a *fakeArtifacts) Write(ctx context.Context, artifact *storage.Artifact) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.written = append(a.written, *artifact)
	return storage.ArtifactPath(artifact.ShowID, artifact.EpisodeID), nil
}

type fakeLocker struct {
	available bool
	tryErr    error
	locks     atomic.Int32
	unlocks   atomic.Int32
}

func (l *fakeLocker) TryLock(ctx context.Context, name string) (bool, error) {
	l.locks.Add(1)
	return l.available, l.tryErr
}

func (l *fakeLocker) Unlock(ctx context.Context, name string) error {
	l.unlocks.Add(1)
	return nil
}

func episodes(n int) []domain.Episode {
	eps := make([]domain.Episode, 0, n)
	for i := 0; i < n; i++ {
		eps = append(eps, domain.Episode{
			ID:          fmt.Sprintf("episode-%d", i),
			ShowID:      "show-1",
			GUID:        fmt.Sprintf("guid-%d", i),
			PublishedAt: time.Now().Add(-time.Hour),
			FeedURL:     "https://example.com/feed.xml",
		})
	}
	return eps
}

func newTestWorker(cfg Config, store Store, service TranscriptService, artifacts ArtifactWriter) *Worker {
	if cfg.LookbackHours == 0 {
		cfg.LookbackHours = 48
	}
	if cfg.MaxEpisodes == 0 {
		cfg.MaxEpisodes = 100
	}
	cfg.Enabled = true
	return New(cfg, store, service, artifacts)
}

func TestWorker_ConcurrencyBound(t *testing.T) {
	const concurrency = 3
	store := newFakeStore(episodes(20))
	service := &fakeService{delay: 20 * time.Millisecond}
	artifacts := &fakeArtifacts{}

	w := newTestWorker(Config{Concurrency: concurrency}, store, service, artifacts)

	summary, err := w.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if max := service.maxInFlight.Load(); max > concurrency {
		t.Errorf("Concurrency bound violated: %d in flight, limit %d", max, concurrency)
	}
	if summary.Processed != 20 || summary.Succeeded != 20 {
		t.Errorf("Expected 20 processed/succeeded, got %d/%d", summary.Processed, summary.Succeeded)
	}
	if summary.AvgLatency <= 0 {
		t.Errorf("Expected positive average latency, got %s", summary.AvgLatency)
	}
}

func TestWorker_QuotaAbortStopsDispatch(t *testing.T) {
	const total = 10
	store := newFakeStore(episodes(total))
	service := &fakeService{
		results: map[string]domain.TranscriptResult{
			"episode-0": {Kind: domain.ResultError, ErrorMessage: "CREDITS_EXCEEDED"},
		},
	}
	artifacts := &fakeArtifacts{}

	w := newTestWorker(Config{Concurrency: 1}, store, service, artifacts)

	summary, err := w.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// The feeder checks the abort flag before every send; one job may already
	// be committed to the unbuffered channel when the flag flips, so at most
	// one extra episode is processed after the quota error.
	if calls := service.calls.Load(); calls > 2 {
		t.Errorf("Expected dispatch to stop after quota error, got %d fetches", calls)
	}
	if summary.Errors < 1 {
		t.Errorf("Expected at least one error, got %d", summary.Errors)
	}
	if summary.TotalCandidates != total {
		t.Errorf("Expected %d candidates, got %d", total, summary.TotalCandidates)
	}

	// Abandoned candidates must keep no record so a future run retries them.
	if _, ok := store.record("episode-9"); ok {
		t.Error("Expected no record for an undispatched episode")
	}
}

func TestWorker_PersistsOutcomes(t *testing.T) {
	store := newFakeStore(episodes(4))
	service := &fakeService{
		results: map[string]domain.TranscriptResult{
			"episode-0": {Kind: domain.ResultFull, Text: "Host: Hello\nWorld", WordCount: 2, Source: "taddy", CreditsConsumed: 1},
			"episode-1": {Kind: domain.ResultProcessing, Source: "taddy", CreditsConsumed: 1},
			"episode-2": {Kind: domain.ResultNotFound, CreditsConsumed: 1},
			"episode-3": {Kind: domain.ResultNoMatch, CreditsConsumed: 1},
		},
	}
	artifacts := &fakeArtifacts{}

	w := newTestWorker(Config{Concurrency: 2}, store, service, artifacts)

	summary, err := w.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Succeeded != 1 || summary.Processing != 1 || summary.Errors != 0 {
		t.Errorf("Unexpected summary: %+v", summary)
	}

	full, ok := store.record("episode-0")
	if !ok {
		t.Fatal("Expected record for full result")
	}
	if full.Status != domain.StatusFull || full.StoragePath != "show-1/episode-0.jsonl.gz" || full.WordCount != 2 {
		t.Errorf("Unexpected full record: %+v", full)
	}

	processing, ok := store.record("episode-1")
	if !ok || processing.Status != domain.StatusProcessing {
		t.Errorf("Expected processing record, got %+v (found=%v)", processing, ok)
	}
	if processing.StoragePath != "" {
		t.Errorf("Expected no storage path on processing record, got %q", processing.StoragePath)
	}

	if rec, ok := store.record("episode-2"); !ok || rec.Status != domain.StatusNotFound {
		t.Errorf("Expected not_found record, got %+v (found=%v)", rec, ok)
	}
	if rec, ok := store.record("episode-3"); !ok || rec.Status != domain.StatusNoMatch {
		t.Errorf("Expected no_match record, got %+v (found=%v)", rec, ok)
	}

	if len(artifacts.written) != 1 {
		t.Errorf("Expected 1 artifact upload, got %d", len(artifacts.written))
	}
}

func TestWorker_UploadFailureIsPerEpisodeError(t *testing.T) {
	store := newFakeStore(episodes(2))
	service := &fakeService{}
	artifacts := &fakeArtifacts{err: errors.New("bucket unavailable")}

	w := newTestWorker(Config{Concurrency: 1}, store, service, artifacts)

	summary, err := w.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Storage failures do not abort the run; both episodes are attempted.
	if summary.Processed != 2 || summary.Errors != 2 {
		t.Errorf("Expected 2 processed / 2 errors, got %d/%d", summary.Processed, summary.Errors)
	}
	if _, ok := store.record("episode-0"); ok {
		t.Error("Expected no record when the artifact upload fails")
	}
}

func TestWorker_LockUnavailableReturnsZeroSummary(t *testing.T) {
	store := newFakeStore(episodes(5))
	service := &fakeService{}
	locker := &fakeLocker{available: false}

	w := newTestWorker(Config{Concurrency: 2, UseAdvisoryLock: true}, store, service, &fakeArtifacts{})
	w.SetLocker(locker)

	summary, err := w.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.TotalCandidates != 0 || summary.Processed != 0 {
		t.Errorf("Expected zero summary, got %+v", summary)
	}
	if service.calls.Load() != 0 {
		t.Errorf("Expected no fetches without the lock, got %d", service.calls.Load())
	}
	if locker.unlocks.Load() != 0 {
		t.Errorf("Expected no unlock for a lock we never held, got %d", locker.unlocks.Load())
	}
}

func TestWorker_LockAcquiredAndReleased(t *testing.T) {
	store := newFakeStore(episodes(1))
	locker := &fakeLocker{available: true}

	w := newTestWorker(Config{Concurrency: 1, UseAdvisoryLock: true}, store, &fakeService{}, &fakeArtifacts{})
	w.SetLocker(locker)

	if _, err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if locker.locks.Load() != 1 || locker.unlocks.Load() != 1 {
		t.Errorf("Expected 1 lock/unlock, got %d/%d", locker.locks.Load(), locker.unlocks.Load())
	}
}

func TestWorker_DisabledReturnsZeroSummary(t *testing.T) {
	store := newFakeStore(episodes(5))
	service := &fakeService{}

	w := New(Config{Concurrency: 1}, store, service, &fakeArtifacts{})

	summary, err := w.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.TotalCandidates != 0 || service.calls.Load() != 0 {
		t.Errorf("Expected disabled worker to do nothing, got %+v", summary)
	}
}

func TestWorker_CandidateQueryFailurePropagates(t *testing.T) {
	store := newFakeStore(nil)
	store.selectErr = errors.New("connection reset")

	w := newTestWorker(Config{Concurrency: 1}, store, &fakeService{}, &fakeArtifacts{})

	if _, err := w.Run(context.Background()); err == nil {
		t.Fatal("Expected candidate query error to propagate")
	}
}
