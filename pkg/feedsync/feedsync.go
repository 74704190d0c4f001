// Package feedsync ingests episode metadata: it parses each show's RSS feed
// and inserts episodes the database has not seen yet. The transcript worker
// only ever reads episodes this sync (or an equivalent upstream process) has
// created.
package feedsync

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"podnotes/pkg/domain"
)

// Store is the subset of the database the syncer needs.
type Store interface {
	ListShows(ctx context.Context) ([]domain.Show, error)
	InsertEpisode(ctx context.Context, ep *domain.Episode) (bool, error)
}

// Summary aggregates one sync run.
type Summary struct {
	Shows    int
	Episodes int
	Inserted int
	Errors   int
}

// Syncer parses show feeds and inserts newly published episodes.
type Syncer struct {
	store   Store
	workers int
}

// New creates a feed syncer.
func New(store Store) *Syncer {
	return &Syncer{store: store, workers: 5}
}

// SetWorkers sets the number of feeds parsed in parallel. Values <= 0 are
// coerced to 1.
func (s *Syncer) SetWorkers(workers int) {
	if workers <= 0 {
		s.workers = 1
		return
	}
	s.workers = workers
}

// SyncAll parses every show's feed and inserts unseen episodes, deduplicated
// by (show, GUID). Per-show failures are counted and logged, never fatal.
func (s *Syncer) SyncAll(ctx context.Context) (*Summary, error) {
	shows, err := s.store.ListShows(ctx)
	if err != nil {
		return nil, fmt.Errorf("list shows: %w", err)
	}

	summary := &Summary{Shows: len(shows)}
	if len(shows) == 0 {
		return summary, nil
	}

	jobs := make(chan domain.Show, len(shows))
	for _, show := range shows {
		jobs <- show
	}
	close(jobs)

	type result struct {
		episodes int
		inserted int
		err      error
	}
	results := make(chan result, len(shows))

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			parser := gofeed.NewParser()
			for show := range jobs {
				episodes, inserted, err := s.syncShow(ctx, parser, show)
				results <- result{episodes: episodes, inserted: inserted, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		summary.Episodes += res.episodes
		summary.Inserted += res.inserted
		if res.err != nil {
			summary.Errors++
			log.Printf("Feed sync error: %v", res.err)
		}
	}

	log.Printf("Feed sync complete: %d shows, %d episodes seen, %d inserted, %d errors",
		summary.Shows, summary.Episodes, summary.Inserted, summary.Errors)
	return summary, nil
}

// syncShow parses one feed and inserts its unseen episodes.
func (s *Syncer) syncShow(ctx context.Context, parser *gofeed.Parser, show domain.Show) (int, int, error) {
	feed, err := parser.ParseURLWithContext(show.FeedURL, ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("parse feed %s: %w", show.FeedURL, err)
	}

	episodes := 0
	inserted := 0
	for _, item := range feed.Items {
		guid := item.GUID
		if guid == "" {
			// Some feeds omit GUIDs; the item link is the next-best stable key.
			guid = item.Link
		}
		if guid == "" {
			continue
		}

		publishedAt := time.Now()
		if item.PublishedParsed != nil {
			publishedAt = *item.PublishedParsed
		}

		episodes++
		ok, err := s.store.InsertEpisode(ctx, &domain.Episode{
			ShowID:      show.ID,
			GUID:        guid,
			PublishedAt: publishedAt,
			WebsiteURL:  item.Link,
		})
		if err != nil {
			return episodes, inserted, fmt.Errorf("insert episode %s: %w", guid, err)
		}
		if ok {
			inserted++
		}
	}
	return episodes, inserted, nil
}
