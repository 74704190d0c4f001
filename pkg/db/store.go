package db

import (
	"context"
	"database/sql"
	"fmt"

	"podnotes/pkg/domain"
)

// Store runs the transcript pipeline's queries against Postgres: candidate
// selection, status-row upserts, and the show/episode reads and writes the
// feed sync needs.
type Store struct {
	provider DBProvider
}

// NewStore creates a store on top of any client exposing a sql.DB handle.
func NewStore(provider DBProvider) *Store {
	return &Store{provider: provider}
}

// EnsureSchema creates the pipeline's tables when they do not exist yet.
// Column additions and index changes are handled by external migrations; this
// only covers bootstrapping a fresh database.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS shows (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			feed_url TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS episodes (
			id TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
			show_id TEXT NOT NULL REFERENCES shows(id),
			guid TEXT NOT NULL,
			published_at TIMESTAMPTZ NOT NULL,
			website_url TEXT,
			UNIQUE (show_id, guid)
		)`,
		`CREATE TABLE IF NOT EXISTS transcript_records (
			episode_id TEXT PRIMARY KEY REFERENCES episodes(id),
			status TEXT NOT NULL,
			storage_path TEXT,
			word_count INTEGER NOT NULL DEFAULT 0,
			source TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.provider.DB().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// SelectCandidates returns episodes published within the lookback window that
// do not yet have a terminal transcript record, oldest first, joined to their
// show's feed URL. Episodes whose record is still "processing" remain
// candidates so a later run can pick up the finished transcript.
func (s *Store) SelectCandidates(ctx context.Context, lookbackHours, limit int) ([]domain.Episode, error) {
	const query = `
		SELECT e.id, e.show_id, e.guid, e.published_at, sh.feed_url, COALESCE(e.website_url, '')
		FROM episodes e
		JOIN shows sh ON sh.id = e.show_id
		WHERE e.published_at >= now() - make_interval(hours => $1)
		  AND NOT EXISTS (
			SELECT 1 FROM transcript_records tr
			WHERE tr.episode_id = e.id AND tr.status <> 'processing'
		  )
		ORDER BY e.published_at ASC
		LIMIT $2`

	rows, err := s.provider.DB().QueryContext(ctx, query, lookbackHours, limit)
	if err != nil {
		return nil, fmt.Errorf("select candidate episodes: %w", err)
	}
	defer rows.Close()

	var episodes []domain.Episode
	for rows.Next() {
		var ep domain.Episode
		if err := rows.Scan(&ep.ID, &ep.ShowID, &ep.GUID, &ep.PublishedAt, &ep.FeedURL, &ep.WebsiteURL); err != nil {
			return nil, fmt.Errorf("scan candidate episode: %w", err)
		}
		episodes = append(episodes, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidate episodes: %w", err)
	}
	return episodes, nil
}

// UpsertTranscriptRecord inserts or updates the single status row an episode
// owns. Storage path and source are stored as NULL when empty.
func (s *Store) UpsertTranscriptRecord(ctx context.Context, rec *domain.TranscriptRecord) error {
	const query = `
		INSERT INTO transcript_records (episode_id, status, storage_path, word_count, source, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), now(), now())
		ON CONFLICT (episode_id) DO UPDATE SET
			status = EXCLUDED.status,
			storage_path = EXCLUDED.storage_path,
			word_count = EXCLUDED.word_count,
			source = EXCLUDED.source,
			updated_at = now()`

	_, err := s.provider.DB().ExecContext(ctx, query,
		rec.EpisodeID, string(rec.Status), rec.StoragePath, rec.WordCount, rec.Source)
	if err != nil {
		return fmt.Errorf("upsert transcript record for episode %s: %w", rec.EpisodeID, err)
	}
	return nil
}

// GetTranscriptRecord loads an episode's status row, or nil if none exists.
func (s *Store) GetTranscriptRecord(ctx context.Context, episodeID string) (*domain.TranscriptRecord, error) {
	const query = `
		SELECT episode_id, status, COALESCE(storage_path, ''), word_count, COALESCE(source, ''), created_at, updated_at
		FROM transcript_records
		WHERE episode_id = $1`

	var rec domain.TranscriptRecord
	err := s.provider.DB().QueryRowContext(ctx, query, episodeID).Scan(
		&rec.EpisodeID, &rec.Status, &rec.StoragePath, &rec.WordCount, &rec.Source,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transcript record for episode %s: %w", episodeID, err)
	}
	return &rec, nil
}

// ListShows returns all shows with their feed URLs, for the feed sync.
func (s *Store) ListShows(ctx context.Context) ([]domain.Show, error) {
	const query = `SELECT id, COALESCE(title, ''), feed_url FROM shows ORDER BY id`

	rows, err := s.provider.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list shows: %w", err)
	}
	defer rows.Close()

	var shows []domain.Show
	for rows.Next() {
		var sh domain.Show
		if err := rows.Scan(&sh.ID, &sh.Title, &sh.FeedURL); err != nil {
			return nil, fmt.Errorf("scan show: %w", err)
		}
		shows = append(shows, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shows: %w", err)
	}
	return shows, nil
}

// InsertEpisode inserts a newly discovered episode, deduplicating on
// (show_id, guid). Returns true when a row was actually inserted.
func (s *Store) InsertEpisode(ctx context.Context, ep *domain.Episode) (bool, error) {
	const query = `
		INSERT INTO episodes (show_id, guid, published_at, website_url)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		ON CONFLICT (show_id, guid) DO NOTHING`

	res, err := s.provider.DB().ExecContext(ctx, query, ep.ShowID, ep.GUID, ep.PublishedAt, ep.WebsiteURL)
	if err != nil {
		return false, fmt.Errorf("insert episode %s/%s: %w", ep.ShowID, ep.GUID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, nil
	}
	return affected > 0, nil
}
