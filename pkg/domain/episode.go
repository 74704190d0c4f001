package domain

import "time"

// Episode represents a podcast episode as ingested by the feed sync process.
//
// Episodes are read-only from the transcript pipeline's perspective: the pipeline
// selects candidates from this table and writes its outcomes to TranscriptRecord.
type Episode struct {
	// ID is the internal episode identifier.
	ID string `json:"id"`

	// ShowID is the identifier of the owning show.
	ShowID string `json:"show_id"`

	// GUID is the provider-assigned episode GUID from the show's RSS feed.
	GUID string `json:"guid"`

	// PublishedAt is the episode publication timestamp.
	PublishedAt time.Time `json:"published_at"`

	// FeedURL is the owning show's RSS feed URL, joined in at selection time.
	FeedURL string `json:"feed_url"`

	// WebsiteURL is the episode page URL from the feed item link, when available.
	// Used by the optional web transcript fallback.
	WebsiteURL string `json:"website_url,omitempty"`
}

// Show represents a podcast show whose feed is synced for new episodes.
type Show struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	FeedURL string `json:"feed_url"`
}
