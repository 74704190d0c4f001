// Package transcriptservice is the thin façade the batch worker calls: one
// GetTranscript per episode, hiding the provider client, the classifier, and
// the optional web-page fallback behind a single result.
package transcriptservice

import (
	"context"
	"log"
	"strings"

	"podnotes/pkg/domain"
	"podnotes/pkg/webfallback"
)

// Fetcher resolves an episode's transcript from the remote provider.
// *taddy.Client satisfies this.
type Fetcher interface {
	FetchTranscript(ctx context.Context, feedURL, episodeGUID string) domain.TranscriptResult
}

// WebFinder extracts a transcript from an episode's web page.
// *webfallback.Finder satisfies this.
type WebFinder interface {
	FindTranscript(ctx context.Context, pageURL string) (string, error)
}

// Service wraps the provider client behind a single per-episode call.
type Service struct {
	client Fetcher
	web    WebFinder
}

// New creates a transcript service over the provider client.
func New(client Fetcher) *Service {
	return &Service{client: client}
}

// SetWebFallback enables the episode-page fallback source. Disabled when nil.
func (s *Service) SetWebFallback(web WebFinder) {
	s.web = web
}

// GetTranscript fetches and classifies the episode's transcript. When the
// provider has no transcript and the episode page is known, the web fallback
// gets one chance; its failures are logged and the provider's not_found
// result stands.
func (s *Service) GetTranscript(ctx context.Context, episode domain.Episode) domain.TranscriptResult {
	result := s.client.FetchTranscript(ctx, episode.FeedURL, episode.GUID)

	if result.Kind == domain.ResultNotFound && s.web != nil && episode.WebsiteURL != "" {
		text, err := s.web.FindTranscript(ctx, episode.WebsiteURL)
		if err != nil {
			log.Printf("Web fallback for episode %s: %v", episode.ID, err)
			return result
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return result
		}
		return domain.TranscriptResult{
			Kind:            domain.ResultFull,
			Text:            text,
			WordCount:       len(strings.Fields(text)),
			Source:          webfallback.Source,
			CreditsConsumed: result.CreditsConsumed,
		}
	}

	return result
}
