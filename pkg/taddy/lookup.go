package taddy

import (
	"context"
	"fmt"

	"podnotes/pkg/domain"
)

// Query documents for the series → episode → transcript chain. Each lookup has
// a primary shape and a fallback shape; the fallback is used when the remote
// schema rejects the primary (see IsSchemaMismatch).
const (
	seriesByFeedURLQuery = `query GetPodcastSeries($rssUrl: String!) {
  getPodcastSeries(rssUrl: $rssUrl) {
    uuid
    name
    rssUrl
  }
}`

	seriesSearchQuery = `query SearchPodcastSeries($term: String!) {
  search(term: $term, filterForTypes: PODCASTSERIES) {
    podcastSeries {
      uuid
      name
      rssUrl
    }
  }
}`

	episodeByGUIDQuery = `query GetPodcastEpisode($guid: String!, $seriesUuid: ID!) {
  getPodcastEpisode(guid: $guid, seriesUuidForLookup: $seriesUuid) {
    uuid
    guid
    name
    taddyTranscribeStatus
  }
}`

	seriesWithEpisodesQuery = `query GetPodcastSeriesEpisodes($uuid: ID!) {
  getPodcastSeries(uuid: $uuid) {
    uuid
    episodes(limitPerPage: 50) {
      uuid
      guid
      name
      taddyTranscribeStatus
    }
  }
}`

	transcriptQuery = `query GetEpisodeTranscript($episodeUuid: ID!) {
  getEpisodeTranscript(uuid: $episodeUuid, useOnDemandCreditsIfNeeded: true) {
    id
    text
    speaker
    startTimecode
    endTimecode
  }
}`
)

type wireSeries struct {
	UUID   string `json:"uuid"`
	Name   string `json:"name"`
	RSSURL string `json:"rssUrl"`
}

type wireEpisode struct {
	UUID             string `json:"uuid"`
	GUID             string `json:"guid"`
	Name             string `json:"name"`
	TranscribeStatus string `json:"taddyTranscribeStatus"`
}

type wireSegment struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	Speaker       string `json:"speaker"`
	StartTimecode int    `json:"startTimecode"`
	EndTimecode   int    `json:"endTimecode"`
}

// FetchTranscript resolves the series by feed URL, the episode by GUID, and
// the episode's transcript, then classifies the assembled data. It never
// returns a Go error: every outcome, including failures, is expressed as a
// TranscriptResult variant so the orchestrator can treat episodes uniformly.
func (c *Client) FetchTranscript(ctx context.Context, feedURL, episodeGUID string) domain.TranscriptResult {
	series, err := c.resolveSeries(ctx, feedURL)
	if err != nil {
		return errorResult(err)
	}
	if series == nil {
		return domain.TranscriptResult{Kind: domain.ResultNoMatch, CreditsConsumed: 1}
	}

	episode, err := c.resolveEpisode(ctx, series.UUID, episodeGUID)
	if err != nil {
		return errorResult(err)
	}
	if episode == nil {
		return domain.TranscriptResult{Kind: domain.ResultNoMatch, CreditsConsumed: 1}
	}

	segments, err := c.fetchSegments(ctx, episode.UUID)
	if err != nil {
		return errorResult(err)
	}

	return Classify(segments, episode.TranscribeStatus)
}

// resolveSeries finds the podcast series for a feed URL. Primary: direct
// lookup by rssUrl. Fallback on schema rejection: free-text search using a
// name derived from the URL, preferring an exact feed-URL match among the
// candidates. A nil series with nil error means no match.
func (c *Client) resolveSeries(ctx context.Context, feedURL string) (*wireSeries, error) {
	var direct struct {
		Series *wireSeries `json:"getPodcastSeries"`
	}
	err := c.queryWithRetry(ctx, seriesByFeedURLQuery, map[string]any{"rssUrl": feedURL}, &direct)
	if err == nil {
		return direct.Series, nil
	}
	if !IsSchemaMismatch(err) {
		return nil, err
	}

	term := NameFromFeedURL(feedURL)
	if term == "" {
		return nil, nil
	}

	var search struct {
		Search struct {
			PodcastSeries []wireSeries `json:"podcastSeries"`
		} `json:"search"`
	}
	if err := c.queryWithRetry(ctx, seriesSearchQuery, map[string]any{"term": term}, &search); err != nil {
		return nil, err
	}

	candidates := search.Search.PodcastSeries
	if len(candidates) == 0 {
		return nil, nil
	}
	for i := range candidates {
		if candidates[i].RSSURL == feedURL {
			return &candidates[i], nil
		}
	}
	return &candidates[0], nil
}

// resolveEpisode finds the episode with the given GUID inside a series.
// Primary: direct episode-by-GUID lookup. Fallback on schema rejection: fetch
// the series with its episode list and filter client-side.
func (c *Client) resolveEpisode(ctx context.Context, seriesUUID, episodeGUID string) (*wireEpisode, error) {
	var direct struct {
		Episode *wireEpisode `json:"getPodcastEpisode"`
	}
	vars := map[string]any{"guid": episodeGUID, "seriesUuid": seriesUUID}
	err := c.queryWithRetry(ctx, episodeByGUIDQuery, vars, &direct)
	if err == nil {
		return direct.Episode, nil
	}
	if !IsSchemaMismatch(err) {
		return nil, err
	}

	var listing struct {
		Series *struct {
			UUID     string        `json:"uuid"`
			Episodes []wireEpisode `json:"episodes"`
		} `json:"getPodcastSeries"`
	}
	if err := c.queryWithRetry(ctx, seriesWithEpisodesQuery, map[string]any{"uuid": seriesUUID}, &listing); err != nil {
		return nil, err
	}
	if listing.Series == nil {
		return nil, nil
	}
	for i := range listing.Series.Episodes {
		if listing.Series.Episodes[i].GUID == episodeGUID {
			return &listing.Series.Episodes[i], nil
		}
	}
	return nil, nil
}

// fetchSegments retrieves the transcript segment list for an episode,
// opting in to on-demand generation credits when the provider needs them.
func (c *Client) fetchSegments(ctx context.Context, episodeUUID string) ([]domain.TranscriptSegment, error) {
	var resp struct {
		Items []wireSegment `json:"getEpisodeTranscript"`
	}
	if err := c.queryWithRetry(ctx, transcriptQuery, map[string]any{"episodeUuid": episodeUUID}, &resp); err != nil {
		return nil, err
	}

	segments := make([]domain.TranscriptSegment, 0, len(resp.Items))
	for _, item := range resp.Items {
		segments = append(segments, domain.TranscriptSegment{
			Text:          item.Text,
			Speaker:       item.Speaker,
			StartTimecode: item.StartTimecode,
			EndTimecode:   item.EndTimecode,
		})
	}
	return segments, nil
}

// errorResult maps a client-boundary error to the error variant. Quota
// exhaustion collapses to the canonical CREDITS_EXCEEDED message the
// orchestrator aborts on; unhandled schema mismatches are prefixed so they are
// easy to find in status rows.
func errorResult(err error) domain.TranscriptResult {
	switch {
	case IsQuotaExhausted(err):
		return domain.TranscriptResult{
			Kind:         domain.ResultError,
			ErrorMessage: QuotaExceededMessage,
		}
	case IsSchemaMismatch(err):
		return domain.TranscriptResult{
			Kind:         domain.ResultError,
			ErrorMessage: fmt.Sprintf("SCHEMA_MISMATCH: %v", err),
		}
	default:
		return domain.TranscriptResult{
			Kind:         domain.ResultError,
			ErrorMessage: err.Error(),
		}
	}
}
