package domain

import "time"

// TranscriptStatus is the processing status persisted for an episode's transcript.
type TranscriptStatus string

const (
	StatusProcessing TranscriptStatus = "processing"
	StatusFull       TranscriptStatus = "full"
	StatusPartial    TranscriptStatus = "partial"
	StatusNotFound   TranscriptStatus = "not_found"
	StatusNoMatch    TranscriptStatus = "no_match"
	StatusError      TranscriptStatus = "error"
)

// IsTerminal reports whether the status is final for candidate selection purposes.
// Episodes with a terminal record are not retried; "processing" episodes are.
func (s TranscriptStatus) IsTerminal() bool {
	return s != StatusProcessing && s != ""
}

// TranscriptRecord is the status row owned by the transcript pipeline.
// An episode has at most one active record; the worker upserts it on every attempt.
type TranscriptRecord struct {
	EpisodeID string `json:"episode_id"`

	Status TranscriptStatus `json:"status"`

	// StoragePath is the artifact object key, present only for full/partial.
	StoragePath string `json:"storage_path,omitempty"`

	WordCount int `json:"word_count,omitempty"`

	// Source tags where the transcript came from (e.g., "taddy", "web").
	Source string `json:"source,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TranscriptSegment is one ordered piece of a remote transcript.
type TranscriptSegment struct {
	Text          string `json:"text"`
	Speaker       string `json:"speaker,omitempty"`
	StartTimecode int    `json:"startTimecode,omitempty"`
	EndTimecode   int    `json:"endTimecode,omitempty"`
}

// ResultKind discriminates TranscriptResult variants. Exactly one kind is set
// per result; every consumer is expected to switch exhaustively over it.
type ResultKind string

const (
	ResultFull       ResultKind = "full"
	ResultPartial    ResultKind = "partial"
	ResultProcessing ResultKind = "processing"
	ResultNotFound   ResultKind = "not_found"
	ResultNoMatch    ResultKind = "no_match"
	ResultError      ResultKind = "error"
)

// TranscriptResult is the in-memory outcome of one transcript fetch.
//
// Text and WordCount are populated only for full/partial; ErrorMessage only for
// error. CreditsConsumed is a best-effort estimate (the remote API does not
// report real usage): 1 per billed request, 0 when the request failed outright.
type TranscriptResult struct {
	Kind            ResultKind `json:"kind"`
	Text            string     `json:"text,omitempty"`
	WordCount       int        `json:"word_count,omitempty"`
	Source          string     `json:"source,omitempty"`
	CreditsConsumed int        `json:"credits_consumed"`
	ErrorMessage    string     `json:"error_message,omitempty"`
}

// RecordStatus maps the result variant to the persisted status enum.
func (r TranscriptResult) RecordStatus() TranscriptStatus {
	switch r.Kind {
	case ResultFull:
		return StatusFull
	case ResultPartial:
		return StatusPartial
	case ResultProcessing:
		return StatusProcessing
	case ResultNotFound:
		return StatusNotFound
	case ResultNoMatch:
		return StatusNoMatch
	default:
		return StatusError
	}
}

// RunSummary aggregates one orchestrator invocation. It is logged, never persisted.
type RunSummary struct {
	TotalCandidates int
	Processed       int
	Succeeded       int // full + partial
	Processing      int
	Errors          int
	AvgLatency      time.Duration
}
