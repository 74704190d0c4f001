package taddy

import (
	"strings"

	"podnotes/pkg/domain"
)

// Episode-level transcription statuses reported by the provider.
const (
	TranscribeStatusProcessing = "PROCESSING"
	TranscribeStatusCompleted  = "COMPLETED"
	TranscribeStatusFailed     = "FAILED"
)

// Classify maps raw remote data (transcript segments plus the episode-level
// transcription status) to a result variant. It is a pure function.
//
// Rules, in order:
//   - status PROCESSING wins regardless of segment content
//   - status FAILED is an error
//   - no usable segments means the provider has no transcript
//   - otherwise assemble the text and report a full transcript
//
// The partial variant is reserved: the provider currently exposes no signal
// that distinguishes a partial transcript from a full one, so non-empty
// segments always classify as full.
func Classify(segments []domain.TranscriptSegment, status string) domain.TranscriptResult {
	// Each fetch costs an estimated one credit; the API reports no real usage.
	const credits = 1

	switch status {
	case TranscribeStatusProcessing:
		return domain.TranscriptResult{
			Kind:            domain.ResultProcessing,
			Source:          Source,
			CreditsConsumed: credits,
		}
	case TranscribeStatusFailed:
		return domain.TranscriptResult{
			Kind:            domain.ResultError,
			ErrorMessage:    "taddyTranscribeStatus=FAILED",
			CreditsConsumed: credits,
		}
	}

	text := AssembleText(segments)
	if text == "" {
		return domain.TranscriptResult{
			Kind:            domain.ResultNotFound,
			CreditsConsumed: credits,
		}
	}

	return domain.TranscriptResult{
		Kind:            domain.ResultFull,
		Text:            text,
		WordCount:       len(strings.Fields(text)),
		Source:          Source,
		CreditsConsumed: credits,
	}
}

// AssembleText renders segments as one newline-joined transcript. Segments
// with blank text are dropped; a segment with a speaker renders as
// "<speaker>: <text>".
func AssembleText(segments []domain.TranscriptSegment) string {
	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		speaker := strings.TrimSpace(seg.Speaker)
		if speaker != "" {
			lines = append(lines, speaker+": "+text)
		} else {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n")
}
