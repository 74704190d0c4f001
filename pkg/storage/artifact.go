// Package storage persists transcript artifacts: one gzip-compressed file per
// episode whose decompressed content is a single JSON line. Readers downstream
// (note generation, newsletter assembly) depend on both the object key layout
// and the upload content type, so neither may change.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"
)

// ArtifactContentType is the Content-Type set on every artifact upload.
// External compatibility contract: always "application/gzip", never a custom
// jsonlines+gzip type.
const ArtifactContentType = "application/gzip"

// Uploader stores a compressed artifact at the given object key.
type Uploader interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
}

// Artifact is the decompressed JSON-line payload of one stored transcript.
type Artifact struct {
	EpisodeID  string    `json:"episode_id"`
	ShowID     string    `json:"show_id"`
	Transcript string    `json:"transcript"`
	WordCount  int       `json:"word_count,omitempty"`
	Source     string    `json:"source,omitempty"`
	FetchedAt  time.Time `json:"fetched_at,omitempty"`
}

// ArtifactWriter serializes, compresses and uploads transcript artifacts.
type ArtifactWriter struct {
	uploader Uploader
}

// NewArtifactWriter creates an artifact writer over the given uploader.
func NewArtifactWriter(uploader Uploader) *ArtifactWriter {
	return &ArtifactWriter{uploader: uploader}
}

// ArtifactPath is the object key for an episode's artifact.
func ArtifactPath(showID, episodeID string) string {
	return fmt.Sprintf("%s/%s.jsonl.gz", showID, episodeID)
}

// Write uploads the artifact and returns its object key.
func (w *ArtifactWriter) Write(ctx context.Context, artifact *Artifact) (string, error) {
	data, err := EncodeArtifact(artifact)
	if err != nil {
		return "", err
	}

	path := ArtifactPath(artifact.ShowID, artifact.EpisodeID)
	if err := w.uploader.Upload(ctx, path, data, ArtifactContentType); err != nil {
		return "", fmt.Errorf("upload transcript artifact %s: %w", path, err)
	}
	return path, nil
}

// EncodeArtifact renders the artifact as one gzip-compressed JSON line.
func EncodeArtifact(artifact *Artifact) ([]byte, error) {
	line, err := json.Marshal(artifact)
	if err != nil {
		return nil, fmt.Errorf("marshal transcript artifact: %w", err)
	}
	line = append(line, '\n')

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(line); err != nil {
		return nil, fmt.Errorf("compress transcript artifact: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("finish transcript artifact: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeArtifact is the inverse of EncodeArtifact: gunzip and parse the JSON
// line. Used by reprocessing tooling and tests.
func DecodeArtifact(data []byte) (*Artifact, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open transcript artifact: %w", err)
	}
	defer gz.Close()

	line, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("decompress transcript artifact: %w", err)
	}

	var artifact Artifact
	if err := json.Unmarshal(bytes.TrimSpace(line), &artifact); err != nil {
		return nil, fmt.Errorf("parse transcript artifact: %w", err)
	}
	return &artifact, nil
}
