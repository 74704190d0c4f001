package webfallback

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFindTranscriptURL_Ranking(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "transcript text with txt href wins",
			html: `<html><body>
				<a href="/notes.txt">Show notes</a>
				<a href="/episode-transcript.txt">Read the transcript</a>
				<a href="/about">Transcript policy</a>
			</body></html>`,
			want: "/episode-transcript.txt",
		},
		{
			name: "txt href beats transcript text alone",
			html: `<html><body>
				<a href="/about">Transcript policy</a>
				<a href="/episode.txt">Download</a>
			</body></html>`,
			want: "/episode.txt",
		},
		{
			name: "transcript text alone is last resort",
			html: `<html><body>
				<a href="/episodes/42">Full transcript here</a>
				<a href="/subscribe">Subscribe</a>
			</body></html>`,
			want: "/episodes/42",
		},
		{
			name: "txt extension with query string",
			html: `<html><body><a href="/files/ep.txt?v=2">Download</a></body></html>`,
			want: "/files/ep.txt?v=2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindTranscriptURL(tt.html)
			if err != nil {
				t.Fatalf("FindTranscriptURL failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("FindTranscriptURL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFindTranscriptURL_NoCandidates(t *testing.T) {
	html := `<html><body><a href="/subscribe">Subscribe</a></body></html>`

	if _, err := FindTranscriptURL(html); !errors.Is(err, ErrNoTranscriptURL) {
		t.Errorf("Expected ErrNoTranscriptURL, got %v", err)
	}
}

func TestFindTranscriptURL_EmptyHTML(t *testing.T) {
	if _, err := FindTranscriptURL("  "); !errors.Is(err, ErrEmptyPageHTML) {
		t.Errorf("Expected ErrEmptyPageHTML, got %v", err)
	}
}

func TestFindTranscript_FetchesLinkedTranscript(t *testing.T) {
	const transcript = "Host: Welcome to the show.\nGuest: Thanks for having me."

	mux := http.NewServeMux()
	mux.HandleFunc("/episode/1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
			<a href="/transcripts/ep1.txt">Episode transcript</a>
		</body></html>`))
	})
	mux.HandleFunc("/transcripts/ep1.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(transcript + "\n"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	finder := NewFinder()
	got, err := finder.FindTranscript(context.Background(), server.URL+"/episode/1")
	if err != nil {
		t.Fatalf("FindTranscript failed: %v", err)
	}
	if got != transcript {
		t.Errorf("Unexpected transcript:\n got  %q\n want %q", got, transcript)
	}
}

func TestFindTranscript_EmptyPageURL(t *testing.T) {
	finder := NewFinder()
	if _, err := finder.FindTranscript(context.Background(), "  "); !errors.Is(err, ErrEmptyPageURL) {
		t.Errorf("Expected ErrEmptyPageURL, got %v", err)
	}
}

func TestFindTranscript_TranscriptFetchFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/episode/1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><a href="/gone.txt">Transcript</a></body></html>`))
	})
	mux.HandleFunc("/gone.txt", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	finder := NewFinder()
	if _, err := finder.FindTranscript(context.Background(), server.URL+"/episode/1"); err == nil {
		t.Fatal("Expected error when the transcript URL is unreachable")
	}
}

func TestExtractPageText(t *testing.T) {
	html := `<html><head><title>Episode 1</title></head><body>
		<article>
			<h1>Episode 1</h1>
			<p>Host: Welcome to the show. Today we talk about distributed systems
			and why clocks are hard. This paragraph exists so the extractor has
			enough body text to treat the article as real content.</p>
		</article>
	</body></html>`

	text, err := ExtractPageText(html)
	if err != nil {
		t.Fatalf("ExtractPageText failed: %v", err)
	}
	if text == "" {
		t.Error("Expected non-empty extracted text")
	}
}

func TestExtractPageText_Empty(t *testing.T) {
	if _, err := ExtractPageText(""); !errors.Is(err, ErrEmptyPageHTML) {
		t.Errorf("Expected ErrEmptyPageHTML, got %v", err)
	}
}
