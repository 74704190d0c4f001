// Package webfallback recovers transcripts the provider does not have by
// scraping the episode's own web page: many shows publish a plain-text
// transcript and link it from the episode post. Used only as a secondary
// source when the provider reports no transcript.
package webfallback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"podnotes/pkg/httpclient"
)

// Source is the source tag written to transcript records recovered this way.
const Source = "web"

var (
	ErrEmptyPageURL    = errors.New("episode page URL is empty")
	ErrEmptyPageHTML   = errors.New("episode page HTML is empty")
	ErrNoTranscriptURL = errors.New("no transcript URL found on episode page")
	ErrEmptyTranscript = errors.New("extracted transcript text is empty")
)

// Finder fetches an episode page and extracts a linked plain-text transcript.
type Finder struct {
	client *httpclient.HTTPClient
}

// NewFinder creates a finder using browser-like request headers.
func NewFinder() *Finder {
	return &Finder{client: httpclient.NewClient(httpclient.BrowserClient)}
}

// FindTranscript fetches the episode page, locates the most transcript-looking
// link, downloads it and returns its plain text.
func (f *Finder) FindTranscript(ctx context.Context, pageURL string) (string, error) {
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return "", ErrEmptyPageURL
	}

	html, err := f.fetch(ctx, pageURL)
	if err != nil {
		return "", fmt.Errorf("fetch episode page: %w", err)
	}

	href, err := FindTranscriptURL(string(html))
	if err != nil {
		return "", err
	}

	transcriptURL, err := resolveAgainst(pageURL, href)
	if err != nil {
		return "", err
	}

	body, err := f.fetch(ctx, transcriptURL)
	if err != nil {
		return "", fmt.Errorf("fetch transcript %s: %w", transcriptURL, err)
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}

// ExtractPageText extracts readable text from an episode page, used when the
// linked transcript itself is not retrievable but the page embeds it.
func ExtractPageText(html string) (string, error) {
	html = strings.TrimSpace(html)
	if html == "" {
		return "", ErrEmptyPageHTML
	}

	article, err := readability.FromReader(strings.NewReader(html), nil)
	if err != nil {
		return "", fmt.Errorf("extract page text: %w", err)
	}
	return strings.TrimSpace(article.TextContent), nil
}

// FindTranscriptURL ranks anchor candidates on an episode page:
//  1. anchor text mentions "transcript" and the href is a .txt document
//  2. href is a .txt document
//  3. anchor text mentions "transcript"
func FindTranscriptURL(html string) (string, error) {
	html = strings.TrimSpace(html)
	if html == "" {
		return "", ErrEmptyPageHTML
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse episode page: %w", err)
	}

	type candidate struct {
		href string
		text string
	}

	var (
		high []candidate
		med  []candidate
		low  []candidate
	)

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}

		text := strings.TrimSpace(sel.Text())
		docLike := isTextDocumentHref(href)
		textLike := strings.Contains(strings.ToLower(text), "transcript")

		c := candidate{href: href, text: text}
		switch {
		case docLike && textLike:
			high = append(high, c)
		case docLike:
			med = append(med, c)
		case textLike:
			low = append(low, c)
		}
	})

	switch {
	case len(high) > 0:
		return high[0].href, nil
	case len(med) > 0:
		return med[0].href, nil
	case len(low) > 0:
		return low[0].href, nil
	default:
		return "", ErrNoTranscriptURL
	}
}

func (f *Finder) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := f.client.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func isTextDocumentHref(href string) bool {
	u, err := url.Parse(href)
	if err != nil {
		return strings.EqualFold(path.Ext(href), ".txt")
	}
	return strings.EqualFold(path.Ext(u.Path), ".txt")
}

func resolveAgainst(baseURL, ref string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}
