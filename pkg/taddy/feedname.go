package taddy

import (
	"net/url"
	"strings"
)

// NameFromFeedURL derives a free-text search term from a feed URL, used when
// the direct series-by-feed-URL query is rejected by the remote schema.
//
// Heuristic: take the URL's last path segment, strip a .xml/.rss suffix,
// replace common separators with spaces, and lowercase. Falls back to the
// host's first label when the URL has no usable path.
func NameFromFeedURL(feedURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(feedURL))
	if err != nil {
		return ""
	}

	segment := lastPathSegment(parsed.Path)
	if segment == "" {
		host := strings.TrimPrefix(parsed.Hostname(), "www.")
		segment, _, _ = strings.Cut(host, ".")
	}
	if segment == "" {
		return ""
	}

	segment = strings.TrimSuffix(segment, ".xml")
	segment = strings.TrimSuffix(segment, ".rss")

	replacer := strings.NewReplacer("-", " ", "_", " ", "+", " ", ".", " ")
	segment = replacer.Replace(segment)

	return strings.Join(strings.Fields(strings.ToLower(segment)), " ")
}

func lastPathSegment(p string) string {
	parts := strings.Split(p, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(parts[i]); s != "" {
			return s
		}
	}
	return ""
}
