package util

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
)

// NormalizeURL parses a raw URL and re-serializes it, normalizing
// percent-encoding and stripping surrounding whitespace. Returns an error
// for anything that does not parse as an absolute http(s) URL.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}

	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", raw)
	}

	return u.String(), nil
}

// IsSupportedScheme reports whether the URL uses http or https
func IsSupportedScheme(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// SameOrigin reports whether two URLs share a host, compared
// case-insensitively. Unparseable URLs never match.
func SameOrigin(a, b string) bool {
	ua, err := url.Parse(strings.TrimSpace(a))
	if err != nil || ua.Host == "" {
		return false
	}
	ub, err := url.Parse(strings.TrimSpace(b))
	if err != nil || ub.Host == "" {
		return false
	}
	return strings.EqualFold(ua.Host, ub.Host)
}

// Pre-compiled regex for bare URL detection in plain text
var bareURLRegex = regexp.MustCompile(`https?://[^\s<>"]+`)

// Linkify wraps bare http(s) URLs in a text with HTML anchor tags.
// Everything outside the URLs is HTML-escaped.
func Linkify(text string) string {
	var b strings.Builder
	lastIndex := 0

	for _, match := range bareURLRegex.FindAllStringIndex(text, -1) {
		b.WriteString(html.EscapeString(text[lastIndex:match[0]]))
		link := text[match[0]:match[1]]
		escaped := html.EscapeString(link)
		b.WriteString(fmt.Sprintf(`<a href="%s" rel="noopener noreferrer">%s</a>`, escaped, escaped))
		lastIndex = match[1]
	}

	b.WriteString(html.EscapeString(text[lastIndex:]))
	return b.String()
}
