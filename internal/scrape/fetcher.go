// Package scrape fetches a web page and reduces it to readable text.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"
)

// ErrUnsupportedContent is returned for pages that are neither HTML nor plain text
var ErrUnsupportedContent = errors.New("unsupported page content type")

const maxPageBytes = 5 << 20

// Fetcher downloads pages and extracts their visible text
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	logger     zerolog.Logger
}

// NewFetcher creates a page fetcher with the given request timeout
func NewFetcher(timeout time.Duration, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  "Mozilla/5.0 (compatible; mode-relay-bot/1.0)",
		logger:     logger.With().Str("component", "scrape").Logger(),
	}
}

// PageText returns the visible text of the page at rawURL
func (f *Fetcher) PageText(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.1")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("page returned status %d", resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxPageBytes)
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))

	var text string
	switch {
	case mediaType == "" || mediaType == "text/html" || mediaType == "application/xhtml+xml":
		text, err = ExtractText(body)
		if err != nil {
			return "", fmt.Errorf("failed to parse page: %w", err)
		}
	case strings.HasPrefix(mediaType, "text/"):
		data, err := io.ReadAll(body)
		if err != nil {
			return "", fmt.Errorf("failed to read page: %w", err)
		}
		text = strings.TrimSpace(string(data))
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedContent, mediaType)
	}

	f.logger.Debug().
		Str("url", rawURL).
		Int("chars", len([]rune(text))).
		Msg("Page text extracted")

	return text, nil
}

var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"svg":      true,
	"head":     true,
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "header": true, "footer": true,
	"blockquote": true, "pre": true, "table": true, "ul": true, "ol": true,
}

// ExtractText tokenizes HTML and keeps the text outside scripts, styles and the head,
// one line per block element with whitespace collapsed
func ExtractText(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)

	var (
		lines   []string
		current strings.Builder
		skip    int
	)
	flush := func() {
		line := strings.Join(strings.Fields(current.String()), " ")
		if line != "" {
			lines = append(lines, line)
		}
		current.Reset()
	}

	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				flush()
				return strings.Join(lines, "\n"), nil
			}
			return "", z.Err()
		case html.StartTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skippedElements[tag] {
				skip++
			}
			if blockElements[tag] {
				flush()
			}
		case html.SelfClosingTagToken:
			name, _ := z.TagName()
			if blockElements[string(name)] {
				flush()
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skippedElements[tag] && skip > 0 {
				skip--
			}
			if blockElements[tag] {
				flush()
			}
		case html.TextToken:
			if skip == 0 {
				current.Write(z.Text())
				current.WriteByte(' ')
			}
		}
	}
}
