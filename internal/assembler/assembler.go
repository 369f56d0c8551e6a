// Package assembler builds the question text sent to the LLM from an incoming message.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mode-relay-bot/internal/mode"
	"github.com/mode-relay-bot/internal/models"
	"github.com/mode-relay-bot/internal/ocr"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/iter"
)

// ErrDownload is returned when an attachment could not be fetched
var ErrDownload = errors.New("attachment download failed")

// PageFetcher returns the readable text of a web page
type PageFetcher interface {
	PageText(ctx context.Context, rawURL string) (string, error)
}

// Result is the assembled question
type Result struct {
	Text    string
	Skipped int // Attachments that failed to download or recognize
}

// Assembler turns message text, links and attachments into one question
type Assembler struct {
	httpClient   *http.Client
	recognizer   ocr.Recognizer
	pages        PageFetcher
	maxPageChars int
	maxBytes     int64
	logger       zerolog.Logger
}

// New creates an assembler. A nil recognizer skips image attachments, a nil
// page fetcher keeps links as plain text.
func New(recognizer ocr.Recognizer, pages PageFetcher, config *models.BotConfig, logger zerolog.Logger) *Assembler {
	return &Assembler{
		httpClient:   &http.Client{Timeout: config.DownloadTimeout},
		recognizer:   recognizer,
		pages:        pages,
		maxPageChars: config.ScrapeMaxChars,
		maxBytes:     config.DownloadMaxBytes,
		logger:       logger.With().Str("component", "assembler").Logger(),
	}
}

// Assemble builds the question for a turn in the given mode.
// Attachments take precedence over the message text.
func (a *Assembler) Assemble(ctx context.Context, modeKey string, msg *models.IncomingMessage) Result {
	if len(msg.Attachments) > 0 {
		return a.fromAttachments(ctx, msg.Attachments)
	}

	question := QuestionText(msg)
	if modeKey == mode.Summarize.Key() && a.pages != nil {
		candidate := strings.TrimSpace(question)
		if IsWebURL(candidate) {
			text, err := a.pages.PageText(ctx, candidate)
			if err != nil {
				a.logger.Warn().Err(err).Str("url", candidate).Msg("Failed to fetch page text, using url as question")
				return Result{Text: question}
			}
			return Result{Text: truncate(text, a.maxPageChars)}
		}
	}

	return Result{Text: question}
}

type part struct {
	text    string
	used    bool
	skipped bool
}

func (a *Assembler) fromAttachments(ctx context.Context, attachments []models.Attachment) Result {
	parts := iter.Map(attachments, func(att *models.Attachment) part {
		return a.processAttachment(ctx, *att)
	})

	var (
		b       strings.Builder
		skipped int
	)
	for _, p := range parts {
		if p.skipped {
			skipped++
			continue
		}
		if p.used {
			b.WriteString(p.text)
			b.WriteString("\n")
		}
	}

	return Result{Text: b.String(), Skipped: skipped}
}

func (a *Assembler) processAttachment(ctx context.Context, att models.Attachment) part {
	contentType := strings.ToLower(att.ContentType)
	isImage := strings.HasPrefix(contentType, "image")
	isText := strings.HasPrefix(contentType, "text")
	if !isImage && !isText {
		a.logger.Debug().
			Str("filename", att.Filename).
			Str("content_type", att.ContentType).
			Msg("Ignoring unsupported attachment")
		return part{}
	}
	if isImage && a.recognizer == nil {
		a.logger.Debug().Str("filename", att.Filename).Msg("OCR disabled, skipping image attachment")
		return part{skipped: true}
	}

	data, err := a.download(ctx, att.URL)
	if err != nil {
		a.logger.Warn().Err(err).Str("filename", att.Filename).Msg("Could not download attachment")
		return part{skipped: true}
	}

	if isText {
		return part{text: string(data), used: true}
	}

	text, err := a.recognizer.Recognize(ctx, data, att.ContentType)
	if err != nil {
		if errors.Is(err, ocr.ErrNoText) {
			a.logger.Debug().Str("filename", att.Filename).Msg("The input image does not contain text")
		} else {
			a.logger.Warn().Err(err).Str("filename", att.Filename).Msg("Text detection failed")
		}
		return part{skipped: true}
	}

	return part{text: text, used: true}
}

func (a *Assembler) download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownload, withoutURL(err))
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownload, withoutURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrDownload, resp.StatusCode)
	}

	limit := a.maxBytes
	if limit <= 0 {
		limit = 20 << 20
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrDownload, limit)
	}

	return data, nil
}

// withoutURL drops the request URL from err. Telegram file URLs embed the bot token.
func withoutURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}

// QuestionText is the message text without a leading bot mention
func QuestionText(msg *models.IncomingMessage) string {
	if msg.MentionStripped {
		return msg.Text
	}
	return StripMention(msg.Text)
}

// StripMention removes a leading bot mention ("@name rest" or "<@id> rest")
func StripMention(text string) string {
	if !strings.HasPrefix(text, "@") && !strings.HasPrefix(text, "<@") {
		return text
	}
	i := strings.IndexByte(text, ' ')
	if i < 0 {
		return ""
	}
	return text[i+1:]
}

// IsWebURL reports whether s is an absolute http or https URL
func IsWebURL(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\n") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func truncate(text string, maxChars int) string {
	if maxChars <= 0 {
		return text
	}
	count := 0
	for i := range text {
		if count == maxChars {
			return text[:i]
		}
		count++
	}
	return text
}
