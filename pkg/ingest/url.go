package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/tmc/langchaingo/schema"
	"golang.org/x/time/rate"
)

type URLConfig struct {
	Timeout      time.Duration
	RateLimit    float64 // requests per second
	UserAgent    string
	MaxBodyBytes int64
	Client       *http.Client
}

// URLLoader fetches a remote document. HTML pages are reduced to their main
// content, PDFs go through the PDF loader and plain text is kept as is.
type URLLoader struct {
	config  URLConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewURLLoader(config URLConfig) *URLLoader {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2 // 2 requests per second by default
	}
	if config.MaxBodyBytes == 0 {
		config.MaxBodyBytes = 50 << 20
	}
	if config.UserAgent == "" {
		config.UserAgent = "documind/1.0"
	}

	client := config.Client
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}

	return &URLLoader{
		config:  config,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

func (l *URLLoader) Load(ctx context.Context, location string) ([]schema.Document, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", l.config.UserAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, location)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, l.config.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	switch sniffMediaType(resp.Header.Get("Content-Type"), body) {
	case "application/pdf":
		return loadPDF(ctx, bytes.NewReader(body), int64(len(body)), location)
	case "text/plain":
		return []schema.Document{newRecord(string(body), location, 0, KindURL)}, nil
	default:
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("parse html: %w", err)
		}

		record := newRecord(extractMainContent(doc), location, 0, KindURL)
		if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
			record.Metadata[MetaTitle] = title
		}
		return []schema.Document{record}, nil
	}
}

// sniffMediaType trusts the declared Content-Type unless it is missing or
// generic, in which case the body decides.
func sniffMediaType(header string, body []byte) string {
	mediaType, _, err := mime.ParseMediaType(header)
	if err == nil && mediaType != "application/octet-stream" && mediaType != "binary/octet-stream" {
		return mediaType
	}
	mediaType, _, _ = strings.Cut(http.DetectContentType(body), ";")
	return mediaType
}

func extractMainContent(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, footer").Remove()

	// Try to find main content area
	selectors := []string{
		"main",
		"article",
		".content",
		"#content",
		".documentation",
		"#documentation",
	}

	var content string
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}

	// Fallback to body if no main content found
	if strings.TrimSpace(content) == "" {
		content = doc.Find("body").Text()
	}

	return cleanContent(content)
}

// cleanContent collapses runs of whitespace inside each line and drops blank
// lines, so line structure survives for the chunker.
func cleanContent(content string) string {
	noisePatterns := []string{
		"Cookie Policy",
		"Accept Cookies",
		"Privacy Policy",
		"Terms of Service",
	}

	var lines []string
	for _, line := range strings.Split(content, "\n") {
		for _, pattern := range noisePatterns {
			line = strings.ReplaceAll(line, pattern, "")
		}
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
