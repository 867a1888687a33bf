package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// ErrBlockedDomain marks pages on domains known to block automated
// extraction; the monitor skips fetching these entirely.
type blockedDomainError struct{ domain string }

func (e *blockedDomainError) Error() string {
	return fmt.Sprintf("content extraction not available for %s", e.domain)
}

func IsBlockedDomain(err error) bool {
	_, ok := err.(*blockedDomainError)
	return ok
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Extractor fetches the body text of a linked article page, best effort.
type Extractor struct {
	blockedDomains []string
	maxLen         int
	client         *http.Client
	logger         *slog.Logger
}

func NewExtractor(blockedDomains []string, maxLen int, logger *slog.Logger) *Extractor {
	if maxLen <= 0 {
		maxLen = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		blockedDomains: blockedDomains,
		maxLen:         maxLen,
		client:         &http.Client{Timeout: 10 * time.Second},
		logger:         logger,
	}
}

// FromURL extracts the readable body of the page at u, bounded to maxLen
// characters. Domains on the blocked list fail fast with a typed error.
func (e *Extractor) FromURL(ctx context.Context, u string) (string, error) {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("invalid article URL %q", u)
	}

	for _, blocked := range e.blockedDomains {
		if strings.Contains(parsed.Host, blocked) {
			return "", &blockedDomainError{domain: parsed.Host}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:146.0) Gecko/20100101 Firefox/146.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch page: %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse page: %w", err)
	}

	text := e.readableText(doc, parsed)
	if text == "" {
		return "", fmt.Errorf("no extractable content at %s", u)
	}
	return e.bound(text), nil
}

// readableText prefers readability extraction and falls back to a plain
// paragraph walk when readability finds nothing usable.
func (e *Extractor) readableText(doc *goquery.Document, pageURL *url.URL) string {
	if html, err := doc.Html(); err == nil {
		article, err := readability.FromReader(strings.NewReader(html), pageURL)
		if err == nil {
			if text := collapseWhitespace(article.TextContent); text != "" {
				return text
			}
		} else {
			e.logger.Debug("readability extraction failed, falling back to paragraphs",
				"url", pageURL.String(), "error", err)
		}
	}

	doc.Find("script, style, nav, header, footer, aside").Remove()
	var parts []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return collapseWhitespace(strings.Join(parts, " "))
}

// bound caps text at maxLen bytes, backing up to a rune boundary so the cut
// never produces invalid UTF-8.
func (e *Extractor) bound(text string) string {
	if len(text) <= e.maxLen {
		return text
	}
	cut := e.maxLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
