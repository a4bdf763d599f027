package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/Ashnajames/Agentic-AI/internal/models"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

type ScraperConfig struct {
	Timeout    time.Duration
	Delay      time.Duration // base back-off between attempts, scaled linearly
	MaxRetries int
	RateLimit  float64 // requests per second
}

// Scraper fetches a target page with bounded retries and extracts raw
// structured content through heuristic parsing.
type Scraper struct {
	config  ScraperConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewWithConfig(config ScraperConfig, logger *slog.Logger) *Scraper {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Delay == 0 {
		config.Delay = time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Scraper{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		logger:  logger,
	}
}

// Scrape fetches the page and extracts its title, sections, ranked tool
// entries, and metadata. All extraction is best-effort; an empty result field
// means the heuristic found nothing, not that the page is malformed.
func (s *Scraper) Scrape(ctx context.Context, url string) (*models.ScrapedPage, error) {
	s.logger.Info("scraping content", "url", url)

	body, err := s.fetchWithRetry(ctx, url)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page %s: %w", url, err)
	}

	page := &models.ScrapedPage{
		URL:      url,
		Title:    extractTitle(doc),
		Metadata: extractMetadata(doc),
	}

	main := findMainContent(doc)
	if main == nil {
		return page, nil
	}

	page.Sections = extractSections(main)
	page.Tools = extractTools(main)

	s.logger.Info("scraped page", "sections", len(page.Sections), "tools", len(page.Tools))
	return page, nil
}

// fetchWithRetry fetches the URL with linear back-off (delay x attempt)
// between attempts. Each attempt is bounded by the configured timeout.
func (s *Scraper) fetchWithRetry(ctx context.Context, url string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= s.config.MaxRetries; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}

		body, err := s.fetch(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		s.logger.Warn("fetch attempt failed", "url", url, "attempt", attempt, "error", err)

		if attempt < s.config.MaxRetries {
			select {
			case <-time.After(s.config.Delay * time.Duration(attempt)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}

	return "", fmt.Errorf("all %d attempts failed for %s: %w", s.config.MaxRetries, url, lastErr)
}

func (s *Scraper) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func extractTitle(doc *goquery.Document) string {
	selectors := []string{"title", "h1", ".title", ".post-title"}

	for _, selector := range selectors {
		if selected := doc.Find(selector).First(); selected.Length() > 0 {
			if title := strings.TrimSpace(selected.Text()); title != "" {
				return title
			}
		}
	}

	return "ITSM Tools Guide"
}

func findMainContent(doc *goquery.Document) *goquery.Selection {
	selectors := []string{
		"article", ".content", ".post-content", ".entry-content",
		".blog-content", "main", ".main-content", "[role=main]",
	}

	for _, selector := range selectors {
		if selected := doc.Find(selector).First(); selected.Length() > 0 {
			return selected
		}
	}

	if body := doc.Find("body").First(); body.Length() > 0 {
		return body
	}
	return nil
}

// extractSections walks headings and text blocks in document order. Each
// heading starts a new section; text blocks longer than 10 characters
// accumulate into the current one.
func extractSections(content *goquery.Selection) []models.Section {
	var sections []models.Section
	var current *models.Section

	flush := func() {
		if current != nil && strings.TrimSpace(current.Content) != "" {
			sections = append(sections, *current)
		}
	}

	content.Find("h1, h2, h3, h4, h5, h6, p, ul, ol, div").Each(func(_ int, sel *goquery.Selection) {
		name := goquery.NodeName(sel)
		if len(name) == 2 && name[0] == 'h' {
			flush()
			level, _ := strconv.Atoi(name[1:])
			current = &models.Section{
				Title: strings.TrimSpace(sel.Text()),
				Level: level,
				Type:  "section",
			}
			return
		}

		if current == nil {
			return
		}
		text := strings.TrimSpace(sel.Text())
		if len(text) > 10 {
			current.Content += text + "\n\n"
		}
	})

	flush()
	return sections
}

// toolEntryRe matches ranked entries of the form "3. ServiceNow - description".
// The name class deliberately excludes newlines and hyphens so the name stops
// at the separator instead of swallowing the description.
var toolEntryRe = regexp.MustCompile(`(\d+)\.[ \t]*([A-Za-z][A-Za-z &]+)(?:[ \t]*[-\x{2013}][ \t]*([^\n\r]+))?`)

func extractTools(content *goquery.Selection) []models.ToolEntry {
	var tools []models.ToolEntry
	text := content.Text()

	for _, match := range toolEntryRe.FindAllStringSubmatch(text, -1) {
		rank, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		name := strings.TrimSpace(match[2])
		description := strings.TrimSpace(match[3])

		// Page numbers and footnotes also look like "N. word"; keep only
		// plausible ranked entries.
		if len(name) < 3 || rank > 20 {
			continue
		}

		tools = append(tools, models.ToolEntry{
			Rank:        rank,
			Name:        name,
			Description: description,
			Details:     extractToolDetails(text, name),
		})
	}

	return tools
}

var pricingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`pricing[:\s]*([^\n]{1,100})`),
	regexp.MustCompile(`price[:\s]*([^\n]{1,100})`),
	regexp.MustCompile(`cost[:\s]*([^\n]{1,100})`),
	regexp.MustCompile(`\$\d+[^\n]{0,50}`),
}

var ratingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+\.?\d*)/5`),
	regexp.MustCompile(`(\d+\.?\d*)\s*stars?`),
	regexp.MustCompile(`rating[:\s]*(\d+\.?\d*)`),
}

// extractToolDetails scans a window of text around the tool's first mention
// for pricing and rating hints. Everything here is best-effort; empty fields
// mean no match.
func extractToolDetails(pageText, toolName string) models.ToolDetails {
	var details models.ToolDetails

	text := strings.ToLower(pageText)
	toolStart := strings.Index(text, strings.ToLower(toolName))
	if toolStart == -1 {
		return details
	}

	contextStart := toolStart - 500
	if contextStart < 0 {
		contextStart = 0
	}
	contextEnd := toolStart + 2000
	if contextEnd > len(text) {
		contextEnd = len(text)
	}
	toolContext := text[contextStart:contextEnd]

	for _, pattern := range pricingPatterns {
		if match := pattern.FindString(toolContext); match != "" {
			details.Pricing = strings.TrimSpace(match)
			break
		}
	}

	for _, pattern := range ratingPatterns {
		if match := pattern.FindStringSubmatch(toolContext); match != nil {
			details.Rating = match[1]
			break
		}
	}

	return details
}

func extractMetadata(doc *goquery.Document) map[string]string {
	metadata := make(map[string]string)

	doc.Find("meta").Each(func(_ int, sel *goquery.Selection) {
		name, ok := sel.Attr("name")
		if !ok {
			name, _ = sel.Attr("property")
		}
		content, _ := sel.Attr("content")
		if name != "" && content != "" {
			metadata[name] = content
		}
	})

	dateSelectors := []string{
		"time[datetime]", ".published", ".date", ".post-date",
		"[datetime]", ".timestamp",
	}

	for _, selector := range dateSelectors {
		element := doc.Find(selector).First()
		if element.Length() == 0 {
			continue
		}
		date, ok := element.Attr("datetime")
		if !ok {
			date, _ = element.Attr("content")
		}
		if date == "" {
			date = strings.TrimSpace(element.Text())
		}
		if date != "" {
			metadata["publish_date"] = date
			break
		}
	}

	return metadata
}
