package processor

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/Ashnajames/Agentic-AI/internal/models"
)

type ProcessorConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

// Processor turns a scraped page into retrievable documents: chunked section
// documents, per-tool overview and aspect documents, and one synthesized
// page overview.
type Processor struct {
	config ProcessorConfig
	logger *slog.Logger
}

func NewWithConfig(config ProcessorConfig, logger *slog.Logger) *Processor {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 200
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Processor{
		config: config,
		logger: logger,
	}
}

// Structure emits documents in insertion order: sections first, then tools
// (overview followed by aspect documents per tool), then the synthesized
// overview last. The order is preserved for reproducible ingestion snapshots.
func (p *Processor) Structure(page *models.ScrapedPage) []models.Document {
	var documents []models.Document
	timestamp := time.Now().UTC().Truncate(time.Second)

	for _, section := range page.Sections {
		documents = append(documents, p.processSection(section, page.URL, timestamp)...)
	}

	for _, tool := range page.Tools {
		documents = append(documents, p.processTool(tool, page.URL, timestamp)...)
	}

	documents = append(documents, p.buildOverviewDocument(page, timestamp))

	p.logger.Info("structured scraped content", "documents", len(documents))
	return documents
}

func (p *Processor) processSection(section models.Section, sourceURL string, timestamp time.Time) []models.Document {
	var documents []models.Document

	if strings.TrimSpace(section.Content) == "" {
		return documents
	}

	fullContent := section.Content
	if section.Title != "" {
		fullContent = fmt.Sprintf("Section: %s\n\n%s", section.Title, section.Content)
	}

	var chunks []string
	if IsHTML(section.Content) {
		chunks = p.ChunkHTML(section.Content)
	} else {
		chunks = p.SplitText(fullContent)
	}

	toolName := ExtractToolName(section.Title)

	for i, chunk := range chunks {
		documents = append(documents, models.Document{
			Content:    chunk,
			Source:     sourceURL,
			Category:   "section",
			Section:    section.Title,
			ChunkIndex: i,
			ToolName:   toolName,
			Timestamp:  timestamp,
		})
	}

	return documents
}

func (p *Processor) processTool(tool models.ToolEntry, sourceURL string, timestamp time.Time) []models.Document {
	var documents []models.Document

	if tool.Name == "" {
		return documents
	}

	documents = append(documents, models.Document{
		Content:   p.buildToolOverview(tool),
		Source:    sourceURL,
		Category:  "tool_overview",
		ToolName:  tool.Name,
		ToolRank:  tool.Rank,
		Timestamp: timestamp,
	})

	// Aspect order is fixed so repeated ingestions produce identical snapshots.
	aspects := []struct {
		name  string
		value string
	}{
		{"pricing", tool.Details.Pricing},
		{"features", strings.Join(tool.Details.Features, ", ")},
		{"pros", strings.Join(tool.Details.Pros, ", ")},
		{"cons", strings.Join(tool.Details.Cons, ", ")},
		{"rating", tool.Details.Rating},
		{"best_for", tool.Details.BestFor},
	}

	for _, aspect := range aspects {
		if strings.TrimSpace(aspect.value) == "" {
			continue
		}
		documents = append(documents, models.Document{
			Content:   fmt.Sprintf("%s - %s: %s", tool.Name, aspectTitle(aspect.name), aspect.value),
			Source:    sourceURL,
			Category:  "tool_" + aspect.name,
			ToolName:  tool.Name,
			ToolRank:  tool.Rank,
			Timestamp: timestamp,
		})
	}

	return documents
}

func (p *Processor) buildToolOverview(tool models.ToolEntry) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("ITSM Tool: %s", tool.Name))
	if tool.Rank > 0 {
		parts = append(parts, fmt.Sprintf("Ranking: #%d", tool.Rank))
	}
	if tool.Description != "" {
		parts = append(parts, fmt.Sprintf("Description: %s", tool.Description))
	}
	if len(tool.Details.Features) > 0 {
		parts = append(parts, fmt.Sprintf("Key Features: %s", strings.Join(tool.Details.Features, ", ")))
	}
	if tool.Details.Pricing != "" {
		parts = append(parts, fmt.Sprintf("Pricing: %s", tool.Details.Pricing))
	}
	if tool.Details.Rating != "" {
		parts = append(parts, fmt.Sprintf("Rating: %s", tool.Details.Rating))
	}
	if tool.Details.BestFor != "" {
		parts = append(parts, fmt.Sprintf("Best For: %s", tool.Details.BestFor))
	}
	if len(tool.Details.Pros) > 0 {
		parts = append(parts, fmt.Sprintf("Pros: %s", strings.Join(tool.Details.Pros, ", ")))
	}
	if len(tool.Details.Cons) > 0 {
		parts = append(parts, fmt.Sprintf("Cons: %s", strings.Join(tool.Details.Cons, ", ")))
	}

	return strings.Join(parts, "\n\n")
}

func (p *Processor) buildOverviewDocument(page *models.ScrapedPage, timestamp time.Time) models.Document {
	title := page.Title
	if title == "" {
		title = "ITSM Tools Guide"
	}

	var content strings.Builder
	content.WriteString(title)
	content.WriteString("\n\nSource: ")
	content.WriteString(page.URL)
	content.WriteString("\n\nThis comprehensive guide covers the top ITSM (IT Service Management) tools, providing detailed analysis of features, pricing, deployment options, and use cases.\n\nTools Covered:")

	for _, tool := range page.Tools {
		if tool.Name == "" {
			continue
		}
		content.WriteString(fmt.Sprintf("\n%d. %s", tool.Rank, tool.Name))
		if tool.Description != "" {
			content.WriteString(" - " + tool.Description)
		}
	}

	content.WriteString("\n\nKey Topics Covered:")
	for _, section := range page.Sections {
		if section.Title == "" || len(section.Title) >= 100 {
			continue
		}
		if isNumberedListItem(section.Title) {
			continue
		}
		content.WriteString("\n- " + section.Title)
	}

	return models.Document{
		Content:   strings.TrimSpace(content.String()),
		Source:    page.URL,
		Category:  "overview",
		ToolName:  "all",
		Timestamp: timestamp,
	}
}

var numberedTitleRe = regexp.MustCompile(`^\d+\.`)

func isNumberedListItem(title string) bool {
	return numberedTitleRe.MatchString(strings.TrimSpace(title))
}

// rankedToolTitleRe matches titles of the form "3. ServiceNow".
var rankedToolTitleRe = regexp.MustCompile(`^\d+\.\s*([A-Za-z][A-Za-z\s&-]+)`)

// knownTools is the static heuristic fallback for tagging sections with a
// tool name. Kept as a fixed set; matches are case-insensitive substrings.
var knownTools = []string{
	"Xurrent", "4me", "ServiceNow", "Jira Service Management", "Jira",
	"BMC Helix", "BMC", "Freshservice", "SolarWinds", "ManageEngine",
	"Ivanti", "Zendesk", "SysAid", "Remedy",
}

// ExtractToolName derives a tool name from a section title. It first tries
// the "N. Name" pattern, then the known-tools list. Returns the empty string
// when nothing matches; callers must treat that as "no tool".
func ExtractToolName(title string) string {
	if match := rankedToolTitleRe.FindStringSubmatch(title); match != nil {
		return strings.TrimSpace(match[1])
	}

	titleLower := strings.ToLower(title)
	for _, tool := range knownTools {
		if strings.Contains(titleLower, strings.ToLower(tool)) {
			return tool
		}
	}

	return ""
}

// aspectTitle renders an aspect key for display: "best_for" -> "Best For".
func aspectTitle(aspect string) string {
	words := strings.Split(aspect, "_")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
