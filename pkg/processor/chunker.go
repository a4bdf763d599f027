package processor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// sentenceEnders are the boundaries the chunker prefers to cut on.
var sentenceEnders = []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}

// htmlMarkers is the presence heuristic for markup content. Not a parse.
var htmlMarkers = []string{"<html", "<div", "<p", "<section", "<article"}

// IsHTML reports whether the text looks like markup rather than plain prose.
func IsHTML(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range htmlMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// SplitText splits text into overlapping chunks of at most ChunkSize
// characters. Before cutting, it searches backward from the window midpoint
// for the last sentence boundary so chunks avoid mid-sentence breaks. A tail
// shorter than 10 characters is discarded instead of becoming a near-empty
// chunk.
func (p *Processor) SplitText(text string) []string {
	chunkSize := p.config.ChunkSize
	overlap := p.config.ChunkOverlap

	if len(text) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0

	for start < len(text) {
		end := start + chunkSize
		if end < len(text) {
			mid := start + chunkSize/2
			bestBreak := -1
			for _, ender := range sentenceEnders {
				if idx := strings.LastIndex(text[mid:end], ender); idx >= 0 {
					if cut := mid + idx + len(ender); cut > bestBreak {
						bestBreak = cut
					}
				}
			}
			if bestBreak > mid {
				end = bestBreak
			}
		} else {
			end = len(text)
		}

		if chunk := strings.TrimSpace(text[start:end]); chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := start + chunkSize - overlap
		if end-overlap > next {
			next = end - overlap
		}
		start = next

		if start >= len(text)-10 {
			break
		}
	}

	return chunks
}

// htmlChunkBudget is the character budget per chunk in the HTML branch.
// Sentence-boundary snapping is not applied there.
const htmlChunkBudget = 1400

// ChunkHTML extracts narrative text blocks from markup and groups them into
// fixed-budget chunks. Returns nil when the markup yields no narrative text.
func (p *Processor) ChunkHTML(htmlContent string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		p.logger.Warn("failed to parse html content", "error", err)
		return nil
	}

	var blocks []string
	doc.Find("p, li, blockquote").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		// Skip non-narrative fragments
		if len(text) > 10 {
			blocks = append(blocks, text)
		}
	})

	var chunks []string
	var current strings.Builder

	for _, block := range blocks {
		if current.Len() > 0 && current.Len()+1+len(block) > htmlChunkBudget {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(block)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}
