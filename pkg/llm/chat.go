package llm

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/Ashnajames/Agentic-AI/internal/models"
)

// Generation policy. These are not tunable per request.
const (
	maxContextDocuments = 5
	maxHistoryTurns     = 3
	maxResponseLength   = 10000
	repetitionPenalty   = 1.1
)

const systemPromptTemplate = `You are a helpful and knowledgeable assistant. Use only the information provided in the documents below to answer the user's question. Create a concise and complete answer based on the provided information. You are only allowed to answer questions that are within the domain of the documents provided.
If the question is outside this domain, or the answer is not present in the documents, respond with: "I don't know".

[DOCUMENTS]
%s

[QUESTION]
%s

[ANSWER]`

const apologyResponse = "I apologize, but I couldn't generate a proper response. Please try rephrasing your question."

type ChatConfig struct {
	Model       string
	BaseURL     string // Ollama server URL
	MaxTokens   int
	Temperature float64
}

// ChatEngine builds grounded prompts from retrieved context, invokes the
// generation model, and cleans the answer text. Generation failures are
// absorbed into a templated fallback answer so they never fail the request.
type ChatEngine struct {
	config ChatConfig
	model  llms.Model
	logger *slog.Logger
}

func NewWithConfig(config ChatConfig, logger *slog.Logger) (*ChatEngine, error) {
	if config.Model == "" {
		config.Model = "mistral"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 2000
	}
	if config.Temperature <= 0 || config.Temperature > 1 {
		config.Temperature = 0.7
	}
	if logger == nil {
		logger = slog.Default()
	}

	model, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generation model: %w", err)
	}

	return &ChatEngine{
		config: config,
		model:  model,
		logger: logger,
	}, nil
}

// NewWithModel builds a chat engine around an existing model. A nil model is
// allowed and forces fallback answers for every request.
func NewWithModel(model llms.Model, config ChatConfig, logger *slog.Logger) *ChatEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatEngine{
		config: config,
		model:  model,
		logger: logger,
	}
}

// Generate answers the question from the retrieved documents. On any model
// failure it degrades to a metadata-templated answer instead of returning an
// error.
func (ce *ChatEngine) Generate(ctx context.Context, question string, docs []models.SearchResult, history []models.ChatMessage) (string, error) {
	if ce.model == nil {
		return ce.fallbackResponse(docs), nil
	}

	prompt := ce.buildPrompt(question, ce.prepareContext(docs), history)

	resp, err := ce.model.GenerateContent(ctx,
		[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)},
		llms.WithTemperature(ce.config.Temperature),
		llms.WithMaxTokens(ce.config.MaxTokens),
		llms.WithRepetitionPenalty(repetitionPenalty),
		llms.WithCandidateCount(1),
	)
	if err != nil {
		ce.logger.Error("generation failed, using fallback", "error", err)
		return ce.fallbackResponse(docs), nil
	}
	if resp == nil || len(resp.Choices) == 0 {
		ce.logger.Warn("generation returned no choices, using fallback")
		return ce.fallbackResponse(docs), nil
	}

	return extractResponse(resp.Choices[0].Content, prompt), nil
}

func (ce *ChatEngine) Ready() bool {
	return ce.model != nil
}

// prepareContext renders at most the first five documents, which the store
// has already ranked by certainty.
func (ce *ChatEngine) prepareContext(docs []models.SearchResult) string {
	var parts []string

	for i, doc := range docs {
		if i >= maxContextDocuments {
			break
		}
		parts = append(parts, fmt.Sprintf("Source %d (%s - %s): %s", i+1, doc.ToolName, doc.Category, doc.Content))
	}

	return strings.Join(parts, "\n\n")
}

func (ce *ChatEngine) buildPrompt(question, context string, history []models.ChatMessage) string {
	prompt := fmt.Sprintf(systemPromptTemplate, context, question)

	if len(history) == 0 {
		return prompt
	}

	turns := history
	if len(turns) > maxHistoryTurns {
		turns = turns[len(turns)-maxHistoryTurns:]
	}

	var historyText strings.Builder
	for _, msg := range turns {
		historyText.WriteString(fmt.Sprintf("%s: %s\n", titleCase(msg.Role), msg.Content))
	}

	return fmt.Sprintf("Previous conversation:\n%s\n\n%s", historyText.String(), prompt)
}

var sentenceEndRe = regexp.MustCompile(`[.!?]["']?$`)

// extractResponse cleans raw model output: strips the echoed prompt, drops
// template-echo lines, bounds the length on sentence boundaries, and removes
// a trailing incomplete sentence.
func extractResponse(generated, prompt string) string {
	response := strings.TrimSpace(strings.ReplaceAll(generated, prompt, ""))

	var cleaned []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "Question:") || strings.HasPrefix(line, "Answer:") || strings.HasPrefix(line, "Context:") {
			continue
		}
		cleaned = append(cleaned, line)
	}
	response = strings.Join(cleaned, "\n")

	if len(response) > maxResponseLength {
		var truncated strings.Builder
		for _, sentence := range strings.Split(response, ". ") {
			if truncated.Len()+len(sentence) >= maxResponseLength {
				break
			}
			truncated.WriteString(sentence)
			truncated.WriteString(". ")
		}
		response = strings.TrimSpace(truncated.String())
	}

	response = removeIncompleteSentence(response)

	if response == "" {
		return apologyResponse
	}
	return response
}

// removeIncompleteSentence drops a trailing fragment that lacks terminal
// punctuation, a guard against output cut off mid-sentence.
func removeIncompleteSentence(text string) string {
	sentences := splitSentences(strings.TrimSpace(text))
	if len(sentences) == 0 {
		return ""
	}
	if !sentenceEndRe.MatchString(sentences[len(sentences)-1]) {
		sentences = sentences[:len(sentences)-1]
	}
	return strings.Join(sentences, " ")
}

func splitSentences(text string) []string {
	var sentences []string
	start := 0

	for i := 0; i < len(text)-1; i++ {
		if (text[i] == '.' || text[i] == '!' || text[i] == '?') && text[i+1] == ' ' {
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

// fallbackResponse synthesizes an answer from document metadata alone, used
// when generation fails or no model is loaded.
func (ce *ChatEngine) fallbackResponse(docs []models.SearchResult) string {
	if len(docs) == 0 {
		return "I don't have enough information to answer your question. Please try asking about specific ITSM tools or features."
	}

	var tools []string
	seen := make(map[string]bool)
	for i, doc := range docs {
		if i >= maxContextDocuments {
			break
		}
		if doc.ToolName == "" || doc.ToolName == "all" || seen[doc.ToolName] {
			continue
		}
		seen[doc.ToolName] = true
		tools = append(tools, doc.ToolName)
	}

	parts := []string{"Based on the available information:"}

	if len(tools) > 0 {
		parts = append(parts, fmt.Sprintf("Relevant ITSM tools: %s", strings.Join(tools, ", ")))
	}

	if content := docs[0].Content; content != "" {
		if len(content) > 1024 {
			content = content[:1024] + "..."
		}
		parts = append(parts, fmt.Sprintf("Key information: %s", content))
	}

	return strings.Join(parts, "\n\n")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
