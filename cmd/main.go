package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	cfgPkg "github.com/Ashnajames/Agentic-AI/pkg/config"
	"github.com/Ashnajames/Agentic-AI/pkg/llm"
	"github.com/Ashnajames/Agentic-AI/pkg/processor"
	"github.com/Ashnajames/Agentic-AI/pkg/rag"
	"github.com/Ashnajames/Agentic-AI/pkg/scraper"
	"github.com/Ashnajames/Agentic-AI/pkg/store"
	"github.com/Ashnajames/Agentic-AI/server"
)

func main() {
	var (
		configPath   string
		dbURL        string
		ollamaURL    string
		targetURL    string
		port         int
		refreshMode  bool
		forceRefresh bool
		chatMode     bool
	)

	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&dbURL, "db-url", "", "PostgreSQL connection string")
	flag.StringVar(&ollamaURL, "ollama-url", "", "Ollama server URL")
	flag.StringVar(&targetURL, "target-url", "", "Page to scrape into the knowledge base")
	flag.IntVar(&port, "port", 0, "HTTP listen port")
	flag.BoolVar(&refreshMode, "refresh", false, "Refresh the knowledge base and exit")
	flag.BoolVar(&forceRefresh, "force", false, "Wipe the store before refreshing (with -refresh)")
	flag.BoolVar(&chatMode, "chat", false, "Interactive chat instead of serving HTTP")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	config, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Command line flags override the config file
	if dbURL != "" {
		config.Database.URL = dbURL
	}
	if ollamaURL != "" {
		config.LLM.BaseURL = ollamaURL
	}
	if targetURL != "" {
		config.Scraper.TargetURL = targetURL
	}
	if port != 0 {
		config.Server.Port = port
	}

	if errs := config.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("invalid config: %v", e)
		}
		os.Exit(1)
	}

	svc, vectorStore, err := buildService(config, logger)
	if err != nil {
		logger.Error("failed to initialize components", "error", err)
		os.Exit(1)
	}
	defer vectorStore.Close()

	ctx := context.Background()

	switch {
	case refreshMode:
		runRefresh(ctx, svc, vectorStore, forceRefresh)
	case chatMode:
		runChat(ctx, svc, logger)
	default:
		runServe(ctx, svc, config, logger)
	}
}

func buildService(config *cfgPkg.Config, logger *slog.Logger) (*rag.Service, *store.VectorStore, error) {
	vectorStore, err := store.NewWithConfig(store.VectorStoreConfig{
		ConnString: config.Database.URL,
		TableName:  config.Database.TableName,
		VectorDim:  config.Database.VectorDim,
		BatchSize:  config.Database.BatchSize,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("vector store: %w", err)
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:     config.Embedding.Model,
		BaseURL:   config.LLM.BaseURL,
		Dimension: config.Embedding.Dimension,
	}, logger)
	if err != nil {
		vectorStore.Close()
		return nil, nil, fmt.Errorf("embedder: %w", err)
	}

	chatEngine, err := llm.NewWithConfig(llm.ChatConfig{
		Model:       config.LLM.Model,
		BaseURL:     config.LLM.BaseURL,
		MaxTokens:   config.LLM.MaxTokens,
		Temperature: config.LLM.Temperature,
	}, logger)
	if err != nil {
		vectorStore.Close()
		return nil, nil, fmt.Errorf("chat engine: %w", err)
	}

	pageScraper := scraper.NewWithConfig(scraper.ScraperConfig{
		Timeout:    time.Duration(config.Scraper.TimeoutSeconds) * time.Second,
		Delay:      time.Duration(config.Scraper.DelaySeconds * float64(time.Second)),
		MaxRetries: config.Scraper.MaxRetries,
		RateLimit:  config.Scraper.RateLimit,
	}, logger)

	proc := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    config.Processor.ChunkSize,
		ChunkOverlap: config.Processor.ChunkOverlap,
	}, logger)

	svc := rag.New(rag.ServiceConfig{
		TargetURL:  config.Scraper.TargetURL,
		MaxResults: config.Processor.MaxResults,
	}, pageScraper, proc, embedder, chatEngine, vectorStore, logger)

	return svc, vectorStore, nil
}

func runRefresh(ctx context.Context, svc *rag.Service, vectorStore *store.VectorStore, force bool) {
	if err := vectorStore.EnsureSchema(ctx); err != nil {
		color.Red("Failed to prepare store: %v", err)
		os.Exit(1)
	}

	spinner := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString("Refreshing knowledge base...")),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)

	result := svc.Refresh(ctx, force)
	spinner.Finish()
	fmt.Println()

	if result.Status != rag.StatusSuccess {
		color.Red("✗ %s", result.Message)
		os.Exit(1)
	}
	color.Green("✓ Indexed %d documents in %.2fs", result.DocumentsProcessed, result.ProcessingTime)
}

func runChat(ctx context.Context, svc *rag.Service, logger *slog.Logger) {
	if err := svc.Initialize(ctx); err != nil {
		logger.Error("failed to initialize RAG service", "error", err)
		os.Exit(1)
	}

	color.Cyan("\nChat with the ITSM knowledge base (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if strings.EqualFold(question, "exit") {
			break
		}

		result := svc.Query(ctx, question, nil, 0)

		assistantPrompt("\nAssistant: %s\n", result.Response)
		if len(result.Sources) > 0 {
			color.Yellow("(confidence %.2f, %d sources, %.2fs)", result.Confidence, len(result.Sources), result.ProcessingTime)
		}
	}
}

func runServe(ctx context.Context, svc *rag.Service, config *cfgPkg.Config, logger *slog.Logger) {
	if err := svc.Initialize(ctx); err != nil {
		logger.Error("failed to initialize RAG service", "error", err)
		os.Exit(1)
	}

	if config.Refresh.Auto {
		svc.StartAutoRefresh(ctx, time.Duration(config.Refresh.IntervalHours)*time.Hour)
	}

	srv := server.New(server.Config{
		Host: config.Server.Host,
		Port: config.Server.Port,
	}, svc, logger)

	if err := srv.Start(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
