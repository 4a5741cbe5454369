package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	parley "github.com/parley-ai/parley"
	pgsource "github.com/parley-ai/parley/contextsource/postgres"
	"github.com/parley-ai/parley/internal/config"
	"github.com/parley-ai/parley/journal"
	"github.com/parley-ai/parley/observer"
	"github.com/parley-ai/parley/provider/openaicompat"
	"github.com/parley-ai/parley/tools/document"
	"github.com/parley-ai/parley/tools/webfetch"
)

func main() {
	ctx := context.Background()

	// 1. Load config
	cfg := config.Load(os.Getenv("PARLEY_CONFIG"))

	logLevel := slog.LevelInfo
	if cfg.Agent.Debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	// 2. Create provider with retry middleware
	var llm parley.Provider = openaicompat.NewProvider(
		cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL,
		openaicompat.WithName(cfg.LLM.Name),
	)
	llm = parley.WithRetry(llm, parley.RetryLogger(logger))

	// 3. Observability (optional)
	var tracer parley.Tracer
	var sinks []parley.EventSink
	if cfg.Observer.Enabled {
		pricing := make(map[string]observer.ModelPricing, len(cfg.Observer.Pricing))
		for model, p := range cfg.Observer.Pricing {
			pricing[model] = observer.ModelPricing{InputPerMillion: p.Input, OutputPerMillion: p.Output}
		}
		inst, shutdown, err := observer.Init(ctx, pricing)
		if err != nil {
			log.Fatalf("observer init: %v", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
		llm = observer.WrapProvider(llm, cfg.LLM.Model, inst)
		tracer = observer.NewTracer()
		sinks = append(sinks, observer.NewLogSink(inst))
	}

	// 4. Event journal (optional)
	if cfg.Journal.Enabled {
		j := journal.Open(cfg.Journal.Path, journal.WithLogger(logger))
		defer j.Close()
		if err := j.Init(ctx); err != nil {
			log.Fatalf("journal init: %v", err)
		}
		sinks = append(sinks, j)
	}

	// 5. Tool context source (optional, Postgres-backed)
	var toolCtx parley.ToolContextProvider
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			log.Fatalf("postgres connect: %v", err)
		}
		defer pool.Close()
		src := pgsource.New(pool)
		if err := src.Init(ctx); err != nil {
			log.Fatalf("postgres init: %v", err)
		}
		if cfg.Postgres.SessionID != "" {
			toolCtx = src.ToolContext(cfg.Postgres.SessionID)
		}
	}

	// 6. Build the agent with bundled tools
	agent, err := parley.NewAgent(llm, parley.AgentConfig{
		Name:         cfg.Agent.Name,
		SystemPrompt: cfg.Agent.SystemPrompt,
		FirstMessage: cfg.Agent.FirstMessage,
		Tools: []parley.RuntimeTool{
			webfetch.Definition(),
			document.Definition(),
		},
		Runners: map[string]parley.ToolRunner{
			"web_fetch":     webfetch.New(),
			"read_document": document.New(),
		},
		ToolContextProvider: toolCtx,
		MaxDelegationDepth:  cfg.Agent.MaxDelegation,
		Observability:       parley.Observability{Sinks: sinks},
		Logger:              logger,
		Tracer:              tracer,
		Debug:               cfg.Agent.Debug,
	})
	if err != nil {
		log.Fatalf("agent: %v", err)
	}

	// 7. Print assistant output as it arrives
	agent.On(parley.EventStream, func(e parley.Event) {
		fmt.Print(e.Delta)
	})
	agent.On(parley.EventMessage, func(e parley.Event) {
		if e.Message.Sender == parley.SenderAssistant && e.Message.Content != "" {
			fmt.Println(e.Message.Content)
		}
	})

	// 8. REPL
	fmt.Printf("%s ready. Type a message, or /quit to exit.\n", agent.Name())
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "/quit" || line == "/exit" {
			break
		}
		if err := agent.Send(ctx, line); err != nil {
			logger.Error("turn failed", "error", err)
		}
	}
}
