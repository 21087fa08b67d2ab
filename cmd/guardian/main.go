package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/kolipakulaharsha/guardian/internal/auditor"
	"github.com/kolipakulaharsha/guardian/internal/cache"
	"github.com/kolipakulaharsha/guardian/internal/core"
	"github.com/kolipakulaharsha/guardian/internal/events"
	"github.com/kolipakulaharsha/guardian/internal/legal"
	"github.com/kolipakulaharsha/guardian/internal/llm"
	"github.com/kolipakulaharsha/guardian/internal/orchestrator"
	"github.com/kolipakulaharsha/guardian/internal/qa"
	"github.com/kolipakulaharsha/guardian/internal/repofetch"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var (
		interactive bool
		outputPath  string
		jsonStdout  bool
		modelFlag   string
		quiet       bool
		apiKeyFlag  string
		baseURLFlag string
		envFile     string
	)

	flag.BoolVar(&interactive, "interactive", false, "Start an interactive REPL instead of running a single query")
	flag.StringVar(&outputPath, "output", "", "Path to write the Report JSON (optional)")
	flag.BoolVar(&jsonStdout, "json", false, "Write Report JSON to stdout")
	flag.StringVar(&modelFlag, "model", "", "Override the chat/embedding model")
	flag.BoolVar(&quiet, "quiet", false, "Suppress per-stage log lines")
	flag.StringVar(&apiKeyFlag, "api-key", "", "LLM API key (overrides GOOGLE_API_KEY)")
	flag.StringVar(&baseURLFlag, "llm.base", "", "OpenAI-compatible base URL override")
	flag.StringVar(&envFile, "env-file", ".env", "Optional dotenv file to load before reading environment")
	flag.Parse()

	_ = orchestrator.LoadEnvFiles(envFile)

	cfg := orchestrator.Config{}
	if modelFlag != "" {
		cfg.Model = modelFlag
	}
	if apiKeyFlag != "" {
		cfg.APIKey = apiKeyFlag
	}
	if baseURLFlag != "" {
		cfg.BaseURL = baseURLFlag
	}
	orchestrator.ApplyEnvToConfig(&cfg)
	cfg = defaultsWithOverrides(cfg)

	if quiet {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	} else if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if err := orchestrator.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("configuration invalid")
		os.Exit(1)
	}

	orch := buildOrchestrator(cfg)

	query := strings.Join(flag.Args(), " ")

	if interactive {
		runREPL(orch)
		return
	}

	if strings.TrimSpace(query) == "" {
		log.Error().Msg("no query provided; pass a query or use -interactive")
		os.Exit(1)
	}

	report, err := orch.Run(context.Background(), query)
	if err != nil {
		// Only hard initialization failures are fatal; a run failure this
		// late means planning itself errored with no fallback available,
		// which the orchestrator treats as its own ConfigurationError-class
		// condition (§7 propagation policy).
		log.Error().Err(err).Msg("run failed")
		os.Exit(1)
	}

	emitReport(report, outputPath, jsonStdout, quiet)
}

// defaultsWithOverrides layers the defaults in behind whatever flags/env
// already populated, mirroring ApplyFileConfig's "only overlay zero/default
// fields" contract but starting from an empty Config instead of a file.
func defaultsWithOverrides(cfg orchestrator.Config) orchestrator.Config {
	out := cfg
	if out.Model == "" {
		out.Model = "gpt-4o-mini"
	}
	if out.Workers == 0 {
		out.Workers = 3
	}
	out.BaseBackoff = time.Second
	out.MaxAttempts = 3
	out.ChunkSize = 30
	out.Overlap = 2
	out.IndexChunkChars = 1000
	out.IndexOverlapChars = 200
	if out.MaxCandidates == 0 {
		out.MaxCandidates = 50
	}
	out.CloneTimeout = 10 * time.Minute
	if out.CacheDir == "" {
		out.CacheDir = ".guardian-cache"
	}
	return out
}

func buildOrchestrator(cfg orchestrator.Config) *orchestrator.Orchestrator {
	client := llm.New(cfg.APIKey, cfg.BaseURL, openai.AdaEmbeddingV2)
	llmCache := &cache.LLMCache{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms}
	if cfg.CacheClear {
		_ = os.RemoveAll(cfg.CacheDir)
	}
	sessionLog := &events.Log{}
	fetcher := &repofetch.RepoFetcher{CloneTimeout: cfg.CloneTimeout}

	legalAnalyst := &legal.Analyst{
		Client: client,
		Cache:  llmCache,
		Model:  cfg.Model,
		Loader: legal.Loader{},
	}

	auditorTool := &auditor.Auditor{
		Client:            client,
		Cache:             llmCache,
		Model:             cfg.Model,
		Fetcher:           fetcher,
		Workers:           cfg.Workers,
		BaseBackoff:       cfg.BaseBackoff,
		MaxAttempts:       cfg.MaxAttempts,
		ChunkSize:         cfg.ChunkSize,
		Overlap:           cfg.Overlap,
		IndexChunkChars:   cfg.IndexChunkChars,
		IndexOverlapChars: cfg.IndexOverlapChars,
		MaxCandidates:     cfg.MaxCandidates,
		Log:               sessionLog,
	}

	qaManager := &qa.Manager{
		Client:            client,
		Fetcher:           fetcher,
		Model:             cfg.Model,
		IndexChunkChars:   cfg.IndexChunkChars,
		IndexOverlapChars: cfg.IndexOverlapChars,
		Log:               sessionLog,
	}

	return &orchestrator.Orchestrator{
		Planner: &orchestrator.LLMPlanner{Client: client, Model: cfg.Model, Cache: llmCache, Verbose: cfg.Verbose},
		Legal:   legalAnalyst,
		Auditor: auditorTool,
		QA:      qaManager,
		Client:  client,
		Cache:   llmCache,
		Model:   cfg.Model,
		Log:     sessionLog,
	}
}

func emitReport(report core.Report, outputPath string, jsonStdout bool, quiet bool) {
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("marshal report")
		return
	}
	if outputPath != "" {
		if err := os.WriteFile(outputPath, b, 0o644); err != nil {
			log.Error().Err(err).Str("path", outputPath).Msg("write report")
		}
	}
	if jsonStdout {
		fmt.Println(string(b))
		return
	}
	if !quiet {
		fmt.Println(report.FinalAnswer)
	}
}

// runREPL implements the interactive shell of §6: set_qa/end_qa/session/
// history/clear/help/exit alongside free-text queries routed through Run.
func runREPL(orch *orchestrator.Orchestrator) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("guardian interactive shell. Type 'help' for commands.")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := fields[0]

		switch cmd {
		case "exit", "quit":
			return
		case "help":
			printHelp()
		case "set_qa":
			if len(fields) < 2 {
				fmt.Println("usage: set_qa <url>")
				continue
			}
			info, err := orch.SetQARepo(context.Background(), fields[1])
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Printf("qa session ready: %s (%d chunks)\n", info.RepoURL, info.ChunkCount)
		case "end_qa":
			if err := orch.EndQA(); err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Println("qa session ended")
		case "session":
			info, ok := orch.SessionInfo()
			if !ok {
				fmt.Println("no live qa session")
				continue
			}
			fmt.Printf("%+v\n", info)
		case "history":
			for _, ev := range orch.SessionHistory() {
				fmt.Printf("[%s] %s: %s\n", ev.Timestamp.Format(time.RFC3339), ev.Stage, ev.Message)
			}
		case "clear":
			orch.ClearHistory()
			fmt.Println("history cleared")
		default:
			report, err := orch.Run(context.Background(), line)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Println(report.FinalAnswer)
		}
	}
}

func printHelp() {
	fmt.Println(strings.Join([]string{
		"set_qa <url>  start or switch the live QA session",
		"end_qa        end the live QA session",
		"session       show the live QA session info",
		"history       show the session event log",
		"clear         clear the session event log",
		"help          show this message",
		"exit          quit",
		"anything else is run as a query through the orchestrator",
	}, "\n"))
}
