// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the research-report CLI: given a
// free-text research question it classifies intent, plans search queries,
// runs the iterative search/scrape/summarize/reflect loop, assembles
// context, drafts a cited report, optionally verifies its claims, and
// writes the result to disk.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/research-engine/internal/assemble"
	"github.com/pdiddy/research-engine/internal/embedclient"
	"github.com/pdiddy/research-engine/internal/llmgateway"
	"github.com/pdiddy/research-engine/internal/logging"
	"github.com/pdiddy/research-engine/internal/plan"
	"github.com/pdiddy/research-engine/internal/reflect"
	"github.com/pdiddy/research-engine/internal/rerank"
	"github.com/pdiddy/research-engine/internal/scrape"
	"github.com/pdiddy/research-engine/internal/search"
	"github.com/pdiddy/research-engine/internal/secrets"
	"github.com/pdiddy/research-engine/internal/summarize"
	"github.com/pdiddy/research-engine/internal/vectorstore"
	"github.com/pdiddy/research-engine/internal/verify"

	"github.com/pdiddy/research-engine/internal/orchestrate"
	"github.com/pdiddy/research-engine/pkg/types"
)

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

var rootCmd = &cobra.Command{
	Use:   "research-report [flags] QUERY",
	Short: "Generate a cited research report for a free-text question",
	Long: `research-report drives an end-to-end research pipeline: it classifies the
intent behind a question, plans a set of search queries, iteratively
searches, scrapes, and summarizes sources, reflects on coverage gaps, drafts
a cited Markdown report, and optionally verifies its claims against their
sources before writing it to disk.`,
	Args: cobra.ExactArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
	RunE: runReport,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./research-report.yaml or ~/.research-report.yaml)")
	rootCmd.Flags().String("output", "", "directory reports are written to (default: output)")
	rootCmd.Flags().String("log-level", "", "DEBUG, INFO, WARNING, or ERROR (default: INFO)")
	rootCmd.Flags().Bool("show-plan", false, "print the classified intent and research plan before running")
}

func runReport(cmd *cobra.Command, args []string) error {
	query := args[0]

	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(cfgFile, loadedSecrets)
	if err != nil {
		return err
	}
	if out, _ := cmd.Flags().GetString("output"); out != "" {
		cfg.OutputDir = out
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = types.LogLevel(strings.ToUpper(level))
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(cfg.LogLevel, os.Stderr)
	defer logger.Sync()

	for _, w := range cfg.Warnings() {
		logger.Warn(w, zap.String("stage", "config"))
	}

	// --show-plan surfaces the orchestrator's own progress narration
	// (the classified intent, the plan summary, and each research
	// iteration) on stderr; without it the run is quiet until it writes
	// the report.
	var progress io.Writer
	if showPlan, _ := cmd.Flags().GetBool("show-plan"); showPlan {
		progress = os.Stderr
	}

	orch, err := buildOrchestrator(cfg, logger, progress)
	if err != nil {
		return err
	}

	report, err := orch.Run(context.Background(), query)
	if err != nil {
		return err
	}

	path, err := orchestrate.SaveReport(report, outputDirOrDefault(cfg.OutputDir))
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Report written to %s\n", path)
	return nil
}

// buildOrchestrator wires every stage component from cfg into an
// orchestrate.Orchestrator, following the constructor chain: the LLM
// Gateway and HTTP client are shared across every stage that needs them,
// the Vector Store backs the Context Assembler, and the Reranker (identity
// when disabled) serves both URL-level and summary-level reranking.
func buildOrchestrator(cfg types.Config, logger *zap.Logger, progress io.Writer) (*orchestrate.Orchestrator, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	gateway := llmgateway.New(cfg, httpClient)
	reranker := rerank.New(cfg, httpClient)

	store, err := vectorstore.Open(vectorDBPath(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}

	embedder := embedclient.New(cfg, cfg.LLMEndpoint, httpClient)
	scraper := scrape.New(cfg, httpClient, logger)

	deps := orchestrate.Deps{
		Intent:      plan.NewIntentClassifier(cfg, gateway),
		Planner:     plan.NewPlanner(cfg, gateway),
		Search:      search.New(cfg, httpClient, logger),
		URLReranker: reranker,
		Scraper:     scraper,
		Summarizer:  summarize.New(cfg, gateway, logger),
		Assembler:   assemble.New(cfg, embedder, store, reranker),
		Reflector:   reflect.New(cfg, gateway),
		Gateway:     gateway,
		Logger:      logger,
		Progress:    progress,
	}

	// The Verifier shares scraper with the research loop so a source
	// already scraped during research is looked up from cache rather
	// than refetched.
	if cfg.VerifyClaims {
		deps.Claims = verify.NewClaimExtractor(cfg, gateway)
		deps.Verifier = verify.NewVerifier(cfg, gateway, scraper)
	}

	return orchestrate.New(cfg, deps), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(types.ExitCode(err))
	}
}
