// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// HTTPConfig holds shared HTTP settings used by every stage that makes
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// SearchProvider selects which web-search vendor the Search Providers
// component targets for a run.
type SearchProvider string

const (
	ProviderSERP       SearchProvider = "serp"
	ProviderTavily     SearchProvider = "tavily"
	ProviderPerplexity SearchProvider = "perplexity"
)

// OutputFormat selects the report file format.
type OutputFormat string

const (
	OutputMarkdown OutputFormat = "markdown"
	OutputText     OutputFormat = "text"
)

// LogLevel mirrors the CLI's --log-level flag.
type LogLevel string

const (
	LogDebug   LogLevel = "DEBUG"
	LogInfo    LogLevel = "INFO"
	LogWarning LogLevel = "WARNING"
	LogError   LogLevel = "ERROR"
)

// Config is the full set of recognized pipeline options, loaded from
// environment variables and/or a config file by cmd/research-report. Field
// names correspond to the option table in spec §6; defaults are applied by
// Config.ApplyDefaults.
type Config struct {
	HTTPConfig `yaml:",inline"`

	// LLM Gateway
	LLMAPIKey           string `json:"llm_api_key" yaml:"llm_api_key"`
	LLMEndpoint         string `json:"llm_endpoint" yaml:"llm_endpoint"`
	DefaultModel        string `json:"default_model" yaml:"default_model"`
	IntentModel         string `json:"intent_model" yaml:"intent_model"`
	PlannerModel        string `json:"planner_model" yaml:"planner_model"`
	ContextModel        string `json:"context_model" yaml:"context_model"`
	ReflectionModel     string `json:"reflection_model" yaml:"reflection_model"`
	ReportModel         string `json:"report_model" yaml:"report_model"`
	VerifyModel         string `json:"verify_model" yaml:"verify_model"`
	LLMMaxRetries       int    `json:"llm_max_retries" yaml:"llm_max_retries"`
	PromptPolicyInclude bool   `json:"prompt_policy_include" yaml:"prompt_policy_include"`

	// Summarizer model routing
	MRSDefault       string `json:"mrs_default" yaml:"mrs_default"`
	MRSCode          string `json:"mrs_code" yaml:"mrs_code"`
	MRSResearch      string `json:"mrs_research" yaml:"mrs_research"`
	MRSNews          string `json:"mrs_news" yaml:"mrs_news"`
	MRSDocumentation string `json:"mrs_documentation" yaml:"mrs_documentation"`
	MRSGeneral       string `json:"mrs_general" yaml:"mrs_general"`

	// Search Providers
	SearchProviderName    SearchProvider `json:"search_provider" yaml:"search_provider"`
	SERPAPIKey            string         `json:"serp_api_key,omitempty" yaml:"serp_api_key,omitempty"`
	TavilyAPIKey           string        `json:"tavily_api_key,omitempty" yaml:"tavily_api_key,omitempty"`
	PerplexityAPIKey       string        `json:"perplexity_api_key,omitempty" yaml:"perplexity_api_key,omitempty"`
	ExcludeDomains         []string      `json:"exclude_domains" yaml:"exclude_domains"`
	SearchResultsPerQuery  int           `json:"search_results_per_query" yaml:"search_results_per_query"`

	// Ranking ratios
	TopKURL float64 `json:"top_k_url" yaml:"top_k_url"`
	TopKSum float64 `json:"top_k_sum" yaml:"top_k_sum"`

	// Vector Store / Embedding Client
	VectorDBPath   string `json:"vector_db_path" yaml:"vector_db_path"`
	EmbeddingModel string `json:"embedding_model" yaml:"embedding_model"`

	// Reranker
	UseReranker    bool   `json:"use_reranker" yaml:"use_reranker"`
	RerankerURL    string `json:"reranker_url,omitempty" yaml:"reranker_url,omitempty"`
	RerankerModel  string `json:"reranker_model,omitempty" yaml:"reranker_model,omitempty"`
	RerankerAPIKey string `json:"reranker_api_key,omitempty" yaml:"reranker_api_key,omitempty"`

	// Verification
	VerifyClaims    bool    `json:"verify_claims" yaml:"verify_claims"`
	VerifyThreshold float64 `json:"verify_threshold" yaml:"verify_threshold"`

	// Orchestrator
	MaxIterations   int `json:"max_iterations" yaml:"max_iterations"`
	ReportMaxTokens int `json:"report_max_tokens" yaml:"report_max_tokens"`

	// Concurrency
	SearchParallel  int `json:"search_parallel" yaml:"search_parallel"`
	ScrapeParallel  int `json:"scrape_parallel" yaml:"scrape_parallel"`
	SummaryParallel int `json:"summary_parallel" yaml:"summary_parallel"`

	// Scraper / Summarizer tables
	OutputFormat         OutputFormat `json:"output_format" yaml:"output_format"`
	PreserveTables       bool         `json:"preserve_tables" yaml:"preserve_tables"`
	EnableTableAware     bool         `json:"enable_table_aware" yaml:"enable_table_aware"`
	TableTopKRows        int          `json:"table_topk_rows" yaml:"table_topk_rows"`
	TableMaxRowsVerbatim int          `json:"table_max_rows_verbatim" yaml:"table_max_rows_verbatim"`
	TableMaxColsVerbatim int          `json:"table_max_cols_verbatim" yaml:"table_max_cols_verbatim"`
	TableCellMaxChars    int          `json:"table_cell_max_chars" yaml:"table_cell_max_chars"`

	// Scraper fallback tiers
	ScrapeFallback1URL    string `json:"scrape_fallback1_url,omitempty" yaml:"scrape_fallback1_url,omitempty"`
	ScrapeFallback1APIKey string `json:"scrape_fallback1_api_key,omitempty" yaml:"scrape_fallback1_api_key,omitempty"`
	ScrapeFallback2URL    string `json:"scrape_fallback2_url,omitempty" yaml:"scrape_fallback2_url,omitempty"`
	ScrapeFallback2APIKey string `json:"scrape_fallback2_api_key,omitempty" yaml:"scrape_fallback2_api_key,omitempty"`
	ScrapeTimeout         time.Duration `json:"scrape_timeout" yaml:"scrape_timeout"`

	// CLI
	OutputDir string   `json:"output_dir" yaml:"output_dir"`
	LogLevel  LogLevel `json:"log_level" yaml:"log_level"`
}

// ApplyDefaults fills unset numeric/string fields with the defaults named in
// spec §6. It is idempotent and safe to call on a partially populated
// Config. Boolean options that default to true (PromptPolicyInclude,
// PreserveTables, EnableTableAware) are seeded true by the config loader
// before flag/env binding, since a zero Config cannot be distinguished here
// from an explicit false.
func (c *Config) ApplyDefaults() {
	if c.LLMMaxRetries == 0 {
		c.LLMMaxRetries = 3
	}
	if c.SearchResultsPerQuery == 0 {
		c.SearchResultsPerQuery = 10
	}
	if c.TopKURL == 0 {
		c.TopKURL = 0.3
	}
	if c.TopKSum == 0 {
		c.TopKSum = 0.5
	}
	if c.VerifyThreshold == 0 {
		c.VerifyThreshold = 0.7
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = 2
	}
	if c.ReportMaxTokens == 0 {
		c.ReportMaxTokens = 4000
	}
	if c.SearchParallel == 0 {
		c.SearchParallel = 1
	}
	if c.ScrapeParallel == 0 {
		c.ScrapeParallel = 5
	}
	if c.SummaryParallel == 0 {
		c.SummaryParallel = 1
	}
	if c.TableTopKRows == 0 {
		c.TableTopKRows = 10
	}
	if c.TableMaxRowsVerbatim == 0 {
		c.TableMaxRowsVerbatim = 15
	}
	if c.TableMaxColsVerbatim == 0 {
		c.TableMaxColsVerbatim = 8
	}
	if c.TableCellMaxChars == 0 {
		c.TableCellMaxChars = 200
	}
	if c.ScrapeFallback1URL == "" {
		c.ScrapeFallback1URL = "https://r.jina.ai/"
	}
	if c.ScrapeTimeout == 0 {
		c.ScrapeTimeout = 15 * time.Second
	}
	if c.OutputFormat == "" {
		c.OutputFormat = OutputMarkdown
	}
	if c.LogLevel == "" {
		c.LogLevel = LogInfo
	}
	if c.SearchProviderName == "" {
		c.SearchProviderName = ProviderSERP
	}
	if c.Timeout == 0 {
		c.Timeout = 15 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "research-report/0.1"
	}
}

// maxParallelism is the soft ceiling from spec §6: values above it are
// accepted but warned about rather than rejected.
const maxParallelism = 32

// summaryParallelWarnThreshold is spec §5's cost-note threshold: every
// summarizer worker multiplies LLM spend linearly, so exceeding it MUST
// warn even though it is still within maxParallelism.
const summaryParallelWarnThreshold = 4

// Validate checks the required-key and range constraints from spec §6/§7.
// Parallelism below 1 is a config error; above maxParallelism it is
// accepted here and instead surfaced by Warnings for the caller to log.
func (c Config) Validate() error {
	if c.LLMAPIKey == "" {
		return fmt.Errorf("llm_api_key is required: %w", ErrConfigInvalid)
	}
	switch c.SearchProviderName {
	case ProviderSERP, ProviderTavily, ProviderPerplexity:
	default:
		return fmt.Errorf("search_provider %q is not one of serp, tavily, perplexity: %w", c.SearchProviderName, ErrConfigInvalid)
	}
	if c.TopKURL <= 0 || c.TopKURL > 1 {
		return fmt.Errorf("top_k_url must be in (0.0, 1.0]: %w", ErrConfigInvalid)
	}
	if c.TopKSum <= 0 || c.TopKSum > 1 {
		return fmt.Errorf("top_k_sum must be in (0.0, 1.0]: %w", ErrConfigInvalid)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be >= 1: %w", ErrConfigInvalid)
	}
	for _, p := range []struct {
		name string
		val  int
	}{
		{"search_parallel", c.SearchParallel},
		{"scrape_parallel", c.ScrapeParallel},
		{"summary_parallel", c.SummaryParallel},
	} {
		if p.val < 1 {
			return fmt.Errorf("%s must be >= 1: %w", p.name, ErrConfigInvalid)
		}
	}
	return nil
}

// Warnings returns non-fatal advisories about c that the caller should log
// at WARNING level after a successful Validate: any parallelism setting
// above maxParallelism (spec §6), and summary_parallel above
// summaryParallelWarnThreshold (spec §5's LLM-cost note).
func (c Config) Warnings() []string {
	var warnings []string
	for _, p := range []struct {
		name string
		val  int
	}{
		{"search_parallel", c.SearchParallel},
		{"scrape_parallel", c.ScrapeParallel},
		{"summary_parallel", c.SummaryParallel},
	} {
		if p.val > maxParallelism {
			warnings = append(warnings, fmt.Sprintf("%s is %d, above the recommended maximum of %d", p.name, p.val, maxParallelism))
		}
	}
	if c.SummaryParallel > summaryParallelWarnThreshold {
		warnings = append(warnings, fmt.Sprintf("summary_parallel is %d; every worker multiplies LLM spend linearly", c.SummaryParallel))
	}
	return warnings
}
