// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/pdiddy/research-engine/pkg/types"
)

// defaultConfigFile resolves the config file path when --config is not
// given, checking "./research-report.yaml" then "$HOME/.research-report.yaml"
// in that order per spec §6. Viper's SetConfigName search can't mix two
// different basenames across paths, so the two candidates are probed
// directly. Returns "" if neither exists.
func defaultConfigFile() string {
	if _, err := os.Stat("research-report.yaml"); err == nil {
		return "research-report.yaml"
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, ".research-report.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// loadConfig reads research-report.yaml (or the file named by --config),
// layers RESEARCH_REPORT_-prefixed environment variables over it, then
// fills in loadedSecrets for any key left empty by both. Field names in
// the config file and environment use the Config struct's yaml tags
// (llm_api_key, top_k_url, ...), matching spec §6's option table.
func loadConfig(cfgFile string, secrets map[string]string) (types.Config, error) {
	v := viper.New()

	v.SetDefault("prompt_policy_include", true)
	v.SetDefault("preserve_tables", true)
	v.SetDefault("enable_table_aware", true)

	explicit := cfgFile != ""
	if !explicit {
		cfgFile = defaultConfigFile()
	}
	v.SetConfigType("yaml")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			if explicit {
				return types.Config{}, fmt.Errorf("reading config file %s: %w", cfgFile, err)
			}
		} else {
			fmt.Fprintln(os.Stderr, "Using config file:", v.ConfigFileUsed())
		}
	}

	v.SetEnvPrefix("RESEARCH_REPORT")
	v.AutomaticEnv()
	// Unmarshal only sees keys viper already knows, so each yaml key is
	// bound to its environment variable explicitly.
	for _, f := range reflect.VisibleFields(reflect.TypeOf(types.Config{})) {
		if key, _, _ := strings.Cut(f.Tag.Get("yaml"), ","); key != "" {
			_ = v.BindEnv(key)
		}
	}

	var cfg types.Config
	decodeHook := func(c *mapstructure.DecoderConfig) {
		c.TagName = "yaml"
		c.Squash = true
	}
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return types.Config{}, fmt.Errorf("decoding config: %w", err)
	}

	fillSecrets(&cfg, secrets)
	cfg.ApplyDefaults()
	return cfg, nil
}

// fillSecrets overrides any API key the config/env left empty with the
// matching file from the secrets directory, mirroring the teacher's
// secretDefault helper (config/env wins over secrets when both are set).
func fillSecrets(cfg *types.Config, secrets map[string]string) {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = secrets[key]
		}
	}
	fill(&cfg.LLMAPIKey, "llm-api-key")
	fill(&cfg.SERPAPIKey, "serp-api-key")
	fill(&cfg.TavilyAPIKey, "tavily-api-key")
	fill(&cfg.PerplexityAPIKey, "perplexity-api-key")
	fill(&cfg.RerankerAPIKey, "reranker-api-key")
}

// vectorDBPath resolves a default vector store path alongside the output
// directory when the config leaves it unset.
func vectorDBPath(cfg types.Config) string {
	if cfg.VectorDBPath != "" {
		return cfg.VectorDBPath
	}
	return filepath.Join(outputDirOrDefault(cfg.OutputDir), "vectorstore.db")
}

func outputDirOrDefault(dir string) string {
	if dir == "" {
		return "output"
	}
	return dir
}
