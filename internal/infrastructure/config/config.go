// Package config loads process configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
)

// LLMConfig groups the connection settings for one LLM role (planner, guard,
// or embedding), each independently configurable since a deployment may point
// the param-guard shaper at a cheaper model than the planner.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout int // seconds
}

// Config is the full set of tunables read from the environment.
type Config struct {
	Port        string
	LogLevel    string
	DatabaseDSN string

	Planner   LLMConfig
	Guard     LLMConfig
	Embedding LLMConfig

	RetrieverMode          string
	EnableTaskOptimization bool
	MaxFixAttempts         int
	ToolRetrieverTopK      int
	ToolRetrieverExpandK   int
	PinnedTools            []string

	LLMInputMaxChars        int
	ToolOutputMaxChars      int
	NodeOutputMaxChars      int
	LogTruncateLength       int
	FixPromptTruncateLength int

	ToolFailureSubstrings []string
}

// Load reads Config from the environment, applying the same defaults the
// original task-runner used.
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseDSN: getEnv("DATABASE_DSN", ""),

		Planner:   loadLLMConfig("PLANNER"),
		Guard:     loadLLMConfig("GUARD"),
		Embedding: loadLLMConfig("EMBEDDING"),

		RetrieverMode:          getEnv("RETRIEVER_MODE", "bm25"),
		EnableTaskOptimization: getBool("ENABLE_TASK_OPTIMIZATION", true),
		MaxFixAttempts:         getInt("MAX_FIX_ATTEMPTS", 3),
		ToolRetrieverTopK:      getInt("TOOL_RETRIEVER_TOP_K", 25),
		ToolRetrieverExpandK:   getInt("TOOL_RETRIEVER_EXPAND_K", 15),
		PinnedTools:            getList("PINNED_TOOLS", nil),

		LLMInputMaxChars:        getInt("LLM_INPUT_MAX_CHARS", 8000),
		ToolOutputMaxChars:      getInt("TOOL_OUTPUT_MAX_CHARS", 20000),
		NodeOutputMaxChars:      getInt("NODE_OUTPUT_MAX_CHARS", 15000),
		LogTruncateLength:       getInt("LOG_TRUNCATE_LENGTH", 500),
		FixPromptTruncateLength: getInt("FIX_PROMPT_TRUNCATE_LENGTH", 4000),

		ToolFailureSubstrings: getList("TOOL_FAILURE_SUBSTRINGS", []string{"error", "failed", "获取网页内容失败"}),
	}
}

func loadLLMConfig(prefix string) LLMConfig {
	return LLMConfig{
		APIKey:  getEnv(prefix+"_KEY", ""),
		BaseURL: getEnv(prefix+"_URL", ""),
		Model:   getEnv(prefix+"_MODEL", ""),
		Timeout: getInt(prefix+"_TIMEOUT", 60),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// GetPortInt returns the port as an integer.
func (c *Config) GetPortInt() int {
	p, _ := strconv.Atoi(c.Port)
	return p
}
