package taskflow

import (
	"github.com/dagtask/planrunner/internal/infrastructure/config"
	"github.com/dagtask/planrunner/internal/retriever"
)

// Config is the ambient configuration surface: ports, log level, per-role LLM
// settings, retriever tuning, and truncation limits, all read from the
// environment by LoadConfig.
type Config = config.Config

// LLMConfig configures one role's LLM endpoint (planner, guard, or embedding).
type LLMConfig = config.LLMConfig

// LoadConfig reads Config from the environment, applying the same defaults the
// deployed service uses.
func LoadConfig() *Config {
	return config.Load()
}

// RetrieverConfig tunes the Tool Retriever: ranking mode, result sizes, and the
// pinned-tool set that is always included regardless of rank.
type RetrieverConfig = retriever.Config

// RetrieverMode selects the Tool Retriever's ranking backend.
type RetrieverMode = retriever.Mode

// Retriever mode constants.
const (
	RetrieverModeBM25     = retriever.ModeBM25
	RetrieverModeSemantic = retriever.ModeSemantic
)
