package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	LLM      LLMConfig      `toml:"llm"`
	Agent    AgentConfig    `toml:"agent"`
	Journal  JournalConfig  `toml:"journal"`
	Postgres PostgresConfig `toml:"postgres"`
	Observer ObserverConfig `toml:"observer"`
}

type LLMConfig struct {
	Model   string `toml:"model"`
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Name    string `toml:"name"`
}

type AgentConfig struct {
	Name          string `toml:"name"`
	SystemPrompt  string `toml:"system_prompt"`
	FirstMessage  string `toml:"first_message"`
	Debug         bool   `toml:"debug"`
	MaxDelegation int    `toml:"max_delegation_depth"`
}

type JournalConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type PostgresConfig struct {
	URL       string `toml:"url"`
	SessionID string `toml:"session_id"`
}

type ObserverConfig struct {
	Enabled bool                       `toml:"enabled"`
	Pricing map[string]ObserverPricing `toml:"pricing"`
}

type ObserverPricing struct {
	Input  float64 `toml:"input"`
	Output float64 `toml:"output"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			Model:   "gpt-4o-mini",
			BaseURL: "https://api.openai.com/v1",
			Name:    "openai",
		},
		Agent: AgentConfig{
			Name: "copilot",
		},
		Journal: JournalConfig{
			Path: "parley.db",
		},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "parley.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Env overrides
	if v := os.Getenv("PARLEY_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("PARLEY_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("PARLEY_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("PARLEY_POSTGRES_URL"); v != "" {
		cfg.Postgres.URL = v
	}
	if v := os.Getenv("PARLEY_JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
		cfg.Journal.Enabled = true
	}
	if os.Getenv("PARLEY_OBSERVER_ENABLED") == "true" || os.Getenv("PARLEY_OBSERVER_ENABLED") == "1" {
		cfg.Observer.Enabled = true
	}
	if os.Getenv("PARLEY_DEBUG") == "true" || os.Getenv("PARLEY_DEBUG") == "1" {
		cfg.Agent.Debug = true
	}

	return cfg
}
