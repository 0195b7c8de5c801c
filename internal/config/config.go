package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultModel          = "gpt-4o-mini"
	defaultMaxQuestionLen = 300
	defaultMaxResults     = 5
	defaultSearchDepth    = "basic"
	defaultDevPort        = "8080"

	openAITokenParam = "open-ai-token"
	tavilyTokenParam = "tavily-token"
)

type Config struct {
	App    AppConfig
	State  StateConfig
	Models ModelsConfig
	Search SearchConfig
}

type AppConfig struct {
	Environment    string
	LogFilePath    string
	DevPort        string
	MaxQuestionLen int
}

type StateConfig struct {
	// Table is empty when conversations are kept in memory.
	Table string
}

type ModelsConfig struct {
	ParamPrefix   string
	RewriterModel string
	AnswerModel   string
	OpenAIBaseURL string
}

type SearchConfig struct {
	Depth      string
	MaxResults int
}

// LoadDotEnv seeds the environment from .env files when they exist. Variables
// already set are left alone.
func LoadDotEnv(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(paths) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			existing = append(existing, ".env")
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("config: load .env: %w", err)
	}
	return nil
}

// Load reads the configuration from the environment. PARAM_PREFIX is always
// required; STATE_TABLE is required only when requireTable is set.
func Load(requireTable bool) (*Config, error) {
	paramPrefix := strings.TrimRight(strings.TrimSpace(os.Getenv("PARAM_PREFIX")), "/")
	if paramPrefix == "" {
		return nil, errors.New("config: PARAM_PREFIX is required")
	}
	table := strings.TrimSpace(os.Getenv("STATE_TABLE"))
	if requireTable && table == "" {
		return nil, errors.New("config: STATE_TABLE is required")
	}

	maxQuestion, err := getEnvAsInt("MAX_QUESTION_LENGTH", defaultMaxQuestionLen)
	if err != nil {
		return nil, err
	}
	maxResults, err := getEnvAsInt("TAVILY_MAX_RESULTS", defaultMaxResults)
	if err != nil {
		return nil, err
	}
	depth := getEnv("TAVILY_SEARCH_DEPTH", defaultSearchDepth)
	if depth != "basic" && depth != "advanced" {
		return nil, fmt.Errorf("config: TAVILY_SEARCH_DEPTH must be basic or advanced, got %q", depth)
	}

	return &Config{
		App: AppConfig{
			Environment:    getEnv("APP_ENV", "development"),
			LogFilePath:    getEnv("LOG_FILE_PATH", ""),
			DevPort:        getEnv("DEV_PORT", defaultDevPort),
			MaxQuestionLen: maxQuestion,
		},
		State: StateConfig{Table: table},
		Models: ModelsConfig{
			ParamPrefix:   paramPrefix,
			RewriterModel: getEnv("REWRITER_MODEL", defaultModel),
			AnswerModel:   getEnv("ANSWER_MODEL", defaultModel),
			OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		},
		Search: SearchConfig{Depth: depth, MaxResults: maxResults},
	}, nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// OpenAICredential is the SSM parameter holding the OpenAI token.
func (c *Config) OpenAICredential() string {
	return c.Models.ParamPrefix + "/" + openAITokenParam
}

// TavilyCredential is the SSM parameter holding the Tavily token.
func (c *Config) TavilyCredential() string {
	return c.Models.ParamPrefix + "/" + tavilyTokenParam
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("config: %s must be a positive integer, got %q", key, v)
	}
	return n, nil
}
