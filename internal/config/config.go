// Package config provides configuration loading and validation.
//
// Values come from the environment and, optionally, a YAML or JSON file whose
// keys are the lower-case environment variable names. The environment wins.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	"github.com/easeaico/bug-triage-agent/internal/llm"
)

// DefaultFile is read when no config file is named. It is optional.
const DefaultFile = "config.json"

// Config holds the application configuration.
type Config struct {
	Host string `env:"HOST,default=0.0.0.0"`
	Port int    `env:"PORT,default=8000"`

	// Fix memory backend: "file", "postgres" or "none".
	MemoryBackend string `env:"MEMORY_BACKEND,default=file"`
	MemoryFile    string `env:"MEMORY_FILE,default=memory.json"`
	DatabaseURL   string `env:"DATABASE_URL"`

	// Where file contents are read from: "workdir" or "git".
	FileSource string `env:"FILE_SOURCE,default=workdir"`
	WorkDir    string `env:"WORK_DIR"`

	// SQLite path of the code index; empty disables it.
	CodeIndexPath string `env:"CODE_INDEX_PATH"`

	// Cron schedule for periodic triage; empty disables polling in serve.
	PollSchedule string `env:"POLL_SCHEDULE"`

	LLM      LLMConfig
	Jira     JiraConfig     `env:", prefix=JIRA_"`
	VCSType  string         `env:"VCS_TYPE,default=git"`
	GitHub   GitHubConfig   `env:", prefix=GITHUB_"`
	Perforce PerforceConfig
}

// LLMConfig selects the embedding and generation providers.
type LLMConfig struct {
	EmbedProvider   string `env:"EMBED_PROVIDER,default=gemini"`
	EmbedModel      string `env:"EMBED_MODEL"`
	Provider        string `env:"LLM_PROVIDER,default=gemini"`
	Model           string `env:"LLM_MODEL"`
	GoogleAPIKey    string `env:"GOOGLE_API_KEY"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `env:"OPENAI_BASE_URL"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	OllamaHost      string `env:"OLLAMA_HOST,default=http://localhost:11434"`
}

// JiraConfig holds the tracker connection.
type JiraConfig struct {
	URL     string `env:"URL"`
	User    string `env:"USER"`
	Token   string `env:"TOKEN"`
	Project string `env:"PROJECT"`
	WSURL   string `env:"WS_URL"`
}

// GitHubConfig holds the GitHub review host settings.
type GitHubConfig struct {
	Repo       string `env:"REPO"`
	Token      string `env:"TOKEN"`
	BaseBranch string `env:"BASE_BRANCH,default=main"`
}

// PerforceConfig holds the Helix Swarm review host settings.
type PerforceConfig struct {
	SwarmURL string `env:"SWARM_URL"`
	User     string `env:"P4USER"`
	Ticket   string `env:"P4TICKET"`
}

// Load reads configuration from the environment and the config file at path.
// An empty path means DefaultFile, which may be missing or unreadable; a
// named file must load.
func Load(ctx context.Context, path string) (*Config, error) {
	return LoadWith(ctx, path, envconfig.OsLookuper())
}

// LoadWith is Load with an explicit environment lookuper.
func LoadWith(ctx context.Context, path string, env envconfig.Lookuper) (*Config, error) {
	fileValues, err := readFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: envconfig.MultiLookuper(env, envconfig.MapLookuper(fileValues)),
	}); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// readFile returns the file's top-level scalars keyed by upper-cased name.
func readFile(path string) (map[string]string, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if explicit {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		return nil, nil
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		if explicit {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		return nil, nil
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v.(type) {
		case nil, map[string]any, []any:
			continue
		}
		values[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return values, nil
}

// Validate checks the settings every command depends on.
func (c *Config) Validate() error {
	var errs []error

	switch c.MemoryBackend {
	case "file", "none":
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when MEMORY_BACKEND=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("MEMORY_BACKEND must be 'file', 'postgres' or 'none', got: %s", c.MemoryBackend))
	}

	if c.FileSource != "workdir" && c.FileSource != "git" {
		errs = append(errs, fmt.Errorf("FILE_SOURCE must be 'workdir' or 'git', got: %s", c.FileSource))
	}

	if c.VCSType != "git" && c.VCSType != "perforce" {
		errs = append(errs, fmt.Errorf("VCS_TYPE must be 'git' or 'perforce', got: %s", c.VCSType))
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got: %d", c.Port))
	}

	return errors.Join(errs...)
}

// ValidateTracker checks the Jira REST settings.
func (c *Config) ValidateTracker() error {
	if c.Jira.URL == "" || c.Jira.User == "" || c.Jira.Token == "" {
		return errors.New("JIRA_URL, JIRA_USER and JIRA_TOKEN must be set")
	}
	return nil
}

// ValidateReviewHost checks the settings of the selected review host.
func (c *Config) ValidateReviewHost() error {
	switch c.VCSType {
	case "perforce":
		if c.Perforce.SwarmURL == "" || c.Perforce.User == "" || c.Perforce.Ticket == "" {
			return errors.New("SWARM_URL, P4USER and P4TICKET must be set")
		}
	default:
		if c.GitHub.Repo == "" || c.GitHub.Token == "" {
			return errors.New("GITHUB_REPO and GITHUB_TOKEN must be set")
		}
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LLMSettings returns the provider settings for the llm package.
func (c *Config) LLMSettings() llm.Settings {
	return llm.Settings{
		EmbedProvider: c.LLM.EmbedProvider,
		EmbedModel:    c.LLM.EmbedModel,
		LLMProvider:   c.LLM.Provider,
		LLMModel:      c.LLM.Model,
		GoogleAPIKey:  c.LLM.GoogleAPIKey,
		OpenAIAPIKey:  c.LLM.OpenAIAPIKey,
		OpenAIBaseURL: c.LLM.OpenAIBaseURL,
		AnthropicKey:  c.LLM.AnthropicAPIKey,
		OllamaHost:    c.LLM.OllamaHost,
	}
}
