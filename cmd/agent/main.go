// Package main is the entry point for the interactive triage agent.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/template"

	"github.com/chainguard-dev/clog"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/cmd/launcher"
	"google.golang.org/adk/cmd/launcher/full"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"

	"github.com/easeaico/bug-triage-agent/internal/app"
	"github.com/easeaico/bug-triage-agent/internal/config"
	"github.com/easeaico/bug-triage-agent/internal/llm"
	"github.com/easeaico/bug-triage-agent/internal/tools"
)

const defaultAgentModel = "gemini-2.0-flash"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The launcher owns the command line, so the config file comes from the environment.
	cfg, err := config.Load(ctx, os.Getenv("CONFIG_FILE"))
	if err != nil {
		clog.FatalContextf(ctx, "Failed to load config: %v", err)
	}

	llmAgent, cleanup, err := initializeAgent(ctx, cfg)
	if err != nil {
		clog.FatalContextf(ctx, "Failed to initialize agent: %v", err)
	}
	defer cleanup()

	// Run interactive loop using adk-go runtime (launcher)
	launcherCfg := &launcher.Config{
		AgentLoader: agent.NewSingleLoader(llmAgent),
	}
	l := full.NewLauncher()
	if err := l.Execute(ctx, launcherCfg, os.Args[1:]); err != nil {
		clog.FatalContextf(ctx, "Failed to run agent: %v\n\n%s", err, l.CommandLineSyntax())
	}
}

// initializeAgent creates and initializes all components.
func initializeAgent(ctx context.Context, cfg *config.Config) (agent.Agent, func(), error) {
	if cfg.LLM.GoogleAPIKey == "" {
		return nil, nil, errors.New("GOOGLE_API_KEY is required for the agent model")
	}

	components, err := app.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := components.Close(); err != nil {
			clog.FromContext(ctx).Warnf("Failed to close components: %v", err)
		}
	}

	agentTools, err := tools.BuildTools(tools.NewHandler(components.Store, components.Dir, components.Analyzer))
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to build tools: %w", err)
	}

	modelName := defaultAgentModel
	if cfg.LLM.Provider == llm.ProviderGemini && cfg.LLM.Model != "" {
		modelName = cfg.LLM.Model
	}
	llmModel, err := gemini.NewModel(ctx, modelName, &genai.ClientConfig{
		APIKey:  cfg.LLM.GoogleAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create LLM model: %w", err)
	}

	instruction, err := buildSystemPrompt(promptData{
		WorkDir:       components.Dir.Root(),
		MemoryEnabled: components.Store != nil,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	llmAgent, err := llmagent.New(llmagent.Config{
		Name:        "bug_triage_agent",
		Description: "Diagnoses bugs and proposes patches, reusing fixes of similar past bugs",
		Model:       llmModel,
		Instruction: instruction,
		Tools:       agentTools,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create agent: %w", err)
	}

	clog.InfoContextf(ctx, "Agent initialized with %d tools on %s", len(agentTools), modelName)
	return llmAgent, cleanup, nil
}

type promptData struct {
	WorkDir       string
	MemoryEnabled bool
}

var systemPromptTmpl = template.Must(template.New("systemPrompt").Parse(`
You are a senior engineer triaging bug reports for the project in {{.WorkDir}}.
Your job is to find the cause of each bug and propose a patch for it.

You can:
1. Read files and list directories to understand the code
{{- if .MemoryEnabled}}
2. Search the fix memory for similar bugs that were fixed before
3. Save confirmed fixes so similar bugs can reuse them
{{- end}}

When handling a bug:
{{- if .MemoryEnabled}}
- Start with search_past_fixes; a close match usually means the same fix applies
{{- end}}
- Use list_directory and read_file_content to find the files involved
- Use analyze_bug to obtain a patch per file
{{- if .MemoryEnabled}}
- Once the user confirms a fix works, save it with remember_fix
{{- end}}
- Always give clear, actionable suggestions
`))

// buildSystemPrompt renders the agent instruction.
func buildSystemPrompt(data promptData) (string, error) {
	var buf bytes.Buffer
	if err := systemPromptTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render system prompt: %w", err)
	}
	return buf.String(), nil
}
