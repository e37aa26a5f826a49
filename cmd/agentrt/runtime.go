package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cordialrun/agentrt/internal/agent"
	"github.com/cordialrun/agentrt/internal/config"
	"github.com/cordialrun/agentrt/internal/eventstore"
	"github.com/cordialrun/agentrt/internal/llm"
	"github.com/cordialrun/agentrt/internal/mcp"
	"github.com/cordialrun/agentrt/internal/observability"
	"github.com/cordialrun/agentrt/internal/sandbox"
	"github.com/cordialrun/agentrt/internal/skills"
	"github.com/cordialrun/agentrt/internal/tools/exec"
	"github.com/cordialrun/agentrt/internal/tools/files"
	"github.com/cordialrun/agentrt/internal/tools/memory"
	"github.com/cordialrun/agentrt/internal/tools/subagent"
	"github.com/cordialrun/agentrt/internal/toolregistry"
)

// runtime bundles everything buildAgent assembles so callers (run, resume)
// can shut it down cleanly.
type runtime struct {
	agent   *agent.Agent
	logger  *observability.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
	mcpMgr  *mcp.Manager
	closeFn func(context.Context) error
}

func newProvider(ctx context.Context, cfg config.ProviderConfig) (llm.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case "", "anthropic":
		return llm.NewAnthropicProvider(llm.AnthropicConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
		})
	case "openai":
		return llm.NewOpenAIProvider(llm.OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
		})
	case "google":
		return llm.NewGoogleProvider(ctx, llm.GoogleConfig{
			APIKey: cfg.APIKey,
		})
	case "bedrock":
		return llm.NewBedrockProvider(ctx, llm.BedrockConfig{
			Region:          cfg.Region,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			SessionToken:    cfg.SessionToken,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
}

// buildRuntime assembles an Agent plus the ambient observability stack
// from a loaded Config: the Tool Registry (file/exec/memory/subagent
// tools, plus MCP-bridged tools when configured), the Skill Registry, the
// Event Store, and the Provider the embedding API requires a caller to
// construct itself.
func buildRuntime(ctx context.Context, cfgPath string) (*runtime, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	metrics := observability.NewMetrics()
	slogger := logger.Slog()

	var tracer *observability.Tracer
	var tracerShutdown func(context.Context) error = func(context.Context) error { return nil }
	if cfg.Tracing.Enabled {
		tracer, tracerShutdown = observability.NewTracer(observability.TraceConfig{
			ServiceName:    cfg.Tracing.ServiceName,
			Endpoint:       cfg.Tracing.Endpoint,
			SamplingRate:   cfg.Tracing.SamplingRate,
			Attributes:     cfg.Tracing.Attributes,
			EnableInsecure: cfg.Tracing.Insecure,
		})
	}

	sb, err := sandbox.New(cfg.Sandbox.Workspace)
	if err != nil {
		return nil, fmt.Errorf("sandbox: %w", err)
	}

	provider, err := newProvider(ctx, cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("provider: %w", err)
	}

	registry := toolregistry.New(sandbox.NewFileLocks())
	registry.SetPageLimits(cfg.Agent.MaxInlineBytes, cfg.Agent.PageBytes)
	filesCfg := files.Config{Workspace: sb.Root()}
	mustRegister(registry, files.NewReadTool(filesCfg))
	mustRegister(registry, files.NewWriteTool(filesCfg))
	mustRegister(registry, files.NewEditTool(filesCfg))
	mustRegister(registry, files.NewApplyPatchTool(filesCfg))

	execMgr := exec.NewManager(sb.Root(), logger)
	mustRegister(registry, exec.NewExecTool("exec", execMgr))
	mustRegister(registry, exec.NewProcessTool(execMgr))
	mustRegister(registry, toolregistry.NewReadMoreTool(registry))

	if cfg.Sandbox.Workspace != "" {
		mustRegister(registry, memory.New(sb.Root()+"/.agent-memory"))
	}

	agentCfg := agent.Config{
		Model:               cfg.Agent.Model,
		MaxTokens:           cfg.Agent.MaxTokens,
		MaxToolIterations:   cfg.Agent.MaxToolIterations,
		EnablePromptCaching: cfg.Agent.EnablePromptCaching,
		MaxRetries:          cfg.Agent.MaxRetries,
		RetryInitialDelay:   cfg.Agent.RetryInitialDelay,
		SystemPrompt:        cfg.Agent.SystemPrompt,
		CompactThreshold:    cfg.Agent.CompactThreshold,
		CompactProtectLastK: cfg.Agent.CompactProtectLastK,
		ContextWindow:       cfg.Agent.ContextWindow,
		MaxInlineBytes:      cfg.Agent.MaxInlineBytes,
		PageBytes:           cfg.Agent.PageBytes,
		EventStoreTTL:       cfg.Agent.EventStoreTTL,
	}

	spawner := subagent.New(registry, provider, agentCfg)
	mustRegister(registry, spawner.Tool())

	var mcpMgr *mcp.Manager
	if cfg.MCP.Enabled {
		mcpMgr = mcp.NewManager(&cfg.MCP, logger)
		if err := mcpMgr.Start(ctx); err != nil {
			return nil, fmt.Errorf("mcp: %w", err)
		}
		mcp.RegisterTools(registry, mcpMgr)
	}

	var skillReg *skills.Registry
	if cfg.Skills.Directory != "" {
		skillReg, err = skills.NewRegistry(cfg.Skills.Directory)
		if err != nil {
			return nil, fmt.Errorf("skills: %w", err)
		}
	}

	store := eventstore.New(cfg.Agent.EventStoreTTL)
	store.StartSweeper(cfg.Agent.EventStoreTTL)
	a := agent.New(agentCfg, provider, registry, skillReg, store, nil)
	a.SetLogger(slogger)
	a.SetMetrics(metrics)
	a.SetTracer(tracer)

	closeFn := func(ctx context.Context) error {
		store.Stop()
		if mcpMgr != nil {
			if err := mcpMgr.Stop(); err != nil {
				return err
			}
		}
		return tracerShutdown(ctx)
	}

	return &runtime{agent: a, logger: logger, metrics: metrics, tracer: tracer, mcpMgr: mcpMgr, closeFn: closeFn}, nil
}

func mustRegister(registry *toolregistry.Registry, tool toolregistry.Tool) {
	if err := registry.RegisterTool(tool); err != nil {
		slog.Default().Warn("tool registration failed", "tool", tool.Name(), "error", err)
	}
}
