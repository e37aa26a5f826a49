// Package subagent implements the create_subagent tool: given a task
// description, it clones the parent's Tool Registry excluding itself, spawns
// a child Agent with an isolated conversation sharing the parent's Provider,
// runs it to exhaustion, and returns the accumulated assistant text.
package subagent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cordialrun/agentrt/internal/agent"
	"github.com/cordialrun/agentrt/internal/llm"
	"github.com/cordialrun/agentrt/internal/toolregistry"
)

// ToolName is the name the model invokes to spawn a subagent; the tool
// clones the registry excluding this name so a child cannot recurse.
const ToolName = "create_subagent"

// DefaultSystemPrompt is injected into every spawned child's system prompt.
const DefaultSystemPrompt = `You are a subagent spawned by a parent agent to complete one bounded task.
Work the task to completion using the tools available to you, then reply with
your findings in your final message. You have no memory of the parent's
conversation and nothing you do here is visible to the parent except your
final reply.`

// Spawner constructs a child Agent per call, holding everything a spawned
// child needs that isn't supplied by the tool call itself.
type Spawner struct {
	parentRegistry *toolregistry.Registry
	provider       llm.Provider
	cfg            agent.Config
}

// New creates a subagent Spawner. cfg is the child's Agent configuration
// (model, max_tokens, max_tool_iterations, ...); its SystemPrompt is
// overridden with DefaultSystemPrompt unless the caller already set one.
// The child shares the parent's Provider: same model access, isolated
// conversation.
func New(parentRegistry *toolregistry.Registry, provider llm.Provider, cfg agent.Config) *Spawner {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	return &Spawner{parentRegistry: parentRegistry, provider: provider, cfg: cfg}
}

// Tool returns the create_subagent Tool bound to this Spawner.
func (s *Spawner) Tool() *SpawnTool { return &SpawnTool{spawner: s} }

// SpawnTool is the create_subagent tool handed to the Tool Registry.
type SpawnTool struct {
	spawner *Spawner
}

func (t *SpawnTool) Name() string { return ToolName }

func (t *SpawnTool) Description() string {
	return "Delegate a bounded task to a fresh subagent with its own isolated conversation and the same tools (minus create_subagent). Returns the subagent's final reply."
}

// FileParam is empty: a subagent task is not scoped to a single file.
func (t *SpawnTool) FileParam() string { return "" }

func (t *SpawnTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"task": {
				"type": "string",
				"description": "The task for the subagent to complete, in enough detail to work independently."
			}
		},
		"required": ["task"]
	}`)
}

func (t *SpawnTool) Execute(ctx context.Context, params json.RawMessage) (string, bool) {
	var input struct {
		Task string `json:"task"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return fmt.Sprintf("invalid arguments: %v", err), true
	}
	if input.Task == "" {
		return "task is required", true
	}
	return t.spawner.Run(ctx, input.Task)
}

// Run clones the registry excluding create_subagent, builds a fresh child
// Agent sharing the parent's Provider, and drives stream_message to
// exhaustion, accumulating only assistant text (structured events are
// dropped: the child's tool traffic stays isolated from the parent).
func (s *Spawner) Run(ctx context.Context, task string) (string, bool) {
	if s.provider == nil {
		return "subagent provider unavailable", true
	}
	childRegistry := s.parentRegistry.Clone(map[string]bool{ToolName: true})
	child := agent.New(s.cfg, s.provider, childRegistry, nil, nil, nil)

	outputs, err := child.StreamMessage(ctx, task, nil, "")
	if err != nil {
		return fmt.Sprintf("subagent failed to start: %v", err), true
	}

	var text string
	for out := range outputs {
		if out.Err != nil {
			return fmt.Sprintf("subagent error: %v", out.Err), true
		}
		text += out.Text
	}
	return text, false
}
