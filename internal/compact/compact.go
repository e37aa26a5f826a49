// Package compact implements the two-phase context-window budget manager:
// Phase 1 truncates old tool results locally; Phase 2 asks the model to
// summarise a safe prefix of the conversation. Neither phase may ever sever
// a tool_use/tool_result pairing.
package compact

import (
	"context"
	"fmt"

	"github.com/cordialrun/agentrt/internal/llm"
	"github.com/cordialrun/agentrt/pkg/models"
)

// SentinelText replaces a Phase 1 truncated tool result's content. The
// read_more pagination cache is unaffected by compaction since it lives
// outside the conversation, in the Tool Registry.
const SentinelText = "[compacted tool result]"

// SummaryPreamble is the user half of the synthetic turn pair Phase 2
// substitutes for the summarised prefix.
const SummaryPreamble = "Earlier-context summary request"

// SummarizePrompt is the system prompt sent with the Phase 2 summarisation
// call. It is deliberately terse: the call is non-streaming and its only
// consumer is the Agent core's own context budget.
const SummarizePrompt = "Summarise the following conversation prefix concisely, preserving facts, decisions, and open tasks a continuation would need. Do not address the user; produce only the summary text."

// Config holds the thresholds the Compactor enforces.
type Config struct {
	// Threshold is the usage fraction at or above which compaction runs.
	Threshold float64
	// ProtectLastK is the number of most recent turn pairs Phase 1 never
	// truncates and Phase 2 never summarises past.
	ProtectLastK int
	// Model is passed to the provider's non-streaming Complete call for
	// Phase 2 summarisation.
	Model string
}

// DefaultConfig matches the defaults named in the configuration table.
func DefaultConfig() Config {
	return Config{Threshold: 0.80, ProtectLastK: 3}
}

// Compactor decides when and how to shrink a conversation to keep it within
// a model's context window.
type Compactor struct {
	cfg      Config
	provider llm.Provider
}

// New creates a Compactor that calls provider for Phase 2 summarisation.
func New(provider llm.Provider, cfg Config) *Compactor {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.80
	}
	if cfg.ProtectLastK <= 0 {
		cfg.ProtectLastK = 3
	}
	return &Compactor{cfg: cfg, provider: provider}
}

// Result reports which phase ran, if any.
type Result struct {
	DidCompact bool
	Phase      int // 1 or 2; 0 if DidCompact is false
}

// Compact runs the two-phase policy against conv's current state and
// usageFraction, mutating conv in place when it compacts. conv is never
// mutated when usageFraction is below the configured threshold.
func (c *Compactor) Compact(ctx context.Context, conv *models.Conversation, usageFraction float64) (Result, error) {
	if usageFraction < c.cfg.Threshold {
		return Result{}, nil
	}

	if did := c.phase1(conv); did {
		return Result{DidCompact: true, Phase: 1}, nil
	}

	return c.phase2(ctx, conv)
}

// phase1 walks user turns oldest-to-newest and sentinels every tool_result
// not among the last ProtectLastK turns. It never touches tool_use_id or
// is_error, so the pairing invariant survives untouched.
func (c *Compactor) phase1(conv *models.Conversation) bool {
	protectFrom := len(conv.Messages) - c.cfg.ProtectLastK*2
	if protectFrom < 0 {
		protectFrom = 0
	}

	didCompact := false
	for i := range conv.Messages {
		if i >= protectFrom {
			break
		}
		msg := &conv.Messages[i]
		if msg.Role != models.RoleUser {
			continue
		}
		for j := range msg.Content {
			b := &msg.Content[j]
			if b.Type != models.BlockToolResult || b.Text == SentinelText {
				continue
			}
			b.Text = SentinelText
			didCompact = true
		}
	}
	return didCompact
}

// phase2 finds a safe split point and, if one exists, replaces the prefix
// before it with an LLM-produced summary.
func (c *Compactor) phase2(ctx context.Context, conv *models.Conversation) (Result, error) {
	split, ok := c.safeSplitPoint(conv)
	if !ok {
		return Result{}, nil
	}

	prefix := &models.Conversation{Messages: conv.Messages[:split]}
	summary, err := c.summarize(ctx, prefix)
	if err != nil {
		return Result{}, fmt.Errorf("compact: phase 2 summarisation: %w", err)
	}

	suffix := append([]models.Message(nil), conv.Messages[split:]...)
	rewritten := make([]models.Message, 0, len(suffix)+2)
	rewritten = append(rewritten,
		models.Message{Role: models.RoleUser, Content: []models.ContentBlock{models.Text(SummaryPreamble)}},
		models.Message{Role: models.RoleAssistant, Content: []models.ContentBlock{models.Text(summary)}},
	)
	rewritten = append(rewritten, suffix...)
	conv.Messages = rewritten

	return Result{DidCompact: true, Phase: 2}, nil
}

// safeSplitPoint returns the largest index s such that s is a turn
// boundary where the preserved suffix resumes on a user turn, no tool_use
// before s has its matching tool_result at or after s, and the last
// ProtectLastK turns are entirely after s. Returns (0, false) if no such
// index exists. The user-turn constraint matters because phase2 prepends a
// synthetic [user, assistant] pair: a suffix opening on an assistant turn
// would put two assistant turns back to back.
func (c *Compactor) safeSplitPoint(conv *models.Conversation) (int, bool) {
	n := len(conv.Messages)
	protectFrom := n - c.cfg.ProtectLastK*2
	if protectFrom < 0 {
		protectFrom = 0
	}

	pending := make(map[string]bool)
	lastSafe := -1
	for i := 0; i < protectFrom; i++ {
		msg := conv.Messages[i]
		switch msg.Role {
		case models.RoleAssistant:
			for _, use := range msg.ToolUses() {
				pending[use.ToolUseID] = true
			}
		case models.RoleUser:
			for _, res := range msg.ToolResults() {
				delete(pending, res.ToolResultForID)
			}
		}
		if len(pending) == 0 && i+1 < n && conv.Messages[i+1].Role == models.RoleUser {
			lastSafe = i + 1
		}
	}

	if lastSafe <= 0 {
		return 0, false
	}
	return lastSafe, true
}

// summarize issues a non-streaming completion over prefix.
func (c *Compactor) summarize(ctx context.Context, prefix *models.Conversation) (string, error) {
	res, err := c.provider.Complete(ctx, llm.CompletionRequest{
		Model:    c.cfg.Model,
		System:   SummarizePrompt,
		Messages: prefix.Messages,
	})
	if err != nil {
		return "", err
	}
	return res.Text, nil
}
