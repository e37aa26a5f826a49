// Package llm defines the provider-neutral completion contract every model
// backend implements, plus the four concrete backends the agent core can be
// configured with (Anthropic, OpenAI, Gemini, Bedrock).
package llm

import (
	"context"

	"github.com/cordialrun/agentrt/pkg/models"
)

// StopReason is why a completion stopped producing output.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
)

// CompletionRequest is a provider-neutral request to produce the next
// assistant turn.
type CompletionRequest struct {
	Model       string
	System      string
	Messages    []models.Message
	Tools       []models.ToolDefinition
	MaxTokens   int
	Temperature float64
}

// CompletionChunk is one increment of a streamed completion. Exactly one of
// TextDelta, ToolUse, or a terminal field (Done/Err) is meaningful per
// chunk.
type CompletionChunk struct {
	TextDelta string

	// ToolUse carries a complete tool_use block once the provider has
	// finished streaming its arguments; providers buffer partial tool-call
	// JSON internally rather than surfacing incremental fragments, since a
	// tool cannot be dispatched until its arguments are whole.
	ToolUse *models.ContentBlock

	Done         bool
	StopReason   StopReason
	InputTokens  int
	OutputTokens int
	Err          error
}

// CompletionResult is the outcome of a non-streaming Complete call, used
// only by the Compactor for summarisation.
type CompletionResult struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Provider is the contract every model backend implements. Exactly one
// Provider is active per Agent instance; there is no cross-provider
// failover.
type Provider interface {
	// Stream issues a streaming completion request. The returned channel is
	// closed after a final chunk with Done=true or a chunk carrying Err.
	Stream(ctx context.Context, req CompletionRequest) (<-chan CompletionChunk, error)

	// CountTokens returns an offline estimate of req's token size, used to
	// decide whether to compact before the provider is actually called.
	CountTokens(ctx context.Context, req CompletionRequest) (int, error)

	// Complete issues a non-streaming completion, used only by the
	// Compactor to summarise a conversation prefix.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error)
}

// named is implemented by every concrete backend to label metrics and
// trace spans; a Provider supplied by a caller (e.g. a test double) that
// doesn't implement it is labelled "unknown" rather than panicking.
type named interface {
	Name() string
}

// ProviderName returns p's backend name ("anthropic", "openai", "google",
// "bedrock") for metrics and tracing labels, or "unknown" if p doesn't
// identify itself.
func ProviderName(p Provider) string {
	if n, ok := p.(named); ok {
		return n.Name()
	}
	return "unknown"
}
