// Package agent implements the tool-using conversational loop: the Agent
// core that owns a conversation, drives the streaming model/tool-use loop,
// and orchestrates the token counter, tool registry, skill registry,
// compactor, and event store around a single LLM Provider.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/cordialrun/agentrt/internal/compact"
	"github.com/cordialrun/agentrt/internal/eventstore"
	"github.com/cordialrun/agentrt/internal/llm"
	"github.com/cordialrun/agentrt/internal/observability"
	"github.com/cordialrun/agentrt/internal/skills"
	"github.com/cordialrun/agentrt/internal/tokencount"
	"github.com/cordialrun/agentrt/internal/toolregistry"
	"github.com/cordialrun/agentrt/pkg/models"
)

// Config holds the options table an embedder configures an Agent with.
type Config struct {
	Model               string
	MaxTokens           int
	MaxToolIterations   int
	EnablePromptCaching bool
	MaxRetries          int
	RetryInitialDelay   time.Duration
	SystemPrompt        string
	CompactThreshold    float64
	CompactProtectLastK int
	ContextWindow       int
	MaxInlineBytes      int
	PageBytes           int
	EventStoreTTL       time.Duration
}

// DefaultConfig returns the configuration table's documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens:         4096,
		MaxToolIterations: 25,
		MaxRetries:        3,
		RetryInitialDelay: time.Second,
		CompactThreshold:  0.80,
		ContextWindow:     200_000,
	}
}

// Output is one item in the asynchronous sequence stream_message produces:
// either a plain text fragment, a structured event, or, only when the
// loop cannot continue, a terminal error.
type Output struct {
	Text  string
	Event *models.StreamEvent
	Err   error
}

// Agent drives one conversation against one Provider. It exclusively owns
// its Conversation; the Tool Registry is shared with subagents only
// through explicit Clone, and the Event Store is shared across every
// concurrent Agent in the process.
type Agent struct {
	cfg       Config
	provider  llm.Provider
	registry  *toolregistry.Registry
	skillReg  *skills.Registry
	events    *eventstore.Store
	tokens    *tokencount.Counter
	compactor *compact.Compactor
	logger    *slog.Logger
	metrics   *observability.Metrics
	tracer    *observability.Tracer

	mu   sync.Mutex
	conv *models.Conversation
}

// New constructs an Agent. registry, skillReg, and store may be nil: a nil
// registry runs with no tools, a nil skillReg renders no skill prompt
// fragment, and a nil store disables event persistence (stream_message
// still works, it just cannot be resumed).
func New(cfg Config, provider llm.Provider, registry *toolregistry.Registry, skillReg *skills.Registry, store *eventstore.Store, counter *tokencount.Counter) *Agent {
	if cfg.MaxToolIterations <= 0 {
		cfg.MaxToolIterations = 25
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if counter == nil {
		counter = tokencount.New()
	}
	if registry == nil {
		registry = toolregistry.New(nil)
	}
	registry.SetPageLimits(cfg.MaxInlineBytes, cfg.PageBytes)

	return &Agent{
		cfg:      cfg,
		provider: provider,
		registry: registry,
		skillReg: skillReg,
		events:   store,
		tokens:   counter,
		compactor: compact.New(provider, compact.Config{
			Threshold:    cfg.CompactThreshold,
			ProtectLastK: cfg.CompactProtectLastK,
			Model:        cfg.Model,
		}),
		logger: slog.Default(),
		conv:   &models.Conversation{},
	}
}

// SetLogger overrides the default slog logger.
func (a *Agent) SetLogger(l *slog.Logger) {
	if l != nil {
		a.logger = l
	}
}

// SetMetrics attaches the Prometheus metrics the loop, provider calls, and
// tool dispatch record into. Safe to leave unset: every recording call is
// a no-op on a nil *observability.Metrics.
func (a *Agent) SetMetrics(m *observability.Metrics) { a.metrics = m }

// SetTracer attaches the OpenTelemetry tracer the loop wraps its
// iterations, provider calls, tool dispatch, and compaction in. Safe to
// leave unset: an unset tracer simply skips span creation.
func (a *Agent) SetTracer(t *observability.Tracer) { a.tracer = t }

// SetConversation replaces the owned conversation, e.g. after loading it
// from a session backend. The loaded transcript is repaired first so a
// process that died mid-loop can never hand the Agent a conversation that
// violates the tool_use/tool_result pairing invariant.
func (a *Agent) SetConversation(conv *models.Conversation) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if conv == nil {
		conv = &models.Conversation{}
	}
	repairTranscript(conv)
	a.conv = conv
}

// Conversation returns a read-only snapshot of the owned conversation.
func (a *Agent) Conversation() *models.Conversation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conv.Clone()
}

// Registry returns the tool registry this Agent dispatches tool_use
// blocks against, for callers that need to register tools before the
// first stream_message call.
func (a *Agent) Registry() *toolregistry.Registry { return a.registry }

// Events returns the Event Store this Agent persists stream events to, or
// nil if it was constructed without one. A caller resuming a dropped
// client reads directly from the returned Store with Read(streamID,
// afterID, ...); the Agent itself exposes no resume operation beyond
// supplying the same streamID again to StreamMessage.
func (a *Agent) Events() *eventstore.Store { return a.events }

// StreamMessage normalises content and attachments into a new user turn
// and drives the loop to completion, emitting text fragments and
// structured events on the returned channel. Input errors are raised
// synchronously, before any conversation mutation or provider call; every
// other condition is reported on the channel.
//
// When streamID is non-empty, every emitted event is also appended to the
// Event Store, and the stream is marked complete or failed when the loop
// exits.
func (a *Agent) StreamMessage(ctx context.Context, content string, attachments []models.Attachment, streamID string) (<-chan Output, error) {
	blocks, err := normalizeInput(content, attachments)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.conv.Append(models.Message{Role: models.RoleUser, Content: blocks, CreatedAt: time.Now()})
	a.mu.Unlock()

	out := make(chan Output, 16)
	go a.loop(ctx, out, streamID)
	return out, nil
}

// loop runs the numbered Agent loop until a terminal reason is reached or
// an uncaught error forces an early exit. It always closes out.
func (a *Agent) loop(ctx context.Context, out chan<- Output, streamID string) {
	defer close(out)

	for iteration := 0; ; iteration++ {
		iterCtx := ctx
		var iterSpan trace.Span
		if a.tracer != nil {
			iterCtx, iterSpan = a.tracer.TraceLoopIteration(ctx, iteration)
		}

		if iteration >= a.cfg.MaxToolIterations {
			a.mu.Lock()
			a.conv.Append(models.Message{
				Role:      models.RoleAssistant,
				Content:   []models.ContentBlock{models.Text("Stopped: reached the maximum number of tool-use iterations.")},
				CreatedAt: time.Now(),
			})
			a.mu.Unlock()
			a.emitEvent(ctx, out, streamID, models.EventError, models.ErrorPayload{
				Kind: models.ErrorKindIterationCap, Message: "reached max_tool_iterations", Retriable: false,
			})
			a.emitEvent(ctx, out, streamID, models.EventDone, struct{}{})
			a.markStream(streamID, nil, "")
			a.metrics.RecordLoopIteration("iteration_cap")
			endSpan(iterSpan, nil)
			return
		}

		if ctx.Err() != nil {
			a.emitEvent(ctx, out, streamID, models.EventError, models.ErrorPayload{
				Kind: models.ErrorKindCancelled, Message: ctx.Err().Error(), Retriable: false,
			})
			a.markStream(streamID, ctx.Err(), "cancelled")
			a.metrics.RecordLoopIteration("cancelled")
			endSpan(iterSpan, ctx.Err())
			return
		}

		stopReason, toolUses, err := a.turn(iterCtx, out, streamID)
		if err != nil {
			a.markStream(streamID, err, "provider_error")
			out <- Output{Err: err}
			a.metrics.RecordLoopIteration("error")
			endSpan(iterSpan, err)
			return
		}

		if stopReason != llm.StopToolUse {
			a.emitEvent(ctx, out, streamID, models.EventDone, struct{}{})
			a.markStream(streamID, nil, "")
			a.metrics.RecordLoopIteration("end_turn")
			endSpan(iterSpan, nil)
			return
		}

		a.metrics.RecordLoopIteration("tool_use")
		results := a.dispatchTools(iterCtx, out, streamID, toolUses)
		a.mu.Lock()
		a.conv.Append(models.Message{Role: models.RoleUser, Content: results, CreatedAt: time.Now()})
		a.mu.Unlock()
		endSpan(iterSpan, nil)
	}
}

// endSpan ends span if non-nil, recording err on it first when present.
func endSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

// turn performs steps 2 through 6 of the loop: compact if needed, render
// the system prompt, call the provider, forward its stream, and append
// the resulting assistant turn. It returns the stop reason and any
// tool_use blocks the assistant turn carried.
func (a *Agent) turn(ctx context.Context, out chan<- Output, streamID string) (llm.StopReason, []models.ContentBlock, error) {
	if err := a.maybeCompact(ctx, out, streamID); err != nil {
		a.logger.Warn("compaction failed, continuing with uncompacted conversation", "error", err)
	}

	system := a.renderSystemPrompt()

	a.mu.Lock()
	messages := append([]models.Message(nil), a.conv.Messages...)
	a.mu.Unlock()

	req := llm.CompletionRequest{
		Model:     a.cfg.Model,
		System:    system,
		Messages:  messages,
		Tools:     a.registry.ListDefinitions(),
		MaxTokens: a.cfg.MaxTokens,
	}

	providerName, model := a.providerLabels()
	llmCtx := ctx
	var llmSpan trace.Span
	if a.tracer != nil {
		llmCtx, llmSpan = a.tracer.TraceLLMRequest(ctx, providerName, model)
	}
	requestStart := time.Now()

	var chunks <-chan llm.CompletionChunk
	streamErr := llm.WithRetry(ctx, a.cfg.MaxRetries, a.cfg.RetryInitialDelay, func(attempt int, err error) {
		a.logger.Warn("provider stream retry", "attempt", attempt, "error", err)
	}, func() error {
		ch, err := a.provider.Stream(llmCtx, req)
		if err != nil {
			return err
		}
		chunks = ch
		return nil
	})
	if streamErr != nil {
		a.metrics.RecordLLMRequest(providerName, model, "error", time.Since(requestStart).Seconds(), 0, 0)
		endSpan(llmSpan, streamErr)
		return "", nil, a.handleProviderError(ctx, out, streamID, streamErr)
	}

	var text []byte
	var toolUses []models.ContentBlock
	stopReason := llm.StopEndTurn
	var inputTokens, outputTokens int

	for chunk := range chunks {
		if chunk.Err != nil {
			assistantText := string(text)
			if assistantText != "" || len(toolUses) > 0 {
				a.appendPartialAssistant(assistantText, toolUses)
			}
			a.metrics.RecordLLMRequest(providerName, model, "error", time.Since(requestStart).Seconds(), inputTokens, outputTokens)
			endSpan(llmSpan, chunk.Err)
			return "", nil, a.handleProviderError(ctx, out, streamID, chunk.Err)
		}
		if chunk.TextDelta != "" {
			text = append(text, chunk.TextDelta...)
			out <- Output{Text: chunk.TextDelta}
			a.emitEvent(ctx, out, streamID, models.EventTextDelta, models.TextDeltaPayload{Delta: chunk.TextDelta})
		}
		if chunk.ToolUse != nil {
			toolUses = append(toolUses, *chunk.ToolUse)
		}
		if chunk.Done {
			stopReason = chunk.StopReason
			inputTokens, outputTokens = chunk.InputTokens, chunk.OutputTokens
		}
	}

	blocks := make([]models.ContentBlock, 0, len(toolUses)+1)
	if len(text) > 0 {
		blocks = append(blocks, models.Text(string(text)))
	}
	blocks = append(blocks, toolUses...)

	a.mu.Lock()
	a.conv.Append(models.Message{Role: models.RoleAssistant, Content: blocks, CreatedAt: time.Now()})
	a.mu.Unlock()

	a.tokens.Update(inputTokens, outputTokens)
	usageFraction := a.tokens.UsageFraction(a.cfg.ContextWindow)
	a.emitEvent(ctx, out, streamID, models.EventUsage, models.UsagePayload{
		InputTokens:   inputTokens,
		OutputTokens:  outputTokens,
		UsageFraction: usageFraction,
	})
	a.metrics.RecordLLMRequest(providerName, model, "success", time.Since(requestStart).Seconds(), inputTokens, outputTokens)
	a.metrics.RecordContextWindowUsage(usageFraction)
	endSpan(llmSpan, nil)

	return stopReason, toolUses, nil
}

// providerLabels returns the provider/model pair used to label LLM metrics
// and trace spans: the provider kind from llm.ProviderName and the model
// configured on this Agent.
func (a *Agent) providerLabels() (provider, model string) {
	return llm.ProviderName(a.provider), a.cfg.Model
}

// appendPartialAssistant appends whatever assistant content had
// accumulated before a mid-stream provider error, so the conversation
// remains well-formed (step 10, non-auth branch).
func (a *Agent) appendPartialAssistant(text string, toolUses []models.ContentBlock) {
	blocks := make([]models.ContentBlock, 0, len(toolUses)+1)
	if text != "" {
		blocks = append(blocks, models.Text(text))
	}
	blocks = append(blocks, toolUses...)
	a.mu.Lock()
	a.conv.Append(models.Message{Role: models.RoleAssistant, Content: blocks, CreatedAt: time.Now()})
	a.mu.Unlock()
}

// handleProviderError implements step 10's error policy: an AuthError pops
// the last user turn so the caller can retry the same message; any other
// provider error is left as-is (the partial assistant turn, if any, was
// already appended by the caller) and an error event is emitted before
// re-raising.
func (a *Agent) handleProviderError(ctx context.Context, out chan<- Output, streamID string, err error) error {
	perr, ok := err.(*llm.ProviderError)
	retriable := ok && perr.Kind.Retryable()

	if ok && perr.Kind == llm.AuthError {
		a.mu.Lock()
		a.conv.PopLast()
		a.mu.Unlock()
	}

	a.emitEvent(ctx, out, streamID, models.EventError, models.ErrorPayload{
		Kind: models.ErrorKindProvider, Message: err.Error(), Retriable: retriable,
	})
	errorKind := "unknown"
	if ok {
		errorKind = string(perr.Kind)
	}
	a.metrics.RecordError("provider", errorKind)
	return err
}

// maybeCompact consults the token counter's usage fraction and runs the
// Compactor, publishing compact_start/compact_end only when it actually
// ran.
func (a *Agent) maybeCompact(ctx context.Context, out chan<- Output, streamID string) error {
	threshold := a.cfg.CompactThreshold
	if threshold <= 0 {
		threshold = 0.80
	}
	fraction := a.tokens.UsageFraction(a.cfg.ContextWindow)
	if fraction < threshold {
		return nil
	}

	a.mu.Lock()
	conv := a.conv
	a.mu.Unlock()

	compactCtx := ctx
	var compactSpan trace.Span
	if a.tracer != nil {
		compactCtx, compactSpan = a.tracer.TraceCompaction(ctx)
	}

	a.emitEvent(ctx, out, streamID, models.EventCompactStart, models.CompactPayload{})
	res, err := a.compactor.Compact(compactCtx, conv, fraction)
	a.emitEvent(ctx, out, streamID, models.EventCompactEnd, models.CompactPayload{Phase: res.Phase, DidCompact: res.DidCompact})
	a.metrics.RecordCompaction(res.Phase)
	endSpan(compactSpan, err)
	return err
}

// renderSystemPrompt composes the base system prompt with the skill
// registry's Phase 1/2 injections, re-rendered on every turn since skill
// state may have changed since the last call.
func (a *Agent) renderSystemPrompt() string {
	system := a.cfg.SystemPrompt
	if a.skillReg == nil {
		return system
	}
	fragment := a.skillReg.RenderPrompt()
	if fragment == "" {
		return system
	}
	if system == "" {
		return fragment
	}
	return system + "\n\n" + fragment
}

// dispatchTools runs every tool_use block concurrently, preserving the
// original order of toolUses in the returned tool_result blocks regardless
// of completion order.
func (a *Agent) dispatchTools(ctx context.Context, out chan<- Output, streamID string, toolUses []models.ContentBlock) []models.ContentBlock {
	results := make([]models.ContentBlock, len(toolUses))
	var g errgroup.Group

	for i, use := range toolUses {
		i, use := i, use
		g.Go(func() error {
			a.emitEvent(ctx, out, streamID, models.EventToolCallStart, models.ToolCallStartPayload{
				ToolUseID: use.ToolUseID, Name: use.ToolName,
			})

			toolCtx := ctx
			var toolSpan trace.Span
			if a.tracer != nil {
				toolCtx, toolSpan = a.tracer.TraceToolExecution(ctx, use.ToolName)
			}
			start := time.Now()
			text, isError := a.registry.Execute(toolCtx, use.ToolUseID, use.ToolName, use.ToolInput)
			status := "success"
			if isError {
				status = "error"
			}
			a.metrics.RecordToolExecution(use.ToolName, status, time.Since(start).Seconds())
			endSpan(toolSpan, nil)

			text = redactSecrets(text)
			results[i] = models.ToolResult(use.ToolUseID, text, isError)

			a.emitEvent(ctx, out, streamID, models.EventToolCallEnd, models.ToolCallEndPayload{
				ToolUseID: use.ToolUseID, Name: use.ToolName, IsError: isError,
			})
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// emitEvent sends a structured event on out and, when streamID is
// non-empty, appends it to the Event Store. Event-store failures are
// logged, never fatal to the loop.
func (a *Agent) emitEvent(ctx context.Context, out chan<- Output, streamID string, typ models.EventType, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		a.logger.Warn("failed to marshal event payload", "event", typ, "error", err)
		return
	}
	event := models.StreamEvent{Type: typ, Payload: raw}

	if streamID != "" && a.events != nil {
		appended, err := a.events.Append(ctx, streamID, event)
		if err != nil {
			a.logger.Warn("event store append failed", "stream_id", streamID, "event", typ, "error", err)
		} else {
			event = appended
		}
	}
	out <- Output{Event: &event}
}

// markStream reports the loop's outcome to the Event Store. reason is
// informational only; it is not surfaced in any event payload beyond what
// handleProviderError and the iteration-cap branch already emitted.
func (a *Agent) markStream(streamID string, err error, reason string) {
	if streamID == "" || a.events == nil {
		return
	}
	if err != nil {
		if markErr := a.events.MarkFailed(streamID, fmt.Sprintf("%s: %v", reason, err)); markErr != nil {
			a.logger.Warn("event store mark-failed failed", "stream_id", streamID, "error", markErr)
		}
		return
	}
	if markErr := a.events.MarkComplete(streamID); markErr != nil {
		a.logger.Warn("event store mark-complete failed", "stream_id", streamID, "error", markErr)
	}
}
