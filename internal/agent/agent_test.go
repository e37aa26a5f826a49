package agent

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cordialrun/agentrt/internal/eventstore"
	"github.com/cordialrun/agentrt/internal/llm"
	"github.com/cordialrun/agentrt/internal/toolregistry"
	"github.com/cordialrun/agentrt/pkg/models"
)

// scriptedProvider replays a fixed sequence of turns: each call to Stream
// consumes the next scripted turn and ignores the request's content
// beyond counting calls.
type scriptedProvider struct {
	turns []func() []llm.CompletionChunk
	calls int
	delay time.Duration
}

func (p *scriptedProvider) Stream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.CompletionChunk, error) {
	if p.calls >= len(p.turns) {
		p.calls++
		return nil, &llm.ProviderError{Kind: llm.InternalError, Provider: "stub", Cause: nil}
	}
	turn := p.turns[p.calls]
	p.calls++

	out := make(chan llm.CompletionChunk, 8)
	go func() {
		defer close(out)
		if p.delay > 0 {
			time.Sleep(p.delay)
		}
		for _, c := range turn() {
			out <- c
		}
	}()
	return out, nil
}

func (p *scriptedProvider) CountTokens(ctx context.Context, req llm.CompletionRequest) (int, error) {
	return 0, nil
}

func (p *scriptedProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResult, error) {
	return &llm.CompletionResult{Text: "summary"}, nil
}

func endTurnChunk(text string) []llm.CompletionChunk {
	return []llm.CompletionChunk{
		{TextDelta: text},
		{Done: true, StopReason: llm.StopEndTurn, InputTokens: 10, OutputTokens: 5},
	}
}

func echoToolUseChunk(id, arg string) []llm.CompletionChunk {
	input, _ := json.Marshal(map[string]string{"x": arg})
	block := models.ToolUse(id, "echo", input)
	return []llm.CompletionChunk{
		{ToolUse: &block},
		{Done: true, StopReason: llm.StopToolUse, InputTokens: 10, OutputTokens: 5},
	}
}

func drain(t *testing.T, ch <-chan Output) []Output {
	t.Helper()
	var out []Output
	timeout := time.After(2 * time.Second)
	for {
		select {
		case o, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, o)
		case <-timeout:
			t.Fatal("timed out waiting for agent output")
		}
	}
}

func registerEcho(t *testing.T) *toolregistry.Registry {
	t.Helper()
	reg := toolregistry.New(nil)
	schema := json.RawMessage(`{"type":"object","properties":{"x":{"type":"string"}},"required":["x"]}`)
	err := reg.Register("echo", "echoes x", schema, func(ctx context.Context, args json.RawMessage) (string, bool) {
		var in struct {
			X string `json:"x"`
		}
		_ = json.Unmarshal(args, &in)
		return in.X, false
	}, "")
	if err != nil {
		t.Fatalf("register echo: %v", err)
	}
	return reg
}

func TestEchoTurn(t *testing.T) {
	provider := &scriptedProvider{turns: []func() []llm.CompletionChunk{
		func() []llm.CompletionChunk { return endTurnChunk("hi there") },
	}}
	a := New(DefaultConfig(), provider, nil, nil, nil, nil)

	ch, err := a.StreamMessage(context.Background(), "hello", nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	outs := drain(t, ch)

	var sawDone bool
	for _, o := range outs {
		if o.Event != nil && o.Event.Type == models.EventDone {
			sawDone = true
		}
	}
	if !sawDone {
		t.Fatalf("expected a done event")
	}
	if len(a.Conversation().Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(a.Conversation().Messages))
	}
}

func TestSingleToolRoundTrip(t *testing.T) {
	provider := &scriptedProvider{turns: []func() []llm.CompletionChunk{
		func() []llm.CompletionChunk { return echoToolUseChunk("t1", "A") },
		func() []llm.CompletionChunk { return endTurnChunk("done") },
	}}
	a := New(DefaultConfig(), provider, registerEcho(t), nil, nil, nil)

	ch, err := a.StreamMessage(context.Background(), "echo A please", nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	drain(t, ch)

	conv := a.Conversation()
	if len(conv.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(conv.Messages))
	}
	results := conv.Messages[2].ToolResults()
	if len(results) != 1 || results[0].Text != "A" {
		t.Fatalf("expected tool_result content %q, got %+v", "A", results)
	}
	if err := conv.CheckPairing(); err != nil {
		t.Fatalf("pairing invariant violated: %v", err)
	}
}

func TestParallelToolsOrderPreserved(t *testing.T) {
	slowInput, _ := json.Marshal(map[string]string{"x": "slow"})
	fastInput, _ := json.Marshal(map[string]string{"x": "fast"})
	slow := models.ToolUse("slow-id", "delay", slowInput)
	fast := models.ToolUse("fast-id", "delay", fastInput)

	provider := &scriptedProvider{turns: []func() []llm.CompletionChunk{
		func() []llm.CompletionChunk {
			return []llm.CompletionChunk{
				{ToolUse: &slow},
				{ToolUse: &fast},
				{Done: true, StopReason: llm.StopToolUse},
			}
		},
		func() []llm.CompletionChunk { return endTurnChunk("done") },
	}}

	reg := toolregistry.New(nil)
	schema := json.RawMessage(`{"type":"object","properties":{"x":{"type":"string"}},"required":["x"]}`)
	err := reg.Register("delay", "delays", schema, func(ctx context.Context, args json.RawMessage) (string, bool) {
		var in struct {
			X string `json:"x"`
		}
		_ = json.Unmarshal(args, &in)
		if in.X == "slow" {
			time.Sleep(40 * time.Millisecond)
		}
		return in.X, false
	}, "")
	if err != nil {
		t.Fatalf("register delay: %v", err)
	}

	a := New(DefaultConfig(), provider, reg, nil, nil, nil)
	ch, err := a.StreamMessage(context.Background(), "go", nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	drain(t, ch)

	conv := a.Conversation()
	results := conv.Messages[2].ToolResults()
	if len(results) != 2 || results[0].ToolResultForID != "slow-id" || results[1].ToolResultForID != "fast-id" {
		t.Fatalf("expected [slow, fast] order, got %+v", results)
	}
}

func TestIterationCap(t *testing.T) {
	var turns []func() []llm.CompletionChunk
	for i := 0; i < 30; i++ {
		turns = append(turns, func() []llm.CompletionChunk { return echoToolUseChunk("t", "A") })
	}
	provider := &scriptedProvider{turns: turns}

	cfg := DefaultConfig()
	cfg.MaxToolIterations = 3
	a := New(cfg, provider, registerEcho(t), nil, nil, nil)

	ch, err := a.StreamMessage(context.Background(), "loop forever", nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	outs := drain(t, ch)

	var sawCap bool
	for _, o := range outs {
		if o.Event == nil || o.Event.Type != models.EventError {
			continue
		}
		var payload models.ErrorPayload
		_ = json.Unmarshal(o.Event.Payload, &payload)
		if payload.Kind == models.ErrorKindIterationCap {
			sawCap = true
		}
	}
	if !sawCap {
		t.Fatalf("expected an iteration_cap error event")
	}
}

func TestAuthErrorRewindsLastUserTurn(t *testing.T) {
	provider := &scriptedProvider{turns: []func() []llm.CompletionChunk{
		func() []llm.CompletionChunk {
			return []llm.CompletionChunk{
				{Err: &llm.ProviderError{Kind: llm.AuthError, Provider: "stub"}},
			}
		},
	}}
	cfg := DefaultConfig()
	cfg.MaxRetries = 1
	a := New(cfg, provider, nil, nil, nil, nil)

	before := len(a.Conversation().Messages)
	ch, err := a.StreamMessage(context.Background(), "hello", nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	outs := drain(t, ch)

	var sawErr bool
	for _, o := range outs {
		if o.Err != nil {
			sawErr = true
		}
	}
	if !sawErr {
		t.Fatalf("expected a terminal error output")
	}
	if len(a.Conversation().Messages) != before {
		t.Fatalf("expected conversation to revert to pre-call length %d, got %d", before, len(a.Conversation().Messages))
	}
}

func TestResumeFromEventStore(t *testing.T) {
	store := eventstore.New(time.Minute)
	defer store.Stop()

	provider := &scriptedProvider{turns: []func() []llm.CompletionChunk{
		func() []llm.CompletionChunk { return endTurnChunk("hi") },
	}}
	a := New(DefaultConfig(), provider, nil, nil, store, nil)

	ch, err := a.StreamMessage(context.Background(), "hello", nil, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	outs := drain(t, ch)
	if len(outs) == 0 {
		t.Fatal("expected events")
	}

	lastID := outs[len(outs)/2].Event.ID
	replayed, err := store.Read(context.Background(), "s1", lastID, 0)
	if err != nil {
		t.Fatalf("unexpected error reading store: %v", err)
	}
	for _, e := range replayed {
		if e.ID <= lastID {
			t.Fatalf("replay returned event id %d <= after_id %d", e.ID, lastID)
		}
	}
	if store.Status("s1") != models.StreamComplete {
		t.Fatalf("expected stream to be marked complete, got %s", store.Status("s1"))
	}
}
