package models

import "encoding/json"

// EventType identifies the kind of a StreamEvent. These eight values are the
// complete set; no others are emitted by the Agent core.
type EventType string

const (
	EventTextDelta     EventType = "text_delta"
	EventToolCallStart EventType = "tool_call_start"
	EventToolCallEnd   EventType = "tool_call_end"
	EventCompactStart  EventType = "compact_start"
	EventCompactEnd    EventType = "compact_end"
	EventUsage         EventType = "usage"
	EventError         EventType = "error"
	EventDone          EventType = "done"
)

// StreamEvent is one entry in a stream's ordered event log. IDs are
// monotonic per stream and stable across resume.
type StreamEvent struct {
	ID      uint64          `json:"id"`
	Type    EventType       `json:"event"`
	Payload json.RawMessage `json:"data"`
}

// TextDeltaPayload carries a fragment of assistant prose.
type TextDeltaPayload struct {
	Delta string `json:"delta"`
}

// ToolCallStartPayload announces a tool call about to run.
type ToolCallStartPayload struct {
	ToolUseID string `json:"tool_use_id"`
	Name      string `json:"name"`
}

// ToolCallEndPayload reports a tool call's outcome.
type ToolCallEndPayload struct {
	ToolUseID string `json:"tool_use_id"`
	Name      string `json:"name"`
	IsError   bool   `json:"is_error"`
}

// CompactPayload reports whether a compaction pass changed the conversation.
type CompactPayload struct {
	Phase      int  `json:"phase"`
	DidCompact bool `json:"did_compact"`
}

// UsagePayload reports token usage for the completed assistant turn.
type UsagePayload struct {
	InputTokens   int     `json:"input_tokens"`
	OutputTokens  int     `json:"output_tokens"`
	UsageFraction float64 `json:"usage_fraction"`
}

// ErrorKind classifies an error event for the caller.
type ErrorKind string

const (
	ErrorKindIterationCap ErrorKind = "iteration_cap"
	ErrorKindProvider     ErrorKind = "provider"
	ErrorKindCancelled    ErrorKind = "cancelled"
	ErrorKindInput        ErrorKind = "input"
)

// ErrorPayload describes an error event.
type ErrorPayload struct {
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Retriable bool      `json:"retriable"`
}

// StreamStatus is the lifecycle state of a Stream Record.
type StreamStatus string

const (
	StreamRunning  StreamStatus = "running"
	StreamComplete StreamStatus = "complete"
	StreamFailed   StreamStatus = "failed"
	StreamUnknown  StreamStatus = "unknown"
)
