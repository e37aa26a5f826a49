package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cordialrun/agentrt/pkg/models"
)

// OpenAIProvider implements Provider against OpenAI's chat completions API.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// NewOpenAIProvider constructs a Provider backed by OpenAI's GPT models.
// Name identifies this backend for metrics and trace labels.
func (p *OpenAIProvider) Name() string { return "openai" }

func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.DefaultModel
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(clientCfg), model: model}, nil
}

func (p *OpenAIProvider) buildRequest(req CompletionRequest, stream bool) (openai.ChatCompletionRequest, error) {
	messages, err := toOpenAIMessages(req.Messages, req.System)
	if err != nil {
		return openai.ChatCompletionRequest{}, err
	}
	model := req.Model
	if model == "" {
		model = p.model
	}
	out := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
		Stream:    stream,
	}
	if len(req.Tools) > 0 {
		out.Tools = toOpenAITools(req.Tools)
	}
	return out, nil
}

// Stream issues a streaming chat completion, translating OpenAI's delta
// events into provider-neutral CompletionChunks. Tool-call argument
// fragments are buffered per index and only surfaced once complete, since a
// tool cannot be dispatched on partial JSON.
func (p *OpenAIProvider) Stream(ctx context.Context, req CompletionRequest) (<-chan CompletionChunk, error) {
	chatReq, err := p.buildRequest(req, true)
	if err != nil {
		return nil, NewProviderError("openai", req.Model, err)
	}
	stream, err := p.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, NewProviderError("openai", req.Model, err)
	}

	out := make(chan CompletionChunk)
	go p.drain(stream, req.Model, out)
	return out, nil
}

func (p *OpenAIProvider) drain(stream *openai.ChatCompletionStream, model string, out chan<- CompletionChunk) {
	defer close(out)
	defer stream.Close()

	type building struct {
		id, name string
		args     []byte
	}
	calls := map[int]*building{}
	order := []int{}
	var inputTokens, outputTokens int
	stopReason := StopEndTurn

	flush := func() {
		for _, idx := range order {
			c := calls[idx]
			if c == nil || c.id == "" {
				continue
			}
			block := models.ToolUse(c.id, c.name, json.RawMessage(c.args))
			out <- CompletionChunk{ToolUse: &block}
		}
		calls = map[int]*building{}
		order = nil
	}

	for {
		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				flush()
				out <- CompletionChunk{Done: true, StopReason: stopReason, InputTokens: inputTokens, OutputTokens: outputTokens}
				return
			}
			out <- CompletionChunk{Err: NewProviderError("openai", model, err)}
			return
		}
		if resp.Usage != nil {
			inputTokens = resp.Usage.PromptTokens
			outputTokens = resp.Usage.CompletionTokens
		}
		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]
		if choice.Delta.Content != "" {
			out <- CompletionChunk{TextDelta: choice.Delta.Content}
		}
		for _, tc := range choice.Delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			c, ok := calls[idx]
			if !ok {
				c = &building{}
				calls[idx] = c
				order = append(order, idx)
			}
			if tc.ID != "" {
				c.id = tc.ID
			}
			if tc.Function.Name != "" {
				c.name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				c.args = append(c.args, tc.Function.Arguments...)
			}
		}
		switch choice.FinishReason {
		case openai.FinishReasonToolCalls:
			stopReason = StopToolUse
		case openai.FinishReasonLength:
			stopReason = StopMaxTokens
		}
	}
}

// Complete issues a non-streaming completion, used only by the Compactor.
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	chatReq, err := p.buildRequest(req, false)
	if err != nil {
		return nil, NewProviderError("openai", req.Model, err)
	}
	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, NewProviderError("openai", req.Model, err)
	}
	var text string
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}
	return &CompletionResult{
		Text:         text,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// CountTokens returns an offline character-based estimate; OpenAI's own
// tiktoken-accurate counting is a separate library this provider does not
// depend on, since the Agent only needs this for a compaction threshold
// decision, not a billing-accurate count.
func (p *OpenAIProvider) CountTokens(ctx context.Context, req CompletionRequest) (int, error) {
	return heuristicTokenCount(req), nil
}

func toOpenAIMessages(messages []models.Message, system string) ([]openai.ChatCompletionMessage, error) {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		if m.Role == models.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		var text string
		var toolCalls []openai.ToolCall
		for _, b := range m.Content {
			switch b.Type {
			case models.BlockText:
				text += b.Text
			case models.BlockToolUse:
				toolCalls = append(toolCalls, openai.ToolCall{
					ID:   b.ToolUseID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      b.ToolName,
						Arguments: string(b.ToolInput),
					},
				})
			case models.BlockToolResult:
				out = append(out, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    b.Text,
					ToolCallID: b.ToolResultForID,
				})
			}
		}
		if text != "" || len(toolCalls) > 0 {
			out = append(out, openai.ChatCompletionMessage{Role: role, Content: text, ToolCalls: toolCalls})
		}
	}
	return out, nil
}

func toOpenAITools(tools []models.ToolDefinition) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		var params any
		_ = json.Unmarshal(t.Schema, &params)
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out
}
