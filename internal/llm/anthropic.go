package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/cordialrun/agentrt/pkg/models"
)

func encodeBase64(data []byte) string { return base64.StdEncoding.EncodeToString(data) }

// AnthropicProvider implements Provider against Anthropic's Messages API.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

// AnthropicConfig configures an AnthropicProvider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// NewAnthropicProvider constructs a Provider backed by Claude models.
// Name identifies this backend for metrics and trace labels.
func (p *AnthropicProvider) Name() string { return "anthropic" }

func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "claude-sonnet-4-5-20250929"
	}
	return &AnthropicProvider{client: anthropic.NewClient(opts...), model: model}, nil
}

func (p *AnthropicProvider) resolveModel(m string) anthropic.Model {
	if m == "" {
		m = p.model
	}
	return anthropic.Model(m)
}

func (p *AnthropicProvider) buildParams(req CompletionRequest) (anthropic.MessageNewParams, error) {
	messages, err := toAnthropicMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	params := anthropic.MessageNewParams{
		Model:     p.resolveModel(req.Model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := toAnthropicTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = tools
	}
	return params, nil
}

// Stream issues a streaming completion request, translating Anthropic SSE
// events into provider-neutral CompletionChunks.
func (p *AnthropicProvider) Stream(ctx context.Context, req CompletionRequest) (<-chan CompletionChunk, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, NewProviderError("anthropic", req.Model, err)
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	out := make(chan CompletionChunk)
	go p.drain(stream, req.Model, out)
	return out, nil
}

func (p *AnthropicProvider) drain(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], model string, out chan<- CompletionChunk) {
	defer close(out)

	var toolID, toolName string
	var toolInput []byte
	var inputTokens, outputTokens int

	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "message_start":
			ms := event.AsMessageStart()
			inputTokens = int(ms.Message.Usage.InputTokens)
		case "content_block_start":
			cb := event.AsContentBlockStart().ContentBlock
			if cb.Type == "tool_use" {
				tu := cb.AsToolUse()
				toolID, toolName = tu.ID, tu.Name
				toolInput = toolInput[:0]
			}
		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					out <- CompletionChunk{TextDelta: delta.Text}
				}
			case "input_json_delta":
				toolInput = append(toolInput, delta.PartialJSON...)
			}
		case "content_block_stop":
			if toolID != "" {
				block := models.ToolUse(toolID, toolName, json.RawMessage(append([]byte(nil), toolInput...)))
				out <- CompletionChunk{ToolUse: &block}
				toolID, toolName = "", ""
			}
		case "message_delta":
			md := event.AsMessageDelta()
			if md.Usage.OutputTokens > 0 {
				outputTokens = int(md.Usage.OutputTokens)
			}
			out <- CompletionChunk{
				Done:         true,
				StopReason:   mapStopReason(string(md.Delta.StopReason)),
				InputTokens:  inputTokens,
				OutputTokens: outputTokens,
			}
			return
		}
	}
	if err := stream.Err(); err != nil {
		out <- CompletionChunk{Err: NewProviderError("anthropic", model, err)}
	}
}

func mapStopReason(r string) StopReason {
	switch r {
	case "tool_use":
		return StopToolUse
	case "max_tokens":
		return StopMaxTokens
	default:
		return StopEndTurn
	}
}

// Complete issues a non-streaming completion, used only by the Compactor.
func (p *AnthropicProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, NewProviderError("anthropic", req.Model, err)
	}
	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, NewProviderError("anthropic", req.Model, err)
	}
	var text string
	for _, b := range msg.Content {
		if b.Type == "text" {
			text += b.AsText().Text
		}
	}
	return &CompletionResult{
		Text:         text,
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}

// CountTokens returns an offline character-based estimate of req's token
// size. The Anthropic SDK's own count_tokens endpoint makes a network call
// and is reserved for billing-accurate estimates; the Agent only needs this
// to decide whether to compact before actually calling the provider, so a
// cheap ~4-chars-per-token local heuristic is enough.
func (p *AnthropicProvider) CountTokens(ctx context.Context, req CompletionRequest) (int, error) {
	return heuristicTokenCount(req), nil
}

func heuristicTokenCount(req CompletionRequest) int {
	chars := len(req.System)
	for _, m := range req.Messages {
		for _, b := range m.Content {
			chars += len(b.Text)
		}
	}
	return (chars + 3) / 4
}

func toAnthropicMessages(messages []models.Message) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Content))
		for _, b := range m.Content {
			switch b.Type {
			case models.BlockText:
				blocks = append(blocks, anthropic.NewTextBlock(b.Text))
			case models.BlockToolUse:
				var input any
				if len(b.ToolInput) > 0 {
					if err := json.Unmarshal(b.ToolInput, &input); err != nil {
						return nil, fmt.Errorf("decoding tool_use input for %s: %w", b.ToolName, err)
					}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(b.ToolUseID, input, b.ToolName))
			case models.BlockToolResult:
				blocks = append(blocks, anthropic.NewToolResultBlock(b.ToolResultForID, b.Text, b.IsError))
			case models.BlockImage:
				mt, ok := anthropicImageMediaType(b.MediaType)
				if !ok {
					continue
				}
				blocks = append(blocks, anthropic.ContentBlockParamUnion{OfImage: &anthropic.ImageBlockParam{
					Source: anthropic.ImageBlockParamSourceUnion{
						OfBase64: &anthropic.Base64ImageSourceParam{Data: encodeBase64(b.Data), MediaType: mt},
					},
				}})
			case models.BlockDocument:
				blocks = append(blocks, anthropic.ContentBlockParamUnion{OfDocument: &anthropic.DocumentBlockParam{
					Source: anthropic.DocumentBlockParamSourceUnion{
						OfBase64: &anthropic.Base64PDFSourceParam{Data: encodeBase64(b.Data)},
					},
				}})
			}
		}
		if m.Role == models.RoleUser {
			out = append(out, anthropic.NewUserMessage(blocks...))
		} else {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		}
	}
	return out, nil
}

func anthropicImageMediaType(mediaType string) (anthropic.Base64ImageSourceMediaType, bool) {
	switch mediaType {
	case "image/jpeg", "image/jpg":
		return anthropic.Base64ImageSourceMediaTypeImageJPEG, true
	case "image/png":
		return anthropic.Base64ImageSourceMediaTypeImagePNG, true
	case "image/gif":
		return anthropic.Base64ImageSourceMediaTypeImageGIF, true
	case "image/webp":
		return anthropic.Base64ImageSourceMediaTypeImageWebP, true
	default:
		return "", false
	}
}

func toAnthropicTools(tools []models.ToolDefinition) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(t.Schema, &schema); err != nil {
			return nil, fmt.Errorf("tool %s: invalid schema: %w", t.Name, err)
		}
		param := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if param.OfTool != nil {
			param.OfTool.Description = anthropic.String(t.Description)
		}
		out = append(out, param)
	}
	return out, nil
}
