package llm

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/genai"

	"github.com/cordialrun/agentrt/pkg/models"
)

// GoogleProvider implements Provider against the Gemini API.
type GoogleProvider struct {
	client *genai.Client
	model  string
}

// GoogleConfig configures a GoogleProvider.
type GoogleConfig struct {
	APIKey       string
	DefaultModel string
}

// NewGoogleProvider constructs a Provider backed by Gemini models.
// Name identifies this backend for metrics and trace labels.
func (p *GoogleProvider) Name() string { return "google" }

func NewGoogleProvider(ctx context.Context, cfg GoogleConfig) (*GoogleProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("google: API key required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, NewProviderError("google", cfg.DefaultModel, err)
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GoogleProvider{client: client, model: model}, nil
}

func (p *GoogleProvider) resolveModel(m string) string {
	if m == "" {
		return p.model
	}
	return m
}

func (p *GoogleProvider) buildConfig(req CompletionRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if len(req.Tools) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: toGeminiFunctionDeclarations(req.Tools)}}
	}
	return cfg
}

// Stream issues a streaming generateContent call, translating Gemini's
// response iterator into provider-neutral CompletionChunks. Gemini reports
// usage only on the final response, so InputTokens/OutputTokens are
// attached to the terminal Done chunk.
func (p *GoogleProvider) Stream(ctx context.Context, req CompletionRequest) (<-chan CompletionChunk, error) {
	model := p.resolveModel(req.Model)
	contents, err := toGeminiContents(req.Messages)
	if err != nil {
		return nil, NewProviderError("google", model, err)
	}
	cfg := p.buildConfig(req)

	out := make(chan CompletionChunk)
	go func() {
		defer close(out)
		var inputTokens, outputTokens int
		stopReason := StopEndTurn
		for resp, err := range p.client.Models.GenerateContentStream(ctx, model, contents, cfg) {
			if err != nil {
				out <- CompletionChunk{Err: NewProviderError("google", model, err)}
				return
			}
			if resp == nil {
				continue
			}
			if resp.UsageMetadata != nil {
				inputTokens = int(resp.UsageMetadata.PromptTokenCount)
				outputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
			}
			for _, cand := range resp.Candidates {
				if cand == nil || cand.Content == nil {
					continue
				}
				if cand.FinishReason == genai.FinishReasonMaxTokens {
					stopReason = StopMaxTokens
				}
				for _, part := range cand.Content.Parts {
					if part == nil {
						continue
					}
					if part.Text != "" {
						out <- CompletionChunk{TextDelta: part.Text}
					}
					if part.FunctionCall != nil {
						argsJSON, jerr := json.Marshal(part.FunctionCall.Args)
						if jerr != nil {
							argsJSON = []byte("{}")
						}
						block := models.ToolUse(part.FunctionCall.Name, part.FunctionCall.Name, argsJSON)
						out <- CompletionChunk{ToolUse: &block}
						stopReason = StopToolUse
					}
				}
			}
		}
		out <- CompletionChunk{Done: true, StopReason: stopReason, InputTokens: inputTokens, OutputTokens: outputTokens}
	}()
	return out, nil
}

// Complete issues a non-streaming completion, used only by the Compactor.
func (p *GoogleProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	model := p.resolveModel(req.Model)
	contents, err := toGeminiContents(req.Messages)
	if err != nil {
		return nil, NewProviderError("google", model, err)
	}
	resp, err := p.client.Models.GenerateContent(ctx, model, contents, p.buildConfig(req))
	if err != nil {
		return nil, NewProviderError("google", model, err)
	}
	var text string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			text += part.Text
		}
	}
	result := &CompletionResult{Text: text}
	if resp.UsageMetadata != nil {
		result.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return result, nil
}

// CountTokens returns an offline character-based estimate; Gemini's own
// CountTokens RPC costs a round trip this Agent doesn't need just to decide
// whether to compact.
func (p *GoogleProvider) CountTokens(ctx context.Context, req CompletionRequest) (int, error) {
	return heuristicTokenCount(req), nil
}

func toGeminiContents(messages []models.Message) ([]*genai.Content, error) {
	out := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		content := &genai.Content{}
		if m.Role == models.RoleAssistant {
			content.Role = genai.RoleModel
		} else {
			content.Role = genai.RoleUser
		}
		for _, b := range m.Content {
			switch b.Type {
			case models.BlockText:
				if b.Text != "" {
					content.Parts = append(content.Parts, &genai.Part{Text: b.Text})
				}
			case models.BlockToolUse:
				var args map[string]any
				if len(b.ToolInput) > 0 {
					if err := json.Unmarshal(b.ToolInput, &args); err != nil {
						args = map[string]any{}
					}
				}
				content.Parts = append(content.Parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{Name: b.ToolName, Args: args},
				})
			case models.BlockToolResult:
				var response map[string]any
				if err := json.Unmarshal([]byte(b.Text), &response); err != nil {
					response = map[string]any{"result": b.Text, "error": b.IsError}
				}
				content.Parts = append(content.Parts, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{Name: b.ToolResultForID, Response: response},
				})
			case models.BlockImage:
				content.Parts = append(content.Parts, &genai.Part{
					InlineData: &genai.Blob{Data: b.Data, MIMEType: b.MediaType},
				})
			}
		}
		if len(content.Parts) > 0 {
			out = append(out, content)
		}
	}
	return out, nil
}

func toGeminiFunctionDeclarations(tools []models.ToolDefinition) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		var schema *genai.Schema
		_ = json.Unmarshal(t.Schema, &schema)
		out = append(out, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schema,
		})
	}
	return out
}
