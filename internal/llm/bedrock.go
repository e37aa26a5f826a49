package llm

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/cordialrun/agentrt/pkg/models"
)

// BedrockProvider implements Provider against AWS Bedrock's Converse API,
// giving access to Claude and other Bedrock-hosted models via AWS IAM auth
// instead of a vendor API key.
type BedrockProvider struct {
	client *bedrockruntime.Client
	model  string
}

// BedrockConfig configures a BedrockProvider.
type BedrockConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	DefaultModel    string
}

// NewBedrockProvider constructs a Provider backed by AWS Bedrock.
// Name identifies this backend for metrics and trace labels.
func (p *BedrockProvider) Name() string { return "bedrock" }

func NewBedrockProvider(ctx context.Context, cfg BedrockConfig) (*BedrockProvider, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, NewProviderError("bedrock", cfg.DefaultModel, err)
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	}
	return &BedrockProvider{client: bedrockruntime.NewFromConfig(awsCfg), model: model}, nil
}

func (p *BedrockProvider) resolveModel(m string) string {
	if m == "" {
		return p.model
	}
	return m
}

// Stream issues a ConverseStream request, translating Bedrock's event
// stream into provider-neutral CompletionChunks.
func (p *BedrockProvider) Stream(ctx context.Context, req CompletionRequest) (<-chan CompletionChunk, error) {
	model := p.resolveModel(req.Model)
	messages, err := toBedrockMessages(req.Messages)
	if err != nil {
		return nil, NewProviderError("bedrock", model, err)
	}

	in := &bedrockruntime.ConverseStreamInput{ModelId: aws.String(model), Messages: messages}
	if req.System != "" {
		in.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.System}}
	}
	if req.MaxTokens > 0 {
		in.InferenceConfig = &types.InferenceConfiguration{MaxTokens: aws.Int32(int32(req.MaxTokens))}
	}
	if len(req.Tools) > 0 {
		in.ToolConfig = toBedrockToolConfig(req.Tools)
	}

	stream, err := p.client.ConverseStream(ctx, in)
	if err != nil {
		return nil, NewProviderError("bedrock", model, err)
	}

	out := make(chan CompletionChunk)
	go p.drain(stream, model, out)
	return out, nil
}

func (p *BedrockProvider) drain(stream *bedrockruntime.ConverseStreamOutput, model string, out chan<- CompletionChunk) {
	defer close(out)
	es := stream.GetStream()
	defer es.Close()

	var toolID, toolName string
	var toolInput []byte
	stopReason := StopEndTurn
	var inputTokens, outputTokens int

	for event := range es.Events() {
		switch ev := event.(type) {
		case *types.ConverseStreamOutputMemberContentBlockStart:
			if tu, ok := ev.Value.Start.(*types.ContentBlockStartMemberToolUse); ok {
				toolID = aws.ToString(tu.Value.ToolUseId)
				toolName = aws.ToString(tu.Value.Name)
				toolInput = toolInput[:0]
			}
		case *types.ConverseStreamOutputMemberContentBlockDelta:
			switch delta := ev.Value.Delta.(type) {
			case *types.ContentBlockDeltaMemberText:
				if delta.Value != "" {
					out <- CompletionChunk{TextDelta: delta.Value}
				}
			case *types.ContentBlockDeltaMemberToolUse:
				if delta.Value.Input != nil {
					toolInput = append(toolInput, *delta.Value.Input...)
				}
			}
		case *types.ConverseStreamOutputMemberContentBlockStop:
			if toolID != "" {
				block := models.ToolUse(toolID, toolName, json.RawMessage(append([]byte(nil), toolInput...)))
				out <- CompletionChunk{ToolUse: &block}
				toolID = ""
				stopReason = StopToolUse
			}
		case *types.ConverseStreamOutputMemberMetadata:
			if ev.Value.Usage != nil {
				inputTokens = int(aws.ToInt32(ev.Value.Usage.InputTokens))
				outputTokens = int(aws.ToInt32(ev.Value.Usage.OutputTokens))
			}
		case *types.ConverseStreamOutputMemberMessageStop:
			out <- CompletionChunk{Done: true, StopReason: stopReason, InputTokens: inputTokens, OutputTokens: outputTokens}
			return
		}
	}
	if err := es.Err(); err != nil {
		out <- CompletionChunk{Err: NewProviderError("bedrock", model, err)}
		return
	}
	out <- CompletionChunk{Done: true, StopReason: stopReason, InputTokens: inputTokens, OutputTokens: outputTokens}
}

// Complete issues a non-streaming completion by draining Stream, since
// Bedrock's Converse API (non-stream variant) mirrors the streaming one
// closely enough that reusing the stream path avoids a second conversion.
func (p *BedrockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	chunks, err := p.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	var text string
	var res CompletionResult
	for c := range chunks {
		if c.Err != nil {
			return nil, c.Err
		}
		text += c.TextDelta
		if c.Done {
			res.InputTokens, res.OutputTokens = c.InputTokens, c.OutputTokens
		}
	}
	res.Text = text
	return &res, nil
}

// CountTokens returns an offline character-based estimate.
func (p *BedrockProvider) CountTokens(ctx context.Context, req CompletionRequest) (int, error) {
	return heuristicTokenCount(req), nil
}

func toBedrockMessages(messages []models.Message) ([]types.Message, error) {
	out := make([]types.Message, 0, len(messages))
	for _, m := range messages {
		var content []types.ContentBlock
		for _, b := range m.Content {
			switch b.Type {
			case models.BlockText:
				if b.Text != "" {
					content = append(content, &types.ContentBlockMemberText{Value: b.Text})
				}
			case models.BlockToolUse:
				var input any
				if len(b.ToolInput) > 0 {
					_ = json.Unmarshal(b.ToolInput, &input)
				}
				content = append(content, &types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
					ToolUseId: aws.String(b.ToolUseID),
					Name:      aws.String(b.ToolName),
					Input:     document.NewLazyDocument(input),
				}})
			case models.BlockToolResult:
				content = append(content, &types.ContentBlockMemberToolResult{Value: types.ToolResultBlock{
					ToolUseId: aws.String(b.ToolResultForID),
					Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: b.Text}},
				}})
			case models.BlockImage:
				format, ok := bedrockImageFormat(b.MediaType)
				if !ok {
					continue
				}
				content = append(content, &types.ContentBlockMemberImage{Value: types.ImageBlock{
					Format: format,
					Source: &types.ImageSourceMemberBytes{Value: b.Data},
				}})
			}
		}
		if len(content) == 0 {
			continue
		}
		role := types.ConversationRoleUser
		if m.Role == models.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		out = append(out, types.Message{Role: role, Content: content})
	}
	return out, nil
}

func bedrockImageFormat(mediaType string) (types.ImageFormat, bool) {
	switch mediaType {
	case "image/jpeg", "image/jpg":
		return types.ImageFormatJpeg, true
	case "image/png":
		return types.ImageFormatPng, true
	case "image/gif":
		return types.ImageFormatGif, true
	case "image/webp":
		return types.ImageFormatWebp, true
	default:
		return "", false
	}
}

func toBedrockToolConfig(tools []models.ToolDefinition) *types.ToolConfiguration {
	specs := make([]types.Tool, 0, len(tools))
	for _, t := range tools {
		var schemaDoc any
		_ = json.Unmarshal(t.Schema, &schemaDoc)
		desc := t.Description
		specs = append(specs, &types.ToolMemberToolSpec{Value: types.ToolSpecification{
			Name:        aws.String(t.Name),
			Description: aws.String(desc),
			InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schemaDoc)},
		}})
	}
	return &types.ToolConfiguration{Tools: specs}
}
