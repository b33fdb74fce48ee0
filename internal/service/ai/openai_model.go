package ai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIModelConfig holds request defaults for OpenAIChatModel.
type OpenAIModelConfig struct {
	Model       string
	Temperature *float32
	TopP        *float32
	MaxTokens   *int
}

// OpenAIChatModel adapts an OpenAI-compatible chat completion API to the
// eino BaseChatModel interface, including image parts for vision models.
type OpenAIChatModel struct {
	client *openai.Client
	cfg    OpenAIModelConfig
}

var _ model.BaseChatModel = (*OpenAIChatModel)(nil)

// NewOpenAIChatModel wraps a go-openai client.
func NewOpenAIChatModel(client *openai.Client, cfg OpenAIModelConfig) *OpenAIChatModel {
	return &OpenAIChatModel{client: client, cfg: cfg}
}

// Generate implements model.BaseChatModel.
func (m *OpenAIChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	req, err := m.buildRequest(input, opts)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai chat completion returned no choices")
	}

	return schema.AssistantMessage(resp.Choices[0].Message.Content, nil), nil
}

// Stream implements model.BaseChatModel. Deltas are forwarded in order; a
// transport error terminates the stream with that error.
func (m *OpenAIChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	req, err := m.buildRequest(input, opts)
	if err != nil {
		return nil, err
	}
	req.Stream = true

	upstream, err := m.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai chat stream failed: %w", err)
	}

	reader, writer := schema.Pipe[*schema.Message](8)
	go func() {
		defer writer.Close()
		defer upstream.Close()

		for {
			chunk, recvErr := upstream.Recv()
			if errors.Is(recvErr, io.EOF) {
				return
			}
			if recvErr != nil {
				writer.Send(nil, fmt.Errorf("openai stream receive failed: %w", recvErr))
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			if closed := writer.Send(schema.AssistantMessage(chunk.Choices[0].Delta.Content, nil), nil); closed {
				return
			}
		}
	}()

	return reader, nil
}

func (m *OpenAIChatModel) buildRequest(input []*schema.Message, opts []model.Option) (openai.ChatCompletionRequest, error) {
	options := model.GetCommonOptions(&model.Options{
		Model:       &m.cfg.Model,
		Temperature: m.cfg.Temperature,
		TopP:        m.cfg.TopP,
		MaxTokens:   m.cfg.MaxTokens,
	}, opts...)

	messages := make([]openai.ChatCompletionMessage, 0, len(input))
	for _, msg := range input {
		converted, err := toOpenAIMessage(msg)
		if err != nil {
			return openai.ChatCompletionRequest{}, err
		}
		messages = append(messages, converted)
	}

	req := openai.ChatCompletionRequest{Messages: messages}
	if options.Model != nil {
		req.Model = *options.Model
	}
	if options.Temperature != nil {
		req.Temperature = *options.Temperature
	}
	if options.TopP != nil {
		req.TopP = *options.TopP
	}
	if options.MaxTokens != nil {
		req.MaxTokens = *options.MaxTokens
	}
	return req, nil
}

func toOpenAIMessage(msg *schema.Message) (openai.ChatCompletionMessage, error) {
	if msg == nil {
		return openai.ChatCompletionMessage{}, fmt.Errorf("nil message in chat input")
	}

	var role string
	switch msg.Role {
	case schema.System:
		role = openai.ChatMessageRoleSystem
	case schema.User:
		role = openai.ChatMessageRoleUser
	case schema.Assistant:
		role = openai.ChatMessageRoleAssistant
	default:
		return openai.ChatCompletionMessage{}, fmt.Errorf("unsupported message role %q", msg.Role)
	}

	if len(msg.MultiContent) == 0 {
		return openai.ChatCompletionMessage{Role: role, Content: msg.Content}, nil
	}

	parts := make([]openai.ChatMessagePart, 0, len(msg.MultiContent))
	for _, part := range msg.MultiContent {
		switch part.Type {
		case schema.ChatMessagePartTypeText:
			parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: part.Text})
		case schema.ChatMessagePartTypeImageURL:
			if part.ImageURL == nil {
				continue
			}
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: part.ImageURL.URL, Detail: openai.ImageURLDetailAuto},
			})
		default:
			return openai.ChatCompletionMessage{}, fmt.Errorf("unsupported content part %q", part.Type)
		}
	}

	return openai.ChatCompletionMessage{Role: role, MultiContent: parts}, nil
}
