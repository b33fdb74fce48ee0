package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/atomchat/atom/backend/internal/model/chat"
)

// Vision answers prompts about an image. It keeps no state between calls.
type Vision interface {
	// Describe sends [text, image], or [image] alone when text is blank.
	Describe(ctx context.Context, text string, img chat.Image) (Reply, error)
}

// VisionClient implements Vision with a multimodal eino chat model.
type VisionClient struct {
	model model.BaseChatModel
}

// NewVisionClient wraps a multimodal chat model.
func NewVisionClient(visionModel model.BaseChatModel) *VisionClient {
	return &VisionClient{model: visionModel}
}

// Describe implements Vision.
func (v *VisionClient) Describe(ctx context.Context, text string, img chat.Image) (Reply, error) {
	if len(img.Data) == 0 {
		return Reply{}, fmt.Errorf("image payload is empty")
	}

	resp, err := v.model.Generate(ctx, []*schema.Message{buildVisionMessage(text, img)})
	if err != nil {
		return Reply{}, fmt.Errorf("failed to run vision model: %w", err)
	}

	log.Printf("[ai] vision reply length=%d, with_text=%t", len(resp.Content), strings.TrimSpace(text) != "")
	return SingleReply(resp.Content), nil
}

func buildVisionMessage(text string, img chat.Image) *schema.Message {
	parts := make([]schema.ChatMessagePart, 0, 2)
	if strings.TrimSpace(text) != "" {
		parts = append(parts, schema.ChatMessagePart{
			Type: schema.ChatMessagePartTypeText,
			Text: text,
		})
	}
	parts = append(parts, schema.ChatMessagePart{
		Type: schema.ChatMessagePartTypeImageURL,
		ImageURL: &schema.ChatMessageImageURL{
			URL:      dataURI(img),
			MIMEType: img.MIMEType,
		},
	})

	return &schema.Message{
		Role:         schema.User,
		MultiContent: parts,
	}
}
