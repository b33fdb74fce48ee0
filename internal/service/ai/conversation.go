package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/atomchat/atom/backend/internal/model/chat"
)

var (
	ErrAlreadyPrimed = errors.New("conversation already primed")
	ErrEmptyMessage  = errors.New("message is empty")
)

// Conversation is a stateful multi-turn dialogue with a chat model.
type Conversation interface {
	// Prime sends the persona message that precedes every user turn.
	Prime(ctx context.Context, text string) error
	// Send appends a user turn and returns the model's reply. The exchange is
	// recorded in history only once the reply has been fully collected.
	Send(ctx context.Context, text string) (Reply, error)
	// History returns a copy of the recorded exchanges, oldest first.
	History() []chat.Message
}

// ChatConfig tunes a ChatSession.
type ChatConfig struct {
	// Stream requests incremental output from the model.
	Stream bool
	// HistoryLimit caps how many recorded messages (user and assistant counted
	// separately) are replayed to the model; zero or negative replays everything.
	// The priming exchange is always sent and not counted.
	HistoryLimit int
}

// ChatSession implements Conversation on top of an eino chat model.
type ChatSession struct {
	model model.BaseChatModel
	cfg   ChatConfig
	now   func() time.Time

	mu      sync.Mutex
	primed  bool
	priming []chat.Message
	turns   []chat.Message
}

// NewChatSession creates an unprimed conversation.
func NewChatSession(chatModel model.BaseChatModel, cfg ChatConfig) *ChatSession {
	return &ChatSession{
		model: chatModel,
		cfg:   cfg,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Prime implements Conversation.
func (c *ChatSession) Prime(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.primed {
		return ErrAlreadyPrimed
	}

	resp, err := c.model.Generate(ctx, []*schema.Message{schema.UserMessage(text)})
	if err != nil {
		return fmt.Errorf("failed to send priming message: %w", err)
	}

	c.priming = []chat.Message{
		{Role: chat.RoleUser, Content: text, CreatedAt: c.now()},
		{Role: chat.RoleAssistant, Content: resp.Content, CreatedAt: c.now()},
	}
	c.primed = true
	log.Printf("[ai] conversation primed, reply length=%d", len(resp.Content))
	return nil
}

// Primed reports whether Prime has succeeded.
func (c *ChatSession) Primed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.primed
}

// Send implements Conversation.
func (c *ChatSession) Send(ctx context.Context, text string) (Reply, error) {
	if strings.TrimSpace(text) == "" {
		return Reply{}, ErrEmptyMessage
	}

	input := c.buildInput(text)
	asked := c.now()

	if !c.cfg.Stream {
		resp, err := c.model.Generate(ctx, input)
		if err != nil {
			return Reply{}, fmt.Errorf("failed to generate reply: %w", err)
		}
		return SingleReply(resp.Content).withDone(c.commit(text, asked)), nil
	}

	stream, err := c.model.Stream(ctx, input)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to stream reply: %w", err)
	}

	fragments := schema.StreamReaderWithConvert(stream, func(msg *schema.Message) (string, error) {
		if msg == nil {
			return "", schema.ErrNoValue
		}
		return msg.Content, nil
	})

	return StreamReply(fragments, c.commit(text, asked)), nil
}

// History implements Conversation.
func (c *ChatSession) History() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]chat.Message, 0, len(c.priming)+len(c.turns))
	out = append(out, c.priming...)
	out = append(out, c.turns...)
	return out
}

func (c *ChatSession) commit(question string, asked time.Time) func(string) {
	return func(answer string) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.turns = append(c.turns,
			chat.Message{Role: chat.RoleUser, Content: question, CreatedAt: asked},
			chat.Message{Role: chat.RoleAssistant, Content: answer, CreatedAt: c.now()},
		)
	}
}

func (c *ChatSession) buildInput(text string) []*schema.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	turns := c.turns
	if limit := c.cfg.HistoryLimit; limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
		if len(turns) > 0 && turns[0].Role == chat.RoleAssistant {
			turns = turns[1:]
		}
	}

	input := make([]*schema.Message, 0, len(c.priming)+len(turns)+1)
	for _, msg := range append(append([]chat.Message(nil), c.priming...), turns...) {
		switch msg.Role {
		case chat.RoleUser:
			input = append(input, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			input = append(input, schema.AssistantMessage(msg.Content, nil))
		}
	}

	return append(input, schema.UserMessage(text))
}
