package ai

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// fakeChatModel records inputs and replays canned answers.
type fakeChatModel struct {
	mu sync.Mutex

	reply     string
	fragments []string
	err       error
	streamErr error

	generateInputs [][]*schema.Message
	streamInputs   [][]*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generateInputs = append(f.generateInputs, input)
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamInputs = append(f.streamInputs, input)
	if f.err != nil {
		return nil, f.err
	}

	reader, writer := schema.Pipe[*schema.Message](len(f.fragments) + 1)
	for _, fragment := range f.fragments {
		writer.Send(schema.AssistantMessage(fragment, nil), nil)
	}
	if f.streamErr != nil {
		writer.Send(nil, f.streamErr)
	}
	writer.Close()
	return reader, nil
}
