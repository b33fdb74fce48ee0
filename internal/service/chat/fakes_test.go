package chat_test

import (
	"context"
	"errors"
	"sync"

	"github.com/cloudwego/eino/schema"

	chatmodel "github.com/atomchat/atom/backend/internal/model/chat"
	speechmodel "github.com/atomchat/atom/backend/internal/model/speech"
	"github.com/atomchat/atom/backend/internal/service/ai"
)

type fakeConversation struct {
	mu        sync.Mutex
	fragments []string
	sendErr   error
	primeErr  error
	primes    []string
	sent      []string
	history   []chatmodel.Message
}

func (f *fakeConversation) Prime(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.primeErr != nil {
		return f.primeErr
	}
	if len(f.primes) > 0 {
		return ai.ErrAlreadyPrimed
	}
	f.primes = append(f.primes, text)
	return nil
}

func (f *fakeConversation) Send(_ context.Context, text string) (ai.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	if f.sendErr != nil {
		return ai.Reply{}, f.sendErr
	}

	stream := schema.StreamReaderFromArray(append([]string(nil), f.fragments...))
	return ai.StreamReply(stream, func(full string) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.history = append(f.history,
			chatmodel.Message{Role: chatmodel.RoleUser, Content: text},
			chatmodel.Message{Role: chatmodel.RoleAssistant, Content: full},
		)
	}), nil
}

func (f *fakeConversation) History() []chatmodel.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chatmodel.Message(nil), f.history...)
}

func (f *fakeConversation) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type visionCall struct {
	text  string
	image chatmodel.Image
}

type fakeVision struct {
	mu    sync.Mutex
	reply string
	err   error
	calls []visionCall
}

func (f *fakeVision) Describe(_ context.Context, text string, img chatmodel.Image) (ai.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, visionCall{text: text, image: img})
	if f.err != nil {
		return ai.Reply{}, f.err
	}
	return ai.SingleReply(f.reply), nil
}

func (f *fakeVision) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeSpeech struct {
	mu    sync.Mutex
	audio []byte
	fail  bool
	texts []string
	reqs  []speechmodel.TTSRequest
}

func (f *fakeSpeech) SynthesizeSpeech(_ context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, req.Text)
	f.reqs = append(f.reqs, *req)
	if f.fail {
		return nil, errors.New("tts unavailable")
	}
	return &speechmodel.TTSResponse{AudioData: f.audio, Format: "mp3"}, nil
}

func (f *fakeSpeech) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *fakeSpeech) lastRequest() speechmodel.TTSRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.reqs) == 0 {
		return speechmodel.TTSRequest{}
	}
	return f.reqs[len(f.reqs)-1]
}
