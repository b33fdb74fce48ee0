package speech

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/atomchat/atom/backend/internal/model/speech"
)

var (
	// ErrEmptyText 表示没有可朗读的文本
	ErrEmptyText = errors.New("TTS text is empty")
	// ErrNoProvider 表示没有可用的合成服务
	ErrNoProvider = errors.New("no speech provider configured")
)

const defaultSynthesisTimeout = 30 * time.Second

// Synthesizer 是单个语音合成服务
type Synthesizer interface {
	Name() speech.Provider
	Synthesize(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error)
}

// Service 语音服务：主服务失败时按配置回退到其他服务
type Service struct {
	providers []Synthesizer
	fallback  bool
	timeout   time.Duration
}

// NewService 根据配置创建语音服务，主服务排在首位
func NewService(config *speech.SpeechConfig) *Service {
	volc := NewVolcengineTTSClient(config)
	google := NewGoogleTranslateTTSClient(config)

	var providers []Synthesizer
	switch config.Provider {
	case speech.ProviderVolcengine:
		providers = []Synthesizer{volc, google}
	default:
		providers = []Synthesizer{google}
		if config.VolcengineReady() {
			providers = append(providers, volc)
		}
	}

	timeout := defaultSynthesisTimeout
	if config.Timeout > 0 {
		timeout = time.Duration(config.Timeout) * time.Second
	}

	return NewServiceWithProviders(timeout, config.Fallback, providers...)
}

// NewServiceWithProviders 使用给定的服务列表创建语音服务
func NewServiceWithProviders(timeout time.Duration, fallback bool, providers ...Synthesizer) *Service {
	if timeout <= 0 {
		timeout = defaultSynthesisTimeout
	}
	return &Service{
		providers: providers,
		fallback:  fallback,
		timeout:   timeout,
	}
}

// Providers 返回按优先级排列的服务名
func (s *Service) Providers() []speech.Provider {
	names := make([]speech.Provider, 0, len(s.providers))
	for _, p := range s.providers {
		names = append(names, p.Name())
	}
	return names
}

// SynthesizeSpeech 文字转语音
func (s *Service) SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	if req == nil {
		return nil, ErrEmptyText
	}

	cleaned := *req
	cleaned.Text = cleanSpeechText(req.Text)
	if cleaned.Text == "" {
		return nil, ErrEmptyText
	}
	if len(s.providers) == 0 {
		return nil, ErrNoProvider
	}

	candidates := s.providers
	if !s.fallback {
		candidates = candidates[:1]
	}

	var errs []error
	for idx, provider := range candidates {
		resp, err := s.synthesizeOnce(ctx, provider, &cleaned)
		if err == nil {
			if idx > 0 {
				log.Printf("[speech] fallback provider %s succeeded", provider.Name())
			}
			return resp, nil
		}

		log.Printf("[speech] provider %s failed: %v", provider.Name(), err)
		errs = append(errs, fmt.Errorf("%s: %w", provider.Name(), err))

		if ctx.Err() != nil {
			break
		}
	}

	return nil, fmt.Errorf("speech synthesis failed: %w", errors.Join(errs...))
}

func (s *Service) synthesizeOnce(ctx context.Context, provider Synthesizer, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := provider.Synthesize(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.AudioData) == 0 {
		return nil, ErrEmptyAudio
	}
	if resp.Provider == "" {
		resp.Provider = provider.Name()
	}
	return resp, nil
}

// SynthesizeToBuffer 文字转语音（返回字节数组）
func (s *Service) SynthesizeToBuffer(ctx context.Context, sessionID, text, voice, language string) (*speech.TTSResponse, error) {
	return s.SynthesizeSpeech(ctx, &speech.TTSRequest{
		SessionID: sessionID,
		Text:      text,
		Voice:     voice,
		Language:  language,
	})
}

var (
	codeBlockPattern  = regexp.MustCompile("(?s)```.*?```")
	inlineCodePattern = regexp.MustCompile("`([^`]+)`")
	emphasisPattern   = regexp.MustCompile(`(\*{1,3}|_{2,3})([^*_]+)(\*{1,3}|_{2,3})`)
	headingPattern    = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`)
	linkPattern       = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
)

// cleanSpeechText 去掉不适合朗读的 markdown 标记
func cleanSpeechText(text string) string {
	text = codeBlockPattern.ReplaceAllString(text, " ")
	text = inlineCodePattern.ReplaceAllString(text, "$1")
	text = linkPattern.ReplaceAllString(text, "$1")
	text = emphasisPattern.ReplaceAllString(text, "$2")
	text = headingPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
