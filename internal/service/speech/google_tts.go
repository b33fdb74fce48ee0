package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/atomchat/atom/backend/internal/model/speech"
)

const (
	defaultGoogleTTSURL = "https://translate.google.com/translate_tts"
	googleChunkRunes    = 100
	googleUserAgent     = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// GoogleTranslateTTSClient 调用 Google Translate 的公开朗读接口，只输出 mp3。
// 接口单次最多接受约 100 个字符，长文本按词切分后顺序请求并拼接音频。
type GoogleTranslateTTSClient struct {
	baseURL    string
	language   string
	httpClient *http.Client
}

// NewGoogleTranslateTTSClient 创建 Google TTS 客户端
func NewGoogleTranslateTTSClient(config *speech.SpeechConfig) *GoogleTranslateTTSClient {
	client := &GoogleTranslateTTSClient{
		baseURL:    defaultGoogleTTSURL,
		language:   "en",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	if config == nil {
		return client
	}
	if base := strings.TrimSpace(config.GoogleBaseURL); base != "" {
		client.baseURL = base
	}
	if lang := strings.TrimSpace(config.GoogleLanguage); lang != "" {
		client.language = lang
	}
	return client
}

// Name 实现 Synthesizer
func (c *GoogleTranslateTTSClient) Name() speech.Provider {
	return speech.ProviderGoogle
}

// Synthesize 实现 Synthesizer
func (c *GoogleTranslateTTSClient) Synthesize(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	chunks := splitTextChunks(req.Text, googleChunkRunes)
	if len(chunks) == 0 {
		return nil, ErrEmptyText
	}

	lang := googleLanguage(req.Language, c.language)

	var audio bytes.Buffer
	for idx, chunk := range chunks {
		data, err := c.fetchChunk(ctx, chunk, lang, idx, len(chunks))
		if err != nil {
			return nil, err
		}
		audio.Write(data)
	}

	if audio.Len() == 0 {
		return nil, ErrEmptyAudio
	}

	return &speech.TTSResponse{
		SessionID: req.SessionID,
		AudioData: audio.Bytes(),
		Format:    "mp3",
		Provider:  speech.ProviderGoogle,
		RequestID: uuid.New().String(),
		CreatedAt: time.Now(),
	}, nil
}

func (c *GoogleTranslateTTSClient) fetchChunk(ctx context.Context, text, lang string, idx, total int) ([]byte, error) {
	query := url.Values{}
	query.Set("ie", "UTF-8")
	query.Set("client", "tw-ob")
	query.Set("q", text)
	query.Set("tl", lang)
	query.Set("idx", strconv.Itoa(idx))
	query.Set("total", strconv.Itoa(total))
	query.Set("textlen", strconv.Itoa(utf8.RuneCountInString(text)))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build google tts request: %w", err)
	}
	httpReq.Header.Set("User-Agent", googleUserAgent)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("google tts request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("google tts returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read google tts audio: %w", err)
	}
	return data, nil
}

// googleLanguage 将 BCP-47 标签转换为接口接受的语言代码
func googleLanguage(requested, fallback string) string {
	lang := strings.TrimSpace(requested)
	if lang == "" {
		lang = fallback
	}
	switch strings.ToLower(lang) {
	case "zh-cn", "zh-tw":
		return lang
	}
	if base, _, ok := strings.Cut(lang, "-"); ok {
		return base
	}
	return lang
}

// splitTextChunks 按空白切分文本，每段不超过 limit 个字符；超长单词直接截断。
func splitTextChunks(text string, limit int) []string {
	var (
		chunks  []string
		current strings.Builder
		runes   int
	)

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			runes = 0
		}
	}

	for _, word := range strings.Fields(text) {
		for utf8.RuneCountInString(word) > limit {
			flush()
			head := []rune(word)[:limit]
			chunks = append(chunks, string(head))
			word = string([]rune(word)[limit:])
		}

		wordRunes := utf8.RuneCountInString(word)
		if wordRunes == 0 {
			continue
		}
		if runes > 0 && runes+1+wordRunes > limit {
			flush()
		}
		if runes > 0 {
			current.WriteByte(' ')
			runes++
		}
		current.WriteString(word)
		runes += wordRunes
	}
	flush()

	return chunks
}
