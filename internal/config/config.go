package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	openai "github.com/sashabaranov/go-openai"

	speechmodel "github.com/atomchat/atom/backend/internal/model/speech"
	"github.com/atomchat/atom/backend/internal/service/ai"
)

// 支持的大模型提供方
const (
	ProviderArk    = "ark"
	ProviderOpenAI = "openai"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Speech  SpeechConfig
	Session SessionConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	aiCfg, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: aiCfg, Speech: speech, Session: session}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// loadServerConfig 解析服务器监听地址与跨域白名单。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	origins := splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*"))

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, AllowedOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, AllowedOrigins: origins}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider string

	// Ark
	APIKey    string
	AccessKey string
	SecretKey string
	BaseURL   string
	Region    string

	// OpenAI 兼容接口
	OpenAIAPIKey  string
	OpenAIBaseURL string

	Model          string
	VisionModel    string
	Temperature    *float64
	TopP           *float64
	MaxTokens      *int
	StreamResponse bool
	HistoryLimit   int
	ImageMaxSide   int
	ImageMaxPixels int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	if c.Model == "" {
		return false
	}
	switch c.Provider {
	case ProviderOpenAI:
		return c.OpenAIAPIKey != ""
	default:
		return c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != "")
	}
}

// VisionModelName 返回多模态模型名称，未配置时复用文本模型。
func (c AIConfig) VisionModelName() string {
	if c.VisionModel != "" {
		return c.VisionModel
	}
	return c.Model
}

// NewChatModel 使用配置创建文本对话模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	return c.newModel(ctx, c.Model)
}

// NewVisionModel 使用配置创建多模态模型实例。
func (c AIConfig) NewVisionModel(ctx context.Context) (model.BaseChatModel, error) {
	return c.newModel(ctx, c.VisionModelName())
}

func (c AIConfig) newModel(ctx context.Context, name string) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("%s 凭证或模型配置缺失", c.Provider)
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	switch c.Provider {
	case ProviderOpenAI:
		clientCfg := openai.DefaultConfig(c.OpenAIAPIKey)
		if c.OpenAIBaseURL != "" {
			clientCfg.BaseURL = c.OpenAIBaseURL
		}
		return ai.NewOpenAIChatModel(openai.NewClientWithConfig(clientCfg), ai.OpenAIModelConfig{
			Model:       name,
			Temperature: temperature,
			TopP:        topP,
			MaxTokens:   c.MaxTokens,
		}), nil

	case ProviderArk:
		chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:     c.BaseURL,
			Region:      c.Region,
			APIKey:      c.APIKey,
			AccessKey:   c.AccessKey,
			SecretKey:   c.SecretKey,
			Model:       name,
			MaxTokens:   c.MaxTokens,
			Temperature: temperature,
			TopP:        topP,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create ark model %s: %w", name, err)
		}
		return chatModel, nil

	default:
		return nil, fmt.Errorf("unsupported AI_PROVIDER %q", c.Provider)
	}
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("AI_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("AI_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("AI_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	stream, err := parseBoolEnv("AI_STREAM", true)
	if err != nil {
		return AIConfig{}, err
	}

	historyLimit := 20
	if override, err := parseOptionalIntEnv("AI_HISTORY_LIMIT"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		historyLimit = *override
	}

	imageMaxSide := 1536
	if override, err := parseOptionalIntEnv("AI_IMAGE_MAX_DIMENSION"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		if *override < 64 {
			return AIConfig{}, fmt.Errorf("invalid AI_IMAGE_MAX_DIMENSION value %d: must be >= 64", *override)
		}
		imageMaxSide = *override
	}

	imageMaxPixels := 40_000_000
	if override, err := parseOptionalIntEnv("AI_IMAGE_MAX_PIXELS"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		if *override < imageMaxSide*imageMaxSide {
			return AIConfig{}, fmt.Errorf("invalid AI_IMAGE_MAX_PIXELS value %d: must be >= %d", *override, imageMaxSide*imageMaxSide)
		}
		imageMaxPixels = *override
	}

	provider := strings.ToLower(getEnvOrDefault("AI_PROVIDER", ProviderArk))
	if provider != ProviderArk && provider != ProviderOpenAI {
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q", provider)
	}

	cfg := AIConfig{
		Provider:       provider,
		APIKey:         strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:      strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:      strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		BaseURL:        getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:         getEnvOrDefault("ARK_REGION", "cn-beijing"),
		OpenAIAPIKey:   strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:  strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		Temperature:    temperature,
		TopP:           topP,
		MaxTokens:      maxTokens,
		StreamResponse: stream,
		HistoryLimit:   historyLimit,
		ImageMaxSide:   imageMaxSide,
		ImageMaxPixels: imageMaxPixels,
	}

	if provider == ProviderOpenAI {
		cfg.Model = getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini")
		cfg.VisionModel = strings.TrimSpace(os.Getenv("OPENAI_VISION_MODEL"))
	} else {
		cfg.Model = firstNonEmpty(os.Getenv("ARK_MODEL"), os.Getenv("Model"))
		cfg.VisionModel = strings.TrimSpace(os.Getenv("ARK_VISION_MODEL"))
	}

	return cfg, nil
}

// SpeechConfig 描述语音服务相关配置
type SpeechConfig struct {
	Provider       string
	Fallback       bool
	AppID          string
	AccessToken    string
	APIKey         string
	BaseURL        string
	GoogleBaseURL  string
	GoogleLanguage string
	TTSVoice       string
	TTSSpeed       float32
	TTSVolume      float32
	TTSLanguage    string
	ArtifactDir    string
	Timeout        int
	Enabled        bool
}

// ServiceConfig 转换为语音服务使用的配置
func (c SpeechConfig) ServiceConfig() *speechmodel.SpeechConfig {
	return &speechmodel.SpeechConfig{
		Provider:       speechmodel.Provider(c.Provider),
		Fallback:       c.Fallback,
		AppID:          c.AppID,
		AccessToken:    c.AccessToken,
		APIKey:         c.APIKey,
		BaseURL:        c.BaseURL,
		GoogleBaseURL:  c.GoogleBaseURL,
		GoogleLanguage: c.GoogleLanguage,
		TTSVoice:       c.TTSVoice,
		TTSSpeed:       c.TTSSpeed,
		TTSVolume:      c.TTSVolume,
		TTSLanguage:    c.TTSLanguage,
		ArtifactDir:    c.ArtifactDir,
		Timeout:        c.Timeout,
	}
}

func loadSpeechConfig() (SpeechConfig, error) {
	// 解析超时设置
	timeout, err := parseOptionalIntEnv("SPEECH_TIMEOUT")
	if err != nil {
		return SpeechConfig{}, err
	}
	timeoutSeconds := 30 // 默认30秒
	if timeout != nil {
		timeoutSeconds = *timeout
	}

	// 解析TTS速度和音量
	speed, err := parseOptionalFloat32Env("SPEECH_TTS_SPEED")
	if err != nil {
		return SpeechConfig{}, err
	}
	ttsSpeed := float32(1.0) // 默认1.0倍速
	if speed != nil {
		ttsSpeed = *speed
	}

	volume, err := parseOptionalFloat32Env("SPEECH_TTS_VOLUME")
	if err != nil {
		return SpeechConfig{}, err
	}
	ttsVolume := float32(1.0) // 默认1.0音量
	if volume != nil {
		ttsVolume = *volume
	}

	enabled, err := parseBoolEnv("SPEECH_ENABLED", true)
	if err != nil {
		return SpeechConfig{}, err
	}

	fallback, err := parseBoolEnv("SPEECH_FALLBACK", true)
	if err != nil {
		return SpeechConfig{}, err
	}

	appID := strings.TrimSpace(os.Getenv("SPEECH_APP_ID"))
	apiKey := strings.TrimSpace(os.Getenv("SPEECH_API_KEY"))
	accessToken := strings.TrimSpace(os.Getenv("SPEECH_ACCESS_TOKEN"))
	if accessToken == "" {
		accessToken = apiKey
	}

	// 未显式指定时，有火山引擎凭证则优先使用火山引擎
	provider := strings.ToLower(strings.TrimSpace(os.Getenv("SPEECH_PROVIDER")))
	if provider == "" {
		provider = "google"
		if appID != "" && accessToken != "" {
			provider = "volcengine"
		}
	}
	if provider != "google" && provider != "volcengine" {
		return SpeechConfig{}, fmt.Errorf("invalid SPEECH_PROVIDER value %q", provider)
	}

	return SpeechConfig{
		Provider:       provider,
		Fallback:       fallback,
		AppID:          appID,
		AccessToken:    accessToken,
		APIKey:         apiKey,
		BaseURL:        getEnvOrDefault("SPEECH_BASE_URL", ""),
		GoogleBaseURL:  getEnvOrDefault("SPEECH_GOOGLE_BASE_URL", ""),
		GoogleLanguage: getEnvOrDefault("SPEECH_GOOGLE_LANGUAGE", "en"),
		TTSVoice:       getEnvOrDefault("SPEECH_TTS_VOICE", ""),
		TTSSpeed:       ttsSpeed,
		TTSVolume:      ttsVolume,
		TTSLanguage:    getEnvOrDefault("SPEECH_TTS_LANGUAGE", "en-US"),
		ArtifactDir:    getEnvOrDefault("SPEECH_ARTIFACT_DIR", ""),
		Timeout:        timeoutSeconds,
		Enabled:        enabled,
	}, nil
}

// SessionConfig 描述会话管理配置
type SessionConfig struct {
	MaxActive      int
	PrimingMessage string
}

func loadSessionConfig() (SessionConfig, error) {
	maxActive := 256
	if override, err := parseOptionalIntEnv("SESSION_MAX_ACTIVE"); err != nil {
		return SessionConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return SessionConfig{}, fmt.Errorf("invalid SESSION_MAX_ACTIVE value %d: must be >= 1", *override)
		}
		maxActive = *override
	}

	priming := strings.TrimSpace(os.Getenv("SESSION_PRIMING_MESSAGE"))
	if path := strings.TrimSpace(os.Getenv("SESSION_PRIMING_FILE")); path != "" && priming == "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return SessionConfig{}, fmt.Errorf("read SESSION_PRIMING_FILE %q: %w", path, err)
		}
		priming = strings.TrimSpace(string(data))
	}

	return SessionConfig{MaxActive: maxActive, PrimingMessage: priming}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func lookupTrimmed(key string) (string, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value := strings.TrimSpace(raw)
	return value, value != ""
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	value, ok := lookupTrimmed(key)
	if !ok {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	value, ok := lookupTrimmed(key)
	if !ok {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalFloat32Env(key string) (*float32, error) {
	value, ok := lookupTrimmed(key)
	if !ok {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	result := float32(val)
	return &result, nil
}
