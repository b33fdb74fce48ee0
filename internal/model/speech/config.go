package speech

// Provider 语音合成服务提供方
type Provider string

const (
	ProviderVolcengine Provider = "volcengine"
	ProviderGoogle     Provider = "google"
)

// SpeechConfig 语音服务配置
type SpeechConfig struct {
	Provider Provider `json:"provider"` // 主合成服务
	Fallback bool     `json:"fallback"` // 主服务失败时尝试另一个服务

	// Volcengine 配置
	AppID       string `json:"appId"`            // 火山引擎 APP ID
	AccessToken string `json:"accessToken"`      // 火山引擎 Access Token
	APIKey      string `json:"apiKey,omitempty"` // 兼容旧配置的 API Key
	BaseURL     string `json:"baseUrl"`          // 覆盖 WebSocket 地址

	// Google Translate TTS 配置
	GoogleBaseURL  string `json:"googleBaseUrl"`
	GoogleLanguage string `json:"googleLanguage"`

	// TTS 配置
	TTSVoice    string  `json:"ttsVoice"`
	TTSSpeed    float32 `json:"ttsSpeed"`
	TTSVolume   float32 `json:"ttsVolume"`
	TTSLanguage string  `json:"ttsLanguage"`

	// 临时音频文件目录，空值使用系统临时目录
	ArtifactDir string `json:"artifactDir"`

	// 通用配置
	Timeout int `json:"timeout"` // seconds
}

// VolcengineReady 表示是否具备火山引擎凭证
func (c *SpeechConfig) VolcengineReady() bool {
	if c == nil {
		return false
	}
	return c.AppID != "" && (c.AccessToken != "" || c.APIKey != "")
}
