package speech

import (
	"errors"
	"strings"

	speechmodel "github.com/atomchat/atom/backend/internal/model/speech"
)

// ErrMissingCredentials 表示火山引擎凭证不完整
var ErrMissingCredentials = errors.New("火山引擎语音配置缺少 AppID 或 AccessToken")

// resolveCredentials 返回规范化后的 AppID 与 AccessToken，缺失时返回 ErrMissingCredentials。
func resolveCredentials(cfg *speechmodel.SpeechConfig) (string, string, error) {
	if cfg == nil {
		return "", "", ErrMissingCredentials
	}

	appID := strings.TrimSpace(cfg.AppID)
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		token = strings.TrimSpace(cfg.APIKey)
	}

	if appID == "" || token == "" {
		return "", "", ErrMissingCredentials
	}

	return appID, token, nil
}
