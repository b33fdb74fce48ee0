package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/atomchat/atom/backend/internal/config"
	speechmodel "github.com/atomchat/atom/backend/internal/model/speech"
	"github.com/atomchat/atom/backend/internal/service/speech"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	text := flag.String("text", "", "待合成文本")
	outputPath := flag.String("out", "", "输出音频文件路径 (默认根据时间自动生成)")
	provider := flag.String("provider", "", "只使用指定服务: volcengine 或 google，默认按配置并允许回退")
	language := flag.String("lang", "", "语言代码，默认使用配置中的语言")
	voice := flag.String("voice", "", "声音 ID 或别名，默认使用配置中的 TTSVoice")
	session := flag.String("session", "", "自定义 sessionID，留空则自动生成")
	timeout := flag.Duration("timeout", 45*time.Second, "请求超时时间")

	flag.Parse()

	if strings.TrimSpace(*text) == "" {
		flag.Usage()
		log.Fatal("需要通过 -text 提供待合成文本")
	}

	sessionID := *session
	if sessionID == "" {
		sessionID = fmt.Sprintf("manual-%d", time.Now().UnixNano())
	}

	speechCfg := cfg.Speech.ServiceConfig()
	svc, err := newService(speechCfg, *provider)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	runTTS(ctx, svc, speechCfg, sessionID, *text, *voice, *language, *outputPath)
}

func newService(cfg *speechmodel.SpeechConfig, provider string) (*speech.Service, error) {
	timeout := time.Duration(cfg.Timeout) * time.Second

	switch speechmodel.Provider(strings.ToLower(strings.TrimSpace(provider))) {
	case "":
		return speech.NewService(cfg), nil
	case speechmodel.ProviderVolcengine:
		return speech.NewServiceWithProviders(timeout, false, speech.NewVolcengineTTSClient(cfg)), nil
	case speechmodel.ProviderGoogle:
		return speech.NewServiceWithProviders(timeout, false, speech.NewGoogleTranslateTTSClient(cfg)), nil
	default:
		return nil, fmt.Errorf("未知的语音服务: %s", provider)
	}
}

func runTTS(ctx context.Context, svc *speech.Service, cfg *speechmodel.SpeechConfig, sessionID, text, voice, language, outputPath string) {
	if voice == "" {
		voice = cfg.TTSVoice
	}
	if language == "" {
		language = cfg.TTSLanguage
	}

	log.Printf("开始进行 TTS 测试: session=%s providers=%v voice=%s", sessionID, svc.Providers(), voice)

	resp, err := svc.SynthesizeToBuffer(ctx, sessionID, text, voice, language)
	if err != nil {
		log.Fatalf("TTS 调用失败: %v", err)
	}

	if outputPath == "" {
		outputPath = fmt.Sprintf("tts-output-%d.%s", time.Now().Unix(), resp.Format)
	}

	if err := os.WriteFile(outputPath, resp.AudioData, 0o644); err != nil {
		log.Fatalf("写入音频文件失败: %v", err)
	}

	log.Printf("TTS 合成成功: provider=%s 输出文件 %s, 大小=%d bytes, 时长=%dms", resp.Provider, outputPath, len(resp.AudioData), resp.Duration)
}
