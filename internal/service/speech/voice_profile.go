package speech

import "strings"

// voiceAliases 将人设声音别名映射到火山引擎音色
var voiceAliases = map[string]string{
	"atom":                      "en_male_corey_emo_v2_mars_bigtts",
	"en_default":                "en_female_amy_jupiter_bigtts",
	"zh_default":                "zh_female_vv_uranus_bigtts",
	"zh_male_m392_conversation": "zh_male_M392_conversation_wvae_bigtts",
}

// NormalizeVoiceAlias 返回别名对应的音色，未知别名原样返回（去除空白）。
func NormalizeVoiceAlias(alias string) string {
	trimmed := strings.TrimSpace(alias)
	if mapped, ok := voiceAliases[strings.ToLower(trimmed)]; ok {
		return mapped
	}
	return trimmed
}

// emotionVoices 为支持情绪参数的音色白名单，命名含 _emo_ 的音色同样支持
var emotionVoices = map[string]struct{}{
	"en_female_candice_emo_v2_mars_bigtts":      {},
	"en_female_skye_emo_v2_mars_bigtts":         {},
	"en_male_glen_emo_v2_mars_bigtts":           {},
	"en_male_corey_emo_v2_mars_bigtts":          {},
	"zh_female_gaolengyujie_emo_v2_mars_bigtts": {},
	"zh_male_junlangnanyou_emo_v2_mars_bigtts":  {},
}

// emotionParameters 返回音色可用的情绪标签与强度，不支持时 ok 为 false
func emotionParameters(voice, label string, scale float32) (string, float32, bool) {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" || label == "neutral" || !supportsEmotion(voice) {
		return "", 0, false
	}
	if scale <= 0 {
		scale = 3
	}
	return label, max(1, min(scale, 5)), true
}

func supportsEmotion(voice string) bool {
	normalized := strings.ToLower(strings.TrimSpace(voice))
	if normalized == "" {
		return false
	}
	if _, ok := emotionVoices[normalized]; ok {
		return true
	}
	return strings.Contains(normalized, "_emo_")
}

func resolveTTSResourceCandidates(voice string) []string {
	const (
		defaultResource = "volc.service_type.10029"
		megaResource    = "volc.megatts.default"
		seedResource    = "seed-tts-2.0"
	)

	voice = strings.TrimSpace(voice)
	if voice == "" {
		return []string{defaultResource, seedResource}
	}

	if strings.HasPrefix(voice, "S_") {
		return []string{megaResource}
	}

	normalized := strings.ToLower(voice)
	for _, hint := range []string{"bigtts", "seed", "megatts", "uranus", "venus", "jupiter", "mars"} {
		if strings.Contains(normalized, hint) {
			return []string{seedResource, defaultResource}
		}
	}

	return []string{defaultResource, seedResource}
}

// resolveTTSSpeakerCandidates 依次尝试请求音色与配置的默认音色，"default" 指向默认音色。
func resolveTTSSpeakerCandidates(requested, fallback string) []string {
	fallback = strings.TrimSpace(fallback)

	var candidates []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if strings.EqualFold(s, "default") {
			s = fallback
		}
		s = NormalizeVoiceAlias(s)
		if s == "" {
			return
		}
		for _, existing := range candidates {
			if strings.EqualFold(existing, s) {
				return
			}
		}
		candidates = append(candidates, s)
	}

	add(requested)
	add(fallback)

	if len(candidates) == 0 {
		// 空音色交给服务端默认
		return []string{""}
	}
	return candidates
}

func isResourceMismatchError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "resource ID is mismatched with speaker related resource")
}
