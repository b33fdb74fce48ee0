package emotion

import "strings"

// Label 表示TTS可以接受的情绪标签。
type Label string

const (
	Neutral  Label = "neutral"
	Happy    Label = "happy"
	Sad      Label = "sad"
	Angry    Label = "angry"
	Excited  Label = "excited"
	Tender   Label = "tender"
	Comfort  Label = "comfort"
	Magnetic Label = "magnetic"
)

// Decision 给出情绪识别结果以及推荐情绪强度（1-5）。
type Decision struct {
	Emotion Label
	Scale   float32
	Score   int
}

// Expressive 表示是否需要带情绪朗读
func (d Decision) Expressive() bool {
	return d.Emotion != Neutral && d.Score > 0
}

// 固定顺序，得分相同时靠前的标签胜出
var labelOrder = []Label{Comfort, Sad, Angry, Excited, Happy, Tender, Magnetic}

var keywordBuckets = map[Label][]string{
	Happy: {
		"glad", "happy", "great", "awesome", "amazing", "thanks", "thank you", "love", "delighted",
		"pleased", "wonderful", "lol", "haha", "开心", "高兴", "太棒了",
	},
	Sad: {
		"sad", "unhappy", "cry", "depressed", "upset", "hurt", "lonely", "miss", "lost", "grief",
		"disappointed", "难过", "伤心",
	},
	Angry: {
		"angry", "furious", "rage", "mad at", "annoyed", "pissed", "outrage", "hate", "sick of",
		"生气", "愤怒",
	},
	Excited: {
		"can't wait", "cannot wait", "incredible", "unbelievable", "wow", "hype", "thrilled",
		"fantastic", "congratulations", "激动", "期待",
	},
	Tender: {
		"gentle", "softly", "calm", "relax", "peaceful", "quiet", "slowly", "温柔", "平静",
	},
	Comfort: {
		"don't worry", "it's okay", "it's ok", "i understand", "i'm here", "i am here", "take it easy",
		"breathe", "you're safe", "you are not alone", "sorry to hear", "别担心", "没事",
	},
	Magnetic: {
		"important", "serious", "critical", "must", "careful", "warning", "remember", "make sure",
		"重要", "务必",
	},
}

// Analyze 根据用户话语与回复推断朗读情绪；回复没有明显情绪时参考用户情绪给出共情语气。
func Analyze(userUtterance, reply string) Decision {
	decision := scoreText(reply)
	if decision.Score == 0 {
		decision = respondTo(scoreText(userUtterance))
	}
	if decision.Score == 0 {
		return Decision{Emotion: Neutral, Scale: 3}
	}

	scale := 2 + float32(decision.Score)/4
	switch decision.Emotion {
	case Excited:
		scale++
	case Magnetic:
		scale = min(scale, 4)
	case Comfort, Tender:
		scale = min(scale, 3.5)
	}
	decision.Scale = max(1, min(scale, 5))
	return decision
}

func scoreText(text string) Decision {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return Decision{Emotion: Neutral}
	}

	scores := make(map[Label]int, len(labelOrder))
	for label, keywords := range keywordBuckets {
		for _, word := range keywords {
			if strings.Contains(normalized, word) {
				scores[label] += 3
			}
		}
	}

	switch exclamations := strings.Count(text, "!") + strings.Count(text, "！"); {
	case exclamations == 1:
		scores[Excited] += 3
		scores[Happy] += 2
	case exclamations > 1:
		scores[Excited] += exclamations * 3
	}

	best := Decision{Emotion: Neutral}
	for _, label := range labelOrder {
		if scores[label] > best.Score {
			best = Decision{Emotion: label, Score: scores[label]}
		}
	}
	return best
}

// respondTo 将用户情绪映射为回应语气
func respondTo(user Decision) Decision {
	switch user.Emotion {
	case Sad:
		user.Emotion = Comfort
	case Angry:
		user.Emotion = Magnetic
	case Comfort:
		user.Emotion = Tender
	}
	return user
}
