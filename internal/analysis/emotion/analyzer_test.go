package emotion

import "testing"

func TestAnalyzeSadUserGetsComfort(t *testing.T) {
	decision := Analyze("I feel so sad and lonely today", "Tell me what happened.")
	if decision.Emotion != Comfort {
		t.Fatalf("expected comfort emotion, got %s", decision.Emotion)
	}
	if decision.Scale < 1 || decision.Scale > 3.5 {
		t.Fatalf("emotion scale out of range: %f", decision.Scale)
	}
}

func TestAnalyzeExcitedReply(t *testing.T) {
	decision := Analyze("We shipped it", "Wow, congratulations!!! That is fantastic")
	if decision.Emotion != Excited {
		t.Fatalf("expected excited emotion, got %s", decision.Emotion)
	}
	if decision.Scale < 3 {
		t.Fatalf("expected boosted scale for excitement, got %f", decision.Scale)
	}
}

func TestAnalyzeReplyWinsOverUser(t *testing.T) {
	decision := Analyze("I am so angry", "Please remember this is important.")
	if decision.Emotion != Magnetic {
		t.Fatalf("expected magnetic emotion, got %s", decision.Emotion)
	}
	if decision.Scale > 4 {
		t.Fatalf("magnetic scale should be capped, got %f", decision.Scale)
	}
}

func TestAnalyzeNeutral(t *testing.T) {
	decision := Analyze("What time is it in Paris", "It is 3 PM in Paris.")
	if decision.Expressive() {
		t.Fatalf("expected neutral decision, got %+v", decision)
	}
}

func TestAnalyzeTieIsDeterministic(t *testing.T) {
	for i := 0; i < 20; i++ {
		// "sad" and "glad" both score once; Sad precedes Happy
		if got := Analyze("", "sad but glad").Emotion; got != Sad {
			t.Fatalf("run %d: expected sad, got %s", i, got)
		}
	}
}
