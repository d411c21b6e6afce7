package emotion

import (
	"testing"

	"github.com/easeaico/companion/internal/types"
)

func TestDetectTone(t *testing.T) {
	cases := []struct {
		text string
		want types.EmotionalContext
	}{
		{"I loved that place", types.EmotionNostalgic},
		{"I LOVE pizza but hate olives", types.EmotionNostalgic},
		{"I really dislike rain", types.EmotionNegative},
		{"so excited for tomorrow", types.EmotionPositive},
		{"happy and hateful", types.EmotionNegative},
		{"ok", types.EmotionNone},
		{"", types.EmotionNone},
	}
	for _, tc := range cases {
		if got := DetectTone(tc.text); got != tc.want {
			t.Fatalf("DetectTone(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestSentiment(t *testing.T) {
	cases := []struct {
		text string
		want Label
	}{
		{"thanks, that was great", Positive},
		{"I miss you", Positive},
		{"I'm so tired and sad", Negative},
		{"shut up", Negative},
		{"good but bad", Neutral},
		{"   ", Neutral},
		{"what time is it", Neutral},
	}
	for _, tc := range cases {
		if got := Sentiment(tc.text); got != tc.want {
			t.Fatalf("Sentiment(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}
