package emotion

import (
	"strings"

	"github.com/easeaico/companion/internal/types"
)

var (
	nostalgicKeywords = []string{"love"}
	negativeKeywords  = []string{"hate", "dislike"}
	positiveKeywords  = []string{"excited", "happy"}
)

// DetectTone returns the emotional context a memory was formed in. The first
// matching keyword set wins: nostalgic, then negative, then positive.
func DetectTone(text string) types.EmotionalContext {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, nostalgicKeywords):
		return types.EmotionNostalgic
	case containsAny(lower, negativeKeywords):
		return types.EmotionNegative
	case containsAny(lower, positiveKeywords):
		return types.EmotionPositive
	default:
		return types.EmotionNone
	}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
