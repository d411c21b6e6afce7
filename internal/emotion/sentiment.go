package emotion

import "strings"

var (
	strongPositiveWords = []string{
		"love you",
		"adore you",
		"miss you",
	}
	positiveWords = []string{
		"thank you",
		"thanks",
		"great",
		"good",
		"sweet",
		"happy",
		"excited",
		"glad",
		"awesome",
	}
	negativeWords = []string{
		"annoy",
		"upset",
		"sad",
		"bad",
		"angry",
		"tired",
		"lonely",
	}
	strongNegativeWords = []string{
		"hate you",
		"shut up",
		"fuck",
	}
)

// Sentiment scores text with weighted keyword hits and returns its label.
func Sentiment(text string) Label {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return Neutral
	}

	score := 2*countHits(lower, strongPositiveWords) +
		countHits(lower, positiveWords) -
		countHits(lower, negativeWords) -
		2*countHits(lower, strongNegativeWords)

	switch {
	case score > 0:
		return Positive
	case score < 0:
		return Negative
	default:
		return Neutral
	}
}

func countHits(text string, words []string) int {
	hits := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			hits++
		}
	}
	return hits
}
