package event

import "strings"

var negativeWords = []string{"delay", "halts", "probe", "lawsuit", "cuts", "miss", "shortage", "breach", "recall", "plunge", "downgrade"}

var positiveWords = []string{"beats", "surge", "record", "approval", "subsidy", "upgrade", "launch", "rally"}

// ClassifySentiment derives a coarse sentiment from headline keywords.
func ClassifySentiment(headline string) Sentiment {
	t := strings.ToLower(headline)
	pos := containsAny(t, positiveWords)
	neg := containsAny(t, negativeWords)
	switch {
	case pos && !neg:
		return SentimentPositive
	case neg && !pos:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
