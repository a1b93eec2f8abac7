package extract

import (
	"regexp"
	"strings"
)

// Lexicon scores text by counting positive and negative word hits.
type Lexicon struct {
	positive map[string]bool
	negative map[string]bool
}

// NewLexicon builds a lexicon from word lists. Words are matched lower-case.
func NewLexicon(positive, negative []string) *Lexicon {
	l := &Lexicon{positive: make(map[string]bool), negative: make(map[string]bool)}
	for _, w := range positive {
		l.positive[strings.ToLower(w)] = true
	}
	for _, w := range negative {
		l.negative[strings.ToLower(w)] = true
	}
	return l
}

// DefaultLexicon returns the built-in English word lists.
func DefaultLexicon() *Lexicon {
	return NewLexicon(
		[]string{
			"good", "great", "excellent", "amazing", "awesome", "fantastic",
			"love", "like", "best", "perfect", "wonderful", "outstanding",
			"brilliant", "superb", "incredible", "phenomenal",
		},
		[]string{
			"bad", "terrible", "awful", "horrible", "hate", "worst",
			"disappointing", "useless", "garbage", "trash", "sucks",
			"pathetic", "disgusting", "annoying", "frustrating",
		},
	)
}

var wordRe = regexp.MustCompile(`\w+`)

// Score returns (positive − negative) / (positive + negative), clamped to
// [−1, 1]. Text without sentiment words scores 0.
func (l *Lexicon) Score(text string) float64 {
	var pos, neg int
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		switch {
		case l.positive[w]:
			pos++
		case l.negative[w]:
			neg++
		}
	}
	total := pos + neg
	if total == 0 {
		return 0
	}
	s := float64(pos-neg) / float64(total)
	return max(-1, min(1, s))
}

// Score applies DefaultLexicon.
func Score(text string) float64 { return defaultLexicon.Score(text) }

var defaultLexicon = DefaultLexicon()
