package analyzer

import (
	"strings"
	"unicode"
)

// Tokenizer splits financial text into lowercase terms.
// Tickers such as "0700.HK" and amounts such as "2.4B" stay whole.
type Tokenizer struct {
	stopwords map[string]struct{}
	minLen    int
}

// NewTokenizer creates a new Tokenizer.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{
		stopwords: defaultStopwords(),
		minLen:    2,
	}
}

// Tokenize splits text into terms, dropping stopwords and single characters.
func (t *Tokenizer) Tokenize(text string) []string {
	words := splitWords(text)
	tokens := make([]string, 0, len(words))

	for _, word := range words {
		word = strings.ToLower(word)
		if len(word) < t.minLen {
			continue
		}
		if _, isStop := t.stopwords[word]; isStop {
			continue
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// Trigrams returns the character trigrams of a term padded with boundary markers,
// so "tsla" yields "^ts", "tsl", "sla", "la$".
func Trigrams(term string) []string {
	runes := []rune("^" + term + "$")
	if len(runes) < 3 {
		return nil
	}
	grams := make([]string, 0, len(runes)-2)
	for i := 0; i+3 <= len(runes); i++ {
		grams = append(grams, string(runes[i:i+3]))
	}
	return grams
}

// splitWords splits on anything that is not a letter or digit. A '.' or ','
// between two alphanumerics is kept so tickers and figures survive.
func splitWords(text string) []string {
	var words []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			current.WriteRune(r)
		case (r == '.' || r == ',') && current.Len() > 0 && i+1 < len(runes) && isAlnum(runes[i+1]):
			if r == '.' {
				current.WriteRune(r)
			}
		default:
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// defaultStopwords returns common English stopwords plus boilerplate from the
// document templates ("reported", "body", ...).
func defaultStopwords() map[string]struct{} {
	stops := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"have", "had", "but", "not", "you", "your", "we", "our",
		"they", "their", "she", "her", "his", "if", "or", "so",
		"no", "can", "do", "does", "did", "been", "being", "would",
		"could", "should", "may", "might", "which", "who", "what",
		"when", "where", "why", "how", "all", "each", "some", "such",
		"than", "too", "very", "just", "also", "about", "into",
		"body", "news", "reported",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
