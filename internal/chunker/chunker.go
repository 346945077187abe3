// Package chunker splits normalized document text into ordered,
// sentence-respecting segments of bounded token size. The splitter is
// deterministic and stateless: the same input always yields the same drafts.
package chunker

import (
	"strings"
	"unicode"
)

const (
	DefaultMinTokens = 800
	DefaultMaxTokens = 1200
)

// Draft is a chunk before persistence: ordinal position and raw text.
type Draft struct {
	Ordinal    int
	Content    string
	TokenCount int
}

type Options struct {
	MinTokens int
	MaxTokens int
}

type Chunker struct {
	minTokens int
	maxTokens int
}

func New(opts Options) *Chunker {
	minTokens := opts.MinTokens
	maxTokens := opts.MaxTokens
	if minTokens <= 0 {
		minTokens = DefaultMinTokens
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if maxTokens < minTokens {
		maxTokens = minTokens
	}
	return &Chunker{minTokens: minTokens, maxTokens: maxTokens}
}

// Chunk greedily packs sentences into drafts. A draft closes when appending
// the next sentence would push it past MaxTokens, but only once it has
// reached MinTokens; a draft still below MinTokens keeps accumulating even
// past MaxTokens. A single sentence longer than MaxTokens becomes its own
// draft, never split mid-sentence. Empty input yields zero drafts.
func (c *Chunker) Chunk(text string) []Draft {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var drafts []Draft
	var cur []string
	curTokens := 0

	flush := func() {
		if len(cur) == 0 {
			return
		}
		content := strings.Join(cur, " ")
		drafts = append(drafts, Draft{
			Ordinal:    len(drafts),
			Content:    content,
			TokenCount: EstimateTokens(content),
		})
		cur = nil
		curTokens = 0
	}

	for _, sentence := range sentences {
		tokens := EstimateTokens(sentence)
		if curTokens > 0 && curTokens+tokens > c.maxTokens && curTokens >= c.minTokens {
			flush()
		}
		cur = append(cur, sentence)
		curTokens += tokens
		if curTokens > c.maxTokens {
			// Only reachable when the draft was still below MinTokens
			// before this sentence, or the sentence alone is over-long.
			flush()
		}
	}
	flush()
	return drafts
}

// EstimateTokens counts whitespace-separated words plus one token per
// non-ASCII rune, which approximates CJK text reasonably. This feeds chunk
// sizing and lexical scoring, it is not a model tokenizer.
func EstimateTokens(text string) int {
	count := 0
	for _, r := range text {
		if r > 127 {
			count++
		}
	}
	count += len(strings.Fields(text))
	if count == 0 && len(text) > 0 {
		return 1
	}
	return count
}

// Common abbreviations that end in a period without ending a sentence.
var abbreviations = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {}, "sr": {}, "jr": {},
	"st": {}, "vs": {}, "etc": {}, "e.g": {}, "i.e": {}, "cf": {}, "al": {},
	"inc": {}, "ltd": {}, "co": {}, "fig": {}, "no": {}, "dept": {},
	"est": {}, "approx": {}, "u.s": {}, "u.k": {},
}

// SplitSentences applies the boundary heuristic: terminal punctuation
// followed by whitespace and a non-lowercase continuation, with guards for
// abbreviations, single-letter initials and decimal numbers. A blank line is
// always a boundary. The heuristic is a replaceable policy; callers must not
// assume more than "boundaries never land inside a sentence".
func SplitSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	var cur strings.Builder

	flush := func() {
		s := strings.TrimSpace(cur.String())
		if s != "" {
			sentences = append(sentences, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		cur.WriteRune(r)
		switch r {
		case '。', '！', '？', '…':
			flush()
		case '.', '!', '?':
			if isBoundary(runes, i) {
				flush()
			}
		case '\n':
			if i+1 < len(runes) && runes[i+1] == '\n' {
				flush()
			}
		}
	}
	flush()
	return sentences
}

func isBoundary(runes []rune, i int) bool {
	// Closing quotes and brackets stay attached to the sentence.
	j := i + 1
	for j < len(runes) && isCloser(runes[j]) {
		j++
	}
	if j < len(runes) && !unicode.IsSpace(runes[j]) {
		// Mid-token punctuation: decimals (3.14), versions, domains.
		return false
	}
	for j < len(runes) && unicode.IsSpace(runes[j]) {
		j++
	}
	if runes[i] != '.' {
		return true
	}
	if j < len(runes) && unicode.IsLower(runes[j]) {
		return false
	}
	return !isAbbreviation(runes, i)
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’', '」', '』':
		return true
	}
	return false
}

func isAbbreviation(runes []rune, i int) bool {
	start := i
	for start > 0 {
		prev := runes[start-1]
		if unicode.IsLetter(prev) || prev == '.' {
			start--
			continue
		}
		break
	}
	word := strings.Trim(string(runes[start:i]), ".")
	if word == "" {
		return false
	}
	if len([]rune(word)) == 1 && unicode.IsUpper([]rune(word)[0]) {
		// Single-letter initial: "J. Smith".
		return true
	}
	_, ok := abbreviations[strings.ToLower(word)]
	return ok
}
