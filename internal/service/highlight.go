package service

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/seekwell/seekwell/internal/model"
)

const snippetWidth = 240

type termMatch struct {
	start  int
	length int
}

// buildSnippet picks the span of the chunk with the highest local density of
// query-term matches and returns it with highlight offsets relative to the
// snippet. A hit with no lexical match (pure vector) gets the chunk's
// leading excerpt and no highlights.
func buildSnippet(content string, terms []string) (string, []model.Highlight) {
	matches := findMatches(content, terms)
	if len(matches) == 0 {
		return leadingExcerpt(content), nil
	}

	// Slide a fixed-width window anchored at each match; keep the window
	// covering the most matches, earliest window on ties.
	bestStart, bestCount := 0, -1
	for _, anchor := range matches {
		winStart := anchor.start
		winEnd := winStart + snippetWidth
		count := 0
		for _, m := range matches {
			if m.start >= winStart && m.start+m.length <= winEnd {
				count++
			}
		}
		if count > bestCount {
			bestCount = count
			bestStart = winStart
		}
	}

	winStart := alignToRune(content, bestStart)
	winEnd := winStart + snippetWidth
	if winEnd >= len(content) {
		winEnd = len(content)
	} else {
		winEnd = alignToRune(content, winEnd)
	}
	snippet := content[winStart:winEnd]

	highlights := make([]model.Highlight, 0, bestCount)
	for _, m := range matches {
		if m.start < winStart || m.start+m.length > winEnd {
			continue
		}
		highlights = append(highlights, model.Highlight{
			Start:  m.start - winStart,
			Length: m.length,
		})
	}
	return snippet, highlights
}

// findMatches locates every case-insensitive term occurrence as a byte span
// in the original content. The search runs over a lowercased copy, and spans
// are mapped back through a byte offset table because a handful of case pairs
// change UTF-8 width under lowering.
func findMatches(content string, terms []string) []termMatch {
	lowered, offsets := foldContent(content)
	var matches []termMatch
	for _, term := range terms {
		if term == "" {
			continue
		}
		from := 0
		for {
			idx := strings.Index(lowered[from:], term)
			if idx < 0 {
				break
			}
			lo := from + idx
			hi := lo + len(term)
			matches = append(matches, termMatch{start: offsets[lo], length: offsets[hi] - offsets[lo]})
			from = hi
		}
	}
	// Order by position for the window scan.
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].start < matches[j-1].start; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}
	return matches
}

// foldContent lowercases content rune by rune and records, for every byte of
// the lowered text plus the end sentinel, the original byte offset it maps to.
func foldContent(content string) (string, []int) {
	var b strings.Builder
	b.Grow(len(content))
	offsets := make([]int, 0, len(content)+1)
	for i, r := range content {
		lr := unicode.ToLower(r)
		for n := utf8.RuneLen(lr); n > 0; n-- {
			offsets = append(offsets, i)
		}
		b.WriteRune(lr)
	}
	offsets = append(offsets, len(content))
	return b.String(), offsets
}

func leadingExcerpt(content string) string {
	if len(content) <= snippetWidth {
		return content
	}
	end := alignToRune(content, snippetWidth)
	return content[:end]
}

// alignToRune moves the offset left until it sits on a rune boundary.
func alignToRune(content string, offset int) int {
	for offset > 0 && offset < len(content) && !utf8.RuneStart(content[offset]) {
		offset--
	}
	return offset
}
