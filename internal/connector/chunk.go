package connector

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultChunkLimit is the single-post character limit applied when the
// provider config does not set one.
const DefaultChunkLimit = 280

// Explicit section break: a blank line or a horizontal rule of 4+ hyphens.
var sectionBreak = regexp.MustCompile(`\n{2,}|\n?-{4,}\n?`)

// SplitContent chunks content for thread posting. Explicit separators win;
// any remaining oversized section is packed greedily word by word, starting
// a new chunk when the next word would overflow the limit.
func SplitContent(content string, limit int) []string {
	if limit <= 0 {
		limit = DefaultChunkLimit
	}

	var chunks []string
	for _, section := range sectionBreak.Split(content, -1) {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}
		if utf8.RuneCountInString(section) <= limit {
			chunks = append(chunks, section)
			continue
		}
		chunks = append(chunks, packWords(section, limit)...)
	}

	return chunks
}

// packWords greedily fills chunks with whitespace-delimited words.
func packWords(section string, limit int) []string {
	var chunks []string
	var b strings.Builder
	length := 0

	flush := func() {
		if length > 0 {
			chunks = append(chunks, b.String())
			b.Reset()
			length = 0
		}
	}

	for _, word := range strings.Fields(section) {
		wordLen := utf8.RuneCountInString(word)

		// A single word longer than the limit is hard-split.
		if wordLen > limit {
			flush()
			for _, part := range splitRunes(word, limit) {
				chunks = append(chunks, part)
			}
			continue
		}

		need := wordLen
		if length > 0 {
			need++ // joining space
		}
		if length+need > limit {
			flush()
			need = wordLen
		}
		if length > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(word)
		length += need
	}
	flush()

	return chunks
}

func splitRunes(word string, limit int) []string {
	runes := []rune(word)
	var parts []string
	for len(runes) > limit {
		parts = append(parts, string(runes[:limit]))
		runes = runes[limit:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
