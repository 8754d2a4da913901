package connector

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitContent_ShortContentSingleChunk(t *testing.T) {
	chunks := SplitContent("a short update", 280)
	if len(chunks) != 1 || chunks[0] != "a short update" {
		t.Errorf("unexpected chunks: %v", chunks)
	}
}

func TestSplitContent_LongContentPreservesWords(t *testing.T) {
	// 600 characters of repeated words, no explicit separators.
	word := "sample"
	var b strings.Builder
	for b.Len() < 600 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(word)
	}
	content := b.String()[:600]
	content = strings.TrimSuffix(content, " ")

	chunks := SplitContent(content, 280)

	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if utf8.RuneCountInString(chunk) > 280 {
			t.Errorf("chunk %d exceeds limit: %d runes", i, utf8.RuneCountInString(chunk))
		}
	}

	// Concatenating all chunks' words reconstructs the original sequence.
	var got []string
	for _, chunk := range chunks {
		got = append(got, strings.Fields(chunk)...)
	}
	want := strings.Fields(content)
	if len(got) != len(want) {
		t.Fatalf("word count changed: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("word %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitContent_ExplicitSeparators(t *testing.T) {
	content := "first section\n\nsecond section\n----\nthird section"
	chunks := SplitContent(content, 280)

	want := []string{"first section", "second section", "third section"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %v", len(want), len(chunks), chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, chunks[i], want[i])
		}
	}
}

func TestSplitContent_OversizedSectionAfterSeparator(t *testing.T) {
	long := strings.Repeat("word ", 100) // ~500 chars
	content := "intro\n\n" + strings.TrimSpace(long)

	chunks := SplitContent(content, 280)
	if len(chunks) < 3 {
		t.Fatalf("expected intro plus 2+ packed chunks, got %d", len(chunks))
	}
	if chunks[0] != "intro" {
		t.Errorf("first chunk = %q, want %q", chunks[0], "intro")
	}
}

func TestSplitContent_WordLongerThanLimit(t *testing.T) {
	chunks := SplitContent(strings.Repeat("x", 25), 10)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %v", len(chunks), chunks)
	}
	for i, chunk := range chunks {
		if utf8.RuneCountInString(chunk) > 10 {
			t.Errorf("chunk %d exceeds limit", i)
		}
	}
}

func TestSplitContent_ZeroLimitUsesDefault(t *testing.T) {
	chunks := SplitContent("short", 0)
	if len(chunks) != 1 {
		t.Fatalf("unexpected chunks: %v", chunks)
	}
}
