package chunker

import (
	"fmt"
	"strings"
	"testing"
)

func wordsText(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(words, " ")
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"crlf to lf", "a\r\nb", "a\nb"},
		{"bare cr to lf", "a\rb", "a\nb"},
		{"space runs collapse", "a    b\t\tc", "a b c"},
		{"newline runs collapse", "a\n\n\n\n\nb", "a\n\nb"},
		{"lines trimmed", "  a  \n  b  ", "a\nb"},
		{"outer trim", "\n\n  hello  \n\n", "hello"},
		{"empty", "   \n\t\n  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestWordCount(t *testing.T) {
	if got := WordCount("one two  three\nfour"); got != 4 {
		t.Errorf("WordCount = %d, want 4", got)
	}
	if got := WordCount("   "); got != 0 {
		t.Errorf("WordCount(blank) = %d, want 0", got)
	}
}

func TestSplit_AtMostSizeWordsYieldsOneChunk(t *testing.T) {
	for _, n := range []int{1, 99, 100} {
		chunks := Split(wordsText(n), 100, 0.25)
		if len(chunks) != 1 {
			t.Errorf("%d words: got %d chunks, want 1", n, len(chunks))
		}
		if WordCount(chunks[0]) != n {
			t.Errorf("%d words: chunk has %d words", n, WordCount(chunks[0]))
		}
	}
}

func TestSplit_JustOverSizeYieldsTwoOverlappingChunks(t *testing.T) {
	// 101 words, size 100, 25% overlap: step is 75, so the second
	// chunk starts at word 75 and shares 25 words with the first.
	chunks := Split(wordsText(101), 100, 0.25)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if WordCount(chunks[0]) != 100 {
		t.Errorf("first chunk has %d words, want 100", WordCount(chunks[0]))
	}

	second := strings.Fields(chunks[1])
	if second[0] != "w75" {
		t.Errorf("second chunk starts at %s, want w75", second[0])
	}
	if second[len(second)-1] != "w100" {
		t.Errorf("second chunk ends at %s, want w100", second[len(second)-1])
	}
}

func TestSplit_OverlapSharedBetweenNeighbors(t *testing.T) {
	chunks := Split(wordsText(250), 100, 0.25)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want at least 2", len(chunks))
	}

	for i := 1; i < len(chunks); i++ {
		prev := strings.Fields(chunks[i-1])
		cur := strings.Fields(chunks[i])
		// Last 25 words of prev == first 25 words of cur.
		tail := prev[len(prev)-25:]
		for j := 0; j < 25 && j < len(cur); j++ {
			if tail[j] != cur[j] {
				t.Fatalf("chunks %d/%d: overlap word %d is %s vs %s", i-1, i, j, tail[j], cur[j])
			}
		}
	}
}

func TestSplit_CoversAllWordsInOrder(t *testing.T) {
	const n = 4000
	chunks := Split(wordsText(n), DefaultChunkSize, DefaultOverlapPercent)

	last := strings.Fields(chunks[len(chunks)-1])
	if last[len(last)-1] != fmt.Sprintf("w%d", n-1) {
		t.Errorf("final chunk ends at %s, want w%d", last[len(last)-1], n-1)
	}
	first := strings.Fields(chunks[0])
	if first[0] != "w0" {
		t.Errorf("first chunk starts at %s, want w0", first[0])
	}
	for _, c := range chunks {
		if WordCount(c) > DefaultChunkSize {
			t.Errorf("chunk exceeds size: %d words", WordCount(c))
		}
	}
}

func TestSplit_InvalidParamsFallBackToDefaults(t *testing.T) {
	chunks := Split(wordsText(DefaultChunkSize), -5, 2.0)
	if len(chunks) != 1 {
		t.Errorf("got %d chunks, want 1 with default size", len(chunks))
	}
}

func TestSplit_EmptyText(t *testing.T) {
	if chunks := Split("   ", 100, 0.25); chunks != nil {
		t.Errorf("got %v, want nil", chunks)
	}
}
