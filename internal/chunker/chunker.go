// Package chunker normalizes input text and splits it into
// word-count-bounded chunks with fractional overlap between
// neighbors, so long documents can be summarized piecewise.
package chunker

import (
	"regexp"
	"strings"
)

// Defaults used by the content pipeline.
const (
	DefaultChunkSize      = 1500
	DefaultOverlapPercent = 0.25
)

var (
	spaceRuns   = regexp.MustCompile(`[ \t]+`)
	newlineRuns = regexp.MustCompile(`\n{3,}`)
)

// Normalize collapses whitespace: CRLF to LF, runs of spaces/tabs to a
// single space, runs of three or more newlines to a blank line, and
// trims the result.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = spaceRuns.ReplaceAllString(text, " ")
	text = newlineRuns.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// WordCount returns the number of whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Split chunks text into slices of at most size words, with
// floor(size*overlapPercent) words shared between consecutive chunks.
// Text of size words or fewer yields exactly one chunk. Invalid
// parameters fall back to the defaults.
func Split(text string, size int, overlapPercent float64) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlapPercent < 0 || overlapPercent >= 1 {
		overlapPercent = DefaultOverlapPercent
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if len(words) <= size {
		return []string{strings.Join(words, " ")}
	}

	overlap := int(float64(size) * overlapPercent)
	step := size - overlap
	if step <= 0 {
		step = 1
	}

	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}
