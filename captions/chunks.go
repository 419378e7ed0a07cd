// Package captions splits a narration script into caption chunks and places
// each chunk (and, in typewriter mode, each word) on the narration clock.
package captions

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Chunk is one sentence of the script.
type Chunk struct {
	Text       string
	Words      []string
	WordCount  int
	CharWeight int
}

// SplitIntoChunks splits on terminal punctuation (. ! ?). A run of terminal
// marks stays with its sentence, and a period between two digits is not a
// boundary. A trailing fragment without punctuation becomes its own chunk.
func SplitIntoChunks(script string) []Chunk {
	runes := []rune(script)
	var chunks []Chunk
	start := 0

	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) || isDecimalPoint(runes, i) {
			continue
		}
		for i+1 < len(runes) && isTerminal(runes[i+1]) {
			i++
		}
		chunks = appendChunk(chunks, string(runes[start:i+1]))
		start = i + 1
	}
	if start < len(runes) {
		chunks = appendChunk(chunks, string(runes[start:]))
	}
	return chunks
}

func appendChunk(chunks []Chunk, raw string) []Chunk {
	text := strings.TrimSpace(raw)
	if text == "" {
		return chunks
	}
	words := strings.Fields(text)
	return append(chunks, Chunk{
		Text:       text,
		Words:      words,
		WordCount:  len(words),
		CharWeight: charWeight(words),
	})
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isDecimalPoint(runes []rune, i int) bool {
	return runes[i] == '.' &&
		i > 0 && i+1 < len(runes) &&
		unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1])
}

// wordWeight keeps very short words from flashing by in typewriter mode.
func wordWeight(word string) int {
	return max(utf8.RuneCountInString(word), 2)
}

func charWeight(words []string) int {
	total := 0
	for _, w := range words {
		total += wordWeight(w)
	}
	return total
}
