// Package chunk splits normalized text into overlapping fixed-width windows.
package chunk

import (
	"strings"

	"github.com/calque-ai/docqa/pkg/rag"
)

// MinLength is the rune count a chunk must exceed to be kept.
const MinLength = 20

// Preset is a chunk size and overlap pair, both in runes.
type Preset struct {
	Size    int
	Overlap int
}

var presets = map[rag.SourceKind]Preset{
	rag.SourceText:    {Size: 500, Overlap: 50},
	rag.SourceTXT:     {Size: 500, Overlap: 50},
	rag.SourcePDF:     {Size: 800, Overlap: 100},
	rag.SourceWebsite: {Size: 600, Overlap: 75},
}

// PresetFor returns the chunking parameters for a source kind. Unknown kinds
// get the plain text preset.
func PresetFor(kind rag.SourceKind) Preset {
	if p, ok := presets[kind]; ok {
		return p
	}
	return presets[rag.SourceText]
}

// Normalize collapses every whitespace run to a single space and trims the ends.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Split cuts text into windows of at most size runes, each starting overlap
// runes before the end of the previous one.
//
// Input: raw text, window size, overlap (both in runes)
// Output: chunks in document order
// Behavior: whitespace is normalized first; the last window ends exactly at the
// end of the text; windows of MinLength runes or fewer are dropped. size <= 0
// yields nothing, a negative overlap counts as zero, and overlap >= size stops
// after the first window.
//
// Example:
//
//	parts := chunk.Split(doc, 500, 50)
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}

	runes := []rune(Normalize(text))
	n := len(runes)
	if n == 0 {
		return nil
	}

	var chunks []string
	for start := 0; start < n; {
		end := min(start+size, n)
		if end-start > MinLength {
			chunks = append(chunks, string(runes[start:end]))
		}
		if end == n {
			break
		}
		start = end - overlap
		if start <= 0 {
			break
		}
	}
	return chunks
}

// SplitFor is Split with the preset for kind.
func SplitFor(kind rag.SourceKind, text string) []string {
	p := PresetFor(kind)
	return Split(text, p.Size, p.Overlap)
}
