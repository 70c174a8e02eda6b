package app

import (
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
)

// chunkSeparators are tried in order: paragraph, line, sentence, word, rune.
var chunkSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// RecursiveChunker splits text on the coarsest natural boundary that yields
// chunks within size runes, carrying up to overlap runes into the next chunk.
type RecursiveChunker struct {
	splitter textsplitter.RecursiveCharacter
	size     int
	overlap  int
}

func NewRecursiveChunker(size, overlap int) *RecursiveChunker {
	return &RecursiveChunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators(chunkSeparators),
		),
		size:    size,
		overlap: overlap,
	}
}

// Split never returns a chunk longer than size runes. The splitter's merge
// step can exceed the limit when a carried-over word is joined to a piece
// close to size; such chunks are cut again into overlapping rune windows.
func (c *RecursiveChunker) Split(text string) ([]string, error) {
	chunks, err := c.splitter.SplitText(text)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if utf8.RuneCountInString(chunk) <= c.size {
			out = append(out, chunk)
			continue
		}
		out = append(out, runeWindows(chunk, c.size, c.overlap)...)
	}
	return out, nil
}

// runeWindows cuts s into windows of at most size runes, each starting
// overlap runes before the previous one ended.
func runeWindows(s string, size, overlap int) []string {
	r := []rune(s)
	step := size - overlap
	if step <= 0 {
		step = size
	}

	var out []string
	for start := 0; start < len(r); start += step {
		end := start + size
		if end >= len(r) {
			out = append(out, string(r[start:]))
			break
		}
		out = append(out, string(r[start:end]))
	}
	return out
}
