package onnx

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	clsToken        = "[CLS]"
	sepToken        = "[SEP]"
	unkToken        = "[UNK]"
	maxCharsPerWord = 100
)

// WordPiece is the uncased BERT tokenizer used by the MiniLM sentence encoders.
type WordPiece struct {
	vocab  map[string]int64
	unkID  int64
	clsID  int64
	sepID  int64
	maxLen int
}

// LoadVocab reads a vocab.txt file, one token per line, id = line number.
func LoadVocab(path string) (map[string]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	vocab := make(map[string]int64)
	sc := bufio.NewScanner(f)
	var id int64
	for sc.Scan() {
		vocab[strings.TrimRight(sc.Text(), "\r")] = id
		id++
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return vocab, nil
}

func NewWordPiece(vocab map[string]int64, maxLen int) (*WordPiece, error) {
	if maxLen < 3 {
		return nil, fmt.Errorf("max sequence length %d too small", maxLen)
	}
	w := &WordPiece{vocab: vocab, maxLen: maxLen}
	for token, dst := range map[string]*int64{clsToken: &w.clsID, sepToken: &w.sepID, unkToken: &w.unkID} {
		id, ok := vocab[token]
		if !ok {
			return nil, fmt.Errorf("vocab is missing %s", token)
		}
		*dst = id
	}
	return w, nil
}

// Encode returns input ids, attention mask and token type ids for a single
// sequence, wrapped in [CLS] ... [SEP] and truncated to maxLen.
func (w *WordPiece) Encode(text string) (ids, mask, typeIDs []int64) {
	ids = append(ids, w.clsID)
	for _, token := range basicTokens(text) {
		pieces := w.wordPieces(token)
		if len(ids)+len(pieces) > w.maxLen-1 {
			pieces = pieces[:w.maxLen-1-len(ids)]
			ids = append(ids, pieces...)
			break
		}
		ids = append(ids, pieces...)
	}
	ids = append(ids, w.sepID)

	mask = make([]int64, len(ids))
	typeIDs = make([]int64, len(ids))
	for i := range mask {
		mask[i] = 1
	}
	return ids, mask, typeIDs
}

func (w *WordPiece) wordPieces(token string) []int64 {
	chars := []rune(token)
	if len(chars) > maxCharsPerWord {
		return []int64{w.unkID}
	}

	var ids []int64
	for start := 0; start < len(chars); {
		end := len(chars)
		found := int64(-1)
		for ; start < end; end-- {
			sub := string(chars[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if id, ok := w.vocab[sub]; ok {
				found = id
				break
			}
		}
		if found < 0 {
			return []int64{w.unkID}
		}
		ids = append(ids, found)
		start = end
	}
	return ids
}

// basicTokens lowercases, strips accents and splits on whitespace and
// punctuation. CJK ideographs become single-character tokens.
func basicTokens(text string) []string {
	stripAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	cleaned, _, err := transform.String(stripAccents, strings.ToLower(text))
	if err != nil {
		cleaned = strings.ToLower(text)
	}

	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range cleaned {
		switch {
		case r == 0 || r == unicode.ReplacementChar:
		case unicode.IsSpace(r):
			flush()
		case unicode.IsControl(r):
		case isPunctuation(r) || unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

func isPunctuation(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}
