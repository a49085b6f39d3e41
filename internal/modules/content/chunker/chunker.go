package chunker

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

var ErrInvalidLimit = errors.New("chunker: max length must be positive")

// Split breaks text into chunks of at most maxLen characters, cutting only at
// sentence boundaries (".", "!" or "?" followed by whitespace). A single
// sentence longer than maxLen is emitted whole as its own chunk.
func Split(text string, maxLen int) ([]string, error) {
	if maxLen <= 0 {
		return nil, ErrInvalidLimit
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return []string{}, nil
	}

	out := make([]string, 0, utf8.RuneCountInString(text)/maxLen+1)
	var buf strings.Builder
	flush := func() {
		if s := strings.TrimSpace(buf.String()); s != "" {
			out = append(out, s)
		}
		buf.Reset()
	}

	for _, sentence := range Sentences(text) {
		candidate := strings.TrimSpace(buf.String() + sentence)
		if buf.Len() > 0 && utf8.RuneCountInString(candidate) > maxLen {
			flush()
		}
		buf.WriteString(sentence)
	}
	flush()
	return out, nil
}

// Sentences splits text after each terminator that is followed by whitespace.
// The trailing whitespace stays with the sentence before it, so joining the
// result reproduces text exactly.
func Sentences(text string) []string {
	if text == "" {
		return nil
	}
	var out []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminator(runes[i]) {
			continue
		}
		j := i + 1
		if j >= len(runes) || !unicode.IsSpace(runes[j]) {
			continue
		}
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		out = append(out, string(runes[start:j]))
		start = j
		i = j - 1
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

// WordCount counts whitespace separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
