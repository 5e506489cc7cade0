package translator

import (
	"strings"
	"unicode"
)

// Truncate keeps the first maxWords words of text. Line breaks and spacing
// between the kept words are preserved. maxWords <= 0 disables the limit.
func Truncate(text string, maxWords int) string {
	if maxWords <= 0 {
		return text
	}
	words := 0
	inWord := false
	for i, r := range text {
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			inWord = true
			words++
			if words > maxWords {
				return strings.TrimRightFunc(text[:i], unicode.IsSpace)
			}
		}
	}
	return text
}

// CountWords counts whitespace-separated words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
