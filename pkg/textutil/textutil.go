// Package textutil provides text utilities for commit content and messages.
package textutil

import (
	"bytes"
	"strings"
	"unicode"
)

// BinarySniffLength is how many leading bytes IsBinary inspects, the same
// window git uses.
const BinarySniffLength = 8000

// IsBinary reports whether a NUL byte occurs in the first BinarySniffLength
// bytes of data. Binary blobs get no source content in a commit.
func IsBinary(data []byte) bool {
	if len(data) == 0 {
		return false
	}

	sniff := data
	if len(sniff) > BinarySniffLength {
		sniff = sniff[:BinarySniffLength]
	}

	return bytes.IndexByte(sniff, 0) >= 0
}

// AlphaWords splits s on whitespace, trims surrounding punctuation from each
// token and keeps the tokens made only of letters.
func AlphaWords(s string) []string {
	fields := strings.Fields(s)
	out := fields[:0]

	for _, field := range fields {
		word := strings.TrimFunc(field, unicode.IsPunct)
		if word != "" && isAlpha(word) {
			out = append(out, word)
		}
	}

	return out
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}

	return true
}
