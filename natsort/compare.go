package natsort

import (
	"cmp"
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"
)

// CompareTokens orders two tokens. The zero Token stands for "absent" and is
// only meaningful as padding past the end of a shorter sequence.
//
//   - absent sorts before anything present
//   - Digits sort before Char, whatever their values
//   - Digits compare by numeric value
//   - Char tokens compare case-insensitively; letters equal apart from case
//     fall back to a case-sensitive comparison, so "A" sorts before "a" but
//     "a" still sorts before "Z"
func CompareTokens(a, b Token) int {
	switch {
	case a.Kind == 0 && b.Kind == 0:
		return 0
	case a.Kind == 0:
		return -1
	case b.Kind == 0:
		return 1
	case a.Kind != b.Kind:
		if a.Kind == Digits {
			return -1
		}
		return 1
	case a.Kind == Digits:
		return compareDigits(a.Text, b.Text)
	default:
		return compareChars(a.Text, b.Text)
	}
}

// compareDigits compares canonical decimal strings by value.
func compareDigits(a, b string) int {
	if c := cmp.Compare(len(a), len(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

func compareChars(a, b string) int {
	ra, _ := utf8.DecodeRuneInString(a)
	rb, _ := utf8.DecodeRuneInString(b)
	if c := cmp.Compare(foldKey(ra), foldKey(rb)); c != 0 {
		return c
	}
	if c := cmp.Compare(ra, rb); c != 0 {
		return c
	}
	// Only reachable for distinct invalid bytes, which all decode to
	// utf8.RuneError.
	return strings.Compare(a, b)
}

// foldKey maps every case variant of a letter to one key.
func foldKey(r rune) rune {
	return unicode.ToLower(unicode.ToUpper(r))
}

// Compare orders two strings naturally. It returns -1, 0 or 1.
//
// Both strings are tokenized and compared token by token; the first
// difference decides. When one token sequence is a prefix of the other the
// shorter one sorts first. Distinct strings that tokenize identically (such
// as "a01" and "a1") compare equal.
func Compare(a, b string) int {
	nextA, stopA := iter.Pull(Tokens(a))
	defer stopA()
	nextB, stopB := iter.Pull(Tokens(b))
	defer stopB()

	for {
		ta, okA := nextA()
		tb, okB := nextB()
		if !okA && !okB {
			return 0
		}
		if c := CompareTokens(ta, tb); c != 0 {
			return c
		}
	}
}

// CompareOptional orders two optional strings. A nil string sorts after
// every present string, and two nil strings are equal.
func CompareOptional(a, b *string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return Compare(*a, *b)
}
