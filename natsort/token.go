// Package natsort implements natural ordering of strings, where runs of
// decimal digits compare as whole numbers ("Floor 2" before "Floor 10").
//
// All functions are pure and safe for concurrent use.
package natsort

import (
	"iter"
	"strings"
	"unicode/utf8"
)

// Kind distinguishes the two token variants.
type Kind uint8

const (
	// Digits is a maximal run of decimal digits, compared numerically.
	Digits Kind = iota + 1
	// Char is a single non-digit character.
	Char
)

// Token is one comparison unit of a tokenized string.
//
// For Digits tokens, Text holds the run's value in canonical decimal form
// (leading zeros removed, "0" for a run of zeros). Keeping the value as text
// lets runs of any length compare without overflow. For Char tokens, Text
// holds exactly one character.
type Token struct {
	Kind Kind
	Text string
}

// Number returns a Digits token with the value of the given digit run.
func Number(run string) Token {
	n := strings.TrimLeft(run, "0")
	if n == "" {
		n = "0"
	}
	return Token{Kind: Digits, Text: n}
}

// Character returns a Char token for r.
func Character(r rune) Token {
	return Token{Kind: Char, Text: string(r)}
}

// String returns the token's text.
func (t Token) String() string {
	return t.Text
}

// Tokens returns the tokens of s as a sequence. The sequence may be
// iterated any number of times.
func Tokens(s string) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		for i := 0; i < len(s); {
			if isDigit(s[i]) {
				j := i + 1
				for j < len(s) && isDigit(s[j]) {
					j++
				}
				if !yield(Number(s[i:j])) {
					return
				}
				i = j
				continue
			}
			// Invalid UTF-8 bytes become one-byte tokens so no input is lost.
			_, size := utf8.DecodeRuneInString(s[i:])
			if !yield(Token{Kind: Char, Text: s[i : i+size]}) {
				return
			}
			i += size
		}
	}
}

// Tokenize splits s into tokens. An empty string yields no tokens.
func Tokenize(s string) []Token {
	var out []Token
	for t := range Tokens(s) {
		out = append(out, t)
	}
	return out
}

// Join concatenates the text of tokens. Join(Tokenize(s)) equals s with
// leading zeros stripped from every digit run.
func Join(tokens []Token) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t.Text)
	}
	return b.String()
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
