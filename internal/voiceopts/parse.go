// Package voiceopts parses the argument string of the speech command into a
// message body and optional named voice overrides.
//
// The grammar is deliberately loose: tokens are split on whitespace, double
// quotes group words into one token, and the three recognized flags may appear
// anywhere among the body words. Every unrecognized token belongs to the body.
// A recognized flag must be followed by a numeric value; a non-numeric value
// or a flag with no value at all is a parse failure. Range checking is not
// done here: the synthesis client clamps out-of-range values silently.
package voiceopts

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Recognized flags.
const (
	FlagStability  = "-s" // voice stability, clamped to [0, 1]
	FlagSpeed      = "-v" // speaking speed, clamped to [0.7, 1.2]
	FlagSimilarity = "-b" // similarity boost, clamped to [0, 1]
)

// Overrides carries the optional numeric settings. Nil means the flag was not
// given and the voice's stored default applies.
type Overrides struct {
	Stability       *float64
	Speed           *float64
	SimilarityBoost *float64
}

// Empty reports whether no override was given.
func (o Overrides) Empty() bool {
	return o.Stability == nil && o.Speed == nil && o.SimilarityBoost == nil
}

// Result is a successful parse: the overrides and the reassembled body.
type Result struct {
	Overrides Overrides
	Body      string
}

// ParseError describes a malformed flag. Token is empty when the flag was the
// last token and had no value at all.
type ParseError struct {
	Flag  string
	Token string
}

func (e *ParseError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("flag %s is missing its value", e.Flag)
	}
	return fmt.Sprintf("flag %s expects a number, got %q", e.Flag, e.Token)
}

// Parse splits input into overrides and body. The body keeps the order of its
// tokens joined by single spaces; surrounding quotes are stripped. A repeated
// flag keeps its last value.
func Parse(input string) (Result, error) {
	var res Result
	var body []string

	tokens := tokenize(input)
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if !recognized(tok) {
			body = append(body, tok)
			continue
		}

		if i+1 >= len(tokens) {
			return Result{}, &ParseError{Flag: tok}
		}
		raw := tokens[i+1]
		i++

		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Result{}, &ParseError{Flag: tok, Token: raw}
		}

		switch tok {
		case FlagStability:
			res.Overrides.Stability = &v
		case FlagSpeed:
			res.Overrides.Speed = &v
		case FlagSimilarity:
			res.Overrides.SimilarityBoost = &v
		}
	}

	res.Body = strings.Join(body, " ")
	return res, nil
}

func recognized(tok string) bool {
	switch tok {
	case FlagStability, FlagSpeed, FlagSimilarity:
		return true
	}
	return false
}

// tokenize splits on whitespace outside double quotes. Quotes group words and
// are dropped; an unterminated quote runs to the end of the input.
func tokenize(input string) []string {
	var tokens []string
	var cur strings.Builder
	inQuote := false

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for _, r := range input {
		switch {
		case r == '"':
			inQuote = !inQuote
		case !inQuote && unicode.IsSpace(r):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}
