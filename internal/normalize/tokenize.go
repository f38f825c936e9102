package normalize

/*
Normalize turns the title/meta/content accumulators a CrawlerWorker or
IndexerWorker builds while draining the tokenizer's event stream into the
flat string fields a content document publishes. The one rule that
matters here: `content` is a space-joined sequence of lowercase tokens,
each matching \w+ and beginning with an ASCII letter (see testable
property 12). cleanup_string's result is always assigned, never
discarded — see the preserved-ambiguity note this package resolves.
*/

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Content tokenizes raw accumulated body text into the normalized
// space-joined lowercase word sequence a content document's `content`
// field stores. A token is a maximal run of word characters (letters,
// digits, underscore) that begins with an ASCII letter; runs starting
// with a digit or underscore are dropped, matching "Hello, 42 World!" →
// "hello world".
func Content(raw string) string {
	tokens := tokenize(raw)
	return strings.Join(tokens, " ")
}

// MetaKeywords cleans a raw meta-keywords attribute value the same way
// Content does, preserving comma-separated structure as whitespace so
// each keyword survives as its own token sequence.
func MetaKeywords(raw string) string {
	return Content(strings.ReplaceAll(raw, ",", " "))
}

// CleanupString trims surrounding whitespace and collapses interior
// whitespace runs for fields that are published verbatim rather than
// tokenized (title, meta_title, meta_description). The caller must
// assign the returned value; a code path that calls CleanupString and
// discards the result publishes the un-cleaned field, which is the
// defect the source's design notes flag as ambiguous and this package
// avoids by construction — every caller in this repo assigns the
// result.
func CleanupString(raw string) string {
	fields := strings.Fields(raw)
	return strings.Join(fields, " ")
}

func tokenize(raw string) []string {
	var tokens []string
	var b strings.Builder

	flush := func() {
		if b.Len() == 0 {
			return
		}
		tok := b.String()
		b.Reset()
		if isValidToken(tok) {
			tokens = append(tokens, strings.ToLower(tok))
		}
	}

	for _, r := range raw {
		if isWordChar(r) {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()

	return tokens
}

func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func isValidToken(tok string) bool {
	if tok == "" {
		return false
	}
	first, _ := utf8.DecodeRuneInString(tok)
	return first >= 'A' && first <= 'Z' || first >= 'a' && first <= 'z'
}
