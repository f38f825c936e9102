package sanitizer

/*
Sanitizer is the tokenizer's recovery path for bytes that are not clean
UTF-8 and for byte sequences that would otherwise make the tokenizer
hang or panic on a malformed document. It does not touch HTML structure
(no tag stripping, no DOM repair) — that job now belongs entirely to
the tokenizer's own tag-stack handling. Sanitize runs once, before a
fetched body is handed to the tokenizer.
*/

import (
	"strings"
	"unicode/utf8"
)

// Sanitize repairs a fetched response body so it is well-formed UTF-8 and
// free of the NUL bytes that can desync an HTML tokenizer. Invalid byte
// sequences are replaced with the Unicode replacement character rather
// than rejected outright: a document with a handful of mis-encoded bytes
// still carries a crawlable page around them.
//
// Sanitize returns a SanitizeError only for an empty body; a body made
// entirely of invalid bytes comes back as replacement characters, not as
// an error. That failure is scoped to the one document, never to the
// worker that called it.
func Sanitize(body []byte) ([]byte, *SanitizeError) {
	if len(body) == 0 {
		return nil, &SanitizeError{
			Message: "document body is empty",
			Cause:   ErrCauseInvalidUTF8,
		}
	}

	body = stripNUL(body)

	if utf8.Valid(body) {
		return body, nil
	}

	repaired := repairUTF8(body)
	if !utf8.ValidString(repaired) || strings.TrimSpace(repaired) == "" {
		return nil, &SanitizeError{
			Message: "document body contains no recoverable UTF-8 content",
			Cause:   ErrCauseInvalidUTF8,
		}
	}

	return []byte(repaired), nil
}

func stripNUL(body []byte) []byte {
	if !strings.Contains(string(body), "\x00") {
		return body
	}
	return []byte(strings.ReplaceAll(string(body), "\x00", ""))
}

// repairUTF8 walks body rune-by-rune, substituting the Unicode replacement
// character for every invalid byte run instead of stopping at the first
// one, so a single mis-encoded byte does not discard the rest of the page.
func repairUTF8(body []byte) string {
	var b strings.Builder
	b.Grow(len(body))

	for len(body) > 0 {
		r, size := utf8.DecodeRune(body)
		if r == utf8.RuneError && size <= 1 {
			b.WriteRune(utf8.RuneError)
			body = body[1:]
			continue
		}
		b.WriteRune(r)
		body = body[size:]
	}

	return b.String()
}
