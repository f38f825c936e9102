// Package canon implements URLCanonicalizer: the deterministic
// relative→absolute resolution, percent-encoding, validation, extension
// filtering, and public-suffix-aware host decomposition required of every
// URL before it may be submitted to the frontier.
package canon

import (
	"net/url"
	"regexp"
	"strings"
)

// reservedSafe is the set of characters percent-encoding must not touch,
// matching the original crawler's
// urllib.parse.quote(..., safe="%/:=&?~#+!$,;'@()*[]") call verbatim.
const reservedSafe = "%/:=&?~#+!$,;'@()*[]"

// Canonicalize resolves raw (an href discovered on currentPage) to an
// absolute URL string, or returns ("", false) if the href is rejected
// (javascript: scheme, or it fails to parse at any stage).
//
// Steps run in order: javascript: rejection, reserved-safe
// percent-encoding, RFC 3986 split, scheme/host inheritance resolution,
// fragment stripping, and repeated trailing-slash stripping.
func Canonicalize(raw string, currentPage string) (string, bool) {
	if strings.HasPrefix(raw, "javascript:") {
		return "", false
	}

	encodedRaw := percentEncode(raw, reservedSafe)
	encodedCurrent := percentEncode(currentPage, reservedSafe)

	splitRaw, err := url.Parse(encodedRaw)
	if err != nil {
		return "", false
	}
	splitCurrent, err := url.Parse(encodedCurrent)
	if err != nil {
		return "", false
	}

	var resolved string
	switch {
	case splitRaw.Scheme == "http" || splitRaw.Scheme == "https":
		resolved = splitRaw.String()
	case strings.HasPrefix(encodedRaw, "//"):
		resolved = splitCurrent.Scheme + ":" + encodedRaw
	case strings.HasPrefix(encodedRaw, "/"):
		resolved = splitCurrent.Scheme + "://" + splitCurrent.Hostname() + encodedRaw
	default:
		resolved = encodedCurrent
		if len(encodedRaw) > 0 {
			resolved += "/" + encodedRaw
		}
	}

	final, err := url.Parse(resolved)
	if err != nil {
		return "", false
	}

	// strip fragment
	final.Fragment = ""
	final.RawFragment = ""

	out := final.String()
	for strings.HasSuffix(out, "/") {
		out = out[:len(out)-1]
	}

	return out, true
}

// percentEncode walks s byte-by-byte, leaving ASCII letters, digits, and
// characters in safe untouched, and percent-encoding everything else.
func percentEncode(s string, safe string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreservedByte(c) || strings.IndexByte(safe, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexDigit(c >> 4))
		b.WriteByte(hexDigit(c & 0x0f))
	}
	return b.String()
}

func isUnreservedByte(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.' || c == '~'
}

func hexDigit(n byte) byte {
	const hex = "0123456789ABCDEF"
	return hex[n&0x0f]
}

// validateRegex preserves the source crawler's loose character
// class, deliberately NOT an alternation of "http"/"https": the original
// URL-validation regex uses a character class where an alternation was
// clearly intended ([http|https]+). The loose semantics are preserved for
// bit-compatibility with the original crawl history.
var validateRegex = regexp.MustCompile(`^[http|https]+://[^.]+\.[A-Za-z]+`)

// Validate reports whether rawURL passes the (intentionally loose) scheme
// and host shape check.
func Validate(rawURL string) bool {
	return validateRegex.MatchString(rawURL)
}

// allowedExtensions is the closed set of permitted path extensions. The
// "actionpl" entry is a known source-artifact preserved verbatim: the
// original config list concatenated "action" and "pl" literals without a
// separating comma, producing a single allowed extension token "actionpl"
// instead of the two entries "action" and "pl" that were clearly intended.
var allowedExtensions = map[string]struct{}{
	"asp": {}, "aspx": {}, "axd": {}, "asx": {}, "asmx": {}, "ashx": {},
	"cfm": {}, "yaws": {}, "html": {}, "htm": {}, "xhtml": {}, "jhtml": {},
	"jsp": {}, "jspx": {}, "wss": {}, "do": {}, "actionpl": {},
	"php": {}, "php4": {}, "php3": {}, "phtml": {}, "py": {}, "rb": {},
	"rhtml": {}, "xml": {}, "rss": {}, "cgi": {},
}

// AllowedExtension reports whether path's last segment, if it contains a
// dot, ends in an extension from the closed allow-list. Paths whose last
// segment has no dot are always allowed (they carry no file extension to
// reject).
func AllowedExtension(path string) bool {
	segments := strings.Split(path, "/")
	last := segments[len(segments)-1]

	dot := strings.LastIndexByte(last, '.')
	if dot < 0 {
		return true
	}

	ext := last[dot+1:]
	_, ok := allowedExtensions[ext]
	return ok
}
