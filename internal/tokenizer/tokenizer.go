package tokenizer

import (
	"strings"

	"golang.org/x/net/html"
)

// HTMLTokenizer drives golang.org/x/net/html's streaming token reader over
// a sanitized document body, maintaining a per-document tag stack and
// emitting a tagged event stream to a caller-supplied Sink. One
// HTMLTokenizer is constructed per document; it holds no state that
// survives past a single Run call, so a worker can safely reuse the same
// value across iterations.
type HTMLTokenizer struct {
	tagStack []string
}

// New returns a ready-to-use HTMLTokenizer.
func New() *HTMLTokenizer {
	return &HTMLTokenizer{}
}

// Run streams body through the tokenizer, emitting events to sink until
// the document is exhausted. Malformed HTML never surfaces as an error
// here: x/net/html's tokenizer already does best-effort recovery from
// unclosed tags and stray markup, and Run additionally tolerates a tag
// stack that underflows (an end tag with no matching start) by simply
// ignoring the pop.
func (t *HTMLTokenizer) Run(body []byte, sink Sink) {
	t.tagStack = t.tagStack[:0]
	z := html.NewTokenizer(strings.NewReader(string(body)))

	for {
		switch z.Next() {
		case html.ErrorToken:
			return
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			t.handleStartTag(tok, sink)
		case html.EndTagToken:
			tok := z.Token()
			t.popTag(tok.Data)
		case html.TextToken:
			t.handleText(z.Text(), sink)
		default:
			// Comment, doctype tokens carry nothing this system indexes.
		}
	}
}

func (t *HTMLTokenizer) handleStartTag(tok html.Token, sink Sink) {
	tag := tok.Data

	switch tag {
	case "a":
		if href, ok := attr(tok, "href"); ok {
			sink.Emit(Event{Kind: EventURL, URL: href})
		}
	case "img":
		if src, ok := attr(tok, "src"); ok {
			sink.Emit(Event{Kind: EventImage, URL: src})
		}
	case "meta":
		name, hasName := attr(tok, "name")
		content, hasContent := attr(tok, "content")
		if hasName && hasContent {
			sink.Emit(Event{Kind: EventMetaPair, MetaName: name, MetaContent: content})
		}
	}

	if _, void := voidElements[tag]; void {
		return
	}
	t.tagStack = append(t.tagStack, tag)
}

func (t *HTMLTokenizer) popTag(tag string) {
	if _, void := voidElements[tag]; void {
		return
	}
	for i := len(t.tagStack) - 1; i >= 0; i-- {
		if t.tagStack[i] == tag {
			t.tagStack = t.tagStack[:i]
			return
		}
	}
	// No matching open tag: best-effort recovery, leave the stack as-is.
}

func (t *HTMLTokenizer) handleText(text []byte, sink Sink) {
	innermost := t.innermost()
	if innermost == "" {
		sink.Emit(Event{Kind: EventContent, Text: string(text)})
		return
	}

	if innermost == "title" {
		sink.Emit(Event{Kind: EventTitle, Text: string(text)})
		return
	}

	if _, disallowed := disallowedContentTags[innermost]; disallowed {
		return
	}

	sink.Emit(Event{Kind: EventContent, Text: string(text)})
}

func (t *HTMLTokenizer) innermost() string {
	if len(t.tagStack) == 0 {
		return ""
	}
	return t.tagStack[len(t.tagStack)-1]
}

func attr(tok html.Token, key string) (string, bool) {
	for _, a := range tok.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
