package tokenizer

/*
HTMLTokenizer streams a fetched page body into a tagged event sequence,
maintaining a tag stack so a sink can decide, per piece of character
data, whether the innermost open tag makes that data indexable. It
never builds a DOM: golang.org/x/net/html's low-level Tokenizer gives
one token at a time and this package turns that into the five event
kinds CrawlerWorker and IndexerWorker each consume through their own
Sink.
*/

// EventKind identifies which of the tokenizer's five observable event
// kinds a Event carries.
type EventKind int

const (
	EventURL EventKind = iota
	EventImage
	EventMetaPair
	EventTitle
	EventContent
)

// Event is one emission from the tokenizer's event stream. Only the
// fields relevant to Kind are populated; the rest are zero values.
type Event struct {
	Kind EventKind

	// URL carries the raw, not-yet-canonicalized href/src attribute value
	// for EventURL and EventImage.
	URL string

	// MetaName/MetaContent carry a <meta name=N content=C> pair for
	// EventMetaPair.
	MetaName    string
	MetaContent string

	// Text carries character data for EventTitle and EventContent.
	Text string
}

// Sink receives the tokenizer's event stream. CrawlerWorker and
// IndexerWorker each implement their own Sink to accumulate the fields
// they publish; the tokenizer itself holds no accumulator state.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// disallowedContentTags is the set of innermost-open-tag names that
// suppress character-data emission entirely: form controls, the frame,
// image, and media families, style/link, meta/base, and the
// script/noscript/applet/embed/object/param family. Title is handled
// separately (its data emits as EventTitle, not suppressed).
var disallowedContentTags = map[string]struct{}{
	"title":    {},
	"input":    {},
	"textarea": {},
	"select":   {},
	"option":   {},
	"button":   {},
	"frame":    {},
	"frameset": {},
	"iframe":   {},
	"img":      {},
	"picture":  {},
	"source":   {},
	"audio":    {},
	"video":    {},
	"track":    {},
	"style":    {},
	"link":     {},
	"meta":     {},
	"base":     {},
	"script":   {},
	"noscript": {},
	"applet":   {},
	"embed":    {},
	"object":   {},
	"param":    {},
}

// voidElements never push onto the tag stack: x/net/html reports them as
// StartTagToken (sometimes SelfClosingTagToken) with no matching
// EndTagToken, so pushing one would desync the stack against every
// document that omits the closing slash.
var voidElements = map[string]struct{}{
	"area": {}, "base": {}, "br": {}, "col": {}, "embed": {}, "hr": {},
	"img": {}, "input": {}, "link": {}, "meta": {}, "param": {},
	"source": {}, "track": {}, "wbr": {},
}
