package tokenizer

import "strings"

// Accumulator is the per-iteration Sink both CrawlerWorker and
// IndexerWorker drive the tokenizer's event stream into. It is a plain
// struct, not a singleton: each worker owns one and clears it (via Reset)
// between documents so no worker ever shares buffers with another.
//
// meta_title is populated ONLY from a <meta name="title" content=...>
// pair, never from the <title> element's own text — the two are tracked
// separately on purpose.
type Accumulator struct {
	title           strings.Builder
	metaTitle       string
	metaDescription string
	metaKeywords    string
	content         strings.Builder
	links           []string
	images          []string
}

// NewAccumulator returns a ready-to-use Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Reset clears every buffer so the same Accumulator value can be reused
// for the next document.
func (a *Accumulator) Reset() {
	a.title.Reset()
	a.metaTitle = ""
	a.metaDescription = ""
	a.metaKeywords = ""
	a.content.Reset()
	a.links = a.links[:0]
	a.images = a.images[:0]
}

// Emit implements tokenizer.Sink.
func (a *Accumulator) Emit(e Event) {
	switch e.Kind {
	case EventTitle:
		a.title.WriteString(e.Text)
	case EventContent:
		a.content.WriteString(e.Text)
		a.content.WriteByte(' ')
	case EventURL:
		a.links = append(a.links, e.URL)
	case EventImage:
		a.images = append(a.images, e.URL)
	case EventMetaPair:
		switch strings.ToLower(e.MetaName) {
		case "title":
			a.metaTitle = e.MetaContent
		case "description":
			a.metaDescription = e.MetaContent
		case "keywords":
			a.metaKeywords = e.MetaContent
		}
	}
}

func (a *Accumulator) Title() string           { return a.title.String() }
func (a *Accumulator) MetaTitle() string       { return a.metaTitle }
func (a *Accumulator) MetaDescription() string { return a.metaDescription }
func (a *Accumulator) MetaKeywords() string    { return a.metaKeywords }
func (a *Accumulator) RawContent() string      { return a.content.String() }
func (a *Accumulator) Links() []string         { return a.links }
func (a *Accumulator) Images() []string        { return a.images }

var _ Sink = (*Accumulator)(nil)
