package indexclient

import "time"

// Collection names one of the two logical collections the index partitions
// documents into.
type Collection string

const (
	CollectionWorking Collection = "working"
	CollectionMain    Collection = "main"
)

// Document is a flat field map keyed by the index schema's field names
// (id, is_https, subdomain, domain, tld, path, last_update_time, title,
// meta_description, meta_keywords, content, and boost on main roots).
type Document map[string]any

// AddParam controls one add/upsert call.
type AddParam struct {
	Overwrite bool
	Commit    bool
}

// DeleteParam controls one delete call.
type DeleteParam struct {
	Commit bool
}

// SearchParam controls one query call.
type SearchParam struct {
	Filter  string
	Rows    int
	Start   int
	Timeout time.Duration
}

// SearchPage is one page of query results.
type SearchPage struct {
	Docs     []Document
	NumFound int
}
