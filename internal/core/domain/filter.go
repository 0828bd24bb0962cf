package domain

import "fmt"

// Reserved filter keys that match record columns rather than metadata.
const (
	FilterDocumentKey = "document_key"
	FilterContentType = "content_type"
)

// Filter restricts similarity search. Keys other than the reserved ones are
// compared against record metadata. A nil filter matches everything.
type Filter map[string]any

// Matches reports whether the record satisfies every filter entry.
// Values are compared by their string form so that JSON round-trips
// (int vs float64) do not break equality.
func (f Filter) Matches(rec VectorRecord) bool {
	for key, want := range f {
		var got any
		var ok bool
		switch key {
		case FilterDocumentKey:
			got, ok = rec.DocumentKey, true
		case FilterContentType:
			got, ok = rec.ContentType, true
		default:
			got, ok = rec.Metadata[key]
		}
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

// DocumentKey returns the document key filter value, if present.
func (f Filter) DocumentKey() (string, bool) {
	v, ok := f[FilterDocumentKey]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Without returns a copy of the filter lacking the given keys.
func (f Filter) Without(keys ...string) Filter {
	out := make(Filter, len(f))
	for k, v := range f {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}
