package repo

import "strings"

// LabeledURL is one row of the labeled URL dataset.
type LabeledURL struct {
	URL   string
	Label string
}

// LabelTable maps lookup-normalised URLs to their dataset label. It is read-only after construction.
type LabelTable struct {
	labels map[string]string
}

// NewLabelTable indexes rows by NormalizeForLookup. Later rows win over earlier duplicates.
func NewLabelTable(rows []LabeledURL) *LabelTable {
	labels := make(map[string]string, len(rows))
	for _, row := range rows {
		labels[NormalizeForLookup(row.URL)] = row.Label
	}
	return &LabelTable{labels: labels}
}

// Lookup returns the raw dataset label for url, if present.
func (t *LabelTable) Lookup(url string) (string, bool) {
	if t == nil {
		return "", false
	}
	label, ok := t.labels[NormalizeForLookup(url)]
	return label, ok
}

// Len is the number of distinct normalised URLs.
func (t *LabelTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.labels)
}

// NormalizeForLookup lowercases, trims surrounding whitespace and drops trailing slashes.
func NormalizeForLookup(url string) string {
	url = strings.TrimSpace(strings.ToLower(url))
	return strings.TrimRight(url, "/")
}
