package catalog

import "strings"

// Deduplicator tracks identity keys seen during one ingestion pass. The first
// occurrence of a key wins.
type Deduplicator struct {
	seen       map[string]struct{}
	duplicates []string
}

// NewDeduplicator returns an empty Deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]struct{})}
}

// Add records key and reports whether it was new. Repeats are remembered in
// Duplicates.
func (d *Deduplicator) Add(key string) bool {
	if _, ok := d.seen[key]; ok {
		d.duplicates = append(d.duplicates, key)
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

// Seen reports whether key was already added.
func (d *Deduplicator) Seen(key string) bool {
	_, ok := d.seen[key]
	return ok
}

// Duplicates returns repeated keys in the order they were rejected.
func (d *Deduplicator) Duplicates() []string {
	return append([]string(nil), d.duplicates...)
}

// FormatFilter is the allow-list of binding classifiers treated as catalog entries.
type FormatFilter struct {
	allowed map[string]struct{}
}

// NewFormatFilter builds a case-insensitive filter over formats.
func NewFormatFilter(formats []string) FormatFilter {
	allowed := make(map[string]struct{}, len(formats))
	for _, format := range formats {
		if key := normalizeFormat(format); key != "" {
			allowed[key] = struct{}{}
		}
	}
	return FormatFilter{allowed: allowed}
}

// Allows reports whether binding is a catalog format.
func (f FormatFilter) Allows(binding string) bool {
	_, ok := f.allowed[normalizeFormat(binding)]
	return ok
}

func normalizeFormat(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}
