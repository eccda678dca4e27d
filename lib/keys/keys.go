// Package keys builds the scoped keys under which the coordination services
// store their entries. A scoped key has the form
//
//	<category>:<esc(id1)>/<esc(id2)>/...
//
// where esc is URL query escaping. An escaped id never contains '/' or ':',
// so two different (category, ids) tuples with at least one id never produce
// the same key.
package keys

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Categories used by the coordination services
const (
	CategoryODataWrite   = "odata-write"
	CategoryDav          = "dav"
	CategoryAccountLock  = "account-lock"
	CategoryCellRefCount = "cell-refcount"
	CategoryCellStatus   = "cell-status"
	CategoryBulkProgress = "bulk-progress"
)

var categoryPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// ValidCategory reports whether c can be used as a key category
func ValidCategory(c string) bool {
	return categoryPattern.MatchString(c)
}

// Compose returns the scoped key for a category and its ids.
// It panics if the category is invalid, categories are fixed at compile time.
func Compose(category string, ids ...string) string {
	key, err := TryCompose(category, ids...)
	if err != nil {
		panic(err)
	}
	return key
}

// TryCompose is like Compose but returns an error for an invalid category
func TryCompose(category string, ids ...string) (string, error) {
	if !ValidCategory(category) {
		return "", fmt.Errorf("invalid key category %q", category)
	}

	var sb strings.Builder
	sb.WriteString(category)
	sb.WriteByte(':')
	for i, id := range ids {
		if i > 0 {
			sb.WriteByte('/')
		}
		sb.WriteString(url.QueryEscape(id))
	}
	return sb.String(), nil
}

// Split reverses Compose
func Split(key string) (category string, ids []string, err error) {
	category, rest, ok := strings.Cut(key, ":")
	if !ok || !ValidCategory(category) {
		return "", nil, fmt.Errorf("not a scoped key: %q", key)
	}
	if rest == "" {
		return category, nil, nil
	}
	for _, part := range strings.Split(rest, "/") {
		id, err := url.QueryUnescape(part)
		if err != nil {
			return "", nil, fmt.Errorf("not a scoped key: %q: %w", key, err)
		}
		ids = append(ids, id)
	}
	return category, ids, nil
}
