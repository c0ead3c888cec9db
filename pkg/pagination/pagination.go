// Package pagination wraps backend continuation tokens behind an opaque cursor.
//
// A cursor is the base64 encoding of the backend's native token and nothing
// else; decoding it hands the same token back to the backend. Backends may
// return an empty page together with a token, so a page is only the last one
// when its cursor is empty.
package pagination

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/platinummonkey/jitaccess/pkg/apperr"
)

const (
	// DefaultLimit is used when the caller does not ask for a page size
	DefaultLimit = 50
	// MaxLimit bounds the page size a caller may ask for
	MaxLimit = 100
)

// Page is one page of results
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// Done reports whether there are no further pages
func (p Page[T]) Done() bool {
	return p.NextCursor == ""
}

// FetchFunc fetches one page from a backend using its native token.
// An empty token requests the first page.
type FetchFunc[T any] func(ctx context.Context, token string, limit int) (items []T, next string, err error)

// EncodeCursor converts a native continuation token into an opaque cursor
func EncodeCursor(token string) string {
	if token == "" {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(token))
}

// DecodeCursor converts an opaque cursor back into the native token
func DecodeCursor(cursor string) (string, error) {
	if cursor == "" {
		return "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeBadRequest, err, "invalid cursor")
	}
	return string(raw), nil
}

// NormalizeLimit clamps a requested page size
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// FetchPage fetches the page addressed by cursor
func FetchPage[T any](ctx context.Context, fetch FetchFunc[T], cursor string, limit int) (Page[T], error) {
	token, err := DecodeCursor(cursor)
	if err != nil {
		return Page[T]{}, err
	}

	items, next, err := fetch(ctx, token, NormalizeLimit(limit))
	if err != nil {
		return Page[T]{}, err
	}
	if items == nil {
		items = []T{}
	}

	return Page[T]{Items: items, NextCursor: EncodeCursor(next)}, nil
}

// Collect walks every page until the backend stops returning a token.
// Empty pages that still carry a token are followed. maxPages guards against
// a backend that never terminates; zero means no limit.
func Collect[T any](ctx context.Context, fetch FetchFunc[T], limit, maxPages int) ([]T, error) {
	var all []T
	token := ""

	for pages := 0; ; pages++ {
		if maxPages > 0 && pages >= maxPages {
			return nil, fmt.Errorf("pagination did not terminate after %d pages", maxPages)
		}

		items, next, err := fetch(ctx, token, NormalizeLimit(limit))
		if err != nil {
			return nil, err
		}
		all = append(all, items...)

		if next == "" {
			return all, nil
		}
		token = next
	}
}

// Find walks pages until match returns true for an item
func Find[T any](ctx context.Context, fetch FetchFunc[T], limit int, match func(T) bool) (T, bool, error) {
	var zero T
	token := ""

	for {
		items, next, err := fetch(ctx, token, NormalizeLimit(limit))
		if err != nil {
			return zero, false, err
		}
		for _, item := range items {
			if match(item) {
				return item, true, nil
			}
		}
		if next == "" {
			return zero, false, nil
		}
		token = next
	}
}
