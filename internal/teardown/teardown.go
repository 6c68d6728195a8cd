// Package teardown aggregates the close errors the engine collects when it
// releases more than one resource at once - a PASV listener plus a data
// connection, or a transfer's Fs stream plus both passive resources -
// instead of silently dropping every error but the first.
package teardown

import (
	"github.com/hashicorp/go-multierror"
)

// Closer is anything with an idempotent Close.
type Closer interface {
	Close() error
}

// CloseAll closes every non-nil closer and returns the aggregate error, or
// nil if every Close succeeded (or there was nothing to close).
func CloseAll(closers ...Closer) error {
	var result *multierror.Error
	for _, c := range closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if result == nil {
		return nil
	}
	return result.ErrorOrNil()
}
