package asset

import "github.com/pkg/errors"

// Error kinds. Callers match them with errors.Is; the wrapped message
// carries the asset/item context.
var (
	// ErrInvariantViolation means a mutation would break the locale list
	// invariants (default at index 0, at least one item, unique languages)
	// or referenced an item that does not belong to the asset.
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrNotFound means a referenced asset or locale item no longer exists.
	ErrNotFound = errors.New("not found")
	// ErrTranslationFailure is reported per item when a translation request fails.
	ErrTranslationFailure = errors.New("translation failed")
	// ErrPersistenceFailure means the store rejected a change; the in-memory
	// asset was left untouched.
	ErrPersistenceFailure = errors.New("persistence failed")
)

func invariantf(format string, args ...any) error {
	return errors.Wrapf(ErrInvariantViolation, format, args...)
}
