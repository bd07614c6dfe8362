// Package presence propagates online/offline transitions to one or more backing stores.
package presence

import (
	"context"
	"errors"
	"time"

	"github.com/vovakirdan/wirechat-dm/internal/store"
)

// Writer persists a presence transition.
type Writer interface {
	UpdatePresence(ctx context.Context, userID int64, status store.PresenceStatus, at time.Time) error
}

// Fanout writes every transition to each writer in order. All writers are
// attempted; their errors are joined.
type Fanout []Writer

// UpdatePresence implements Writer.
func (f Fanout) UpdatePresence(ctx context.Context, userID int64, status store.PresenceStatus, at time.Time) error {
	var errs []error
	for _, w := range f {
		if w == nil {
			continue
		}
		if err := w.UpdatePresence(ctx, userID, status, at); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
