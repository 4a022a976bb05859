package notify

import (
	"context"

	"github.com/Power-Switch/PowerSwitch-Android-sub002/internal/persistence"
)

// Multi notifies each observer in order.
type Multi []persistence.Observer

// EntityChanged implements persistence.Observer.
func (m Multi) EntityChanged(ctx context.Context, c persistence.Change) {
	for _, o := range m {
		o.EntityChanged(ctx, c)
	}
}

// HistoryAdded implements persistence.Observer.
func (m Multi) HistoryAdded(ctx context.Context, h persistence.HistoryItem) {
	for _, o := range m {
		o.HistoryAdded(ctx, h)
	}
}
