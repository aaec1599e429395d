// Package feed distributes per-user unread totals to live subscribers.
package feed

import (
	"context"
	"errors"
)

// ErrClosed is returned by a broker that has been closed.
var ErrClosed = errors.New("feed closed")

// Update is a new unread total of one user.
type Update struct {
	UserID string `json:"user_id"`
	Count  int    `json:"cnt"`
}

// Publisher publishes unread totals.
type Publisher interface {
	Publish(ctx context.Context, u Update) error
}

// Subscription receives the updates of a single user.
// Intermediate values may be skipped: only the latest total matters.
type Subscription interface {
	C() <-chan Update
	// Close releases the subscription. Safe to call more than once.
	Close() error
}

// Broker is a Publisher that can also hand out subscriptions.
type Broker interface {
	Publisher
	Subscribe(ctx context.Context, userID string) (Subscription, error)
	Close() error
}

// offer replaces any pending value in a size-1 queue with u.
func offer(ch chan Update, u Update) {
	for {
		select {
		case ch <- u:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
