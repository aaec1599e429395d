package core

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/relaychat/internal/feed"
	"github.com/vovakirdan/relaychat/internal/store"
)

// Tally is a user's unread state right after a ledger operation.
type Tally struct {
	Room  int // counter of the affected room
	Total int // aggregate over all rooms of the user
}

// Ledger keeps per-room unread counters and the per-user aggregate in step.
// The room counter is authoritative; the aggregate is recomputed from it.
// Counter changes are written in the same transaction as the messages they count.
type Ledger struct {
	store store.UnreadStore
	pub   feed.Publisher
	locks *userLocks
	log   *zerolog.Logger
}

// NewLedger creates a ledger. pub may be nil.
func NewLedger(st store.UnreadStore, pub feed.Publisher, logger *zerolog.Logger) *Ledger {
	return &Ledger{
		store: st,
		pub:   pub,
		locks: newUserLocks(),
		log:   logger,
	}
}

// OnMessageSent persists msg and counts it as one more unread message for
// recipient in msg.RoomID. The room snippet becomes the message body.
func (l *Ledger) OnMessageSent(ctx context.Context, recipient string, msg *store.Message) (Tally, error) {
	unlock := l.locks.Lock(recipient)
	defer unlock()

	room, err := l.store.SaveUnreadMessage(ctx, msg, recipient)
	if err != nil {
		return Tally{}, fmt.Errorf("save unread message: %w", err)
	}
	return l.recompute(ctx, recipient, room)
}

// OnMessagesRead marks the given messages of roomID read for recipient and
// subtracts exactly the number that were still unread. The counter never drops
// below zero; an empty batch only refreshes the aggregate.
func (l *Ledger) OnMessagesRead(ctx context.Context, recipient, roomID string, ids []string) (int, Tally, error) {
	unlock := l.locks.Lock(recipient)
	defer unlock()

	var (
		marked, room int
		err          error
	)
	if len(ids) > 0 {
		marked, room, err = l.store.ReadMessages(ctx, roomID, recipient, ids)
	} else {
		room, err = l.store.GetRoomUnread(ctx, recipient, roomID)
	}
	if err != nil {
		return 0, Tally{}, fmt.Errorf("read messages: %w", err)
	}

	tally, err := l.recompute(ctx, recipient, room)
	return marked, tally, err
}

// recompute must run under the user's lock so totals are published in order.
func (l *Ledger) recompute(ctx context.Context, userID string, room int) (Tally, error) {
	total, err := l.store.RecomputeUserUnread(ctx, userID)
	if err != nil {
		return Tally{}, fmt.Errorf("recompute user unread: %w", err)
	}

	if l.pub != nil {
		if err := l.pub.Publish(ctx, feed.Update{UserID: userID, Count: total}); err != nil {
			l.log.Warn().Err(err).Str("user_id", userID).Msg("publish unread total")
		}
	}
	return Tally{Room: room, Total: total}, nil
}

// Total returns the stored aggregate of userID.
func (l *Ledger) Total(ctx context.Context, userID string) (int, error) {
	total, err := l.store.GetUserUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("get user unread: %w", err)
	}
	return total, nil
}
