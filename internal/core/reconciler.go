package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vovakirdan/relaychat/internal/store"
)

// readStore is the storage the reconciler needs.
type readStore interface {
	store.RoomStore
	store.MessageStore
}

// Reconciler applies read receipts to messages and unread counters.
type Reconciler struct {
	store  readStore
	ledger *Ledger
}

// NewReconciler creates a reconciler.
func NewReconciler(st readStore, ledger *Ledger) *Reconciler {
	return &Reconciler{store: st, ledger: ledger}
}

// MarkRead marks the given messages of roomID as read by readerID.
// It returns how many messages went from unread to read and who sent them.
// An empty batch, or one whose ids match no message of the room, is a no-op.
func (r *Reconciler) MarkRead(ctx context.Context, readerID, roomID string, messageIDs []string) (int, string, error) {
	ids := uniqueIDs(messageIDs)
	if len(ids) == 0 {
		return 0, "", nil
	}

	room, err := r.store.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, "", ErrRoomNotFound
		}
		return 0, "", fmt.Errorf("get room: %w", err)
	}
	if !room.HasParticipant(readerID) {
		return 0, "", ErrNotParticipant
	}

	senders, err := r.store.MessageSenders(ctx, ids)
	if err != nil {
		return 0, "", fmt.Errorf("load senders: %w", err)
	}
	switch {
	case len(senders) == 0:
		return 0, "", nil
	case len(senders) > 1:
		return 0, "", ErrMixedSenders
	}

	sender := senders[0]
	if sender == readerID || !room.HasParticipant(sender) {
		// Own messages or messages of another room: nothing to acknowledge.
		return 0, "", nil
	}

	updated, _, err := r.ledger.OnMessagesRead(ctx, readerID, room.ID, ids)
	if err != nil {
		return 0, "", err
	}
	return updated, sender, nil
}

func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
