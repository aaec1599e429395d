package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vovakirdan/relaychat/internal/store"
)

// Resolver maps an unordered pair of users to their direct room.
type Resolver struct {
	store store.RoomStore
}

// NewResolver creates a resolver backed by st.
func NewResolver(st store.RoomStore) *Resolver {
	return &Resolver{store: st}
}

// Canonical orders a participant pair and validates it.
func Canonical(a, b string) (string, string, error) {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return "", "", ErrEmptyParticipant
	}
	if a == b {
		return "", "", ErrSameParticipant
	}
	if b < a {
		a, b = b, a
	}
	return a, b, nil
}

// PairKey returns the unique key of the pair regardless of argument order.
// The length prefix keeps ids containing ':' from colliding.
func PairKey(a, b string) (string, error) {
	lo, hi, err := Canonical(a, b)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("dm:%d:%s:%s", len(lo), lo, hi), nil
}

// GetOrCreate returns the room of the pair, creating it on first use.
// Concurrent callers for the same pair get the same room and at most one
// of them observes created == true.
func (r *Resolver) GetOrCreate(ctx context.Context, a, b string) (*store.Room, bool, error) {
	lo, hi, err := Canonical(a, b)
	if err != nil {
		return nil, false, err
	}
	key, _ := PairKey(lo, hi)

	room, created, err := r.store.GetOrCreateDirectRoom(ctx, key, lo, hi)
	if err != nil {
		return nil, false, fmt.Errorf("resolve room: %w", err)
	}
	return room, created, nil
}

// Find returns the room of the pair without creating it.
func (r *Resolver) Find(ctx context.Context, a, b string) (*store.Room, bool, error) {
	key, err := PairKey(a, b)
	if err != nil {
		return nil, false, err
	}

	room, err := r.store.GetRoomByPairKey(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("find room: %w", err)
	}
	return room, true, nil
}
