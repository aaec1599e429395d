package core

import (
	"context"
	"testing"
	"time"

	"github.com/vovakirdan/relaychat/internal/feed"
	"github.com/vovakirdan/relaychat/internal/store"
	"github.com/vovakirdan/relaychat/internal/store/sqlstore"
)

func newTestStore(t testing.TB) *sqlstore.SQLStore {
	t.Helper()

	st, err := sqlstore.New(sqlstore.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return st
}

func newTestHub(t testing.TB) (*Hub, *sqlstore.SQLStore, *feed.Memory) {
	t.Helper()

	st := newTestStore(t)
	broker := feed.NewMemory()
	t.Cleanup(func() { broker.Close() })
	return NewHub(st, broker, nil), st, broker
}

// connect registers a fresh client as userID and consumes the confirmation.
func connect(t *testing.T, hub *Hub, userID string) *Client {
	t.Helper()

	c := NewClient("conn-" + userID)
	if err := hub.Register(c, userID); err != nil {
		t.Fatalf("register %s: %v", userID, err)
	}
	mustEvent(t, c.Events, EventRegistered)
	return c
}

func nickname(t *testing.T, st store.UserStore, id, name string) {
	t.Helper()
	if err := st.UpsertUser(context.Background(), &store.User{ID: id, DisplayName: name}); err != nil {
		t.Fatalf("upsert %s: %v", id, err)
	}
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func mustNoEvent(t *testing.T, ch <-chan *Event) {
	t.Helper()

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}
