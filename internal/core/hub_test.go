package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestHubFirstMessageCreatesRoom(t *testing.T) {
	ctx := context.Background()
	hub, st, _ := newTestHub(t)
	nickname(t, st, "alice", "Alice")
	nickname(t, st, "bob", "Bob")

	alice := connect(t, hub, "alice")
	bob := connect(t, hub, "bob")

	hub.Handle(ctx, alice, &Command{Kind: CommandSendMessage, TargetID: "bob", Body: "hi"})

	toBob := mustEvent(t, bob.Events, EventMessage)
	toAlice := mustEvent(t, alice.Events, EventMessage)

	if toBob.Message.RoomID == "" || toBob.Message.RoomID != toAlice.Message.RoomID {
		t.Fatalf("expected new room id for both, got %q and %q", toBob.Message.RoomID, toAlice.Message.RoomID)
	}
	if toBob.Message.Chat.Body != "hi" || toBob.Message.Chat.SenderID != "alice" {
		t.Fatalf("unexpected chat: %+v", toBob.Message.Chat)
	}
	if toBob.Message.TargetDisplayName != "Alice" || toAlice.Message.TargetDisplayName != "Bob" {
		t.Fatalf("unexpected display names: bob sees %q, alice sees %q",
			toBob.Message.TargetDisplayName, toAlice.Message.TargetDisplayName)
	}
	if len(toBob.Message.Rooms) != 1 || toBob.Message.Rooms[0].UnreadCount == nil || *toBob.Message.Rooms[0].UnreadCount != 1 {
		t.Fatalf("unexpected bob rooms: %+v", toBob.Message.Rooms)
	}

	roomID := toBob.Message.RoomID
	if n, _ := st.GetRoomUnread(ctx, "bob", roomID); n != 1 {
		t.Fatalf("bob room counter = %d, want 1", n)
	}
	if n, _ := st.GetUserUnread(ctx, "bob"); n != 1 {
		t.Fatalf("bob aggregate = %d, want 1", n)
	}
	if n, _ := st.GetRoomUnread(ctx, "alice", roomID); n != 0 {
		t.Fatalf("alice room counter = %d, want 0", n)
	}
}

func TestHubExchangeReusesRoom(t *testing.T) {
	ctx := context.Background()
	hub, st, _ := newTestHub(t)

	alice := connect(t, hub, "alice")
	bob := connect(t, hub, "bob")

	hub.Handle(ctx, alice, &Command{Kind: CommandSendMessage, TargetID: "bob", Body: "hi"})
	first := mustEvent(t, bob.Events, EventMessage)
	mustEvent(t, alice.Events, EventMessage)

	hub.Handle(ctx, bob, &Command{Kind: CommandSendMessage, TargetID: "alice", Body: "yo"})
	second := mustEvent(t, alice.Events, EventMessage)
	mustEvent(t, bob.Events, EventMessage)

	if second.Message.RoomID != "" {
		t.Fatalf("room reported as created twice: %q", second.Message.RoomID)
	}
	if second.Message.Chat.RoomID != first.Message.RoomID {
		t.Fatalf("messages landed in different rooms: %q vs %q", second.Message.Chat.RoomID, first.Message.RoomID)
	}

	roomID := first.Message.RoomID
	if n, _ := st.GetRoomUnread(ctx, "bob", roomID); n != 1 {
		t.Fatalf("bob counter = %d, want 1", n)
	}
	if n, _ := st.GetRoomUnread(ctx, "alice", roomID); n != 1 {
		t.Fatalf("alice counter = %d, want 1", n)
	}
	// Names were never registered.
	if second.Message.TargetDisplayName != UnknownDisplayName {
		t.Fatalf("expected placeholder name, got %q", second.Message.TargetDisplayName)
	}
}

func TestHubMarkReadNotifiesBothSides(t *testing.T) {
	ctx := context.Background()
	hub, st, broker := newTestHub(t)

	alice := connect(t, hub, "alice")
	bob := connect(t, hub, "bob")

	sub, err := broker.Subscribe(ctx, "bob")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	hub.Handle(ctx, alice, &Command{Kind: CommandSendMessage, TargetID: "bob", Body: "hi"})
	msg := mustEvent(t, bob.Events, EventMessage).Message
	mustEvent(t, alice.Events, EventMessage)

	hub.Handle(ctx, bob, &Command{
		Kind:       CommandMarkRead,
		UserID:     "bob",
		RoomID:     msg.RoomID,
		MessageIDs: []string{msg.Chat.ID},
	})

	toBob := mustEvent(t, bob.Events, EventMessageRead)
	toAlice := mustEvent(t, alice.Events, EventMessageRead)

	if toAlice.Read.TargetID != "alice" || len(toAlice.Read.MessageIDs) != 1 || toAlice.Read.MessageIDs[0] != msg.Chat.ID {
		t.Fatalf("unexpected sender notification: %+v", toAlice.Read)
	}
	if len(toAlice.Read.Rooms) != 1 || toAlice.Read.Rooms[0].CounterpartID != "bob" {
		t.Fatalf("unexpected sender rooms: %+v", toAlice.Read.Rooms)
	}
	if len(toBob.Read.Rooms) != 1 || *toBob.Read.Rooms[0].UnreadCount != 0 {
		t.Fatalf("unexpected reader rooms: %+v", toBob.Read.Rooms)
	}

	if n, _ := st.GetRoomUnread(ctx, "bob", msg.RoomID); n != 0 {
		t.Fatalf("bob counter = %d, want 0", n)
	}
	if n, _ := st.GetUserUnread(ctx, "bob"); n != 0 {
		t.Fatalf("bob aggregate = %d, want 0", n)
	}

	select {
	case u := <-sub.C():
		if u.Count != 0 {
			t.Fatalf("latest published total = %d, want 0", u.Count)
		}
	case <-time.After(time.Second):
		t.Fatal("no unread total published")
	}
}

func TestHubEmptyReadBatchIsNoop(t *testing.T) {
	ctx := context.Background()
	hub, st, _ := newTestHub(t)

	alice := connect(t, hub, "alice")
	bob := connect(t, hub, "bob")

	hub.Handle(ctx, alice, &Command{Kind: CommandSendMessage, TargetID: "bob", Body: "hi"})
	msg := mustEvent(t, bob.Events, EventMessage).Message
	mustEvent(t, alice.Events, EventMessage)

	if err := hub.MarkRead(ctx, bob, &Command{Kind: CommandMarkRead, RoomID: msg.RoomID}); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	mustNoEvent(t, bob.Events)
	mustNoEvent(t, alice.Events)

	if n, _ := st.GetRoomUnread(ctx, "bob", msg.RoomID); n != 1 {
		t.Fatalf("bob counter = %d, want 1", n)
	}
}

func TestHubOfflineTargetSeesStateOnFetch(t *testing.T) {
	ctx := context.Background()
	hub, st, _ := newTestHub(t)

	alice := connect(t, hub, "alice")
	hub.Handle(ctx, alice, &Command{Kind: CommandSendMessage, TargetID: "bob", Body: "hi"})
	ev := mustEvent(t, alice.Events, EventMessage)

	rooms, err := st.ListRoomSummaries(ctx, "bob")
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	if len(rooms) != 1 || rooms[0].RoomID != ev.Message.RoomID || rooms[0].LastMessage != "hi" {
		t.Fatalf("unexpected rooms: %+v", rooms)
	}
	if rooms[0].UnreadCount == nil || *rooms[0].UnreadCount != 1 {
		t.Fatalf("unexpected unread count: %v", rooms[0].UnreadCount)
	}

	history, err := st.ListMessages(ctx, ev.Message.RoomID, 10)
	if err != nil || len(history) != 1 {
		t.Fatalf("history = %v, err = %v", history, err)
	}
}

func TestHubMixedSendersRejected(t *testing.T) {
	ctx := context.Background()
	hub, st, _ := newTestHub(t)

	alice := connect(t, hub, "alice")
	bob := connect(t, hub, "bob")

	hub.Handle(ctx, alice, &Command{Kind: CommandSendMessage, TargetID: "bob", Body: "hi"})
	fromAlice := mustEvent(t, bob.Events, EventMessage).Message
	mustEvent(t, alice.Events, EventMessage)

	hub.Handle(ctx, bob, &Command{Kind: CommandSendMessage, TargetID: "alice", Body: "yo"})
	fromBob := mustEvent(t, alice.Events, EventMessage).Message
	mustEvent(t, bob.Events, EventMessage)

	hub.Handle(ctx, bob, &Command{
		Kind:       CommandMarkRead,
		RoomID:     fromAlice.Chat.RoomID,
		MessageIDs: []string{fromAlice.Chat.ID, fromBob.Chat.ID},
	})

	ev := mustEvent(t, bob.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeBadRequest {
		t.Fatalf("expected bad_request, got %+v", ev)
	}
	mustNoEvent(t, alice.Events)

	if n, _ := st.GetRoomUnread(ctx, "bob", fromAlice.Chat.RoomID); n != 1 {
		t.Fatalf("bob counter = %d, want 1", n)
	}
}

func TestHubErrorsGoToInitiatorOnly(t *testing.T) {
	ctx := context.Background()
	hub, _, _ := newTestHub(t)

	alice := connect(t, hub, "alice")
	bob := connect(t, hub, "bob")

	tests := []struct {
		name string
		cmd  *Command
		code string
	}{
		{"self send", &Command{Kind: CommandSendMessage, TargetID: "alice", Body: "hi"}, ErrCodeBadRequest},
		{"empty target", &Command{Kind: CommandSendMessage, Body: "hi"}, ErrCodeBadRequest},
		{"empty body", &Command{Kind: CommandSendMessage, TargetID: "bob", Body: "  "}, ErrCodeBadRequest},
		{"unknown room", &Command{Kind: CommandMarkRead, RoomID: "nope", MessageIDs: []string{"x"}}, ErrCodeRoomNotFound},
		{"unknown command", &Command{Kind: CommandKind(42)}, ErrCodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub.Handle(ctx, alice, tt.cmd)
			ev := mustEvent(t, alice.Events, EventError)
			if ev.Error.Code != tt.code {
				t.Fatalf("code = %q, want %q", ev.Error.Code, tt.code)
			}
			mustNoEvent(t, bob.Events)
		})
	}
}

func TestHubUnregisteredSendFails(t *testing.T) {
	hub, _, _ := newTestHub(t)

	anon := NewClient("anon")
	hub.Handle(context.Background(), anon, &Command{Kind: CommandSendMessage, TargetID: "bob", Body: "hi"})

	ev := mustEvent(t, anon.Events, EventError)
	if ev.Error.Code != ErrCodeNotRegistered {
		t.Fatalf("code = %q, want %q", ev.Error.Code, ErrCodeNotRegistered)
	}
}

func TestHubReconnectSupersedesOldConnection(t *testing.T) {
	ctx := context.Background()
	hub, _, _ := newTestHub(t)

	alice := connect(t, hub, "alice")
	oldBob := connect(t, hub, "bob")
	newBob := NewClient("conn-bob-2")
	hub.Handle(ctx, newBob, &Command{Kind: CommandRegister, UserID: "bob"})
	mustEvent(t, newBob.Events, EventRegistered)

	// The stale connection closing must not unregister the new one.
	hub.Disconnect(oldBob)
	if c, ok := hub.Registry().Lookup("bob"); !ok || c != newBob {
		t.Fatalf("bob should still be reachable on the new connection")
	}

	hub.Handle(ctx, alice, &Command{Kind: CommandSendMessage, TargetID: "bob", Body: "hi"})
	mustEvent(t, newBob.Events, EventMessage)
	mustNoEvent(t, oldBob.Events)

	hub.Disconnect(newBob)
	if hub.Registry().Online("bob") {
		t.Fatalf("bob should be offline")
	}
}

func TestHubConcurrentFirstMessages(t *testing.T) {
	ctx := context.Background()
	hub, st, _ := newTestHub(t)

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender, target := "alice", "bob"
			if i%2 == 1 {
				sender, target = target, sender
			}
			c := NewClient(fmt.Sprintf("c%d", i))
			if err := hub.Send(ctx, c, &Command{SenderID: sender, TargetID: target, Body: "hi"}); err != nil {
				t.Errorf("send %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	rooms, err := st.ListRoomSummaries(ctx, "alice")
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	if len(rooms) != 1 {
		t.Fatalf("expected one room, got %d", len(rooms))
	}

	roomID := rooms[0].RoomID
	total := 0
	for _, user := range []string{"alice", "bob"} {
		room, _ := st.GetRoomUnread(ctx, user, roomID)
		agg, _ := st.GetUserUnread(ctx, user)
		if room != agg {
			t.Fatalf("%s: aggregate %d != room counter %d", user, agg, room)
		}
		total += room
	}
	if total != n {
		t.Fatalf("sum of counters = %d, want %d", total, n)
	}
}
