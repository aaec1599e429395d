package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/relaychat/internal/feed"
	"github.com/vovakirdan/relaychat/internal/store"
)

// UnknownDisplayName is shown for users that never registered a nickname.
const UnknownDisplayName = "unknown"

// Hub coordinates registration, direct messages and read receipts.
// It is safe for concurrent use; every connection calls into it from its own goroutine.
type Hub struct {
	store      store.Store
	registry   *Registry
	resolver   *Resolver
	ledger     *Ledger
	relay      *Relay
	reconciler *Reconciler
	log        *zerolog.Logger
}

// NewHub creates a new chat hub instance. pub receives unread totals and may be nil.
func NewHub(st store.Store, pub feed.Publisher, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	registry := NewRegistry()
	ledger := NewLedger(st, pub, logger)
	return &Hub{
		store:      st,
		registry:   registry,
		resolver:   NewResolver(st),
		ledger:     ledger,
		relay:      NewRelay(registry, logger),
		reconciler: NewReconciler(st, ledger),
		log:        logger,
	}
}

// Registry exposes the live connection registry.
func (h *Hub) Registry() *Registry { return h.registry }

// Resolver exposes the room resolver.
func (h *Hub) Resolver() *Resolver { return h.resolver }

// Ledger exposes the unread ledger.
func (h *Hub) Ledger() *Ledger { return h.ledger }

// Handle executes cmd on behalf of client. Failures are logged and reported
// to client alone as an error event.
func (h *Hub) Handle(ctx context.Context, client *Client, cmd *Command) {
	var err error
	switch cmd.Kind {
	case CommandRegister:
		err = h.Register(client, cmd.UserID)
	case CommandSendMessage:
		err = h.Send(ctx, client, cmd)
	case CommandMarkRead:
		err = h.MarkRead(ctx, client, cmd)
	default:
		err = coreError(ErrCodeBadRequest, fmt.Sprintf("unsupported command %d", cmd.Kind))
	}
	if err == nil {
		return
	}

	ce := ToCoreError(err)
	ev := h.log.Warn()
	if ce.Code == ErrCodeInternal {
		ev = h.log.Error()
	}
	ev.Err(err).Str("client_id", client.ID).Str("code", ce.Code).Msg("command failed")
	h.relay.DeliverError(client, ce)
}

// Register binds client to userID. A previous connection of the same user
// stops receiving events.
func (h *Hub) Register(client *Client, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrEmptyParticipant
	}

	h.registry.Register(userID, client)
	h.log.Info().Str("user_id", userID).Str("client_id", client.ID).Msg("client registered")
	client.push(&Event{Kind: EventRegistered, User: userID})
	return nil
}

// Disconnect forgets client. It is a no-op for a connection that was
// already superseded by a newer one of the same user.
func (h *Hub) Disconnect(client *Client) {
	userID, removed := h.registry.UnregisterByChannel(client)
	if userID == "" {
		return
	}
	h.log.Info().
		Str("user_id", userID).
		Str("client_id", client.ID).
		Bool("removed", removed).
		Msg("client disconnected")
}

// Send delivers a direct message from cmd.SenderID (or the registered user) to cmd.TargetID.
func (h *Hub) Send(ctx context.Context, client *Client, cmd *Command) error {
	senderID, err := h.actor(client, cmd.SenderID)
	if err != nil {
		return err
	}
	targetID := strings.TrimSpace(cmd.TargetID)
	if strings.TrimSpace(cmd.Body) == "" {
		return ErrEmptyMessage
	}

	room, created, err := h.resolver.GetOrCreate(ctx, senderID, targetID)
	if err != nil {
		return err
	}
	logger := h.log.With().Str("room_id", room.ID).Str("user_id", senderID).Logger()
	if created {
		logger.Info().Str("target_id", targetID).Msg("room created")
	}

	msg := &store.Message{RoomID: room.ID, SenderID: senderID, Body: cmd.Body}
	if _, err := h.ledger.OnMessageSent(ctx, targetID, msg); err != nil {
		return err
	}

	senderName, err := h.displayName(ctx, senderID)
	if err != nil {
		return err
	}
	targetName, err := h.displayName(ctx, targetID)
	if err != nil {
		return err
	}

	targetRooms, err := h.store.ListRoomSummaries(ctx, targetID)
	if err != nil {
		return fmt.Errorf("list target rooms: %w", err)
	}
	senderRooms, err := h.store.ListRoomSummaries(ctx, senderID)
	if err != nil {
		return fmt.Errorf("list sender rooms: %w", err)
	}

	var newRoomID string
	if created {
		newRoomID = room.ID
	}

	delivered := h.relay.DeliverMessage(&MessageEvent{
		Chat:              *msg,
		SenderName:        senderName,
		TargetDisplayName: senderName,
		Rooms:             targetRooms,
		RoomID:            newRoomID,
	}, targetID)
	delivered += h.relay.DeliverMessage(&MessageEvent{
		Chat:              *msg,
		SenderName:        senderName,
		TargetDisplayName: targetName,
		Rooms:             senderRooms,
		RoomID:            newRoomID,
	}, senderID)

	logger.Debug().Str("message_id", msg.ID).Int("delivered", delivered).Msg("message relayed")
	return nil
}

// MarkRead applies a read receipt and notifies the reader and the original sender.
// An empty batch changes nothing and notifies nobody.
func (h *Hub) MarkRead(ctx context.Context, client *Client, cmd *Command) error {
	readerID, err := h.actor(client, cmd.UserID)
	if err != nil {
		return err
	}
	ids := uniqueIDs(cmd.MessageIDs)
	if len(ids) == 0 {
		return nil
	}

	updated, senderID, err := h.reconciler.MarkRead(ctx, readerID, cmd.RoomID, ids)
	if err != nil {
		return err
	}

	readerRooms, err := h.store.ListRoomSummaries(ctx, readerID)
	if err != nil {
		return fmt.Errorf("list reader rooms: %w", err)
	}
	h.relay.DeliverReadReceipt(&ReadEvent{TargetID: readerID, Rooms: readerRooms, MessageIDs: ids}, readerID)

	if senderID != "" {
		senderRooms, err := h.store.ListRoomSummaries(ctx, senderID)
		if err != nil {
			return fmt.Errorf("list sender rooms: %w", err)
		}
		h.relay.DeliverReadReceipt(&ReadEvent{TargetID: senderID, Rooms: senderRooms, MessageIDs: ids}, senderID)
	}

	h.log.Debug().
		Str("user_id", readerID).
		Str("room_id", cmd.RoomID).
		Int("updated", updated).
		Msg("read receipt applied")
	return nil
}

// actor returns the asserted user id, falling back to the id client registered with.
func (h *Hub) actor(client *Client, asserted string) (string, error) {
	if id := strings.TrimSpace(asserted); id != "" {
		return id, nil
	}
	if id, ok := h.registry.UserOf(client); ok {
		return id, nil
	}
	return "", ErrNotRegistered
}

// displayName returns the user's nickname or UnknownDisplayName.
func (h *Hub) displayName(ctx context.Context, userID string) (string, error) {
	user, err := h.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return UnknownDisplayName, nil
		}
		return "", fmt.Errorf("get user: %w", err)
	}
	if user.DisplayName == "" {
		return UnknownDisplayName, nil
	}
	return user.DisplayName, nil
}
