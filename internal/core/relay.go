package core

import "github.com/rs/zerolog"

// Relay pushes events to whichever recipients are currently connected.
// Delivery is best effort and at most once: absent or slow recipients miss the event.
type Relay struct {
	registry *Registry
	log      *zerolog.Logger
}

// NewRelay creates a relay over registry.
func NewRelay(registry *Registry, logger *zerolog.Logger) *Relay {
	return &Relay{registry: registry, log: logger}
}

// DeliverMessage pushes a message event to every distinct recipient.
// Returns the number of recipients that got it.
func (r *Relay) DeliverMessage(ev *MessageEvent, recipients ...string) int {
	return r.fanOut(recipients, func(userID string) *Event {
		return &Event{Kind: EventMessage, User: userID, Message: ev}
	})
}

// DeliverReadReceipt pushes a read receipt event to every distinct recipient.
func (r *Relay) DeliverReadReceipt(ev *ReadEvent, recipients ...string) int {
	return r.fanOut(recipients, func(userID string) *Event {
		return &Event{Kind: EventMessageRead, User: userID, Read: ev}
	})
}

// DeliverError reports err to a single client.
func (r *Relay) DeliverError(client *Client, err *CoreError) bool {
	return client.push(&Event{Kind: EventError, Error: err})
}

func (r *Relay) fanOut(recipients []string, build func(userID string) *Event) int {
	delivered := 0
	seen := make(map[string]struct{}, len(recipients))
	for _, userID := range recipients {
		if userID == "" {
			continue
		}
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}

		client, ok := r.registry.Lookup(userID)
		if !ok {
			r.log.Debug().Str("user_id", userID).Msg("recipient offline, event dropped")
			continue
		}
		if !client.push(build(userID)) {
			r.log.Debug().Str("user_id", userID).Str("client_id", client.ID).Msg("client queue full, event dropped")
			continue
		}
		delivered++
	}
	return delivered
}
