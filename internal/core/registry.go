package core

import "sync"

// Registry maps user identities to their live connection.
// A user has at most one live connection: the last Register wins.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]*Client
	users  map[*Client]string // reverse index used on disconnect
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]*Client),
		users:  make(map[*Client]string),
	}
}

// Register binds userID to client, superseding any previous connection of
// that user. If client was bound to another user before, that binding is dropped.
func (r *Registry) Register(userID string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.users[client]; ok && prev != userID {
		if r.byUser[prev] == client {
			delete(r.byUser, prev)
		}
	}
	if old, ok := r.byUser[userID]; ok && old != client {
		delete(r.users, old)
	}

	r.byUser[userID] = client
	r.users[client] = userID
}

// Lookup returns the live connection of userID.
func (r *Registry) Lookup(userID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byUser[userID]
	return c, ok
}

// UserOf returns the user the client is currently registered as.
func (r *Registry) UserOf(client *Client) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.users[client]
	return userID, ok
}

// UnregisterByChannel removes the entry owned by client. An entry that was
// superseded by a newer connection of the same user is left untouched.
func (r *Registry) UnregisterByChannel(client *Client) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.users[client]
	if !ok {
		return "", false
	}
	delete(r.users, client)

	if r.byUser[userID] != client {
		return userID, false
	}
	delete(r.byUser, userID)
	return userID, true
}

// Online reports whether userID has a live connection.
func (r *Registry) Online(userID string) bool {
	_, ok := r.Lookup(userID)
	return ok
}

// Len returns the number of registered users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
