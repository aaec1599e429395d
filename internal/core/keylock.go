package core

import "github.com/moby/locker"

// userLocks serializes unread bookkeeping per user within this process.
// Entries are dropped by locker once no goroutine holds or waits for them.
type userLocks struct {
	l *locker.Locker
}

func newUserLocks() *userLocks {
	return &userLocks{l: locker.New()}
}

// Lock acquires the lock of userID and returns its release function.
func (u *userLocks) Lock(userID string) func() {
	u.l.Lock(userID)
	return func() {
		_ = u.l.Unlock(userID) //nolint:errcheck // only fails for a name that is not locked
	}
}
