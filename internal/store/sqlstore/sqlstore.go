package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/relaychat/internal/store"
)

// SQLStore implements store.Store on top of database/sql for SQLite and PostgreSQL.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

// New opens a store for the given driver ("sqlite3" or "postgres") and DSN.
// For SQLite the DSN is a file path or ":memory:".
func New(driver, dsn string) (*SQLStore, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite && !strings.Contains(dsn, "?") {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// SQLite works best with a single connection, and ":memory:" needs it to keep one database.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	return &SQLStore{
		db:      db,
		dialect: d,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Migrate creates missing tables and indexes.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.schema()); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) q(query string) string {
	return s.dialect.rebind(query)
}

// ==== UserStore implementation ====

// UpsertUser creates the user or overwrites its display name and image index.
func (s *SQLStore) UpsertUser(ctx context.Context, user *store.User) error {
	query := `
		INSERT INTO users (id, display_name, profile_image_index, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			display_name = excluded.display_name,
			profile_image_index = excluded.profile_image_index,
			updated_at = excluded.updated_at
	`
	now := s.now()
	if _, err := s.db.ExecContext(ctx, s.q(query), user.ID, user.DisplayName, user.ProfileImageIndex, now, now); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	saved, err := s.GetUser(ctx, user.ID)
	if err != nil {
		return err
	}
	*user = *saved
	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLStore) GetUser(ctx context.Context, id string) (*store.User, error) {
	query := `
		SELECT id, display_name, profile_image_index, created_at, updated_at
		FROM users
		WHERE id = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, s.q(query), id).Scan(
		&user.ID,
		&user.DisplayName,
		&user.ProfileImageIndex,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// ==== RoomStore implementation ====

const roomColumns = `id, pair_key, participant_a, participant_b, last_message, last_activity, created_at`

func scanRoom(row interface{ Scan(...any) error }) (*store.Room, error) {
	var room store.Room
	var lastActivity sql.NullTime
	if err := row.Scan(
		&room.ID,
		&room.PairKey,
		&room.ParticipantA,
		&room.ParticipantB,
		&room.LastMessage,
		&lastActivity,
		&room.CreatedAt,
	); err != nil {
		return nil, err
	}
	if lastActivity.Valid {
		t := lastActivity.Time
		room.LastActivity = &t
	}
	return &room, nil
}

// GetOrCreateDirectRoom atomically finds or inserts the room for pairKey.
// The UNIQUE constraint on pair_key arbitrates concurrent inserts; only the
// insert that actually wrote a row reports created.
func (s *SQLStore) GetOrCreateDirectRoom(ctx context.Context, pairKey, participantA, participantB string) (*store.Room, bool, error) {
	query := `
		INSERT INTO rooms (id, pair_key, participant_a, participant_b, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (pair_key) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, s.q(query), uuid.NewString(), pairKey, participantA, participantB, s.now())
	if err != nil {
		return nil, false, fmt.Errorf("insert room: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("get rows affected: %w", err)
	}

	room, err := s.GetRoomByPairKey(ctx, pairKey)
	if err != nil {
		return nil, false, err
	}

	return room, affected == 1, nil
}

// GetRoomByPairKey retrieves a room by its pair key.
func (s *SQLStore) GetRoomByPairKey(ctx context.Context, pairKey string) (*store.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE pair_key = ?`
	room, err := scanRoom(s.db.QueryRowContext(ctx, s.q(query), pairKey))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room %s: %w", pairKey, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query room: %w", err)
	}
	return room, nil
}

// GetRoom retrieves a room by ID.
func (s *SQLStore) GetRoom(ctx context.Context, id string) (*store.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = ?`
	room, err := scanRoom(s.db.QueryRowContext(ctx, s.q(query), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query room: %w", err)
	}
	return room, nil
}

// ListRoomSummaries lists the rooms of userID, most recent activity first, nulls last.
func (s *SQLStore) ListRoomSummaries(ctx context.Context, userID string) ([]*store.RoomSummary, error) {
	query := `
		SELECT r.id,
		       CASE WHEN r.participant_a = ? THEN r.participant_b ELSE r.participant_a END,
		       COALESCE(u.display_name, ''),
		       COALESCE(u.profile_image_index, 0),
		       r.last_message,
		       ru.unread_count,
		       r.last_activity
		FROM rooms r
		LEFT JOIN users u
		       ON u.id = CASE WHEN r.participant_a = ? THEN r.participant_b ELSE r.participant_a END
		LEFT JOIN room_unread ru
		       ON ru.room_id = r.id AND ru.user_id = ?
		WHERE r.participant_a = ? OR r.participant_b = ?
		ORDER BY r.last_activity DESC NULLS LAST, r.id
	`
	rows, err := s.db.QueryContext(ctx, s.q(query), userID, userID, userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("query room summaries: %w", err)
	}
	defer rows.Close()

	summaries := make([]*store.RoomSummary, 0)
	for rows.Next() {
		var sum store.RoomSummary
		var unread sql.NullInt64
		var lastActivity sql.NullTime
		if err := rows.Scan(
			&sum.RoomID,
			&sum.CounterpartID,
			&sum.CounterpartName,
			&sum.CounterpartImageIndex,
			&sum.LastMessage,
			&unread,
			&lastActivity,
		); err != nil {
			return nil, fmt.Errorf("scan room summary: %w", err)
		}
		if unread.Valid {
			n := int(unread.Int64)
			sum.UnreadCount = &n
		}
		if lastActivity.Valid {
			t := lastActivity.Time
			sum.LastActivity = &t
		}
		summaries = append(summaries, &sum)
	}

	return summaries, rows.Err()
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// inTx runs fn in a transaction, committing only when fn succeeds.
func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// lockUser serializes unread bookkeeping of userID across processes until tx ends.
// SQLite already serializes writers on the database file.
func (s *SQLStore) lockUser(ctx context.Context, tx *sql.Tx, userID string) error {
	if s.dialect.driver != DriverPostgres {
		return nil
	}
	if _, err := tx.ExecContext(ctx, s.q(`SELECT pg_advisory_xact_lock(hashtext(?))`), userID); err != nil {
		return fmt.Errorf("lock user %s: %w", userID, err)
	}
	return nil
}

// ==== MessageStore implementation ====

// SaveMessage persists a message and touches the room's last activity.
// ID and CreatedAt are filled in when empty.
func (s *SQLStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.insertMessage(ctx, tx, msg)
	})
}

func (s *SQLStore) insertMessage(ctx context.Context, q querier, msg *store.Message) error {
	if msg.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate message id: %w", err)
		}
		msg.ID = id.String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}

	insert := `
		INSERT INTO messages (id, room_id, sender_id, body, is_read, created_at)
		VALUES (?, ?, ?, ?, FALSE, ?)
	`
	if _, err := q.ExecContext(ctx, s.q(insert), msg.ID, msg.RoomID, msg.SenderID, msg.Body, msg.CreatedAt); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	touch := `
		UPDATE rooms
		SET last_message = ?, last_activity = ?
		WHERE id = ? AND (last_activity IS NULL OR last_activity <= ?)
	`
	if _, err := q.ExecContext(ctx, s.q(touch), store.Snippet(msg.Body), msg.CreatedAt, msg.RoomID, msg.CreatedAt); err != nil {
		return fmt.Errorf("touch room: %w", err)
	}

	msg.IsRead = false
	return nil
}

// ListMessages returns the most recent limit messages of a room in chronological order.
func (s *SQLStore) ListMessages(ctx context.Context, roomID string, limit int) ([]*store.Message, error) {
	query := `
		SELECT id, room_id, sender_id, body, is_read, created_at
		FROM messages
		WHERE room_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, s.q(query), roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0, limit)
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.SenderID, &msg.Body, &msg.IsRead, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// MessageSenders returns the distinct senders of the given message ids.
func (s *SQLStore) MessageSenders(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT DISTINCT sender_id FROM messages WHERE id IN (` + placeholders(len(ids)) + `) ORDER BY sender_id`
	rows, err := s.db.QueryContext(ctx, s.q(query), stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("query senders: %w", err)
	}
	defer rows.Close()

	var senders []string
	for rows.Next() {
		var sender string
		if err := rows.Scan(&sender); err != nil {
			return nil, fmt.Errorf("scan sender: %w", err)
		}
		senders = append(senders, sender)
	}

	return senders, rows.Err()
}

// MarkMessagesRead flips unread messages of roomID not sent by readerID to read.
func (s *SQLStore) MarkMessagesRead(ctx context.Context, roomID, readerID string, ids []string) (int, error) {
	return s.markRead(ctx, s.db, roomID, readerID, ids)
}

func (s *SQLStore) markRead(ctx context.Context, q querier, roomID, readerID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		UPDATE messages
		SET is_read = TRUE
		WHERE room_id = ? AND sender_id <> ? AND is_read = FALSE
		  AND id IN (` + placeholders(len(ids)) + `)
	`
	args := append([]any{roomID, readerID}, stringArgs(ids)...)
	result, err := q.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	return int(affected), nil
}

// ==== UnreadStore implementation ====

// SaveUnreadMessage persists msg and counts it unread for recipientID in one transaction.
func (s *SQLStore) SaveUnreadMessage(ctx context.Context, msg *store.Message, recipientID string) (int, error) {
	var count int
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.lockUser(ctx, tx, recipientID); err != nil {
			return err
		}
		if err := s.insertMessage(ctx, tx, msg); err != nil {
			return err
		}
		if err := s.incrementRoomUnread(ctx, tx, recipientID, msg.RoomID, msg.Body); err != nil {
			return err
		}
		var err error
		count, err = s.roomUnread(ctx, tx, recipientID, msg.RoomID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ReadMessages marks messages read and subtracts exactly the number that
// transitioned from readerID's counter, in one transaction.
func (s *SQLStore) ReadMessages(ctx context.Context, roomID, readerID string, ids []string) (int, int, error) {
	var marked, count int
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.lockUser(ctx, tx, readerID); err != nil {
			return err
		}
		var err error
		if marked, err = s.markRead(ctx, tx, roomID, readerID, ids); err != nil {
			return err
		}
		if marked > 0 {
			if err := s.decrementRoomUnread(ctx, tx, readerID, roomID, marked); err != nil {
				return err
			}
		}
		count, err = s.roomUnread(ctx, tx, readerID, roomID)
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	return marked, count, nil
}

// IncrementRoomUnread adds one to the counter, creating it if needed.
func (s *SQLStore) IncrementRoomUnread(ctx context.Context, userID, roomID, snippet string) (int, error) {
	if err := s.incrementRoomUnread(ctx, s.db, userID, roomID, snippet); err != nil {
		return 0, err
	}
	return s.GetRoomUnread(ctx, userID, roomID)
}

func (s *SQLStore) incrementRoomUnread(ctx context.Context, q querier, userID, roomID, snippet string) error {
	query := `
		INSERT INTO room_unread (user_id, room_id, unread_count, last_snippet, updated_at)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT (user_id, room_id) DO UPDATE SET
			unread_count = room_unread.unread_count + 1,
			last_snippet = excluded.last_snippet,
			updated_at = excluded.updated_at
	`
	if _, err := q.ExecContext(ctx, s.q(query), userID, roomID, store.Snippet(snippet), s.now()); err != nil {
		return fmt.Errorf("increment room unread: %w", err)
	}
	return nil
}

// DecrementRoomUnread subtracts delta floored at zero.
func (s *SQLStore) DecrementRoomUnread(ctx context.Context, userID, roomID string, delta int) (int, error) {
	if err := s.decrementRoomUnread(ctx, s.db, userID, roomID, delta); err != nil {
		return 0, err
	}
	return s.GetRoomUnread(ctx, userID, roomID)
}

func (s *SQLStore) decrementRoomUnread(ctx context.Context, q querier, userID, roomID string, delta int) error {
	query := `
		UPDATE room_unread
		SET unread_count = CASE WHEN unread_count > ? THEN unread_count - ? ELSE 0 END,
		    updated_at = ?
		WHERE user_id = ? AND room_id = ?
	`
	if _, err := q.ExecContext(ctx, s.q(query), delta, delta, s.now(), userID, roomID); err != nil {
		return fmt.Errorf("decrement room unread: %w", err)
	}
	return nil
}

// GetRoomUnread returns the counter, zero if absent.
func (s *SQLStore) GetRoomUnread(ctx context.Context, userID, roomID string) (int, error) {
	return s.roomUnread(ctx, s.db, userID, roomID)
}

func (s *SQLStore) roomUnread(ctx context.Context, q querier, userID, roomID string) (int, error) {
	query := `SELECT unread_count FROM room_unread WHERE user_id = ? AND room_id = ?`
	var count int
	err := q.QueryRowContext(ctx, s.q(query), userID, roomID).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("query room unread: %w", err)
	}
	return count, nil
}

// RecomputeUserUnread sets the user's total to the sum of its room counters.
// On PostgreSQL the recompute holds the user's advisory lock, so concurrent
// writers in other processes cannot store an older sum over a newer one.
func (s *SQLStore) RecomputeUserUnread(ctx context.Context, userID string) (int, error) {
	query := `
		INSERT INTO user_unread (user_id, unread_count, updated_at)
		SELECT CAST(? AS TEXT), COALESCE(SUM(unread_count), 0), CURRENT_TIMESTAMP
		FROM room_unread
		WHERE user_id = ?
		ON CONFLICT (user_id) DO UPDATE SET
			unread_count = excluded.unread_count,
			updated_at = excluded.updated_at
	`
	var total int
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.lockUser(ctx, tx, userID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q(query), userID, userID); err != nil {
			return fmt.Errorf("recompute user unread: %w", err)
		}
		var err error
		total, err = s.userUnread(ctx, tx, userID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// GetUserUnread returns the stored total, zero if absent.
func (s *SQLStore) GetUserUnread(ctx context.Context, userID string) (int, error) {
	return s.userUnread(ctx, s.db, userID)
}

func (s *SQLStore) userUnread(ctx context.Context, q querier, userID string) (int, error) {
	query := `SELECT unread_count FROM user_unread WHERE user_id = ?`
	var count int
	err := q.QueryRowContext(ctx, s.q(query), userID).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("query user unread: %w", err)
	}
	return count, nil
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
