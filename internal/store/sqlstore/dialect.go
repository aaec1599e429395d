package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// DriverSQLite is the database/sql driver name registered by mattn/go-sqlite3.
	DriverSQLite = "sqlite3"
	// DriverPostgres is the database/sql driver name registered by lib/pq.
	DriverPostgres = "postgres"
)

// dialect captures the few differences between the supported databases.
// Queries are written with '?' placeholders and rebound per dialect.
type dialect struct {
	driver        string
	timestampType string
	numbered      bool
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverSQLite:
		return dialect{driver: driver, timestampType: "DATETIME"}, nil
	case DriverPostgres:
		return dialect{driver: driver, timestampType: "TIMESTAMPTZ", numbered: true}, nil
	default:
		return dialect{}, fmt.Errorf("unsupported driver %q", driver)
	}
}

// rebind rewrites '?' placeholders into '$n' for drivers that need numbered parameters.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// placeholders returns "?, ?, ?" with n entries.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func (d dialect) schema() string {
	return fmt.Sprintf(schemaTemplate, d.timestampType)
}

const schemaTemplate = `
CREATE TABLE IF NOT EXISTS users (
	id                  TEXT PRIMARY KEY,
	display_name        TEXT NOT NULL,
	profile_image_index INTEGER NOT NULL DEFAULT 0,
	created_at          %[1]s NOT NULL,
	updated_at          %[1]s NOT NULL
);

CREATE TABLE IF NOT EXISTS rooms (
	id            TEXT PRIMARY KEY,
	pair_key      TEXT NOT NULL UNIQUE,
	participant_a TEXT NOT NULL,
	participant_b TEXT NOT NULL,
	last_message  TEXT NOT NULL DEFAULT '',
	last_activity %[1]s,
	created_at    %[1]s NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rooms_participant_a ON rooms(participant_a);
CREATE INDEX IF NOT EXISTS idx_rooms_participant_b ON rooms(participant_b);

CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	room_id    TEXT NOT NULL REFERENCES rooms(id),
	sender_id  TEXT NOT NULL,
	body       TEXT NOT NULL,
	is_read    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at %[1]s NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id, created_at);

CREATE TABLE IF NOT EXISTS room_unread (
	user_id      TEXT NOT NULL,
	room_id      TEXT NOT NULL REFERENCES rooms(id),
	unread_count INTEGER NOT NULL DEFAULT 0 CHECK (unread_count >= 0),
	last_snippet TEXT NOT NULL DEFAULT '',
	updated_at   %[1]s NOT NULL,
	PRIMARY KEY (user_id, room_id)
);

CREATE TABLE IF NOT EXISTS user_unread (
	user_id      TEXT PRIMARY KEY,
	unread_count INTEGER NOT NULL DEFAULT 0 CHECK (unread_count >= 0),
	updated_at   %[1]s NOT NULL
);
`
