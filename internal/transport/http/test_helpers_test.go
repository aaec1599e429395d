package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/relaychat/internal/config"
	"github.com/vovakirdan/relaychat/internal/core"
	"github.com/vovakirdan/relaychat/internal/feed"
	"github.com/vovakirdan/relaychat/internal/store/sqlstore"
)

type testEnv struct {
	ts     *httptest.Server
	hub    *core.Hub
	store  *sqlstore.SQLStore
	broker *feed.Memory
}

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) *sqlstore.SQLStore {
	t.Helper()

	st, err := sqlstore.New(sqlstore.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test store: %v", err)
	}
	return st
}

func startTestServer(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.ShutdownTimeout = time.Second
	for _, m := range mutate {
		m(&cfg)
	}

	disabledLogger := zerolog.New(nil).Level(zerolog.Disabled)
	st := createTestStore(t)
	broker := feed.NewMemory()
	t.Cleanup(func() { broker.Close() })

	hub := core.NewHub(st, broker, &disabledLogger)
	server := NewServer(hub, st, broker, &cfg, &disabledLogger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, hub: hub, store: st, broker: broker}
}
