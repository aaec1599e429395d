package http

import (
	"bufio"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nextData returns the payload of the next "data:" line of an SSE stream.
func nextData(t *testing.T, lines <-chan string) string {
	t.Helper()

	for {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream ended")
			if data, found := strings.CutPrefix(line, "data:"); found {
				return strings.TrimSpace(data)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("no SSE data received")
		}
	}
}

func TestUnreadStream(t *testing.T) {
	env := startTestServer(t)

	sendDirect(t, env, "alice", "bob", "one")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.ts.URL+"/chat/unread/cnt/bob", nil)
	require.NoError(t, err)
	resp, err := env.ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	assert.JSONEq(t, `{"cnt":1}`, nextData(t, lines))

	sendDirect(t, env, "carol", "bob", "two")
	assert.JSONEq(t, `{"cnt":2}`, nextData(t, lines))

	require.Eventually(t, func() bool { return env.broker.Subscribers("bob") == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool { return env.broker.Subscribers("bob") == 0 }, 2*time.Second, 10*time.Millisecond,
		"subscription should be released when the client goes away")
}
