package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairKey(t *testing.T) {
	tests := []struct {
		name    string
		a, b    string
		want    string
		wantErr error
	}{
		{name: "ordered", a: "alice", b: "bob", want: "dm:5:alice:bob"},
		{name: "reversed", a: "bob", b: "alice", want: "dm:5:alice:bob"},
		{name: "colon ids stay distinct", a: "a:b", b: "c", want: "dm:3:a:b:c"},
		{name: "same user", a: "alice", b: "alice", wantErr: ErrSameParticipant},
		{name: "empty", a: "", b: "bob", wantErr: ErrEmptyParticipant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PairKey(tt.a, tt.b)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	k1, _ := PairKey("a:b", "c")
	k2, _ := PairKey("a", "b:c")
	assert.NotEqual(t, k1, k2)
}

func TestResolverGetOrCreateIsSymmetric(t *testing.T) {
	ctx := context.Background()
	res := NewResolver(newTestStore(t))

	room, created, err := res.GetOrCreate(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "alice", room.ParticipantA)
	assert.Equal(t, "bob", room.ParticipantB)

	again, created, err := res.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, room.ID, again.ID)
}

func TestResolverFind(t *testing.T) {
	ctx := context.Background()
	res := NewResolver(newTestStore(t))

	_, found, err := res.Find(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.False(t, found)

	room, _, err := res.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)

	got, found, err := res.Find(ctx, "bob", "alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, room.ID, got.ID)

	_, _, err = res.Find(ctx, "bob", "bob")
	assert.True(t, errors.Is(err, ErrSameParticipant))
}

func TestResolverConcurrentCreateYieldsOneRoom(t *testing.T) {
	ctx := context.Background()
	res := NewResolver(newTestStore(t))

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     = make(map[string]struct{})
		created int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := "alice", "bob"
			if i%2 == 0 {
				a, b = b, a
			}
			room, c, err := res.GetOrCreate(ctx, a, b)
			if err != nil {
				t.Errorf("get or create: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			ids[room.ID] = struct{}{}
			if c {
				created++
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, ids, 1)
	assert.Equal(t, 1, created)
}
