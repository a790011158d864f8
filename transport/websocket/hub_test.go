package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-ladder/internal/entity"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeUpdate(t *testing.T, raw []byte) *entity.Game {
	t.Helper()

	var msg Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	require.Equal(t, actionGameUpdate, msg.Action)

	var payload Response
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	require.NotNil(t, payload.Game)

	return payload.Game
}

func TestHub_GameUpdated(t *testing.T) {
	ctx := context.Background()
	game := &entity.Game{
		ID:         "game-1",
		State:      entity.InProgress{NextTurn: entity.SymbolX},
		CreatorID:  "alice",
		OpponentID: "bob",
		XPlayerID:  "alice",
		OPlayerID:  "bob",
	}

	t.Run("Pushes to every connection of both participants once", func(t *testing.T) {
		hub := NewHub(discardLogger())

		// Given: alice has two tabs open, bob one and carol one
		alicePhone := newClient(hub, nil, "alice", discardLogger())
		aliceLaptop := newClient(hub, nil, "alice", discardLogger())
		bob := newClient(hub, nil, "bob", discardLogger())
		carol := newClient(hub, nil, "carol", discardLogger())

		for _, c := range []*client{alicePhone, aliceLaptop, bob, carol} {
			hub.register(c)
		}

		assert.Equal(t, 2, hub.Connections("alice"))

		// When: the game changes
		hub.GameUpdated(ctx, game)

		// Then: every participant connection gets exactly one update and carol gets none
		for _, c := range []*client{alicePhone, aliceLaptop, bob} {
			require.Len(t, c.send, 1)
			assert.Equal(t, "game-1", decodeUpdate(t, <-c.send).ID)
		}

		assert.Empty(t, carol.send)
	})

	t.Run("Slow connection does not block the push", func(t *testing.T) {
		hub := NewHub(discardLogger())
		alice := newClient(hub, nil, "alice", discardLogger())
		bob := newClient(hub, nil, "bob", discardLogger())
		hub.register(alice)
		hub.register(bob)

		// Given: alice's buffer is full
		for i := 0; i < sendBufferSize; i++ {
			require.True(t, alice.trySend([]byte("{}")))
		}

		// When: the game changes
		hub.GameUpdated(ctx, game)

		// Then: bob still receives it
		assert.Len(t, alice.send, sendBufferSize)
		assert.Len(t, bob.send, 1)
	})

	t.Run("Unregister closes the connection queue", func(t *testing.T) {
		hub := NewHub(discardLogger())
		alice := newClient(hub, nil, "alice", discardLogger())
		hub.register(alice)

		hub.unregister(alice)
		hub.unregister(alice)

		assert.Equal(t, 0, hub.Connections("alice"))
		assert.False(t, alice.trySend([]byte("{}")))

		_, ok := <-alice.send
		assert.False(t, ok)
	})
}

func TestRecipients(t *testing.T) {
	open := &entity.Game{CreatorID: "alice", XPlayerID: "alice"}
	assert.Equal(t, []string{"alice"}, recipients(open))

	rematch := &entity.Game{CreatorID: "alice", OpponentID: "bob", XPlayerID: "bob", OPlayerID: "alice"}
	assert.Equal(t, []string{"alice", "bob"}, recipients(rematch))
}
