package handlers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/vnvalue/internal/session"
	"github.com/wonny/vnvalue/pkg/logger"
)

func queuedVersions(t *testing.T, h *SnapshotHub) []uint64 {
	t.Helper()
	var out []uint64
	for {
		select {
		case msg := <-h.broadcast:
			var ev struct {
				Type string `json:"type"`
				Data struct {
					Version uint64 `json:"version"`
				} `json:"data"`
			}
			require.NoError(t, json.Unmarshal(msg.data, &ev))
			assert.Equal(t, "snapshot", ev.Type)
			assert.Equal(t, msg.version, ev.Data.Version)
			out = append(out, msg.version)
		default:
			return out
		}
	}
}

func TestBroadcast_DropsOlderVersions(t *testing.T) {
	h := NewSnapshotHub(nil, "*", logger.Nop())

	h.Broadcast(session.Snapshot{Version: 5})
	h.Broadcast(session.Snapshot{Version: 3})
	h.Broadcast(session.Snapshot{Version: 5})
	h.Broadcast(session.Snapshot{Version: 6})

	assert.Equal(t, []uint64{5, 6}, queuedVersions(t, h))
}

func TestBroadcast_FirstSnapshotAlwaysQueued(t *testing.T) {
	h := NewSnapshotHub(nil, "*", logger.Nop())

	h.Broadcast(session.Snapshot{Version: 0})
	h.Broadcast(session.Snapshot{Version: 0})

	assert.Equal(t, []uint64{0}, queuedVersions(t, h))
}

func TestClientAccept_SkipsStaleInitialSnapshot(t *testing.T) {
	c := &wsClient{}

	assert.True(t, c.accept(wsMessage{version: 8}), "broadcast arrived first")
	assert.False(t, c.accept(wsMessage{version: 7}), "initial snapshot is older")
	assert.False(t, c.accept(wsMessage{version: 8}))
	assert.True(t, c.accept(wsMessage{version: 9}))
}
