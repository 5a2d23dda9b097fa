// ABOUTME: Tests for Conn framing and the connection registry
// ABOUTME: Verifies newline framing, timeouts, replacement semantics, and stale removal

package registry

import (
	"bufio"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeConn returns a framed Conn and the raw peer side of a synchronous pipe.
func pipeConn(t *testing.T) (*Conn, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return NewConn(server), client
}

// readLine reads one newline-delimited frame from the raw peer side.
func readLine(t *testing.T, peer net.Conn) []byte {
	t.Helper()
	scanner := bufio.NewScanner(peer)
	require.True(t, scanner.Scan(), "expected a frame, got: %v", scanner.Err())
	return scanner.Bytes()
}

func TestConn_WriteFrame(t *testing.T) {
	conn, peer := pipeConn(t)

	got := make(chan []byte, 1)
	go func() { got <- readLine(t, peer) }()

	require.NoError(t, conn.WriteFrame(map[string]string{"type": "heartbeat"}))

	var frame map[string]string
	require.NoError(t, json.Unmarshal(<-got, &frame))
	assert.Equal(t, "heartbeat", frame["type"])
}

func TestConn_ReadFrame_StripsLineEndings(t *testing.T) {
	conn, peer := pipeConn(t)

	go peer.Write([]byte("{\"type\":\"login\"}\r\n"))

	frame, err := conn.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"login"}`, string(frame))
}

func TestConn_ReadFrame_OversizedFrame(t *testing.T) {
	conn, peer := pipeConn(t)

	// a frame larger than the cap, never terminated by a newline
	go func() {
		chunk := make([]byte, 64*1024)
		for i := range chunk {
			chunk[i] = 'a'
		}
		for {
			if _, err := peer.Write(chunk); err != nil {
				return
			}
		}
	}()

	_, err := conn.ReadFrame()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestConn_ReadFrame_PeerClosed(t *testing.T) {
	conn, peer := pipeConn(t)
	peer.Close()

	_, err := conn.ReadFrame()
	assert.ErrorIs(t, err, ErrConnClosed)
}

func TestConn_ReadFrameTimeout(t *testing.T) {
	conn, _ := pipeConn(t)

	start := time.Now()
	_, err := conn.ReadFrameTimeout(50 * time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestConn_WriteFrame_AfterClose(t *testing.T) {
	conn, _ := pipeConn(t)
	require.NoError(t, conn.Close())

	err := conn.WriteFrame(map[string]string{"type": "heartbeat"})
	assert.ErrorIs(t, err, ErrConnClosed)
}

func TestConn_Close_Idempotent(t *testing.T) {
	conn, _ := pipeConn(t)
	require.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())
}

func TestRegistry_AddReplaces(t *testing.T) {
	r := New(nil)
	first, _ := pipeConn(t)
	second, _ := pipeConn(t)

	r.Add("u1", first)
	r.Add("u1", second)

	assert.Equal(t, 1, r.Len())
	assert.Same(t, second, r.Get("u1"))
}

func TestRegistry_RemoveStaleIsNoop(t *testing.T) {
	r := New(nil)
	old, _ := pipeConn(t)
	fresh, _ := pipeConn(t)

	r.Add("u1", old)
	r.Add("u1", fresh)

	// the old connection's deferred cleanup must not evict the reconnect
	r.Remove("u1", old)
	assert.Same(t, fresh, r.Get("u1"))

	r.Remove("u1", fresh)
	assert.Nil(t, r.Get("u1"))
}

func TestRegistry_RemoveNilMatchesAny(t *testing.T) {
	r := New(nil)
	conn, _ := pipeConn(t)
	r.Add("u1", conn)

	r.Remove("u1", nil)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_SendToUser(t *testing.T) {
	r := New(nil)
	conn, peer := pipeConn(t)
	r.Add("u1", conn)

	got := make(chan []byte, 1)
	go func() { got <- readLine(t, peer) }()

	r.SendToUser("u1", map[string]string{"type": "server_answer", "answer": "hi"})

	var frame map[string]string
	require.NoError(t, json.Unmarshal(<-got, &frame))
	assert.Equal(t, "hi", frame["answer"])
}

func TestRegistry_SendToUser_EvictsOnWriteFailure(t *testing.T) {
	r := New(nil)
	conn, _ := pipeConn(t)
	r.Add("u1", conn)
	require.NoError(t, conn.Close())

	r.SendToUser("u1", map[string]string{"type": "server_answer"})
	assert.Nil(t, r.Get("u1"))
}

func TestRegistry_SendToUnknownUser(t *testing.T) {
	r := New(nil)
	// no panic, no error surface
	r.SendToUser("ghost", map[string]string{"type": "server_answer"})
}
