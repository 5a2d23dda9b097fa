// ABOUTME: Conn wraps a raw duplex byte stream with newline-delimited JSON framing.
// ABOUTME: Reads are owned by one loop; writes are mutex-serialized across goroutines.

package registry

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// ErrConnClosed indicates a read or write failed because the peer closed
// the connection. Callers treat this as a normal, recoverable condition.
var ErrConnClosed = errors.New("connection closed")

// maxFrameSize caps a single inbound frame (1MB).
const maxFrameSize = 1 << 20

// Conn is one client connection. The read side belongs exclusively to the
// connection's router loop; the write side is shared between the router,
// the heartbeat supervisor and in-flight turns, serialized by writeMu.
type Conn struct {
	raw     net.Conn
	reader  *bufio.Reader
	writeMu sync.Mutex

	closeOnce sync.Once
}

// NewConn wraps a raw network connection.
func NewConn(raw net.Conn) *Conn {
	return &Conn{
		raw:    raw,
		reader: bufio.NewReaderSize(raw, maxFrameSize),
	}
}

// ReadFrame blocks until one newline-delimited frame arrives and returns
// it without the trailing newline. Returns ErrConnClosed when the peer
// has gone away.
func (c *Conn) ReadFrame() ([]byte, error) {
	// The reader's buffer is maxFrameSize, so ReadSlice fails with
	// ErrBufferFull once a frame exceeds the cap without buffering
	// anything beyond it. ReadBytes would accumulate without bound.
	line, err := c.reader.ReadSlice('\n')
	if err != nil {
		if errors.Is(err, bufio.ErrBufferFull) {
			return nil, fmt.Errorf("frame exceeds %d bytes", maxFrameSize)
		}
		if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
			return nil, ErrConnClosed
		}
		return nil, fmt.Errorf("reading frame: %w", err)
	}
	// strip trailing newline (and a CR if the client sends CRLF)
	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	// ReadSlice aliases the read buffer; detach before the next read.
	return append([]byte(nil), line...), nil
}

// ReadFrameTimeout reads one frame with an absolute deadline. Used by the
// authentication gate for the bounded first-frame wait.
func (c *Conn) ReadFrameTimeout(timeout time.Duration) ([]byte, error) {
	if err := c.raw.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("setting read deadline: %w", err)
	}
	defer c.raw.SetReadDeadline(time.Time{})

	frame, err := c.ReadFrame()
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return nil, ErrTimeout
	}
	return frame, err
}

// ErrTimeout indicates the bounded read elapsed without a frame.
var ErrTimeout = errors.New("read timed out")

// WriteFrame marshals v as JSON and writes it as one frame. Safe for
// concurrent use. Returns ErrConnClosed when the peer has gone away.
func (c *Conn) WriteFrame(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.raw.Write(append(data, '\n')); err != nil {
		if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
			return ErrConnClosed
		}
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// Close tears down the connection. Idempotent.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.raw.Close()
	})
	return err
}

// RemoteAddr returns the peer address for logging.
func (c *Conn) RemoteAddr() string {
	return c.raw.RemoteAddr().String()
}
