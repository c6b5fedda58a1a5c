// Package mpv drives an mpv process over its JSON IPC socket.
package mpv

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

// ErrClosed is returned for commands issued after the connection went away.
var ErrClosed = errors.New("mpv connection closed")

type ipcCommand struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

// message is anything mpv writes to the socket: a command reply (request_id
// set) or an asynchronous event (event set).
type message struct {
	RequestID *int64          `json:"request_id"`
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`

	Event     string `json:"event"`
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Reason    string `json:"reason"`
	FileError string `json:"file_error"`
}

type reply struct {
	data json.RawMessage
	err  error
}

// ipcConn is a persistent IPC connection. Property observers registered through
// it report on the same connection, so events and replies share one reader.
// Events are handed to onEvent on a separate goroutine so handlers may issue
// commands of their own.
type ipcConn struct {
	conn    net.Conn
	onEvent func(message)
	events  chan message

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan reply
	closed  bool
	done    chan struct{}
}

// dialIPC connects to the socket at path. onEvent is called in order for
// every event line.
func dialIPC(ctx context.Context, path string, onEvent func(message)) (*ipcConn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	c := &ipcConn{
		conn:    nc,
		onEvent: onEvent,
		events:  make(chan message, 256),
		pending: make(map[int64]chan reply),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	go c.dispatchLoop()
	return c, nil
}

// Command sends one command and waits for its reply.
func (c *ipcConn) Command(ctx context.Context, args ...any) (json.RawMessage, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.nextID++
	id := c.nextID
	ch := make(chan reply, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	payload, err := json.Marshal(ipcCommand{Command: args, RequestID: id})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	c.writeMu.Lock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	}
	_, err = c.conn.Write(append(payload, '\n'))
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}

	select {
	case r := <-ch:
		return r.data, r.err
	case <-c.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed once the reader stops.
func (c *ipcConn) Done() <-chan struct{} {
	return c.done
}

func (c *ipcConn) Close() error {
	return c.conn.Close()
}

func (c *ipcConn) readLoop() {
	defer func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.events)
		close(c.done)
	}()

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg message
		if err := json.Unmarshal(line, &msg); err != nil {
			slog.Debug("mpv: skipping unparseable line", "error", err)
			continue
		}

		if msg.Event != "" {
			c.events <- msg
			continue
		}
		if msg.RequestID == nil {
			continue
		}

		c.mu.Lock()
		ch := c.pending[*msg.RequestID]
		c.mu.Unlock()
		if ch == nil {
			continue
		}
		var err error
		if msg.Error != "" && msg.Error != "success" {
			err = fmt.Errorf("mpv error: %s", msg.Error)
		}
		ch <- reply{data: msg.Data, err: err}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		slog.Warn("mpv: ipc read failed", "error", err)
	}
}

func (c *ipcConn) dispatchLoop() {
	for msg := range c.events {
		if c.onEvent != nil {
			c.onEvent(msg)
		}
	}
}
