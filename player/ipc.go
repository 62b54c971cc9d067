// Package player drives the external mpv process rendering the display loop.
package player

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/mi-skam/bramble/log"
)

const (
	dialTimeout = 500 * time.Millisecond

	// eventBacklog bounds the unread event queue of one connection. The
	// scheduler drains it continuously; the limit only guards the reader
	// against a wedged consumer.
	eventBacklog = 64

	propEofReached = "eof-reached"
)

// commandTimeout bounds how long a sender waits for the player to answer one
// request.
var commandTimeout = 5 * time.Second

// Failure conditions of the IPC link.
var (
	// ErrConnLost marks the transport as gone. It surfaces to every pending
	// sender and, through the event stream closing, to the event consumer.
	ErrConnLost = errors.New("ipc: connection lost")

	// ErrTimeout marks a single command that received no response in time.
	// The transport itself stays usable.
	ErrTimeout = errors.New("ipc: command timed out")
)

// ipcRequest is the JSON structure sent to the player's IPC socket.
type ipcRequest struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

// ipcMessage is the superset of everything the player writes on the socket.
// Command responses carry a request_id, asynchronous events carry an event
// name; the two are told apart solely by the presence of request_id.
type ipcMessage struct {
	RequestID *int64          `json:"request_id,omitempty"`
	Error     string          `json:"error,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Event     string          `json:"event,omitempty"`
	Name      string          `json:"name,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	FileError string          `json:"file_error,omitempty"`
}

// boolData decodes the message payload as a boolean property value.
func (m ipcMessage) boolData() (value, ok bool) {
	if len(m.Data) == 0 {
		return false, false
	}
	if err := json.Unmarshal(m.Data, &value); err != nil {
		return false, false
	}
	return value, true
}

// Channel is a persistent bidirectional link to one player process. Requests
// are tagged with monotonically increasing ids and responses are matched to
// their senders solely by id, never by order, because events interleave with
// responses on the same connection.
type Channel struct {
	conn   net.Conn
	events chan Event

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan ipcMessage
	closed  bool
}

// Dial connects to the player's IPC socket and starts the reader.
func Dial(socket string) (*Channel, error) {
	conn, err := net.DialTimeout("unix", socket, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("ipc connect: %w", err)
	}
	return newChannel(conn), nil
}

// newChannel wraps an established connection and starts the reader.
func newChannel(conn net.Conn) *Channel {
	c := &Channel{
		conn:    conn,
		events:  make(chan Event, eventBacklog),
		pending: make(map[int64]chan ipcMessage),
	}
	go c.readLoop()
	return c
}

// Events returns the ordered stream of normalized playback events. The
// channel closes when the transport is lost or released; all events produced
// before the loss are delivered first.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// Send issues one command and blocks until the matching response arrives or
// the per-command timeout elapses. A timed-out command is retried once; a
// second consecutive timeout is treated as a lost connection.
func (c *Channel) Send(command ...any) (json.RawMessage, error) {
	data, err := c.sendOnce(command)
	if !errors.Is(err, ErrTimeout) {
		return data, err
	}

	log.Warnf("ipc: no response to %v, retrying once", command)
	data, err = c.sendOnce(command)
	if errors.Is(err, ErrTimeout) {
		c.teardown()
		return nil, ErrConnLost
	}
	return data, err
}

// Observe subscribes the connection to change notifications for a property.
func (c *Channel) Observe(id int64, property string) error {
	_, err := c.Send("observe_property", id, property)
	return err
}

// Close releases the connection. Pending senders receive ErrConnLost and the
// event stream closes.
func (c *Channel) Close() {
	c.teardown()
}

func (c *Channel) sendOnce(command []any) (json.RawMessage, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrConnLost
	}
	c.nextID++
	id := c.nextID
	waiter := make(chan ipcMessage, 1)
	c.pending[id] = waiter
	c.mu.Unlock()

	payload, err := json.Marshal(ipcRequest{Command: command, RequestID: id})
	if err != nil {
		c.removePending(id)
		return nil, fmt.Errorf("ipc marshal: %w", err)
	}

	c.writeMu.Lock()
	_, err = c.conn.Write(append(payload, '\n'))
	c.writeMu.Unlock()
	if err != nil {
		c.removePending(id)
		c.teardown()
		return nil, ErrConnLost
	}

	select {
	case msg, ok := <-waiter:
		if !ok {
			return nil, ErrConnLost
		}
		if msg.Error != "" && msg.Error != "success" {
			return nil, fmt.Errorf("player: %s", msg.Error)
		}
		return msg.Data, nil
	case <-time.After(commandTimeout):
		c.removePending(id)
		return nil, ErrTimeout
	}
}

func (c *Channel) removePending(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// teardown closes the connection once, fails every pending sender, and ends
// the event stream.
func (c *Channel) teardown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	pending := c.pending
	c.pending = make(map[int64]chan ipcMessage)
	c.mu.Unlock()

	_ = c.conn.Close()
	for _, waiter := range pending {
		close(waiter)
	}
	close(c.events)
}

// readLoop owns the connection's read side. It dispatches responses to their
// pending senders by request id and forwards normalized events in order.
func (c *Channel) readLoop() {
	reader := bufio.NewReader(c.conn)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			c.teardown()
			return
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		var msg ipcMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			log.Warnf("ipc: discarding unparseable line: %v", err)
			continue
		}

		if msg.RequestID != nil {
			c.mu.Lock()
			waiter, ok := c.pending[*msg.RequestID]
			if ok {
				delete(c.pending, *msg.RequestID)
			}
			c.mu.Unlock()

			if ok {
				waiter <- msg
			}
			continue
		}

		if event, ok := normalizeEvent(msg); ok {
			select {
			case c.events <- event:
			default:
				log.Warnf("ipc: event backlog full, dropping %s", event.Kind)
			}
		}
	}
}
