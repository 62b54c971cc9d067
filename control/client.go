package control

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

var (
	clientDialTimeout  = 2 * time.Second
	clientReplyTimeout = 5 * time.Second
)

// Client talks to a running daemon. One client is one connection; it is not
// safe for concurrent use.
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
}

// Dial connects to the daemon's control socket. A connection failure almost
// always means no daemon is running.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, clientDialTimeout)
	if err != nil {
		return nil, fmt.Errorf("no daemon reachable at %s: %w", path, err)
	}
	return &Client{conn: conn, scanner: bufio.NewScanner(conn)}, nil
}

// Close hangs up the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Status fetches the daemon's state snapshot.
func (c *Client) Status() (Report, error) { return c.do(OpStatus) }

// Next skips the display loop forward one entry.
func (c *Client) Next() (Report, error) { return c.do(OpNext) }

// Prev steps the display loop back one entry.
func (c *Client) Prev() (Report, error) { return c.do(OpPrev) }

// Refresh asks the daemon for a fresh media directory scan.
func (c *Client) Refresh() (Report, error) { return c.do(OpRefresh) }

// Pause freezes playback in place.
func (c *Client) Pause() (Report, error) { return c.do(OpPause) }

// Resume continues paused playback.
func (c *Client) Resume() (Report, error) { return c.do(OpResume) }

func (c *Client) do(op string) (Report, error) {
	payload, err := json.Marshal(Request{Op: op})
	if err != nil {
		return Report{}, fmt.Errorf("control: %w", err)
	}

	if err := c.conn.SetDeadline(time.Now().Add(clientReplyTimeout)); err != nil {
		return Report{}, fmt.Errorf("control: %w", err)
	}
	if _, err := c.conn.Write(append(payload, '\n')); err != nil {
		return Report{}, fmt.Errorf("control: %w", err)
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return Report{}, fmt.Errorf("control: %w", err)
		}
		return Report{}, fmt.Errorf("control: daemon hung up")
	}

	var resp Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return Report{}, fmt.Errorf("control: malformed reply: %w", err)
	}
	if !resp.OK {
		return Report{}, fmt.Errorf("daemon: %s", resp.Error)
	}
	if resp.Status == nil {
		return Report{}, nil
	}
	return *resp.Status, nil
}
