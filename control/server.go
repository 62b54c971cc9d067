package control

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/mi-skam/bramble/log"
)

// Server answers control requests on a unix socket. Each connection is
// served by its own goroutine; the loop behind it serializes the actual
// state transitions, so handlers never coordinate with each other.
type Server struct {
	path    string
	loop    Loop
	started time.Time

	listener net.Listener

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool

	handlers sync.WaitGroup
}

// NewServer prepares a control server on the given socket path. Nothing
// listens until Start.
func NewServer(path string, loop Loop) *Server {
	return &Server{
		path:  path,
		loop:  loop,
		conns: make(map[net.Conn]struct{}),
	}
}

// Start binds the socket and begins accepting clients. A stale socket left
// behind by a dead daemon is replaced.
func (s *Server) Start() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("control: replace stale socket: %w", err)
	}

	listener, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("control: %w", err)
	}
	if err := os.Chmod(s.path, 0o600); err != nil {
		listener.Close()
		return fmt.Errorf("control: %w", err)
	}

	s.listener = listener
	s.started = time.Now()

	go s.acceptLoop()
	log.Infof("control socket listening at %s", s.path)
	return nil
}

// Stop closes the listener and every live connection, then removes the
// socket. Safe to call more than once.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	s.handlers.Wait()
	os.Remove(s.path)
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warnf("control accept: %v", err)
			continue
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.handlers.Add(1)
		s.mu.Unlock()

		go s.serve(conn)
	}
}

// serve answers one client until it hangs up. Requests are independent
// lines; a malformed line earns an error response, not a disconnect.
func (s *Server) serve(conn net.Conn) {
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		s.handlers.Done()
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var req Request
		var resp Response
		if err := json.Unmarshal(line, &req); err != nil {
			resp = Response{Error: fmt.Sprintf("malformed request: %v", err)}
		} else {
			resp = s.dispatch(req)
		}

		if err := s.reply(conn, resp); err != nil {
			log.Debugf("control reply: %v", err)
			return
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	switch req.Op {
	case OpStatus:
	case OpNext:
		s.loop.Next()
	case OpPrev:
		s.loop.Prev()
	case OpRefresh:
		s.loop.Refresh()
	case OpPause:
		s.loop.Pause()
	case OpResume:
		s.loop.Resume()
	default:
		return Response{Error: fmt.Sprintf("unknown operation %q", req.Op)}
	}

	log.Debugf("control: served %s", req.Op)
	return Response{OK: true, Status: s.report()}
}

func (s *Server) report() *Report {
	return &Report{
		Status:        s.loop.Status(),
		UptimeSeconds: time.Since(s.started).Seconds(),
	}
}

func (s *Server) reply(conn net.Conn, resp Response) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	_, err = conn.Write(append(payload, '\n'))
	return err
}
