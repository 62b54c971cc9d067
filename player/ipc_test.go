package player

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

// fakePlayer speaks the player's side of the IPC dialect over an in-memory
// pipe. Requests it receives are exposed on a channel so tests can answer
// them out of order or not at all.
type fakePlayer struct {
	conn     net.Conn
	requests chan ipcRequest
}

func newFakePlayer() (*fakePlayer, *Channel) {
	client, server := net.Pipe()
	f := &fakePlayer{
		conn:     server,
		requests: make(chan ipcRequest, 16),
	}
	go f.readLoop()
	return f, newChannel(client)
}

func (f *fakePlayer) readLoop() {
	scanner := bufio.NewScanner(f.conn)
	for scanner.Scan() {
		var req ipcRequest
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			continue
		}
		f.requests <- req
	}
	close(f.requests)
}

// reply answers one request by id.
func (f *fakePlayer) reply(id int64, status string, data any) {
	msg := map[string]any{"request_id": id, "error": status}
	if data != nil {
		msg["data"] = data
	}
	f.write(msg)
}

// emit writes one asynchronous event line.
func (f *fakePlayer) emit(fields map[string]any) {
	f.write(fields)
}

// serve answers every request with success until the connection closes.
func (f *fakePlayer) serve() {
	for req := range f.requests {
		f.reply(req.RequestID, "success", nil)
	}
}

func (f *fakePlayer) write(payload map[string]any) {
	raw, _ := json.Marshal(payload)
	_, _ = f.conn.Write(append(raw, '\n'))
}

func TestChannelSend(t *testing.T) {
	Convey("Channel Send", t, func() {
		Convey("Should return the data of a successful response", func() {
			f, ch := newFakePlayer()
			defer ch.Close()

			done := make(chan json.RawMessage, 1)
			go func() {
				data, _ := ch.Send("get_property", "path")
				done <- data
			}()

			req := <-f.requests
			So(req.Command, ShouldResemble, []any{"get_property", "path"})
			f.reply(req.RequestID, "success", "/media/a.jpg")

			var path string
			So(json.Unmarshal(<-done, &path), ShouldBeNil)
			So(path, ShouldEqual, "/media/a.jpg")
		})

		Convey("Should surface a failure status as an error", func() {
			f, ch := newFakePlayer()
			defer ch.Close()

			done := make(chan error, 1)
			go func() {
				_, err := ch.Send("loadfile", "/nope")
				done <- err
			}()

			req := <-f.requests
			f.reply(req.RequestID, "invalid parameter", nil)

			err := <-done
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "invalid parameter")
		})

		Convey("Should match responses by id, not by order", func() {
			f, ch := newFakePlayer()
			defer ch.Close()

			type result struct {
				property string
				data     json.RawMessage
				err      error
			}
			results := make(chan result, 2)
			ask := func(property string) {
				data, err := ch.Send("get_property", property)
				results <- result{property, data, err}
			}
			go ask("alpha")
			go ask("beta")

			first := <-f.requests
			second := <-f.requests

			// Answer the later request first; each sender must still
			// receive its own response.
			f.reply(second.RequestID, "success", second.Command[1])
			f.reply(first.RequestID, "success", first.Command[1])

			for i := 0; i < 2; i++ {
				res := <-results
				So(res.err, ShouldBeNil)

				var echoed string
				So(json.Unmarshal(res.data, &echoed), ShouldBeNil)
				So(echoed, ShouldEqual, res.property)
			}
		})

		Convey("Should fail immediately once the channel is closed", func() {
			_, ch := newFakePlayer()
			ch.Close()

			_, err := ch.Send("stop")
			So(errors.Is(err, ErrConnLost), ShouldBeTrue)
		})

		Convey("Should treat a write failure as a lost connection", func() {
			f, ch := newFakePlayer()
			_ = f.conn.Close()

			_, err := ch.Send("stop")
			So(errors.Is(err, ErrConnLost), ShouldBeTrue)
		})
	})
}

func TestChannelEvents(t *testing.T) {
	Convey("Channel Events", t, func() {
		Convey("Should deliver normalized events in order and drop the rest", func() {
			f, ch := newFakePlayer()
			defer ch.Close()

			f.emit(map[string]any{"event": "idle"})
			f.emit(map[string]any{"event": "end-file", "reason": "stop"})
			f.emit(map[string]any{"event": "file-loaded"})
			f.emit(map[string]any{"event": "property-change", "id": 1, "name": "eof-reached", "data": false})
			f.emit(map[string]any{"event": "property-change", "id": 1, "name": "eof-reached", "data": true})

			So((<-ch.Events()).Kind, ShouldEqual, FileLoaded)
			So((<-ch.Events()).Kind, ShouldEqual, EndOfFile)
		})

		Convey("Should interleave events with a pending command", func() {
			f, ch := newFakePlayer()
			defer ch.Close()

			done := make(chan error, 1)
			go func() {
				_, err := ch.Send("stop")
				done <- err
			}()

			req := <-f.requests
			f.emit(map[string]any{"event": "end-file", "reason": "error", "file_error": "loading failed"})
			f.reply(req.RequestID, "success", nil)

			So(<-done, ShouldBeNil)

			event := <-ch.Events()
			So(event.Kind, ShouldEqual, PlaybackError)
			So(event.Reason, ShouldEqual, "loading failed")
		})

		Convey("Should close the stream when the player side disconnects", func() {
			f, ch := newFakePlayer()
			_ = f.conn.Close()

			_, open := <-ch.Events()
			So(open, ShouldBeFalse)
		})
	})
}

func TestChannelTimeout(t *testing.T) {
	prev := commandTimeout
	commandTimeout = 50 * time.Millisecond
	defer func() { commandTimeout = prev }()

	Convey("Channel timeouts", t, func() {
		Convey("Should retry a timed-out command once", func() {
			f, ch := newFakePlayer()
			defer ch.Close()

			done := make(chan error, 1)
			go func() {
				_, err := ch.Send("get_property", "pause")
				done <- err
			}()

			attempt := <-f.requests
			retry := <-f.requests
			So(retry.RequestID, ShouldEqual, attempt.RequestID+1)
			f.reply(retry.RequestID, "success", false)

			So(<-done, ShouldBeNil)
		})

		Convey("Should escalate a second consecutive timeout to a lost connection", func() {
			f, ch := newFakePlayer()

			done := make(chan error, 1)
			go func() {
				_, err := ch.Send("get_property", "pause")
				done <- err
			}()

			<-f.requests
			<-f.requests

			So(errors.Is(<-done, ErrConnLost), ShouldBeTrue)

			_, open := <-ch.Events()
			So(open, ShouldBeFalse)

			_, err := ch.Send("stop")
			So(errors.Is(err, ErrConnLost), ShouldBeTrue)
		})
	})
}
