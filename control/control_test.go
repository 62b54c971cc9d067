package control

import (
	"bufio"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mi-skam/bramble/scheduler"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeLoop struct {
	mu     sync.Mutex
	calls  []string
	status scheduler.Status
}

func (f *fakeLoop) record(op string) {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	f.mu.Unlock()
}

func (f *fakeLoop) Next()    { f.record("next") }
func (f *fakeLoop) Prev()    { f.record("prev") }
func (f *fakeLoop) Refresh() { f.record("refresh") }
func (f *fakeLoop) Pause()   { f.record("pause") }
func (f *fakeLoop) Resume()  { f.record("resume") }

func (f *fakeLoop) Status() scheduler.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeLoop) history() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// rawExchange sends one verbatim line over a plain connection and returns
// the decoded response.
func rawExchange(path, line string) (Response, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	if _, err := conn.Write([]byte(line)); err != nil {
		return Response{}, err
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		return Response{}, scanner.Err()
	}
	var resp Response
	err = json.Unmarshal(scanner.Bytes(), &resp)
	return resp, err
}

func TestControlSocket(t *testing.T) {
	Convey("Control socket", t, func() {
		loop := &fakeLoop{status: scheduler.Status{
			State:          "playing_image",
			CurrentPath:    "/media/a.png",
			Cursor:         0,
			PlaylistLength: 3,
		}}
		path := filepath.Join(t.TempDir(), "control.sock")
		srv := NewServer(path, loop)
		So(srv.Start(), ShouldBeNil)
		defer srv.Stop()

		Convey("Should answer status with the loop snapshot", func() {
			client, err := Dial(path)
			So(err, ShouldBeNil)
			defer client.Close()

			report, err := client.Status()
			So(err, ShouldBeNil)
			So(report.State, ShouldEqual, "playing_image")
			So(report.CurrentPath, ShouldEqual, "/media/a.png")
			So(report.PlaylistLength, ShouldEqual, 3)
			So(report.UptimeSeconds, ShouldBeGreaterThanOrEqualTo, 0)
			So(loop.history(), ShouldBeEmpty)
		})

		Convey("Should forward each command to the loop", func() {
			client, err := Dial(path)
			So(err, ShouldBeNil)
			defer client.Close()

			_, err = client.Next()
			So(err, ShouldBeNil)
			_, err = client.Prev()
			So(err, ShouldBeNil)
			_, err = client.Refresh()
			So(err, ShouldBeNil)
			_, err = client.Pause()
			So(err, ShouldBeNil)
			_, err = client.Resume()
			So(err, ShouldBeNil)

			So(loop.history(), ShouldResemble, []string{"next", "prev", "refresh", "pause", "resume"})
		})

		Convey("Should reject an unknown operation", func() {
			client, err := Dial(path)
			So(err, ShouldBeNil)
			defer client.Close()

			_, err = client.do("dance")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "unknown operation")
			So(loop.history(), ShouldBeEmpty)
		})

		Convey("Should answer a malformed line with an error, not a hangup", func() {
			resp, err := rawExchange(path, "this is not json\n")
			So(err, ShouldBeNil)
			So(resp.OK, ShouldBeFalse)
			So(resp.Error, ShouldContainSubstring, "malformed request")
		})

		Convey("Should skip blank lines", func() {
			resp, err := rawExchange(path, "\n\n{\"op\":\"status\"}\n")
			So(err, ShouldBeNil)
			So(resp.OK, ShouldBeTrue)
			So(resp.Status, ShouldNotBeNil)
			So(resp.Status.State, ShouldEqual, "playing_image")
		})

		Convey("Should serve several clients at once", func() {
			first, err := Dial(path)
			So(err, ShouldBeNil)
			defer first.Close()
			second, err := Dial(path)
			So(err, ShouldBeNil)
			defer second.Close()

			_, err = first.Status()
			So(err, ShouldBeNil)
			_, err = second.Next()
			So(err, ShouldBeNil)
			_, err = first.Status()
			So(err, ShouldBeNil)

			So(loop.history(), ShouldResemble, []string{"next"})
		})

		Convey("Stop should remove the socket and refuse new clients", func() {
			srv.Stop()
			srv.Stop()

			_, err := os.Stat(path)
			So(os.IsNotExist(err), ShouldBeTrue)

			_, err = Dial(path)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestStaleSocket(t *testing.T) {
	Convey("A stale socket file", t, func() {
		path := filepath.Join(t.TempDir(), "control.sock")
		So(os.WriteFile(path, nil, 0o600), ShouldBeNil)

		srv := NewServer(path, &fakeLoop{})
		So(srv.Start(), ShouldBeNil)
		defer srv.Stop()

		Convey("Should be replaced by a live one", func() {
			client, err := Dial(path)
			So(err, ShouldBeNil)
			defer client.Close()

			_, err = client.Status()
			So(err, ShouldBeNil)
		})
	})
}

func TestClientAgainstNoDaemon(t *testing.T) {
	Convey("Dialing with no daemon", t, func() {
		_, err := Dial(filepath.Join(t.TempDir(), "nobody.sock"))
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "no daemon reachable")
	})
}
