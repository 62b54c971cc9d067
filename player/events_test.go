package player

import (
	"encoding/json"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNormalizeEvent(t *testing.T) {
	Convey("normalizeEvent", t, func() {
		Convey("Should pass through load completions", func() {
			event, ok := normalizeEvent(ipcMessage{Event: "file-loaded"})
			So(ok, ShouldBeTrue)
			So(event.Kind, ShouldEqual, FileLoaded)
		})

		Convey("Should map end-file by reason", func() {
			event, ok := normalizeEvent(ipcMessage{Event: "end-file", Reason: "eof"})
			So(ok, ShouldBeTrue)
			So(event.Kind, ShouldEqual, EndOfFile)

			event, ok = normalizeEvent(ipcMessage{Event: "end-file", Reason: "error", FileError: "no such file"})
			So(ok, ShouldBeTrue)
			So(event.Kind, ShouldEqual, PlaybackError)
			So(event.Reason, ShouldEqual, "no such file")

			event, ok = normalizeEvent(ipcMessage{Event: "end-file", Reason: "error"})
			So(ok, ShouldBeTrue)
			So(event.Reason, ShouldEqual, "playback failed")
		})

		Convey("Should drop self-inflicted end-file reasons", func() {
			for _, reason := range []string{"stop", "quit", "redirect", ""} {
				_, ok := normalizeEvent(ipcMessage{Event: "end-file", Reason: reason})
				So(ok, ShouldBeFalse)
			}
		})

		Convey("Should read natural completion from the eof-reached property", func() {
			event, ok := normalizeEvent(ipcMessage{
				Event: "property-change",
				Name:  propEofReached,
				Data:  json.RawMessage(`true`),
			})
			So(ok, ShouldBeTrue)
			So(event.Kind, ShouldEqual, EndOfFile)
		})

		Convey("Should ignore property changes that are not a reached end", func() {
			messages := []ipcMessage{
				{Event: "property-change", Name: propEofReached, Data: json.RawMessage(`false`)},
				{Event: "property-change", Name: propEofReached},
				{Event: "property-change", Name: propEofReached, Data: json.RawMessage(`"yes"`)},
				{Event: "property-change", Name: "pause", Data: json.RawMessage(`true`)},
			}
			for _, msg := range messages {
				_, ok := normalizeEvent(msg)
				So(ok, ShouldBeFalse)
			}
		})

		Convey("Should drop unrelated events", func() {
			for _, name := range []string{"idle", "seek", "playback-restart", "audio-reconfig"} {
				_, ok := normalizeEvent(ipcMessage{Event: name})
				So(ok, ShouldBeFalse)
			}
		})
	})
}

func TestEventKindString(t *testing.T) {
	Convey("EventKind String", t, func() {
		So(FileLoaded.String(), ShouldEqual, "file-loaded")
		So(EndOfFile.String(), ShouldEqual, "end-of-file")
		So(PlaybackError.String(), ShouldEqual, "playback-error")
		So(ConnLost.String(), ShouldEqual, "connection-lost")
		So(EventKind(99).String(), ShouldEqual, "unknown")
	})
}
