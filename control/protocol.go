// Package control exposes the running daemon to the CLI over a local unix
// socket speaking newline-delimited JSON, one request and one response per
// line, the same wire shape the player's own IPC uses.
package control

import (
	"github.com/mi-skam/bramble/scheduler"
)

// Operations accepted over the control socket.
const (
	OpStatus  = "status"
	OpNext    = "next"
	OpPrev    = "prev"
	OpRefresh = "refresh"
	OpPause   = "pause"
	OpResume  = "resume"
)

// Request is one line of JSON sent by a client.
type Request struct {
	Op string `json:"op"`
}

// Response is the daemon's one-line answer. Every accepted operation carries
// a status snapshot. Commands settle asynchronously in the display loop, so
// the snapshot taken right after a skip may still show the previous entry.
type Response struct {
	OK     bool    `json:"ok"`
	Error  string  `json:"error,omitempty"`
	Status *Report `json:"status,omitempty"`
}

// Report is the daemon state visible from outside.
type Report struct {
	scheduler.Status
	UptimeSeconds float64 `json:"uptime_seconds" jsonschema:"description=Seconds elapsed since the daemon started serving."`
}

// Loop is the slice of the scheduler the control surface drives.
type Loop interface {
	Next()
	Prev()
	Refresh()
	Pause()
	Resume()
	Status() scheduler.Status
}
