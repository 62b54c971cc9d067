// Package player drives the external mpv process rendering the display loop.
package player

// EventKind enumerates the normalized playback notifications the loop reacts to.
type EventKind int

const (
	// FileLoaded reports that the most recent load finished and playback of
	// the new entry began.
	FileLoaded EventKind = iota
	// EndOfFile reports that the current video played to its natural end.
	EndOfFile
	// PlaybackError reports that the current entry could not be played,
	// typically because the file vanished or is unreadable.
	PlaybackError
	// ConnLost reports that the transport to the player process is gone.
	ConnLost
)

// String returns the lowercase identifier of the event kind.
func (k EventKind) String() string {
	switch k {
	case FileLoaded:
		return "file-loaded"
	case EndOfFile:
		return "end-of-file"
	case PlaybackError:
		return "playback-error"
	case ConnLost:
		return "connection-lost"
	default:
		return "unknown"
	}
}

// Event is a single normalized notification from the player process. Events
// reach the consumer in exactly the order the transport produced them.
type Event struct {
	Kind EventKind

	// Reason carries the raw detail the player attached to a failure, when any.
	Reason string
}

// normalizeEvent maps a raw IPC message onto the closed event vocabulary.
// Messages outside it, including self-inflicted stops from our own load and
// quit commands, are discarded.
func normalizeEvent(msg ipcMessage) (Event, bool) {
	switch msg.Event {
	case "file-loaded":
		return Event{Kind: FileLoaded}, true

	case "end-file":
		// With --keep-open=always the player only raises end-file when a load
		// is replaced or fails; natural completion arrives as an eof-reached
		// property change instead.
		switch msg.Reason {
		case "eof":
			return Event{Kind: EndOfFile}, true
		case "error":
			reason := msg.FileError
			if reason == "" {
				reason = "playback failed"
			}
			return Event{Kind: PlaybackError, Reason: reason}, true
		default:
			return Event{}, false
		}

	case "property-change":
		if msg.Name == propEofReached {
			if reached, ok := msg.boolData(); ok && reached {
				return Event{Kind: EndOfFile}, true
			}
		}
		return Event{}, false

	default:
		return Event{}, false
	}
}
