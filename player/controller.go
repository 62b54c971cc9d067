// Package player drives the external mpv process rendering the display loop.
package player

import (
	"sync"

	"github.com/mi-skam/bramble/log"
)

// Controller is the typed command surface the display loop drives the player
// through. It survives process restarts: every fresh connection is bound over
// the previous one while the merged, ordered event stream keeps flowing to
// the single consumer.
type Controller struct {
	mu      sync.Mutex
	channel *Channel
	binding uint64

	events chan Event
}

// NewController returns a controller with no connection bound yet. Commands
// fail with ErrConnLost until the first Bind.
func NewController() *Controller {
	return &Controller{
		events: make(chan Event, eventBacklog),
	}
}

// Bind replaces the active connection with a freshly dialed one and
// subscribes it to end-of-file reporting. Events still in flight from a
// previous connection are discarded so that a stale loss notification can
// never trail a successful rebind.
func (c *Controller) Bind(ch *Channel) error {
	c.mu.Lock()
	c.channel = ch
	c.binding++
	binding := c.binding
	c.mu.Unlock()

	go c.forward(ch, binding)

	// With --keep-open=always a finished video holds its last frame instead
	// of raising end-file, so completion is observed through this property.
	if err := ch.Observe(1, propEofReached); err != nil {
		return err
	}
	return nil
}

// Events returns the normalized event stream. The channel never closes; a
// lost connection is reported as a ConnLost event instead.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// Load replaces the playing entry with the file at path and ensures playback
// is not paused afterwards.
func (c *Controller) Load(path string) error {
	ch, err := c.active()
	if err != nil {
		return err
	}
	if _, err := ch.Send("loadfile", path, "replace"); err != nil {
		return err
	}
	_, err = ch.Send("set_property", "pause", false)
	return err
}

// Stop clears the screen without ending the player process.
func (c *Controller) Stop() error {
	ch, err := c.active()
	if err != nil {
		return err
	}
	_, err = ch.Send("stop")
	return err
}

// Pause suspends playback without unloading the current entry.
func (c *Controller) Pause() error {
	return c.setPause(true)
}

// Resume continues playback of the current entry.
func (c *Controller) Resume() error {
	return c.setPause(false)
}

// SetPosition seeks to an absolute position in the current entry.
func (c *Controller) SetPosition(seconds float64) error {
	ch, err := c.active()
	if err != nil {
		return err
	}
	_, err = ch.Send("seek", seconds, "absolute")
	return err
}

// Shutdown asks the player process to quit and releases the connection. The
// process itself is reaped by its supervisor.
func (c *Controller) Shutdown() error {
	c.mu.Lock()
	ch := c.channel
	c.channel = nil
	c.binding++
	c.mu.Unlock()

	if ch == nil {
		return nil
	}

	if _, err := ch.Send("quit"); err != nil {
		log.Debugf("player: quit command failed: %v", err)
	}
	ch.Close()
	return nil
}

func (c *Controller) setPause(paused bool) error {
	ch, err := c.active()
	if err != nil {
		return err
	}
	_, err = ch.Send("set_property", "pause", paused)
	return err
}

// active returns the currently bound connection.
func (c *Controller) active() (*Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel == nil {
		return nil, ErrConnLost
	}
	return c.channel, nil
}

// current reports whether the given binding is still the live one.
func (c *Controller) current(binding uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.binding == binding
}

// forward republishes one connection's events to the consumer stream until
// the connection dies or a newer binding supersedes it. A loss of the live
// binding is translated into a single trailing ConnLost event.
func (c *Controller) forward(ch *Channel, binding uint64) {
	for event := range ch.Events() {
		if !c.current(binding) {
			return
		}
		c.events <- event
	}

	if c.current(binding) {
		c.events <- Event{Kind: ConnLost}
	}
}
