// Package scheduler owns the display loop: the playlist, its cursor, and the
// state machine that drives the player from one entry to the next.
package scheduler

import (
	"errors"
	"sync"
	"time"

	"github.com/mi-skam/bramble/key"
	"github.com/mi-skam/bramble/log"
	"github.com/mi-skam/bramble/media"
	"github.com/mi-skam/bramble/player"
	"github.com/mi-skam/bramble/resume"
	"github.com/mi-skam/bramble/util"
	"github.com/spf13/viper"
)

// fallbackImageHold keeps images visible even when the configured default
// duration is missing or nonsense.
const fallbackImageHold = 10 * time.Second

// Player is the slice of the controller the scheduler drives.
type Player interface {
	Load(path string) error
	Stop() error
	Pause() error
	Resume() error
	Events() <-chan player.Event
}

// Status is the externally visible snapshot of the loop.
type Status struct {
	State          string `json:"state" jsonschema:"description=Current state of the display loop. One of idle, loading, playing_image, playing_video, paused, recovering, error."`
	CurrentPath    string `json:"current_path,omitempty" jsonschema:"description=Absolute path of the entry under the playlist cursor."`
	Cursor         int    `json:"cursor" jsonschema:"description=Zero-based playlist position of the current entry."`
	PlaylistLength int    `json:"playlist_length" jsonschema:"description=Number of playable entries in the playlist."`
}

type commandKind int

const (
	cmdNext commandKind = iota
	cmdPrev
	cmdRefresh
	cmdPause
	cmdResume
)

type command struct {
	kind commandKind
}

// Scheduler serializes every state transition through one control loop.
// Player events, watcher refreshes, supervisor signals, and control commands
// are all just messages into that loop; nothing else touches the playlist.
type Scheduler struct {
	player   Player
	mediaDir string
	playlist *media.Playlist

	state      State
	prior      State         // state to restore on resume
	remaining  time.Duration // image time left while paused
	deadline   time.Time     // when the armed image countdown fires
	failStreak int           // consecutive entries that failed to play

	// gen tags the outstanding wait. Cancellation bumps it, so a fire that
	// lost the race against a command is recognized as stale and dropped.
	gen   uint64
	timer *time.Timer

	commands   chan command
	timerFires chan uint64
	rebinds    <-chan struct{}
	fatal      <-chan error

	statusMu sync.RWMutex
	status   Status

	done     chan struct{}
	doneOnce sync.Once
	stop     chan struct{}
	stopOnce sync.Once
	stopped  chan struct{}
}

// New assembles the scheduler around the player facade it drives. The rebind
// and failure channels come from the process supervisor; a nil channel mutes
// that signal. The loop starts out recovering: playback begins with the
// first rebind.
func New(p Player, mediaDir string, rebinds <-chan struct{}, fatal <-chan error) *Scheduler {
	s := &Scheduler{
		player:     p,
		mediaDir:   mediaDir,
		playlist:   media.NewPlaylist(nil),
		state:      Recovering,
		commands:   make(chan command, 16),
		timerFires: make(chan uint64, 1),
		rebinds:    rebinds,
		fatal:      fatal,
		done:       make(chan struct{}),
		stop:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	s.publishStatus()
	return s
}

// Run executes the control loop until Stop. All state transitions happen in
// here; producers only ever deliver signals.
func (s *Scheduler) Run() {
	defer close(s.stopped)

	s.primePlaylist()
	s.restoreBookmark()
	s.publishStatus()

	for {
		select {
		case <-s.stop:
			s.cancelWait()
			return

		case generation := <-s.timerFires:
			if generation == s.gen && s.state == PlayingImage {
				s.advance(+1)
			}

		case event := <-s.player.Events():
			s.handleEvent(event)

		case <-s.rebinds:
			s.handleRebind()

		case err := <-s.fatal:
			s.handleFatal(err)

		case cmd := <-s.commands:
			s.handleCommand(cmd)
		}

		s.publishStatus()
	}
}

// Stop ends the control loop and waits for it to wind down.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.stopped
}

// Done is closed once the loop retires to the terminal error state.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Next skips forward one entry.
func (s *Scheduler) Next() { s.submit(cmdNext) }

// Prev steps back one entry.
func (s *Scheduler) Prev() { s.submit(cmdPrev) }

// Refresh rebuilds the playlist from a fresh directory scan.
func (s *Scheduler) Refresh() { s.submit(cmdRefresh) }

// Pause freezes playback in place.
func (s *Scheduler) Pause() { s.submit(cmdPause) }

// Resume continues paused playback.
func (s *Scheduler) Resume() { s.submit(cmdResume) }

// Status returns a consistent snapshot of the loop. It never blocks on the
// control loop and keeps answering after the loop has retired.
func (s *Scheduler) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

func (s *Scheduler) submit(kind commandKind) {
	select {
	case s.commands <- command{kind: kind}:
	case <-s.stopped:
	}
}

func (s *Scheduler) publishStatus() {
	entry, _ := s.playlist.Current().Get()

	s.statusMu.Lock()
	s.status = Status{
		State:          s.state.String(),
		CurrentPath:    entry.Path,
		Cursor:         s.playlist.Cursor(),
		PlaylistLength: s.playlist.Len(),
	}
	s.statusMu.Unlock()
}

// primePlaylist builds the initial playlist. No load is issued here; the
// supervisor's first rebind starts playback.
func (s *Scheduler) primePlaylist() {
	entries, err := media.Scan(s.mediaDir)
	if err != nil {
		log.Warnf("initial scan: %v", err)
		return
	}
	s.playlist.Rebuild(entries, "")
}

func (s *Scheduler) handleCommand(cmd command) {
	switch cmd.kind {
	case cmdNext:
		s.skip(+1)
	case cmdPrev:
		s.skip(-1)
	case cmdRefresh:
		s.refresh()
	case cmdPause:
		s.pause()
	case cmdResume:
		s.resume()
	}
}

func (s *Scheduler) handleEvent(event player.Event) {
	switch event.Kind {
	case player.FileLoaded:
		s.handleLoaded()
	case player.EndOfFile:
		if s.state == PlayingVideo {
			s.advance(+1)
		}
	case player.PlaybackError:
		s.handlePlaybackError(event.Reason)
	case player.ConnLost:
		s.handleConnLost()
	}
}

// handleLoaded settles the load that just finished: images get their
// countdown armed, videos sit until their end of file.
func (s *Scheduler) handleLoaded() {
	switch s.state {
	case Loading, PlayingImage, PlayingVideo:
	default:
		// A load completion has no meaning while idle, paused, or recovering.
		log.Debugf("ignoring file-loaded in state %s", s.state)
		return
	}

	entry, ok := s.playlist.Current().Get()
	if !ok {
		return
	}

	s.failStreak = 0
	s.rememberBookmark(entry.Path)

	switch entry.Kind {
	case media.Image:
		s.armTimer(imageHold(entry))
		s.state = PlayingImage
	default:
		s.cancelWait()
		s.state = PlayingVideo
	}
	log.Infof("playing %s (%s)", entry.Path, entry.Kind)
}

// handlePlaybackError recovers from an entry that cannot be shown, typically
// because its file vanished between scan and load.
func (s *Scheduler) handlePlaybackError(reason string) {
	switch s.state {
	case Idle, Recovering, Halted:
		return
	}

	entry, ok := s.playlist.Current().Get()
	if !ok {
		s.toIdle()
		return
	}

	log.Warnf("cannot play %s: %s", entry.Path, reason)
	if s.recoverEntry(entry.Path) {
		s.loadCurrent()
	}
}

// handleConnLost drops into recovery. No command may reach the dead
// transport; the cursor stays put as the resume intent for the next rebind.
func (s *Scheduler) handleConnLost() {
	if s.state == Halted {
		return
	}
	s.cancelWait()
	s.state = Recovering
	log.Warn("player connection lost, awaiting restart")
}

// handleRebind reacts to a fresh player incarnation. The new process always
// comes up with a blank screen, so the current entry is loaded again no
// matter which state the loop was in, even when the loss of the previous
// connection was never observed.
func (s *Scheduler) handleRebind() {
	if s.state == Halted {
		return
	}
	s.cancelWait()

	if s.playlist.Empty() {
		s.state = Idle
		return
	}
	s.loadCurrent()
}

// handleFatal retires the loop once the supervisor has given up. Status
// stays readable; everything else is ignored from here on.
func (s *Scheduler) handleFatal(err error) {
	s.cancelWait()
	s.state = Halted
	log.Errorf("display loop halted: %v", err)
	s.doneOnce.Do(func() { close(s.done) })
}

// skip serves the next and prev commands.
func (s *Scheduler) skip(step int) {
	switch s.state {
	case Idle, Halted:
		log.Debugf("ignoring skip in state %s", s.state)
	default:
		s.advance(step)
	}
}

// advance cancels the outstanding wait, moves the cursor, and loads whatever
// it lands on. While recovering the cursor move is the whole effect: it
// adjusts the resume intent and the next rebind issues the load.
func (s *Scheduler) advance(step int) {
	s.cancelWait()

	if s.playlist.Empty() {
		s.toIdle()
		return
	}

	if step >= 0 {
		s.playlist.Advance()
	} else {
		s.playlist.Retreat()
	}

	if s.state == Recovering {
		return
	}
	s.loadCurrent()
}

// refresh rebuilds the playlist from a directory scan. An entry that is
// still on screen and survives the rebuild keeps playing untouched; its
// disappearance forces a reload from the top of the new list.
func (s *Scheduler) refresh() {
	if s.state == Halted {
		return
	}

	entries, err := media.Scan(s.mediaDir)
	if err != nil {
		log.Warnf("refresh scan: %v", err)
		entries = nil
	}

	playing := ""
	if entry, ok := s.playlist.Current().Get(); ok {
		playing = entry.Path
	}

	reload := s.playlist.Rebuild(entries, playing)
	s.failStreak = 0

	if s.playlist.Empty() {
		if s.state != Idle {
			log.Info("media directory is empty, clearing the screen")
			s.toIdle()
		}
		return
	}

	switch {
	case s.state == Idle:
		s.loadCurrent()
	case s.state == Recovering:
		// Cursor remapped; the pending rebind issues the load.
	case reload:
		s.cancelWait()
		s.loadCurrent()
	default:
		log.Debugf("playlist refreshed to %d entries, playback uninterrupted", s.playlist.Len())
	}
}

// pause freezes the loop. Images bank their remaining display time; videos
// hold their frame while the end-of-file wait lies dormant.
func (s *Scheduler) pause() {
	if s.state != PlayingImage && s.state != PlayingVideo {
		log.Debugf("ignoring pause in state %s", s.state)
		return
	}

	if err := s.player.Pause(); err != nil {
		if errors.Is(err, player.ErrConnLost) {
			s.handleConnLost()
			return
		}
		log.Warnf("pause: %v", err)
		return
	}

	if s.state == PlayingImage {
		s.remaining = time.Until(s.deadline)
		if s.remaining < 0 {
			s.remaining = 0
		}
		s.cancelWait()
	}

	s.prior = s.state
	s.state = Paused
	log.Info("playback paused")
}

// resume continues after a pause, restoring the image countdown with exactly
// the time it had left.
func (s *Scheduler) resume() {
	if s.state != Paused {
		log.Debugf("ignoring resume in state %s", s.state)
		return
	}

	if err := s.player.Resume(); err != nil {
		if errors.Is(err, player.ErrConnLost) {
			s.handleConnLost()
			return
		}
		log.Warnf("resume: %v", err)
		return
	}

	s.state = s.prior
	if s.state == PlayingImage {
		s.armTimer(s.remaining)
	}
	log.Info("playback resumed")
}

// loadCurrent issues the load for the entry under the cursor. Entries that
// fail outright are recovered in place, bounded by one full lap over the
// playlist before the loop idles until the next refresh.
func (s *Scheduler) loadCurrent() {
	for {
		entry, ok := s.playlist.Current().Get()
		if !ok {
			s.toIdle()
			return
		}

		s.state = Loading
		err := s.player.Load(entry.Path)
		if err == nil {
			log.Debugf("loading %s", entry.Path)
			return
		}

		if errors.Is(err, player.ErrConnLost) {
			s.handleConnLost()
			return
		}

		log.Warnf("load of %s failed: %v", entry.Path, err)
		if !s.recoverEntry(entry.Path) {
			return
		}
	}
}

// recoverEntry reacts to an entry that cannot be played: rescan the
// directory, step the cursor past the offender, and report whether another
// load attempt makes sense.
func (s *Scheduler) recoverEntry(failed string) bool {
	s.failStreak++

	entries, err := media.Scan(s.mediaDir)
	if err != nil {
		log.Errorf("rescan after failed entry: %v", err)
		entries = nil
	}

	s.playlist.Rebuild(entries, failed)
	if s.playlist.Empty() {
		s.toIdle()
		return false
	}

	if s.failStreak >= s.playlist.Len() {
		log.Errorf("no playable entry in %s after %s", s.mediaDir, util.Quantify(s.failStreak, "attempt", "attempts"))
		s.toIdle()
		return false
	}

	// A file that is still listed is present but unreadable: step past it.
	// A vanished file already reset the cursor during the rebuild.
	if s.playlist.Seek(failed) {
		s.playlist.Advance()
	}
	return true
}

// toIdle parks the loop with a cleared screen. Not an error: the next
// refresh that finds playable entries starts the rotation again.
func (s *Scheduler) toIdle() {
	s.cancelWait()

	if s.state != Recovering && s.state != Halted && s.state != Idle {
		if err := s.player.Stop(); err != nil && !errors.Is(err, player.ErrConnLost) {
			log.Warnf("clearing screen: %v", err)
		}
	}
	s.state = Idle
}

// armTimer starts the image countdown. The fire carries the generation it
// was armed under; anything that cancels the wait bumps the generation, so a
// fire that lost that race is recognized and dropped.
func (s *Scheduler) armTimer(d time.Duration) {
	s.cancelWait()

	generation := s.gen
	s.deadline = time.Now().Add(d)
	s.timer = time.AfterFunc(d, func() {
		select {
		case s.timerFires <- generation:
		case <-s.stop:
		}
	})
}

// cancelWait invalidates the outstanding timer or event wait. Safe to call
// with nothing outstanding.
func (s *Scheduler) cancelWait() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// imageHold returns the on-screen time for an image entry, falling back to
// the configured default and finally to a fixed floor, never zero.
func imageHold(entry media.Entry) time.Duration {
	if entry.Duration > 0 {
		return entry.Duration
	}
	if configured := viper.GetFloat64(key.PlaybackImageDuration); configured > 0 {
		return time.Duration(configured * float64(time.Second))
	}
	return fallbackImageHold
}

// rememberBookmark records the path on screen for the next run.
func (s *Scheduler) rememberBookmark(path string) {
	if !viper.GetBool(key.PlaybackResume) {
		return
	}
	if err := resume.Save(path); err != nil {
		log.Warnf("persist resume point: %v", err)
	}
}

// restoreBookmark drops the cursor onto the entry the previous run left off
// at, when that entry still exists.
func (s *Scheduler) restoreBookmark() {
	if !viper.GetBool(key.PlaybackResume) {
		return
	}

	point, err := resume.Load()
	if err != nil {
		log.Warnf("read resume point: %v", err)
		return
	}
	if p, ok := point.Get(); ok && s.playlist.Seek(p.Path) {
		log.Infof("resuming at %s", p.Path)
	}
}
