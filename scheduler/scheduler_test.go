package scheduler

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mi-skam/bramble/key"
	"github.com/mi-skam/bramble/media"
	"github.com/mi-skam/bramble/player"
	"github.com/samber/lo"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
)

// fakeScreen plays the player's role: it records the commands it receives
// and lets tests script failures and emit events.
type fakeScreen struct {
	mu      sync.Mutex
	loads   []string
	loadErr map[string]error
	stops   int
	paused  bool

	loaded chan string
	events chan player.Event
}

func newFakeScreen() *fakeScreen {
	return &fakeScreen{
		loadErr: map[string]error{},
		loaded:  make(chan string, 32),
		events:  make(chan player.Event, 32),
	}
}

func (f *fakeScreen) Load(path string) error {
	f.mu.Lock()
	f.loads = append(f.loads, path)
	err := f.loadErr[path]
	f.mu.Unlock()

	if err != nil {
		return err
	}
	f.loaded <- path
	return nil
}

func (f *fakeScreen) Stop() error {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
	return nil
}

func (f *fakeScreen) Pause() error {
	f.mu.Lock()
	f.paused = true
	f.mu.Unlock()
	return nil
}

func (f *fakeScreen) Resume() error {
	f.mu.Lock()
	f.paused = false
	f.mu.Unlock()
	return nil
}

func (f *fakeScreen) Events() <-chan player.Event {
	return f.events
}

func (f *fakeScreen) emit(kind player.EventKind) {
	f.events <- player.Event{Kind: kind}
}

func (f *fakeScreen) loadHistory() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.loads...)
}

func (f *fakeScreen) isPaused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

// rig bundles a running scheduler with its fake player and media directory.
type rig struct {
	dir     string
	screen  *fakeScreen
	sched   *Scheduler
	rebinds chan struct{}
	fatal   chan error
}

// startRig writes the given files into a fresh directory and runs a
// scheduler over them, delivering the first rebind so playback begins.
func startRig(t *testing.T, files ...string) *rig {
	dir := t.TempDir()
	for _, name := range files {
		lo.Must0(os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	r := &rig{
		dir:     dir,
		screen:  newFakeScreen(),
		rebinds: make(chan struct{}, 1),
		fatal:   make(chan error, 1),
	}
	r.sched = New(r.screen, dir, r.rebinds, r.fatal)

	go r.sched.Run()
	r.rebinds <- struct{}{}
	return r
}

func (r *rig) path(name string) string {
	return filepath.Join(r.dir, name)
}

func awaitLoad(f *fakeScreen) (string, bool) {
	select {
	case path := <-f.loaded:
		return path, true
	case <-time.After(2 * time.Second):
		return "", false
	}
}

// quietLoads reports whether no load lands within the window.
func quietLoads(f *fakeScreen, window time.Duration) bool {
	select {
	case <-f.loaded:
		return false
	case <-time.After(window):
		return true
	}
}

// awaitStatus polls until the predicate holds, returning the last snapshot.
func awaitStatus(s *Scheduler, match func(Status) bool) Status {
	deadline := time.Now().Add(2 * time.Second)
	for {
		status := s.Status()
		if match(status) || time.Now().After(deadline) {
			return status
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func awaitState(s *Scheduler, want string) bool {
	return awaitStatus(s, func(status Status) bool { return status.State == want }).State == want
}

// playUntil drives the rig to the point where name is on screen.
func playUntil(r *rig, name string) bool {
	for i := 0; i < 8; i++ {
		path, ok := awaitLoad(r.screen)
		if !ok {
			return false
		}
		r.screen.emit(player.FileLoaded)
		if path == r.path(name) {
			return true
		}
	}
	return false
}

func TestRotation(t *testing.T) {
	Convey("Playlist rotation", t, func() {
		viper.Set(key.PlaybackResume, false)

		Convey("Should rotate images by timer and videos by end of file, wrapping around", func() {
			viper.Set(key.PlaybackImageDuration, 0.05)
			r := startRig(t, "a.png", "b.mp4", "c.jpg")
			defer r.sched.Stop()

			path, ok := awaitLoad(r.screen)
			So(ok, ShouldBeTrue)
			So(path, ShouldEqual, r.path("a.png"))
			r.screen.emit(player.FileLoaded)
			So(awaitState(r.sched, "playing_image"), ShouldBeTrue)

			// The image countdown advances to the video.
			path, ok = awaitLoad(r.screen)
			So(ok, ShouldBeTrue)
			So(path, ShouldEqual, r.path("b.mp4"))
			r.screen.emit(player.FileLoaded)
			So(awaitState(r.sched, "playing_video"), ShouldBeTrue)

			// No countdown for videos: only end of file moves the loop on.
			So(quietLoads(r.screen, 200*time.Millisecond), ShouldBeTrue)
			r.screen.emit(player.EndOfFile)

			path, ok = awaitLoad(r.screen)
			So(ok, ShouldBeTrue)
			So(path, ShouldEqual, r.path("c.jpg"))
			r.screen.emit(player.FileLoaded)

			// The last image wraps back to the first entry.
			path, ok = awaitLoad(r.screen)
			So(ok, ShouldBeTrue)
			So(path, ShouldEqual, r.path("a.png"))
		})

		Convey("Should report the playing entry through status", func() {
			viper.Set(key.PlaybackImageDuration, 5.0)
			r := startRig(t, "a.png", "b.mp4")
			defer r.sched.Stop()

			So(playUntil(r, "a.png"), ShouldBeTrue)
			So(awaitState(r.sched, "playing_image"), ShouldBeTrue)

			status := r.sched.Status()
			So(status.CurrentPath, ShouldEqual, r.path("a.png"))
			So(status.Cursor, ShouldEqual, 0)
			So(status.PlaylistLength, ShouldEqual, 2)
		})
	})
}

func TestSkipCommands(t *testing.T) {
	Convey("Skip commands", t, func() {
		viper.Set(key.PlaybackResume, false)

		Convey("next should cancel the countdown with no residual fire", func() {
			viper.Set(key.PlaybackImageDuration, 0.3)
			r := startRig(t, "a.png", "b.mp4", "c.jpg")
			defer r.sched.Stop()

			So(playUntil(r, "a.png"), ShouldBeTrue)
			So(awaitState(r.sched, "playing_image"), ShouldBeTrue)

			r.sched.Next()

			path, ok := awaitLoad(r.screen)
			So(ok, ShouldBeTrue)
			So(path, ShouldEqual, r.path("b.mp4"))
			r.screen.emit(player.FileLoaded)
			So(awaitState(r.sched, "playing_video"), ShouldBeTrue)

			// The cancelled countdown must not advance the loop a second
			// time when its original deadline passes.
			So(quietLoads(r.screen, 500*time.Millisecond), ShouldBeTrue)
		})

		Convey("prev should wrap backwards", func() {
			viper.Set(key.PlaybackImageDuration, 5.0)
			r := startRig(t, "a.png", "b.mp4", "c.jpg")
			defer r.sched.Stop()

			So(playUntil(r, "a.png"), ShouldBeTrue)

			r.sched.Prev()

			path, ok := awaitLoad(r.screen)
			So(ok, ShouldBeTrue)
			So(path, ShouldEqual, r.path("c.jpg"))
		})
	})
}

func TestRefresh(t *testing.T) {
	Convey("Refresh", t, func() {
		viper.Set(key.PlaybackResume, false)
		viper.Set(key.PlaybackImageDuration, 5.0)

		Convey("Should keep the playing entry untouched when it survives", func() {
			r := startRig(t, "b.mp4")
			defer r.sched.Stop()

			So(playUntil(r, "b.mp4"), ShouldBeTrue)
			So(awaitState(r.sched, "playing_video"), ShouldBeTrue)

			lo.Must0(os.WriteFile(r.path("d.png"), []byte("x"), 0o644))
			r.sched.Refresh()

			status := awaitStatus(r.sched, func(status Status) bool { return status.PlaylistLength == 2 })
			So(status.PlaylistLength, ShouldEqual, 2)
			So(status.State, ShouldEqual, "playing_video")
			So(status.CurrentPath, ShouldEqual, r.path("b.mp4"))

			// No reload: the screen never flickers.
			So(quietLoads(r.screen, 200*time.Millisecond), ShouldBeTrue)
		})

		Convey("Should force a reload from the top when the playing entry vanished", func() {
			r := startRig(t, "a.png", "b.mp4")
			defer r.sched.Stop()

			So(playUntil(r, "a.png"), ShouldBeTrue)

			So(os.Remove(r.path("a.png")), ShouldBeNil)
			r.sched.Refresh()

			path, ok := awaitLoad(r.screen)
			So(ok, ShouldBeTrue)
			So(path, ShouldEqual, r.path("b.mp4"))

			status := awaitStatus(r.sched, func(status Status) bool { return status.PlaylistLength == 1 })
			So(status.Cursor, ShouldEqual, 0)
			So(status.PlaylistLength, ShouldEqual, 1)
		})

		Convey("Should idle on an empty directory and recover on the next refresh", func() {
			r := startRig(t, "a.png")
			defer r.sched.Stop()

			So(playUntil(r, "a.png"), ShouldBeTrue)

			So(os.Remove(r.path("a.png")), ShouldBeNil)
			r.sched.Refresh()
			So(awaitState(r.sched, "idle"), ShouldBeTrue)
			So(r.sched.Status().PlaylistLength, ShouldEqual, 0)

			lo.Must0(os.WriteFile(r.path("b.jpg"), []byte("x"), 0o644))
			r.sched.Refresh()

			path, ok := awaitLoad(r.screen)
			So(ok, ShouldBeTrue)
			So(path, ShouldEqual, r.path("b.jpg"))
		})
	})
}

func TestCrashRecovery(t *testing.T) {
	Convey("Crash recovery", t, func() {
		viper.Set(key.PlaybackResume, false)
		viper.Set(key.PlaybackImageDuration, 5.0)

		Convey("Should reload the same entry after a rebind", func() {
			r := startRig(t, "a.png", "b.mp4")
			defer r.sched.Stop()

			So(playUntil(r, "a.png"), ShouldBeTrue)

			r.screen.emit(player.ConnLost)
			So(awaitState(r.sched, "recovering"), ShouldBeTrue)

			// No load may be issued while the transport is gone.
			So(quietLoads(r.screen, 200*time.Millisecond), ShouldBeTrue)

			r.rebinds <- struct{}{}

			path, ok := awaitLoad(r.screen)
			So(ok, ShouldBeTrue)
			So(path, ShouldEqual, r.path("a.png"))
		})

		Convey("Should treat skips during recovery as resume intent", func() {
			r := startRig(t, "a.png", "b.mp4", "c.jpg")
			defer r.sched.Stop()

			So(playUntil(r, "a.png"), ShouldBeTrue)

			r.screen.emit(player.ConnLost)
			So(awaitState(r.sched, "recovering"), ShouldBeTrue)

			r.sched.Next()

			status := awaitStatus(r.sched, func(status Status) bool { return status.Cursor == 1 })
			So(status.Cursor, ShouldEqual, 1)
			So(status.State, ShouldEqual, "recovering")
			So(quietLoads(r.screen, 200*time.Millisecond), ShouldBeTrue)

			r.rebinds <- struct{}{}

			path, ok := awaitLoad(r.screen)
			So(ok, ShouldBeTrue)
			So(path, ShouldEqual, r.path("b.mp4"))
		})

		Convey("Should reload even when the loss was never observed", func() {
			r := startRig(t, "a.png")
			defer r.sched.Stop()

			So(playUntil(r, "a.png"), ShouldBeTrue)

			// A fast restart can supersede the dying connection before its
			// loss event surfaces; the rebind alone must repaint the screen.
			r.rebinds <- struct{}{}

			path, ok := awaitLoad(r.screen)
			So(ok, ShouldBeTrue)
			So(path, ShouldEqual, r.path("a.png"))
		})
	})
}

func TestPauseResume(t *testing.T) {
	Convey("Pause and resume", t, func() {
		viper.Set(key.PlaybackResume, false)

		Convey("Should suspend the image countdown and play out the rest after resume", func() {
			viper.Set(key.PlaybackImageDuration, 0.25)
			r := startRig(t, "a.png", "b.mp4")
			defer r.sched.Stop()

			So(playUntil(r, "a.png"), ShouldBeTrue)
			So(awaitState(r.sched, "playing_image"), ShouldBeTrue)

			r.sched.Pause()
			So(awaitState(r.sched, "paused"), ShouldBeTrue)
			So(r.screen.isPaused(), ShouldBeTrue)

			// Longer than the full display duration: the countdown is
			// suspended, not running out in the background.
			So(quietLoads(r.screen, 400*time.Millisecond), ShouldBeTrue)

			r.sched.Resume()
			So(awaitState(r.sched, "playing_image"), ShouldBeTrue)
			So(r.screen.isPaused(), ShouldBeFalse)

			// The remaining time plays out and the loop moves on.
			path, ok := awaitLoad(r.screen)
			So(ok, ShouldBeTrue)
			So(path, ShouldEqual, r.path("b.mp4"))
		})

		Convey("Should leave a video's end-of-file wait dormant while paused", func() {
			viper.Set(key.PlaybackImageDuration, 5.0)
			r := startRig(t, "b.mp4", "c.jpg")
			defer r.sched.Stop()

			So(playUntil(r, "b.mp4"), ShouldBeTrue)
			So(awaitState(r.sched, "playing_video"), ShouldBeTrue)

			r.sched.Pause()
			So(awaitState(r.sched, "paused"), ShouldBeTrue)

			r.screen.emit(player.EndOfFile)
			So(quietLoads(r.screen, 200*time.Millisecond), ShouldBeTrue)

			r.sched.Resume()
			So(awaitState(r.sched, "playing_video"), ShouldBeTrue)

			r.screen.emit(player.EndOfFile)
			path, ok := awaitLoad(r.screen)
			So(ok, ShouldBeTrue)
			So(path, ShouldEqual, r.path("c.jpg"))
		})

		Convey("Should ignore pause while idle", func() {
			r := startRig(t)
			defer r.sched.Stop()

			So(awaitState(r.sched, "idle"), ShouldBeTrue)
			r.sched.Pause()
			So(awaitState(r.sched, "idle"), ShouldBeTrue)
		})
	})
}

func TestEntryRecovery(t *testing.T) {
	Convey("Entry recovery", t, func() {
		viper.Set(key.PlaybackResume, false)
		viper.Set(key.PlaybackImageDuration, 5.0)

		Convey("Should step past an entry that reports a playback error", func() {
			r := startRig(t, "a.png", "b.mp4")
			defer r.sched.Stop()

			So(playUntil(r, "a.png"), ShouldBeTrue)

			r.screen.emit(player.PlaybackError)

			path, ok := awaitLoad(r.screen)
			So(ok, ShouldBeTrue)
			So(path, ShouldEqual, r.path("b.mp4"))
		})

		Convey("Should recover when the entry vanished from disk", func() {
			r := startRig(t, "a.png", "b.mp4")
			defer r.sched.Stop()

			So(playUntil(r, "a.png"), ShouldBeTrue)

			So(os.Remove(r.path("a.png")), ShouldBeNil)
			r.screen.emit(player.PlaybackError)

			path, ok := awaitLoad(r.screen)
			So(ok, ShouldBeTrue)
			So(path, ShouldEqual, r.path("b.mp4"))

			status := awaitStatus(r.sched, func(status Status) bool { return status.PlaylistLength == 1 })
			So(status.PlaylistLength, ShouldEqual, 1)
		})

		Convey("Should idle after one full lap of unplayable entries", func() {
			dir := t.TempDir()
			lo.Must0(os.WriteFile(filepath.Join(dir, "a.png"), []byte("x"), 0o644))
			lo.Must0(os.WriteFile(filepath.Join(dir, "b.png"), []byte("x"), 0o644))

			screen := newFakeScreen()
			screen.loadErr[filepath.Join(dir, "a.png")] = errors.New("player: loading failed")
			screen.loadErr[filepath.Join(dir, "b.png")] = errors.New("player: loading failed")

			rebinds := make(chan struct{}, 1)
			sched := New(screen, dir, rebinds, nil)
			go sched.Run()
			defer sched.Stop()
			rebinds <- struct{}{}

			So(awaitState(sched, "idle"), ShouldBeTrue)
			So(screen.loadHistory(), ShouldResemble, []string{
				filepath.Join(dir, "a.png"),
				filepath.Join(dir, "b.png"),
			})
		})
	})
}

func TestTerminalFailure(t *testing.T) {
	Convey("Terminal failure", t, func() {
		viper.Set(key.PlaybackResume, false)
		viper.Set(key.PlaybackImageDuration, 5.0)

		r := startRig(t, "a.png")
		defer r.sched.Stop()

		So(playUntil(r, "a.png"), ShouldBeTrue)

		r.fatal <- errors.New("player gave up after 10 restarts")
		So(awaitState(r.sched, "error"), ShouldBeTrue)

		var done bool
		select {
		case <-r.sched.Done():
			done = true
		case <-time.After(2 * time.Second):
		}
		So(done, ShouldBeTrue)

		// The retired loop ignores everything but status.
		r.sched.Next()
		r.sched.Refresh()
		So(quietLoads(r.screen, 200*time.Millisecond), ShouldBeTrue)
		So(r.sched.Status().State, ShouldEqual, "error")
	})
}

func TestImageHold(t *testing.T) {
	Convey("imageHold", t, func() {
		Convey("Should prefer the entry's own duration", func() {
			viper.Set(key.PlaybackImageDuration, 3.0)
			entry := media.Entry{Path: "a.png", Kind: media.Image, Duration: 750 * time.Millisecond}
			So(imageHold(entry), ShouldEqual, 750*time.Millisecond)
		})

		Convey("Should fall back to the configured duration", func() {
			viper.Set(key.PlaybackImageDuration, 3.0)
			entry := media.Entry{Path: "a.png", Kind: media.Image}
			So(imageHold(entry), ShouldEqual, 3*time.Second)
		})

		Convey("Should use the built-in hold when nothing is configured", func() {
			viper.Set(key.PlaybackImageDuration, 0.0)
			entry := media.Entry{Path: "a.png", Kind: media.Image}
			So(imageHold(entry), ShouldEqual, fallbackImageHold)
		})
	})
}
