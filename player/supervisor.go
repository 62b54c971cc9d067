// Package player drives the external mpv process rendering the display loop.
package player

import (
	"fmt"
	"sync"
	"time"

	"github.com/mi-skam/bramble/key"
	"github.com/mi-skam/bramble/log"
	"github.com/mi-skam/bramble/util"
	"github.com/spf13/viper"
)

// Restart pacing. An incarnation surviving stableRuntime resets the budget:
// crashes after a long healthy run start a fresh incident instead of draining
// the allowance of an earlier crash loop.
var (
	backoffInitial = time.Second
	backoffMax     = 30 * time.Second
	stableRuntime  = time.Minute
)

// Supervisor owns the player process lifecycle: it spawns the first
// incarnation, monitors liveness, restarts with exponential backoff after
// unexpected exits, and binds each fresh connection to the controller. It
// never resumes playback itself; the loop reacts to the rebind signal.
type Supervisor struct {
	opts        Options
	controller  *Controller
	maxRestarts int

	// Process creation and connection setup stay injectable so the restart
	// logic can be exercised without a real player.
	spawn func(Options) (*Process, error)
	dial  func(string) (*Channel, error)

	rebinds chan struct{}
	failed  chan error

	stopOnce sync.Once
	stop     chan struct{}
	stopped  chan struct{}
}

// NewSupervisor wires a supervisor to the controller it feeds connections to.
func NewSupervisor(controller *Controller, opts Options) *Supervisor {
	return &Supervisor{
		opts:        opts,
		controller:  controller,
		maxRestarts: viper.GetInt(key.PlayerRestartMax),
		spawn:       Spawn,
		dial:        Dial,
		rebinds:     make(chan struct{}, 1),
		failed:      make(chan error, 1),
		stop:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
}

// Rebinds signals that a fresh connection was bound to the controller. The
// channel is coalescing: a slow consumer observes at least one signal.
func (s *Supervisor) Rebinds() <-chan struct{} {
	return s.rebinds
}

// Failed delivers the terminal error once the restart budget is exhausted.
func (s *Supervisor) Failed() <-chan error {
	return s.failed
}

// Run blocks until Stop is called or the restart budget is exhausted.
func (s *Supervisor) Run() {
	defer close(s.stopped)

	attempts := 0
	for {
		proc, ch, err := s.launch()
		if err != nil {
			log.Errorf("player launch failed: %v", err)
		} else {
			s.notifyRebind()
			started := time.Now()

			select {
			case <-proc.Exited():
				ch.Close()
				uptime := time.Since(started)
				log.Warnf("player exited unexpectedly after %s", uptime.Round(time.Second))
				if uptime >= stableRuntime {
					attempts = 0
				}
			case <-s.stop:
				_ = s.controller.Shutdown()
				_ = proc.Close()
				return
			}
		}

		attempts++
		if attempts > s.maxRestarts {
			failure := fmt.Errorf("player gave up after %s", util.Quantify(attempts-1, "restart", "restarts"))
			log.Error(failure)
			select {
			case s.failed <- failure:
			default:
			}
			return
		}

		delay := backoffDelay(attempts)
		log.Infof("restarting player in %s (attempt %d/%d)", delay, attempts, s.maxRestarts)
		select {
		case <-time.After(delay):
		case <-s.stop:
			return
		}
	}
}

// Stop asks the player to quit gracefully and ends the supervision loop. It
// returns once the loop has fully wound down.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	<-s.stopped
}

// launch spawns one incarnation and hands its connection to the controller.
func (s *Supervisor) launch() (*Process, *Channel, error) {
	proc, err := s.spawn(s.opts)
	if err != nil {
		return nil, nil, err
	}

	ch, err := s.dial(proc.Socket())
	if err != nil {
		_ = killProcess(proc.cmd)
		return nil, nil, fmt.Errorf("dial player socket: %w", err)
	}

	if err := s.controller.Bind(ch); err != nil {
		ch.Close()
		_ = killProcess(proc.cmd)
		return nil, nil, fmt.Errorf("bind player connection: %w", err)
	}

	return proc, ch, nil
}

func (s *Supervisor) notifyRebind() {
	select {
	case s.rebinds <- struct{}{}:
	default:
	}
}

// backoffDelay doubles per attempt from backoffInitial up to backoffMax.
func backoffDelay(attempt int) time.Duration {
	shift := util.Min(attempt-1, 5)
	return util.Min(backoffMax, backoffInitial<<shift)
}
