// Package player drives the external mpv process rendering the display loop.
package player

import (
	"crypto/rand"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/mi-skam/bramble/constant"
	"github.com/mi-skam/bramble/key"
	"github.com/mi-skam/bramble/log"
	"github.com/mi-skam/bramble/where"
	"github.com/spf13/viper"
)

const (
	socketWaitRetries = 10
	socketWaitDelay   = 300 * time.Millisecond
)

// closeGracePeriod is how long Close waits for a quit command to land before
// force-killing the process group.
var closeGracePeriod = 3 * time.Second

// LaunchProfile distinguishes the two supported rendering environments.
type LaunchProfile int

const (
	// ProfileDesktop renders through the GPU video output of a desktop session.
	ProfileDesktop LaunchProfile = iota
	// ProfileEmbedded renders directly to the display hardware of a console-only
	// box through KMS/DRM.
	ProfileEmbedded
)

// String returns the lowercase identifier of the profile.
func (p LaunchProfile) String() string {
	switch p {
	case ProfileEmbedded:
		return "embedded"
	default:
		return "desktop"
	}
}

// DetectProfile picks the launch profile for the current host. A graphical
// session selects the desktop profile; a bare Linux console falls back to
// direct rendering. Non-Linux hosts always run the desktop profile.
func DetectProfile() LaunchProfile {
	if runtime.GOOS != constant.Linux {
		return ProfileDesktop
	}
	if os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != "" {
		return ProfileDesktop
	}
	return ProfileEmbedded
}

// Options collects everything needed to launch the player process.
type Options struct {
	Binary         string
	Profile        LaunchProfile
	VideoOutput    string // overrides the profile's video output when set
	HardwareDecode string
	Fullscreen     bool
	ExtraArgs      []string
}

// OptionsFromConfig assembles launch options from the global configuration
// and the detected platform.
func OptionsFromConfig() Options {
	return Options{
		Binary:         viper.GetString(key.PlayerPath),
		Profile:        DetectProfile(),
		VideoOutput:    viper.GetString(key.PlayerVideoOutput),
		HardwareDecode: viper.GetString(key.PlayerHardwareDecode),
		Fullscreen:     viper.GetBool(key.PlayerFullscreen),
		ExtraArgs:      viper.GetStringSlice(key.PlayerExtraArgs),
	}
}

// buildArgs renders the player command line for one process incarnation.
func buildArgs(opts Options, socket string) []string {
	args := []string{
		"--input-ipc-server=" + socket,
		"--idle=yes",
		"--force-window=yes",
		"--keep-open=always",
		"--image-display-duration=inf",
		"--no-osc",
		"--cursor-autohide=always",
		"--no-config",
		"--quiet",
		"--no-terminal",
	}

	output := opts.VideoOutput
	if output == "" {
		switch opts.Profile {
		case ProfileEmbedded:
			output = "drm"
		default:
			output = "gpu"
		}
	}
	args = append(args, "--vo="+output)
	if output == "drm" {
		args = append(args, "--drm-mode=preferred")
	}

	if opts.HardwareDecode != "" {
		args = append(args, "--hwdec="+opts.HardwareDecode)
	}
	if opts.Fullscreen {
		args = append(args, "--fullscreen")
	}

	return append(args, opts.ExtraArgs...)
}

// Process is one live player incarnation and its IPC socket.
type Process struct {
	socketPath string
	cmd        *exec.Cmd
	exited     chan struct{} // closed when the player process exits
}

// Spawn launches the player, waits for its IPC socket to accept connections,
// and returns the running process.
func Spawn(opts Options) (*Process, error) {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return nil, fmt.Errorf("generate socket name: %w", err)
	}

	p := &Process{
		socketPath: filepath.Join(where.Runtime(), fmt.Sprintf("player-%x.sock", suffix)),
		exited:     make(chan struct{}),
	}

	p.cmd = exec.Command(opts.Binary, buildArgs(opts, p.socketPath)...)

	// Detach from the parent process group so a dying shell cannot take the
	// display down with it.
	p.cmd.SysProcAttr = sysProcAttr()
	p.cmd.Stdin = nil
	p.cmd.Stdout = nil
	p.cmd.Stderr = nil

	if err := p.cmd.Start(); err != nil {
		return nil, fmt.Errorf("start player: %w", err)
	}

	// Reap the process in the background to prevent zombies.
	go func() {
		_ = p.cmd.Wait()
		close(p.exited)
	}()

	if err := p.waitForSocket(); err != nil {
		select {
		case <-p.exited:
		default:
			log.Warnf("killing player: socket never became ready")
			_ = killProcess(p.cmd)
		}
		return nil, fmt.Errorf("player socket not ready: %w", err)
	}

	log.Infof("player started (pid %d, profile %s)", p.cmd.Process.Pid, opts.Profile)
	return p, nil
}

// waitForSocket polls until the player's IPC socket accepts connections.
func (p *Process) waitForSocket() error {
	for i := 0; i < socketWaitRetries; i++ {
		time.Sleep(socketWaitDelay)

		select {
		case <-p.exited:
			return fmt.Errorf("player exited before socket was ready")
		default:
		}

		conn, err := net.Dial("unix", p.socketPath)
		if err == nil {
			conn.Close()
			return nil
		}
	}
	return fmt.Errorf("socket %s not ready after %d attempts", p.socketPath, socketWaitRetries)
}

// Socket returns the IPC socket path of this incarnation.
func (p *Process) Socket() string {
	return p.socketPath
}

// Exited returns a channel that is closed when the process exits.
func (p *Process) Exited() <-chan struct{} {
	return p.exited
}

// Alive reports whether the process is still running.
func (p *Process) Alive() bool {
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

// Close reaps the process, allowing a grace period for a previously issued
// quit command before force-killing the process group, and removes the
// socket file.
func (p *Process) Close() error {
	select {
	case <-p.exited:
	case <-time.After(closeGracePeriod):
		_ = killProcess(p.cmd)
	}

	_ = os.Remove(p.socketPath)
	return nil
}
