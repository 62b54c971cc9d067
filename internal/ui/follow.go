// Package ui implements the live status dashboard behind `status --follow`.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mi-skam/bramble/color"
	"github.com/mi-skam/bramble/constant"
	"github.com/mi-skam/bramble/control"
	"github.com/mi-skam/bramble/style"
	"github.com/mi-skam/bramble/util"
	"github.com/muesli/reflow/wrap"
)

// pollInterval paces status requests against the daemon. The next poll is
// scheduled only after the previous one settles, so requests never overlap.
const pollInterval = time.Second

var dashboardPaddingStyle = lipgloss.NewStyle().Padding(1, 2)

// statusMsg delivers the outcome of a single status poll.
type statusMsg struct {
	report control.Report
	err    error
}

// pollTickMsg triggers the next status poll.
type pollTickMsg struct{}

// followBubble tracks the last report received from the daemon and renders
// it as a self-refreshing card.
type followBubble struct {
	socketPath string

	// components
	spinnerC spinner.Model
	notifier notifier

	report     control.Report
	haveReport bool
	lastError  error

	width int
}

// Follow renders the daemon status card and refreshes it until the user quits.
func Follow(socketPath string) error {
	bubble := newFollowBubble(socketPath)

	_, err := tea.NewProgram(bubble, tea.WithAltScreen()).Run()
	return err
}

func newFollowBubble(socketPath string) *followBubble {
	spinnerC := spinner.New()
	spinnerC.Spinner = spinner.Dot
	spinnerC.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	bubble := &followBubble{
		socketPath: socketPath,
		spinnerC:   spinnerC,
	}

	if w, _, err := util.TerminalSize(); err == nil {
		bubble.width = w
	}

	return bubble
}

func (b *followBubble) Init() tea.Cmd {
	return tea.Batch(b.spinnerC.Tick, b.poll())
}

// poll dials a fresh connection for every request so the dashboard survives
// daemon restarts between ticks.
func (b *followBubble) poll() tea.Cmd {
	path := b.socketPath
	return func() tea.Msg {
		client, err := control.Dial(path)
		if err != nil {
			return statusMsg{err: err}
		}
		defer util.Ignore(client.Close)

		report, err := client.Status()
		return statusMsg{report: report, err: err}
	}
}

func (b *followBubble) scheduleNextPoll() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg {
		return pollTickMsg{}
	})
}

func (b *followBubble) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	// Process Ephemeral UI Notifications (captures `string` and `clearNotificationMsg`)
	if uiCmd := b.notifier.Update(msg); uiCmd != nil {
		cmd = tea.Batch(cmd, uiCmd)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.width = msg.Width

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return b, tea.Quit
		}

	case pollTickMsg:
		return b, tea.Batch(cmd, b.poll())

	case statusMsg:
		if msg.err != nil {
			if b.haveReport {
				cmd = tea.Batch(cmd, b.notifier.Update("connection lost, retrying"))
			}
			b.haveReport = false
			b.lastError = msg.err
		} else {
			b.report = msg.report
			b.haveReport = true
			b.lastError = nil
		}
		return b, tea.Batch(cmd, b.scheduleNextPoll())

	case spinner.TickMsg:
		var spinnerCmd tea.Cmd
		b.spinnerC, spinnerCmd = b.spinnerC.Update(msg)
		return b, tea.Batch(cmd, spinnerCmd)
	}

	return b, cmd
}

func (b *followBubble) View() string {
	var lines []string
	if b.haveReport {
		lines = b.reportLines()
	} else {
		lines = b.waitingLines()
	}

	lines = append(lines, "", style.Faint("(q to quit)"))

	output := dashboardPaddingStyle.Render(strings.Join(lines, "\n"))
	return b.notifier.View(output)
}

func (b *followBubble) reportLines() []string {
	uptime := time.Duration(b.report.UptimeSeconds * float64(time.Second)).Round(time.Second)

	position := style.Faint("empty playlist")
	if b.report.PlaylistLength > 0 {
		position = fmt.Sprintf("%d of %d", b.report.Cursor+1, b.report.PlaylistLength)
	}

	lines := []string{
		style.Title(constant.Bramble + " daemon"),
		"",
		fmt.Sprintf("%s      %s", style.Faint("State"), stateColor(b.report.State)(b.report.State)),
	}

	if b.report.CurrentPath != "" {
		lines = append(lines, fmt.Sprintf("%s    %s", style.Faint("Playing"), style.Truncate(b.width)(b.report.CurrentPath)))
	}

	return append(lines,
		fmt.Sprintf("%s   %s", style.Faint("Position"), position),
		fmt.Sprintf("%s     %s", style.Faint("Uptime"), uptime),
	)
}

func (b *followBubble) waitingLines() []string {
	lines := []string{
		style.Title(constant.Bramble + " daemon"),
		"",
		b.spinnerC.View() + " waiting for the daemon",
	}

	if b.lastError != nil {
		message := b.lastError.Error()
		if b.width > 0 {
			message = wrap.String(message, b.width)
		}
		lines = append(lines, "", style.Faint(message))
	}

	return lines
}

// stateColor picks a color matching the meaning of a loop state.
func stateColor(state string) func(string) string {
	switch state {
	case "playing_image", "playing_video":
		return style.Fg(color.Green)
	case "paused":
		return style.Fg(color.Yellow)
	case "loading", "recovering":
		return style.Fg(color.Cyan)
	case "error":
		return style.Fg(color.Red)
	default:
		return style.Faint
	}
}
