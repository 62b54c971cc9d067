// Package ui implements the live status dashboard behind `status --follow`.
package ui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// notifier holds the state for transient, non-blocking terminal alerts
// overlaid on the dashboard.
type notifier struct {
	notification string
	notifiedAt   time.Time
}

// clearNotificationMsg is a Bubbletea message used to reset the visual notification state.
type clearNotificationMsg struct{}

// clearNotification returns a delayed tea.Cmd that clears the current notification after a fixed duration.
func clearNotification() tea.Cmd {
	return tea.Tick(3*time.Second, func(t time.Time) tea.Msg {
		return clearNotificationMsg{}
	})
}

// Update processes incoming messages to modify the notification state.
func (n *notifier) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case string:
		n.notification = msg
		n.notifiedAt = time.Now()
		return clearNotification()
	case clearNotificationMsg:
		n.notification = ""
		return nil
	}
	return nil
}

// View injects the current notification message into the terminal view buffer.
func (n *notifier) View(mainContent string) string {
	if n.notification == "" {
		return mainContent
	}

	// Standardize on a low-intensity ANSI escape sequence to minimize visual noise.
	lines := strings.Split(mainContent, "\n")
	alert := "\033[90m" + n.notification + "\033[0m"

	if len(lines) > 0 {
		lines[len(lines)-1] = lines[len(lines)-1] + "  " + alert
	}
	return strings.Join(lines, "\n")
}
