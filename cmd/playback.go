// Package cmd implements the command-line interface for bramble.
package cmd

import (
	"fmt"

	"github.com/mi-skam/bramble/control"
	"github.com/mi-skam/bramble/icon"
	"github.com/mi-skam/bramble/util"
	"github.com/mi-skam/bramble/where"
	"github.com/spf13/cobra"
)

// withDaemon runs one control exchange against the running daemon and exits
// with an error when no daemon answers.
func withDaemon(exchange func(*control.Client) (control.Report, error)) control.Report {
	client, err := control.Dial(where.ControlSocket())
	handleErr(err)
	defer util.Ignore(client.Close)

	report, err := exchange(client)
	handleErr(err)
	return report
}

func init() {
	rootCmd.AddCommand(nextCmd, prevCmd, refreshCmd, pauseCmd, resumeCmd)
}

// nextCmd skips the display loop forward one entry.
var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Skip to the next playlist entry",
	Run: func(cmd *cobra.Command, args []string) {
		withDaemon(func(c *control.Client) (control.Report, error) { return c.Next() })
		fmt.Printf("%s skipped forward\n", icon.Get(icon.Success))
	},
}

// prevCmd steps the display loop back one entry.
var prevCmd = &cobra.Command{
	Use:   "prev",
	Short: "Step back to the previous playlist entry",
	Run: func(cmd *cobra.Command, args []string) {
		withDaemon(func(c *control.Client) (control.Report, error) { return c.Prev() })
		fmt.Printf("%s stepped back\n", icon.Get(icon.Success))
	},
}

// refreshCmd forces a playlist rebuild from a fresh directory scan.
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rescan the media directory and rebuild the playlist",
	Long: `Rescan the media directory and rebuild the playlist. Only needed when
directory watching is disabled; with watching on, changes are picked up
automatically.`,
	Run: func(cmd *cobra.Command, args []string) {
		withDaemon(func(c *control.Client) (control.Report, error) { return c.Refresh() })
		fmt.Printf("%s refresh requested\n", icon.Get(icon.Success))
	},
}

// pauseCmd freezes playback in place.
var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Freeze playback in place",
	Long: `Freeze playback in place. A paused image keeps its remaining display time
and plays it out after resume; a paused video holds its frame.`,
	Run: func(cmd *cobra.Command, args []string) {
		withDaemon(func(c *control.Client) (control.Report, error) { return c.Pause() })
		fmt.Printf("%s paused\n", icon.Get(icon.Success))
	},
}

// resumeCmd continues paused playback.
var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Continue paused playback",
	Run: func(cmd *cobra.Command, args []string) {
		withDaemon(func(c *control.Client) (control.Report, error) { return c.Resume() })
		fmt.Printf("%s resumed\n", icon.Get(icon.Success))
	},
}
