// Package cmd implements the command-line interface for bramble.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/mi-skam/bramble/color"
	"github.com/mi-skam/bramble/constant"
	"github.com/mi-skam/bramble/control"
	"github.com/mi-skam/bramble/internal/ui"
	"github.com/mi-skam/bramble/style"
	"github.com/mi-skam/bramble/util"
	"github.com/mi-skam/bramble/where"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolP("json", "j", false, "Format the output as a JSON string")
	statusCmd.Flags().Bool("json-schema", false, "Generate the JSON schema of the status output")
	statusCmd.Flags().BoolP("follow", "f", false, "Keep the status on screen and refresh it live")
	statusCmd.MarkFlagsMutuallyExclusive("json", "json-schema", "follow")

	statusCmd.SetOut(os.Stdout)
}

// statusCmd reports the playback state of the running daemon.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the playback state of the running daemon",
	Long: `Show what the daemon is playing right now. The exit code reflects daemon
reachability, so the bare command doubles as a liveness probe.`,
	Run: func(cmd *cobra.Command, args []string) {
		if lo.Must(cmd.Flags().GetBool("json-schema")) {
			reflector := new(jsonschema.Reflector)
			reflector.Anonymous = true
			handleErr(json.NewEncoder(cmd.OutOrStdout()).Encode(reflector.Reflect(&control.Report{})))
			return
		}

		if lo.Must(cmd.Flags().GetBool("follow")) {
			handleErr(ui.Follow(where.ControlSocket()))
			return
		}

		client, err := control.Dial(where.ControlSocket())
		handleErr(err)
		defer util.Ignore(client.Close)

		report, err := client.Status()
		handleErr(err)

		if lo.Must(cmd.Flags().GetBool("json")) {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			handleErr(encoder.Encode(report))
			return
		}

		printReport(cmd, report)
	},
}

// stateStyle picks a color matching the meaning of a loop state.
func stateStyle(state string) func(string) string {
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

func printReport(cmd *cobra.Command, report control.Report) {
	header := style.Fg(color.Purple)
	uptime := time.Duration(report.UptimeSeconds * float64(time.Second)).Round(time.Second)

	cmd.Printf("%s %s daemon\n\n", header("▇▇▇"), header(constant.Bramble))
	cmd.Printf("  %s      %s\n", style.Faint("State"), stateStyle(report.State)(report.State))

	if report.CurrentPath != "" {
		cmd.Printf("  %s    %s\n", style.Faint("Playing"), report.CurrentPath)
	}

	position := style.Faint("empty playlist")
	if report.PlaylistLength > 0 {
		position = fmt.Sprintf("%d of %d", report.Cursor+1, report.PlaylistLength)
	}
	cmd.Printf("  %s   %s\n", style.Faint("Position"), position)
	cmd.Printf("  %s     %s\n", style.Faint("Uptime"), uptime)
}
