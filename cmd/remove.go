// Package cmd implements the command-line interface for bramble.
package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/AlecAivazis/survey/v2"
	"github.com/mi-skam/bramble/filesystem"
	"github.com/mi-skam/bramble/icon"
	"github.com/mi-skam/bramble/media"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(removeCmd)

	removeCmd.Flags().BoolP("force", "f", false, "Delete without asking for confirmation")
}

// removeCmd deletes a file from the media directory. Like add, it works on
// the directory and leaves the playlist update to the watcher pipeline.
var removeCmd = &cobra.Command{
	Use:     "remove [file]",
	Short:   "Delete a file from the media directory",
	Aliases: []string{"rm"},
	Args:    cobra.ExactArgs(1),
	Example: "  bramble remove vacation.mp4",
	Run: func(cmd *cobra.Command, args []string) {
		dir := mediaDirectory()
		name := filepath.Base(args[0])

		if exists, _ := filesystem.API().Exists(filepath.Join(dir, name)); !exists {
			handleErr(fmt.Errorf("no such entry: %s", name))
		}

		if !lo.Must(cmd.Flags().GetBool("force")) {
			confirm := survey.Confirm{
				Message: fmt.Sprintf("Delete %s from the media directory?", name),
				Default: false,
			}
			var response bool
			err := survey.AskOne(&confirm, &response)
			handleErr(err)

			if !response {
				return
			}
		}

		handleErr(media.Remove(dir, name))
		fmt.Printf("%s removed %s\n", icon.Get(icon.Success), name)
	},
}
