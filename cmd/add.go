// Package cmd implements the command-line interface for bramble.
package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/mi-skam/bramble/icon"
	"github.com/mi-skam/bramble/media"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(addCmd)
}

// addCmd copies files into the media directory. The running daemon picks
// them up through the directory watcher, so no restart is needed.
var addCmd = &cobra.Command{
	Use:     "add [files...]",
	Short:   "Copy media files into the media directory",
	Args:    cobra.MinimumNArgs(1),
	Example: "  bramble add vacation.mp4 logo.png",
	Run: func(cmd *cobra.Command, args []string) {
		dir := mediaDirectory()

		var added int
		for _, src := range args {
			if !media.IsSupported(src) {
				fmt.Printf("%s skipping %s: unsupported file type\n", icon.Get(icon.Fail), filepath.Base(src))
				continue
			}

			_, err := media.Add(dir, src)
			handleErr(err)

			fmt.Printf("%s added %s\n", icon.Get(icon.Success), filepath.Base(src))
			added++
		}

		if added == 0 {
			handleErr(errors.New("no playable files among the arguments"))
		}
	},
}
