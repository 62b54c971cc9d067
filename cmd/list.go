// Package cmd implements the command-line interface for bramble.
package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/mi-skam/bramble/color"
	"github.com/mi-skam/bramble/key"
	"github.com/mi-skam/bramble/media"
	"github.com/mi-skam/bramble/style"
	"github.com/mi-skam/bramble/util"
	"github.com/mi-skam/bramble/where"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringP("filter", "f", "", "Fuzzy filter entries by file name")
	listCmd.Flags().BoolP("json", "j", false, "Format the output as a JSON string")

	listCmd.SetOut(os.Stdout)
}

// listedEntry is the JSON projection of one playlist entry.
type listedEntry struct {
	Name            string  `json:"name"`
	Path            string  `json:"path"`
	Kind            string  `json:"kind"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
}

// listCmd enumerates the playable entries of the media directory, in the
// order the display loop rotates through them.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the playable entries of the media directory",
	Run: func(cmd *cobra.Command, args []string) {
		dir := mediaDirectory()

		entries, err := media.Scan(dir)
		handleErr(err)

		if filter := lo.Must(cmd.Flags().GetString("filter")); filter != "" {
			entries = lo.Filter(entries, func(e media.Entry, _ int) bool {
				return fuzzy.MatchFold(filter, filepath.Base(e.Path))
			})
		}

		if lo.Must(cmd.Flags().GetBool("json")) {
			listed := lo.Map(entries, func(e media.Entry, _ int) listedEntry {
				out := listedEntry{
					Name: filepath.Base(e.Path),
					Path: e.Path,
					Kind: e.Kind.String(),
				}
				if e.Kind == media.Image {
					out.DurationSeconds = e.Duration.Seconds()
				}
				return out
			})

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			handleErr(encoder.Encode(listed))
			return
		}

		if len(entries) == 0 {
			cmd.Printf("%s in %s\n", style.Faint("no playable entries"), dir)
			return
		}

		cmd.Printf("%s in %s\n\n", util.Quantify(len(entries), "entry", "entries"), style.Faint(dir))
		for _, e := range entries {
			hold := ""
			if e.Kind == media.Image {
				hold = style.Faint(e.Duration.String())
			}
			cmd.Printf("  %s  %s %s\n", kindTag(e.Kind), filepath.Base(e.Path), hold)
		}
	},
}

func kindTag(kind media.Kind) string {
	switch kind {
	case media.Image:
		return style.Fg(color.Blue)("image")
	case media.Video:
		return style.Fg(color.Purple)("video")
	default:
		return style.Faint(kind.String())
	}
}

// mediaDirectory resolves the directory the loop plays from, falling back to
// the well-known default when nothing is configured.
func mediaDirectory() string {
	if dir := viper.GetString(key.PlaybackMediaDirectory); dir != "" {
		return dir
	}
	return where.Media()
}
