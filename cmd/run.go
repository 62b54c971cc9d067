// Package cmd implements the command-line interface for bramble.
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mi-skam/bramble/control"
	"github.com/mi-skam/bramble/icon"
	"github.com/mi-skam/bramble/key"
	"github.com/mi-skam/bramble/log"
	"github.com/mi-skam/bramble/player"
	"github.com/mi-skam/bramble/scheduler"
	"github.com/mi-skam/bramble/watcher"
	"github.com/mi-skam/bramble/where"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("dir", "d", "", "Media directory to rotate through (overrides "+key.PlaybackMediaDirectory+")")
	lo.Must0(viper.BindPFlag(key.PlaybackMediaDirectory, runCmd.Flags().Lookup("dir")))
}

// runCmd starts the long-running display loop daemon.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the display loop daemon",
	Long: `Launch the player, build the playlist from the media directory, and rotate
through it until interrupted. The daemon exposes a control socket that the
status, next, prev, refresh, pause, and resume commands talk to.`,
	Example: "  bramble run --dir ~/signage",
	Run: func(cmd *cobra.Command, args []string) {
		CheckDependencies()
		handleErr(runDaemon())
	},
}

// runDaemon wires the pipeline together and blocks until a shutdown signal
// arrives or the player fails for good.
func runDaemon() error {
	mediaDir := mediaDirectory()

	controller := player.NewController()
	supervisor := player.NewSupervisor(controller, player.OptionsFromConfig())

	fatal := make(chan error, 1)
	sched := scheduler.New(controller, mediaDir, supervisor.Rebinds(), fatal)

	go supervisor.Run()
	defer supervisor.Stop()

	go sched.Run()
	defer sched.Stop()

	if viper.GetBool(key.WatchEnabled) {
		w := watcher.New(mediaDir)
		if err := w.Start(); err != nil {
			return fmt.Errorf("watch %s: %w", mediaDir, err)
		}
		defer w.Stop()

		go func() {
			for range w.Events() {
				sched.Refresh()
			}
		}()
	}

	server := control.NewServer(where.ControlSocket(), sched)
	if err := server.Start(); err != nil {
		return err
	}
	defer server.Stop()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)

	fmt.Printf("%s display loop running over %s\n", icon.Get(icon.Success), mediaDir)
	log.Infof("daemon up, media directory %s", mediaDir)

	select {
	case sig := <-signals:
		fmt.Printf("%s received %s, shutting down\n", icon.Get(icon.Progress), sig)
		log.Infof("received %s, shutting down", sig)
		return nil

	case err := <-supervisor.Failed():
		// Hand the verdict to the loop so status keeps reporting it, then
		// bring the daemon down.
		fatal <- err
		<-sched.Done()
		return err
	}
}
