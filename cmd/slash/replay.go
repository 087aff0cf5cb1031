package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"jordanella.com/slash-go/internal/coordinator"
	"jordanella.com/slash-go/internal/database"
	"jordanella.com/slash-go/internal/macro"
	"jordanella.com/slash-go/internal/monitor"
)

var (
	replayMonitored bool
	replayRegion    string
)

var replayCmd = &cobra.Command{
	Use:   "replay <name|file>",
	Short: "Replay a stored macro or a macro file",
	Long: `Replay dispatches a macro's taps with their recorded relative timing.
With --monitored the state monitor samples the macro's monitor region and the
replay pauses, runs the recovery tap and ends when stamina is low or empty.
Ctrl-C cancels the session.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		m, err := resolveMacro(a.db, args[0])
		if err != nil {
			return err
		}
		if replayRegion != "" {
			if m.MonitorRegion, err = parseRegion(replayRegion); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		coord, err := a.replayStack(ctx)
		if err != nil {
			return err
		}

		session, err := coord.StartReplay(ctx, m, coordinator.ReplayOptions{Monitored: replayMonitored})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Replaying %s (%s actions, %s) session %s\n",
			nameStyle.Render(m.Name),
			countStyle.Render(humanize.Comma(int64(len(m.Actions)))),
			m.Duration(),
			idStyle.Render(session.ID))

		<-session.Done()
		res, runErr := session.Result()

		outcome := res.Outcome.String()
		fmt.Fprintf(cmd.OutOrStdout(), "%s after %d/%d actions in %s",
			outcomeStyle(outcome).Render(outcome), res.Dispatched, len(m.Actions), res.Elapsed.Round(time.Millisecond))
		if res.State != monitor.Idle {
			fmt.Fprintf(cmd.OutOrStdout(), " (state %s)", res.State)
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return runErr
	},
}

// resolveMacro loads arg as a file when it has a macro extension, otherwise
// from the database
func resolveMacro(db *database.DB, arg string) (*macro.Macro, error) {
	if isMacroFile(arg) {
		return macro.LoadFile(arg)
	}
	return db.GetMacro(arg)
}

func init() {
	replayCmd.Flags().BoolVarP(&replayMonitored, "monitored", "m", false, "Run the state monitor and pause on low stamina")
	replayCmd.Flags().StringVar(&replayRegion, "region", "", "Override the macro's monitor region (x,y,width,height)")
	rootCmd.AddCommand(replayCmd)
}
