package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"jordanella.com/slash-go/internal/coordinator"
	"jordanella.com/slash-go/internal/macro"
	"jordanella.com/slash-go/internal/replay"
)

var (
	recordPassthrough bool
	recordRegion      string
	recordIntervalMs  int64
	recordOut         string
)

var recordCmd = &cobra.Command{
	Use:   "record <name>",
	Short: "Record a macro from \"x y\" lines on stdin",
	Long: `Record reads one tap per line ("x y" or "x,y") from stdin until EOF or
Ctrl-C, timestamps each tap as it arrives and saves the result as a macro.
With --passthrough every tap is also sent to the configured backend.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m := macro.New(args[0])
		m.ClickIntervalMs = recordIntervalMs
		if recordRegion != "" {
			region, err := parseRegion(recordRegion)
			if err != nil {
				return err
			}
			m.MonitorRegion = region
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		var sink replay.Dispatcher
		if recordPassthrough {
			dev, err := a.connect(ctx)
			if err != nil {
				return err
			}
			sink = dev
		}
		coord := a.coordinator(sink, nil, nil)

		actions, err := recordTaps(ctx, coord, sink, cmd.InOrStdin())
		if err != nil {
			return err
		}
		m.Actions = actions
		if len(m.Actions) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), warningStyle.Render("No taps recorded, nothing saved"))
			return nil
		}

		if err := a.db.SaveMacro(m); err != nil {
			return err
		}
		if recordOut != "" {
			if err := macro.SaveFile(recordOut, m); err != nil {
				return err
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s taps over %s\n",
			successStyle.Render("Saved"),
			nameStyle.Render(m.Name),
			countStyle.Render(humanize.Comma(int64(len(m.Actions)))),
			m.Duration())
		return nil
	},
}

// recordTaps feeds stdin lines to the coordinator until EOF or ctx is done
// and returns the recorded actions
func recordTaps(ctx context.Context, coord *coordinator.Coordinator, sink replay.Dispatcher, in io.Reader) ([]macro.Action, error) {
	if err := coord.StartRecording(); err != nil {
		return nil, err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return coord.StopRecording(), nil
		case line, ok := <-lines:
			if !ok {
				return coord.StopRecording(), nil
			}
			x, y, ok, err := parseTapLine(line)
			if err != nil {
				fmt.Fprintln(os.Stderr, warningStyle.Render("skipped: ")+err.Error())
				continue
			}
			if !ok {
				continue
			}
			coord.Record(x, y)
			if sink != nil {
				if err := sink.Tap(ctx, x, y); err != nil {
					fmt.Fprintln(os.Stderr, warningStyle.Render("passthrough failed: ")+err.Error())
				}
			}
		}
	}
}

func init() {
	recordCmd.Flags().BoolVar(&recordPassthrough, "passthrough", false, "Also send each tap to the device")
	recordCmd.Flags().StringVar(&recordRegion, "region", "", "Monitor region as x,y,width,height")
	recordCmd.Flags().Int64Var(&recordIntervalMs, "click-interval", macro.DefaultClickIntervalMs, "Minimum spacing between taps in ms")
	recordCmd.Flags().StringVarP(&recordOut, "out", "o", "", "Also write the macro to a .json or .yaml file")
	rootCmd.AddCommand(recordCmd)
}
