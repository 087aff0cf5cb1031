package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"jordanella.com/slash-go/internal/config"
	"jordanella.com/slash-go/internal/events"
	"jordanella.com/slash-go/internal/scheduler"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run scheduled replays from the [Schedule.*] sections until interrupted",
	Long: `Schedule registers every enabled [Schedule.<name>] section of the settings
file and replays its macro whenever its cron expression fires. Expressions
have a leading seconds field ("0 30 7 * * *") or use descriptors such as
"@every 2h". A tick that finds a replay already running is skipped.
Editing the settings file reloads the entries.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		coord, err := a.replayStack(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, t := range []events.EventType{events.EventTypeScheduleFired, events.EventTypeScheduleSkipped, events.EventTypeSessionEnded} {
			a.bus.Subscribe(t, func(e events.Event) { fmt.Fprintln(out, describeEvent(e)) })
		}

		sched := scheduler.New(coord, a.db, a.bus)
		if err := sched.Replace(a.cfg.Schedule); err != nil {
			fmt.Fprintln(os.Stderr, warningStyle.Render("some entries were not registered: ")+err.Error())
		}
		if len(sched.Entries()) == 0 {
			return fmt.Errorf("no enabled [Schedule.*] entries in %s", settingsPath)
		}

		if err := config.Watch(ctx, settingsPath, func(c *config.Config) {
			if err := sched.Replace(c.Schedule); err != nil {
				fmt.Fprintln(os.Stderr, warningStyle.Render("reload: ")+err.Error())
			}
			fmt.Fprintf(out, "Reloaded %d schedule entries\n", len(sched.Entries()))
		}); err != nil {
			a.logger.WarnWithContext("settings reload disabled", map[string]interface{}{"error": err.Error()})
		}

		sched.Start(ctx)
		printEntries(sched.Entries())
		<-ctx.Done()

		sched.Stop()
		coord.Cancel()
		coord.Wait()
		return nil
	},
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List schedule entries from the settings file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entries := make([]config.ScheduleEntry, len(settings.Schedule))
		copy(entries, settings.Schedule)
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No [Schedule.*] sections in", settingsPath)
			return nil
		}
		w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ENTRY\tSPEC\tMACRO\tMONITORED\tENABLED")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%t\n", nameStyle.Render(e.Name), e.Spec, e.Macro, e.Monitored, e.Enabled)
		}
		return w.Flush()
	},
}

func printEntries(entries []scheduler.EntryStatus) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Next.Before(entries[j].Next) })
	w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ENTRY\tMACRO\tNEXT")
	for _, e := range entries {
		next := "-"
		if !e.Next.IsZero() {
			next = humanize.Time(e.Next)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", nameStyle.Render(e.Name), e.Macro, dateStyle.Render(next))
	}
	_ = w.Flush()
}

// describeEvent renders a schedule or session event as one line
func describeEvent(e events.Event) string {
	ts := dateStyle.Render(e.Timestamp.Format("15:04:05"))
	switch e.Type {
	case events.EventTypeScheduleFired:
		return fmt.Sprintf("%s %s %v -> %v", ts, successStyle.Render("fired"), e.Data["entry"], e.Data["macro"])
	case events.EventTypeScheduleSkipped:
		return fmt.Sprintf("%s %s %v: %v", ts, warningStyle.Render("skipped"), e.Data["entry"], e.Data["reason"])
	case events.EventTypeSessionEnded:
		outcome := fmt.Sprint(e.Data["outcome"])
		return fmt.Sprintf("%s %s %s after %v actions", ts, idStyle.Render(shortID(fmt.Sprint(e.Data["session_id"]))),
			outcomeStyle(outcome).Render(outcome), e.Data["dispatched"])
	default:
		return fmt.Sprintf("%s %s", ts, e.Type)
	}
}

func init() {
	scheduleCmd.AddCommand(scheduleListCmd)
	rootCmd.AddCommand(scheduleCmd)
}
