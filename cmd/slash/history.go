package main

import (
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"jordanella.com/slash-go/internal/database"
)

var (
	historyMacro string
	historyLimit int
	historyDays  int
	pruneDays    int
	pruneBackup  string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent replay sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		sessions, err := a.db.ListSessions(historyMacro, historyLimit)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded yet")
			return nil
		}

		w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "SESSION\tMACRO\tSTARTED\tDURATION\tOUTCOME\tDISPATCHED")
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
				idStyle.Render(shortID(s.ID)),
				nameStyle.Render(s.MacroName),
				dateStyle.Render(humanize.Time(s.StartedAt)),
				sessionDuration(s),
				outcomeStyle(s.Outcome).Render(s.Outcome),
				s.Dispatched)
		}
		return w.Flush()
	},
}

var historyErrorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "Show recently handled errors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		logs, err := a.db.GetRecentErrors(historyLimit)
		if err != nil {
			return err
		}
		if len(logs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("No errors recorded"))
			return nil
		}
		for _, e := range logs {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s %s\n",
				dateStyle.Render(humanize.Time(e.OccurredAt)),
				warningStyle.Render(e.Category),
				idStyle.Render(e.Component),
				e.Message)
		}
		return nil
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize session outcomes and errors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		end := time.Now()
		start := end.AddDate(0, 0, -historyDays)

		outcomes, err := a.db.GetOutcomeStats(start, end)
		if err != nil {
			return err
		}
		errs, err := a.db.GetErrorStatsByCategory(start, end)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Last %d day(s)", historyDays)))
		for _, k := range sortedKeys(outcomes) {
			fmt.Fprintf(out, "  %-18s %s\n", outcomeStyle(k).Render(k), countStyle.Render(humanize.Comma(int64(outcomes[k]))))
		}
		if len(errs) > 0 {
			fmt.Fprintln(out, headerStyle.Render("Errors"))
			for _, k := range sortedKeys(errs) {
				fmt.Fprintf(out, "  %-18s %s\n", k, countStyle.Render(humanize.Comma(int64(errs[k]))))
			}
		}

		dbStats, err := a.db.GetStats()
		if err == nil {
			fmt.Fprintln(out, headerStyle.Render("Database"))
			for _, k := range sortedKeys(dbStats) {
				fmt.Fprintf(out, "  %-18s %s\n", k, humanize.Comma(dbStats[k]))
			}
		}
		return nil
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete sessions and errors older than --days",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		if pruneBackup != "" {
			if err := a.db.Backup(pruneBackup); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backed up %s to %s\n", a.db.Path(), pruneBackup)
		}

		cutoff := time.Now().AddDate(0, 0, -pruneDays)
		sessions, err := a.db.DeleteOldSessions(cutoff)
		if err != nil {
			return err
		}
		errs, err := a.db.DeleteOldErrors(cutoff)
		if err != nil {
			return err
		}
		if err := a.db.Vacuum(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s sessions and %s errors older than %s\n",
			humanize.Comma(sessions), humanize.Comma(errs), humanize.Time(cutoff))
		return nil
	},
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sessionDuration(s *database.Session) string {
	if s.DurationMs == nil {
		return "-"
	}
	return (time.Duration(*s.DurationMs) * time.Millisecond).Round(time.Millisecond).String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	historyCmd.PersistentFlags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum rows to show")
	historyCmd.Flags().StringVar(&historyMacro, "macro", "", "Only sessions of this macro")
	historyStatsCmd.Flags().IntVar(&historyDays, "days", 7, "Window in days")
	historyPruneCmd.Flags().IntVar(&pruneDays, "days", 30, "Keep this many days")
	historyPruneCmd.Flags().StringVar(&pruneBackup, "backup", "", "Copy the database here before pruning")
	historyCmd.AddCommand(historyErrorsCmd, historyStatsCmd, historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}
