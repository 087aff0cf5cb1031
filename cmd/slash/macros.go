package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"jordanella.com/slash-go/internal/macro"
)

var macrosCmd = &cobra.Command{
	Use:   "macros",
	Short: "Manage stored macros",
}

var macrosListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored macros",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		records, err := a.db.ListMacros()
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No macros saved yet. Record one with: slash record <name>")
			return nil
		}

		fmt.Fprintln(cmd.OutOrStdout(), headerStyle.Render(fmt.Sprintf("%d macro(s)", len(records))))
		w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "NAME\tACTIONS\tDURATION\tUPDATED")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				nameStyle.Render(r.Name),
				countStyle.Render(humanize.Comma(int64(r.ActionCount))),
				time.Duration(r.DurationMs)*time.Millisecond,
				dateStyle.Render(humanize.Time(r.UpdatedAt)))
		}
		return w.Flush()
	},
}

var macrosShowCmd = &cobra.Command{
	Use:   "show <name|file>",
	Short: "Show a macro's settings and actions",
	Args:  cobra.ExactArgs(1),
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

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, nameStyle.Render(m.Name))
		fmt.Fprintf(out, "  actions            %s over %s\n", countStyle.Render(humanize.Comma(int64(len(m.Actions)))), m.Duration())
		fmt.Fprintf(out, "  monitor region     %s\n", m.MonitorRegion)
		fmt.Fprintf(out, "  click interval     %dms\n", m.ClickIntervalMs)
		fmt.Fprintf(out, "  trigger threshold  %.2f\n", m.TriggerSensitivity)

		if len(m.Actions) == 0 {
			return nil
		}
		fmt.Fprintln(out, headerStyle.Render("  #     offset      x        y"))
		first := m.Actions[0].Timestamp
		for i, act := range m.Actions {
			fmt.Fprintf(out, "  %-5d %-11s %-8.1f %-8.1f\n", i, time.Duration(act.Timestamp-first)*time.Millisecond, act.X, act.Y)
		}
		return nil
	},
}

var macrosImportName string

var macrosImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a .json or .yaml macro file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := macro.LoadFile(args[0])
		if err != nil {
			return err
		}
		if macrosImportName != "" {
			m.Name = macrosImportName
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.db.SaveMacro(m); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d actions)\n", successStyle.Render("Imported"), nameStyle.Render(m.Name), len(m.Actions))
		return nil
	},
}

var macrosExportCmd = &cobra.Command{
	Use:   "export <name> <file>",
	Short: "Write a stored macro to a .json or .yaml file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		m, err := a.db.GetMacro(args[0])
		if err != nil {
			return err
		}
		if err := macro.SaveFile(args[1], m); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s to %s\n", successStyle.Render("Exported"), nameStyle.Render(m.Name), args[1])
		return nil
	},
}

var macrosDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a stored macro",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.db.DeleteMacro(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", warningStyle.Render("Deleted"), nameStyle.Render(args[0]))
		return nil
	},
}

func init() {
	macrosImportCmd.Flags().StringVar(&macrosImportName, "name", "", "Store under this name instead of the file's")
	macrosCmd.AddCommand(macrosListCmd, macrosShowCmd, macrosImportCmd, macrosExportCmd, macrosDeleteCmd)
	rootCmd.AddCommand(macrosCmd)
}
