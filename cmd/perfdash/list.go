package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"perfdash/internal/results"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	commitStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	branchStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the result files the dashboard serves",
	Run: func(cmd *cobra.Command, args []string) {
		layout := results.NewLayout(cfg.ResultsDir, cfg.Extension)
		printNames(cmd.OutOrStdout(), layout.Dir, layout.Names())
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func printNames(w io.Writer, dir string, names []results.Name) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Result files in %s", dir)))
	if len(names) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  (none)"))
		return
	}

	fmt.Fprintf(w, "  %-19s  %-8s  %-20s  %s\n", "DATE", "COMMIT", "BRANCH", "FILE")
	for _, n := range names {
		fmt.Fprintf(w, "  %-19s  %s  %s  %s\n",
			n.Date(),
			commitStyle.Render(fmt.Sprintf("%-8s", n.ShortCommit())),
			branchStyle.Render(fmt.Sprintf("%-20s", n.Branch)),
			dimStyle.Render(n.File),
		)
	}
}
