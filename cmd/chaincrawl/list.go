package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"chaincrawl/pkg/logger"
	"chaincrawl/pkg/ui"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured entries",
	Long: `List the entries in the entries file, sorted by name, with the number of
pages saved so far and the URL the next run resumes from.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	store, err := openStore(cfg, logger.GetLogger())
	if err != nil {
		return err
	}

	names := store.Names()
	if len(names) == 0 {
		ui.PrintWarning("No entries configured", store.Path())
		return nil
	}
	sort.Strings(names)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ENTRY", "SAVED", "SKIP", "RESUMES AT")
	if !noColor {
		t = t.StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	}

	for _, name := range names {
		entry, err := store.Get(name)
		if err != nil {
			return err
		}
		t.Row(name, strconv.Itoa(len(entry.SavedURLs)), strconv.Itoa(len(entry.Skip)), entry.ResumeURL())
	}

	fmt.Fprintln(os.Stdout, t.Render())
	ui.PrintInfo("Entries file", store.Path())
	return nil
}
