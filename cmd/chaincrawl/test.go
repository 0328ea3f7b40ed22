package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"chaincrawl/pkg/crawler"
	"chaincrawl/pkg/logger"
	"chaincrawl/pkg/ui"

	"github.com/spf13/cobra"
)

var noSkip bool

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:   "test <entry>",
	Short: "Dry-run an entry's selectors against one page",
	Long: `Fetch a single page of an entry and print what each selector finds on it.

The page is the one the next run would resume from, or the start URL with
--no-skip. Nothing is downloaded and the entries file is not modified, which
makes this the quickest way to check selectors for a new entry.`,
	Example: `  # Check the selectors of a freshly added entry
  chaincrawl test ExampleEntry --no-skip`,
	Args: cobra.ExactArgs(1),
	RunE: runTest,
}

func init() {
	rootCmd.AddCommand(testCmd)
	testCmd.Flags().BoolVar(&noSkip, "no-skip", false, "test the start URL instead of the resume URL")
	testCmd.Flags().BoolVar(&render, "render", false, "render the page in headless Chrome")
}

func runTest(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	log := logger.GetLogger()

	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}

	entry, err := store.Get(args[0])
	if err != nil {
		ui.PrintError("Unknown entry", err.Error())
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rc, release := newRunContext(cfg, store, log)
	defer release()

	result, err := crawler.Probe(ctx, rc, entry, noSkip)
	if err != nil {
		ui.PrintError("Failed to fetch page", err.Error())
		return err
	}

	ui.PrintInfo("Entry", result.Entry)
	ui.PrintInfo("Page", result.URL)
	fmt.Println()

	failed := false
	for _, field := range result.Fields {
		fmt.Printf("%s %s\n", ui.Cyan(field.Name+":"), ui.Dim(field.Expr))
		switch {
		case field.Expr == "":
			fmt.Printf("  %s\n", ui.Dim("<not configured>"))
		case field.Err != nil:
			failed = true
			fmt.Printf("  %s\n", ui.Red(field.Err.Error()))
		case !field.Found():
			fmt.Printf("  %s\n", ui.Yellow("<Not Found>"))
		default:
			for _, v := range field.Values {
				fmt.Printf("  %s\n", v)
			}
		}
	}

	if failed {
		return fmt.Errorf("entry %q has invalid selectors", entry.Name)
	}
	return nil
}
