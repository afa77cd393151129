package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var rootCmd = &cobra.Command{
	Use:   "dripd <command>",
	Short: "Payment streaming ledger daemon",
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// newLogger returns a text logger when stderr is a terminal and a JSON
// logger otherwise, so daemon logs stay machine-parseable in production.
func newLogger() *slog.Logger {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, nil))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
