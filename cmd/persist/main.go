// Command persist reads, writes and watches a persist storage directory:
// the file-backed local area and the key-value database.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/persist/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌─┐┌─┐┬─┐┌─┐┬┌─┐┌┬┐
  ├─┘├┤ ├┬┘└─┐│└─┐ │
  ┴  └─┘┴└─└─┘┴└─┘ ┴
`

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		asJSON, _ := rootCmd.PersistentFlags().GetBool("json")
		reportError(os.Stderr, err, asJSON)
		os.Exit(1)
	}
}

// reportError prints err for a terminal, or as one JSON object per line
// when asJSON is set. Errors without a code are reported as P020.
func reportError(w io.Writer, err error, asJSON bool) {
	if asJSON {
		fmt.Fprintln(w, errors.FromError(err, codeCommandFailed).FormatJSON())
		return
	}
	errors.FprintError(w, err)
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "persist",
		Short: "Inspect and edit persisted store values",
		Long: `persist works on the storage directory shared by applications that
persist their stores with the local storage or database backends.

  • get, set and del single values
  • list keys
  • watch changes made by other processes
  • serve an HTTP inspector with a live event stream`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			colorOutput = !flags.noColor
			errors.SetColor(colorOutput)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.config, "config", "c", "", "Path to persist.json (default: nearest persist.json, else built-in defaults)")
	rootCmd.PersistentFlags().StringVarP(&flags.dir, "dir", "d", "", "Storage directory (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&flags.backend, "backend", "b", backendLocal, "Backend to use: local or db")
	rootCmd.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&flags.jsonErrors, "json", false, "Print errors as JSON")

	rootCmd.AddCommand(
		getCmd(flags),
		setCmd(flags),
		delCmd(flags),
		keysCmd(flags),
		watchCmd(flags),
		inspectCmd(flags),
		configCmd(flags),
		codesCmd(),
		versionCmd(),
	)
	return rootCmd
}

// printBanner prints the ASCII art banner.
func printBanner(cmd *cobra.Command) {
	fmt.Fprint(cmd.OutOrStdout(), banner)
}

// colorOutput is cleared by --no-color.
var colorOutput = true

// success prints a success message.
func success(cmd *cobra.Command, format string, args ...any) {
	mark := "✓"
	if colorOutput {
		mark = "\033[32m✓\033[0m"
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", mark, fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", fmt.Sprintf(format, args...))
}
