package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/persist/internal/errors"
)

// codeCommandFailed is reported for CLI errors that carry no code of their own.
const codeCommandFailed = "P020"

func init() {
	errors.Register(codeCommandFailed, errors.ErrorTemplate{
		Category: errors.CategoryCLI,
		Message:  "Command failed",
		DocURL:   "https://vango.dev/docs/persist/errors/P020",
	})
}

func codesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "codes [CODE]",
		Short: "List diagnostic codes",
		Long: `List every diagnostic code persist logs or prints, one per line.
With a code, print its full description.

Examples:
  persist codes
  persist codes P004`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, code := range errors.GetAllCodes() {
					fmt.Fprintln(out, errors.New(code).FormatCompact())
				}
				return nil
			}

			code := strings.ToUpper(args[0])
			if _, ok := errors.GetTemplate(code); !ok {
				return errors.New(codeCommandFailed).
					WithDetail(fmt.Sprintf("Unknown code %s", args[0])).
					WithSuggestion("Run persist codes to list the known codes")
			}
			fmt.Fprint(out, errors.New(code).Format())
			return nil
		},
	}
}
