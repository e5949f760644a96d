package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vango-dev/persist/internal/errors"
)

func getCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print the value stored under a key",
		Long: `Print the value stored under KEY as JSON.

Values that are not valid JSON are printed as a JSON string.

Examples:
  persist get theme
  persist get --backend db session`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, flags, args[0])
		},
	}
}

func runGet(cmd *cobra.Command, flags *globalFlags, key string) error {
	e, err := openEnv(flags)
	if err != nil {
		return err
	}
	defer e.Close()

	value, ok, err := e.read(cmd.Context(), key)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Newf(errors.CategoryCLI, "Key %q not found in %s storage", key, e.backend)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return errors.New("P002").Wrap(err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func setCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY JSON",
		Short: "Store a JSON value under a key",
		Long: `Store the JSON document given as the second argument under KEY.

Examples:
  persist set theme '"dark"'
  persist set --backend db prefs '{"fontSize":14}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSet(cmd, flags, args[0], args[1])
		},
	}
}

func runSet(cmd *cobra.Command, flags *globalFlags, key, raw string) error {
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return errors.New("P002").
			WithDetail(fmt.Sprintf("%q is not valid JSON", raw)).
			WithSuggestion(`Quote strings, for example: persist set theme '"dark"'`).
			Wrap(err)
	}

	e, err := openEnv(flags)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.write(cmd.Context(), key, value); err != nil {
		return err
	}
	success(cmd, "Stored %s in %s storage", key, e.backend)
	return nil
}

func delCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "del KEY",
		Aliases: []string{"rm"},
		Short:   "Remove a key",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDel(cmd, flags, args[0])
		},
	}
}

func runDel(cmd *cobra.Command, flags *globalFlags, key string) error {
	e, err := openEnv(flags)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.remove(cmd.Context(), key); err != nil {
		return err
	}
	success(cmd, "Removed %s from %s storage", key, e.backend)
	return nil
}

func keysCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List stored keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(flags)
			if err != nil {
				return err
			}
			defer e.Close()

			keys, err := e.keys(cmd.Context())
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}
