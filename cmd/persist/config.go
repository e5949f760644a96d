package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/persist/internal/config"
	"github.com/vango-dev/persist/internal/errors"
)

func configCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or show persist.json",
	}
	cmd.AddCommand(configInitCmd(flags), configShowCmd(flags))
	return cmd
}

func configInitCmd(flags *globalFlags) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a persist.json with the default settings",
		Long: `Write persist.json to the current directory, or to the --config path.
The --dir flag, when given, is stored as the data directory.

Examples:
  persist config init
  persist config init --dir ./data`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd, flags, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing persist.json")

	return cmd
}

func runConfigInit(cmd *cobra.Command, flags *globalFlags, force bool) error {
	path := flags.config
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		path = filepath.Join(wd, config.ConfigFileName)
	}

	if _, err := os.Stat(path); err == nil && !force {
		return errors.New("P010").
			WithDetail(path + " already exists").
			WithSuggestion("Pass --force to overwrite it")
	}

	cfg := config.New()
	if flags.dir != "" {
		cfg.Dir = flags.dir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.SaveTo(path); err != nil {
		return err
	}

	success(cmd, "Created %s", path)
	return nil
}

func configShowCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Long:  `Print the configuration after persist.json, PERSIST_* variables and flags are applied.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Resolve(flags.config)
			if err != nil {
				return err
			}
			if flags.dir != "" {
				cfg.Dir = flags.dir
			}

			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			if path := cfg.Path(); path != "" {
				info(cmd, "Loaded from %s", path)
			}
			return nil
		},
	}
}
