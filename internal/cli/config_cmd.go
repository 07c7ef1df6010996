// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/tlchat/internal/config"
)

// =============================================================================
// CONFIG COMMAND
// =============================================================================

func newConfigCmd(flags *GlobalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change configuration",
		Long: `Show or change configuration.

Keys use dot notation matching the TOML file, for example api.url or
gateway.allowed_origins. Environment variables and flags override the
file at runtime; "config set" writes the file only.`,
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.LoadConfig()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), cfg.String())
			return nil
		},
	}

	get := &cobra.Command{
		Use:     "get <key>",
		Short:   "Print one effective value",
		Example: `  tlchat config get api.url`,
		Args:    exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.LoadConfig()
			if err != nil {
				return err
			}
			v, err := cfg.Get(args[0])
			if err != nil {
				return unknownKey(args[0], err)
			}
			if list, ok := v.([]string); ok {
				v = strings.Join(list, ",")
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write one value to the config file",
		Example: `  tlchat config set api.url http://localhost:3001/api
  tlchat config set gateway.allowed_origins https://chat.example.com,http://localhost:3000`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := flags.configPath()
			if err != nil {
				return err
			}

			// Start from the file alone so env overrides are not persisted.
			cfg := config.Default()
			if _, statErr := os.Stat(path); statErr == nil {
				if err := config.LoadTOML(cfg, path); err != nil {
					return &ConfigError{Err: err}
				}
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return unknownKey(args[0], err)
			}
			cfg.SetDefaults()
			if err := cfg.Validate(); err != nil {
				return &ConfigError{Err: err}
			}
			if err := config.SaveTOML(cfg, path); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", render(SuccessStyle, "Set"), args[0])
			return nil
		},
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := flags.configPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	keys := &cobra.Command{
		Use:   "keys",
		Short: "List every configuration key",
		Args:  exactArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			for _, k := range config.Keys() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
		},
	}

	cmd.AddCommand(show, get, set, pathCmd, keys)
	return cmd
}

func unknownKey(key string, err error) error {
	return &UsageError{
		Reason:  fmt.Sprintf("%s: %v", key, err),
		Example: "tlchat config keys",
	}
}
