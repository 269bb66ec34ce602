package main

import (
	"fmt"
	"insights-gateway/config"
	"insights-gateway/core/utils"

	"github.com/spf13/cobra"
)

func newKeysCommand(ctx *commandContext) *cobra.Command {
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage backend API keys stored in the database",
	}

	keysCmd.AddCommand(&cobra.Command{
		Use:   "add <backend> <key>",
		Short: "Store an API key (encrypted when INSIGHTS_SECRET_KEY is set)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			a, err := openStore(cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()

			row, err := a.keys.Add(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored key %s for %s at position %d\n", utils.MaskKey(args[1]), row.Backend, row.Position)
			return nil
		},
	})

	keysCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored API keys (masked)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			a, err := openStore(cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, backend := range []string{config.BackendGemini, config.BackendOpenAI, config.BackendClaude} {
				keys, err := a.keys.Keys(backend)
				if err != nil {
					return err
				}
				for i, k := range keys {
					fmt.Fprintf(cmd.OutOrStdout(), "%-8s #%d  %s\n", backend, i, utils.MaskKey(k))
				}
			}
			return nil
		},
	})

	return keysCmd
}
