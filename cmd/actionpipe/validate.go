package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/actionpipe/actionpipe/config"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate a pipeline definition without running it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			// Assemble the engine to surface script compile errors too.
			eng, closers, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			eng.Close()
			for _, c := range closers {
				c.Close()
			}

			info := eng.RegistryInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d actions, %d handlers\n",
				info.TotalActions, info.TotalHandlers)
			return nil
		},
	}
}
