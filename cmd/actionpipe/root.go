package main

import (
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "actionpipe",
		Short:         "Action pipeline engine",
		Long:          "actionpipe dispatches payloads through prioritized handler pipelines defined in a TOML file.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the pipeline definition (TOML)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(newRunCmd())
	root.AddCommand(newValidateCmd())

	return root
}
