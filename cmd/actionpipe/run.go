package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/actionpipe/actionpipe/config"
	"github.com/actionpipe/actionpipe/engine"
)

func newRunCmd() *cobra.Command {
	var (
		action      string
		payloadJSON string
		count       int
		showStats   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Dispatch an action through the configured pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			eng, closers, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer func() {
				eng.Close()
				for _, c := range closers {
					c.Close()
				}
			}()

			// Decode so scripted handlers receive structured values.
			var payload any
			if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
				return fmt.Errorf("invalid --payload: %w", err)
			}

			for i := 0; i < count; i++ {
				res, err := eng.DispatchWithResult(cmd.Context(), action, payload)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "dispatch %d: success=%t executed=%d skipped=%d failed=%d duration=%s\n",
					i+1, res.Success, res.HandlersExecuted, res.HandlersSkipped, res.HandlersFailed, res.Duration)
				if res.Aborted {
					fmt.Fprintf(cmd.OutOrStdout(), "  aborted: %s\n", res.AbortReason)
				}
				for _, e := range res.Errors {
					fmt.Fprintf(cmd.OutOrStdout(), "  error [%s]: %v\n", e.HandlerID, e.Err)
				}
				if res.Result != nil {
					out, _ := json.Marshal(res.Result)
					fmt.Fprintf(cmd.OutOrStdout(), "  result: %s\n", out)
				}
			}

			if showStats {
				printStats(cmd, eng)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&action, "action", "a", "", "action to dispatch")
	cmd.Flags().StringVarP(&payloadJSON, "payload", "p", "{}", "JSON payload")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of dispatches")
	cmd.Flags().BoolVar(&showStats, "stats", false, "print per-action statistics afterwards")
	_ = cmd.MarkFlagRequired("action")

	return cmd
}

func printStats(cmd *cobra.Command, eng *engine.Engine) {
	for _, s := range eng.AllActionStats() {
		fmt.Fprintf(cmd.OutOrStdout(),
			"stats %s: dispatches=%d successes=%d aborts=%d errors=%d avg=%s\n",
			s.Action, s.Dispatches, s.Successes, s.Aborts, s.HandlerErrors, s.AverageDuration)
	}
}
