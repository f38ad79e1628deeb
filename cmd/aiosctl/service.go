package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func agentsCmd(rt *cliRuntime) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List agents known to the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := rt.client.ListAgents(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func workflowsCmd(rt *cliRuntime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflows",
		Short: "List and execute workflows",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := rt.client.ListWorkflows(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	})
	cmd.AddCommand(workflowExecuteCmd(rt))
	return cmd
}

func workflowExecuteCmd(rt *cliRuntime) *cobra.Command {
	var rawInput string
	cmd := &cobra.Command{
		Use:   "execute <id>",
		Short: "Execute a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var input map[string]any
			if rawInput != "" {
				if err := json.Unmarshal([]byte(rawInput), &input); err != nil {
					return fmt.Errorf("parse --input: %w", err)
				}
			}
			out, err := rt.client.ExecuteWorkflow(cmd.Context(), args[0], input)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&rawInput, "input", "", "workflow input as a JSON object")
	return cmd
}

func healthCmd(rt *cliRuntime) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show service health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := rt.client.Health(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func historyCmd(rt *cliRuntime) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:         "history",
		Short:       "Show recently recorded runs",
		Args:        cobra.NoArgs,
		Annotations: needs(needsHistory),
		RunE: func(cmd *cobra.Command, _ []string) error {
			runs, err := rt.runner.History(limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), runs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show, 0 for all")
	return cmd
}
