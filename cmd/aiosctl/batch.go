package main

import (
	"github.com/spf13/cobra"

	"github.com/aios-hq/aios-go/internal/batch"
)

type batchEntry struct {
	ID       string `json:"id"`
	Agent    string `json:"agent"`
	RunID    string `json:"run_id,omitempty"`
	Response any    `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

func batchCmd(rt *cliRuntime) *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:         "batch <file>",
		Short:       "Run every job of a YAML or JSON batch file",
		Args:        cobra.ExactArgs(1),
		Annotations: needs(needsHistory, needsSinks),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := batch.Load(args[0])
			if err != nil {
				return err
			}
			if concurrency <= 0 {
				concurrency = rt.cfg.BatchConcurrency
			}

			results, err := batch.Execute(cmd.Context(), rt.runner, jobs, concurrency)
			if err != nil {
				return err
			}

			out := make([]batchEntry, 0, len(results))
			for _, r := range results {
				e := batchEntry{ID: r.Job.ID, Agent: r.Job.Agent, RunID: r.RunID, Response: r.Response}
				if r.Err != nil {
					e.Error = r.Err.Error()
				}
				out = append(out, e)
			}
			if err := printJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			return batch.Errors(results)
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "maximum runs in flight (default from BATCH_CONCURRENCY)")
	return cmd
}
