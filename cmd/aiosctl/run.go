package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aios-hq/aios-go/pkg/aios"
)

func runCmd(rt *cliRuntime) *cobra.Command {
	var session string
	var resume bool

	cmd := &cobra.Command{
		Use:         "run <agent> <task>",
		Short:       "Run an agent task",
		Args:        cobra.ExactArgs(2),
		Annotations: needs(needsHistory, needsSinks),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := aios.AgentRunParams{AgentName: args[0], Task: args[1]}

			switch {
			case session != "":
				params.SessionID = aios.Session(session)
			case resume:
				last, ok, err := rt.runner.ResumeSession(args[0])
				if err != nil {
					return err
				}
				if ok {
					params.SessionID = aios.Session(last)
				}
			}

			res := rt.runner.Run(cmd.Context(), params)
			if res.Err != nil {
				return fmt.Errorf("run agent %s: %w", args[0], res.Err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "session id to continue")
	cmd.Flags().BoolVar(&resume, "resume", false, "continue the latest recorded session of this agent")
	return cmd
}
