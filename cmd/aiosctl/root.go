package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aios-hq/aios-go/internal/app"
	"github.com/aios-hq/aios-go/internal/config"
	"github.com/aios-hq/aios-go/internal/logger"
	"github.com/aios-hq/aios-go/pkg/aios"
)

// cliRuntime is the per-invocation state shared by subcommands.
type cliRuntime struct {
	cfg    *config.Config
	log    *logger.ZapLogger
	runner *app.Runner
	client *aios.Client
}

// Command annotations naming the local resources a command needs.
const (
	needsHistory = "aiosctl/history"
	needsSinks   = "aiosctl/sinks"
)

func needs(keys ...string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[k] = "true"
	}
	return out
}

func rootCmd(rt *cliRuntime) *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "aiosctl",
		Short:         "Command line client for the AIOS core service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.setup(cmd, envFile)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&envFile, "config-env", config.DefaultEnvFile, "path to a .env file")
	flags.String("url", "", "AIOS core service base URL (env AIOS_BASE_URL)")
	flags.String("token", "", "bearer token (env AIOS_TOKEN)")
	flags.Int64("timeout", 0, "transport timeout in seconds, 0 for none (env AIOS_TIMEOUT_SECONDS)")
	flags.String("log-level", "", "log level: debug, info, warn, error (env LOG_LEVEL)")
	flags.String("history", "", "run history backend: bbolt or none (env HISTORY_TYPE)")
	flags.String("sinks", "", "sinks file for forwarding run results (env SINKS_FILE)")

	cmd.AddCommand(runCmd(rt))
	cmd.AddCommand(batchCmd(rt))
	cmd.AddCommand(agentsCmd(rt))
	cmd.AddCommand(workflowsCmd(rt))
	cmd.AddCommand(healthCmd(rt))
	cmd.AddCommand(historyCmd(rt))
	return cmd
}

func (rt *cliRuntime) setup(cmd *cobra.Command, envFile string) error {
	cfg, err := config.Load(envFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	rt.cfg = cfg
	rt.log = logger.New(cfg.LogLevel)
	rt.log.DebugObj("aiosctl starting", "config", cfg.Redacted())

	opts := app.BuildOptions{
		History: cmd.Annotations[needsHistory] == "true",
		Sinks:   cmd.Annotations[needsSinks] == "true",
	}
	runner, client, err := app.Build(cmd.Context(), cfg, rt.log, opts)
	if err != nil {
		rt.log.ErrorObj("failed to initialize runtime", "error", err.Error())
		return err
	}
	rt.runner = runner
	rt.client = client
	return nil
}

func (rt *cliRuntime) close() {
	if rt.runner != nil {
		if err := rt.runner.Close(); err != nil {
			rt.log.WarnObj("runtime close failed", "error", err.Error())
		}
	}
	if rt.log != nil {
		_ = rt.log.Close()
	}
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
