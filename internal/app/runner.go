package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aios-hq/aios-go/internal/config"
	"github.com/aios-hq/aios-go/internal/logger"
	"github.com/aios-hq/aios-go/internal/storage"
	"github.com/aios-hq/aios-go/pkg/aios"
	"github.com/aios-hq/aios-go/pkg/sinks"
)

// AgentRunner is the slice of the AIOS client the runner depends on.
type AgentRunner interface {
	RunAgent(ctx context.Context, params aios.AgentRunParams) (any, error)
}

// Result is the outcome of one agent run as seen by the CLI.
type Result struct {
	RunID    string `json:"run_id"`
	Response any    `json:"response,omitempty"`
	Err      error  `json:"-"`
}

// Runner executes agent runs and records their outcome in the local history
// and the configured sinks. History and sink failures never fail a run.
type Runner struct {
	client AgentRunner
	store  storage.Store
	fanout *sinks.Fanout
	log    logger.Logger
	now    func() time.Time
}

// NewRunner wires a runner. store and fanout may be nil.
func NewRunner(client AgentRunner, store storage.Store, fanout *sinks.Fanout, log logger.Logger) *Runner {
	if store == nil {
		store, _ = storage.NewStore("none", "", storage.Options{})
	}
	return &Runner{
		client: client,
		store:  store,
		fanout: fanout,
		log:    logger.Ensure(log),
		now:    time.Now,
	}
}

// Run performs one agent run.
func (r *Runner) Run(ctx context.Context, params aios.AgentRunParams) Result {
	runID := newRunID()
	started := r.now()

	r.log.DebugObj("agent run started", "run_meta", map[string]any{
		"run_id":     runID,
		"agent_name": params.AgentName,
	})

	resp, err := r.client.RunAgent(ctx, params)

	rec := storage.RunRecord{
		ID:         runID,
		AgentName:  params.AgentName,
		Task:       params.Task,
		SessionID:  sessionValue(params.SessionID),
		StartedAt:  started.UTC(),
		FinishedAt: r.now().UTC(),
	}
	if err != nil {
		rec.Error = err.Error()
		r.log.ErrorObj("agent run failed", "run_error", map[string]any{
			"run_id":     runID,
			"agent_name": params.AgentName,
			"error":      err.Error(),
		})
		r.record(rec)
		return Result{RunID: runID, Err: err}
	}

	raw, mErr := json.Marshal(resp)
	if mErr != nil {
		r.log.WarnObj("agent response not re-encodable", "run_warning", map[string]any{
			"run_id": runID,
			"error":  mErr.Error(),
		})
	}
	rec.Response = raw
	r.record(rec)
	r.publish(ctx, rec)

	r.log.InfoObj("agent run completed", "run_meta", map[string]any{
		"run_id":     runID,
		"agent_name": params.AgentName,
		"elapsed_ms": rec.FinishedAt.Sub(rec.StartedAt).Milliseconds(),
	})
	return Result{RunID: runID, Response: resp}
}

// ResumeSession returns the latest recorded session id for agent.
func (r *Runner) ResumeSession(agent string) (string, bool, error) {
	session, ok, err := r.store.LastSession(agent)
	if err != nil {
		return "", false, fmt.Errorf("lookup last session: %w", err)
	}
	return session, ok, nil
}

// History returns up to limit recorded runs, newest first.
func (r *Runner) History(limit int) ([]storage.RunRecord, error) {
	return r.store.ListRuns(limit)
}

// Close releases the history store and sinks.
func (r *Runner) Close() error {
	var errs []error
	if err := r.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	if err := r.fanout.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (r *Runner) record(rec storage.RunRecord) {
	if err := r.store.SaveRun(rec); err != nil {
		r.log.WarnObj("run history write failed", "history_error", map[string]any{
			"run_id": rec.ID,
			"error":  err.Error(),
		})
	}
}

func (r *Runner) publish(ctx context.Context, rec storage.RunRecord) {
	if r.fanout.Size() == 0 {
		return
	}
	evt := sinks.NewEvent(rec.ID, rec.AgentName, rec.Task, rec.SessionID, rec.Response)
	delivered, err := r.fanout.Publish(ctx, evt)
	if err != nil {
		r.log.WarnObj("sink delivery failed", "sink_error", map[string]any{
			"run_id":    rec.ID,
			"delivered": delivered,
			"error":     err.Error(),
		})
	}
}

func sessionValue(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}

// newRunID returns a time-ordered id so history keys sort by creation.
func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// BuildOptions selects which local resources Build opens.
type BuildOptions struct {
	// History opens the configured run history store.
	History bool
	// Sinks loads and builds the configured result sinks.
	Sinks bool
}

// Build wires a Runner from configuration. Resources not requested in opts
// are replaced by inert ones. A history store that cannot be opened is
// logged and replaced by a no-op store.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger, opts BuildOptions) (*Runner, *aios.Client, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)

	client := aios.New(cfg.BaseURL, cfg.Token, aios.WithTimeout(cfg.Timeout))

	var store storage.Store
	if opts.History {
		store = openHistory(cfg, log)
	}

	fanout := sinks.NewFanout(nil)
	if opts.Sinks {
		var err error
		if fanout, err = buildFanout(ctx, cfg.SinksFile, log); err != nil {
			if store != nil {
				store.Close()
			}
			return nil, nil, err
		}
	}

	return NewRunner(client, store, fanout, log), client, nil
}

func openHistory(cfg *config.Config, log logger.Logger) storage.Store {
	store, err := storage.NewStore(cfg.HistoryType, cfg.HistoryPath, storage.Options{
		TTL:             cfg.HistoryTTL,
		CleanupInterval: cfg.HistoryCleanupInterval,
	})
	if err != nil {
		log.WarnObj("history unavailable; runs will not be recorded", "history_error", map[string]any{
			"type":  cfg.HistoryType,
			"path":  cfg.HistoryPath,
			"error": err.Error(),
		})
		return nil
	}
	log.DebugObj("history initialized", "history_config", map[string]any{
		"type":        cfg.HistoryType,
		"path":        cfg.HistoryPath,
		"ttl_seconds": int(cfg.HistoryTTL.Seconds()),
	})
	return store
}

func buildFanout(ctx context.Context, path string, log logger.Logger) (*sinks.Fanout, error) {
	if path == "" {
		return sinks.NewFanout(nil), nil
	}

	reg, err := sinks.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load sinks registry: %w", err)
	}
	enabled := reg.Enabled()
	built, err := sinks.BuildAll(ctx, sinks.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build sinks: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, s := range enabled {
		summaries = append(summaries, map[string]string{"id": s.ID, "type": s.Type})
	}
	log.InfoObj("sinks registry loaded", "sinks_meta", map[string]any{
		"count": len(summaries),
		"sinks": summaries,
	})
	return sinks.NewFanout(built), nil
}
