package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Package storage keeps a local, expiring history of agent runs.

// RunRecord summarizes one completed agent run.
type RunRecord struct {
	ID         string          `json:"id"`
	AgentName  string          `json:"agent_name"`
	Task       string          `json:"task"`
	SessionID  string          `json:"session_id,omitempty"`
	Response   json.RawMessage `json:"response,omitempty"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Store persists run records.
type Store interface {
	Close() error
	SaveRun(rec RunRecord) error
	// ListRuns returns up to limit records, newest first. limit <= 0 means all.
	ListRuns(limit int) ([]RunRecord, error)
	// LastSession returns the session id of the newest successful run of agent
	// that had one. Failed runs are skipped.
	LastSession(agent string) (string, bool, error)
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	TTL             time.Duration
	CleanupInterval time.Duration
}

const (
	defaultTTL             = 7 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error                             { return nil }
func (noopStore) SaveRun(RunRecord) error                  { return nil }
func (noopStore) ListRuns(int) ([]RunRecord, error)        { return nil, nil }
func (noopStore) LastSession(string) (string, bool, error) { return "", false, nil }
