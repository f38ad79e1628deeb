package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rt := &cliRuntime{}
	defer rt.close()

	cmd := rootCmd(rt)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(append([]string{"--config-env", filepath.Join(t.TempDir(), "none.env"), "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunCommandPrintsResponse(t *testing.T) {
	var body map[string]string
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"result":"42"}`))
	}))
	defer srv.Close()

	out, err := execute(t, "--url", srv.URL, "--token", "tok", "--history", "none", "run", "researcher", "answer", "--session", "s1")
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", auth)
	assert.Equal(t, map[string]string{"agentName": "researcher", "task": "answer", "sessionId": "s1"}, body)

	var printed map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &printed))
	assert.Equal(t, map[string]any{"result": "42"}, printed["response"])
	assert.NotEmpty(t, printed["run_id"])
}

func TestRunCommandResumesLastSession(t *testing.T) {
	var sessions []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		sessions = append(sessions, body["sessionId"])
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	t.Setenv("HISTORY_PATH", filepath.Join(t.TempDir(), "history.db"))

	_, err := execute(t, "--url", srv.URL, "run", "coder", "first", "--session", "s-7")
	require.NoError(t, err)
	_, err = execute(t, "--url", srv.URL, "run", "coder", "second", "--resume")
	require.NoError(t, err)

	assert.Equal(t, []string{"s-7", "s-7"}, sessions)
}

func TestRunCommandFailsOnUnreachableService(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	_, err := execute(t, "--url", target, "--history", "none", "run", "a", "b")
	assert.Error(t, err)
}

func TestHealthCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"degraded"}`))
	}))
	defer srv.Close()

	out, err := execute(t, "--url", srv.URL, "--history", "none", "health")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"degraded"}`, out)
}

func TestCommandsSucceedWhileHistoryIsLocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "history.db")
	t.Setenv("HISTORY_PATH", path)
	held, err := bolt.Open(path, 0o600, nil)
	require.NoError(t, err)
	defer held.Close()

	out, err := execute(t, "--url", srv.URL, "health")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, out)

	out, err = execute(t, "--url", srv.URL, "run", "coder", "task")
	require.NoError(t, err)
	assert.Contains(t, out, `"run_id"`)
}

func TestBatchCommand(t *testing.T) {
	var mu sync.Mutex
	var tasks []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		tasks = append(tasks, body["task"])
		mu.Unlock()
		if body["agentName"] == "broken" {
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Errorf("response writer cannot be hijacked")
				return
			}
			conn, _, _ := hj.Hijack()
			_ = conn.Close()
			return
		}
		_, _ = w.Write([]byte(`{"task":"` + body["task"] + `"}`))
	}))
	defer srv.Close()

	file := filepath.Join(t.TempDir(), "jobs.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`jobs:
  - id: first
    agent: researcher
    task: one
  - agent: broken
    task: two
  - id: third
    agent: coder
    task: three
`), 0o600))

	out, err := execute(t, "--url", srv.URL, "--history", "none", "batch", file, "--concurrency", "2")
	require.Error(t, err)

	var printed []batchEntry
	require.NoError(t, json.Unmarshal([]byte(out), &printed))
	require.Len(t, printed, 3)
	assert.Equal(t, "first", printed[0].ID)
	assert.Equal(t, map[string]any{"task": "one"}, printed[0].Response)
	assert.Empty(t, printed[0].Error)
	assert.Equal(t, "job-2", printed[1].ID)
	assert.NotEmpty(t, printed[1].Error)
	assert.Nil(t, printed[1].Response)
	assert.Equal(t, "third", printed[2].ID)
	assert.Equal(t, map[string]any{"task": "three"}, printed[2].Response)

	assert.ElementsMatch(t, []string{"one", "two", "three"}, tasks)
}

func TestWorkflowsExecuteCommand(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/workflows/wf-1/execute", r.URL.Path)
		raw := new(bytes.Buffer)
		_, _ = raw.ReadFrom(r.Body)
		bodies = append(bodies, raw.String())
		_, _ = w.Write([]byte(`{"status":"started"}`))
	}))
	defer srv.Close()

	out, err := execute(t, "--url", srv.URL, "workflows", "execute", "wf-1", "--input", `{"topic":"go"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"started"}`, out)

	_, err = execute(t, "--url", srv.URL, "workflows", "execute", "wf-1")
	require.NoError(t, err)

	_, err = execute(t, "--url", srv.URL, "workflows", "execute", "wf-1", "--input", `{"topic":`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse --input")

	require.Len(t, bodies, 2)
	assert.JSONEq(t, `{"input":{"topic":"go"}}`, bodies[0])
	assert.JSONEq(t, `{}`, bodies[1])
}

func TestHistoryCommandLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	t.Setenv("HISTORY_PATH", filepath.Join(t.TempDir(), "history.db"))

	_, err := execute(t, "--url", srv.URL, "run", "coder", "first")
	require.NoError(t, err)
	_, err = execute(t, "--url", srv.URL, "run", "coder", "second")
	require.NoError(t, err)

	out, err := execute(t, "history", "--limit", "1")
	require.NoError(t, err)

	var runs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "second", runs[0]["task"])

	out, err = execute(t, "history", "--limit", "0")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	assert.Len(t, runs, 2)
}
