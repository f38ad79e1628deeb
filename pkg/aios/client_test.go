package aios

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aios-hq/aios-go/pkg/httpclient"
)

type capturedRequest struct {
	method string
	path   string
	header http.Header
	body   map[string]any
	raw    []byte
}

func captureServer(t *testing.T, status int, reply string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	got := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		got.method = r.Method
		got.path = r.URL.Path
		got.header = r.Header.Clone()
		got.raw = raw
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &got.body); err != nil {
				t.Errorf("decode body: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestRunAgentRequestShape(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK, `{"result":"done"}`)

	c := New(srv.URL, "secret")
	out, err := c.RunAgent(context.Background(), AgentRunParams{AgentName: "researcher", Task: "summarize"})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"result": "done"}, out)
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/api/agents/run", got.path)
	assert.Equal(t, "application/json", got.header.Get("Content-Type"))
	assert.Equal(t, "Bearer secret", got.header.Get("Authorization"))
	assert.Equal(t, "researcher", got.body["agentName"])
	assert.Equal(t, "summarize", got.body["task"])
	assert.NotContains(t, got.body, "sessionId")
}

func TestRunAgentWithSession(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK, `{}`)

	_, err := New(srv.URL, "").RunAgent(context.Background(), AgentRunParams{
		AgentName: "coder",
		Task:      "fix",
		SessionID: Session("s-42"),
	})
	require.NoError(t, err)
	assert.Equal(t, "s-42", got.body["sessionId"])
}

func TestRunAgentWithoutTokenOmitsAuthorization(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK, `{}`)

	_, err := New(srv.URL, "").RunAgent(context.Background(), AgentRunParams{AgentName: "a", Task: "b"})
	require.NoError(t, err)
	assert.Empty(t, got.header.Values("Authorization"))
	assert.Equal(t, "application/json", got.header.Get("Content-Type"))
}

func TestRunAgentSendsEmptyStrings(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK, `{}`)

	_, err := New(srv.URL, "").RunAgent(context.Background(), AgentRunParams{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"agentName":"","task":""}`, string(got.raw))
}

func TestRunAgentNon2xxJSONIsNotAnError(t *testing.T) {
	srv, _ := captureServer(t, http.StatusBadRequest, `{"error":"bad request"}`)

	out, err := New(srv.URL, "").RunAgent(context.Background(), AgentRunParams{AgentName: "a", Task: "b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"error": "bad request"}, out)
}

func TestRunAgentInvalidJSONIsHTTPError(t *testing.T) {
	srv, _ := captureServer(t, http.StatusOK, `<html>nope</html>`)

	out, err := New(srv.URL, "").RunAgent(context.Background(), AgentRunParams{AgentName: "a", Task: "b"})
	require.Error(t, err)
	assert.Nil(t, out)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, srv.URL+"/api/agents/run", httpErr.URL)
}

func TestRunAgentConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	out, err := New(target, "").RunAgent(context.Background(), AgentRunParams{AgentName: "a", Task: "b"})
	require.Error(t, err)
	assert.Nil(t, out)

	var httpErr *HTTPError
	assert.True(t, errors.As(err, &httpErr))
}

func TestRunAgentMalformedBaseURL(t *testing.T) {
	c := New("://not-a-url", "")
	_, err := c.RunAgent(context.Background(), AgentRunParams{AgentName: "a", Task: "b"})
	require.Error(t, err)
}

type recordingTransport struct {
	mu   sync.Mutex
	urls []string
}

type staticResponse struct{ body []byte }

func (s staticResponse) Body() []byte    { return s.body }
func (s staticResponse) StatusCode() int { return http.StatusOK }

func (r *recordingTransport) Get(_ context.Context, url string, _ map[string]string) (httpclient.Response, error) {
	r.record(url)
	return staticResponse{body: []byte(`[]`)}, nil
}

func (r *recordingTransport) Post(_ context.Context, url string, _ map[string]string, _ []byte) (httpclient.Response, error) {
	r.record(url)
	return staticResponse{body: []byte(`{}`)}, nil
}

func (r *recordingTransport) record(url string) {
	r.mu.Lock()
	r.urls = append(r.urls, url)
	r.mu.Unlock()
}

func TestRunAgentTargetURL(t *testing.T) {
	tr := &recordingTransport{}
	c := New("https://example.test", "", WithTransport(tr))

	_, err := c.RunAgent(context.Background(), AgentRunParams{AgentName: "a", Task: "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.test/api/agents/run"}, tr.urls)
}

func TestRunAgentConcurrentCallsDoNotCrossTalk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": body["task"]})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	const n = 16
	results := make([]any, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.RunAgent(context.Background(), AgentRunParams{
				AgentName: "echo",
				Task:      fmt.Sprintf("task-%d", i),
			})
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, map[string]any{"echo": fmt.Sprintf("task-%d", i)}, results[i])
	}
}

func TestRunAgentHonoursContextCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(srv.URL, "").RunAgent(ctx, AgentRunParams{AgentName: "a", Task: "b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSupplementaryEndpoints(t *testing.T) {
	tests := []struct {
		name   string
		call   func(*Client) (any, error)
		method string
		path   string
		body   string
	}{
		{
			name:   "list agents",
			call:   func(c *Client) (any, error) { return c.ListAgents(context.Background()) },
			method: http.MethodGet,
			path:   "/api/agents",
		},
		{
			name:   "list workflows",
			call:   func(c *Client) (any, error) { return c.ListWorkflows(context.Background()) },
			method: http.MethodGet,
			path:   "/api/workflows",
		},
		{
			name:   "health",
			call:   func(c *Client) (any, error) { return c.Health(context.Background()) },
			method: http.MethodGet,
			path:   "/health",
		},
		{
			name: "execute workflow with input",
			call: func(c *Client) (any, error) {
				return c.ExecuteWorkflow(context.Background(), "wf-1", map[string]any{"k": "v"})
			},
			method: http.MethodPost,
			path:   "/api/workflows/wf-1/execute",
			body:   `{"input":{"k":"v"}}`,
		},
		{
			name: "execute workflow without input",
			call: func(c *Client) (any, error) {
				return c.ExecuteWorkflow(context.Background(), "wf-2", nil)
			},
			method: http.MethodPost,
			path:   "/api/workflows/wf-2/execute",
			body:   `{}`,
		},
		{
			name: "execute workflow with empty input",
			call: func(c *Client) (any, error) {
				return c.ExecuteWorkflow(context.Background(), "wf-3", map[string]any{})
			},
			method: http.MethodPost,
			path:   "/api/workflows/wf-3/execute",
			body:   `{}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, got := captureServer(t, http.StatusOK, `{"ok":true}`)

			out, err := tt.call(New(srv.URL, "tok"))
			require.NoError(t, err)
			assert.Equal(t, map[string]any{"ok": true}, out)
			assert.Equal(t, tt.method, got.method)
			assert.Equal(t, tt.path, got.path)
			assert.Equal(t, "Bearer tok", got.header.Get("Authorization"))
			if tt.body != "" {
				assert.JSONEq(t, tt.body, string(got.raw))
			}
		})
	}
}
