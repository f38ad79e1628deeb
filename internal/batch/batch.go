// Package batch runs a file of agent tasks concurrently against one client.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"gopkg.in/yaml.v3"

	"github.com/aios-hq/aios-go/internal/app"
	"github.com/aios-hq/aios-go/pkg/aios"
)

// Job is one agent run declared in a batch file.
type Job struct {
	ID        string `json:"id" yaml:"id"`
	Agent     string `json:"agent" yaml:"agent"`
	Task      string `json:"task" yaml:"task"`
	SessionID string `json:"session_id" yaml:"session_id"`
}

// Params converts the job to client params.
func (j Job) Params() aios.AgentRunParams {
	p := aios.AgentRunParams{AgentName: j.Agent, Task: j.Task}
	if j.SessionID != "" {
		p.SessionID = aios.Session(j.SessionID)
	}
	return p
}

type file struct {
	Jobs []Job `json:"jobs" yaml:"jobs"`
}

// Load reads jobs from a YAML or JSON file.
func Load(path string) ([]Job, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}

	var f file
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(raw, &f)
	default:
		err = yaml.Unmarshal(raw, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("decode batch file: %w", err)
	}
	if len(f.Jobs) == 0 {
		return nil, errors.New("batch file contains no jobs")
	}

	seen := make(map[string]struct{}, len(f.Jobs))
	for i := range f.Jobs {
		j := &f.Jobs[i]
		j.ID = strings.TrimSpace(j.ID)
		j.Agent = strings.TrimSpace(j.Agent)
		j.SessionID = strings.TrimSpace(j.SessionID)
		if j.ID == "" {
			j.ID = fmt.Sprintf("job-%d", i+1)
		}
		if j.Agent == "" {
			return nil, fmt.Errorf("jobs[%d]: agent is required", i)
		}
		if strings.TrimSpace(j.Task) == "" {
			return nil, fmt.Errorf("jobs[%d]: task is required", i)
		}
		if _, dup := seen[j.ID]; dup {
			return nil, fmt.Errorf("duplicate job id %q", j.ID)
		}
		seen[j.ID] = struct{}{}
	}
	return f.Jobs, nil
}

// Result pairs a job with its run outcome.
type Result struct {
	Job Job
	app.Result
}

// Runner is the subset of app.Runner used by Execute.
type Runner interface {
	Run(ctx context.Context, params aios.AgentRunParams) app.Result
}

// Execute runs jobs with at most concurrency in flight. Results keep the
// order of jobs; a failed job does not stop the others.
func Execute(ctx context.Context, runner Runner, jobs []Job, concurrency int) ([]Result, error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return nil, fmt.Errorf("create batch worker pool: %w", err)
	}
	defer pool.Release()

	results := make([]Result, len(jobs))
	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		idx, j := i, job
		err := pool.Submit(func() {
			defer wg.Done()
			results[idx] = Result{Job: j, Result: runner.Run(ctx, j.Params())}
		})
		if err != nil {
			wg.Done()
			results[idx] = Result{Job: j, Result: app.Result{Err: fmt.Errorf("submit job %s: %w", j.ID, err)}}
		}
	}
	wg.Wait()

	return results, nil
}

// Errors joins the errors of failed results, labelled by job id.
func Errors(results []Result) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("job %s: %w", r.Job.ID, r.Err))
		}
	}
	return errors.Join(errs...)
}
