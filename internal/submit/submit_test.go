package submit_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comfyctl/internal/comfy"
	"comfyctl/internal/config"
	"comfyctl/internal/queue"
	"comfyctl/internal/submit"
	"comfyctl/internal/testsupport"
	"comfyctl/internal/workflow"
)

type fakeQueuer struct {
	mu      sync.Mutex
	graphs  []map[string]any
	clients []string
	failAt  map[int]bool
}

func (f *fakeQueuer) Submit(_ context.Context, graph any, clientID string) (*comfy.PromptResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.clients)
	f.clients = append(f.clients, clientID)
	if f.failAt[n] {
		return nil, &comfy.SubmissionError{Status: 400, Reason: "invalid prompt"}
	}
	data, err := json.Marshal(graph)
	if err != nil {
		return nil, err
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, err
	}
	f.graphs = append(f.graphs, decoded)
	return &comfy.PromptResponse{PromptID: fmt.Sprintf("prompt-%d", n), Number: int64(n)}, nil
}

func newBinding(t *testing.T) *workflow.Binding {
	t.Helper()
	graph, err := workflow.Parse([]byte(testsupport.SampleWorkflow))
	require.NoError(t, err)
	binding, err := workflow.Bind(graph, workflow.TitlesFromConfig(config.DefaultTitles()))
	require.NoError(t, err)
	return binding
}

func baseParams() workflow.JobParams {
	return workflow.JobParams{
		Checkpoint: "SD1-5/sd_v1-5_vae.ckpt",
		Width:      512,
		Height:     640,
		BatchSize:  4,
		Steps:      30,
	}
}

func inputOf(graph map[string]any, nodeID, input string) any {
	node := graph[nodeID].(map[string]any)
	return node["inputs"].(map[string]any)[input]
}

func TestRunSubmitsAndRecords(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	queuer := &fakeQueuer{}
	submitter := submit.New(queuer, newBinding(t), submit.Options{Ledger: store})

	long := strings.Repeat("x", 150)
	report, err := submitter.Run(context.Background(), submit.Batch{
		Prompts:  []string{"a cat", "a dog", long},
		Base:     baseParams(),
		ClientID: "client-1",
	})
	require.NoError(t, err)
	require.Len(t, report.Submitted, 3)
	assert.Empty(t, report.Failed)

	for i, sub := range report.Submitted {
		job, err := store.GetByPromptID(context.Background(), sub.PromptID)
		require.NoError(t, err)
		assert.Equal(t, "client-1", job.ClientID)
		assert.Equal(t, sub.Seed, job.Seed)
		assert.Equal(t, queue.StatusQueued, job.Status)
		assert.Equal(t, fmt.Sprintf("prompt-%d", i), sub.PromptID)
	}

	assert.Equal(t, "a dog", inputOf(queuer.graphs[1], "6", "text"))
	assert.Equal(t, float64(30), inputOf(queuer.graphs[1], "3", "steps"))
	assert.Equal(t, strings.Repeat("x", 100), inputOf(queuer.graphs[2], "9", "filename_prefix"))
	assert.Equal(t, strings.Repeat("x", 100), report.Submitted[2].FilenamePrefix)
	assert.Equal(t, []string{"client-1", "client-1", "client-1"}, queuer.clients)
}

func TestRunSeedsStayInRange(t *testing.T) {
	queuer := &fakeQueuer{}
	submitter := submit.New(queuer, newBinding(t), submit.Options{})
	prompts := make([]string, 200)
	for i := range prompts {
		prompts[i] = fmt.Sprintf("prompt %d", i)
	}
	report, err := submitter.Run(context.Background(), submit.Batch{Prompts: prompts, Base: baseParams()})
	require.NoError(t, err)
	for _, sub := range report.Submitted {
		assert.GreaterOrEqual(t, sub.Seed, uint64(1))
		assert.LessOrEqual(t, sub.Seed, workflow.MaxSeed)
	}
}

func TestRunCollisionsAreAllowed(t *testing.T) {
	queuer := &fakeQueuer{}
	submitter := submit.New(queuer, newBinding(t), submit.Options{Seeds: func() uint64 { return 7 }})
	report, err := submitter.Run(context.Background(), submit.Batch{Prompts: []string{"a", "b"}, Base: baseParams()})
	require.NoError(t, err)
	require.Len(t, report.Submitted, 2)
	assert.Equal(t, report.Submitted[0].Seed, report.Submitted[1].Seed)
}

func TestRunContinuesPastFailures(t *testing.T) {
	queuer := &fakeQueuer{failAt: map[int]bool{1: true}}
	submitter := submit.New(queuer, newBinding(t), submit.Options{})
	report, err := submitter.Run(context.Background(), submit.Batch{
		Prompts: []string{"a", "b", "c"},
		Base:    baseParams(),
	})
	require.NoError(t, err)
	assert.Len(t, report.Submitted, 2)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, 1, report.Failed[0].Index)

	var subErr *comfy.SubmissionError
	assert.True(t, errors.As(report.Failed[0].Err, &subErr))
}

func TestRunStopsOnError(t *testing.T) {
	queuer := &fakeQueuer{failAt: map[int]bool{1: true}}
	submitter := submit.New(queuer, newBinding(t), submit.Options{})
	report, err := submitter.Run(context.Background(), submit.Batch{
		Prompts:     []string{"a", "b", "c"},
		Base:        baseParams(),
		StopOnError: true,
	})
	require.Error(t, err)
	var subErr *comfy.SubmissionError
	assert.True(t, errors.As(err, &subErr))
	assert.Len(t, report.Submitted, 1)
	assert.Len(t, queuer.clients, 2, "no submissions after the failure")
}

func TestRunRejectsInvalidParams(t *testing.T) {
	queuer := &fakeQueuer{}
	submitter := submit.New(queuer, newBinding(t), submit.Options{})
	report, err := submitter.Run(context.Background(), submit.Batch{Prompts: []string{"   "}, Base: baseParams()})
	require.NoError(t, err)
	require.Len(t, report.Failed, 1)
	assert.ErrorIs(t, report.Failed[0].Err, workflow.ErrInvalidParams)
	assert.Empty(t, queuer.clients)

	_, err = submitter.Run(context.Background(), submit.Batch{Base: baseParams()})
	assert.ErrorIs(t, err, submit.ErrEmptyBatch)
}
