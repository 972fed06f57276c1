package workflow_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comfyctl/internal/testsupport"
	"comfyctl/internal/workflow"
)

func TestLoadSampleWorkflow(t *testing.T) {
	path := testsupport.WriteWorkflow(t, t.TempDir(), testsupport.SampleWorkflow)

	graph, err := workflow.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, graph.Len())
	assert.Equal(t, []string{"3", "4", "5", "6", "7", "8", "9", "10"}, graph.IDs())
	assert.Equal(t, "KSampler", graph.ClassOf("3"))
	assert.Equal(t, "", graph.ClassOf("99"))
}

func TestLoadFailures(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name string
		data *string
	}{
		{name: "missing file"},
		{name: "malformed", data: ptr("{not json")},
		{name: "empty object", data: ptr("{}")},
		{name: "empty file", data: ptr("")},
		{name: "no class type", data: ptr(`{"1": {"inputs": {}}}`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, tc.name+".json")
			if tc.data != nil {
				require.NoError(t, os.WriteFile(path, []byte(*tc.data), 0o644))
			}
			_, err := workflow.Load(path)
			require.Error(t, err)
			assert.ErrorIs(t, err, workflow.ErrTemplateLoad)

			var loadErr *workflow.TemplateLoadError
			require.True(t, errors.As(err, &loadErr))
			assert.Equal(t, path, loadErr.Path)
		})
	}
}

func TestLoadMissingFileKeepsCause(t *testing.T) {
	_, err := workflow.Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFindNodeByTitleIsCaseInsensitive(t *testing.T) {
	graph, err := workflow.Parse([]byte(testsupport.SampleWorkflow))
	require.NoError(t, err)

	for _, title := range []string{"KSampler", "ksampler", "KSAMPLER"} {
		node, ok := graph.FindNodeByTitle(title)
		require.True(t, ok, title)
		assert.Equal(t, "KSampler", node.ClassType)
	}

	_, ok := graph.FindNodeByTitle("K Sampler")
	assert.False(t, ok)
	_, ok = graph.FindNodeByTitle("")
	assert.False(t, ok)
}

func TestFindNodeByTitleFirstInNumericOrderWins(t *testing.T) {
	data := `{
	  "10": {"inputs": {"text": "ten"}, "class_type": "CLIPTextEncode", "_meta": {"title": "Prompt"}},
	  "2": {"inputs": {"text": "two"}, "class_type": "CLIPTextEncode", "_meta": {"title": "PROMPT"}},
	  "x": {"inputs": {"text": "x"}, "class_type": "CLIPTextEncode", "_meta": {"title": "prompt"}}
	}`
	for range 5 {
		graph, err := workflow.Parse([]byte(data))
		require.NoError(t, err)
		node, ok := graph.FindNodeByTitle("prompt")
		require.True(t, ok)
		value, _ := node.Input("text")
		assert.Equal(t, "two", value)
		assert.Equal(t, "2", node.ID)
		assert.Equal(t, []string{"2", "10", "x"}, graph.IDs())
	}
}

func TestBindResolvesThroughTitleLookup(t *testing.T) {
	data := `{
	  "10": {"inputs": {"text": ""}, "class_type": "CLIPTextEncode", "_meta": {"title": "pos prompt"}},
	  "2": {"inputs": {"text": ""}, "class_type": "CLIPTextEncode", "_meta": {"title": "POS PROMPT"}},
	  "3": {"inputs": {}, "class_type": "KSampler", "_meta": {"title": "KSampler"}},
	  "4": {"inputs": {}, "class_type": "CheckpointLoaderSimple", "_meta": {"title": "Load Checkpoint"}},
	  "5": {"inputs": {}, "class_type": "EmptyLatentImage", "_meta": {"title": "Empty Latent Image"}},
	  "9": {"inputs": {}, "class_type": "SaveImage", "_meta": {"title": "Save Image"}}
	}`
	graph, err := workflow.Parse([]byte(data))
	require.NoError(t, err)
	binding, err := workflow.Bind(graph, workflow.Titles{
		Checkpoint: "Load Checkpoint", PositivePrompt: "Pos Prompt", Latent: "Empty Latent Image",
		Sampler: "KSampler", Save: "Save Image",
	})
	require.NoError(t, err)

	built, err := binding.Build(workflow.JobParams{
		Prompt: "fox", Checkpoint: "m.ckpt", Width: 64, Height: 64, BatchSize: 1, Steps: 1, Seed: 1,
	})
	require.NoError(t, err)
	two, _ := built.Node("2")
	ten, _ := built.Node("10")
	value, _ := two.Input("text")
	assert.Equal(t, "fox", value, "the lookup's first match receives the prompt")
	value, _ = ten.Input("text")
	assert.Equal(t, "", value)
}

func TestParseKeepsLargeIntegers(t *testing.T) {
	graph, err := workflow.Parse([]byte(testsupport.SampleWorkflow))
	require.NoError(t, err)

	out, err := json.Marshal(graph)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"seed":18446744073709551000`)
	assert.Contains(t, string(out), `"_meta":{"title":"KSampler"}`)
}

func TestCloneDoesNotAlias(t *testing.T) {
	graph, err := workflow.Parse([]byte(testsupport.SampleWorkflow))
	require.NoError(t, err)

	clone := graph.Clone()
	node, ok := clone.FindNodeByTitle("Pos Prompt")
	require.True(t, ok)
	node.Set("text", "changed")
	clip, _ := node.Input("clip")
	clip.([]any)[0] = "99"

	original, _ := graph.FindNodeByTitle("Pos Prompt")
	text, _ := original.Input("text")
	assert.Equal(t, "a photo of a cat", text)
	origClip, _ := original.Input("clip")
	assert.Equal(t, "4", origClip.([]any)[0])
}

func ptr(s string) *string { return &s }
