package registry

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/flowgraph"
)

func TestResolveModel(t *testing.T) {
	r := New()
	tests := []struct {
		model   string
		want    string
		matched bool
	}{
		{"gpt-4o", "/openai/chat", true},
		{"GPT-4o-mini", "/openai/chat", true},
		{"o3-mini", "/openai/chat", true},
		{"Claude-3-5-sonnet", "/anthropic/messages", true},
		{"gemini-1.5-pro", "/google/gemini", true},
		{"mixtral-8x7b", "/mistral/chat", true},
		{"llama3", "/ollama/chat", true},
		{"command-r", "/cohere/chat", true},
		{"my-own-model", DefaultModel, false},
		{"", DefaultModel, false},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			got, matched := r.ResolveModel(tt.model)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.matched, matched)
		})
	}
}

func TestAddRule(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Component{Path: "/acme/llm", NodeType: flowgraph.NodePrompt}))
	require.NoError(t, r.Register(Component{Path: "/acme/tool"}))

	assert.Error(t, r.AddRule(Rule{Prefix: " ", Path: "/acme/llm"}))
	assert.Error(t, r.AddRule(Rule{Prefix: "acme-", Path: "/acme/missing"}))
	assert.Error(t, r.AddRule(Rule{Prefix: "acme-", Path: "/acme/tool"}))

	_, matched := r.ResolveModel("acme-1")
	assert.False(t, matched)

	require.NoError(t, r.AddRule(Rule{Prefix: "Acme-", Path: "/acme/llm"}))
	path, matched := r.ResolveModel("ACME-1")
	assert.True(t, matched)
	assert.Equal(t, "/acme/llm", path)

	// Added rules win over the defaults.
	require.NoError(t, r.AddRule(Rule{Prefix: "gpt-", Path: "/acme/llm"}))
	path, _ = r.ResolveModel("gpt-4o")
	assert.Equal(t, "/acme/llm", path)

	path, err := r.ComponentForNode(flowgraph.NodePrompt, "acme-1")
	require.NoError(t, err)
	assert.Equal(t, "/acme/llm", path)

	path, err = New().ComponentForNode(flowgraph.NodePrompt, "acme-1")
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, path)
}

func TestComponentForNode(t *testing.T) {
	r := New()
	for _, nt := range flowgraph.NodeTypes {
		path, err := r.ComponentForNode(nt, "claude-3")
		require.NoError(t, err, nt)
		got, known := r.NodeTypeFor(path)
		require.True(t, known, path)
		assert.Equal(t, nt, got, path)
	}

	_, err := r.ComponentForNode("mystery", "")
	assert.True(t, errors.Is(err, flowgraph.ErrUnsupportedNodeType))
}

func TestNodeTypeFor(t *testing.T) {
	r := New()

	nt, known := r.NodeTypeFor(Eval)
	assert.True(t, known)
	assert.Empty(t, nt)

	nt, known = r.NodeTypeFor("/openai/chat")
	assert.True(t, known)
	assert.Equal(t, flowgraph.NodePrompt, nt)

	_, known = r.NodeTypeFor("/acme/tool")
	assert.False(t, known)
}

func TestRegister(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Component{Path: "/acme/summarize", NodeType: flowgraph.NodePrompt}))

	c, ok := r.Get("/acme/summarize")
	require.True(t, ok)
	assert.Equal(t, CategoryExternal, c.Category)
	assert.Equal(t, "/acme/summarize", c.Name)
	assert.False(t, IsBuiltin(c.Path))
	assert.True(t, IsBuiltin(Input))

	assert.Error(t, r.Register(Component{Path: "/acme/summarize"}))
	assert.Error(t, r.Register(Component{Path: Input}))
	assert.Error(t, r.Register(Component{Path: "no-slash"}))
	assert.Error(t, r.Register(Component{Path: "/acme/x", NodeType: "bogus"}))
}

func TestRegisterConcurrent(t *testing.T) {
	r := New()
	before := len(r.List())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = r.Register(Component{Path: fmt.Sprintf("/plugin/p%d", i)})
			_, _ = r.Get(Input)
		}(i)
	}
	wg.Wait()
	assert.Len(t, r.List(), before+50)
}

func TestIsolatedRegistries(t *testing.T) {
	a, b := New(), New()
	require.NoError(t, a.Register(Component{Path: "/acme/only-a"}))
	_, ok := b.Get("/acme/only-a")
	assert.False(t, ok)
}

func TestListSorted(t *testing.T) {
	list := New().List()
	require.NotEmpty(t, list)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].Path, list[i].Path)
	}
}

func TestSearch(t *testing.T) {
	r := New()

	got := r.Search("/core/input", 5)
	require.NotEmpty(t, got)
	assert.Equal(t, Input, got[0].Component.Path)
	assert.Equal(t, ScoreExact, got[0].Score)

	got = r.Search("input", 5)
	require.Len(t, got, 2)
	assert.Equal(t, Input, got[0].Component.Path)
	assert.Equal(t, ScorePath, got[0].Score)
	assert.Equal(t, Eval, got[1].Component.Path)
	assert.Equal(t, ScoreDescription, got[1].Score)

	got = r.Search("/core", 3)
	require.Len(t, got, 3)
	for _, m := range got {
		assert.Equal(t, ScorePrefix, m.Score)
	}
	assert.Equal(t, Aggregate, got[0].Component.Path)

	assert.Empty(t, r.Search("zzz", 5))
	assert.Len(t, r.Search("", 0), DefaultSearchLimit)
}

func TestValidatePath(t *testing.T) {
	r := New()
	assert.NoError(t, r.ValidatePath(Input))

	var pe *PathError
	err := r.ValidatePath("/core/inptu")
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, Input, pe.Suggestion)
	assert.Contains(t, err.Error(), "did you mean")

	err = r.ValidatePath("/nope/thing")
	require.True(t, errors.As(err, &pe))
	assert.Empty(t, pe.Suggestion)
	assert.Equal(t, []string{"/anthropic/messages", "/cohere/chat", Aggregate, BlobGet, BlobPut}, pe.Known)

	err = r.ValidatePath("core")
	require.True(t, errors.As(err, &pe))
	assert.Empty(t, pe.Known)
}
