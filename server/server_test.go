package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/flowgraph"
	"github.com/meikuraledutech/flowgraph/memory"
	"github.com/meikuraledutech/flowgraph/registry"
	"github.com/meikuraledutech/flowgraph/storetest"
)

func testApp(t *testing.T) *fiber.App {
	t.Helper()
	return newApp(memory.New(), registry.New())
}

func do(t *testing.T, app *fiber.App, method, target string, body []byte) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func sampleJSON(t *testing.T) []byte {
	t.Helper()
	b, err := json.Marshal(storetest.Sample("api"))
	require.NoError(t, err)
	return b
}

func TestWorkflowCRUD(t *testing.T) {
	app := testApp(t)

	status, body := do(t, app, http.MethodPost, "/workflows", sampleJSON(t))
	require.Equal(t, http.StatusCreated, status, string(body))
	var created flowgraph.Workflow
	require.NoError(t, json.Unmarshal(body, &created))
	require.NotEmpty(t, created.ID)

	status, body = do(t, app, http.MethodGet, "/workflows/"+created.ID, nil)
	require.Equal(t, http.StatusOK, status)
	var got flowgraph.Workflow
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "api", got.Name)
	assert.Len(t, got.Nodes, 3)

	status, body = do(t, app, http.MethodGet, "/workflows", nil)
	require.Equal(t, http.StatusOK, status)
	var list []flowgraph.Summary
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, 3, list[0].NodeCount)

	got.Name = "renamed"
	update, err := json.Marshal(got)
	require.NoError(t, err)
	status, _ = do(t, app, http.MethodPut, "/workflows/"+created.ID, update)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = do(t, app, http.MethodDelete, "/workflows/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = do(t, app, http.MethodGet, "/workflows/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = do(t, app, http.MethodDelete, "/workflows/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCreateRejectsCycle(t *testing.T) {
	app := testApp(t)
	w := storetest.Sample("loop")
	w.Edges = append(w.Edges, flowgraph.Edge{Source: "out1", Target: "in1"})
	b, err := json.Marshal(w)
	require.NoError(t, err)

	status, body := do(t, app, http.MethodPost, "/workflows", b)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, string(body), "cycle")

	status, _ = do(t, app, http.MethodPost, "/workflows", []byte("{"))
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestExport(t *testing.T) {
	app := testApp(t)
	_, body := do(t, app, http.MethodPost, "/workflows", sampleJSON(t))
	var created flowgraph.Workflow
	require.NoError(t, json.Unmarshal(body, &created))

	status, body := do(t, app, http.MethodGet, "/workflows/"+created.ID+"/export?format=text", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, strings.HasPrefix(string(body), "$schema:"), string(body))
	assert.Contains(t, string(body), "\n\noutput:\n")

	status, body = do(t, app, http.MethodGet, "/workflows/"+created.ID+"/export", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, json.Valid(body))

	status, _ = do(t, app, http.MethodGet, "/workflows/"+created.ID+"/export?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = do(t, app, http.MethodGet, "/workflows/missing/export", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCompileAndImport(t *testing.T) {
	app := testApp(t)

	status, body := do(t, app, http.MethodPost, "/compile", sampleJSON(t))
	require.Equal(t, http.StatusOK, status, string(body))
	var compiled struct {
		Document json.RawMessage `json:"document"`
		Warnings []string        `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(body, &compiled))
	require.NotEmpty(t, compiled.Document)
	assert.Empty(t, compiled.Warnings)

	status, body = do(t, app, http.MethodPost, "/import?save=true", compiled.Document)
	require.Equal(t, http.StatusCreated, status, string(body))
	var imported struct {
		Workflow   flowgraph.Workflow `json:"workflow"`
		Validation struct {
			Valid bool `json:"valid"`
		} `json:"validation"`
	}
	require.NoError(t, json.Unmarshal(body, &imported))
	assert.True(t, imported.Validation.Valid)
	assert.Len(t, imported.Workflow.Nodes, 3)
	assert.Len(t, imported.Workflow.Edges, 2)

	_, body = do(t, app, http.MethodGet, "/workflows", nil)
	var list []flowgraph.Summary
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, 1)
}

func TestCompileEmptyWorkflow(t *testing.T) {
	app := testApp(t)
	status, _ := do(t, app, http.MethodPost, "/compile", []byte(`{"name":"empty","nodes":[],"edges":[]}`))
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestImportInvalidDocument(t *testing.T) {
	app := testApp(t)
	doc := `{"name":"bad","steps":[{"id":"a","component":"/core/output","input":{"value":{"step":"ghost"}}}],"output":{"step":"a"}}`
	status, body := do(t, app, http.MethodPost, "/import", []byte(doc))
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, string(body), "ghost")
}

func TestValidate(t *testing.T) {
	app := testApp(t)
	text := "name: demo\nsteps:\n  - id: a\n    component: /core/input\n    input:\n      name: a\n\noutput:\n  step: a\n"
	status, body := do(t, app, http.MethodPost, "/validate?format=text", []byte(text))
	require.Equal(t, http.StatusOK, status, string(body))
	var out struct {
		Validation struct {
			Valid bool `json:"valid"`
		} `json:"validation"`
		Compatibility *struct {
			Features []string `json:"features"`
		} `json:"compatibility"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.True(t, out.Validation.Valid)
	require.NotNil(t, out.Compatibility)

	status, body = do(t, app, http.MethodPost, "/validate", []byte("{not json"))
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"valid":false`)
}

func TestEvaluate(t *testing.T) {
	app := testApp(t)
	req := `{"expression":{"greeting":{"step":"p1","path":"$.text"},"who":{"input":"$.name"}},
	         "context":{"input":{"name":"Ada"},"stepOutputs":{"p1":{"text":"hello"}}}}`
	status, body := do(t, app, http.MethodPost, "/evaluate", []byte(req))
	require.Equal(t, http.StatusOK, status, string(body))
	var out struct {
		Value map[string]any `json:"value"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, map[string]any{"greeting": "hello", "who": "Ada"}, out.Value)

	status, _ = do(t, app, http.MethodPost, "/evaluate", []byte(`{"expression":{"step":"missing"}}`))
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	status, _ = do(t, app, http.MethodPost, "/evaluate", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestComponents(t *testing.T) {
	app := testApp(t)
	status, body := do(t, app, http.MethodGet, "/components?q=input&limit=1", nil)
	require.Equal(t, http.StatusOK, status)
	var matches []registry.Match
	require.NoError(t, json.Unmarshal(body, &matches))
	require.Len(t, matches, 1)
	assert.Equal(t, registry.Input, matches[0].Component.Path)

	status, body = do(t, app, http.MethodGet, "/components/check?path=/core/input", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"valid":true`)

	status, body = do(t, app, http.MethodGet, "/components/check?path=/core/inptu", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"valid":false`)
	assert.Contains(t, string(body), `"suggestion":"/core/inp`)

	status, _ = do(t, app, http.MethodGet, "/components/check", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestLoadConfig(t *testing.T) {
	env := map[string]string{}
	get := func(k string) string { return env[k] }

	cfg, err := loadConfig(get)
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)

	env["LOG_LEVEL"] = "DEBUG"
	env["LISTEN_ADDR"] = ":8080"
	cfg, err = loadConfig(get)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.ListenAddr)

	env["LOG_LEVEL"] = "verbose"
	_, err = loadConfig(get)
	assert.Error(t, err)
}
