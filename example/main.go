package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meikuraledutech/flowgraph"
	"github.com/meikuraledutech/flowgraph/convert"
	"github.com/meikuraledutech/flowgraph/log"
	"github.com/meikuraledutech/flowgraph/memory"
	"github.com/meikuraledutech/flowgraph/postgres"
	"github.com/meikuraledutech/flowgraph/validate"
	"github.com/meikuraledutech/flowgraph/wire"
)

func main() {
	ctx := context.Background()

	// Postgres when DATABASE_URL is set, memory otherwise.
	var store flowgraph.Store = memory.New()
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			fatalf("connect: %v", err)
		}
		defer pool.Close()
		store = postgres.New(pool)
	}

	// 1. Create tables
	if err := store.CreateSchema(ctx); err != nil {
		fatalf("schema: %v", err)
	}

	// ── Save a graph ──────────────────────────────────────────────────
	temp := 0.3
	draft := &flowgraph.Workflow{
		Name: "Release notes",
		Nodes: []flowgraph.Node{
			{ID: "changes", Type: flowgraph.NodeInput, Data: flowgraph.NodeData{
				Label:  "Changes",
				Config: &flowgraph.InputConfig{InputType: "string", Required: true, Description: "merged PR titles"},
			}},
			{ID: "draft notes", Type: flowgraph.NodePrompt, Data: flowgraph.NodeData{
				Label: "Draft",
				Config: &flowgraph.PromptConfig{
					Model:        "claude-3-5-sonnet",
					SystemPrompt: "You write terse release notes.",
					UserPrompt:   "Summarise for {{variables.audience}}:\n{{nodes.changes.output}}",
					Temperature:  &temp,
					ErrorHandler: &flowgraph.ErrorHandler{Strategy: flowgraph.StrategyRetry, MaxAttempts: 2},
				},
			}},
			{ID: "review", Type: flowgraph.NodeHumanGate, Data: flowgraph.NodeData{
				Label:  "Review",
				Config: &flowgraph.HumanGateConfig{Instructions: "Check tone", AllowEdit: true},
			}},
			{ID: "out", Type: flowgraph.NodeOutput, Data: flowgraph.NodeData{
				Label:  "Notes",
				Config: &flowgraph.OutputConfig{Format: "markdown"},
			}},
		},
		Edges: []flowgraph.Edge{
			{Source: "changes", Target: "draft notes"},
			{Source: "draft notes", Target: "review"},
			{Source: "review", Target: "out"},
		},
		Variables: map[string]any{"audience": "developers"},
	}
	created, err := store.CreateWorkflow(ctx, draft)
	if err != nil {
		fatalf("create workflow: %v", err)
	}
	fmt.Printf("workflow saved: %s\n", created.ID)

	// ── Export ────────────────────────────────────────────────────────
	text, res, err := convert.Export(created, wire.FormatText)
	if err != nil {
		fatalf("export: %v", err)
	}
	fmt.Printf("\nexported document:\n%s", text)
	for _, w := range res.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	fmt.Println("\nid mapping:")
	printJSON(res.Mapping)

	// ── Validate ──────────────────────────────────────────────────────
	_, check := validate.Bytes(text, wire.FormatText, nil)
	fmt.Println("\nvalidation:")
	printJSON(check)

	// ── Import back ───────────────────────────────────────────────────
	imported, err := convert.Import(text, wire.FormatText)
	if err != nil {
		fatalf("import: %v", err)
	}
	fmt.Printf("\nimported %d nodes and %d edges, features %v\n",
		len(imported.Workflow.Nodes), len(imported.Workflow.Edges), imported.Compatibility.Features)
	for _, n := range imported.Workflow.Nodes {
		fmt.Printf("  %-12s %-12s %s\n", n.ID, n.Type, n.Data.Label)
	}

	// ── Cleanup ───────────────────────────────────────────────────────
	if err := store.DeleteWorkflow(ctx, created.ID); err != nil {
		fatalf("delete: %v", err)
	}
	fmt.Println("\nworkflow deleted")
}

func fatalf(format string, args ...any) {
	log.Errorf(format, args...)
	os.Exit(1)
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
