package registry

import "github.com/meikuraledutech/flowgraph"

func object(props map[string]any, required ...string) map[string]any {
	s := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		list := make([]any, len(required))
		for i, r := range required {
			list[i] = r
		}
		s["required"] = list
	}
	return s
}

func typed(t string) map[string]any { return map[string]any{"type": t} }

func builtins() []Component {
	return []Component{
		{
			Path:        Input,
			Name:        "Input",
			Description: "Collects a named value from the workflow input.",
			InputSchema: object(map[string]any{
				"name":        typed("string"),
				"type":        typed("string"),
				"required":    typed("boolean"),
				"description": typed("string"),
				"default":     map[string]any{},
			}, "name"),
			Category: CategoryCore,
			NodeType: flowgraph.NodeInput,
		},
		{
			Path:        Output,
			Name:        "Output",
			Description: "Publishes a value as a workflow result.",
			InputSchema: object(map[string]any{
				"value":  map[string]any{},
				"format": typed("string"),
			}, "value"),
			Category: CategoryCore,
			NodeType: flowgraph.NodeOutput,
		},
		{
			Path:        Conditional,
			Name:        "Conditional",
			Description: "Routes a value to one of several labelled branches.",
			InputSchema: object(map[string]any{
				"condition": typed("string"),
				"branches":  typed("array"),
				"value":     map[string]any{},
			}, "condition"),
			OutputSchema: object(map[string]any{"branch": typed("string"), "value": map[string]any{}}),
			Category:     CategoryCore,
			NodeType:     flowgraph.NodeBranch,
		},
		{
			Path:        Aggregate,
			Name:        "Aggregate",
			Description: "Combines several upstream values by concatenation, vote or merge.",
			InputSchema: object(map[string]any{
				"strategy":  map[string]any{"type": "string", "enum": []any{"concat", "vote", "merge"}},
				"separator": typed("string"),
				"inputs":    typed("array"),
			}, "inputs"),
			Category: CategoryCore,
			NodeType: flowgraph.NodeAggregate,
		},
		{
			Path:        Pause,
			Name:        "Pause",
			Description: "Waits for a human to review and optionally edit a value.",
			InputSchema: object(map[string]any{
				"instructions":    typed("string"),
				"allow_edit":      typed("boolean"),
				"timeout_seconds": typed("integer"),
				"value":           map[string]any{},
			}),
			Category: CategoryCore,
			NodeType: flowgraph.NodeHumanGate,
		},
		{
			Path:              Parallel,
			Name:              "Parallel",
			Description:       "Runs the same request against several models and collects every answer.",
			InputSchema:       object(map[string]any{"branches": typed("array")}, "branches"),
			OutputSchema:      typed("array"),
			Category:          CategoryCore,
			SupportsStreaming: true,
			NodeType:          flowgraph.NodeModelCompare,
		},
		{
			Path:        Eval,
			Name:        "Eval",
			Description: "Evaluates an expression against its input.",
			InputSchema: object(map[string]any{"expression": typed("string"), "input": map[string]any{}}, "expression"),
			Category:    CategoryCore,
		},
		{
			Path:         BlobGet,
			Name:         "Blob get",
			Description:  "Reads an object from blob storage.",
			InputSchema:  object(map[string]any{"key": typed("string")}, "key"),
			OutputSchema: typed("string"),
			Category:     CategoryCore,
			RequiredEnv:  []string{"BLOB_STORE_URL"},
		},
		{
			Path:        BlobPut,
			Name:        "Blob put",
			Description: "Writes a value to blob storage.",
			InputSchema: object(map[string]any{"key": typed("string"), "value": map[string]any{}}, "key", "value"),
			Category:    CategoryCore,
			RequiredEnv: []string{"BLOB_STORE_URL"},
		},
		{
			Path:        HTTP,
			Name:        "HTTP request",
			Description: "Performs an HTTP request and returns the response body.",
			InputSchema: object(map[string]any{
				"url":     typed("string"),
				"method":  typed("string"),
				"headers": typed("object"),
				"body":    map[string]any{},
			}, "url"),
			Category: CategoryCore,
		},
	}
}

func chat(path, name, env string) Component {
	c := Component{
		Path:        path,
		Name:        name,
		Description: name + " chat completion.",
		InputSchema: object(map[string]any{
			"model":             typed("string"),
			"messages":          typed("array"),
			"temperature":       typed("number"),
			"max_tokens":        typed("integer"),
			"top_p":             typed("number"),
			"frequency_penalty": typed("number"),
			"presence_penalty":  typed("number"),
		}, "model", "messages"),
		OutputSchema:      typed("string"),
		Category:          CategoryLLM,
		SupportsStreaming: true,
		NodeType:          flowgraph.NodePrompt,
	}
	if env != "" {
		c.RequiredEnv = []string{env}
	}
	return c
}

func providers() []Component {
	return []Component{
		chat("/openai/chat", "OpenAI", "OPENAI_API_KEY"),
		chat("/anthropic/messages", "Anthropic", "ANTHROPIC_API_KEY"),
		chat("/google/gemini", "Gemini", "GOOGLE_API_KEY"),
		chat("/mistral/chat", "Mistral", "MISTRAL_API_KEY"),
		chat("/ollama/chat", "Ollama", ""),
		chat("/cohere/chat", "Cohere", "COHERE_API_KEY"),
		chat(DefaultModel, "Generic LLM", ""),
	}
}
