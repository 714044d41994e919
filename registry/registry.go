// Package registry is the catalog of step components and the rules that
// map model identifiers to provider components.
package registry

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/meikuraledutech/flowgraph"
	"github.com/meikuraledutech/flowgraph/log"
)

// PathPattern is the grammar every component path must match.
var PathPattern = regexp.MustCompile(`^/[a-zA-Z0-9_\-/]+$`)

// Builtin component paths.
const (
	Input       = "/core/input"
	Output      = "/core/output"
	Conditional = "/core/conditional"
	Aggregate   = "/core/aggregate"
	Pause       = "/core/pause"
	Parallel    = "/core/parallel"
	Eval        = "/core/eval"
	BlobGet     = "/core/blob/get"
	BlobPut     = "/core/blob/put"
	HTTP        = "/core/http"

	// DefaultModel serves models that match no provider rule.
	DefaultModel = "/llm/chat"
)

// Categories.
const (
	CategoryCore     = "core"
	CategoryLLM      = "llm"
	CategoryExternal = "external"
)

// Component describes one step kind.
type Component struct {
	Path              string         `json:"path"`
	Name              string         `json:"name"`
	Description       string         `json:"description"`
	InputSchema       map[string]any `json:"inputSchema"`
	OutputSchema      map[string]any `json:"outputSchema,omitempty"`
	Category          string         `json:"category"`
	SupportsStreaming bool           `json:"supportsStreaming,omitempty"`
	RequiredEnv       []string       `json:"requiredEnv,omitempty"`

	// NodeType is the graph node this component is imported as. Empty for
	// components with no graph counterpart.
	NodeType flowgraph.NodeType `json:"nodeType,omitempty"`
}

// Rule maps a case-insensitive model prefix to a component path.
type Rule struct {
	Prefix string
	Path   string
}

// DefaultRules is the provider resolution order. First match wins.
var DefaultRules = []Rule{
	{Prefix: "gpt-", Path: "/openai/chat"},
	{Prefix: "o1", Path: "/openai/chat"},
	{Prefix: "o3", Path: "/openai/chat"},
	{Prefix: "claude", Path: "/anthropic/messages"},
	{Prefix: "gemini", Path: "/google/gemini"},
	{Prefix: "mistral", Path: "/mistral/chat"},
	{Prefix: "mixtral", Path: "/mistral/chat"},
	{Prefix: "llama", Path: "/ollama/chat"},
	{Prefix: "command", Path: "/cohere/chat"},
}

// Registry is safe for concurrent use. Components can be added but never
// removed or replaced.
type Registry struct {
	mu         sync.RWMutex
	components map[string]Component
	rules      []Rule
}

// New returns a registry holding the builtin and provider components.
func New() *Registry {
	r := &Registry{
		components: make(map[string]Component),
		rules:      append([]Rule(nil), DefaultRules...),
	}
	for _, c := range builtins() {
		r.components[c.Path] = c
	}
	for _, c := range providers() {
		r.components[c.Path] = c
	}
	return r
}

// Register adds an external component. Registering an existing path is an
// error.
func (r *Registry) Register(c Component) error {
	if !PathPattern.MatchString(c.Path) {
		return fmt.Errorf("registry: invalid component path %q", c.Path)
	}
	if c.NodeType != "" && !c.NodeType.Known() {
		return fmt.Errorf("registry: component %s: unknown node type %q", c.Path, c.NodeType)
	}
	if c.Category == "" {
		c.Category = CategoryExternal
	}
	if c.Name == "" {
		c.Name = c.Path
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.components[c.Path]; ok {
		return fmt.Errorf("registry: component %s already registered", c.Path)
	}
	r.components[c.Path] = c
	log.Debugf("registry: registered %s", c.Path)
	return nil
}

// Get returns the component at path.
func (r *Registry) Get(path string) (Component, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.components[path]
	return c, ok
}

// List returns every component sorted by path.
func (r *Registry) List() []Component {
	r.mu.RLock()
	out := make([]Component, 0, len(r.components))
	for _, c := range r.components {
		out = append(out, c)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// IsBuiltin reports whether path is one of the core components.
func IsBuiltin(path string) bool {
	return strings.HasPrefix(path, "/core/")
}

// AddRule puts a model rule ahead of the existing ones. The rule's path must
// be a registered component that compiles from prompt nodes.
func (r *Registry) AddRule(rule Rule) error {
	if strings.TrimSpace(rule.Prefix) == "" {
		return fmt.Errorf("registry: rule for %s has an empty prefix", rule.Path)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.components[rule.Path]
	if !ok {
		return fmt.Errorf("registry: rule %q points at unknown component %s", rule.Prefix, rule.Path)
	}
	if c.NodeType != flowgraph.NodePrompt {
		return fmt.Errorf("registry: rule %q points at %s, which is not a prompt component", rule.Prefix, rule.Path)
	}
	r.rules = append([]Rule{rule}, r.rules...)
	return nil
}

// ResolveModel maps a model identifier to a component path. Unknown models
// resolve to DefaultModel with matched set to false.
func (r *Registry) ResolveModel(model string) (path string, matched bool) {
	lower := strings.ToLower(strings.TrimSpace(model))
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rule := range r.rules {
		if strings.HasPrefix(lower, strings.ToLower(rule.Prefix)) {
			return rule.Path, true
		}
	}
	return DefaultModel, false
}

// ComponentForNode returns the component path a node of type t compiles to.
// model is consulted for prompt nodes only; a model no rule matches gets
// DefaultModel, and ResolveModel tells the two cases apart.
func (r *Registry) ComponentForNode(t flowgraph.NodeType, model string) (string, error) {
	switch t {
	case flowgraph.NodeInput:
		return Input, nil
	case flowgraph.NodeOutput:
		return Output, nil
	case flowgraph.NodeBranch:
		return Conditional, nil
	case flowgraph.NodeAggregate:
		return Aggregate, nil
	case flowgraph.NodeHumanGate:
		return Pause, nil
	case flowgraph.NodeModelCompare:
		return Parallel, nil
	case flowgraph.NodePrompt:
		path, _ := r.ResolveModel(model)
		return path, nil
	}
	return "", fmt.Errorf("registry: %w: %q", flowgraph.ErrUnsupportedNodeType, t)
}

// NodeTypeFor is the reverse lookup from component path to node type. known
// is false for paths the registry has never seen; a known component with an
// empty node type has no graph counterpart.
func (r *Registry) NodeTypeFor(path string) (t flowgraph.NodeType, known bool) {
	c, ok := r.Get(path)
	if !ok {
		return "", false
	}
	return c.NodeType, true
}
