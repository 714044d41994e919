package flowgraph

import (
	"encoding/json"
	"fmt"
)

// NodeConfig is the type-specific configuration of a node. The set of
// implementations is closed: one per NodeType plus UnknownConfig.
type NodeConfig interface {
	nodeType() NodeType
	// Accept calls the visitor method for the concrete config. A nil
	// pointer config is visited as its empty value.
	Accept(v ConfigVisitor) error
}

// ConfigVisitor has one method per config type. A new node type adds a
// method here, so every visitor has to handle it before the module builds.
type ConfigVisitor interface {
	Input(*InputConfig) error
	Output(*OutputConfig) error
	Prompt(*PromptConfig) error
	Branch(*BranchConfig) error
	Aggregate(*AggregateConfig) error
	HumanGate(*HumanGateConfig) error
	ModelCompare(*ModelCompareConfig) error
	Unknown(UnknownConfig) error
}

// InputConfig configures an input node.
type InputConfig struct {
	InputType    string `json:"inputType,omitempty"`
	Required     bool   `json:"required,omitempty"`
	Description  string `json:"description,omitempty"`
	DefaultValue any    `json:"defaultValue,omitempty"`
}

// OutputConfig configures an output node.
type OutputConfig struct {
	Format string `json:"format,omitempty"`
}

// PromptConfig configures a prompt node.
type PromptConfig struct {
	Model            string        `json:"model,omitempty"`
	SystemPrompt     string        `json:"systemPrompt,omitempty"`
	UserPrompt       string        `json:"userPrompt"`
	Temperature      *float64      `json:"temperature,omitempty"`
	MaxTokens        *int          `json:"maxTokens,omitempty"`
	TopP             *float64      `json:"topP,omitempty"`
	FrequencyPenalty *float64      `json:"frequencyPenalty,omitempty"`
	PresencePenalty  *float64      `json:"presencePenalty,omitempty"`
	ErrorHandler     *ErrorHandler `json:"errorHandler,omitempty"`
	MustExecute      bool          `json:"mustExecute,omitempty"`
}

// Branch is one labelled outcome of a branch node.
type Branch struct {
	Label     string `json:"label"`
	Condition string `json:"condition,omitempty"`
}

// BranchConfig configures a branch node.
type BranchConfig struct {
	Condition string   `json:"condition"`
	Branches  []Branch `json:"branches,omitempty"`
}

// Aggregation strategies.
const (
	AggregateConcat = "concat"
	AggregateVote   = "vote"
	AggregateMerge  = "merge"
)

// AggregateConfig configures an aggregate node.
type AggregateConfig struct {
	Strategy  string  `json:"strategy,omitempty"`
	Separator *string `json:"separator,omitempty"`
}

// HumanGateConfig configures a human_gate node.
type HumanGateConfig struct {
	Instructions   string `json:"instructions,omitempty"`
	AllowEdit      bool   `json:"allowEdit,omitempty"`
	TimeoutSeconds *int   `json:"timeoutSeconds,omitempty"`
}

// ModelCompareConfig configures a model_compare node.
type ModelCompareConfig struct {
	Models       []string      `json:"models"`
	SystemPrompt string        `json:"systemPrompt,omitempty"`
	UserPrompt   string        `json:"userPrompt"`
	Temperature  *float64      `json:"temperature,omitempty"`
	MaxTokens    *int          `json:"maxTokens,omitempty"`
	ErrorHandler *ErrorHandler `json:"errorHandler,omitempty"`
}

// UnknownConfig keeps the raw config of a node whose type is not known.
type UnknownConfig struct {
	Raw json.RawMessage
}

// MarshalJSON writes the raw config back unchanged.
func (c UnknownConfig) MarshalJSON() ([]byte, error) {
	if len(c.Raw) == 0 {
		return []byte("null"), nil
	}
	return c.Raw, nil
}

// Error handling strategies.
const (
	StrategyRetry   = "retry"
	StrategyDefault = "default"
	StrategyFail    = "fail"
)

// ErrorHandler is the graph-side per-node error policy.
type ErrorHandler struct {
	Strategy      string `json:"strategy"`
	MaxAttempts   int    `json:"maxAttempts,omitempty"`
	FallbackValue any    `json:"fallbackValue,omitempty"`
}

func (*InputConfig) nodeType() NodeType        { return NodeInput }
func (*OutputConfig) nodeType() NodeType       { return NodeOutput }
func (*PromptConfig) nodeType() NodeType       { return NodePrompt }
func (*BranchConfig) nodeType() NodeType       { return NodeBranch }
func (*AggregateConfig) nodeType() NodeType    { return NodeAggregate }
func (*HumanGateConfig) nodeType() NodeType    { return NodeHumanGate }
func (*ModelCompareConfig) nodeType() NodeType { return NodeModelCompare }
func (UnknownConfig) nodeType() NodeType       { return "" }

func (c *InputConfig) Accept(v ConfigVisitor) error {
	if c == nil {
		c = &InputConfig{}
	}
	return v.Input(c)
}

func (c *OutputConfig) Accept(v ConfigVisitor) error {
	if c == nil {
		c = &OutputConfig{}
	}
	return v.Output(c)
}

func (c *PromptConfig) Accept(v ConfigVisitor) error {
	if c == nil {
		c = &PromptConfig{}
	}
	return v.Prompt(c)
}

func (c *BranchConfig) Accept(v ConfigVisitor) error {
	if c == nil {
		c = &BranchConfig{}
	}
	return v.Branch(c)
}

func (c *AggregateConfig) Accept(v ConfigVisitor) error {
	if c == nil {
		c = &AggregateConfig{}
	}
	return v.Aggregate(c)
}

func (c *HumanGateConfig) Accept(v ConfigVisitor) error {
	if c == nil {
		c = &HumanGateConfig{}
	}
	return v.HumanGate(c)
}

func (c *ModelCompareConfig) Accept(v ConfigVisitor) error {
	if c == nil {
		c = &ModelCompareConfig{}
	}
	return v.ModelCompare(c)
}

func (c UnknownConfig) Accept(v ConfigVisitor) error { return v.Unknown(c) }

// NewConfig returns an empty config for t, or nil for unknown types.
func NewConfig(t NodeType) NodeConfig {
	switch t {
	case NodeInput:
		return &InputConfig{}
	case NodeOutput:
		return &OutputConfig{}
	case NodePrompt:
		return &PromptConfig{}
	case NodeBranch:
		return &BranchConfig{}
	case NodeAggregate:
		return &AggregateConfig{}
	case NodeHumanGate:
		return &HumanGateConfig{}
	case NodeModelCompare:
		return &ModelCompareConfig{}
	}
	return nil
}

// DecodeConfig decodes raw into the config shape that belongs to t.
// Unknown types keep the raw bytes in an UnknownConfig.
func DecodeConfig(t NodeType, raw json.RawMessage) (NodeConfig, error) {
	cfg := NewConfig(t)
	if cfg == nil {
		return UnknownConfig{Raw: raw}, nil
	}
	if len(raw) == 0 || string(raw) == "null" {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("decode %s config: %w", t, err)
	}
	return cfg, nil
}
