package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/moneymap/internal/graph"
	"github.com/roach88/moneymap/internal/store"
)

// Scenario is a scripted editing session. Steps drive the canvas editor the
// way a user would; assertions check the graph that results.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are keyed by it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Household, when set, backs the session with an in-memory workspace
	// store so load, save, reset_sandbox and apply_sandbox steps work.
	Household string `yaml:"household,omitempty"`

	// Variant is the workspace the session edits. Defaults to live.
	Variant string `yaml:"variant,omitempty"`

	// Steps run in order against one editor.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one editor operation. Which fields apply depends on Action.
// Node and flow references are scenario refs bound by earlier add_node and
// add_flow steps; an unbound ref is used as a literal id.
type Step struct {
	Action string `yaml:"action"`

	// Ref names the node or flow a step creates or targets.
	Ref string `yaml:"ref,omitempty"`

	// Refs lists nodes for select and remove_nodes.
	Refs []string `yaml:"refs,omitempty"`

	// Node describes the node for add_node and the changes for update_node.
	Node *NodeSpec `yaml:"node,omitempty"`

	// From and To are the endpoints of add_flow. From is also the rule
	// source for save_rule, remove_rule and allocate.
	From string `yaml:"from,omitempty"`
	To   string `yaml:"to,omitempty"`
	Tag  string `yaml:"tag,omitempty"`

	Trigger     string           `yaml:"trigger,omitempty"`
	Allocations []AllocationSpec `yaml:"allocations,omitempty"`

	// DX and DY are the drag offset.
	DX float64 `yaml:"dx,omitempty"`
	DY float64 `yaml:"dy,omitempty"`

	// Rect is a marquee as [x1, y1, x2, y2] in world coordinates.
	Rect []float64 `yaml:"rect,omitempty"`

	// Key is a keyboard command such as "Delete" or "Mod+Z".
	Key string `yaml:"key,omitempty"`

	// ExpectError is the validation code the step must fail with, or
	// "error" for any failure. Empty means the step must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// NodeSpec describes node fields in a step. Unset fields are left alone by
// update_node.
type NodeSpec struct {
	Kind       string      `yaml:"kind,omitempty"`
	Label      string      `yaml:"label,omitempty"`
	Category   string      `yaml:"category,omitempty"`
	Parent     string      `yaml:"parent,omitempty"`
	PodType    string      `yaml:"pod_type,omitempty"`
	Balance    *float64    `yaml:"balance,omitempty"`
	ReturnRate *float64    `yaml:"return_rate,omitempty"`
	Inflow     *InflowSpec `yaml:"inflow,omitempty"`
	X          *float64    `yaml:"x,omitempty"`
	Y          *float64    `yaml:"y,omitempty"`
}

// InflowSpec is a recurring income amount.
type InflowSpec struct {
	Amount  float64 `yaml:"amount"`
	Cadence string  `yaml:"cadence"`
}

// AllocationSpec sends Percentage of the source's funds to To.
type AllocationSpec struct {
	To         string  `yaml:"to"`
	Percentage float64 `yaml:"percentage"`
}

// Step actions.
const (
	ActionAddNode      = "add_node"
	ActionUpdateNode   = "update_node"
	ActionRemoveNodes  = "remove_nodes"
	ActionAddFlow      = "add_flow"
	ActionRemoveFlow   = "remove_flow"
	ActionSaveRule     = "save_rule"
	ActionRemoveRule   = "remove_rule"
	ActionAllocate     = "allocate"
	ActionSelect       = "select"
	ActionDrag         = "drag"
	ActionMarquee      = "marquee"
	ActionKey          = "key"
	ActionUndo         = "undo"
	ActionRedo         = "redo"
	ActionLoad         = "load"
	ActionSave         = "save"
	ActionResetSandbox = "reset_sandbox"
	ActionApplySandbox = "apply_sandbox"
)

// ExpectAnyError matches any step failure.
const ExpectAnyError = "error"

// Assertion validates the final graph or the persisted workspaces.
type Assertion struct {
	// Type specifies the assertion type:
	// - "node_count": Check the number of nodes
	// - "flow_count": Check the number of flows, optionally only rule-owned ones
	// - "node": Check fields of one node
	// - "flow": Check a flow exists between two nodes
	// - "no_flow": Check no flow exists between two nodes
	// - "rule": Check a source's rule and its allocations
	// - "no_rule": Check a source has no rule
	// - "selection": Check the selected nodes, in order
	// - "valid": Check the graph passes structural validation
	// - "persisted_count": Check the node count stored for a variant
	Type string `yaml:"type"`

	Ref  string `yaml:"ref,omitempty"`
	From string `yaml:"from,omitempty"`
	To   string `yaml:"to,omitempty"`

	Count     *int  `yaml:"count,omitempty"`
	RuleOwned *bool `yaml:"rule_owned,omitempty"`

	// Node fields checked by "node".
	Label  string   `yaml:"label,omitempty"`
	Parent string   `yaml:"parent,omitempty"`
	X      *float64 `yaml:"x,omitempty"`
	Y      *float64 `yaml:"y,omitempty"`

	// Trigger and Allocations are checked by "rule". Allocations maps a
	// target ref to its percentage and must match exactly.
	Trigger     string             `yaml:"trigger,omitempty"`
	Allocations map[string]float64 `yaml:"allocations,omitempty"`

	// Refs is the expected selection.
	Refs []string `yaml:"refs,omitempty"`

	// Variant is the workspace checked by "persisted_count".
	Variant string `yaml:"variant,omitempty"`
}

// Assertion type constants.
const (
	AssertNodeCount      = "node_count"
	AssertFlowCount      = "flow_count"
	AssertNode           = "node"
	AssertFlow           = "flow"
	AssertNoFlow         = "no_flow"
	AssertRule           = "rule"
	AssertNoRule         = "no_rule"
	AssertSelection      = "selection"
	AssertValid          = "valid"
	AssertPersistedCount = "persisted_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Variant != "" && !store.Variant(s.Variant).Valid() {
		return fmt.Errorf("variant must be live or sandbox, got %q", s.Variant)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step, s.Household != ""); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, s.Household != ""); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks the fields a step's action needs.
func validateStep(index int, st *Step, persisted bool) error {
	switch st.Action {
	case "":
		return fmt.Errorf("steps[%d]: action is required", index)
	case ActionAddNode:
		if st.Node == nil || st.Node.Kind == "" {
			return fmt.Errorf("steps[%d]: node.kind is required for add_node", index)
		}
		if !graph.Kind(st.Node.Kind).Valid() {
			return fmt.Errorf("steps[%d]: unknown node kind %q", index, st.Node.Kind)
		}
	case ActionUpdateNode:
		if st.Ref == "" || st.Node == nil {
			return fmt.Errorf("steps[%d]: ref and node are required for update_node", index)
		}
	case ActionRemoveNodes, ActionSelect:
		if st.Refs == nil {
			return fmt.Errorf("steps[%d]: refs is required for %s (use an empty list for none)", index, st.Action)
		}
	case ActionAddFlow:
		if st.From == "" || st.To == "" {
			return fmt.Errorf("steps[%d]: from and to are required for add_flow", index)
		}
	case ActionRemoveFlow:
		if st.Ref == "" {
			return fmt.Errorf("steps[%d]: ref is required for remove_flow", index)
		}
	case ActionSaveRule, ActionAllocate:
		if st.From == "" {
			return fmt.Errorf("steps[%d]: from is required for %s", index, st.Action)
		}
		if st.Trigger != "" && !graph.Trigger(st.Trigger).Valid() {
			return fmt.Errorf("steps[%d]: unknown trigger %q", index, st.Trigger)
		}
	case ActionRemoveRule:
		if st.From == "" {
			return fmt.Errorf("steps[%d]: from is required for remove_rule", index)
		}
	case ActionDrag:
		if st.Ref == "" {
			return fmt.Errorf("steps[%d]: ref is required for drag", index)
		}
	case ActionMarquee:
		if len(st.Rect) != 4 {
			return fmt.Errorf("steps[%d]: rect must be [x1, y1, x2, y2]", index)
		}
	case ActionKey:
		if st.Key == "" {
			return fmt.Errorf("steps[%d]: key is required for key", index)
		}
	case ActionUndo, ActionRedo:
	case ActionLoad, ActionSave, ActionResetSandbox, ActionApplySandbox:
		if !persisted {
			return fmt.Errorf("steps[%d]: %s requires a household", index, st.Action)
		}
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, st.Action)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, persisted bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertNodeCount, AssertFlowCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for %s", index, a.Type)
		}
		if *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertNode:
		if a.Ref == "" {
			return fmt.Errorf("assertions[%d]: ref is required for node", index)
		}
	case AssertFlow, AssertNoFlow:
		if a.From == "" || a.To == "" {
			return fmt.Errorf("assertions[%d]: from and to are required for %s", index, a.Type)
		}
	case AssertRule, AssertNoRule:
		if a.From == "" {
			return fmt.Errorf("assertions[%d]: from is required for %s", index, a.Type)
		}
	case AssertSelection:
		if a.Refs == nil {
			return fmt.Errorf("assertions[%d]: refs is required for selection", index)
		}
	case AssertValid:
	case AssertPersistedCount:
		if !persisted {
			return fmt.Errorf("assertions[%d]: persisted_count requires a household", index)
		}
		if !store.Variant(a.Variant).Valid() {
			return fmt.Errorf("assertions[%d]: variant must be live or sandbox", index)
		}
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for persisted_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
