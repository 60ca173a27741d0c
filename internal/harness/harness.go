package harness

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/moneymap/internal/allocation"
	"github.com/roach88/moneymap/internal/canvas"
	"github.com/roach88/moneymap/internal/graph"
	"github.com/roach88/moneymap/internal/store"
	"github.com/roach88/moneymap/internal/testutil"
	"github.com/roach88/moneymap/internal/workspace"
)

// scenarioActor attributes persisted scenario changes in the audit log.
const scenarioActor = "harness"

// Harness is the test execution engine.
// It runs scenarios with sequential ids and a step clock so two runs of
// the same scenario produce identical graphs.
type Harness struct {
	editor  *canvas.Editor
	drawer  *allocation.Editor
	session *canvas.Session
	manager *workspace.Manager
	store   *store.Store
	logger  *zap.Logger

	editorOpts canvas.Options
	household  string
	refs       map[string]string
}

// Option configures Run.
type Option func(*Harness)

// WithLogger sets the logger handed to the session and workspace manager.
func WithLogger(l *zap.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// WithEditorOptions sets the canvas geometry and history depth. The id
// source is always replaced with a sequential one.
func WithEditorOptions(o canvas.Options) Option {
	return func(h *Harness) { h.editorOpts = o }
}

// Run executes a test scenario and returns the result.
//
// Scenarios with a household run against a fresh in-memory database for
// isolation. Execution flow:
//  1. Build the editor, and the store and session when persisted
//  2. Execute steps, checking each against its expect_error
//  3. Evaluate assertions against the final state
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	ctx := context.Background()

	h := &Harness{
		logger:     zap.NewNop(),
		editorOpts: canvas.DefaultOptions(),
		household:  scenario.Household,
		refs:       make(map[string]string),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.editorOpts.NewID = testutil.NewSequentialIDs().Next
	h.editor = canvas.NewEditor(h.editorOpts)
	h.drawer = allocation.NewEditor(h.editor)
	h.editor.OnIDsRemapped(h.drawer.Remap)

	if scenario.Household != "" {
		clock := testutil.NewStepClock()
		rows := testutil.NewSequentialIDs()
		st, err := store.Open(":memory:",
			store.WithIDGenerator(func() string { return rows.Next("row") }),
			store.WithClock(clock.Now),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()

		h.store = st
		h.manager = workspace.NewManager(st,
			workspace.WithLogger(h.logger),
			workspace.WithClock(clock.Now),
			workspace.WithRequestIDs(func() string { return rows.Next("req") }),
		)
		variant := store.VariantLive
		if scenario.Variant != "" {
			variant = store.Variant(scenario.Variant)
		}
		h.session = canvas.NewSession(h.editor, h.manager.Backend(variant, scenarioActor), h.logger)
		if err := h.session.Load(ctx, scenario.Household); err != nil {
			return nil, fmt.Errorf("failed to load household: %w", err)
		}
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		err := h.execute(ctx, step)
		code := errorCode(err)
		result.AddStep(step.Action, code)

		switch {
		case step.ExpectError == "" && err != nil:
			result.AddError(fmt.Sprintf("steps[%d] %s: unexpected error: %v", i, step.Action, err))
		case step.ExpectError != "" && err == nil:
			result.AddError(fmt.Sprintf("steps[%d] %s: expected error %s, got none", i, step.Action, step.ExpectError))
		case step.ExpectError != "" && step.ExpectError != ExpectAnyError && step.ExpectError != code:
			result.AddError(fmt.Sprintf("steps[%d] %s: expected error %s, got %s (%v)", i, step.Action, step.ExpectError, code, err))
		}
	}

	result.Graph = h.editor.Snapshot()
	result.CanUndo = h.editor.CanUndo()
	result.CanRedo = h.editor.CanRedo()
	for ref, id := range h.refs {
		result.Refs[ref] = id
	}

	actx := &AssertionContext{
		Ctx:       ctx,
		Manager:   h.manager,
		Household: scenario.Household,
		Refs:      h.refs,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// errorCode classifies a step error for the step record.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	var ve *graph.ValidationError
	if errors.As(err, &ve) {
		return string(ve.Code)
	}
	return ExpectAnyError
}

// resolve maps a scenario ref to an editor id. Unbound refs are literal ids.
func (h *Harness) resolve(ref string) string {
	if id, ok := h.refs[ref]; ok {
		return id
	}
	return ref
}

func (h *Harness) resolveAll(refs []string) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = h.resolve(r)
	}
	return out
}

// execute runs one step.
func (h *Harness) execute(ctx context.Context, step Step) error {
	switch step.Action {
	case ActionAddNode:
		n, err := h.editor.AddNode(h.buildNode(step.Node))
		if err != nil {
			return err
		}
		if step.Ref != "" {
			h.refs[step.Ref] = n.ID
		}

	case ActionUpdateNode:
		spec := step.Node
		parent := ""
		if spec.Parent != "" {
			parent = h.resolve(spec.Parent)
		}
		return h.editor.UpdateNode(h.resolve(step.Ref), func(n *graph.Node) {
			applyNodeSpec(n, spec, parent)
		})

	case ActionRemoveNodes:
		if h.editor.RemoveNodes(h.resolveAll(step.Refs)...) == 0 {
			return errors.New("no nodes removed")
		}

	case ActionAddFlow:
		f, err := h.editor.AddFlow(h.resolve(step.From), h.resolve(step.To), step.Tag)
		if err != nil {
			return err
		}
		if step.Ref != "" {
			h.refs[step.Ref] = f.ID
		}

	case ActionRemoveFlow:
		return h.editor.RemoveFlow(h.resolve(step.Ref))

	case ActionSaveRule:
		rule := graph.Rule{
			SourceNodeID: h.resolve(step.From),
			Trigger:      graph.Trigger(step.Trigger),
			Allocations:  make([]graph.Allocation, 0, len(step.Allocations)),
		}
		for _, a := range step.Allocations {
			rule.Allocations = append(rule.Allocations, graph.Allocation{
				TargetNodeID: h.resolve(a.To),
				Percentage:   a.Percentage,
			})
		}
		_, err := h.editor.SaveRule(rule)
		return err

	case ActionRemoveRule:
		if !h.editor.RemoveRule(h.resolve(step.From)) {
			return fmt.Errorf("no rule for %q", step.From)
		}

	case ActionAllocate:
		return h.allocate(step)

	case ActionSelect:
		h.editor.SetSelection(h.resolveAll(step.Refs)...)

	case ActionDrag:
		if !h.editor.BeginDrag(h.resolve(step.Ref)) {
			return fmt.Errorf("drag: unknown node %q", step.Ref)
		}
		h.editor.MoveDrag(graph.Position{X: step.DX, Y: step.DY})
		h.editor.EndDrag()

	case ActionMarquee:
		start := graph.Position{X: step.Rect[0], Y: step.Rect[1]}
		end := graph.Position{X: step.Rect[2], Y: step.Rect[3]}
		h.editor.BeginMarquee(start, start)
		h.editor.UpdateMarquee(end, end)
		h.editor.EndMarquee()

	case ActionKey:
		h.editor.HandleKey(canvas.Key(step.Key))

	case ActionUndo:
		if !h.editor.Undo() {
			return errors.New("nothing to undo")
		}

	case ActionRedo:
		if !h.editor.Redo() {
			return errors.New("nothing to redo")
		}

	case ActionLoad:
		return h.session.Load(ctx, h.household)

	case ActionSave:
		maps, err := h.session.Save(ctx)
		if err != nil {
			return err
		}
		h.remapRefs(maps)

	case ActionResetSandbox:
		_, err := h.manager.ResetSandbox(ctx, h.household, scenarioActor)
		return err

	case ActionApplySandbox:
		_, err := h.manager.ApplySandbox(ctx, h.household, scenarioActor)
		return err

	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}

	// Keep the drawer in step with undo, redo and removals.
	h.drawer.Refresh()
	return nil
}

// allocate drives the allocation drawer: open the source, set a draft per
// target, then commit.
func (h *Harness) allocate(step Step) error {
	source := h.resolve(step.From)
	if err := h.drawer.Open(source); err != nil {
		return err
	}
	if step.Trigger != "" {
		if err := h.drawer.SetTrigger(graph.Trigger(step.Trigger), ""); err != nil {
			return err
		}
	}
	for _, a := range step.Allocations {
		target := h.resolve(a.To)
		idx := -1
		for i, d := range h.drawer.Drafts() {
			if d.TargetNodeID == target {
				idx = i
				break
			}
		}
		if idx < 0 {
			idx = h.drawer.AddDraft()
			if err := h.drawer.SetTarget(idx, target); err != nil {
				return err
			}
		}
		if err := h.drawer.SetPercentage(idx, a.Percentage); err != nil {
			return err
		}
	}
	_, err := h.drawer.Commit()
	return err
}

// remapRefs follows node and flow ids through a save.
func (h *Harness) remapRefs(maps graph.IDMaps) {
	for ref, id := range h.refs {
		if next, ok := maps.Nodes[id]; ok {
			h.refs[ref] = next
			continue
		}
		if next, ok := maps.Flows[id]; ok {
			h.refs[ref] = next
		}
	}
}

func (h *Harness) buildNode(spec *NodeSpec) graph.Node {
	n := graph.Node{Kind: graph.Kind(spec.Kind)}
	parent := ""
	if spec.Parent != "" {
		parent = h.resolve(spec.Parent)
	}
	applyNodeSpec(&n, spec, parent)
	return n
}

// applyNodeSpec copies the set fields of spec onto n.
func applyNodeSpec(n *graph.Node, spec *NodeSpec, parentID string) {
	if spec.Label != "" {
		n.Label = spec.Label
	}
	if spec.Category != "" {
		n.Category = spec.Category
	}
	if parentID != "" {
		n.ParentID = parentID
	}
	if spec.PodType != "" {
		n.PodType = graph.PodType(spec.PodType)
	}
	if spec.Balance != nil {
		v := *spec.Balance
		n.Balance = &v
	}
	if spec.ReturnRate != nil {
		v := *spec.ReturnRate
		n.ReturnRate = &v
	}
	if spec.Inflow != nil {
		n.Inflow = &graph.Inflow{Amount: spec.Inflow.Amount, Cadence: graph.Cadence(spec.Inflow.Cadence)}
	}
	if spec.X != nil {
		n.Position.X = *spec.X
	}
	if spec.Y != nil {
		n.Position.Y = *spec.Y
	}
}
