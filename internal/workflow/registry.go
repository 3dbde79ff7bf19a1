package workflow

import (
	"github.com/openboard/engine/internal/domain"
)

// Transition is one guarded edge out of a state. A nil Guard is
// unconditional and must be the last reachable entry in its state; that
// ordering is a registry-author invariant, not machine-checked.
type Transition struct {
	Target string
	Guard  *Condition
}

// WorkflowState is one node of the session state machine. Skill names the
// external capability invoked while the state is active; it is empty for
// pure routing states. States are immutable once declared.
type WorkflowState struct {
	ID          string
	Skill       string
	Transitions []Transition
}

// Registry is a declarative table of workflow states. Transitions are
// evaluated in declaration order by the resolver, so the registry data is
// where the guard-ordering invariant lives.
type Registry struct {
	name   string
	states []WorkflowState
	byID   map[string]*WorkflowState
}

// NewRegistry builds a registry from an ordered state list.
func NewRegistry(name string, states []WorkflowState) *Registry {
	r := &Registry{name: name, states: states, byID: make(map[string]*WorkflowState, len(states))}
	for i := range r.states {
		r.byID[r.states[i].ID] = &r.states[i]
	}
	return r
}

// Name returns the registry's topology name.
func (r *Registry) Name() string { return r.name }

// State returns the state with the given id.
func (r *Registry) State(id string) (*WorkflowState, error) {
	s, ok := r.byID[id]
	if !ok {
		return nil, domain.NewEngineError(domain.ErrUnknownState.Code, "unknown workflow state: "+id)
	}
	return s, nil
}

// StateForSkill resolves a state id from the skill it invokes. When a skill
// is shared by several states, the first declaring state in registry order
// wins. Used by drivers that report completion by capability name.
func (r *Registry) StateForSkill(skill string) (*WorkflowState, error) {
	for i := range r.states {
		if r.states[i].Skill != "" && r.states[i].Skill == skill {
			return &r.states[i], nil
		}
	}
	return nil, domain.NewEngineError(domain.ErrUnknownSkill.Code, "no state associated with skill: "+skill)
}

// Initial returns the id of the registry's entry state.
func (r *Registry) Initial() string { return r.states[0].ID }

// State ids shared by both topologies.
const (
	StateGatherGoals       = "gather-goals"
	StateRouteSession      = "route-session"
	StateRouteBrainstorm   = "route-brainstorm"
	StateBrainstormCode    = "brainstorm-code"
	StateBrainstormTask    = "brainstorm-task"
	StateBrainstormBugfix  = "brainstorm-bugfix"
	StateRouteRoughDraft   = "route-rough-draft"
	StateRoughDraft        = "rough-draft"
	StateGenerateTaskGraph = "generate-task-graph"
	StateRouteExecute      = "route-execute"
	StateExecuteBatch      = "execute-batch"
	StateCleanup           = "cleanup"

	StateRouteItem        = "route-item"
	StateRoughDraftItem   = "rough-draft-item"
	StateGenerateItemTask = "generate-item-tasks"
	StateExecuteItemBatch = "execute-item-batch"
)

// Topology names accepted in configuration.
const (
	TopologyPhaseBatching    = "phase-batching"
	TopologyStrictInterleave = "strict-interleave"
)

func guarded(target string, c Condition) Transition {
	return Transition{Target: target, Guard: &c}
}

func always(target string) Transition {
	return Transition{Target: target}
}

// PhaseBatching is the default topology: every item finishes brainstorming
// before any item starts rough draft, and execution runs over one merged
// task graph.
//
// In route-brainstorm the no_pending_brainstorm_items guard must stay ahead
// of the item_type guards: once the last item finishes brainstorming, the
// current item's stale type would still match a type guard and loop the
// session back into a brainstorm state forever.
func PhaseBatching() *Registry {
	return NewRegistry(TopologyPhaseBatching, []WorkflowState{
		{ID: StateGatherGoals, Skill: "gather-goals", Transitions: []Transition{
			always(StateRouteSession),
		}},
		{ID: StateRouteSession, Transitions: []Transition{
			guarded(StateGenerateTaskGraph, SessionType(domain.SessionQuickfix)),
			guarded(StateRouteBrainstorm, Cond(CondPendingBrainstormItems)),
			always(StateRouteRoughDraft),
		}},
		{ID: StateRouteBrainstorm, Transitions: []Transition{
			guarded(StateRouteRoughDraft, Cond(CondNoPendingBrainstormItems)),
			guarded(StateBrainstormTask, ItemType(domain.ItemTask)),
			guarded(StateBrainstormBugfix, ItemType(domain.ItemBugfix)),
			always(StateBrainstormCode),
		}},
		{ID: StateBrainstormCode, Skill: "brainstorm-code", Transitions: []Transition{
			always(StateRouteBrainstorm),
		}},
		{ID: StateBrainstormTask, Skill: "brainstorm-task", Transitions: []Transition{
			always(StateRouteBrainstorm),
		}},
		{ID: StateBrainstormBugfix, Skill: "brainstorm-bugfix", Transitions: []Transition{
			always(StateRouteBrainstorm),
		}},
		{ID: StateRouteRoughDraft, Transitions: []Transition{
			guarded(StateGenerateTaskGraph, Cond(CondNoPendingRoughDraftItems)),
			always(StateRoughDraft),
		}},
		{ID: StateRoughDraft, Skill: "rough-draft", Transitions: []Transition{
			always(StateRouteRoughDraft),
		}},
		{ID: StateGenerateTaskGraph, Skill: "generate-task-graph", Transitions: []Transition{
			always(StateRouteExecute),
		}},
		{ID: StateRouteExecute, Transitions: []Transition{
			guarded(StateExecuteBatch, Cond(CondBatchesRemaining)),
			always(StateCleanup),
		}},
		{ID: StateExecuteBatch, Skill: "execute-batch", Transitions: []Transition{
			always(StateRouteExecute),
		}},
		{ID: StateCleanup, Skill: "cleanup"},
	})
}

// StrictInterleave is the legacy topology: each item runs its full
// brainstorm, rough draft, and execution before the next item starts.
func StrictInterleave() *Registry {
	return NewRegistry(TopologyStrictInterleave, []WorkflowState{
		{ID: StateGatherGoals, Skill: "gather-goals", Transitions: []Transition{
			always(StateRouteItem),
		}},
		{ID: StateRouteItem, Transitions: []Transition{
			guarded(StateCleanup, Cond(CondNoItemsRemaining)),
			guarded(StateRoughDraftItem, Cond(CondPendingRoughDraftItems)),
			guarded(StateBrainstormTask, ItemType(domain.ItemTask)),
			always(StateBrainstormCode),
		}},
		{ID: StateBrainstormCode, Skill: "brainstorm-code", Transitions: []Transition{
			always(StateRoughDraftItem),
		}},
		{ID: StateBrainstormTask, Skill: "brainstorm-task", Transitions: []Transition{
			always(StateGenerateItemTask),
		}},
		{ID: StateRoughDraftItem, Skill: "rough-draft", Transitions: []Transition{
			always(StateGenerateItemTask),
		}},
		{ID: StateGenerateItemTask, Skill: "generate-task-graph", Transitions: []Transition{
			always(StateExecuteItemBatch),
		}},
		{ID: StateExecuteItemBatch, Skill: "execute-batch", Transitions: []Transition{
			guarded(StateRouteItem, Cond(CondNoBatchesRemaining)),
			always(StateExecuteItemBatch),
		}},
		{ID: StateCleanup, Skill: "cleanup"},
	})
}

// ForTopology returns the registry for a configured topology name.
func ForTopology(name string) (*Registry, error) {
	switch name {
	case TopologyPhaseBatching, "":
		return PhaseBatching(), nil
	case TopologyStrictInterleave:
		return StrictInterleave(), nil
	default:
		return nil, domain.NewEngineError(domain.ErrConfigInvalid.Code, "unknown workflow topology: "+name)
	}
}

// stateLabels maps state ids to display names for presentation layers.
var stateLabels = map[string]string{
	StateGatherGoals:       "Gathering goals",
	StateRouteSession:      "Routing session",
	StateRouteBrainstorm:   "Selecting next item to brainstorm",
	StateBrainstormCode:    "Brainstorming code item",
	StateBrainstormTask:    "Brainstorming task item",
	StateBrainstormBugfix:  "Brainstorming bugfix item",
	StateRouteRoughDraft:   "Selecting next item to draft",
	StateRoughDraft:        "Drafting design",
	StateGenerateTaskGraph: "Generating task graph",
	StateRouteExecute:      "Selecting next batch",
	StateExecuteBatch:      "Executing batch",
	StateCleanup:           "Cleaning up",
	StateRouteItem:         "Selecting next item",
	StateRoughDraftItem:    "Drafting item design",
	StateGenerateItemTask:  "Generating item tasks",
	StateExecuteItemBatch:  "Executing item batch",
}

// StateLabel returns the human-readable label for a state id. Unknown ids
// fall back to the raw id unchanged.
func StateLabel(id string) string {
	if label, ok := stateLabels[id]; ok {
		return label
	}
	return id
}
