package workflow

import (
	"testing"
)

func TestRegistry_StateLookup(t *testing.T) {
	r := PhaseBatching()

	state, err := r.State(StateRouteBrainstorm)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state.Skill != "" {
		t.Errorf("routing state has skill %q, want none", state.Skill)
	}
	if len(state.Transitions) != 4 {
		t.Errorf("route-brainstorm has %d transitions, want 4", len(state.Transitions))
	}

	if _, err := r.State("no-such-state"); err == nil {
		t.Error("expected error for unknown state id, got nil")
	}
}

func TestRegistry_StateForSkill(t *testing.T) {
	r := PhaseBatching()

	state, err := r.StateForSkill("execute-batch")
	if err != nil {
		t.Fatalf("StateForSkill: %v", err)
	}
	if state.ID != StateExecuteBatch {
		t.Errorf("StateForSkill(execute-batch) = %q, want %q", state.ID, StateExecuteBatch)
	}

	if _, err := r.StateForSkill("paint-the-shed"); err == nil {
		t.Error("expected error for unknown skill, got nil")
	}
}

func TestRegistry_StateForSkill_FirstDeclared(t *testing.T) {
	// strict-interleave declares the rough-draft skill on rough-draft-item.
	r := StrictInterleave()
	state, err := r.StateForSkill("rough-draft")
	if err != nil {
		t.Fatalf("StateForSkill: %v", err)
	}
	if state.ID != StateRoughDraftItem {
		t.Errorf("StateForSkill(rough-draft) = %q, want %q", state.ID, StateRoughDraftItem)
	}
}

func TestRegistry_Initial(t *testing.T) {
	for _, r := range []*Registry{PhaseBatching(), StrictInterleave()} {
		if r.Initial() != StateGatherGoals {
			t.Errorf("%s initial state = %q, want %q", r.Name(), r.Initial(), StateGatherGoals)
		}
	}
}

func TestRegistry_UnconditionalLast(t *testing.T) {
	// Every non-terminal state ends with an unconditional transition, and no
	// guarded transition follows an unconditional one.
	for _, r := range []*Registry{PhaseBatching(), StrictInterleave()} {
		for _, s := range r.states {
			if len(s.Transitions) == 0 {
				continue
			}
			for i, tr := range s.Transitions {
				if tr.Guard == nil && i != len(s.Transitions)-1 {
					t.Errorf("%s/%s: unconditional transition at index %d is not last", r.Name(), s.ID, i)
				}
			}
			if s.Transitions[len(s.Transitions)-1].Guard != nil {
				t.Errorf("%s/%s: last transition is guarded; state can dead-end", r.Name(), s.ID)
			}
		}
	}
}

func TestRegistry_TransitionTargetsExist(t *testing.T) {
	for _, r := range []*Registry{PhaseBatching(), StrictInterleave()} {
		for _, s := range r.states {
			for _, tr := range s.Transitions {
				if _, err := r.State(tr.Target); err != nil {
					t.Errorf("%s/%s: transition targets unknown state %q", r.Name(), s.ID, tr.Target)
				}
			}
		}
	}
}

func TestForTopology(t *testing.T) {
	r, err := ForTopology("")
	if err != nil {
		t.Fatalf("ForTopology(empty): %v", err)
	}
	if r.Name() != TopologyPhaseBatching {
		t.Errorf("default topology = %q, want %q", r.Name(), TopologyPhaseBatching)
	}

	r, err = ForTopology(TopologyStrictInterleave)
	if err != nil {
		t.Fatalf("ForTopology(strict-interleave): %v", err)
	}
	if r.Name() != TopologyStrictInterleave {
		t.Errorf("topology = %q, want %q", r.Name(), TopologyStrictInterleave)
	}

	if _, err := ForTopology("round-robin"); err == nil {
		t.Error("expected error for unknown topology, got nil")
	}
}

func TestStateLabel(t *testing.T) {
	if got := StateLabel(StateExecuteBatch); got != "Executing batch" {
		t.Errorf("StateLabel(execute-batch) = %q", got)
	}
	// Unknown ids fall back to the raw id.
	if got := StateLabel("mystery-state"); got != "mystery-state" {
		t.Errorf("StateLabel(mystery-state) = %q, want raw id", got)
	}
}
