package workflow

import (
	"github.com/openboard/engine/internal/domain"
)

// NextState resolves the target of the first transition out of the current
// state whose guard holds, evaluating guards in declared order. It returns
// ok=false for terminal states and for states where, contrary to the
// registry invariant, no guard matches and no unconditional fallback
// exists. The same (state, snapshot) pair always resolves the same way.
func NextState(r *Registry, currentStateID string, snap domain.SessionSnapshot) (string, bool, error) {
	state, err := r.State(currentStateID)
	if err != nil {
		return "", false, err
	}
	for _, t := range state.Transitions {
		if t.Guard == nil || Evaluate(*t.Guard, snap) {
			return t.Target, true, nil
		}
	}
	return "", false, nil
}
