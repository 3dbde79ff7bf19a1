// Package workflow implements the Openboard session state machine: guard
// conditions, the work item lifecycle, the declarative state registry, and
// the transition resolver.
package workflow

import (
	"github.com/openboard/engine/internal/domain"
)

// ConditionKind tags a guard condition variant.
type ConditionKind string

const (
	CondItemType                 ConditionKind = "item_type"
	CondSessionType              ConditionKind = "session_type"
	CondNoPendingBrainstormItems ConditionKind = "no_pending_brainstorm_items"
	CondPendingBrainstormItems   ConditionKind = "pending_brainstorm_items"
	CondPendingRoughDraftItems   ConditionKind = "pending_rough_draft_items"
	CondNoPendingRoughDraftItems ConditionKind = "no_pending_rough_draft_items"
	CondBatchesRemaining         ConditionKind = "batches_remaining"
	CondNoBatchesRemaining       ConditionKind = "no_batches_remaining"
	CondNoItemsRemaining         ConditionKind = "no_items_remaining"
)

// Condition is a guard over a session snapshot. Value carries the payload
// for the item_type and session_type kinds and is empty otherwise.
type Condition struct {
	Kind  ConditionKind
	Value string
}

// ItemType builds an item_type condition.
func ItemType(t domain.ItemType) Condition {
	return Condition{Kind: CondItemType, Value: string(t)}
}

// SessionType builds a session_type condition.
func SessionType(t domain.SessionType) Condition {
	return Condition{Kind: CondSessionType, Value: string(t)}
}

// Cond builds a payload-free condition.
func Cond(kind ConditionKind) Condition {
	return Condition{Kind: kind}
}

// Evaluate answers whether the condition holds for the snapshot. It is a
// pure predicate: no side effects, no external calls. Unknown kinds are
// false so a typo in a registry can never open a transition.
func Evaluate(c Condition, snap domain.SessionSnapshot) bool {
	switch c.Kind {
	case CondItemType:
		item := snap.CurrentWorkItem()
		return item != nil && string(item.Type) == c.Value
	case CondSessionType:
		return string(snap.SessionType) == c.Value
	case CondNoPendingBrainstormItems:
		return !hasPendingBrainstorm(snap)
	case CondPendingBrainstormItems:
		return hasPendingBrainstorm(snap)
	case CondPendingRoughDraftItems:
		return hasPendingRoughDraft(snap)
	case CondNoPendingRoughDraftItems:
		return !hasPendingRoughDraft(snap)
	case CondBatchesRemaining:
		return snap.CurrentBatch < len(snap.Batches)
	case CondNoBatchesRemaining:
		return snap.CurrentBatch >= len(snap.Batches)
	case CondNoItemsRemaining:
		for _, item := range snap.Items {
			if item.Status != domain.ItemComplete {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func hasPendingBrainstorm(snap domain.SessionSnapshot) bool {
	for _, item := range snap.Items {
		if item.Status == domain.ItemPending {
			return true
		}
	}
	return false
}

// hasPendingRoughDraft reports whether any code or bugfix item has been
// brainstormed but not completed. Task items never enter rough draft.
func hasPendingRoughDraft(snap domain.SessionSnapshot) bool {
	for _, item := range snap.Items {
		if item.Type == domain.ItemTask {
			continue
		}
		if item.Status == domain.ItemBrainstormed {
			return true
		}
	}
	return false
}
