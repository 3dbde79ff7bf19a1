package workflow

import (
	"github.com/openboard/engine/internal/domain"
)

// itemTransitions defines the legal status transitions for work items.
// Each key is a source status, and the value is the set of valid targets.
var itemTransitions = map[domain.ItemStatus]map[domain.ItemStatus]bool{
	domain.ItemPending:      {domain.ItemBrainstormed: true},
	domain.ItemBrainstormed: {domain.ItemComplete: true},
	domain.ItemComplete:     {},
}

// UpdateItemStatus validates and applies a status transition, returning a
// new WorkItem value. The input is never mutated; callers must replace
// their stored copy.
func UpdateItemStatus(item domain.WorkItem, status domain.ItemStatus) (domain.WorkItem, error) {
	targets, ok := itemTransitions[item.Status]
	if !ok || !targets[status] {
		return item, &domain.InvalidTransitionError{Item: item.Number, From: item.Status, To: status}
	}
	updated := item
	updated.Status = status
	return updated, nil
}

// legacyStatuses maps per-stage statuses from the old schema onto the
// current three-value enum.
var legacyStatuses = map[string]domain.ItemStatus{
	"documented": domain.ItemBrainstormed,
	"interface":  domain.ItemComplete,
	"pseudocode": domain.ItemComplete,
	"skeleton":   domain.ItemComplete,
}

// MigrateItemStatus maps a stored status string onto the current enum.
// Current values pass through unchanged, so a second migration pass is a
// no-op. Unknown values fail rather than silently defaulting.
func MigrateItemStatus(status string) (domain.ItemStatus, error) {
	switch domain.ItemStatus(status) {
	case domain.ItemPending, domain.ItemBrainstormed, domain.ItemComplete:
		return domain.ItemStatus(status), nil
	}
	if mapped, ok := legacyStatuses[status]; ok {
		return mapped, nil
	}
	return "", domain.NewEngineError(domain.ErrUnknownStatus.Code, "unknown work item status: "+status)
}

// MigrateItems migrates every item in place-by-value and returns the new
// slice. Used when loading sessions created under the older schema.
func MigrateItems(items []domain.WorkItem) ([]domain.WorkItem, error) {
	out := make([]domain.WorkItem, len(items))
	for i, item := range items {
		status, err := MigrateItemStatus(string(item.Status))
		if err != nil {
			return nil, err
		}
		out[i] = item
		out[i].Status = status
	}
	return out, nil
}
