package domain

import (
	"fmt"
	"strings"
)

// EngineError is the unified error type for the engine.
// Each error has a numeric code and human-readable message.
type EngineError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("engine error %d: %s", e.Code, e.Message)
}

// NewEngineError creates a new EngineError.
func NewEngineError(code int, msg string) *EngineError {
	return &EngineError{Code: code, Message: msg}
}

// ---- Workflow / FSM errors (-32010 to -32039) ----

var (
	ErrInvalidTransition = &EngineError{Code: -32010, Message: "invalid work item status transition"}
	ErrSessionNotFound   = &EngineError{Code: -32011, Message: "session not found"}
	ErrSessionDone       = &EngineError{Code: -32012, Message: "session already completed"}
	ErrOptimisticLock    = &EngineError{Code: -32013, Message: "optimistic lock conflict: session was modified concurrently"}
	ErrUnknownState      = &EngineError{Code: -32014, Message: "unknown workflow state"}
	ErrUnknownSkill      = &EngineError{Code: -32015, Message: "no state associated with skill"}
	ErrNoTransition      = &EngineError{Code: -32016, Message: "no transition matched"}
	ErrDuplicateSession  = &EngineError{Code: -32017, Message: "session already exists"}
	ErrUnknownStatus     = &EngineError{Code: -32018, Message: "unknown work item status"}
	ErrItemNotFound      = &EngineError{Code: -32019, Message: "work item not found"}
)

// ---- Task graph / scheduler errors (-32040 to -32069) ----

var (
	ErrCyclicDependency = &EngineError{Code: -32040, Message: "task graph contains a cycle"}
	ErrNoTasksFound     = &EngineError{Code: -32041, Message: "no task declarations found"}
	ErrTaskMissingID    = &EngineError{Code: -32042, Message: "task declaration is missing an id"}
	ErrDuplicateTaskID  = &EngineError{Code: -32043, Message: "duplicate task id in declaration"}
	ErrGraphInternal    = &EngineError{Code: -32044, Message: "internal consistency failure while layering task graph"}
	ErrDocumentNotFound = &EngineError{Code: -32045, Message: "document not found"}
)

// ---- Session guard errors (-32100 to -32129) ----

var (
	ErrRateLimitExceeded    = &EngineError{Code: -32103, Message: "sync rate limit exceeded"}
	ErrSessionNotRegistered = &EngineError{Code: -32104, Message: "session is not registered"}
)

// ---- Store / Config errors (-32130 to -32159) ----

var (
	ErrStoreInit     = &EngineError{Code: -32130, Message: "failed to initialize store"}
	ErrConfigInvalid = &EngineError{Code: -32136, Message: "invalid configuration"}
)

// InvalidTransitionError reports an illegal work item status change,
// identifying the item and both statuses.
type InvalidTransitionError struct {
	Item int
	From ItemStatus
	To   ItemStatus
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("engine error %d: item %d: illegal status transition %s -> %s",
		ErrInvalidTransition.Code, e.Item, e.From, e.To)
}

// Code returns the shared InvalidTransition error code.
func (e *InvalidTransitionError) Code() int { return ErrInvalidTransition.Code }

// CycleError reports a dependency cycle. Path lists the task ids along the
// cycle in traversal order, closed on the first id.
type CycleError struct {
	Path []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("engine error %d: dependency cycle: %s",
		ErrCyclicDependency.Code, strings.Join(e.Path, " -> "))
}

// Code returns the shared CyclicDependency error code.
func (e *CycleError) Code() int { return ErrCyclicDependency.Code }
