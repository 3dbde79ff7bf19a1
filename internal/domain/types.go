// Package domain defines the core types for the Openboard workflow engine.
package domain

// ItemType classifies a work item gathered from session goals.
type ItemType string

const (
	ItemCode   ItemType = "code"
	ItemTask   ItemType = "task"
	ItemBugfix ItemType = "bugfix"
)

// ItemStatus is the lifecycle status of a work item.
// Status is monotonic: pending -> brainstormed -> complete.
type ItemStatus string

const (
	ItemPending      ItemStatus = "pending"
	ItemBrainstormed ItemStatus = "brainstormed"
	ItemComplete     ItemStatus = "complete"
)

// SessionType selects the workflow path a session follows.
type SessionType string

const (
	SessionFeature  SessionType = "feature"
	SessionQuickfix SessionType = "quickfix"
)

// SessionStatus represents the overall status of a session.
type SessionStatus string

const (
	SessionRunning SessionStatus = "running"
	SessionDone    SessionStatus = "completed"
)

// WorkItem is a single unit of declared work within a session.
// Items are never deleted, only marked complete.
type WorkItem struct {
	Number int        `json:"number"`
	Type   ItemType   `json:"type"`
	Status ItemStatus `json:"status"`
}

// BatchTaskStatus is the execution status of a task within a batch.
type BatchTaskStatus string

const (
	TaskPending  BatchTaskStatus = "pending"
	TaskComplete BatchTaskStatus = "complete"
)

// TaskGraphTask is one task declaration parsed from a task-graph document.
// DependsOn entries that reference ids absent from the declaration set are
// tolerated and treated as already satisfied.
type TaskGraphTask struct {
	ID          string   `json:"id" yaml:"id"`
	Files       []string `json:"files,omitempty" yaml:"files,omitempty"`
	Tests       []string `json:"tests,omitempty" yaml:"tests,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Parallel    bool     `json:"parallel,omitempty" yaml:"parallel,omitempty"`
	DependsOn   []string `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
}

// BatchTask is a task as scheduled inside a batch.
type BatchTask struct {
	ID        string          `json:"id"`
	Status    BatchTaskStatus `json:"status"`
	DependsOn []string        `json:"dependsOn,omitempty"`
}

// TaskBatch is one dependency-free execution wave. Batches are replaced
// wholesale on every re-sync; only the completed/pending id sets persist
// across syncs.
type TaskBatch struct {
	ID     string          `json:"id"`
	Tasks  []BatchTask     `json:"tasks"`
	Status BatchTaskStatus `json:"status"`
}

// SessionSnapshot is the read-only view of session progress consumed by
// transition guards. CurrentItem is 0 when no item is selected.
type SessionSnapshot struct {
	StateID        string
	SessionType    SessionType
	Items          []WorkItem
	CurrentItem    int
	Batches        []TaskBatch
	CurrentBatch   int
	CompletedTasks map[string]bool
	PendingTasks   map[string]bool
}

// CurrentWorkItem returns the item CurrentItem points at, or nil.
func (s SessionSnapshot) CurrentWorkItem() *WorkItem {
	for i := range s.Items {
		if s.Items[i].Number == s.CurrentItem {
			return &s.Items[i]
		}
	}
	return nil
}

// SessionState is the persisted record for one session.
type SessionState struct {
	Name           string        `json:"name"`
	SessionType    SessionType   `json:"session_type"`
	StateID        string        `json:"state_id"`
	Status         SessionStatus `json:"status"`
	StateVersion   int64         `json:"state_version"`
	Items          []WorkItem    `json:"items"`
	CurrentItem    int           `json:"current_item"`
	Batches        []TaskBatch   `json:"batches"`
	CurrentBatch   int           `json:"current_batch"`
	CompletedTasks []string      `json:"completed_tasks"`
	PendingTasks   []string      `json:"pending_tasks"`
	LastEventSeq   int64         `json:"last_event_seq"`
	UpdatedAtUnix  int64         `json:"updated_at_unix"`
}

// Snapshot builds the guard view from the persisted record.
func (s *SessionState) Snapshot() SessionSnapshot {
	completed := make(map[string]bool, len(s.CompletedTasks))
	for _, id := range s.CompletedTasks {
		completed[id] = true
	}
	pending := make(map[string]bool, len(s.PendingTasks))
	for _, id := range s.PendingTasks {
		pending[id] = true
	}
	return SessionSnapshot{
		StateID:        s.StateID,
		SessionType:    s.SessionType,
		Items:          s.Items,
		CurrentItem:    s.CurrentItem,
		Batches:        s.Batches,
		CurrentBatch:   s.CurrentBatch,
		CompletedTasks: completed,
		PendingTasks:   pending,
	}
}

// WorkflowEvent represents an event in the session event log.
type WorkflowEvent struct {
	ID          string `json:"id"`
	Session     string `json:"session"`
	SeqNo       int64  `json:"seq_no"`
	StateID     string `json:"state_id"`
	EventType   string `json:"event_type"`
	PayloadJSON string `json:"payload_json"`
	CreatedAt   int64  `json:"created_at"`
}

// DocumentKind distinguishes the declaration documents a session owns.
type DocumentKind string

const (
	// DocTaskGraph is the consolidated task-graph document for a session.
	DocTaskGraph DocumentKind = "task-graph"
	// DocItemTasks is a per-item task declaration document.
	DocItemTasks DocumentKind = "item-tasks"
)

// Document is a stored declaration document. Content is YAML.
type Document struct {
	Session    string       `json:"session"`
	Kind       DocumentKind `json:"kind"`
	ItemNumber int          `json:"item_number"`
	Content    string       `json:"content"`
	UpdatedAt  int64        `json:"updated_at"`
}
