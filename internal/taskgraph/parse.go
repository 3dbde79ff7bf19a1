package taskgraph

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/openboard/engine/internal/domain"
)

// taskDoc is the on-disk shape of a task declaration document.
type taskDoc struct {
	Tasks []domain.TaskGraphTask `yaml:"tasks"`
}

// ParseTasks decodes a YAML task declaration document. Every task must
// carry an id, and ids must be unique within one document; dangling
// dependsOn references are deliberately tolerated.
func ParseTasks(content string) ([]domain.TaskGraphTask, error) {
	var doc taskDoc
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return nil, fmt.Errorf("parse task document: %w", err)
	}

	seen := make(map[string]bool, len(doc.Tasks))
	for i, t := range doc.Tasks {
		if t.ID == "" {
			return nil, domain.NewEngineError(domain.ErrTaskMissingID.Code,
				fmt.Sprintf("task at index %d has no id", i))
		}
		if seen[t.ID] {
			return nil, domain.NewEngineError(domain.ErrDuplicateTaskID.Code,
				fmt.Sprintf("duplicate task id %q", t.ID))
		}
		seen[t.ID] = true
	}
	return doc.Tasks, nil
}

// MergeDeclarations combines several per-item declaration lists into one,
// deduplicated by task id in first-seen order.
func MergeDeclarations(lists ...[]domain.TaskGraphTask) []domain.TaskGraphTask {
	var merged []domain.TaskGraphTask
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, t := range list {
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			merged = append(merged, t)
		}
	}
	return merged
}
