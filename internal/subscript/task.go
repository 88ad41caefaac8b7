package subscript

import "strings"

// Status is a task's position in its lifecycle.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Task is one queued sub-script.
type Task struct {
	ID      int64
	Code    string
	Imports []string
	Args    []any
	Status  Status
}

// bindings lists the globals bound to the coordinator: the progress hook
// first, then the declared imports.
func (t *Task) bindings() []string {
	names := []string{ProgressImport}
	for _, name := range t.Imports {
		if name != ProgressImport {
			names = append(names, name)
		}
	}
	return names
}

// SplitImports splits a comma-separated import list as scripts pass it.
func SplitImports(list string) []string {
	if list == "" {
		return nil
	}
	return strings.Split(list, ",")
}
