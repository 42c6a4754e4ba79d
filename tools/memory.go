package tools

import (
	"context"
	"encoding/json"

	"github.com/m4xw311/bachmcp/errors"
	"github.com/m4xw311/bachmcp/memory"
)

// MemoryReadTool returns the notes for one project, or lists all projects
// when none is named.
type MemoryReadTool struct {
	store *memory.Store
}

func (t *MemoryReadTool) Name() string { return "project_memory_read" }
func (t *MemoryReadTool) Description() string {
	return "Read what was remembered about a project (intent, workflow, notes). " +
		"Without a project name, list known projects and when they were last updated."
}
func (t *MemoryReadTool) Params() []Param {
	return []Param{{Name: "project", Type: String, Description: "Project name; empty lists all."}}
}

func (t *MemoryReadTool) Execute(ctx context.Context, raw map[string]any) (string, error) {
	project, err := args(raw).str("project", "")
	if err != nil {
		return "", err
	}
	if project == "" {
		projects, err := t.store.Projects()
		if err != nil {
			return "", err
		}
		return encodeJSON(map[string]any{"projects": projects})
	}
	entry, ok, err := t.store.Read(project)
	if err != nil {
		return "", err
	}
	if !ok {
		return encodeJSON(map[string]any{
			"project": project,
			"memory":  nil,
			"note":    "No memory found. Use project_memory_write to create it.",
		})
	}
	return encodeJSON(map[string]any{"project": project, "memory": entry})
}

// MemoryWriteTool merges non-empty fields into a project's notes.
type MemoryWriteTool struct {
	store *memory.Store
}

func (t *MemoryWriteTool) Name() string { return "project_memory_write" }
func (t *MemoryWriteTool) Description() string {
	return "Remember a project's intent, workflow and notes. Empty fields keep their stored value."
}
func (t *MemoryWriteTool) Params() []Param {
	return []Param{
		{Name: "project", Type: String, Description: "Project name.", Required: true},
		{Name: "intent", Type: String, Description: "What the piece is meant to be."},
		{Name: "workflow", Type: String, Description: "How the work is being done."},
		{Name: "notes", Type: String, Description: "Anything else worth keeping."},
	}
}

func (t *MemoryWriteTool) Execute(ctx context.Context, raw map[string]any) (string, error) {
	a := args(raw)
	project, err := a.requiredStr("project")
	if err != nil {
		return "", err
	}
	var update memory.Entry
	for name, dst := range map[string]*string{"intent": &update.Intent, "workflow": &update.Workflow, "notes": &update.Notes} {
		if *dst, err = a.str(name, ""); err != nil {
			return "", err
		}
	}
	entry, err := t.store.Write(project, update)
	if err != nil {
		return "", err
	}
	return encodeJSON(map[string]any{"project": project, "memory": entry})
}

func encodeJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", errors.Wrapf(err, "failed to encode result")
	}
	return string(data), nil
}
