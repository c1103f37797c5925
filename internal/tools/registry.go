package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"assignflow/internal/chat"
)

type Registry struct {
	tools map[string]Tool
}

func NewRegistry(ts ...Tool) *Registry {
	m := make(map[string]Tool, len(ts))
	for _, t := range ts {
		m[t.Name()] = t
	}
	return &Registry{tools: m}
}

func (r *Registry) Definitions() []chat.ToolDef {
	names := r.Names()
	out := make([]chat.ToolDef, 0, len(names))
	for _, name := range names {
		out = append(out, r.tools[name].Definition())
	}
	return out
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	return t.Execute(ctx, args)
}

// IsMutating 判断工具是否会修改共享状态
// IsMutating reports whether a tool changes shared state
func (r *Registry) IsMutating(name string) bool {
	t, ok := r.tools[name]
	if !ok {
		return false
	}
	m, ok := t.(Mutator)
	return ok && m.Mutating()
}

// DefaultRegistry 装配全套助手工具
// DefaultRegistry assembles the full assistant tool set
func DefaultRegistry(roster Roster, ledger Ledger, currentTask CurrentTaskFunc) *Registry {
	return NewRegistry(
		NewStudentInfoTool(roster),
		NewStudentsByClassTool(roster),
		NewStudentsByIDRangeTool(roster),
		NewClassListTool(roster),
		NewAddStudentTool(roster),
		NewUpdateStudentTool(roster),
		NewDeleteStudentTool(roster),
		NewTodayStatsTool(ledger),
		NewMarkSubmittedTool(roster, ledger, currentTask),
		NewSetGradeTool(roster, ledger, currentTask),
		NewTaskListTool(ledger),
		NewTaskDetailsTool(ledger),
		NewStudentHistoryTool(ledger),
		NewExportHintTool(),
	)
}
