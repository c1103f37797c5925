package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"assignflow/internal/chat"
	"assignflow/internal/storage"
)

// TodayStatsTool 今日提交统计
type TodayStatsTool struct {
	ledger Ledger
}

func NewTodayStatsTool(ledger Ledger) *TodayStatsTool {
	return &TodayStatsTool{ledger: ledger}
}

func (t *TodayStatsTool) Name() string { return "get_today_stats" }

func (t *TodayStatsTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name:        t.Name(),
			Description: "获取今日作业提交统计（总人数、已交、未交）。无需参数。",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
		},
	}
}

func (t *TodayStatsTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	_ = args
	stats, err := t.ledger.TodayStats()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("总人数:%d, 已交:%d, 未交:%d", stats.Total, stats.Submitted, stats.Missing), nil
}

// MarkSubmittedTool 将学生标记为已交（针对当前任务）
type MarkSubmittedTool struct {
	roster      Roster
	ledger      Ledger
	currentTask CurrentTaskFunc
}

func NewMarkSubmittedTool(roster Roster, ledger Ledger, currentTask CurrentTaskFunc) *MarkSubmittedTool {
	return &MarkSubmittedTool{roster: roster, ledger: ledger, currentTask: currentTask}
}

func (t *MarkSubmittedTool) Name() string { return "mark_student_submitted" }

func (t *MarkSubmittedTool) Mutating() bool { return true }

func (t *MarkSubmittedTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name:        t.Name(),
			Description: "将学生标记为已提交当前作业。参数：student_id (string, 6位学号)。返回操作结果。",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"student_id": map[string]any{"type": "string", "description": "6位学号"},
				},
				"required": []string{"student_id"},
			},
		},
	}
}

func (t *MarkSubmittedTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var in struct {
		StudentID string `json:"student_id"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("mark_student_submitted args: %w", err)
	}
	in.StudentID = strings.TrimSpace(in.StudentID)
	if in.StudentID == "" {
		return "", fmt.Errorf("mark_student_submitted: student_id is required")
	}
	student, err := t.roster.GetStudent(in.StudentID)
	if err != nil {
		return "", err
	}
	if student == nil {
		return fmt.Sprintf("学号 %s 不在花名册", in.StudentID), nil
	}
	task, err := t.currentTask()
	if err != nil {
		return "", err
	}
	if err := t.ledger.Submit(task.ID, in.StudentID); err != nil {
		return "", err
	}
	return fmt.Sprintf("学生 %s 已标记为已交", in.StudentID), nil
}

// SetGradeTool 设置学生当前任务的成绩（隐含已交）
type SetGradeTool struct {
	roster      Roster
	ledger      Ledger
	currentTask CurrentTaskFunc
}

func NewSetGradeTool(roster Roster, ledger Ledger, currentTask CurrentTaskFunc) *SetGradeTool {
	return &SetGradeTool{roster: roster, ledger: ledger, currentTask: currentTask}
}

func (t *SetGradeTool) Name() string { return "set_student_grade" }

func (t *SetGradeTool) Mutating() bool { return true }

func (t *SetGradeTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name:        t.Name(),
			Description: "设置学生当前作业的成绩，同时将其标记为已交。参数：student_id (string, 6位学号), grade (string, 成绩等级，如'A'、'B+'、'优')。",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"student_id": map[string]any{"type": "string", "description": "6位学号"},
					"grade":      map[string]any{"type": "string", "description": "成绩等级，如'A'、'B+'、'优'"},
				},
				"required": []string{"student_id", "grade"},
			},
		},
	}
}

func (t *SetGradeTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var in struct {
		StudentID string `json:"student_id"`
		Grade     string `json:"grade"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("set_student_grade args: %w", err)
	}
	in.StudentID = strings.TrimSpace(in.StudentID)
	in.Grade = strings.TrimSpace(in.Grade)
	if in.StudentID == "" || in.Grade == "" {
		return "", fmt.Errorf("set_student_grade: student_id and grade are required")
	}
	student, err := t.roster.GetStudent(in.StudentID)
	if err != nil {
		return "", err
	}
	if student == nil {
		return fmt.Sprintf("学号 %s 不在花名册", in.StudentID), nil
	}
	task, err := t.currentTask()
	if err != nil {
		return "", err
	}
	if err := t.ledger.SetGrade(task.ID, in.StudentID, in.Grade); err != nil {
		return "", err
	}
	return fmt.Sprintf("学生 %s 成绩已设置为 %s", in.StudentID, in.Grade), nil
}

// TaskListTool 列出全部作业任务
type TaskListTool struct {
	ledger Ledger
}

func NewTaskListTool(ledger Ledger) *TaskListTool {
	return &TaskListTool{ledger: ledger}
}

func (t *TaskListTool) Name() string { return "get_all_tasks" }

func (t *TaskListTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name:        t.Name(),
			Description: "获取所有作业任务列表（按日期从新到旧）。无需参数。",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
		},
	}
}

func (t *TaskListTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	_ = args
	tasks, err := t.ledger.ListTasks()
	if err != nil {
		return "", err
	}
	if tasks == nil {
		tasks = []storage.Task{}
	}
	return mustJSON(tasks), nil
}

// TaskDetailsTool 查询某次作业的逐学生明细
type TaskDetailsTool struct {
	ledger Ledger
}

func NewTaskDetailsTool(ledger Ledger) *TaskDetailsTool {
	return &TaskDetailsTool{ledger: ledger}
}

func (t *TaskDetailsTool) Name() string { return "get_task_details" }

func (t *TaskDetailsTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name:        t.Name(),
			Description: "获取指定作业任务的逐学生提交明细。参数：task_id (integer, 任务ID，可先用get_all_tasks查询)。",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"task_id": map[string]any{"type": "integer", "description": "任务ID"},
				},
				"required": []string{"task_id"},
			},
		},
	}
}

func (t *TaskDetailsTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var in struct {
		TaskID int64 `json:"task_id"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("get_task_details args: %w", err)
	}
	if _, err := t.ledger.TaskByID(in.TaskID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Sprintf("未找到任务 %d", in.TaskID), nil
		}
		return "", err
	}
	details, err := t.ledger.TaskDetails(in.TaskID)
	if err != nil {
		return "", err
	}
	if details == nil {
		details = []storage.TaskDetail{}
	}
	return mustJSON(details), nil
}

// StudentHistoryTool 查询学生的历次提交记录
type StudentHistoryTool struct {
	ledger Ledger
}

func NewStudentHistoryTool(ledger Ledger) *StudentHistoryTool {
	return &StudentHistoryTool{ledger: ledger}
}

func (t *StudentHistoryTool) Name() string { return "get_student_history" }

func (t *StudentHistoryTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name:        t.Name(),
			Description: "获取学生历次作业提交记录（按日期从新到旧）。参数：student_id (string, 6位学号)。",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"student_id": map[string]any{"type": "string", "description": "6位学号"},
				},
				"required": []string{"student_id"},
			},
		},
	}
}

func (t *StudentHistoryTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var in struct {
		StudentID string `json:"student_id"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("get_student_history args: %w", err)
	}
	in.StudentID = strings.TrimSpace(in.StudentID)
	if in.StudentID == "" {
		return "", fmt.Errorf("get_student_history: student_id is required")
	}
	history, err := t.ledger.StudentHistory(in.StudentID)
	if err != nil {
		return "", err
	}
	if history == nil {
		return "未找到", nil
	}
	return mustJSON(history), nil
}

// ExportHintTool 导出由界面侧完成，工具只返回指引
type ExportHintTool struct{}

func NewExportHintTool() *ExportHintTool { return &ExportHintTool{} }

func (t *ExportHintTool) Name() string { return "export_current_class" }

func (t *ExportHintTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name:        t.Name(),
			Description: "导出当前班级的提交报告。无需参数。",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
		},
	}
}

func (t *ExportHintTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	_ = args
	return "请手动前往导出报告页面进行导出操作。", nil
}
