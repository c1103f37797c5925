package tools

import (
	"context"
	"encoding/json"

	"assignflow/internal/chat"
	"assignflow/internal/storage"
)

type Tool interface {
	Name() string
	Definition() chat.ToolDef
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// Mutator 标记会修改花名册或台账状态的工具；调度方在其成功执行后
// 触发“状态已变更”通知以刷新依赖视图。
// Mutator marks tools whose successful execution changes roster or ledger
// state; the dispatcher fires the state-changed notification after them.
type Mutator interface {
	Mutating() bool
}

// CurrentTaskFunc 提供当前任务（由界面上下文注入，不使用全局量）
// CurrentTaskFunc supplies the current task, injected from the UI context
type CurrentTaskFunc func() (storage.Task, error)

// Roster 工具所需的花名册操作子集
// Roster is the roster surface the tools consume
type Roster interface {
	GetStudent(studentID string) (*storage.Student, error)
	StudentsByClass(class string) ([]storage.Student, error)
	StudentsByIDRange(startID, endID string) ([]storage.Student, error)
	ListClasses() ([]string, error)
	AddStudent(st storage.Student) error
	UpdateStudent(studentID string, name, class *string) error
	DeleteStudent(studentID string) error
}

// Ledger 工具所需的任务台账操作子集
// Ledger is the task-ledger surface the tools consume
type Ledger interface {
	Submit(taskID int64, studentID string) error
	SetGrade(taskID int64, studentID, grade string) error
	TodayStats() (storage.Stats, error)
	ListTasks() ([]storage.Task, error)
	TaskByID(taskID int64) (storage.Task, error)
	TaskDetails(taskID int64) ([]storage.TaskDetail, error)
	StudentHistory(studentID string) ([]storage.HistoryEntry, error)
}
