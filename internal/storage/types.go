package storage

// 提交状态 / Submission status values
const (
	StatusMissing   = "missing"
	StatusSubmitted = "submitted"
)

// Student 花名册中的一名学生，以学号为唯一键
// Student is one roster entry, keyed by the fixed-width student id
type Student struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Class     string `json:"class"`
}

// Task 一次有日期的作业任务
// Task is one dated assignment
type Task struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Date string `json:"date"` // ISO 日期 / ISO calendar date (YYYY-MM-DD)
}

// TaskDetail 某任务下一名学生的提交情况（未物化的记录视为 missing）
// TaskDetail is one student's submission state under a task; an
// unmaterialized row reads as missing with no grade.
type TaskDetail struct {
	StudentID string  `json:"student_id"`
	Name      string  `json:"name"`
	Class     string  `json:"class"`
	Status    string  `json:"status"`
	Grade     *string `json:"grade"`
}

// HistoryEntry 学生在历史任务中的一条记录
// HistoryEntry is one row of a student's per-task history
type HistoryEntry struct {
	TaskID   int64   `json:"task_id"`
	TaskName string  `json:"task_name"`
	Date     string  `json:"date"`
	Status   string  `json:"status"`
	Grade    *string `json:"grade"`
}

// Stats 当日提交统计
// Stats summarizes submission counts for a task
type Stats struct {
	Total     int `json:"total"`
	Submitted int `json:"submitted"`
	Missing   int `json:"missing"`
}
