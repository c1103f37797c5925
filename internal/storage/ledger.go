package storage

import (
	"database/sql"
	"fmt"
	"strings"
)

// GetOrCreateTaskForDate 返回指定日期的任务，不存在则创建
// GetOrCreateTaskForDate returns the task dated date, creating it if absent
func (s *Store) GetOrCreateTaskForDate(date string) (Task, error) {
	date = strings.TrimSpace(date)
	row := s.db.QueryRow(`SELECT id, name, date FROM tasks WHERE date=?`, date)
	var t Task
	err := row.Scan(&t.ID, &t.Name, &t.Date)
	if err == nil {
		return t, nil
	}
	if err != sql.ErrNoRows {
		return Task{}, fmt.Errorf("get task by date: %w", err)
	}

	name := "作业-" + date
	res, err := s.db.Exec(`INSERT INTO tasks (name, date, created_at) VALUES (?, ?, ?)`,
		name, date, nowUTC())
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	return Task{ID: id, Name: name, Date: date}, nil
}

// GetOrCreateTodayTask 返回今日任务，不存在则创建
// GetOrCreateTodayTask returns today's task, creating it if absent
func (s *Store) GetOrCreateTodayTask() (Task, error) {
	return s.GetOrCreateTaskForDate(Today())
}

// CurrentTask 返回日期最新的任务；台账为空时创建今日任务
// CurrentTask returns the most recent task by date, creating today's task
// when the ledger is empty.
func (s *Store) CurrentTask() (Task, error) {
	row := s.db.QueryRow(`SELECT id, name, date FROM tasks ORDER BY date DESC LIMIT 1`)
	var t Task
	err := row.Scan(&t.ID, &t.Name, &t.Date)
	if err == nil {
		return t, nil
	}
	if err != sql.ErrNoRows {
		return Task{}, fmt.Errorf("current task: %w", err)
	}
	return s.GetOrCreateTodayTask()
}

// TaskByID 按 ID 查询任务；未命中返回 ErrNotFound
// TaskByID looks up a task by id; a miss returns ErrNotFound
func (s *Store) TaskByID(taskID int64) (Task, error) {
	row := s.db.QueryRow(`SELECT id, name, date FROM tasks WHERE id=?`, taskID)
	var t Task
	if err := row.Scan(&t.ID, &t.Name, &t.Date); err != nil {
		if err == sql.ErrNoRows {
			return Task{}, fmt.Errorf("task %d: %w", taskID, ErrNotFound)
		}
		return Task{}, fmt.Errorf("task by id: %w", err)
	}
	return t, nil
}

// ListTasks 列出全部任务，日期倒序
// ListTasks lists all tasks, newest date first
func (s *Store) ListTasks() ([]Task, error) {
	rows, err := s.db.Query(`SELECT id, name, date FROM tasks ORDER BY date DESC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return scanTasks(rows)
}

// TasksInDateRange 列出日期区间内的任务，日期升序
// TasksInDateRange lists tasks dated within [start, end], date ascending
func (s *Store) TasksInDateRange(start, end string) ([]Task, error) {
	rows, err := s.db.Query(`SELECT id, name, date FROM tasks WHERE date BETWEEN ? AND ? ORDER BY date`,
		strings.TrimSpace(start), strings.TrimSpace(end))
	if err != nil {
		return nil, fmt.Errorf("tasks in date range: %w", err)
	}
	return scanTasks(rows)
}

// EnsureBackfill 为尚无记录的学生补齐 missing 行（幂等，单事务）。
// 枚举已交/未交前必须先补齐，否则计数偏少；Submit/SetGrade 直接 upsert，
// 不依赖补齐。
// EnsureBackfill materializes a missing row for every student without a
// record under taskID. Idempotent; runs in one transaction. Reads that
// enumerate submitted/missing students call this first.
func (s *Store) EnsureBackfill(taskID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO task_details (task_id, student_id, status, updated_at)
		SELECT ?, s.student_id, 'missing', ?
		FROM students s
		WHERE NOT EXISTS (
			SELECT 1 FROM task_details td
			WHERE td.task_id = ? AND td.student_id = s.student_id
		)`, taskID, nowUTC(), taskID)
	if err != nil {
		return fmt.Errorf("backfill task %d: %w", taskID, err)
	}
	return tx.Commit()
}

// Submit 将学生标记为已交；已有成绩保持不变。
// 调用方须先确认学生存在于花名册（台账不做校验）。
// Submit upserts status=submitted, leaving any existing grade untouched.
// Callers verify the student exists first; the ledger does not.
func (s *Store) Submit(taskID int64, studentID string) error {
	_, err := s.db.Exec(`
		INSERT INTO task_details (task_id, student_id, status, updated_at)
		VALUES (?, ?, 'submitted', ?)
		ON CONFLICT(task_id, student_id) DO UPDATE SET
			status='submitted',
			updated_at=excluded.updated_at`,
		taskID, strings.TrimSpace(studentID), nowUTC())
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	return nil
}

// SetGrade 设置成绩并同时置为已交，覆盖旧成绩
// SetGrade upserts status=submitted with the given grade, overwriting any
// prior grade.
func (s *Store) SetGrade(taskID int64, studentID, grade string) error {
	_, err := s.db.Exec(`
		INSERT INTO task_details (task_id, student_id, status, grade, updated_at)
		VALUES (?, ?, 'submitted', ?, ?)
		ON CONFLICT(task_id, student_id) DO UPDATE SET
			status='submitted',
			grade=excluded.grade,
			updated_at=excluded.updated_at`,
		taskID, strings.TrimSpace(studentID), grade, nowUTC())
	if err != nil {
		return fmt.Errorf("set grade: %w", err)
	}
	return nil
}

// Unsubmit 撤销提交：恢复为未交并清除成绩
// Unsubmit reverts one record to missing and clears its grade
func (s *Store) Unsubmit(taskID int64, studentID string) error {
	_, err := s.db.Exec(`
		UPDATE task_details SET status='missing', grade=NULL, updated_at=?
		WHERE task_id=? AND student_id=?`,
		nowUTC(), taskID, strings.TrimSpace(studentID))
	if err != nil {
		return fmt.Errorf("unsubmit: %w", err)
	}
	return nil
}

// ResetTask 将任务下所有记录重置为未交、无成绩（不可恢复）
// ResetTask sets every record under taskID back to missing with no grade
func (s *Store) ResetTask(taskID int64) error {
	if err := s.EnsureBackfill(taskID); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		UPDATE task_details SET status='missing', grade=NULL, updated_at=?
		WHERE task_id=?`, nowUTC(), taskID)
	if err != nil {
		return fmt.Errorf("reset task: %w", err)
	}
	return nil
}

// TaskDetails 返回任务下每名学生的提交情况，按班级、学号排序
// TaskDetails returns every student's state under taskID ordered by class,
// then student id. Backfills first so the roster is fully covered.
func (s *Store) TaskDetails(taskID int64) ([]TaskDetail, error) {
	if err := s.EnsureBackfill(taskID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`
		SELECT s.student_id, s.name, s.class,
		       COALESCE(td.status, 'missing') AS status,
		       td.grade
		FROM students s
		LEFT JOIN task_details td ON s.student_id = td.student_id AND td.task_id = ?
		ORDER BY s.class, s.student_id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("task details: %w", err)
	}
	return scanDetails(rows)
}

// SubmittedStudents 返回任务下已交学生，按班级、学号排序
// SubmittedStudents returns students with status=submitted under taskID
func (s *Store) SubmittedStudents(taskID int64) ([]Student, error) {
	if err := s.EnsureBackfill(taskID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`
		SELECT s.student_id, s.name, s.class
		FROM task_details td
		JOIN students s ON td.student_id = s.student_id
		WHERE td.task_id = ? AND td.status = 'submitted'
		ORDER BY s.class, s.student_id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("submitted students: %w", err)
	}
	return scanStudents(rows)
}

// MissingStudents 返回任务下未交学生，可按班级过滤
// MissingStudents returns students still missing under taskID, optionally
// filtered by class.
func (s *Store) MissingStudents(taskID int64, class string) ([]Student, error) {
	if err := s.EnsureBackfill(taskID); err != nil {
		return nil, err
	}
	class = strings.TrimSpace(class)
	var (
		rows *sql.Rows
		err  error
	)
	if class != "" {
		rows, err = s.db.Query(`
			SELECT s.student_id, s.name, s.class
			FROM students s
			LEFT JOIN task_details td ON s.student_id = td.student_id AND td.task_id = ?
			WHERE (td.status IS NULL OR td.status = 'missing') AND s.class = ?
			ORDER BY s.student_id`, taskID, class)
	} else {
		rows, err = s.db.Query(`
			SELECT s.student_id, s.name, s.class
			FROM students s
			LEFT JOIN task_details td ON s.student_id = td.student_id AND td.task_id = ?
			WHERE td.status IS NULL OR td.status = 'missing'
			ORDER BY s.class, s.student_id`, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("missing students: %w", err)
	}
	return scanStudents(rows)
}

// StudentHistory 返回学生在全部任务中的记录，日期倒序；
// 查无此人返回空结果（删除学生后历史随之清空）。
// StudentHistory returns one student's record for every task, newest
// first. An unknown student yields an empty result, so history vanishes
// with the roster entry after a delete.
func (s *Store) StudentHistory(studentID string) ([]HistoryEntry, error) {
	st, err := s.GetStudent(studentID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, nil
	}
	rows, err := s.db.Query(`
		SELECT t.id, t.name, t.date,
		       COALESCE(td.status, 'missing') AS status,
		       td.grade
		FROM tasks t
		LEFT JOIN task_details td ON t.id = td.task_id AND td.student_id = ?
		ORDER BY t.date DESC`, strings.TrimSpace(studentID))
	if err != nil {
		return nil, fmt.Errorf("student history: %w", err)
	}
	defer rows.Close()

	// 非 nil 空切片区分“查无此人”与“尚无任务” / Non-nil empty slice keeps
	// "unknown student" distinguishable from "no tasks yet"
	entries := []HistoryEntry{}
	for rows.Next() {
		var e HistoryEntry
		var grade sql.NullString
		if err := rows.Scan(&e.TaskID, &e.TaskName, &e.Date, &e.Status, &grade); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if grade.Valid {
			e.Grade = &grade.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// TodayStats 返回当前任务的总数/已交/未交统计
// TodayStats returns total/submitted/missing counts for the current task
func (s *Store) TodayStats() (Stats, error) {
	task, err := s.CurrentTask()
	if err != nil {
		return Stats{}, err
	}
	return s.TaskStats(task.ID)
}

// TaskStats 返回指定任务的提交统计
// TaskStats returns submission counts for taskID
func (s *Store) TaskStats(taskID int64) (Stats, error) {
	details, err := s.TaskDetails(taskID)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{Total: len(details)}
	for _, d := range details {
		if d.Status == StatusSubmitted {
			stats.Submitted++
		}
	}
	stats.Missing = stats.Total - stats.Submitted
	return stats, nil
}

func scanTasks(rows *sql.Rows) ([]Task, error) {
	defer rows.Close()
	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Name, &t.Date); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func scanDetails(rows *sql.Rows) ([]TaskDetail, error) {
	defer rows.Close()
	var details []TaskDetail
	for rows.Next() {
		var d TaskDetail
		var grade sql.NullString
		if err := rows.Scan(&d.StudentID, &d.Name, &d.Class, &d.Status, &grade); err != nil {
			return nil, fmt.Errorf("scan detail: %w", err)
		}
		if grade.Valid {
			d.Grade = &grade.String
		}
		details = append(details, d)
	}
	return details, rows.Err()
}
