package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// AddStudent 按学号插入或更新学生（花名册 upsert 语义）
// AddStudent upserts a roster entry keyed by student id
func (s *Store) AddStudent(st Student) error {
	st.StudentID = strings.TrimSpace(st.StudentID)
	if st.StudentID == "" {
		return fmt.Errorf("student id is empty")
	}
	_, err := s.db.Exec(`
		INSERT INTO students (student_id, name, class, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(student_id) DO UPDATE SET
			name=excluded.name,
			class=excluded.class`,
		st.StudentID, st.Name, st.Class, nowUTC())
	if err != nil {
		return fmt.Errorf("upsert student: %w", err)
	}
	return nil
}

// GetStudent 查询单个学生；查无此人返回 (nil, nil)
// GetStudent looks up one student; an unknown id returns (nil, nil)
func (s *Store) GetStudent(studentID string) (*Student, error) {
	row := s.db.QueryRow(`
		SELECT student_id, name, class FROM students WHERE student_id=?`,
		strings.TrimSpace(studentID))
	var st Student
	if err := row.Scan(&st.StudentID, &st.Name, &st.Class); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	return &st, nil
}

// ListStudents 列出全部学生，按班级、学号排序
// ListStudents lists all students ordered by class, then student id
func (s *Store) ListStudents() ([]Student, error) {
	rows, err := s.db.Query(`
		SELECT student_id, name, class FROM students ORDER BY class, student_id`)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return scanStudents(rows)
}

// StudentsByClass 列出指定班级学生，按学号排序
// StudentsByClass lists one class ordered by student id
func (s *Store) StudentsByClass(class string) ([]Student, error) {
	rows, err := s.db.Query(`
		SELECT student_id, name, class FROM students WHERE class=? ORDER BY student_id`,
		strings.TrimSpace(class))
	if err != nil {
		return nil, fmt.Errorf("students by class: %w", err)
	}
	return scanStudents(rows)
}

// StudentsByIDRange 按数值比较学号，闭区间 [startID, endID]
// StudentsByIDRange compares ids numerically, inclusive on both bounds
func (s *Store) StudentsByIDRange(startID, endID string) ([]Student, error) {
	start, err := strconv.Atoi(strings.TrimSpace(startID))
	if err != nil {
		return nil, fmt.Errorf("invalid start id %q", startID)
	}
	end, err := strconv.Atoi(strings.TrimSpace(endID))
	if err != nil {
		return nil, fmt.Errorf("invalid end id %q", endID)
	}
	rows, err := s.db.Query(`
		SELECT student_id, name, class FROM students
		WHERE CAST(student_id AS INTEGER) BETWEEN ? AND ?
		ORDER BY student_id`, start, end)
	if err != nil {
		return nil, fmt.Errorf("students by id range: %w", err)
	}
	return scanStudents(rows)
}

// ListClasses 列出所有班级名称
// ListClasses lists distinct class names
func (s *Store) ListClasses() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT class FROM students ORDER BY class`)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	defer rows.Close()

	var classes []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan class: %w", err)
		}
		classes = append(classes, c)
	}
	return classes, rows.Err()
}

// UpdateStudent 更新学生姓名/班级（nil 表示不修改）；查无此人返回 ErrNotFound
// UpdateStudent updates name and/or class (nil leaves a field untouched);
// returns ErrNotFound for an unknown id.
func (s *Store) UpdateStudent(studentID string, name, class *string) error {
	studentID = strings.TrimSpace(studentID)
	if name == nil && class == nil {
		return nil
	}

	sets := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if name != nil {
		sets = append(sets, "name=?")
		args = append(args, *name)
	}
	if class != nil {
		sets = append(sets, "class=?")
		args = append(args, *class)
	}
	args = append(args, studentID)

	res, err := s.db.Exec(
		"UPDATE students SET "+strings.Join(sets, ", ")+" WHERE student_id=?", args...)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("student %s: %w", studentID, ErrNotFound)
	}
	return nil
}

// DeleteStudent 删除学生并级联删除其全部提交记录（单事务）
// DeleteStudent removes a student and all of their submission records in
// one transaction.
func (s *Store) DeleteStudent(studentID string) error {
	studentID = strings.TrimSpace(studentID)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM task_details WHERE student_id=?", studentID); err != nil {
		return fmt.Errorf("delete submission records: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM students WHERE student_id=?", studentID); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return tx.Commit()
}

func scanStudents(rows *sql.Rows) ([]Student, error) {
	defer rows.Close()
	var students []Student
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.StudentID, &st.Name, &st.Class); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, st)
	}
	return students, rows.Err()
}
