package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound 按主键查询未命中时返回；“预期中的缺失”（如花名册查无此人）
// 返回空结果而不是该错误。
// ErrNotFound is returned by by-id lookups that miss; expected absence
// (e.g. unknown roster entry) is reported as an empty result instead.
var ErrNotFound = errors.New("not found")

// Store 基于 SQLite (WAL 模式) 的花名册与任务台账存储
// Store persists the roster and the task ledger using SQLite with WAL mode
type Store struct {
	db   *sql.DB
	path string
}

// Open 创建并初始化 SQLite 数据库
// Open creates and initializes the SQLite database
func Open(dbPath string) (*Store, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// 启用 WAL 模式和优化 PRAGMA / Enable WAL and performance PRAGMAs
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

func (s *Store) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS students (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		student_id TEXT UNIQUE NOT NULL,
		name       TEXT NOT NULL,
		class      TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		name       TEXT NOT NULL,
		date       TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS task_details (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id    INTEGER NOT NULL REFERENCES tasks(id),
		student_id TEXT NOT NULL REFERENCES students(student_id),
		status     TEXT NOT NULL DEFAULT 'missing',
		grade      TEXT,
		updated_at TEXT NOT NULL,
		UNIQUE(task_id, student_id)
	);

	CREATE INDEX IF NOT EXISTS idx_task_details_task ON task_details(task_id);
	CREATE INDEX IF NOT EXISTS idx_task_details_student ON task_details(student_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close 关闭数据库连接 / Close the database connection
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ClearAll 清空学生、任务与提交记录（不可恢复）
// ClearAll wipes students, tasks and submission records in one transaction
func (s *Store) ClearAll() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		"DELETE FROM task_details",
		"DELETE FROM tasks",
		"DELETE FROM students",
		"DELETE FROM sqlite_sequence",
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("clear all: %w", err)
		}
	}
	return tx.Commit()
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Today 返回本地日历日期（ISO 格式）
// Today returns the local calendar date in ISO form
func Today() string {
	return time.Now().Format("2006-01-02")
}
