package tools

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"assignflow/internal/storage"
)

func newTestRegistry(t *testing.T) (*Registry, *storage.Store) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	currentTask := func() (storage.Task, error) {
		return store.GetOrCreateTaskForDate("2026-03-02")
	}
	return DefaultRegistry(store, store, currentTask), store
}

func seedStudents(t *testing.T, store *storage.Store) {
	t.Helper()
	for _, st := range []storage.Student{
		{StudentID: "202301", Name: "张三", Class: "2023班"},
		{StudentID: "202302", Name: "李四", Class: "2023班"},
		{StudentID: "202401", Name: "赵六", Class: "2024班"},
	} {
		if err := store.AddStudent(st); err != nil {
			t.Fatalf("AddStudent: %v", err)
		}
	}
}

func exec(t *testing.T, reg *Registry, name, args string) string {
	t.Helper()
	out, err := reg.Execute(context.Background(), name, json.RawMessage(args))
	if err != nil {
		t.Fatalf("Execute %s: %v", name, err)
	}
	return out
}

func TestRegistryToolSet(t *testing.T) {
	reg, _ := newTestRegistry(t)
	names := reg.Names()
	if len(names) != 14 {
		t.Fatalf("tool count=%d, want 14", len(names))
	}
	for _, name := range []string{"get_student_info", "add_student", "mark_student_submitted", "export_current_class"} {
		if !reg.Has(name) {
			t.Fatalf("missing tool %s", name)
		}
	}
	if len(reg.Definitions()) != 14 {
		t.Fatalf("definitions count mismatch")
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	reg, _ := newTestRegistry(t)
	if _, err := reg.Execute(context.Background(), "no_such_tool", nil); err == nil {
		t.Fatal("expected error for unknown tool")
	}
}

func TestStudentInfoTool(t *testing.T) {
	reg, store := newTestRegistry(t)
	seedStudents(t, store)

	out := exec(t, reg, "get_student_info", `{"student_id":"202301"}`)
	var st storage.Student
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("result not JSON: %v (%s)", err, out)
	}
	if st.Name != "张三" || st.Class != "2023班" {
		t.Fatalf("student=%+v", st)
	}

	if out := exec(t, reg, "get_student_info", `{"student_id":"999999"}`); out != "未找到" {
		t.Fatalf("unknown student result=%q", out)
	}
}

func TestAddStudentDerivesClass(t *testing.T) {
	reg, store := newTestRegistry(t)

	out := exec(t, reg, "add_student", `{"student_id":"202305","name":"钱七"}`)
	if !strings.Contains(out, "2023班") {
		t.Fatalf("result=%q, want derived class 2023班", out)
	}
	st, err := store.GetStudent("202305")
	if err != nil || st == nil {
		t.Fatalf("GetStudent after add: %v %+v", err, st)
	}
	if st.Class != "2023班" {
		t.Fatalf("class=%q, want 2023班", st.Class)
	}

	// 显式班级优先于推断 / Explicit class wins over inference
	exec(t, reg, "add_student", `{"student_id":"202306","name":"孙八","class":"实验班"}`)
	st, _ = store.GetStudent("202306")
	if st.Class != "实验班" {
		t.Fatalf("class=%q, want 实验班", st.Class)
	}
}

func TestClassFromStudentID(t *testing.T) {
	cases := []struct {
		id   string
		want string
	}{
		{"202301", "2023班"},
		{"2024", "2024班"},
		{"abc123", "未知"},
		{"12", "未知"},
	}
	for _, c := range cases {
		if got := ClassFromStudentID(c.id); got != c.want {
			t.Fatalf("ClassFromStudentID(%q)=%q, want %q", c.id, got, c.want)
		}
	}
}

func TestMarkSubmittedTool(t *testing.T) {
	reg, store := newTestRegistry(t)
	seedStudents(t, store)

	out := exec(t, reg, "mark_student_submitted", `{"student_id":"202301"}`)
	if out != "学生 202301 已标记为已交" {
		t.Fatalf("result=%q", out)
	}

	task, err := store.GetOrCreateTaskForDate("2026-03-02")
	if err != nil {
		t.Fatalf("GetOrCreateTaskForDate: %v", err)
	}
	submitted, err := store.SubmittedStudents(task.ID)
	if err != nil {
		t.Fatalf("SubmittedStudents: %v", err)
	}
	if len(submitted) != 1 || submitted[0].StudentID != "202301" {
		t.Fatalf("submitted=%+v", submitted)
	}

	// 未知学号不落库，返回提示 / Unknown id reports without writing
	out = exec(t, reg, "mark_student_submitted", `{"student_id":"999999"}`)
	if out != "学号 999999 不在花名册" {
		t.Fatalf("unknown result=%q", out)
	}
}

func TestSetGradeTool(t *testing.T) {
	reg, store := newTestRegistry(t)
	seedStudents(t, store)

	out := exec(t, reg, "set_student_grade", `{"student_id":"202302","grade":"A+"}`)
	if out != "学生 202302 成绩已设置为 A+" {
		t.Fatalf("result=%q", out)
	}

	task, _ := store.GetOrCreateTaskForDate("2026-03-02")
	details, err := store.TaskDetails(task.ID)
	if err != nil {
		t.Fatalf("TaskDetails: %v", err)
	}
	for _, d := range details {
		if d.StudentID == "202302" {
			if d.Status != storage.StatusSubmitted || d.Grade == nil || *d.Grade != "A+" {
				t.Fatalf("detail=%+v", d)
			}
			return
		}
	}
	t.Fatal("student 202302 missing from details")
}

func TestTodayStatsTool(t *testing.T) {
	reg, store := newTestRegistry(t)
	seedStudents(t, store)
	if _, err := store.GetOrCreateTodayTask(); err != nil {
		t.Fatalf("GetOrCreateTodayTask: %v", err)
	}

	out := exec(t, reg, "get_today_stats", `{}`)
	if out != "总人数:3, 已交:0, 未交:3" {
		t.Fatalf("stats=%q", out)
	}
}

func TestTaskDetailsToolUnknownTask(t *testing.T) {
	reg, _ := newTestRegistry(t)
	out := exec(t, reg, "get_task_details", `{"task_id":42}`)
	if out != "未找到任务 42" {
		t.Fatalf("result=%q", out)
	}
}

func TestStudentHistoryToolUnknownStudent(t *testing.T) {
	reg, _ := newTestRegistry(t)
	out := exec(t, reg, "get_student_history", `{"student_id":"999999"}`)
	if out != "未找到" {
		t.Fatalf("result=%q", out)
	}
}

func TestExportHintTool(t *testing.T) {
	reg, _ := newTestRegistry(t)
	out := exec(t, reg, "export_current_class", `{}`)
	if out != "请手动前往导出报告页面进行导出操作。" {
		t.Fatalf("result=%q", out)
	}
}

func TestIsMutating(t *testing.T) {
	reg, _ := newTestRegistry(t)
	mutating := map[string]bool{
		"add_student":            true,
		"update_student":         true,
		"delete_student":         true,
		"mark_student_submitted": true,
		"set_student_grade":      true,
	}
	for _, name := range reg.Names() {
		if got := reg.IsMutating(name); got != mutating[name] {
			t.Fatalf("IsMutating(%s)=%v, want %v", name, got, mutating[name])
		}
	}
	if reg.IsMutating("no_such_tool") {
		t.Fatal("unknown tool must not be mutating")
	}
}
