package storage

import (
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedRoster(t *testing.T, store *Store) {
	t.Helper()
	students := []Student{
		{StudentID: "202301", Name: "张三", Class: "2023班"},
		{StudentID: "202302", Name: "李四", Class: "2023班"},
		{StudentID: "202303", Name: "王五", Class: "2023班"},
		{StudentID: "202401", Name: "赵六", Class: "2024班"},
	}
	for _, st := range students {
		if err := store.AddStudent(st); err != nil {
			t.Fatalf("AddStudent %s: %v", st.StudentID, err)
		}
	}
}

func TestAddStudentUpsert(t *testing.T) {
	store := newTestStore(t)

	if err := store.AddStudent(Student{StudentID: "202301", Name: "张三", Class: "2023班"}); err != nil {
		t.Fatalf("AddStudent: %v", err)
	}
	// 同学号再次添加应更新而不是报错 / Re-adding the same id updates
	if err := store.AddStudent(Student{StudentID: "202301", Name: "张三丰", Class: "2024班"}); err != nil {
		t.Fatalf("AddStudent upsert: %v", err)
	}

	st, err := store.GetStudent("202301")
	if err != nil {
		t.Fatalf("GetStudent: %v", err)
	}
	if st == nil || st.Name != "张三丰" || st.Class != "2024班" {
		t.Fatalf("student after upsert: %+v", st)
	}
}

func TestGetStudentUnknownIsNil(t *testing.T) {
	store := newTestStore(t)
	st, err := store.GetStudent("999999")
	if err != nil {
		t.Fatalf("GetStudent: %v", err)
	}
	if st != nil {
		t.Fatalf("expected nil for unknown student, got %+v", st)
	}
}

func TestListStudentsOrdering(t *testing.T) {
	store := newTestStore(t)
	// 乱序插入 / Insert out of order
	for _, st := range []Student{
		{StudentID: "202401", Name: "赵六", Class: "2024班"},
		{StudentID: "202302", Name: "李四", Class: "2023班"},
		{StudentID: "202301", Name: "张三", Class: "2023班"},
	} {
		if err := store.AddStudent(st); err != nil {
			t.Fatalf("AddStudent: %v", err)
		}
	}

	students, err := store.ListStudents()
	if err != nil {
		t.Fatalf("ListStudents: %v", err)
	}
	wantIDs := []string{"202301", "202302", "202401"}
	if len(students) != len(wantIDs) {
		t.Fatalf("count=%d, want %d", len(students), len(wantIDs))
	}
	for i, id := range wantIDs {
		if students[i].StudentID != id {
			t.Fatalf("students[%d]=%s, want %s", i, students[i].StudentID, id)
		}
	}
}

func TestStudentsByIDRange(t *testing.T) {
	store := newTestStore(t)
	seedRoster(t, store)

	students, err := store.StudentsByIDRange("202301", "202303")
	if err != nil {
		t.Fatalf("StudentsByIDRange: %v", err)
	}
	if len(students) != 3 {
		t.Fatalf("count=%d, want 3", len(students))
	}
	// 闭区间、按学号升序 / Inclusive bounds, ascending id order
	if students[0].StudentID != "202301" || students[2].StudentID != "202303" {
		t.Fatalf("range result: %+v", students)
	}

	if _, err := store.StudentsByIDRange("abc", "202303"); err == nil {
		t.Fatal("expected error for non-numeric bound")
	}
}

func TestListClasses(t *testing.T) {
	store := newTestStore(t)
	seedRoster(t, store)

	classes, err := store.ListClasses()
	if err != nil {
		t.Fatalf("ListClasses: %v", err)
	}
	if len(classes) != 2 || classes[0] != "2023班" || classes[1] != "2024班" {
		t.Fatalf("classes=%v", classes)
	}
}

func TestUpdateStudent(t *testing.T) {
	store := newTestStore(t)
	seedRoster(t, store)

	name := "张小三"
	if err := store.UpdateStudent("202301", &name, nil); err != nil {
		t.Fatalf("UpdateStudent: %v", err)
	}
	st, _ := store.GetStudent("202301")
	if st.Name != "张小三" || st.Class != "2023班" {
		t.Fatalf("after update: %+v", st)
	}

	err := store.UpdateStudent("999999", &name, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateStudent unknown: err=%v, want ErrNotFound", err)
	}
}

func TestDeleteStudentCascades(t *testing.T) {
	store := newTestStore(t)
	seedRoster(t, store)

	task, err := store.GetOrCreateTaskForDate("2026-03-02")
	if err != nil {
		t.Fatalf("GetOrCreateTaskForDate: %v", err)
	}
	if err := store.Submit(task.ID, "202301"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if err := store.DeleteStudent("202301"); err != nil {
		t.Fatalf("DeleteStudent: %v", err)
	}

	st, _ := store.GetStudent("202301")
	if st != nil {
		t.Fatalf("student still present after delete: %+v", st)
	}
	// 历史记录随删除清空 / History is empty after cascade
	history, err := store.StudentHistory("202301")
	if err != nil {
		t.Fatalf("StudentHistory: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("history not empty after delete: %+v", history)
	}
}

func TestClearAll(t *testing.T) {
	store := newTestStore(t)
	seedRoster(t, store)
	if _, err := store.GetOrCreateTaskForDate("2026-03-02"); err != nil {
		t.Fatalf("GetOrCreateTaskForDate: %v", err)
	}

	if err := store.ClearAll(); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	students, err := store.ListStudents()
	if err != nil {
		t.Fatalf("ListStudents: %v", err)
	}
	if len(students) != 0 {
		t.Fatalf("students remain after ClearAll: %d", len(students))
	}
	tasks, err := store.ListTasks()
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("tasks remain after ClearAll: %d", len(tasks))
	}
}
