package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"assignflow/internal/chat"
	"assignflow/internal/storage"
)

// StudentInfoTool 查询单个学生
type StudentInfoTool struct {
	roster Roster
}

func NewStudentInfoTool(roster Roster) *StudentInfoTool {
	return &StudentInfoTool{roster: roster}
}

func (t *StudentInfoTool) Name() string { return "get_student_info" }

func (t *StudentInfoTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name:        t.Name(),
			Description: "获取单个学生信息，包括学号、姓名、班级。参数：student_id (string, 6位学号)。返回学生信息JSON或'未找到'。",
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

func (t *StudentInfoTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var in struct {
		StudentID string `json:"student_id"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("get_student_info args: %w", err)
	}
	if strings.TrimSpace(in.StudentID) == "" {
		return "", fmt.Errorf("get_student_info: student_id is required")
	}
	student, err := t.roster.GetStudent(in.StudentID)
	if err != nil {
		return "", err
	}
	if student == nil {
		return "未找到", nil
	}
	return mustJSON(student), nil
}

// StudentsByClassTool 按班级列出学生
type StudentsByClassTool struct {
	roster Roster
}

func NewStudentsByClassTool(roster Roster) *StudentsByClassTool {
	return &StudentsByClassTool{roster: roster}
}

func (t *StudentsByClassTool) Name() string { return "get_students_by_class" }

func (t *StudentsByClassTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name:        t.Name(),
			Description: "获取指定班级的所有学生。参数：class_name (string, 班级名称)。返回学生列表JSON。",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"class_name": map[string]any{"type": "string", "description": "班级名称，如'2023班'"},
				},
				"required": []string{"class_name"},
			},
		},
	}
}

func (t *StudentsByClassTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var in struct {
		ClassName string `json:"class_name"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("get_students_by_class args: %w", err)
	}
	if strings.TrimSpace(in.ClassName) == "" {
		return "", fmt.Errorf("get_students_by_class: class_name is required")
	}
	students, err := t.roster.StudentsByClass(in.ClassName)
	if err != nil {
		return "", err
	}
	if students == nil {
		students = []storage.Student{}
	}
	return mustJSON(students), nil
}

// StudentsByIDRangeTool 按学号区间列出学生
type StudentsByIDRangeTool struct {
	roster Roster
}

func NewStudentsByIDRangeTool(roster Roster) *StudentsByIDRangeTool {
	return &StudentsByIDRangeTool{roster: roster}
}

func (t *StudentsByIDRangeTool) Name() string { return "get_students_by_id_range" }

func (t *StudentsByIDRangeTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name:        t.Name(),
			Description: "获取学号范围内的学生。参数：start_id (string, 起始学号), end_id (string, 结束学号)。返回学生列表JSON。",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"start_id": map[string]any{"type": "string", "description": "起始学号，如'202301'"},
					"end_id":   map[string]any{"type": "string", "description": "结束学号，如'202350'"},
				},
				"required": []string{"start_id", "end_id"},
			},
		},
	}
}

func (t *StudentsByIDRangeTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var in struct {
		StartID string `json:"start_id"`
		EndID   string `json:"end_id"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("get_students_by_id_range args: %w", err)
	}
	if strings.TrimSpace(in.StartID) == "" || strings.TrimSpace(in.EndID) == "" {
		return "", fmt.Errorf("get_students_by_id_range: start_id and end_id are required")
	}
	students, err := t.roster.StudentsByIDRange(in.StartID, in.EndID)
	if err != nil {
		return "", err
	}
	if students == nil {
		students = []storage.Student{}
	}
	return mustJSON(students), nil
}

// ClassListTool 列出所有班级
type ClassListTool struct {
	roster Roster
}

func NewClassListTool(roster Roster) *ClassListTool {
	return &ClassListTool{roster: roster}
}

func (t *ClassListTool) Name() string { return "get_all_classes" }

func (t *ClassListTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name:        t.Name(),
			Description: "获取所有班级列表。无需参数。返回班级名称列表。",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
		},
	}
}

func (t *ClassListTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	_ = args
	classes, err := t.roster.ListClasses()
	if err != nil {
		return "", err
	}
	if classes == nil {
		classes = []string{}
	}
	return mustJSON(classes), nil
}

// AddStudentTool 添加学生；未提供班级时从学号前缀推断
type AddStudentTool struct {
	roster Roster
}

func NewAddStudentTool(roster Roster) *AddStudentTool {
	return &AddStudentTool{roster: roster}
}

func (t *AddStudentTool) Name() string { return "add_student" }

func (t *AddStudentTool) Mutating() bool { return true }

func (t *AddStudentTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name:        t.Name(),
			Description: "添加一名新学生到花名册。参数：student_id (6位学号), name (姓名), class (可选班级，如果不提供则自动从学号前4位提取，例如202301 → 2023班)。返回添加结果。",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"student_id": map[string]any{"type": "string", "description": "6位学号"},
					"name":       map[string]any{"type": "string", "description": "学生姓名"},
					"class":      map[string]any{"type": "string", "description": "班级（可选，如果不提供则自动从学号前4位提取）"},
				},
				"required": []string{"student_id", "name"},
			},
		},
	}
}

func (t *AddStudentTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var in struct {
		StudentID string `json:"student_id"`
		Name      string `json:"name"`
		Class     string `json:"class"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("add_student args: %w", err)
	}
	in.StudentID = strings.TrimSpace(in.StudentID)
	in.Name = strings.TrimSpace(in.Name)
	if in.StudentID == "" || in.Name == "" {
		return "", fmt.Errorf("add_student: student_id and name are required")
	}
	class := strings.TrimSpace(in.Class)
	if class == "" {
		class = ClassFromStudentID(in.StudentID)
	}
	if err := t.roster.AddStudent(storage.Student{StudentID: in.StudentID, Name: in.Name, Class: class}); err != nil {
		return "", err
	}
	return fmt.Sprintf("学生 %s (学号 %s) 已添加到班级 %s", in.Name, in.StudentID, class), nil
}

// UpdateStudentTool 更新学生信息
type UpdateStudentTool struct {
	roster Roster
}

func NewUpdateStudentTool(roster Roster) *UpdateStudentTool {
	return &UpdateStudentTool{roster: roster}
}

func (t *UpdateStudentTool) Name() string { return "update_student" }

func (t *UpdateStudentTool) Mutating() bool { return true }

func (t *UpdateStudentTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name:        t.Name(),
			Description: "更新学生信息。参数：student_id (6位学号), name (可选新姓名), class (可选新班级)。返回操作结果。",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"student_id": map[string]any{"type": "string"},
					"name":       map[string]any{"type": "string", "description": "新姓名（可选）"},
					"class":      map[string]any{"type": "string", "description": "新班级（可选）"},
				},
				"required": []string{"student_id"},
			},
		},
	}
}

func (t *UpdateStudentTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var in struct {
		StudentID string  `json:"student_id"`
		Name      *string `json:"name"`
		Class     *string `json:"class"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("update_student args: %w", err)
	}
	in.StudentID = strings.TrimSpace(in.StudentID)
	if in.StudentID == "" {
		return "", fmt.Errorf("update_student: student_id is required")
	}
	student, err := t.roster.GetStudent(in.StudentID)
	if err != nil {
		return "", err
	}
	if student == nil {
		return fmt.Sprintf("未找到学号 %s 的学生", in.StudentID), nil
	}
	if err := t.roster.UpdateStudent(in.StudentID, in.Name, in.Class); err != nil {
		return "", err
	}
	return fmt.Sprintf("学生 %s 信息已更新", in.StudentID), nil
}

// DeleteStudentTool 删除学生（级联删除提交记录）
type DeleteStudentTool struct {
	roster Roster
}

func NewDeleteStudentTool(roster Roster) *DeleteStudentTool {
	return &DeleteStudentTool{roster: roster}
}

func (t *DeleteStudentTool) Name() string { return "delete_student" }

func (t *DeleteStudentTool) Mutating() bool { return true }

func (t *DeleteStudentTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name:        t.Name(),
			Description: "删除学生。参数：student_id (6位学号)。返回操作结果。",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"student_id": map[string]any{"type": "string"},
				},
				"required": []string{"student_id"},
			},
		},
	}
}

func (t *DeleteStudentTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var in struct {
		StudentID string `json:"student_id"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("delete_student args: %w", err)
	}
	in.StudentID = strings.TrimSpace(in.StudentID)
	if in.StudentID == "" {
		return "", fmt.Errorf("delete_student: student_id is required")
	}
	student, err := t.roster.GetStudent(in.StudentID)
	if err != nil {
		return "", err
	}
	if student == nil {
		return fmt.Sprintf("未找到学号 %s 的学生", in.StudentID), nil
	}
	if err := t.roster.DeleteStudent(in.StudentID); err != nil {
		return "", err
	}
	return fmt.Sprintf("学生 %s 已删除", in.StudentID), nil
}

// ClassFromStudentID 从学号前4位推断班级（202301 → 2023班）
// ClassFromStudentID infers the class from the id's leading 4 digits
func ClassFromStudentID(studentID string) string {
	if len(studentID) >= 4 && isDigits(studentID[:4]) {
		return studentID[:4] + "班"
	}
	return "未知"
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
