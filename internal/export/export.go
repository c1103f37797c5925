package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"

	"assignflow/internal/storage"
	"assignflow/internal/tools"
)

// Roster 导入所需的花名册操作
// Roster is the roster surface the importer consumes
type Roster interface {
	AddStudent(st storage.Student) error
	StudentsByClass(class string) ([]storage.Student, error)
}

// Ledger 导出所需的台账操作
// Ledger is the ledger surface the exporter consumes
type Ledger interface {
	TasksInDateRange(start, end string) ([]storage.Task, error)
	StudentHistory(studentID string) ([]storage.HistoryEntry, error)
}

// ImportRoster 从 CSV 花名册导入学生。首行为表头，自动识别学号列
// （含“学号”“id”“编号”）和姓名列（含“姓名”“name”）；学号不足定长时
// 前补零，班级从学号前4位推断。返回导入人数。
// ImportRoster loads students from a roster CSV. The first row is a
// header; the id column (学号/id/编号) and name column (姓名/name) are
// detected from it. Ids shorter than idLength are zero-padded and the
// class is inferred from the leading id digits. Returns the count of
// imported students.
func ImportRoster(roster Roster, path string, idLength int) (int, error) {
	if idLength <= 0 {
		idLength = 6
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open roster csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("read roster csv: %w", err)
	}
	if len(rows) < 2 {
		return 0, fmt.Errorf("roster csv has no data rows")
	}

	header := rows[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}
	idCol, nameCol := -1, -1
	for i, h := range header {
		lower := strings.ToLower(strings.TrimSpace(h))
		if idCol < 0 && (strings.Contains(lower, "学号") || strings.Contains(lower, "id") || strings.Contains(lower, "编号")) {
			idCol = i
		}
		if nameCol < 0 && (strings.Contains(lower, "姓名") || strings.Contains(lower, "name")) {
			nameCol = i
		}
	}
	if idCol < 0 || nameCol < 0 {
		return 0, fmt.Errorf("roster csv: cannot locate id and name columns in header %v", header)
	}

	count := 0
	for i, row := range rows[1:] {
		if len(row) <= idCol || len(row) <= nameCol {
			return count, fmt.Errorf("roster csv row %d: too few columns", i+2)
		}
		id := zeroPad(strings.TrimSpace(row[idCol]), idLength)
		name := strings.TrimSpace(row[nameCol])
		if id == "" || name == "" {
			continue
		}
		st := storage.Student{
			StudentID: id,
			Name:      name,
			Class:     tools.ClassFromStudentID(id),
		}
		if err := roster.AddStudent(st); err != nil {
			return count, fmt.Errorf("import student %s: %w", id, err)
		}
		count++
	}
	return count, nil
}

// Matrix 生成班级×任务的提交矩阵。首行表头为 学号、姓名 加上区间内每个
// 任务的日期；单元格为 未交、成绩或已交。
// Matrix builds the class-by-task submission matrix. The header row is
// 学号, 姓名 plus each task date in range; cells read 未交, the grade, or
// 已交.
func Matrix(roster Roster, ledger Ledger, class, start, end string) ([][]string, error) {
	tasks, err := ledger.TasksInDateRange(start, end)
	if err != nil {
		return nil, err
	}
	students, err := roster.StudentsByClass(class)
	if err != nil {
		return nil, err
	}
	if len(students) == 0 {
		return nil, fmt.Errorf("class %q has no students", class)
	}

	header := []string{"学号", "姓名"}
	for _, t := range tasks {
		header = append(header, t.Date)
	}
	rows := [][]string{header}

	for _, stu := range students {
		history, err := ledger.StudentHistory(stu.StudentID)
		if err != nil {
			return nil, err
		}
		byTask := make(map[int64]storage.HistoryEntry, len(history))
		for _, h := range history {
			byTask[h.TaskID] = h
		}
		row := []string{stu.StudentID, stu.Name}
		for _, t := range tasks {
			row = append(row, cellText(byTask[t.ID]))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteCSV 将矩阵写为带 BOM 的 UTF-8 CSV，便于 Excel 直接打开
// WriteCSV writes the matrix as BOM-prefixed UTF-8 so Excel opens it
// without mangling the encoding.
func WriteCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString("\uFEFF"); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	w.Flush()
	return w.Error()
}

// DateRange 预设导出区间
// DateRange names a preset export window
type DateRange string

const (
	RangeWeek  DateRange = "week"
	RangeMonth DateRange = "month"
	RangeTerm  DateRange = "term"
	RangeAll   DateRange = "all"
)

// Bounds 返回区间的起止日期（含端点）
// Bounds returns the inclusive start and end dates for the preset
func (r DateRange) Bounds(now time.Time) (start, end string) {
	today := now.Format("2006-01-02")
	switch r {
	case RangeWeek:
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		monday := now.AddDate(0, 0, -(weekday - 1))
		return monday.Format("2006-01-02"), today
	case RangeMonth:
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return first.Format("2006-01-02"), today
	case RangeTerm:
		// 2-7 月算春季学期，其余算秋季 / Feb-Jul is the spring term
		var first time.Time
		if now.Month() >= 2 && now.Month() <= 7 {
			first = time.Date(now.Year(), 2, 1, 0, 0, 0, 0, now.Location())
		} else {
			year := now.Year()
			if now.Month() == 1 {
				year--
			}
			first = time.Date(year, 9, 1, 0, 0, 0, 0, now.Location())
		}
		return first.Format("2006-01-02"), today
	default:
		return "2000-01-01", today
	}
}

func cellText(entry storage.HistoryEntry) string {
	if entry.Status != storage.StatusSubmitted {
		return "未交"
	}
	if entry.Grade != nil && strings.TrimSpace(*entry.Grade) != "" {
		return *entry.Grade
	}
	return "已交"
}

func zeroPad(id string, width int) string {
	if id == "" || len(id) >= width {
		return id
	}
	return strings.Repeat("0", width-len(id)) + id
}
