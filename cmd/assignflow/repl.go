package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"assignflow/internal/config"
	"assignflow/internal/export"
	"assignflow/internal/i18n"
	"assignflow/internal/provider"
	"assignflow/internal/router"
	"assignflow/internal/session"
	"assignflow/internal/storage"

	"github.com/chzyer/readline"
)

// replCommands 按帮助顺序列出的命令名
// replCommands lists command names in help order
var replCommands = []string{
	"help", "stats", "missing", "submitted", "students", "tasks",
	"newtask", "grade", "unsubmit", "import", "export", "models",
	"reset", "clear", "quit",
}

// repl 行模式交互：与 TUI 共用 Router 分流规则
// repl is the line-mode frontend; it shares the Router dispatch rules
// with the TUI
type repl struct {
	store *storage.Store
	sess  *session.Session
	prov  provider.Provider
	cfg   config.Config
	route *router.Router
	out   io.Writer
	errW  io.Writer
}

func (r *repl) run() error {
	historyPath := filepath.Join(filepath.Dir(r.cfg.Database.Path), "repl.history")
	if err := os.MkdirAll(filepath.Dir(historyPath), 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "> ",
		HistoryFile:       historyPath,
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("init line editor: %w", err)
	}
	defer rl.Close()

	task, err := r.store.GetOrCreateTodayTask()
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "AssignFlow  %s (%s)\n", task.Name, task.Date)
	r.printHelp()

	for {
		line, err := rl.Readline()
		if err != nil {
			switch {
			case errors.Is(err, readline.ErrInterrupt):
				fmt.Fprintln(r.out)
				continue
			case errors.Is(err, io.EOF):
				fmt.Fprintln(r.out)
				return nil
			default:
				return fmt.Errorf("read input: %w", err)
			}
		}
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}

		if strings.HasPrefix(text, "/") {
			if exit := r.handleCommand(text); exit {
				return nil
			}
			continue
		}
		r.handleLine(text)
	}
}

// handleLine 处理一条非命令输入
// handleLine dispatches one non-command line
func (r *repl) handleLine(text string) {
	kind, text := r.route.Classify(text)
	switch kind {
	case router.KindEasterEgg:
		fmt.Fprintln(r.out, i18n.T("egg.body"))
	case router.KindStudentID:
		r.quickSubmit(text)
	default:
		r.askAssistant(text)
	}
}

func (r *repl) quickSubmit(id string) {
	st, err := r.store.GetStudent(id)
	if err != nil {
		fmt.Fprintln(r.errW, i18n.T("error.storage", err.Error()))
		return
	}
	if st == nil {
		fmt.Fprintln(r.out, i18n.T("submit.unknown", id))
		return
	}
	task, err := r.store.GetOrCreateTodayTask()
	if err != nil {
		fmt.Fprintln(r.errW, i18n.T("error.storage", err.Error()))
		return
	}
	if err := r.store.Submit(task.ID, id); err != nil {
		fmt.Fprintln(r.errW, i18n.T("error.storage", err.Error()))
		return
	}
	fmt.Fprintln(r.out, i18n.T("submit.ok", st.Name))
	r.printStats()
}

func (r *repl) askAssistant(text string) {
	if strings.TrimSpace(r.cfg.Provider.APIKey) == "" {
		fmt.Fprintln(r.out, i18n.T("status.no_api_key"))
		return
	}
	ch, err := r.sess.Ask(context.Background(), text)
	if err != nil {
		if errors.Is(err, session.ErrBusy) {
			fmt.Fprintln(r.out, i18n.T("status.busy"))
		} else {
			fmt.Fprintln(r.errW, i18n.T("error.generic", err.Error()))
		}
		return
	}

	streamed := false
	for ev := range ch {
		switch ev.Kind {
		case session.EventTextChunk:
			streamed = true
			fmt.Fprint(r.out, ev.Text)
		case session.EventToolStart:
			fmt.Fprintf(r.out, "\n⚙ %s %s\n", ev.Tool, ev.Detail)
		case session.EventToolResult:
			fmt.Fprintf(r.out, "✓ %s\n", ev.Detail)
		case session.EventDone:
			if streamed {
				fmt.Fprintln(r.out)
			} else if ev.Text != "" {
				fmt.Fprintln(r.out, ev.Text)
			}
		case session.EventCancelled:
			fmt.Fprintln(r.out, i18n.T("status.cancelled"))
		case session.EventFailed:
			if ev.Err != nil {
				fmt.Fprintln(r.errW, i18n.T("error.provider", ev.Err.Error()))
			}
		}
	}
}

// handleCommand 处理一条 / 命令；返回是否退出
// handleCommand runs one slash command and reports whether to exit
func (r *repl) handleCommand(input string) (exit bool) {
	fields := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(fields) == 0 {
		return false
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help":
		r.printHelp()
	case "stats":
		r.printStats()
	case "missing":
		r.printStudents(func(taskID int64) ([]storage.Student, error) {
			return r.store.MissingStudents(taskID, "")
		})
	case "submitted":
		r.printStudents(r.store.SubmittedStudents)
	case "students":
		students, err := r.store.ListStudents()
		if err != nil {
			fmt.Fprintln(r.errW, i18n.T("error.storage", err.Error()))
			return false
		}
		for _, st := range students {
			fmt.Fprintf(r.out, "%s  %s  %s\n", st.StudentID, st.Name, st.Class)
		}
	case "tasks":
		tasks, err := r.store.ListTasks()
		if err != nil {
			fmt.Fprintln(r.errW, i18n.T("error.storage", err.Error()))
			return false
		}
		for _, t := range tasks {
			fmt.Fprintf(r.out, "#%d  %s  %s\n", t.ID, t.Date, t.Name)
		}
	case "newtask":
		r.cmdNewTask()
	case "grade":
		r.cmdGrade(args)
	case "unsubmit":
		r.cmdUnsubmit(args)
	case "import":
		r.cmdImport(args)
	case "export":
		r.cmdExport(args)
	case "models":
		r.cmdModels(args)
	case "reset":
		r.sess.Reset()
		fmt.Fprintln(r.out, i18n.T("status.ready"))
	case "clear":
		if err := r.store.ClearAll(); err != nil {
			fmt.Fprintln(r.errW, i18n.T("error.storage", err.Error()))
			return false
		}
		r.sess.Reset()
		fmt.Fprintln(r.out, i18n.T("status.all_cleared"))
	case "quit", "exit":
		return true
	default:
		fmt.Fprintf(r.out, "unknown command: /%s\n", cmd)
		r.printHelp()
	}
	return false
}

func (r *repl) printHelp() {
	fmt.Fprintln(r.out, "commands:")
	for _, cmd := range replCommands {
		fmt.Fprintf(r.out, "  /%-10s %s\n", cmd, i18n.T("cmd."+cmd))
	}
}

func (r *repl) printStats() {
	stats, err := r.store.TodayStats()
	if err != nil {
		fmt.Fprintln(r.errW, i18n.T("error.storage", err.Error()))
		return
	}
	fmt.Fprintln(r.out, i18n.T("stats.line", stats.Total, stats.Submitted, stats.Missing))
}

func (r *repl) printStudents(fetch func(taskID int64) ([]storage.Student, error)) {
	task, err := r.store.GetOrCreateTodayTask()
	if err != nil {
		fmt.Fprintln(r.errW, i18n.T("error.storage", err.Error()))
		return
	}
	students, err := fetch(task.ID)
	if err != nil {
		fmt.Fprintln(r.errW, i18n.T("error.storage", err.Error()))
		return
	}
	for _, st := range students {
		fmt.Fprintf(r.out, "%s  %s  %s\n", st.StudentID, st.Name, st.Class)
	}
}

func (r *repl) cmdNewTask() {
	task, err := r.store.GetOrCreateTodayTask()
	if err != nil {
		fmt.Fprintln(r.errW, i18n.T("error.storage", err.Error()))
		return
	}
	if err := r.store.ResetTask(task.ID); err != nil {
		fmt.Fprintln(r.errW, i18n.T("error.storage", err.Error()))
		return
	}
	fmt.Fprintln(r.out, i18n.T("status.task_reset"))
}

func (r *repl) cmdGrade(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(r.out, i18n.T("cmd.grade"))
		return
	}
	id := args[0]
	grade := r.cfg.Grading.DefaultGrade
	if len(args) > 1 {
		grade = args[1]
	}
	st, err := r.store.GetStudent(id)
	if err != nil {
		fmt.Fprintln(r.errW, i18n.T("error.storage", err.Error()))
		return
	}
	if st == nil {
		fmt.Fprintln(r.out, i18n.T("grade.unknown", id))
		return
	}
	task, err := r.store.GetOrCreateTodayTask()
	if err != nil {
		fmt.Fprintln(r.errW, i18n.T("error.storage", err.Error()))
		return
	}
	if err := r.store.SetGrade(task.ID, id, grade); err != nil {
		fmt.Fprintln(r.errW, i18n.T("error.storage", err.Error()))
		return
	}
	fmt.Fprintln(r.out, i18n.T("grade.ok", st.Name, grade))
}

// cmdUnsubmit 撤销一条误录的提交记录
// cmdUnsubmit reverts a mistakenly recorded submission
func (r *repl) cmdUnsubmit(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(r.out, i18n.T("cmd.unsubmit"))
		return
	}
	id := args[0]
	st, err := r.store.GetStudent(id)
	if err != nil {
		fmt.Fprintln(r.errW, i18n.T("error.storage", err.Error()))
		return
	}
	if st == nil {
		fmt.Fprintln(r.out, i18n.T("submit.unknown", id))
		return
	}
	task, err := r.store.GetOrCreateTodayTask()
	if err != nil {
		fmt.Fprintln(r.errW, i18n.T("error.storage", err.Error()))
		return
	}
	if err := r.store.Unsubmit(task.ID, id); err != nil {
		fmt.Fprintln(r.errW, i18n.T("error.storage", err.Error()))
		return
	}
	fmt.Fprintln(r.out, i18n.T("unsubmit.ok", st.Name))
	r.printStats()
}

func (r *repl) cmdImport(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(r.out, i18n.T("import.need_path"))
		return
	}
	count, err := export.ImportRoster(r.store, args[0], r.cfg.Roster.IDLength)
	if err != nil {
		fmt.Fprintln(r.errW, i18n.T("error.generic", err.Error()))
		return
	}
	fmt.Fprintln(r.out, i18n.T("import.ok", count))
}

// cmdExport 导出提交矩阵: /export [week|month|term|all] [班级]
// cmdExport writes the submission matrix CSV
func (r *repl) cmdExport(args []string) {
	preset := export.RangeWeek
	class := ""
	for _, arg := range args {
		switch export.DateRange(strings.ToLower(arg)) {
		case export.RangeWeek, export.RangeMonth, export.RangeTerm, export.RangeAll:
			preset = export.DateRange(strings.ToLower(arg))
		default:
			class = arg
		}
	}
	if class == "" {
		classes, err := r.store.ListClasses()
		if err != nil || len(classes) == 0 {
			fmt.Fprintln(r.out, i18n.T("export.empty"))
			return
		}
		class = classes[0]
	}

	start, end := preset.Bounds(time.Now())
	rows, err := export.Matrix(r.store, r.store, class, start, end)
	if err != nil {
		fmt.Fprintln(r.errW, i18n.T("error.generic", err.Error()))
		return
	}
	path := fmt.Sprintf("assignflow-%s-%s.csv", class, time.Now().Format("20060102"))
	if err := export.WriteCSV(path, rows); err != nil {
		fmt.Fprintln(r.errW, i18n.T("error.generic", err.Error()))
		return
	}
	fmt.Fprintln(r.out, i18n.T("export.ok", path))
}

func (r *repl) cmdModels(args []string) {
	if len(args) > 0 {
		if err := r.prov.SetModel(args[0]); err != nil {
			fmt.Fprintln(r.errW, i18n.T("error.generic", err.Error()))
			return
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	models, err := r.prov.ListModels(ctx)
	if err != nil {
		fmt.Fprintln(r.errW, i18n.T("error.provider", err.Error()))
		return
	}
	current := r.prov.CurrentModel()
	for _, m := range models {
		marker := "  "
		if m.ID == current {
			marker = "* "
		}
		fmt.Fprintf(r.out, "%s%s\n", marker, m.ID)
	}
}
