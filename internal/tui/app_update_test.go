package tui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"assignflow/internal/config"
	"assignflow/internal/i18n"
	"assignflow/internal/provider"
	"assignflow/internal/session"
	"assignflow/internal/storage"
	"assignflow/internal/tools"
)

type stubProvider struct {
	resp provider.ChatResponse
}

func (p *stubProvider) Chat(ctx context.Context, req provider.ChatRequest, cb *provider.StreamCallbacks) (provider.ChatResponse, error) {
	if cb != nil && cb.OnTextChunk != nil && p.resp.Content != "" {
		cb.OnTextChunk(p.resp.Content)
	}
	return p.resp, nil
}

func (p *stubProvider) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	return []provider.ModelInfo{{ID: "stub-model"}}, nil
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) CurrentModel() string { return "stub-model" }

func (p *stubProvider) SetModel(model string) error { return nil }

func newTestApp(t *testing.T) *App {
	t.Helper()
	// 断言针对中文文案，固定 locale / Assertions target the zh strings
	i18n.Init("zh-CN")
	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	for _, st := range []storage.Student{
		{StudentID: "202301", Name: "张三", Class: "2023班"},
		{StudentID: "202302", Name: "李四", Class: "2023班"},
	} {
		if err := store.AddStudent(st); err != nil {
			t.Fatalf("AddStudent: %v", err)
		}
	}

	cfg := config.Default()
	cfg.Provider.APIKey = "test-key"
	prov := &stubProvider{resp: provider.ChatResponse{Content: "好的", FinishReason: "stop"}}
	registry := tools.DefaultRegistry(store, store, store.GetOrCreateTodayTask)
	sess := session.New(prov, registry, cfg.Assistant)

	app := NewApp(store, sess, prov, cfg)
	app.width, app.height = 100, 30
	app.relayout()
	return app
}

func enter(t *testing.T, app *App, text string) (*App, tea.Cmd) {
	t.Helper()
	app.input.SetValue(text)
	m, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return m.(*App), cmd
}

func TestAppUpdate_PageCycling(t *testing.T) {
	app := newTestApp(t)

	want := []PageID{PageGrade, PageRoster, PageExport, PageAssistant, PageSubmit}
	for _, page := range want {
		m, _ := app.Update(tea.KeyMsg{Type: tea.KeyTab})
		app = m.(*App)
		if app.page != page {
			t.Fatalf("page=%v, want %v", app.page, page)
		}
	}
}

func TestAppUpdate_SubmitByStudentID(t *testing.T) {
	app := newTestApp(t)

	app, _ = enter(t, app, "202301")
	if !strings.Contains(app.status, "张三") {
		t.Fatalf("status=%q, want submit ok for 张三", app.status)
	}
	if app.stats.Submitted != 1 || app.stats.Missing != 1 {
		t.Fatalf("stats=%+v", app.stats)
	}
	if app.input.Value() != "" {
		t.Fatalf("input not cleared: %q", app.input.Value())
	}
}

func TestAppUpdate_UnknownIDGoesToSidebar(t *testing.T) {
	app := newTestApp(t)

	app, _ = enter(t, app, "999999")
	if !strings.Contains(app.status, "999999") {
		t.Fatalf("status=%q", app.status)
	}
	if len(app.unknownIDs) != 1 || app.unknownIDs[0] != "999999" {
		t.Fatalf("unknownIDs=%v", app.unknownIDs)
	}
	// 重复录入不重复记录 / Duplicate entries are recorded once
	app, _ = enter(t, app, "999999")
	if len(app.unknownIDs) != 1 {
		t.Fatalf("unknownIDs=%v", app.unknownIDs)
	}
}

func TestAppUpdate_AddAndSubmitShortcut(t *testing.T) {
	app := newTestApp(t)

	app, _ = enter(t, app, "999999")
	if len(app.unknownIDs) != 1 {
		t.Fatalf("unknownIDs=%v", app.unknownIDs)
	}

	// "学号 姓名" 一步补录 / "id name" adds the student then submits
	app, _ = enter(t, app, "999999 王五")
	if len(app.unknownIDs) != 0 {
		t.Fatalf("unknownIDs=%v", app.unknownIDs)
	}
	st, err := app.store.GetStudent("999999")
	if err != nil || st == nil {
		t.Fatalf("GetStudent: %v %+v", err, st)
	}
	if st.Name != "王五" || st.Class != "9999班" {
		t.Fatalf("student=%+v", st)
	}
	if app.stats.Submitted != 1 {
		t.Fatalf("stats=%+v", app.stats)
	}
}

func TestAppUpdate_GradePageUsesDefaultGrade(t *testing.T) {
	app := newTestApp(t)
	app.page = PageGrade

	app, _ = enter(t, app, "202302")
	if !strings.Contains(app.status, "李四") || !strings.Contains(app.status, "A") {
		t.Fatalf("status=%q", app.status)
	}
	var found bool
	for _, d := range app.details {
		if d.StudentID == "202302" {
			found = true
			if d.Status != storage.StatusSubmitted || d.Grade == nil || *d.Grade != "A" {
				t.Fatalf("detail=%+v", d)
			}
		}
	}
	if !found {
		t.Fatal("student 202302 missing from details")
	}
}

func TestAppUpdate_BadPageForStudentID(t *testing.T) {
	app := newTestApp(t)
	app.page = PageRoster

	app, _ = enter(t, app, "202301")
	if !app.statusErr {
		t.Fatalf("expected error status, got %q", app.status)
	}
	if app.stats.Submitted != 0 {
		t.Fatalf("stats=%+v", app.stats)
	}
}

func TestAppUpdate_EasterEgg(t *testing.T) {
	app := newTestApp(t)

	app, _ = enter(t, app, "AssignFlow")
	if !strings.Contains(app.status, "彩蛋") {
		t.Fatalf("status=%q", app.status)
	}
}

func TestAppUpdate_NaturalLanguageRunsAssistant(t *testing.T) {
	app := newTestApp(t)

	app, cmd := enter(t, app, "今天谁没交作业？")
	if app.page != PageAssistant {
		t.Fatalf("page=%v, want assistant", app.page)
	}
	if !app.streaming {
		t.Fatal("expected streaming after ask")
	}

	// 泵事件直到通道关闭 / Pump events until the channel closes
	for i := 0; cmd != nil && i < 64; i++ {
		msg := cmd()
		m, next := app.Update(msg)
		app = m.(*App)
		cmd = next
		if _, closed := msg.(sessionClosedMsg); closed {
			break
		}
	}

	if app.streaming {
		t.Fatal("expected streaming false after done")
	}
	if !strings.Contains(app.chatLog.String(), "好的") {
		t.Fatalf("chat log missing answer: %q", app.chatLog.String())
	}
	if !strings.Contains(app.chatLog.String(), "今天谁没交作业？") {
		t.Fatalf("chat log missing user line: %q", app.chatLog.String())
	}
}

func TestAppUpdate_AskWithoutAPIKey(t *testing.T) {
	app := newTestApp(t)
	app.cfg.Provider.APIKey = ""

	app, cmd := enter(t, app, "帮我统计一下")
	if cmd != nil {
		t.Fatal("expected no command without api key")
	}
	if !app.statusErr {
		t.Fatalf("status=%q", app.status)
	}
}

func TestRenderProgressBar(t *testing.T) {
	if got := renderProgressBar(0, 100, 4); got != "░░░░" {
		t.Fatalf("empty bar=%q", got)
	}
	if got := renderProgressBar(50, 100, 4); got != "██░░" {
		t.Fatalf("half bar=%q", got)
	}
	if got := renderProgressBar(200, 100, 4); got != "████" {
		t.Fatalf("overflow bar=%q", got)
	}
}
