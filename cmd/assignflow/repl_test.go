package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"assignflow/internal/config"
	"assignflow/internal/i18n"
	"assignflow/internal/provider"
	"assignflow/internal/router"
	"assignflow/internal/session"
	"assignflow/internal/storage"
	"assignflow/internal/tools"
)

type fakeProvider struct {
	content string
}

func (p *fakeProvider) Chat(ctx context.Context, req provider.ChatRequest, cb *provider.StreamCallbacks) (provider.ChatResponse, error) {
	if cb != nil && cb.OnTextChunk != nil {
		cb.OnTextChunk(p.content)
	}
	return provider.ChatResponse{Content: p.content, FinishReason: "stop"}, nil
}

func (p *fakeProvider) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	return []provider.ModelInfo{{ID: "deepseek-chat"}, {ID: "deepseek-reasoner"}}, nil
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) CurrentModel() string { return "deepseek-chat" }

func (p *fakeProvider) SetModel(model string) error { return nil }

func newTestREPL(t *testing.T) (*repl, *bytes.Buffer) {
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
	if _, err := store.GetOrCreateTodayTask(); err != nil {
		t.Fatalf("today task: %v", err)
	}

	cfg := config.Default()
	cfg.Provider.APIKey = "test-key"
	prov := &fakeProvider{content: "好的"}
	registry := tools.DefaultRegistry(store, store, store.GetOrCreateTodayTask)
	sess := session.New(prov, registry, cfg.Assistant)

	out := &bytes.Buffer{}
	r := &repl{
		store: store,
		sess:  sess,
		prov:  prov,
		cfg:   cfg,
		route: router.New(cfg.Roster.IDLength),
		out:   out,
		errW:  out,
	}
	return r, out
}

func TestREPLQuickSubmit(t *testing.T) {
	r, out := newTestREPL(t)

	r.handleLine("202301")
	got := out.String()
	if !strings.Contains(got, "张三") {
		t.Fatalf("output=%q", got)
	}
	if !strings.Contains(got, "已交:1") {
		t.Fatalf("missing stats line: %q", got)
	}

	out.Reset()
	r.handleLine("999999")
	if !strings.Contains(out.String(), "999999") {
		t.Fatalf("unknown id output=%q", out.String())
	}
}

func TestREPLEasterEgg(t *testing.T) {
	r, out := newTestREPL(t)

	r.handleLine("assignflow")
	if !strings.Contains(out.String(), "彩蛋") {
		t.Fatalf("output=%q", out.String())
	}
}

func TestREPLAssistantLine(t *testing.T) {
	r, out := newTestREPL(t)

	r.handleLine("今天谁没交作业？")
	if !strings.Contains(out.String(), "好的") {
		t.Fatalf("output=%q", out.String())
	}
}

func TestREPLStatsCommand(t *testing.T) {
	r, out := newTestREPL(t)

	if exit := r.handleCommand("/stats"); exit {
		t.Fatal("stats should not exit")
	}
	if !strings.Contains(out.String(), "总人数:2") {
		t.Fatalf("output=%q", out.String())
	}
}

func TestREPLGradeCommand(t *testing.T) {
	r, out := newTestREPL(t)

	r.handleCommand("/grade 202302 B+")
	if !strings.Contains(out.String(), "李四") || !strings.Contains(out.String(), "B+") {
		t.Fatalf("output=%q", out.String())
	}

	out.Reset()
	r.handleCommand("/grade 999999")
	if !strings.Contains(out.String(), "999999") {
		t.Fatalf("output=%q", out.String())
	}
}

func TestREPLUnsubmitCommand(t *testing.T) {
	r, out := newTestREPL(t)

	r.handleLine("202301")
	out.Reset()

	r.handleCommand("/unsubmit 202301")
	got := out.String()
	if !strings.Contains(got, "张三") || !strings.Contains(got, "已恢复为未交") {
		t.Fatalf("output=%q", got)
	}
	if !strings.Contains(got, "已交:0") {
		t.Fatalf("missing stats line: %q", got)
	}

	out.Reset()
	r.handleCommand("/unsubmit 999999")
	if !strings.Contains(out.String(), "999999") {
		t.Fatalf("unknown id output=%q", out.String())
	}

	out.Reset()
	r.handleCommand("/unsubmit")
	if !strings.Contains(out.String(), "/unsubmit") {
		t.Fatalf("usage output=%q", out.String())
	}
}

func TestREPLImportAndExport(t *testing.T) {
	r, out := newTestREPL(t)

	csvPath := filepath.Join(t.TempDir(), "roster.csv")
	if err := os.WriteFile(csvPath, []byte("学号,姓名\n202401,王五\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	r.handleCommand("/import " + csvPath)
	if !strings.Contains(out.String(), "1") {
		t.Fatalf("import output=%q", out.String())
	}

	work := t.TempDir()
	oldwd, _ := os.Getwd()
	if err := os.Chdir(work); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldwd) })

	out.Reset()
	r.handleCommand("/export all 2023班")
	if !strings.Contains(out.String(), ".csv") {
		t.Fatalf("export output=%q", out.String())
	}
	entries, err := os.ReadDir(work)
	if err != nil || len(entries) != 1 {
		t.Fatalf("entries=%v err=%v", entries, err)
	}
}

func TestREPLQuit(t *testing.T) {
	r, _ := newTestREPL(t)

	if exit := r.handleCommand("/quit"); !exit {
		t.Fatal("quit should exit")
	}
	if exit := r.handleCommand("/help"); exit {
		t.Fatal("help should not exit")
	}
}

func TestREPLUnknownCommand(t *testing.T) {
	r, out := newTestREPL(t)

	r.handleCommand("/bogus")
	if !strings.Contains(out.String(), "unknown command") {
		t.Fatalf("output=%q", out.String())
	}
}

func TestREPLModelsCommand(t *testing.T) {
	r, out := newTestREPL(t)

	r.handleCommand("/models")
	got := out.String()
	if !strings.Contains(got, "* deepseek-chat") || !strings.Contains(got, "deepseek-reasoner") {
		t.Fatalf("output=%q", got)
	}
}
