package main

import (
	"flag"
	"fmt"
	"os"

	"assignflow/internal/config"
	"assignflow/internal/i18n"
	"assignflow/internal/provider"
	"assignflow/internal/router"
	"assignflow/internal/session"
	"assignflow/internal/storage"
	"assignflow/internal/tools"
	"assignflow/internal/tui"
)

func main() {
	var (
		configPath string
		replMode   bool
	)
	flag.StringVar(&configPath, "config", "", "Path to config JSON/JSONC")
	flag.BoolVar(&replMode, "repl", false, "Run the line-mode REPL instead of the TUI")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}

	i18n.Init("")

	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database failed: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	// 启动即物化今日任务，录入路径无需再建 / Materialize today's task up
	// front so the quick-entry path never has to
	if _, err := store.GetOrCreateTodayTask(); err != nil {
		fmt.Fprintf(os.Stderr, "init today task failed: %v\n", err)
		os.Exit(1)
	}

	prov := provider.NewOpenAIProvider(cfg.Provider)
	registry := tools.DefaultRegistry(store, store, store.GetOrCreateTodayTask)
	sess := session.New(prov, registry, cfg.Assistant,
		session.WithLiveContext(liveContext(store)),
	)

	if replMode {
		r := &repl{
			store: store,
			sess:  sess,
			prov:  prov,
			cfg:   cfg,
			route: router.New(cfg.Roster.IDLength),
			out:   os.Stdout,
			errW:  os.Stderr,
		}
		if err := r.run(); err != nil {
			fmt.Fprintf(os.Stderr, "repl failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	app := tui.NewApp(store, sess, prov, cfg)
	if err := tui.Run(app); err != nil {
		fmt.Fprintf(os.Stderr, "tui failed: %v\n", err)
		os.Exit(1)
	}
}

// liveContext 把当前任务和统计注入助手 system prompt
// liveContext feeds the current task and stats into the system prompt
func liveContext(store *storage.Store) session.ContextFunc {
	return func() string {
		task, err := store.GetOrCreateTodayTask()
		if err != nil {
			return ""
		}
		stats, err := store.TaskStats(task.ID)
		if err != nil {
			return fmt.Sprintf("当前任务: %s (%s)", task.Name, task.Date)
		}
		return fmt.Sprintf("当前任务: %s (%s)\n%s",
			task.Name, task.Date,
			i18n.T("stats.line", stats.Total, stats.Submitted, stats.Missing))
	}
}
