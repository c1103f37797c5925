package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"assignflow/internal/config"
	"assignflow/internal/i18n"
	"assignflow/internal/provider"
	"assignflow/internal/router"
	"assignflow/internal/session"
	"assignflow/internal/storage"
	"assignflow/internal/tools"
)

// PageID 页面标识
// PageID identifies one page of the app
type PageID int

const (
	PageSubmit PageID = iota
	PageGrade
	PageRoster
	PageExport
	PageAssistant
	pageCount
)

func (p PageID) titleKey() string {
	switch p {
	case PageSubmit:
		return "page.submit"
	case PageGrade:
		return "page.grade"
	case PageRoster:
		return "page.roster"
	case PageExport:
		return "page.export"
	default:
		return "page.assistant"
	}
}

// SessionEventMsg 包装一条助手会话事件
// SessionEventMsg wraps one assistant session event
type SessionEventMsg struct {
	Event session.Event
}

// sessionClosedMsg 表示事件通道已关闭
// sessionClosedMsg reports the event channel has closed
type sessionClosedMsg struct{}

// listenCmd 从事件通道取下一条事件
// listenCmd pulls the next event off the channel
func listenCmd(ch <-chan session.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return sessionClosedMsg{}
		}
		return SessionEventMsg{Event: ev}
	}
}

// App 是应用的 bubbletea 模型：五个页面共用一条输入行，
// 输入按 Router 规则分流到快速录入或 AI 助手。
// App is the bubbletea model. Five pages share a single input line;
// input is dispatched by the Router to quick entry or the assistant.
type App struct {
	store *storage.Store
	sess  *session.Session
	prov  provider.Provider
	route *router.Router
	cfg   config.Config

	keys  KeyMap
	theme Theme

	page     PageID
	input    textinput.Model
	chatView viewport.Model
	width    int
	height   int
	ready    bool

	status    string
	statusErr bool
	streaming bool
	streamBuf strings.Builder
	chatLog   strings.Builder
	events    <-chan session.Event

	task       storage.Task
	stats      storage.Stats
	details    []storage.TaskDetail
	students   []storage.Student
	tasks      []storage.Task
	unknownIDs []string
	tokens     int
	tokenLimit int
	lastExport string
}

// NewApp 构造 App 并载入初始数据
// NewApp builds the App and loads initial data
func NewApp(store *storage.Store, sess *session.Session, prov provider.Provider, cfg config.Config) *App {
	ti := textinput.New()
	ti.Placeholder = i18n.T("input.placeholder")
	ti.CharLimit = 512
	ti.Focus()

	a := &App{
		store:  store,
		sess:   sess,
		prov:   prov,
		route:  router.New(cfg.Roster.IDLength),
		cfg:    cfg,
		keys:   DefaultKeyMap(),
		theme:  DarkTheme(),
		page:   PageSubmit,
		input:  ti,
		status: i18n.T("status.ready"),
	}
	a.refreshData()
	a.tokens, a.tokenLimit = sess.TokenEstimate()
	return a
}

func (a *App) Init() tea.Cmd {
	return textinput.Blink
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.relayout()
		return a, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, a.keys.Quit):
			a.sess.Cancel()
			return a, tea.Quit
		case key.Matches(msg, a.keys.SwitchPage):
			a.page = (a.page + 1) % pageCount
			a.setStatus(i18n.T("status.ready"), false)
			return a, nil
		case key.Matches(msg, a.keys.Cancel):
			if a.streaming {
				a.sess.Cancel()
			}
			return a, nil
		case key.Matches(msg, a.keys.Submit):
			return a, a.handleSubmit()
		case key.Matches(msg, a.keys.ScrollUp):
			if a.page == PageAssistant {
				a.chatView.LineUp(1)
				return a, nil
			}
		case key.Matches(msg, a.keys.ScrollDown):
			if a.page == PageAssistant {
				a.chatView.LineDown(1)
				return a, nil
			}
		}
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		return a, cmd

	case SessionEventMsg:
		return a, a.handleEvent(msg.Event)

	case sessionClosedMsg:
		a.events = nil
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// handleSubmit 处理回车：按页面和输入类型分流
// handleSubmit dispatches one entered line by page and input kind
func (a *App) handleSubmit() tea.Cmd {
	text := strings.TrimSpace(a.input.Value())
	if text == "" {
		return nil
	}
	a.input.SetValue("")

	// 录入页支持 "学号 姓名" 一步补录并标记已交
	// On the submit page "id name" adds the student and marks submitted
	if a.page == PageSubmit {
		if fields := strings.Fields(text); len(fields) == 2 {
			if kind, id := a.route.Classify(fields[0]); kind == router.KindStudentID {
				a.addAndSubmit(id, fields[1])
				return nil
			}
		}
	}

	kind, text := a.route.Classify(text)
	switch kind {
	case router.KindEasterEgg:
		a.setStatus(i18n.T("egg.body"), false)
		return nil
	case router.KindStudentID:
		switch a.page {
		case PageSubmit:
			a.markSubmitted(text)
		case PageGrade:
			a.setGrade(text, a.cfg.Grading.DefaultGrade)
		case PageAssistant:
			return a.ask(text)
		default:
			a.setStatus(i18n.T("status.bad_page"), true)
		}
		return nil
	default:
		a.page = PageAssistant
		return a.ask(text)
	}
}

func (a *App) markSubmitted(id string) {
	st, err := a.store.GetStudent(id)
	if err != nil {
		a.setStatus(i18n.T("error.storage", err.Error()), true)
		return
	}
	if st == nil {
		a.rememberUnknown(id)
		a.setStatus(i18n.T("submit.unknown", id), true)
		return
	}
	if err := a.store.Submit(a.task.ID, id); err != nil {
		a.setStatus(i18n.T("error.storage", err.Error()), true)
		return
	}
	a.setStatus(i18n.T("submit.ok", st.Name), false)
	a.refreshData()
}

func (a *App) setGrade(id, grade string) {
	st, err := a.store.GetStudent(id)
	if err != nil {
		a.setStatus(i18n.T("error.storage", err.Error()), true)
		return
	}
	if st == nil {
		a.rememberUnknown(id)
		a.setStatus(i18n.T("grade.unknown", id), true)
		return
	}
	if err := a.store.SetGrade(a.task.ID, id, grade); err != nil {
		a.setStatus(i18n.T("error.storage", err.Error()), true)
		return
	}
	a.setStatus(i18n.T("grade.ok", st.Name, grade), false)
	a.refreshData()
}

func (a *App) addAndSubmit(id, name string) {
	st := storage.Student{
		StudentID: id,
		Name:      name,
		Class:     tools.ClassFromStudentID(id),
	}
	if err := a.store.AddStudent(st); err != nil {
		a.setStatus(i18n.T("error.storage", err.Error()), true)
		return
	}
	if err := a.store.Submit(a.task.ID, id); err != nil {
		a.setStatus(i18n.T("error.storage", err.Error()), true)
		return
	}
	a.forgetUnknown(id)
	a.setStatus(i18n.T("submit.ok", name), false)
	a.refreshData()
}

func (a *App) ask(text string) tea.Cmd {
	if strings.TrimSpace(a.cfg.Provider.APIKey) == "" {
		a.setStatus(i18n.T("status.no_api_key"), true)
		return nil
	}

	ch, err := a.sess.Ask(context.Background(), text)
	if err != nil {
		if errors.Is(err, session.ErrBusy) {
			a.setStatus(i18n.T("status.busy"), true)
		} else {
			a.setStatus(i18n.T("error.generic", err.Error()), true)
		}
		return nil
	}

	a.appendChat(fmt.Sprintf("**你:** %s", text))
	a.streaming = true
	a.streamBuf.Reset()
	a.events = ch
	a.setStatus(i18n.T("status.streaming"), false)
	return listenCmd(ch)
}

// handleEvent 消费一条会话事件并继续监听
// handleEvent consumes one session event and keeps listening
func (a *App) handleEvent(ev session.Event) tea.Cmd {
	switch ev.Kind {
	case session.EventTextChunk:
		a.streamBuf.WriteString(ev.Text)
		a.syncChatView()

	case session.EventToolStart:
		a.appendChat(fmt.Sprintf("> ⚙ %s %s", ev.Tool, ev.Detail))

	case session.EventToolResult:
		a.appendChat(fmt.Sprintf("> ✓ %s: %s", ev.Tool, ev.Detail))
		a.refreshData()

	case session.EventContextUpdate:
		a.tokens = ev.Tokens
		a.tokenLimit = ev.Limit

	case session.EventDone:
		a.streaming = false
		a.streamBuf.Reset()
		if ev.Text != "" {
			a.appendChat(ev.Text)
		}
		a.refreshData()
		a.setStatus(i18n.T("status.ready"), false)

	case session.EventCancelled:
		a.streaming = false
		a.streamBuf.Reset()
		a.syncChatView()
		a.setStatus(i18n.T("status.cancelled"), false)

	case session.EventFailed:
		a.streaming = false
		a.streamBuf.Reset()
		a.syncChatView()
		a.refreshData()
		if ev.Err != nil {
			a.setStatus(i18n.T("error.provider", ev.Err.Error()), true)
		}
	}

	if a.events == nil {
		return nil
	}
	return listenCmd(a.events)
}

func (a *App) setStatus(text string, isErr bool) {
	a.status = text
	a.statusErr = isErr
}

func (a *App) forgetUnknown(id string) {
	for i, u := range a.unknownIDs {
		if u == id {
			a.unknownIDs = append(a.unknownIDs[:i], a.unknownIDs[i+1:]...)
			return
		}
	}
}

func (a *App) rememberUnknown(id string) {
	for _, u := range a.unknownIDs {
		if u == id {
			return
		}
	}
	a.unknownIDs = append(a.unknownIDs, id)
}

// refreshData 重新读取当前任务、统计与列表
// refreshData reloads the current task, stats and lists
func (a *App) refreshData() {
	task, err := a.store.GetOrCreateTodayTask()
	if err != nil {
		a.setStatus(i18n.T("error.storage", err.Error()), true)
		return
	}
	a.task = task
	if stats, err := a.store.TaskStats(task.ID); err == nil {
		a.stats = stats
	}
	if details, err := a.store.TaskDetails(task.ID); err == nil {
		a.details = details
	}
	if students, err := a.store.ListStudents(); err == nil {
		a.students = students
	}
	if tasks, err := a.store.ListTasks(); err == nil {
		a.tasks = tasks
	}
}

func (a *App) appendChat(md string) {
	if a.chatLog.Len() > 0 {
		a.chatLog.WriteString("\n\n")
	}
	a.chatLog.WriteString(md)
	a.syncChatView()
}

func (a *App) syncChatView() {
	if !a.ready {
		return
	}
	content := a.chatLog.String()
	if a.streamBuf.Len() > 0 {
		if content != "" {
			content += "\n\n"
		}
		content += a.streamBuf.String()
	}
	a.chatView.SetContent(RenderMarkdown(content, a.chatView.Width))
	a.chatView.GotoBottom()
}

const sidebarWidth = 28

func (a *App) relayout() {
	mainWidth := a.width - sidebarWidth
	if mainWidth < 20 {
		mainWidth = a.width
	}
	// tabs(1) + input(2) + statusbar(1)
	bodyHeight := a.height - 4
	if bodyHeight < 3 {
		bodyHeight = 3
	}
	if !a.ready {
		a.chatView = viewport.New(mainWidth, bodyHeight)
		a.ready = true
	} else {
		a.chatView.Width = mainWidth
		a.chatView.Height = bodyHeight
	}
	a.input.Width = a.width - 4
	a.syncChatView()
}

func (a *App) View() string {
	if !a.ready {
		return i18n.T("status.ready")
	}

	tabs := a.renderTabs()
	body := lipgloss.JoinHorizontal(
		lipgloss.Top,
		a.renderPage(),
		a.theme.SidebarStyle.Width(sidebarWidth-2).Render(a.renderSidebar()),
	)
	input := a.theme.InputStyle.Width(a.width).Render(a.input.View())
	status := a.renderStatusBar()

	return lipgloss.JoinVertical(lipgloss.Left, tabs, body, input, status)
}

func (a *App) renderTabs() string {
	parts := make([]string, 0, int(pageCount))
	for p := PageID(0); p < pageCount; p++ {
		label := i18n.T(p.titleKey())
		if p == a.page {
			parts = append(parts, a.theme.ActiveTabStyle.Render(label))
		} else {
			parts = append(parts, a.theme.InactiveTabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (a *App) renderPage() string {
	mainWidth := a.width - sidebarWidth
	if mainWidth < 20 {
		mainWidth = a.width
	}
	height := a.height - 4
	if height < 3 {
		height = 3
	}
	style := lipgloss.NewStyle().Width(mainWidth).Height(height)

	switch a.page {
	case PageSubmit, PageGrade:
		return style.Render(a.renderDetails())
	case PageRoster:
		return style.Render(a.renderRoster())
	case PageExport:
		return style.Render(a.renderExportHelp())
	default:
		return a.chatView.View()
	}
}

func (a *App) renderDetails() string {
	var b strings.Builder
	b.WriteString(a.theme.TitleStyle.Render(fmt.Sprintf("%s  %s", a.task.Name, a.task.Date)))
	b.WriteString("\n\n")
	for _, d := range a.details {
		var mark string
		if d.Status == storage.StatusSubmitted {
			mark = a.theme.SubmittedStyle.Render("✓ 已交")
			if d.Grade != nil && *d.Grade != "" {
				mark += "  " + a.theme.GradeStyle.Render(*d.Grade)
			}
		} else {
			mark = a.theme.MissingStyle.Render("✗ 未交")
		}
		fmt.Fprintf(&b, "%s  %-8s %s\n", d.StudentID, d.Name, mark)
	}
	return b.String()
}

func (a *App) renderRoster() string {
	var b strings.Builder
	byClass := make(map[string][]storage.Student)
	order := []string{}
	for _, st := range a.students {
		if _, ok := byClass[st.Class]; !ok {
			order = append(order, st.Class)
		}
		byClass[st.Class] = append(byClass[st.Class], st)
	}
	for _, class := range order {
		b.WriteString(a.theme.TitleStyle.Render(class))
		b.WriteString("\n")
		for _, st := range byClass[class] {
			fmt.Fprintf(&b, "  %s  %s\n", st.StudentID, st.Name)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (a *App) renderExportHelp() string {
	var b strings.Builder
	b.WriteString(a.theme.TitleStyle.Render(i18n.T("page.export")))
	b.WriteString("\n\n")
	b.WriteString(a.theme.MutedStyle.Render("/export [week|month|term|all] [班级]"))
	b.WriteString("\n\n")
	for _, t := range a.tasks {
		fmt.Fprintf(&b, "  #%d  %s  %s\n", t.ID, t.Date, t.Name)
	}
	if a.lastExport != "" {
		b.WriteString("\n")
		b.WriteString(a.theme.SuccessStyle.Render(i18n.T("export.ok", a.lastExport)))
	}
	return b.String()
}

func (a *App) renderSidebar() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s %s\n\n", a.theme.TitleStyle.Render(i18n.T("sidebar.task")), a.task.Name, a.task.Date)
	fmt.Fprintf(&b, "%s\n%s\n\n",
		a.theme.TitleStyle.Render(i18n.T("sidebar.stats")),
		i18n.T("stats.line", a.stats.Total, a.stats.Submitted, a.stats.Missing))
	fmt.Fprintf(&b, "%s\n%s %d/%d\n\n",
		a.theme.TitleStyle.Render(i18n.T("sidebar.context")),
		renderProgressBar(a.tokens, a.tokenLimit, 12), a.tokens, a.tokenLimit)
	fmt.Fprintf(&b, "%s\n%s\n", a.theme.TitleStyle.Render(i18n.T("sidebar.model")), a.prov.CurrentModel())
	if len(a.unknownIDs) > 0 {
		fmt.Fprintf(&b, "\n%s\n", a.theme.TitleStyle.Render(i18n.T("sidebar.unknown")))
		for _, id := range a.unknownIDs {
			b.WriteString(a.theme.MissingStyle.Render("  " + id))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (a *App) renderStatusBar() string {
	left := a.status
	if a.statusErr {
		left = a.theme.ErrorStyle.Render(left)
	}
	hint := a.theme.MutedStyle.Render(i18n.T("input.hint"))
	gap := a.width - lipgloss.Width(left) - lipgloss.Width(hint)
	if gap < 1 {
		gap = 1
	}
	return a.theme.StatusBarStyle.Width(a.width).Render(left + strings.Repeat(" ", gap) + hint)
}

// renderProgressBar 渲染定宽的 token 占用进度条
// renderProgressBar renders the fixed-width token usage bar
func renderProgressBar(value, max, width int) string {
	if width <= 0 {
		width = 10
	}
	if max <= 0 {
		return strings.Repeat("░", width)
	}
	filled := value * width / max
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// Run 启动 TUI
// Run starts the TUI
func Run(app *App) error {
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}
