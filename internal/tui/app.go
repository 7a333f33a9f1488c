// Package tui is the interactive task board. It is a bubbletea program
// over a viewmodel.Board: key presses become Board calls run as tea.Cmds,
// and Board notifications are fed back in as messages.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"taskdesk/internal/logging"
	"taskdesk/internal/service"
	"taskdesk/internal/viewmodel"
)

type mode int

const (
	modeList    mode = iota // Task list
	modeForm                // Create or edit dialog
	modeAssign              // User picker
	modeConfirm             // Delete confirmation
	modeSearch              // Search input
)

// Form fields, in tab order.
const (
	fieldTitle = iota
	fieldDescription
	fieldStatus
	fieldPriority
	fieldDue
	fieldCount
)

var fieldLabels = [fieldCount]string{"Title", "Description", "Status", "Priority", "Due"}

var (
	bannerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")).Background(lipgloss.Color("#5B8DEF")).Padding(0, 1)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	noteStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	overdueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	dialogStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#5B8DEF")).Padding(0, 1)
)

var statusStyles = map[service.TaskStatus]lipgloss.Style{
	service.StatusPending:    lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC")),
	service.StatusInProgress: lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")),
	service.StatusCompleted:  lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")),
	service.StatusCancelled:  lipgloss.NewStyle().Foreground(lipgloss.Color("#999999")),
}

// viewMsg carries a fresh Board snapshot.
type viewMsg struct{ view viewmodel.View }

// actionMsg reports a finished Board call.
type actionMsg struct {
	view viewmodel.View
	ok   bool
	kind string
}

// Option customizes App construction.
type Option func(*App)

// WithLogger sets the logger. Logs must not go to the terminal the App
// draws on.
func WithLogger(l *logrus.Entry) Option {
	return func(a *App) { a.log = l }
}

// WithClock overrides the clock used to flag overdue tasks.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// App is the bubbletea model of the task board.
type App struct {
	ctx   context.Context
	board *viewmodel.Board
	log   *logrus.Entry
	now   func() time.Time

	changed     chan struct{}
	unsubscribe func()

	view   viewmodel.View
	mode   mode
	cursor int
	note   string

	inputs [fieldCount]textinput.Model
	focus  int
	search textinput.Model
	users  list.Model
	spin   spinner.Model

	width  int
	height int
}

// userItem adapts a user to the picker list.
type userItem struct{ user service.User }

func (i userItem) Title() string {
	if n := i.user.Name(); n != "" {
		return n
	}
	return "(unnamed)"
}
func (i userItem) Description() string { return i.user.ID }
func (i userItem) FilterValue() string { return i.user.Name() }

// New creates the App. ctx bounds every request the App issues.
func New(ctx context.Context, board *viewmodel.Board, opts ...Option) *App {
	a := &App{
		ctx:     ctx,
		board:   board,
		now:     time.Now,
		changed: make(chan struct{}, 1),
		width:   80,
		height:  24,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	a.log = logging.OrDiscard(a.log).WithField("component", "tui")

	for i := range a.inputs {
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = 500
		a.inputs[i] = in
	}
	a.inputs[fieldStatus].Placeholder = "PENDING | IN_PROGRESS | COMPLETED | CANCELLED"
	a.inputs[fieldPriority].Placeholder = "LOW | MEDIUM | HIGH | URGENT"
	a.inputs[fieldDue].Placeholder = "YYYY-MM-DD"

	a.search = textinput.New()
	a.search.Prompt = "/"
	a.search.Placeholder = "search title and description"

	a.users = list.New(nil, list.NewDefaultDelegate(), 60, 14)
	a.users.Title = "Assign to"
	a.users.SetShowStatusBar(false)
	a.users.SetFilteringEnabled(false)
	a.users.SetShowHelp(false)

	a.spin = spinner.New()
	a.spin.Spinner = spinner.Dot

	a.view = board.Snapshot()
	a.unsubscribe = board.Subscribe(func(viewmodel.View) {
		select {
		case a.changed <- struct{}{}:
		default:
		}
	})
	return a
}

// Close detaches the App from the Board.
func (a *App) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
}

// Init starts the board and the notification loop.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.listen(), a.spin.Tick, a.start())
}

func (a *App) start() tea.Cmd {
	return a.run("start", func(ctx context.Context) bool {
		a.board.Start(ctx)
		return true
	})
}

// listen waits for the next Board change. Bursts of changes coalesce
// into one snapshot.
func (a *App) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-a.changed:
			return viewMsg{view: a.board.Snapshot()}
		case <-a.ctx.Done():
			return nil
		}
	}
}

// run performs fn off the update loop and reports its outcome.
func (a *App) run(kind string, fn func(ctx context.Context) bool) tea.Cmd {
	return func() tea.Msg {
		ok := fn(a.ctx)
		return actionMsg{view: a.board.Snapshot(), ok: ok, kind: kind}
	}
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.users.SetSize(max(20, msg.Width-6), max(5, msg.Height-8))
		return a, nil

	case viewMsg:
		a.setView(msg.view)
		return a, a.listen()

	case actionMsg:
		a.setView(msg.view)
		a.finish(msg)
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		switch a.mode {
		case modeForm:
			return a.updateForm(msg)
		case modeAssign:
			return a.updateAssign(msg)
		case modeConfirm:
			return a.updateConfirm(msg)
		case modeSearch:
			return a.updateSearch(msg)
		default:
			return a.updateList(msg)
		}
	}
	return a, nil
}

func (a *App) setView(v viewmodel.View) {
	a.view = v
	if a.cursor >= len(v.Tasks) {
		a.cursor = max(0, len(v.Tasks)-1)
	}
	items := make([]list.Item, len(v.Users))
	for i, u := range v.Users {
		items[i] = userItem{user: u}
	}
	a.users.SetItems(items)
}

// finish applies the dialog transitions of a completed action.
func (a *App) finish(msg actionMsg) {
	switch msg.kind {
	case "submit":
		if msg.ok {
			a.mode = modeList
			a.note = "saved"
		}
	case "assign":
		if msg.ok {
			a.mode = modeList
			a.note = "assigned"
		}
	case "delete":
		if msg.ok {
			a.note = "deleted"
		}
	}
	a.log.WithField("action", msg.kind).WithField("ok", msg.ok).Debug("action finished")
}

func (a *App) selected() (service.Task, bool) {
	if a.cursor < 0 || a.cursor >= len(a.view.Tasks) {
		return service.Task{}, false
	}
	return a.view.Tasks[a.cursor], true
}

func (a *App) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a.note = ""
	switch msg.String() {
	case "q":
		return a, tea.Quit
	case "up", "k":
		if a.cursor > 0 {
			a.cursor--
		}
	case "down", "j":
		if a.cursor < len(a.view.Tasks)-1 {
			a.cursor++
		}
	case "r":
		return a, a.run("refresh", func(ctx context.Context) bool {
			a.board.Refresh(ctx)
			return true
		})
	case "x":
		a.board.ClearError()
		a.view = a.board.Snapshot()
	case "a":
		a.board.OpenCreate()
		return a, a.openForm()
	case "e":
		if t, ok := a.selected(); ok && a.board.OpenEdit(t.ID) {
			return a, a.openForm()
		}
	case "d":
		if _, ok := a.selected(); ok {
			a.mode = modeConfirm
		}
	case "s":
		if t, ok := a.selected(); ok {
			next := viewmodel.NextStatus(t.Status)
			return a, a.run("status", func(ctx context.Context) bool {
				return a.board.ChangeStatus(ctx, t.ID, string(next)) == nil
			})
		}
	case "u":
		if t, ok := a.selected(); ok && a.board.OpenAssign(t.ID) {
			a.mode = modeAssign
			a.users.Select(0)
		}
	case "f":
		f := a.view.Filters
		f.Status = cycle(service.Statuses, f.Status)
		return a, a.setFilters(f)
	case "p":
		f := a.view.Filters
		f.Priority = cycle(service.Priorities, f.Priority)
		return a, a.setFilters(f)
	case "/":
		a.mode = modeSearch
		a.search.SetValue(a.view.Filters.Search)
		return a, a.search.Focus()
	}
	return a, nil
}

func (a *App) setFilters(f service.TaskFilters) tea.Cmd {
	return a.run("filter", func(ctx context.Context) bool {
		return a.board.SetFilters(ctx, f)
	})
}

// cycle steps through values with "" (no filter) before the first.
func cycle[T comparable](values []T, cur T) T {
	var zero T
	if cur == zero {
		return values[0]
	}
	for i, v := range values {
		if v == cur && i+1 < len(values) {
			return values[i+1]
		}
	}
	return zero
}

func (a *App) openForm() tea.Cmd {
	form := a.board.Form()
	a.inputs[fieldTitle].SetValue(form.Title)
	a.inputs[fieldDescription].SetValue(form.Description)
	a.inputs[fieldStatus].SetValue(string(form.Status))
	a.inputs[fieldPriority].SetValue(string(form.Priority))
	a.inputs[fieldDue].SetValue(form.DueDate)
	a.mode = modeForm
	a.view = a.board.Snapshot()
	return a.focusField(fieldTitle)
}

func (a *App) focusField(i int) tea.Cmd {
	for j := range a.inputs {
		a.inputs[j].Blur()
	}
	a.focus = i
	return a.inputs[i].Focus()
}

func (a *App) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.board.CloseForm()
		a.mode = modeList
		a.view = a.board.Snapshot()
		return a, nil
	case "tab", "down":
		return a, a.focusField((a.focus + 1) % fieldCount)
	case "shift+tab", "up":
		return a, a.focusField((a.focus + fieldCount - 1) % fieldCount)
	case "enter", "ctrl+s":
		if msg.String() == "enter" && a.focus < fieldCount-1 {
			return a, a.focusField(a.focus + 1)
		}
		form, err := a.formValues()
		if err != nil {
			a.note = err.Error()
			return a, nil
		}
		a.note = ""
		return a, a.run("submit", func(ctx context.Context) bool {
			return a.board.Submit(ctx, form)
		})
	}
	var cmd tea.Cmd
	a.inputs[a.focus], cmd = a.inputs[a.focus].Update(msg)
	return a, cmd
}

// formValues reads the dialog. Status and priority accept any casing.
func (a *App) formValues() (viewmodel.TaskForm, error) {
	form := viewmodel.TaskForm{
		Title:       strings.TrimSpace(a.inputs[fieldTitle].Value()),
		Description: a.inputs[fieldDescription].Value(),
		DueDate:     strings.TrimSpace(a.inputs[fieldDue].Value()),
	}
	if raw := strings.TrimSpace(a.inputs[fieldStatus].Value()); raw != "" {
		s, err := service.ParseTaskStatus(raw)
		if err != nil {
			return form, err
		}
		form.Status = s
	}
	if raw := strings.TrimSpace(a.inputs[fieldPriority].Value()); raw != "" {
		p, err := service.ParseTaskPriority(raw)
		if err != nil {
			return form, err
		}
		form.Priority = p
	}
	return form, nil
}

func (a *App) updateAssign(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.board.CloseAssign()
		a.mode = modeList
		a.view = a.board.Snapshot()
		return a, nil
	case "enter":
		item, ok := a.users.SelectedItem().(userItem)
		if !ok {
			return a, nil
		}
		userID := item.user.ID
		return a, a.run("assign", func(ctx context.Context) bool {
			return a.board.Assign(ctx, userID)
		})
	}
	var cmd tea.Cmd
	a.users, cmd = a.users.Update(msg)
	return a, cmd
}

func (a *App) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a.mode = modeList
	t, ok := a.selected()
	if !ok || (msg.String() != "y" && msg.String() != "Y") {
		return a, nil
	}
	return a, a.run("delete", func(ctx context.Context) bool {
		return a.board.Delete(ctx, t.ID, nil)
	})
}

func (a *App) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.search.Blur()
		a.mode = modeList
		return a, nil
	case "enter":
		a.search.Blur()
		a.mode = modeList
		f := a.view.Filters
		f.Search = strings.TrimSpace(a.search.Value())
		return a, a.setFilters(f)
	}
	var cmd tea.Cmd
	a.search, cmd = a.search.Update(msg)
	return a, cmd
}

// View renders the board.
func (a *App) View() string {
	var b strings.Builder
	b.WriteString(bannerStyle.Render("taskdesk"))
	if a.view.Loading {
		b.WriteString("  " + a.spin.View() + hintStyle.Render("loading"))
	}
	b.WriteString("\n")
	b.WriteString(hintStyle.Render(a.filterLine()) + "\n")

	if line := errorLine(a.view.Err); line != "" {
		b.WriteString(errorStyle.Render(line) + hintStyle.Render("  (x to dismiss)") + "\n")
	}
	if line := errorLine(a.view.UserErr); line != "" {
		b.WriteString(errorStyle.Render("users: "+line) + "\n")
	}
	if a.note != "" {
		b.WriteString(noteStyle.Render(a.note) + "\n")
	}
	b.WriteString("\n")

	switch a.mode {
	case modeForm:
		b.WriteString(a.formView())
	case modeAssign:
		b.WriteString(dialogStyle.Render(a.users.View()))
		b.WriteString("\n" + hintStyle.Render("enter assign · esc cancel"))
	case modeSearch:
		b.WriteString(a.tasksView())
		b.WriteString("\n" + a.search.View())
	case modeConfirm:
		b.WriteString(a.tasksView())
		if t, ok := a.selected(); ok {
			b.WriteString("\n" + noteStyle.Render(fmt.Sprintf("delete %q? y/n", t.Title)))
		}
	default:
		b.WriteString(a.tasksView())
		b.WriteString("\n" + hintStyle.Render("a add · e edit · d delete · s status · u assign · f/p filter · / search · r refresh · q quit"))
	}
	return b.String()
}

func (a *App) filterLine() string {
	f := a.view.Filters
	status, priority := "all", "all"
	if f.Status != "" {
		status = f.Status.Label()
	}
	if f.Priority != "" {
		priority = string(f.Priority)
	}
	line := fmt.Sprintf("status: %s · priority: %s", status, priority)
	if s := strings.TrimSpace(f.Search); s != "" {
		line += fmt.Sprintf(" · search: %q", s)
	}
	return line
}

func errorLine(err *service.APIError) string {
	if err == nil {
		return ""
	}
	line := "error: " + err.Message
	if msg := err.FirstValidationMessage(); msg != "" {
		line += " (" + msg + ")"
	}
	return line
}

func (a *App) tasksView() string {
	if len(a.view.Tasks) == 0 {
		if a.view.Loading {
			return ""
		}
		return hintStyle.Render("no tasks found") + "\n"
	}
	now := a.now()
	var b strings.Builder
	for i, t := range a.view.Tasks {
		cursor := "  "
		title := t.Title
		if strings.TrimSpace(title) == "" {
			title = "(untitled)"
		}
		if i == a.cursor {
			cursor = "> "
			title = selectedStyle.Render(title)
		}
		status := statusStyles[t.Status].Render(fmt.Sprintf("%-11s", t.Status))
		line := fmt.Sprintf("%s%s  %-6s  %s", cursor, status, t.Priority, title)
		if t.Assignee != nil {
			line += hintStyle.Render("  @" + t.Assignee.Name())
		}
		if due, ok := t.Due(); ok {
			line += hintStyle.Render("  due " + due.UTC().Format("2006-01-02"))
		}
		if t.Overdue(now) {
			line += overdueStyle.Render("  overdue")
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (a *App) formView() string {
	title := "New task"
	if a.view.Editing != nil {
		title = "Edit task"
	}
	var b strings.Builder
	b.WriteString(selectedStyle.Render(title) + "\n\n")
	for i := range a.inputs {
		label := fmt.Sprintf("%-12s", fieldLabels[i]+":")
		if i == a.focus {
			label = selectedStyle.Render(label)
		}
		b.WriteString(label + " " + a.inputs[i].View() + "\n")
	}
	b.WriteString("\n" + hintStyle.Render("tab next · enter save · esc cancel"))
	return dialogStyle.Render(b.String())
}
