package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/aipm/internal/core"
	"github.com/valter-silva-au/aipm/pkg/models"
)

// boardKeys are the board's key bindings.
type boardKeys struct {
	NextBucket key.Binding
	PrevBucket key.Binding
	Up         key.Binding
	Down       key.Binding
	Advance    key.Binding
	Retreat    key.Binding
	Refresh    key.Binding
	Quit       key.Binding
}

func defaultBoardKeys() boardKeys {
	return boardKeys{
		NextBucket: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next bucket")),
		PrevBucket: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev bucket")),
		Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Advance:    key.NewBinding(key.WithKeys(">", "."), key.WithHelp(">", "advance")),
		Retreat:    key.NewBinding(key.WithKeys("<", ","), key.WithHelp("<", "retreat")),
		Refresh:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Quit:       key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k boardKeys) help() string {
	bindings := []key.Binding{k.NextBucket, k.Up, k.Down, k.Advance, k.Retreat, k.Refresh, k.Quit}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+": "+h.Desc)
	}
	return strings.Join(parts, " | ")
}

// boardModel shows one bucket at a time with a column per progress stage.
type boardModel struct {
	tm       core.TaskManager
	keys     boardKeys
	showDone bool

	buckets      []models.Bucket
	tasks        []models.Task
	hints        map[uuid.UUID]core.ParentHint
	activeBucket int
	selectedID   uuid.UUID

	width   int
	height  int
	loading bool
	status  string
	err     error
}

// boardLoadedMsg carries a fresh read of the board.
type boardLoadedMsg struct {
	buckets []models.Bucket
	tasks   []models.Task
	hints   []core.ParentHint
	err     error
}

// boardSteppedMsg reports an in-place progress change.
type boardSteppedMsg struct {
	title    string
	progress models.Progress
	changed  bool
	err      error
}

var (
	boardTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	tabStyle       = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("245"))
	activeTabStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62"))

	columnStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	columnHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	selectedStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("226"))
	hintStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	dimStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	priorityHigh     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	priorityCritical = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

func newBoardModel(tm core.TaskManager, showDone bool) boardModel {
	return boardModel{
		tm:       tm,
		keys:     defaultBoardKeys(),
		showDone: showDone,
		hints:    make(map[uuid.UUID]core.ParentHint),
		loading:  true,
	}
}

func (m boardModel) Init() tea.Cmd {
	return m.load
}

func (m boardModel) load() tea.Msg {
	tasks, err := m.tm.ListTasks(core.TaskFilter{})
	if err != nil {
		return boardLoadedMsg{err: fmt.Errorf("loading tasks: %w", err)}
	}
	return boardLoadedMsg{buckets: m.tm.Buckets(), tasks: tasks, hints: m.tm.ParentHints()}
}

// step moves the selected task one stage without recording a snapshot.
func (m boardModel) step(forward bool) tea.Cmd {
	t, ok := m.selectedTask()
	if !ok {
		return nil
	}
	tm := m.tm
	return func() tea.Msg {
		var res core.EditResult
		_, err := tm.ExecUnrecorded(func(e *core.Engine) error {
			var err error
			if forward {
				res, err = e.AdvanceProgress(t.ID.String())
			} else {
				res, err = e.RetreatProgress(t.ID.String())
			}
			return err
		})
		return boardSteppedMsg{title: t.Title, progress: res.Task.Progress, changed: res.Changed, err: err}
	}
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case boardLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.buckets = msg.buckets
		m.tasks = msg.tasks
		m.hints = make(map[uuid.UUID]core.ParentHint, len(msg.hints))
		for _, h := range msg.hints {
			m.hints[h.ParentID] = h
		}
		if m.activeBucket >= len(m.buckets) {
			m.activeBucket = 0
		}
		m.keepSelection()
		return m, nil

	case boardSteppedMsg:
		switch {
		case msg.err != nil:
			m.status = ""
			m.err = msg.err
		case msg.changed:
			m.err = nil
			m.status = fmt.Sprintf("%q -> %s", msg.title, msg.progress.Title())
		default:
			m.err = nil
			m.status = fmt.Sprintf("%q is already %s", msg.title, msg.progress.Title())
		}
		return m, m.load
	}
	return m, nil
}

func (m boardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.NextBucket):
		if n := len(m.buckets); n > 0 {
			m.activeBucket = (m.activeBucket + 1) % n
			m.selectedID = uuid.Nil
			m.keepSelection()
		}
	case key.Matches(msg, m.keys.PrevBucket):
		if n := len(m.buckets); n > 0 {
			m.activeBucket = (m.activeBucket - 1 + n) % n
			m.selectedID = uuid.Nil
			m.keepSelection()
		}
	case key.Matches(msg, m.keys.Up):
		m.moveSelection(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveSelection(1)
	case key.Matches(msg, m.keys.Advance):
		return m, m.step(true)
	case key.Matches(msg, m.keys.Retreat):
		return m, m.step(false)
	case key.Matches(msg, m.keys.Refresh):
		m.loading = true
		return m, m.load
	}
	return m, nil
}

// visibleTasks returns the active bucket's tasks ordered by stage, then by
// board order within a stage.
func (m boardModel) visibleTasks() []models.Task {
	if len(m.buckets) == 0 {
		return nil
	}
	bucket := m.buckets[m.activeBucket].Name
	var out []models.Task
	for _, stage := range m.stages() {
		for _, t := range m.tasks {
			if t.Progress == stage && models.SameBucketName(t.Bucket, bucket) {
				out = append(out, t)
			}
		}
	}
	return out
}

func (m boardModel) stages() []models.Progress {
	if m.showDone {
		return models.AllProgress
	}
	return models.AllProgress[:len(models.AllProgress)-1]
}

func (m boardModel) selectedTask() (models.Task, bool) {
	for _, t := range m.visibleTasks() {
		if t.ID == m.selectedID {
			return t, true
		}
	}
	return models.Task{}, false
}

// keepSelection selects the first visible task when the current selection
// left the view.
func (m *boardModel) keepSelection() {
	if _, ok := m.selectedTask(); ok {
		return
	}
	m.selectedID = uuid.Nil
	if vis := m.visibleTasks(); len(vis) > 0 {
		m.selectedID = vis[0].ID
	}
}

func (m *boardModel) moveSelection(delta int) {
	vis := m.visibleTasks()
	if len(vis) == 0 {
		return
	}
	idx := 0
	for i, t := range vis {
		if t.ID == m.selectedID {
			idx = i
			break
		}
	}
	idx = max(0, min(len(vis)-1, idx+delta))
	m.selectedID = vis[idx].ID
}

func (m boardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := boardTitleStyle.Render(" aipm board ")
	help := dimStyle.Render(m.keys.help())

	if m.loading && len(m.buckets) == 0 {
		return fmt.Sprintf("%s\n\n  Loading board...\n\n%s", title, help)
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")
	b.WriteString(m.renderColumns())
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render("  Error: " + m.err.Error()))
		b.WriteString("\n")
	case m.status != "":
		b.WriteString("  " + m.status + "\n")
	}
	b.WriteString("\n")
	b.WriteString(help)
	return b.String()
}

func (m boardModel) renderTabs() string {
	tabs := make([]string, 0, len(m.buckets))
	for i, bk := range m.buckets {
		style := tabStyle
		if i == m.activeBucket {
			style = activeTabStyle
		}
		tabs = append(tabs, style.Render(bk.Name))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m boardModel) renderColumns() string {
	stages := m.stages()
	vis := m.visibleTasks()

	colWidth := (m.width - 2) / len(stages)
	colWidth = max(colWidth-4, 16)

	cols := make([]string, 0, len(stages))
	for _, stage := range stages {
		var c strings.Builder
		var inStage []models.Task
		for _, t := range vis {
			if t.Progress == stage {
				inStage = append(inStage, t)
			}
		}
		c.WriteString(columnHeaderStyle.Render(fmt.Sprintf("%s (%d)", stage.Title(), len(inStage))))
		c.WriteString("\n")
		if len(inStage) == 0 {
			c.WriteString(dimStyle.Render("  -"))
		}
		for _, t := range inStage {
			c.WriteString(m.renderCard(t, colWidth))
			c.WriteString("\n")
		}
		cols = append(cols, columnStyle.Width(colWidth).Render(c.String()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func (m boardModel) renderCard(t models.Task, width int) string {
	marker := "  "
	titleStyle := lipgloss.NewStyle()
	if t.ID == m.selectedID {
		marker = "> "
		titleStyle = selectedStyle
	}

	line := marker + truncate(t.Title, width-2)
	lines := []string{titleStyle.Render(line)}

	meta := t.ShortID()
	switch t.Priority {
	case models.PriorityCritical:
		meta += " " + priorityCritical.Render("!!")
	case models.PriorityHigh:
		meta += " " + priorityHigh.Render("!")
	}
	if t.DueDate != nil {
		meta += " due " + t.DueDate.String()
	}
	if t.ParentID != nil {
		meta += " ↳"
	}
	lines = append(lines, dimStyle.Render("  "+meta))

	if h, ok := m.hints[t.ID]; ok && h.Suggested != t.Progress {
		lines = append(lines, hintStyle.Render("  subtasks: "+h.Suggested.Title()))
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Interactive terminal board",
	Long: `Launch an interactive board showing one bucket at a time with a column
per progress stage. Parents whose subtasks suggest a different stage are
marked.

Switch buckets with tab/shift+tab, select with up/down, move the selected task
with > and <, refresh with r, quit with q. Moves made here are applied in place
and are not added to the undo history.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTaskManager(); err != nil {
			return err
		}
		showDone := Config != nil && Config.Board.ShowDone
		p := tea.NewProgram(newBoardModel(TaskMgr, showDone), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(boardCmd)
}
