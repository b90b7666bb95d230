package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shihongDev/simple-todo-note/internal/app"
	"github.com/shihongDev/simple-todo-note/internal/storage"
)

type Screen string

const (
	ScreenList    Screen = "list"
	ScreenAdd     Screen = "add"
	ScreenConfirm Screen = "confirm"
)

type Options struct {
	Client Client
	Frame  *Frame
	IsTTY  func() bool
}

type Model struct {
	client Client
	frame  *Frame

	screen Screen
	mode   app.PanelMode
	err    string

	// sized is set once the terminal has reported its initial geometry;
	// later size reports are user resizes.
	sized bool

	todos      list.Model
	titleInput textinput.Model

	pendingDeleteID string
	styles          styles
}

type styles struct {
	frame  lipgloss.Style
	header lipgloss.Style
	help   lipgloss.Style
	err    lipgloss.Style
}

type loadedMsg struct {
	todos []storage.Todo
	err   error
}

type windowMsg struct {
	prefs app.WindowPrefs
	err   error
}

type mutatedMsg struct {
	err error
}

func Run(opts Options) error {
	if opts.IsTTY != nil && !opts.IsTTY() {
		return fmt.Errorf("tui: requires a tty")
	}
	_, err := tea.NewProgram(NewModel(opts), tea.WithAltScreen()).Run()
	return err
}

func NewModel(opts Options) Model {
	frame := opts.Frame
	if frame == nil {
		frame = NewFrame()
	}

	titleInput := textinput.New()
	titleInput.Placeholder = "What needs doing?"
	titleInput.CharLimit = 200

	delegate := list.NewDefaultDelegate()
	todos := list.New([]list.Item{}, delegate, 0, 0)
	todos.Title = "Todos"
	todos.SetShowStatusBar(false)
	todos.SetFilteringEnabled(true)
	todos.SetShowHelp(false)
	todos.DisableQuitKeybindings()

	m := Model{
		client:     opts.Client,
		frame:      frame,
		screen:     ScreenList,
		mode:       app.PanelModeMini,
		todos:      todos,
		titleInput: titleInput,
		styles: styles{
			frame:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
			header: lipgloss.NewStyle().Bold(true),
			help:   lipgloss.NewStyle().Faint(true),
			err:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		},
	}
	m.layout()
	return m
}

func (m Model) Init() tea.Cmd {
	if m.client == nil {
		return nil
	}
	return tea.Batch(m.restoreCmd(), m.loadCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		if typed.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		if !m.sized {
			m.sized = true
			return m, nil
		}
		width, height := cellsToPixels(typed.Width, typed.Height)
		_ = m.frame.SetSize(width, height)
		m.layout()
		return m, m.resizedCmd(width, height)
	case windowMsg:
		if typed.err != nil {
			m.err = typed.err.Error()
			return m, nil
		}
		m.applyPrefs(typed.prefs)
		return m, nil
	case loadedMsg:
		if typed.err != nil {
			m.err = typed.err.Error()
			return m, nil
		}
		m.populate(typed.todos)
		return m, nil
	case mutatedMsg:
		if typed.err != nil {
			m.err = typed.err.Error()
			return m, nil
		}
		m.err = ""
		return m, m.loadCmd()
	}

	switch m.screen {
	case ScreenAdd:
		return m.updateAdd(msg)
	case ScreenConfirm:
		return m.updateConfirm(msg)
	default:
		return m.updateList(msg)
	}
}

func (m Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && !m.todos.SettingFilter() {
		switch key.String() {
		case "q":
			return m, tea.Quit
		case "a":
			m.screen = ScreenAdd
			m.titleInput.SetValue("")
			m.titleInput.Focus()
			return m, textinput.Blink
		case " ", "x":
			if todo, ok := m.selected(); ok {
				return m, m.mutateCmd(func(ctx context.Context) error {
					_, err := m.client.ToggleTodo(ctx, todo.ID)
					return err
				})
			}
			return m, nil
		case "d":
			if todo, ok := m.selected(); ok {
				m.pendingDeleteID = todo.ID
				m.screen = ScreenConfirm
			}
			return m, nil
		case "[", "]":
			offset := -1
			if key.String() == "]" {
				offset = 1
			}
			ids, ok := m.movedOrder(offset)
			if !ok {
				return m, nil
			}
			m.todos.Select(m.todos.Index() + offset)
			return m, m.mutateCmd(func(ctx context.Context) error {
				return m.client.ReorderTodos(ctx, ids)
			})
		case "m":
			next := app.PanelModeExpanded
			if m.mode == app.PanelModeExpanded {
				next = app.PanelModeMini
			}
			return m, m.windowCmd(func(ctx context.Context) (app.WindowPrefs, error) {
				return m.client.SetPanelMode(ctx, next)
			})
		case "p":
			pinned := !m.frame.Pinned()
			return m, m.windowCmd(func(ctx context.Context) (app.WindowPrefs, error) {
				return m.client.SetAlwaysOnTop(ctx, pinned)
			})
		case "r":
			return m, m.loadCmd()
		}
	}

	var cmd tea.Cmd
	m.todos, cmd = m.todos.Update(msg)
	return m, cmd
}

func (m Model) updateAdd(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			m.screen = ScreenList
			m.titleInput.Blur()
			return m, nil
		case "enter":
			title := strings.TrimSpace(m.titleInput.Value())
			if title == "" {
				m.err = "title cannot be empty"
				return m, nil
			}
			m.screen = ScreenList
			m.titleInput.Blur()
			m.titleInput.SetValue("")
			return m, m.mutateCmd(func(ctx context.Context) error {
				_, err := m.client.CreateTodo(ctx, title)
				return err
			})
		}
	}

	var cmd tea.Cmd
	m.titleInput, cmd = m.titleInput.Update(msg)
	return m, cmd
}

func (m Model) updateConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "y", "enter":
		id := m.pendingDeleteID
		m.pendingDeleteID = ""
		m.screen = ScreenList
		return m, m.mutateCmd(func(ctx context.Context) error {
			return m.client.DeleteTodo(ctx, id)
		})
	case "n", "esc":
		m.pendingDeleteID = ""
		m.screen = ScreenList
	}
	return m, nil
}

func (m Model) View() string {
	pin := ""
	if m.frame.Pinned() {
		pin = " · pinned"
	}
	var b strings.Builder
	b.WriteString(m.styles.header.Render(fmt.Sprintf("Todos · %s%s", m.mode, pin)))
	b.WriteString("\n")
	if m.err != "" {
		b.WriteString(m.styles.err.Render("Error: "+m.err) + "\n")
	}

	switch m.screen {
	case ScreenAdd:
		b.WriteString("\nNew todo: " + m.titleInput.View() + "\n\n")
		b.WriteString(m.styles.help.Render("[enter] Save  [esc] Cancel"))
	case ScreenConfirm:
		b.WriteString("\nDelete selected todo?\n\n")
		b.WriteString(m.styles.help.Render("[y] Confirm  [n]/[esc] Cancel"))
	default:
		if len(m.todos.Items()) == 0 {
			b.WriteString("\nNothing to do.\nPress 'a' to add your first todo.\n")
		} else {
			b.WriteString(m.todos.View() + "\n")
		}
		b.WriteString(m.styles.help.Render(m.helpLine()))
	}

	columns, _ := m.frame.Cells()
	return m.styles.frame.Width(columns).Render(b.String())
}

func (m Model) helpLine() string {
	if m.mode == app.PanelModeMini {
		return "[a] Add [x] Done [d] Del [m] Expand [q] Quit"
	}
	return "[a] Add  [x] Toggle  [d] Delete  [ [ ] ] Move  [m] Mini  [p] Pin  [r] Reload  [/] Filter  [q] Quit"
}

func (m *Model) applyPrefs(prefs app.WindowPrefs) {
	m.mode = prefs.Mode
	_ = m.frame.SetSize(prefs.Width, prefs.Height)
	_ = m.frame.SetPosition(prefs.X, prefs.Y)
	_ = m.frame.SetAlwaysOnTop(prefs.AlwaysOnTop)
	m.layout()
}

// layout sizes the list to the frame, minus the header, help and border.
func (m *Model) layout() {
	columns, rows := m.frame.Cells()
	height := rows - 6
	if height < 1 {
		height = 1
	}
	m.todos.SetSize(columns-4, height)
	m.titleInput.Width = columns - 16
}

func (m *Model) populate(todos []storage.Todo) {
	items := make([]list.Item, 0, len(todos))
	for _, todo := range todos {
		items = append(items, todoItem{todo: todo})
	}
	m.todos.SetItems(items)
}

func (m Model) selected() (storage.Todo, bool) {
	item, ok := m.todos.SelectedItem().(todoItem)
	if !ok {
		return storage.Todo{}, false
	}
	return item.todo, true
}

// movedOrder returns every listed id with the selected todo swapped with its
// neighbour at offset. Reorder expects the complete set, so moves are
// disabled while a filter hides items.
func (m Model) movedOrder(offset int) ([]string, bool) {
	if m.todos.IsFiltered() {
		return nil, false
	}
	items := m.todos.Items()
	from := m.todos.Index()
	to := from + offset
	if from < 0 || to < 0 || to >= len(items) {
		return nil, false
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.(todoItem).todo.ID)
	}
	ids[from], ids[to] = ids[to], ids[from]
	return ids, true
}

func (m Model) loadCmd() tea.Cmd {
	return func() tea.Msg {
		todos, err := m.client.ListTodos(context.Background())
		return loadedMsg{todos: todos, err: err}
	}
}

func (m Model) restoreCmd() tea.Cmd {
	return m.windowCmd(m.client.RestoreWindow)
}

func (m Model) windowCmd(fn func(context.Context) (app.WindowPrefs, error)) tea.Cmd {
	return func() tea.Msg {
		prefs, err := fn(context.Background())
		return windowMsg{prefs: prefs, err: err}
	}
}

func (m Model) mutateCmd(fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return mutatedMsg{err: fn(context.Background())}
	}
}

func (m Model) resizedCmd(width, height float64) tea.Cmd {
	if m.client == nil {
		return nil
	}
	return func() tea.Msg {
		m.client.WindowResized(context.Background(), width, height)
		return nil
	}
}

type todoItem struct {
	todo storage.Todo
}

func (i todoItem) Title() string {
	box := "[ ]"
	if i.todo.Completed {
		box = "[x]"
	}
	return box + " " + i.todo.Title
}

func (i todoItem) Description() string {
	parts := []string{}
	if i.todo.RecurrenceTag != storage.RecurrenceNone {
		parts = append(parts, i.todo.RecurrenceTag)
	}
	if i.todo.DueDate != nil {
		parts = append(parts, "due "+*i.todo.DueDate)
	}
	if i.todo.Note != "" {
		parts = append(parts, i.todo.Note)
	}
	return strings.Join(parts, " · ")
}

func (i todoItem) FilterValue() string { return i.todo.Title + " " + i.todo.Note }
