package ui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/five82/shelf/internal/cache"
	"github.com/five82/shelf/internal/library"
	"github.com/five82/shelf/internal/lookup"
	"github.com/five82/shelf/internal/mutation"
	"github.com/five82/shelf/internal/prefs"
	"github.com/five82/shelf/internal/state"
)

// View represents the current active view.
type View int

const (
	ViewDashboard View = iota
	ViewBooks
	ViewSearch
	ViewLogs
)

var viewOrder = []View{ViewDashboard, ViewBooks, ViewSearch, ViewLogs}

func (v View) String() string {
	switch v {
	case ViewBooks:
		return "Books"
	case ViewSearch:
		return "Search"
	case ViewLogs:
		return "Logs"
	default:
		return "Dashboard"
	}
}

// Core is the data layer the UI reads from and writes through.
// *state.Store implements it.
type Core interface {
	Snapshot() state.Snapshot
	EnsureFresh(ctx context.Context, key string) (any, error)
	Subscribe(key string, fn cache.Listener) func()
	Mutate(ctx context.Context, req mutation.Request) mutation.Result
	Search(query string)
	LookupResults() <-chan lookup.Result
	Refresh(ctx context.Context) error
}

// Options configures the UI.
type Options struct {
	Context   context.Context
	Store     Core
	ChartURL  string
	LogPath   string
	ThemeName string
	Sort      prefs.SortOrder
	PrefsPath string
	Tick      time.Duration
	Logger    *zap.Logger
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	store     Core
	chartURL  string
	logPath   string
	prefsPath string
	tick      time.Duration
	logger    *zap.Logger

	// Subscription bridge
	changes *changeFeed
	lookups <-chan lookup.Result

	// UI state
	keys        keyMap
	help        help.Model
	theme       Theme
	sort        prefs.SortOrder
	currentView View
	width       int
	height      int
	ready       bool
	showHelp    bool
	showChart   bool

	// Data state
	snapshot    state.Snapshot
	lastUpdated time.Time

	// Books state
	selectedRow   int
	form          *bookForm
	confirmDelete *library.Book

	// Search state
	searchInput textinput.Model
	lastQuery   string

	// Log state
	logViewport viewport.Model
	logEntries  int

	// Flash message in the footer
	flash      string
	flashError bool
}

// New creates a new Bubble Tea model. The returned function releases the
// cache subscriptions and must be called when the program exits.
func New(opts Options) (Model, func()) {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sortOrder := opts.Sort
	if !sortOrder.Valid() {
		sortOrder = prefs.SortTitle
	}

	search := textinput.New()
	search.Placeholder = "title, author or ISBN"
	search.Prompt = "lookup › "
	search.CharLimit = 200

	m := Model{
		ctx:         ctx,
		store:       opts.Store,
		chartURL:    opts.ChartURL,
		logPath:     opts.LogPath,
		prefsPath:   opts.PrefsPath,
		tick:        tick,
		logger:      logger,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		theme:       GetTheme(opts.ThemeName),
		sort:        sortOrder,
		currentView: ViewDashboard,
		searchInput: search,
	}

	release := func() {}
	if m.store != nil {
		m.changes, release = subscribe(m.store, library.KeyBooks, library.KeyStats)
		m.lookups = m.store.LookupResults()
		m.snapshot = m.store.Snapshot()
	}
	return m, release
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.tick)}
	if m.changes != nil {
		cmds = append(cmds, waitForChange(m.changes))
	}
	if m.lookups != nil {
		cmds = append(cmds, waitForLookup(m.lookups))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.logViewport = viewport.New(msg.Width, m.contentHeight())
		}
		m.ready = true
		m.logViewport.Width = msg.Width
		m.logViewport.Height = m.contentHeight()
		m.help.Width = msg.Width
		m.searchInput.Width = max(10, msg.Width-20)
		return m, nil

	case tickMsg:
		return m.handleTick()

	case changeMsg:
		m.refreshSnapshot()
		cmds := []tea.Cmd{waitForChange(m.changes)}
		for _, k := range msg.keys {
			cmds = append(cmds, m.ensureFreshCmd(k))
		}
		return m, tea.Batch(cmds...)

	case fetchedMsg:
		if msg.err != nil && m.ctx.Err() == nil {
			m.logger.Debug("read failed", zap.String("key", msg.key), zap.Error(msg.err))
		}
		m.refreshSnapshot()
		return m, nil

	case lookupMsg:
		m.refreshSnapshot()
		if msg.Type == lookup.ResultError {
			m.setFlash("lookup: "+msg.Message, true)
		}
		return m, waitForLookup(m.lookups)

	case mutationMsg:
		m.handleMutationResult(mutation.Result(msg))
		return m, nil

	case refreshedMsg:
		m.refreshSnapshot()
		if msg.err != nil {
			m.setFlash("refresh failed: "+library.KindOf(msg.err).String(), true)
		} else {
			m.setFlash("refreshed", false)
		}
		return m, nil

	case logsMsg:
		m.handleLogs(msg)
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderMain()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	// Modal states own the keyboard
	if m.form != nil {
		return m.handleFormKey(msg)
	}
	if m.confirmDelete != nil {
		return m.handleConfirmKey(msg)
	}
	if m.currentView == ViewSearch {
		return m.handleSearchKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.savePrefs()
		return m, nil
	case key.Matches(msg, m.keys.Tab):
		return m.switchView(nextView(m.currentView))
	case key.Matches(msg, m.keys.ViewDashboard):
		return m.switchView(ViewDashboard)
	case key.Matches(msg, m.keys.ViewBooks):
		return m.switchView(ViewBooks)
	case key.Matches(msg, m.keys.ViewSearch):
		return m.switchView(ViewSearch)
	case key.Matches(msg, m.keys.ViewLogs):
		return m.switchView(ViewLogs)
	case key.Matches(msg, m.keys.Refresh):
		return m, m.refreshCmd()
	case key.Matches(msg, m.keys.Chart):
		m.showChart = !m.showChart
		return m, nil
	case key.Matches(msg, m.keys.Escape):
		m.showChart = false
		return m.switchView(ViewDashboard)
	}

	switch m.currentView {
	case ViewBooks:
		return m.handleBooksKey(msg)
	case ViewLogs:
		var cmd tea.Cmd
		m.logViewport, cmd = m.logViewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) switchView(v View) (tea.Model, tea.Cmd) {
	m.currentView = v
	switch v {
	case ViewSearch:
		return m, m.searchInput.Focus()
	case ViewLogs:
		m.searchInput.Blur()
		return m, m.readLogsCmd()
	default:
		m.searchInput.Blur()
	}
	return m, nil
}

func nextView(v View) View {
	for i, candidate := range viewOrder {
		if candidate == v {
			return viewOrder[(i+1)%len(viewOrder)]
		}
	}
	return ViewDashboard
}

// handleTick processes the periodic tick.
func (m Model) handleTick() (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{tickCmd(m.tick)}
	m.refreshSnapshot()
	if m.currentView == ViewLogs {
		cmds = append(cmds, m.readLogsCmd())
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) refreshSnapshot() {
	if m.store == nil {
		return
	}
	m.snapshot = m.store.Snapshot()
	m.lastUpdated = time.Now()
	if n := len(m.snapshot.Books); m.selectedRow >= n {
		m.selectedRow = max(0, n-1)
	}
}

func (m *Model) setFlash(text string, isError bool) {
	m.flash = text
	m.flashError = isError
}

func (m *Model) savePrefs() {
	if err := prefs.Save(m.prefsPath, prefs.Prefs{Theme: m.theme.Name, Sort: m.sort}); err != nil {
		m.logger.Warn("save prefs failed", zap.Error(err))
	}
}

func (m Model) contentHeight() int {
	// header, tab bar, footer
	return max(3, m.height-4)
}

// renderMain renders the full UI.
func (m Model) renderMain() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n")
	b.WriteString(m.renderContent())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

// renderContent renders the main content area based on current view.
func (m Model) renderContent() string {
	switch {
	case m.form != nil:
		return m.renderForm()
	case m.confirmDelete != nil:
		return m.renderConfirm()
	}
	switch m.currentView {
	case ViewBooks:
		return m.renderBooks()
	case ViewSearch:
		return m.renderSearch()
	case ViewLogs:
		return m.renderLogs()
	default:
		return m.renderDashboard()
	}
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m, release := New(opts)
	defer release()

	programOpts := []tea.ProgramOption{tea.WithAltScreen()}
	if opts.Context != nil {
		programOpts = append(programOpts, tea.WithContext(opts.Context))
	}
	p := tea.NewProgram(m, programOpts...)
	_, err := p.Run()
	if err != nil && opts.Context != nil && opts.Context.Err() != nil {
		// Cancelled from outside (signal); not a UI failure.
		return nil
	}
	return err
}
