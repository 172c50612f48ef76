// Package ui provides the terminal UI for the kara application: a
// library picker and the karaoke player views.
package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/bookkaraoke/kara/internal/library"
	"github.com/bookkaraoke/kara/internal/timing"
)

// NewProgram returns a new Tea program for the given configuration.
func NewProgram(cfg Config) *tea.Program {
	log.Debug("starting kara", "path", cfg.Path, "library", cfg.LibraryDir)
	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg), opts...)
}

// Run runs the program to completion and surfaces a load failure that
// ended it, which the alt screen would otherwise swallow.
func Run(cfg Config) error {
	final, err := NewProgram(cfg).Run()
	if err != nil {
		return err
	}
	if m, ok := final.(model); ok {
		return m.FatalErr()
	}
	return nil
}

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

// state is the top-level application state.
type state int

const (
	stateLibrary state = iota
	statePlayer
)

type model struct {
	cfg    Config
	state  state
	width  int
	height int

	fatalErr error

	lib    libraryModel
	player *playerModel
}

func newModel(cfg Config) model {
	m := model{
		cfg:   cfg,
		state: stateLibrary,
		lib:   newLibraryModel(cfg),
	}
	return m
}

// Init loads either the requested project or the library listing.
func (m model) Init() tea.Cmd {
	if m.cfg.Path != "" {
		return loadProjectCmd(m.cfg, m.cfg.Path)
	}
	return m.lib.load()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.lib.setSize(msg.Width, msg.Height)
		if m.player != nil {
			m.player.setSize(msg.Width, msg.Height)
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			if m.player != nil {
				m.player.close()
			}
			return m, tea.Quit
		}

	case errMsg:
		m.fatalErr = msg.err
		return m, tea.Quit

	case projectLoadedMsg:
		p, cmd := newPlayerModel(m.cfg, msg)
		p.setSize(m.width, m.height)
		m.player = p
		m.state = statePlayer
		return m, cmd

	case projectChosenMsg:
		return m, loadProjectCmd(m.cfg, msg.path)
	}

	switch m.state {
	case stateLibrary:
		var cmd tea.Cmd
		m.lib, cmd = m.lib.update(msg)
		return m, cmd
	case statePlayer:
		if m.player == nil {
			return m, nil
		}
		cmd, quit := m.player.update(msg)
		if quit {
			m.player.close()
			return m, tea.Quit
		}
		return m, cmd
	}
	return m, nil
}

func (m model) View() string {
	if m.fatalErr != nil {
		return fmt.Sprintf("\n  error: %v\n", m.fatalErr)
	}
	switch m.state {
	case statePlayer:
		if m.player != nil {
			return m.player.view()
		}
	case stateLibrary:
		return m.lib.view()
	}
	return ""
}

// FatalErr exposes a load failure to main after the program exits.
func (m model) FatalErr() error { return m.fatalErr }

// projectChosenMsg carries the library pick.
type projectChosenMsg struct{ path string }

// projectsListedMsg carries a (re)loaded library listing.
type projectsListedMsg struct{ projects []library.Project }

// libraryChangedMsg signals the watched directory changed.
type libraryChangedMsg struct{}

// libraryModel is the project picker.
type libraryModel struct {
	cfg      Config
	lib      *library.Library
	projects []library.Project
	visible  []library.Project
	cursor   int
	filter   textinput.Model
	watching <-chan struct{}
	stopStop func()
	width    int
	height   int
}

func newLibraryModel(cfg Config) libraryModel {
	ti := textinput.New()
	ti.Placeholder = "filter projects"
	ti.Prompt = "/"
	ti.CharLimit = 64
	l := libraryModel{
		cfg:    cfg,
		lib:    library.New(cfg.LibraryDir),
		filter: ti,
	}
	events, stop, err := l.lib.Watch()
	if err != nil {
		// A missing or unwatchable directory still lists (as empty).
		log.Debug("library watch unavailable", "err", err)
	} else {
		l.watching = events
		l.stopStop = stop
	}
	return l
}

func (l libraryModel) load() tea.Cmd {
	lib := l.lib
	listCmd := func() tea.Msg {
		projects, err := lib.List()
		if err != nil {
			return errMsg{err}
		}
		return projectsListedMsg{projects}
	}
	return tea.Batch(listCmd, l.waitForChange())
}

func (l *libraryModel) waitForChange() tea.Cmd {
	ch := l.watching
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return libraryChangedMsg{}
	}
}

func (l *libraryModel) setSize(w, h int) {
	l.width = w
	l.height = h
}

func (l libraryModel) update(msg tea.Msg) (libraryModel, tea.Cmd) {
	switch msg := msg.(type) {
	case projectsListedMsg:
		l.projects = msg.projects
		l.applyFilter()
		return l, nil

	case libraryChangedMsg:
		lib := l.lib
		return l, tea.Batch(func() tea.Msg {
			projects, err := lib.List()
			if err != nil {
				return errMsg{err}
			}
			return projectsListedMsg{projects}
		}, l.waitForChange())

	case tea.KeyMsg:
		if l.filter.Focused() {
			switch msg.String() {
			case "enter", "esc":
				l.filter.Blur()
				return l, nil
			default:
				var cmd tea.Cmd
				l.filter, cmd = l.filter.Update(msg)
				l.applyFilter()
				return l, cmd
			}
		}
		switch msg.String() {
		case "q":
			return l, tea.Quit
		case "/":
			l.filter.Focus()
			return l, textinput.Blink
		case "up", "k":
			if l.cursor > 0 {
				l.cursor--
			}
		case "down", "j":
			if l.cursor < len(l.visible)-1 {
				l.cursor++
			}
		case "enter":
			if l.cursor < len(l.visible) {
				if l.stopStop != nil {
					l.stopStop()
				}
				return l, func() tea.Msg {
					return projectChosenMsg{path: l.visible[l.cursor].Path}
				}
			}
		}
	}
	return l, nil
}

func (l *libraryModel) applyFilter() {
	l.visible = library.Filter(l.projects, l.filter.Value())
	if l.cursor >= len(l.visible) {
		l.cursor = 0
	}
}

var (
	libTitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFD700")).Padding(0, 1)
	libSelectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700"))
	libDimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
)

func (l libraryModel) view() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(libTitleStyle.Render("Book Karaoke · Library"))
	b.WriteString("\n\n")

	if len(l.visible) == 0 {
		b.WriteString(libDimStyle.Render("  no projects in " + l.lib.Dir()))
		b.WriteString("\n")
	}
	for i, p := range l.visible {
		line := fmt.Sprintf("  %s  %s", p.Title,
			libDimStyle.Render(p.HumanAge()+" · "+p.HumanSize()))
		if i == l.cursor {
			line = libSelectedStyle.Render("▸") + line[1:]
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if l.filter.Focused() || l.filter.Value() != "" {
		b.WriteString("  " + l.filter.View() + "\n")
	}
	b.WriteString(libDimStyle.Render("  enter: play · /: filter · q: quit"))
	return b.String()
}

// readPayload loads a project file from disk.
func readPayload(path string) (*timing.Payload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening project: %w", err)
	}
	defer f.Close()
	return timing.DecodePayload(f)
}

// resolveAudioPath maps the payload's audio URL to a local file next to
// the project file when it is not absolute.
func resolveAudioPath(projectPath, audioURL string) string {
	if filepath.IsAbs(audioURL) {
		return audioURL
	}
	return filepath.Join(filepath.Dir(projectPath), filepath.Base(audioURL))
}
