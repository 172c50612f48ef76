package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"

	"github.com/bookkaraoke/kara/internal/audio"
	"github.com/bookkaraoke/kara/internal/karaoke"
	"github.com/bookkaraoke/kara/internal/render"
	"github.com/bookkaraoke/kara/internal/search"
	"github.com/bookkaraoke/kara/internal/session"
	"github.com/bookkaraoke/kara/internal/timing"
)

// speeds is the playback rate cycle, matching the transport button.
var speeds = []float64{0.5, 0.75, 1, 1.25, 1.5, 2}

// projectLoadedMsg carries a decoded project ready to play.
type projectLoadedMsg struct {
	path      string
	payload   *timing.Payload
	audioPath string
}

// engineEventMsg wraps an engine event for the Tea loop.
type engineEventMsg struct{ ev karaoke.Event }

// loadProjectCmd reads the payload and stages the audio file locally.
func loadProjectCmd(cfg Config, path string) tea.Cmd {
	return func() tea.Msg {
		payload, err := readPayload(path)
		if err != nil {
			return errMsg{err}
		}
		audioPath := payload.AudioURL
		if strings.HasPrefix(audioPath, "http://") || strings.HasPrefix(audioPath, "https://") {
			client := session.NewClient("")
			local, err := client.DownloadAudio(context.Background(), audioPath, cfg.LibraryDir)
			if err != nil {
				return errMsg{err}
			}
			audioPath = local
		} else {
			audioPath = resolveAudioPath(path, audioPath)
		}
		return projectLoadedMsg{path: path, payload: payload, audioPath: audioPath}
	}
}

// playerView selects which renderer is on screen.
type playerView int

const (
	viewPaged playerView = iota
	viewTeleprompter
)

type playerModel struct {
	cfg     Config
	payload *timing.Payload

	engine *karaoke.Engine
	paged  *render.Paged
	cont   *render.Continuous
	index  *search.Index

	events chan karaoke.Event

	mode        playerView
	searchOpen  bool
	searchInput textinput.Model

	time     float64
	progress float64
	duration float64
	volume   float64
	speedIdx int
	status   string

	width  int
	height int
}

func newPlayerModel(cfg Config, msg projectLoadedMsg) (*playerModel, tea.Cmd) {
	clock := karaoke.SystemClock()

	settings := render.DefaultSettings()
	if !termenv.HasDarkBackground() {
		settings.SpokenColor = "#555555"
		settings.UpcomingColor = "#AAAAAA"
		settings.BackgroundColor = "#F5F5F5"
	}
	if cfg.HighlightColor != "" {
		settings.HighlightColor = cfg.HighlightColor
	}

	paged := render.NewPaged(clock)
	cont := render.NewContinuous(clock)
	for _, r := range []render.Renderer{paged, cont} {
		r.ApplySettings(settings)
		r.SetChunks(msg.payload.Chunks)
		r.SetFormatting(msg.payload.FormattingMap())
	}
	cont.Build(msg.payload.Chapters)

	engine := karaoke.New(karaoke.DefaultConfig())
	index := search.New(engine)
	index.SetChunks(msg.payload.Chunks)
	index.SetRenderer(paged)

	ti := textinput.New()
	ti.Placeholder = "search transcript"
	ti.Prompt = "/"
	ti.CharLimit = 64

	p := &playerModel{
		cfg:         cfg,
		payload:     msg.payload,
		engine:      engine,
		paged:       paged,
		cont:        cont,
		index:       index,
		events:      make(chan karaoke.Event, 64),
		searchInput: ti,
		volume:      cfg.Volume,
		speedIdx:    nearestSpeed(cfg.Speed),
	}
	if cfg.Teleprompter {
		p.mode = viewTeleprompter
		index.SetRenderer(cont)
	}

	engine.Notify(func(ev karaoke.Event) {
		select {
		case p.events <- ev:
		default:
			// Drop ticks rather than block the engine loop; the next
			// timeupdate carries a complete snapshot anyway.
		}
	})
	engine.SetTimestamps(msg.payload.Chunks)

	audioPath := msg.audioPath
	loadCmd := func() tea.Msg {
		err := engine.LoadAudio(context.Background(), func(context.Context) (karaoke.TimeSource, error) {
			return audio.Open(audioPath)
		})
		if err != nil {
			return errMsg{err}
		}
		return nil
	}
	return p, tea.Batch(loadCmd, p.waitForEvent())
}

// nearestSpeed maps a configured rate onto the cycle.
func nearestSpeed(rate float64) int {
	if rate <= 0 {
		return 2 // 1x
	}
	best := 0
	for i, s := range speeds {
		if abs(s-rate) < abs(speeds[best]-rate) {
			best = i
		}
	}
	return best
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func (p *playerModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return engineEventMsg{ev: <-p.events}
	}
}

func (p *playerModel) setSize(w, h int) {
	p.width = w
	p.height = h
	displayH := h - 5
	if displayH < 1 {
		displayH = 1
	}
	p.paged.SetSize(w-4, displayH)
	p.cont.SetSize(w-4, displayH)
}

func (p *playerModel) close() {
	p.engine.Destroy()
	p.paged.Destroy()
	p.cont.Destroy()
}

func (p *playerModel) active() render.Renderer {
	if p.mode == viewTeleprompter {
		return p.cont
	}
	return p.paged
}

// update returns a command and whether the application should quit.
func (p *playerModel) update(msg tea.Msg) (tea.Cmd, bool) {
	switch msg := msg.(type) {
	case engineEventMsg:
		p.handleEvent(msg.ev)
		return p.waitForEvent(), false

	case tea.MouseMsg:
		if p.mode == viewTeleprompter {
			switch msg.Button {
			case tea.MouseButtonWheelUp:
				p.cont.UserScroll(-3)
			case tea.MouseButtonWheelDown:
				p.cont.UserScroll(3)
			}
		}
		return nil, false

	case tea.KeyMsg:
		return p.handleKey(msg)
	}
	return nil, false
}

func (p *playerModel) handleEvent(ev karaoke.Event) {
	switch ev := ev.(type) {
	case karaoke.LoadedEvent:
		p.duration = ev.Duration
		p.engine.SetVolume(p.volume)
		p.engine.SetPlaybackRate(speeds[p.speedIdx])
		p.paged.ShowChunk(0, false)
		p.status = "loaded"

	case karaoke.TimeUpdateEvent:
		p.time = ev.Time
		p.progress = ev.Progress
		p.paged.UpdateTime(ev.Time, ev.ChunkIndex, ev.WordIndex, ev.FadeAlpha)
		p.cont.UpdateTime(ev.Time, ev.ChunkIndex, ev.WordIndex, ev.FadeAlpha)
		p.paged.UpdateProgress(ev.Progress)
		p.cont.UpdateProgress(ev.Progress)

	case karaoke.ChunkChangeEvent:
		p.paged.ShowChunk(ev.ChunkIndex, true)

	case karaoke.EndedEvent:
		p.status = "finished"

	case karaoke.SeekEvent:
		log.Debug("seek", "time", ev.Time)
	}
}

func (p *playerModel) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if p.searchOpen {
		switch msg.String() {
		case "enter":
			p.searchOpen = false
			matches := p.index.RunQuery(p.searchInput.Value())
			if len(matches) > 0 {
				p.index.GoToMatch(0)
				p.status = fmt.Sprintf("match 1/%d", len(matches))
			} else {
				p.status = "no matches"
			}
			return nil, false
		case "esc":
			p.searchOpen = false
			p.searchInput.SetValue("")
			p.index.RunQuery("")
			p.status = ""
			return nil, false
		default:
			var cmd tea.Cmd
			p.searchInput, cmd = p.searchInput.Update(msg)
			return cmd, false
		}
	}

	switch msg.String() {
	case "q", "esc":
		return nil, true

	case " ":
		if err := p.engine.Toggle(); err != nil {
			p.status = err.Error()
		}

	case "left":
		p.engine.Seek(p.time - 5)

	case "right":
		p.engine.Seek(p.time + 5)

	case "[":
		snap := p.engine.Snapshot()
		if snap.ChunkIndex > 0 {
			p.engine.SeekToChunk(snap.ChunkIndex - 1)
		} else {
			p.engine.SeekToChunk(0)
		}

	case "]":
		snap := p.engine.Snapshot()
		p.engine.SeekToChunk(snap.ChunkIndex + 1)

	case "t":
		if p.mode == viewPaged {
			p.mode = viewTeleprompter
		} else {
			p.mode = viewPaged
		}
		p.index.SetRenderer(p.active())

	case "/":
		p.searchOpen = true
		p.searchInput.Focus()
		return textinput.Blink, false

	case "n":
		p.navigateMatch(1)

	case "N":
		p.navigateMatch(-1)

	case "c":
		p.copyChunk()

	case "+", "=":
		p.volume = clampF(p.volume+0.1, 0, 1)
		p.engine.SetVolume(p.volume)

	case "-":
		p.volume = clampF(p.volume-0.1, 0, 1)
		p.engine.SetVolume(p.volume)

	case "s":
		p.speedIdx = (p.speedIdx + 1) % len(speeds)
		p.engine.SetPlaybackRate(speeds[p.speedIdx])

	case "j", "down":
		if p.mode == viewTeleprompter {
			p.cont.UserScroll(1)
		}

	case "k", "up":
		if p.mode == viewTeleprompter {
			p.cont.UserScroll(-1)
		}

	case "pgdown":
		if p.mode == viewTeleprompter {
			p.cont.UserScroll(p.height / 2)
		}

	case "pgup":
		if p.mode == viewTeleprompter {
			p.cont.UserScroll(-p.height / 2)
		}
	}
	return nil, false
}

func (p *playerModel) navigateMatch(direction int) {
	if len(p.index.Matches()) == 0 {
		p.status = "no matches"
		return
	}
	p.index.Navigate(direction)
	p.status = fmt.Sprintf("match %d/%d", p.index.Cursor()+1, len(p.index.Matches()))
}

func (p *playerModel) copyChunk() {
	snap := p.engine.Snapshot()
	chunks := p.engine.Chunks()
	i := snap.ChunkIndex
	if i < 0 || i >= len(chunks) {
		p.status = "nothing to copy"
		return
	}
	words := make([]string, len(chunks[i]))
	for j, wt := range chunks[i] {
		words[j] = wt.Word
	}
	if err := clipboard.WriteAll(strings.Join(words, " ")); err != nil {
		p.status = "copy failed"
		return
	}
	p.status = "copied"
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFD700")).Padding(0, 1)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	barFillStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700"))
	barTrackStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#333333"))
	statusBarStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
)

func (p *playerModel) view() string {
	if p.width <= 0 {
		return ""
	}
	var b strings.Builder

	b.WriteString(titleStyle.Render(p.payload.Title))
	b.WriteString("\n")

	display := lipgloss.NewStyle().Padding(0, 2).Render(p.active().View())
	b.WriteString(display)
	b.WriteString("\n")

	b.WriteString(p.progressBar())
	b.WriteString("\n")
	b.WriteString(p.transportLine())
	b.WriteString("\n")

	if p.searchOpen {
		b.WriteString("  " + p.searchInput.View())
	} else {
		b.WriteString(dimStyle.Render("  space: play · ←/→: seek · [/]: chunk · t: view · /: search · s: speed · q: quit"))
	}
	return b.String()
}

func (p *playerModel) progressBar() string {
	w := p.width - 4
	if w < 2 {
		return ""
	}
	filled := int(p.progress * float64(w))
	if filled > w {
		filled = w
	}
	return "  " + barFillStyle.Render(strings.Repeat("━", filled)) +
		barTrackStyle.Render(strings.Repeat("─", w-filled))
}

func (p *playerModel) transportLine() string {
	speed := speeds[p.speedIdx]
	speedLabel := "1x"
	if speed != 1 {
		speedLabel = fmt.Sprintf("%gx", speed)
	}
	follow := ""
	if p.mode == viewTeleprompter && !p.cont.AutoScrolling() {
		follow = " · follow off"
	}
	left := fmt.Sprintf("  %s / %s", formatTime(p.time), formatTime(p.duration))
	right := fmt.Sprintf("%s · vol %d%%%s", speedLabel, int(p.volume*100), follow)
	if p.status != "" {
		right += " · " + p.status
	}
	gap := p.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return statusBarStyle.Render(left + strings.Repeat(" ", gap) + right)
}

// formatTime renders seconds as m:ss.
func formatTime(s float64) string {
	if s < 0 || s != s { // negative or NaN
		return "0:00"
	}
	total := int(s)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
