package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/Krimson/xray-triage/internal/results"
)

const listWidth = 38

var (
	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#1e66f5")).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 2).
			Bold(true)

	listStyle = lipgloss.NewStyle().
			Width(listWidth).
			Padding(1, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#6c7086"))

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fe640b")).
			Bold(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#40a02b")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6c7086"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d20f39")).
			Bold(true)
)

// snapshotMsg - переход состояния, пришедший от View через Listener
type snapshotMsg results.Snapshot

// actionDoneMsg - завершилась загрузка, выбор или повтор
type actionDoneMsg struct {
	snap results.Snapshot
	err  error
}

// chanListener передает переходы View в цикл bubbletea.
// Не блокирует View: если канал полон, переход отбрасывается, итог придет в actionDoneMsg.
type chanListener chan results.Snapshot

func (l chanListener) OnTransition(s results.Snapshot) {
	select {
	case l <- s:
	default:
	}
}

func waitForSnapshot(ch <-chan results.Snapshot) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotMsg(s)
	}
}

// resultsModel - интерактивный экран результатов
type resultsModel struct {
	ctx     context.Context
	view    *results.View
	updates <-chan results.Snapshot

	snap   results.Snapshot
	cursor int

	spinner  spinner.Model
	viewport viewport.Model
	renderer *glamour.TermRenderer
	style    string

	width  int
	height int
	ready  bool
}

func newResultsModel(ctx context.Context, view *results.View, updates <-chan results.Snapshot, style string) resultsModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = cursorStyle

	m := resultsModel{
		ctx:      ctx,
		view:     view,
		updates:  updates,
		snap:     view.Snapshot(),
		spinner:  sp,
		viewport: viewport.New(80, 20),
		style:    style,
	}
	m.renderer = newRenderer(style, 76)
	return m
}

func newRenderer(style string, wrap int) *glamour.TermRenderer {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(wrap)}
	if style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStylePath(style))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil
	}
	return r
}

func (m resultsModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.load(),
		waitForSnapshot(m.updates),
	)
}

func (m resultsModel) load() tea.Cmd {
	return func() tea.Msg {
		snap, err := m.view.Load(m.ctx)
		return actionDoneMsg{snap: snap, err: err}
	}
}

func (m resultsModel) selectDisease(disease string) tea.Cmd {
	return func() tea.Msg {
		snap, err := m.view.Select(m.ctx, disease)
		return actionDoneMsg{snap: snap, err: err}
	}
}

func (m resultsModel) retry() tea.Cmd {
	return func() tea.Msg {
		snap, err := m.view.Retry(m.ctx)
		return actionDoneMsg{snap: snap, err: err}
	}
}

func (m resultsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		w := msg.Width - listWidth - 6
		if w < 20 {
			w = 20
		}
		m.viewport.Width = w
		m.viewport.Height = msg.Height - 4
		m.renderer = newRenderer(m.style, w-2)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case snapshotMsg:
		m.apply(results.Snapshot(msg))
		return m, waitForSnapshot(m.updates)

	case actionDoneMsg:
		m.apply(msg.snap)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m resultsModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	diseases := m.diseases()

	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		if m.cursor < len(diseases)-1 {
			m.cursor++
		}
		return m, nil
	case "enter", " ":
		if m.cursor < len(diseases) {
			return m, m.selectDisease(diseases[m.cursor])
		}
		return m, nil
	case "r":
		if m.snap.State == results.StateError {
			return m, m.retry()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// apply принимает только переходы не старше текущего
func (m *resultsModel) apply(snap results.Snapshot) {
	if snap.Version < m.snap.Version {
		return
	}
	first := m.snap.Prediction == nil
	m.snap = snap

	if first && snap.Prediction != nil {
		for i, d := range snap.Prediction.TopDiseases {
			if d.Disease == snap.Selected {
				m.cursor = i
			}
		}
	}
	m.refresh()
}

func (m *resultsModel) refresh() {
	m.viewport.SetContent(m.detailContent())
	m.viewport.GotoTop()
}

func (m resultsModel) diseases() []string {
	if m.snap.Prediction == nil {
		return nil
	}
	out := make([]string, 0, len(m.snap.Prediction.TopDiseases))
	for _, d := range m.snap.Prediction.TopDiseases {
		out = append(out, d.Disease)
	}
	return out
}

func (m resultsModel) detailContent() string {
	d := m.snap.Detail
	if d == nil || d.Details == "" {
		return ""
	}
	if m.renderer != nil {
		if out, err := m.renderer.Render(d.Details); err == nil {
			return out
		}
	}
	return d.Details
}

func (m resultsModel) View() string {
	var sb strings.Builder

	sb.WriteString(headerStyle.Render("X-ray triage results"))
	if m.snap.Prediction != nil && m.snap.Prediction.ImageURL != "" {
		sb.WriteString(" " + mutedStyle.Render(m.snap.Prediction.ImageURL))
	}
	sb.WriteString("\n")

	body := lipgloss.JoinHorizontal(lipgloss.Top, listStyle.Render(m.listView()), m.detailView())
	sb.WriteString(body)
	sb.WriteString("\n")
	sb.WriteString(mutedStyle.Render(m.helpLine()))
	return sb.String()
}

func (m resultsModel) listView() string {
	if m.snap.Prediction == nil {
		return mutedStyle.Render("No diseases yet")
	}

	var sb strings.Builder
	for i, d := range m.snap.Prediction.TopDiseases {
		prefix := "  "
		if i == m.cursor {
			prefix = cursorStyle.Render("> ")
		}
		line := fmt.Sprintf("%-24s %5.1f%%", truncate(d.Disease, 24), d.Probability*100)
		if d.Disease == m.snap.Selected {
			line = selectedStyle.Render(line)
		}
		sb.WriteString(prefix + line + "\n")
	}
	return sb.String()
}

func (m resultsModel) detailView() string {
	pad := lipgloss.NewStyle().PaddingLeft(2)

	switch m.snap.State {
	case results.StateInit:
		return pad.Render(m.spinner.View() + " Restoring results...")
	case results.StateLoading:
		return pad.Render(fmt.Sprintf("%s Loading details for %s...", m.spinner.View(), m.snap.Selected))
	case results.StateError:
		msg := errorStyle.Render("Error: " + m.snap.Error)
		if m.snap.Prediction == nil {
			return pad.Render(msg + "\n\n" + mutedStyle.Render(`Run "triagectl scan" first.`))
		}
		return pad.Render(msg + "\n\n" + mutedStyle.Render("Press r to retry."))
	}

	if m.snap.Detail == nil || m.snap.Detail.Details == "" {
		return pad.Render(mutedStyle.Render("No details available for " + m.snap.Selected))
	}
	return pad.Render(m.viewport.View())
}

func (m resultsModel) helpLine() string {
	help := "↑/↓ move • enter select • pgup/pgdn scroll • q quit"
	if m.snap.State == results.StateError {
		help = "r retry • " + help
	}
	return help
}

func truncate(s string, l int) string {
	if len(s) > l {
		return s[:l-3] + "..."
	}
	return s
}
