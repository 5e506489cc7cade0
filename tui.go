package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"traductor/log"
	"traductor/translator"
	"traductor/voice"
)

type tickMsg time.Time
type errMsg struct {
	op  string
	err error
}

const maxNotices = 4

type editTarget int

const (
	editSource editTarget = iota
	editDraft
	editSuggestion
)

type tuiModel struct {
	ctx context.Context
	app *app

	width, height int
	frame         int

	state      voice.State
	side       voice.Side
	level      float64
	elapsed    time.Duration
	draft      []rune
	transcript string

	text       translator.State
	source     []rune
	suggestion []rune
	suggesting bool

	notices []string
}

var (
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Bold(true)
	srcStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dstStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	draftStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	recStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	busyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	panelStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238")).Padding(0, 1)
	focusedPanel = panelStyle.BorderForeground(lipgloss.Color("4"))
)

var spinner = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func newTUIModel(ctx context.Context, a *app) tuiModel {
	st := a.text.State()
	return tuiModel{
		ctx:    ctx,
		app:    a,
		state:  a.voice.State(),
		side:   a.voice.Snapshot().Side,
		text:   st,
		source: []rune(st.SrcText),
	}
}

func runTUI(ctx context.Context, a *app, q *eventQueue) int {
	p := tea.NewProgram(newTUIModel(ctx, a), tea.WithAltScreen())
	q.attach(p.Send)
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	if _, err := p.Run(); err != nil {
		log.Errorf("TUI error: %v", err)
		fmt.Printf("Error: %v\n", err)
		return 1
	}
	return 0
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

// run performs a blocking app call off the UI goroutine.
func (m tuiModel) run(op string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		if err := fn(ctx); err != nil {
			return errMsg{op: op, err: err}
		}
		return nil
	}
}

func (m *tuiModel) addNotice(s string) {
	m.notices = append(m.notices, s)
	if len(m.notices) > maxNotices {
		m.notices = m.notices[len(m.notices)-maxNotices:]
	}
}

func (m tuiModel) target() editTarget {
	switch {
	case m.state == voice.StateReviewing:
		return editDraft
	case m.suggesting:
		return editSuggestion
	}
	return editSource
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case voiceStateMsg:
		m.state = msg.To
		if msg.To != voice.StateRecording {
			m.level = 0
		}
		if msg.To == voice.StateRecording {
			m.elapsed = 0
		}
		if msg.From == voice.StateReviewing {
			m.draft = nil
			m.transcript = ""
		}

	case levelMsg:
		m.level = m.level*0.6 + msg.RMS*0.4

	case elapsedMsg:
		m.elapsed = msg.Elapsed

	case draftMsg:
		m.draft = []rune(msg.Text)
		m.transcript = msg.Transcript
		m.side = msg.Side

	case voiceNoticeMsg:
		m.addNotice(msg.Message)

	case textNoticeMsg:
		m.addNotice(msg.Message)

	case appNoticeMsg:
		m.addNotice(msg.Text)

	case textStateMsg:
		if msg.SrcText != string(m.source) {
			m.source = []rune(msg.SrcText)
		}
		m.text = msg.State

	case errMsg:
		if !errors.Is(msg.err, context.Canceled) {
			log.Warnf("%s: %v", msg.op, msg.err)
		}
	}
	return m, nil
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a := m.app
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "ctrl+r":
		return m, m.run("record", a.Record)
	case "esc":
		if m.suggesting {
			m.suggesting = false
			m.suggestion = nil
			return m, nil
		}
		a.voice.Cancel()
		return m, nil
	case "ctrl+e":
		return m, m.run("re-record", func(context.Context) error { return a.voice.ReRecord() })
	case "ctrl+p":
		return m, m.run("play", func(ctx context.Context) error {
			_, err := a.voice.PlayArtifact(ctx)
			return err
		})
	case "ctrl+t":
		m.side = a.ToggleSide()
		return m, nil
	case "ctrl+s":
		return m, m.run("swap", func(context.Context) error { return a.text.Swap() })
	case "ctrl+y":
		return m, m.run("copy", func(context.Context) error { return a.text.Copy() })
	case "ctrl+l":
		return m, m.run("speak", func(ctx context.Context) error { return a.text.Speak(ctx, voice.SideTarget) })
	case "ctrl+o":
		return m, m.run("speak", func(ctx context.Context) error { return a.text.Speak(ctx, voice.SideSource) })
	case "ctrl+a":
		return m, m.run("accept", a.text.Accept)
	case "ctrl+x":
		if m.text.DstText != "" && m.state != voice.StateReviewing {
			m.suggesting = true
			m.suggestion = []rune(m.text.DstText)
		}
		return m, nil
	case "enter":
		return m.submit()
	case "backspace":
		m.edit(func(r []rune) []rune {
			if len(r) == 0 {
				return r
			}
			return r[:len(r)-1]
		})
		return m, nil
	}
	if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
		m.edit(func(r []rune) []rune { return append(r, msg.Runes...) })
	}
	return m, nil
}

func (m tuiModel) submit() (tea.Model, tea.Cmd) {
	a := m.app
	switch m.target() {
	case editDraft:
		text := string(m.draft)
		return m, m.run("confirm", func(ctx context.Context) error {
			if err := a.voice.Edit(text); err != nil {
				return err
			}
			return a.voice.Confirm(ctx)
		})
	case editSuggestion:
		suggestion := string(m.suggestion)
		m.suggesting = false
		m.suggestion = nil
		return m, m.run("reject", func(ctx context.Context) error {
			return a.text.Reject(ctx, suggestion, false)
		})
	}
	return m, m.run("translate", a.text.Translate)
}

func (m *tuiModel) edit(fn func([]rune) []rune) {
	switch m.target() {
	case editDraft:
		m.draft = fn(m.draft)
		_ = m.app.voice.Edit(string(m.draft))
	case editSuggestion:
		m.suggestion = fn(m.suggestion)
	default:
		m.source = fn(m.source)
		m.app.text.SetSource(string(m.source))
	}
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	width := m.width - 4
	if width < 20 {
		width = 20
	}
	wrap := width - 4

	var b strings.Builder
	b.WriteString(m.statusLine() + "\n")
	if m.state == voice.StateRecording {
		b.WriteString(renderMeter(m.level, width/2) + "\n")
	}
	b.WriteString("\n")

	header := fmt.Sprintf("%s → %s", m.text.SrcLang, m.text.DstLang)
	if m.text.Model.Name != "" {
		header += dimStyle.Render("  (" + m.text.Model.Name + ")")
	}
	b.WriteString(titleStyle.Render(header) + "\n")

	src := panelStyle
	if m.target() == editSource {
		src = focusedPanel
	}
	b.WriteString(src.Width(width).Render(renderText(string(m.source)+cursor(m.target() == editSource), wrap, srcStyle)) + "\n")

	dst := m.text.DstText
	if m.text.Loading {
		dst = spinner[m.frame%len(spinner)] + " translating..."
	}
	b.WriteString(panelStyle.Width(width).Render(renderText(dst, wrap, dstStyle)) + "\n")

	switch m.target() {
	case editDraft:
		b.WriteString(titleStyle.Render("Review ("+string(m.side)+")") + "\n")
		if m.transcript != "" && m.transcript != string(m.draft) {
			b.WriteString(dimStyle.Render("heard: "+m.transcript) + "\n")
		}
		b.WriteString(focusedPanel.Width(width).Render(renderText(string(m.draft)+cursor(true), wrap, draftStyle)) + "\n")
	case editSuggestion:
		b.WriteString(titleStyle.Render("Suggest a better translation") + "\n")
		b.WriteString(focusedPanel.Width(width).Render(renderText(string(m.suggestion)+cursor(true), wrap, draftStyle)) + "\n")
	}

	for _, n := range m.notices {
		b.WriteString(noticeStyle.Render("• "+n) + "\n")
	}
	b.WriteString("\n" + m.helpLine())
	return b.String()
}

func (m tuiModel) statusLine() string {
	side := dimStyle.Render(fmt.Sprintf("  [dictating: %s]", m.side))
	switch m.state {
	case voice.StateRecording:
		return recStyle.Render(fmt.Sprintf("● REC %.1fs", m.elapsed.Seconds())) + side
	case voice.StateProcessing, voice.StateTranscribing:
		return busyStyle.Render(spinner[m.frame%len(spinner)]+" "+string(m.state)) + side
	case voice.StateReady:
		return busyStyle.Render("○ ready, ctrl+r to record") + side
	case voice.StateError:
		return recStyle.Render("✕ error") + side
	}
	return dimStyle.Render("○ "+string(m.state)) + side
}

func (m tuiModel) helpLine() string {
	keys := [][2]string{{"ctrl+r", "record"}, {"enter", "confirm"}, {"esc", "cancel"}}
	if m.state == voice.StateReviewing {
		keys = append(keys, [2]string{"ctrl+e", "re-record"}, [2]string{"ctrl+p", "play"})
	} else {
		keys = append(keys, [2]string{"ctrl+s", "swap"}, [2]string{"ctrl+y", "copy"},
			[2]string{"ctrl+l", "listen"}, [2]string{"ctrl+a", "good"}, [2]string{"ctrl+x", "suggest"})
	}
	keys = append(keys, [2]string{"ctrl+t", "side"}, [2]string{"ctrl+c", "quit"})

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = keyStyle.Render(k[0]) + helpStyle.Render(" "+k[1])
	}
	return strings.Join(parts, helpStyle.Render("  ")) + "\n" + helpStyle.Render("traductor "+version)
}

func cursor(on bool) string {
	if on {
		return "▏"
	}
	return ""
}

func renderMeter(level float64, width int) string {
	n := int(math.Min(level*10, 1) * float64(width))
	return recStyle.Render(strings.Repeat("█", n)) + dimStyle.Render(strings.Repeat("░", width-n))
}

func renderText(text string, width int, style lipgloss.Style) string {
	lines := wrapText(text, width)
	for i, l := range lines {
		lines[i] = style.Render(l)
	}
	return strings.Join(lines, "\n")
}

// wrapText breaks text at spaces so no line exceeds width runes. Words
// longer than width are split.
func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		r := []rune(para)
		for len(r) > width {
			splitAt := width
			for i := width; i > 0; i-- {
				if r[i] == ' ' {
					splitAt = i
					break
				}
			}
			lines = append(lines, string(r[:splitAt]))
			r = []rune(strings.TrimLeft(string(r[splitAt:]), " "))
		}
		lines = append(lines, string(r))
	}
	return lines
}
