package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"flowdesk/internal/live"
	"flowdesk/internal/sentiment"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("1"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6"))
	buyStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	sellStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// WatchView selects the section shown by the watch screen.
type WatchView int

const (
	ViewSentiment WatchView = iota
	ViewHistogram
	ViewLevels
	ViewSummary
	watchViewCount
)

func (v WatchView) String() string {
	switch v {
	case ViewSentiment:
		return "sentiment"
	case ViewHistogram:
		return "histogram"
	case ViewLevels:
		return "levels"
	case ViewSummary:
		return "summary"
	}
	return "?"
}

// ReportMsg delivers a report received from the stream.
type ReportMsg live.Report

// StreamErrMsg reports that the report stream ended.
type StreamErrMsg struct{ Err error }

// WatchModel is the bubbletea model of the live watch screen.
type WatchModel struct {
	addr       string
	report     *live.Report
	updates    int
	lastUpdate time.Time
	err        error
	view       WatchView

	viewport viewport.Model
	width    int
	height   int
	ready    bool

	cancel context.CancelFunc
	now    func() time.Time
}

// NewWatchModel creates the watch screen for the server at addr. cancel
// stops the stream when the user quits.
func NewWatchModel(addr string, cancel context.CancelFunc) WatchModel {
	if cancel == nil {
		cancel = func() {}
	}
	return WatchModel{addr: addr, cancel: cancel, now: time.Now}
}

func (m WatchModel) Init() tea.Cmd { return nil }

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.cancel()
			return m, tea.Quit
		case "tab", "v":
			m.view = (m.view + 1) % watchViewCount
			m.refresh(true)
			return m, nil
		case "1", "2", "3", "4":
			m.view = WatchView(msg.String()[0] - '1')
			m.refresh(true)
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := m.height - 2
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.MouseWheelEnabled = true
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.refresh(false)
		return m, nil

	case ReportMsg:
		r := live.Report(msg)
		m.report = &r
		m.updates++
		m.lastUpdate = m.now()
		m.err = nil
		m.refresh(false)
		return m, nil

	case StreamErrMsg:
		m.err = msg.Err
		return m, nil
	}

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m *WatchModel) refresh(top bool) {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.RenderContent())
	if top {
		m.viewport.GotoTop()
	}
}

func (m WatchModel) View() string {
	if !m.ready {
		return "Connecting..."
	}

	var header string
	if m.err != nil {
		header = errorStyle.Render(padOrTrunc(fmt.Sprintf(" %s  stream error: %v ", m.addr, m.err), m.width))
	} else {
		text := fmt.Sprintf(" %s  waiting for report... ", m.addr)
		if r := m.report; r != nil {
			text = fmt.Sprintf(" %s  trades: %s  spot: %s  P/C: %s  updates: %d  at %s ",
				m.addr, FormatVolume(r.TradeCount), FormatSpot(r.Spot), FormatRatio(r.PutCallRatio),
				m.updates, m.lastUpdate.Format("15:04:05"))
		}
		header = headerStyle.Render(padOrTrunc(text, m.width))
	}

	left := fmt.Sprintf(" q quit  tab/1-4 view [%s]  pgup/dn scroll", m.view)
	right := fmt.Sprintf("%.0f%% ", m.viewport.ScrollPercent()*100)
	gap := m.width - len(left) - len(right)
	if gap < 0 {
		gap = 0
	}
	footer := footerStyle.Render(padOrTrunc(left+strings.Repeat(" ", gap)+right, m.width))

	return header + "\n" + m.viewport.View() + "\n" + footer
}

// RenderContent renders the selected section of the latest report.
func (m WatchModel) RenderContent() string {
	var b strings.Builder
	r := m.report
	if r == nil {
		b.WriteString(dimStyle.Render("  No report yet."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(sectionStyle.Render(" " + strings.ToUpper(m.view.String()) + " "))
	b.WriteString("\n")

	switch m.view {
	case ViewSentiment:
		b.WriteString(signalLine(r.Sentiment.Signal))
		b.WriteString("\n")
		RenderSentiment(&b, r.Sentiment, r.Spot)
	case ViewHistogram:
		RenderHistogram(&b, r.Histogram, r.Spot)
	case ViewLevels:
		b.WriteString("High delta: " + r.HighLevelsText + "\n")
		RenderBandLevels(&b, r.HighLevels)
		b.WriteString("Mid delta: " + r.MidLevelsText + "\n")
		RenderBandLevels(&b, r.MidLevels)
	case ViewSummary:
		RenderSummary(&b, r.Summary, r.PutCallRatio)
		fmt.Fprintf(&b, "Lines: %d  parsed: %d  dropped: %d\n", r.Stats.Lines, r.Stats.Parsed, r.Stats.Dropped)
		if len(r.Dates) > 0 {
			fmt.Fprintf(&b, "Dates: %s\n", strings.Join(r.Dates, ", "))
		}
	}
	return b.String()
}

func signalLine(s *sentiment.Signal) string {
	if s == nil {
		return dimStyle.Render("No signal")
	}
	style := sellStyle
	if s.Action == sentiment.ActionBuy {
		style = buyStyle
	}
	return style.Render(fmt.Sprintf("%s %s -> %s (%.1f pts)", s.Action, FormatPrice(s.Entry), FormatPrice(s.Target), s.Points))
}

func padOrTrunc(s string, width int) string {
	if width <= 0 {
		return s
	}
	if len(s) > width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}
