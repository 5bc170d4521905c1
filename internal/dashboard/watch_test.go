package dashboard

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"flowdesk/internal/domain"
	"flowdesk/internal/live"
	"flowdesk/internal/sentiment"
)

func sampleReport() live.Report {
	return live.Report{
		BatchID:      "b1",
		Spot:         5900,
		TradeCount:   1234,
		PutCallRatio: 0.5,
		Dates:        []string{"2026-10-16"},
		Summary:      domain.OptionsSummary{TotalCallVolume: 20, TotalPutVolume: 10},
		Sentiment: sentiment.Analysis{
			Levels: []sentiment.Level{{Level: 5910, TotalPremium: 10000, Direction: sentiment.DirectionAbove, Distance: 10}},
			Signal: &sentiment.Signal{Action: sentiment.ActionBuy, Entry: 5900, Target: 5910, Points: 10, Premium: 10000},
		},
		Histogram:      []sentiment.Bin{{StartPrice: 5905, EndPrice: 5910, BullishPremium: 10000, TotalPremium: 10000, BullishPercentage: 100}},
		HighLevels:     []sentiment.LevelSentiment{{Level: 5910, BullishPremium: 10000}},
		HighLevelsText: "5910.00 bullish",
		MidLevels:      []sentiment.LevelSentiment{},
	}
}

func update(t *testing.T, m tea.Model, msg tea.Msg) WatchModel {
	t.Helper()
	next, _ := m.Update(msg)
	wm, ok := next.(WatchModel)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return wm
}

func TestWatchModelRendersReports(t *testing.T) {
	m := NewWatchModel("localhost:9090", nil)
	m.now = func() time.Time { return time.Date(2026, 10, 16, 9, 45, 0, 0, time.UTC) }

	if got := m.View(); got != "Connecting..." {
		t.Fatalf("View before size = %q", got)
	}

	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	if !strings.Contains(m.View(), "waiting for report") {
		t.Errorf("header should wait for a report:\n%s", m.View())
	}

	m = update(t, m, ReportMsg(sampleReport()))
	view := m.View()
	for _, want := range []string{"trades: 1,234", "spot: 5,900.00", "updates: 1", "09:45:00", "SENTIMENT", "BUY 5,900.00 -> 5,910.00"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestWatchModelSwitchesViews(t *testing.T) {
	m := NewWatchModel("addr", nil)
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m = update(t, m, ReportMsg(sampleReport()))

	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.view != ViewHistogram || !strings.Contains(m.RenderContent(), "HISTOGRAM") {
		t.Errorf("tab should show histogram, got %v", m.view)
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("3")})
	if content := m.RenderContent(); !strings.Contains(content, "High delta: 5910.00 bullish") {
		t.Errorf("levels view:\n%s", content)
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("4")})
	if content := m.RenderContent(); !strings.Contains(content, "Dates: 2026-10-16") {
		t.Errorf("summary view:\n%s", content)
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("v")})
	if m.view != ViewSentiment {
		t.Errorf("view should wrap to sentiment, got %v", m.view)
	}
}

func TestWatchModelStreamErrorAndQuit(t *testing.T) {
	cancelled := false
	m := NewWatchModel("addr", func() { cancelled = true })
	m = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 20})
	m = update(t, m, StreamErrMsg{Err: errors.New("connection refused")})
	if !strings.Contains(m.View(), "stream error: connection refused") {
		t.Errorf("header should show the error:\n%s", m.View())
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !cancelled {
		t.Error("quit should cancel the stream")
	}
	if cmd == nil {
		t.Fatal("quit should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("quit command should produce tea.QuitMsg")
	}
}
