// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"tempo/internal/beat"
	"tempo/internal/transport"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	flashReadings = 3     // Readings a beat stays highlighted
	floorDB       = -60.0 // Loudness shown as an empty bar
	maxBarWidth   = 60
)

// Feed is a transport that hands readings to a Monitor. Readings are dropped
// while the monitor is busy rendering.
type Feed struct {
	ch     chan beat.Reading
	mu     sync.RWMutex
	closed bool
}

var _ transport.Transport = (*Feed)(nil)

func NewFeed(size int) *Feed {
	return &Feed{ch: make(chan beat.Reading, size)}
}

func (f *Feed) Send(r beat.Reading) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return errors.New("monitor feed is closed")
	}
	select {
	case f.ch <- r:
	default:
	}
	return nil
}

// Close ends the feed; a Monitor reading from it quits.
func (f *Feed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.ch)
	}
	return nil
}

type readingMsg beat.Reading

type feedClosedMsg struct{}

func (f *Feed) next() tea.Cmd {
	return func() tea.Msg {
		r, ok := <-f.ch
		if !ok {
			return feedClosedMsg{}
		}
		return readingMsg(r)
	}
}

// Monitor is the Bubble Tea model of the live tempo display.
type Monitor struct {
	feed  *Feed
	title string
	bar   progress.Model

	bpm      float64
	loudness float64
	total    uint64
	flash    int
}

func NewMonitor(feed *Feed, title string) Monitor {
	return Monitor{
		feed:  feed,
		title: title,
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(40), progress.WithoutPercentage()),
	}
}

func (m Monitor) Init() tea.Cmd {
	return m.feed.next()
}

func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case readingMsg:
		m.bpm = msg.BPM
		m.loudness = msg.Loudness
		if msg.Beats > 0 {
			m.total += msg.Beats
			m.flash = flashReadings
		} else if m.flash > 0 {
			m.flash--
		}
		return m, m.feed.next()

	case feedClosedMsg:
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.bar.Width = max(10, min(msg.Width-14, maxBarWidth))

	case tea.KeyMsg:
		if key.Matches(msg, key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"))) {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m Monitor) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(m.title))
	sb.WriteString("\n\n")

	tempo := "--.-"
	if m.bpm > 0 {
		tempo = fmt.Sprintf("%5.1f", m.bpm)
	}
	marker := dimStyle.Render("○")
	if m.flash > 0 {
		marker = beatStyle.Render("●")
	}
	fmt.Fprintf(&sb, "  %s  %s bpm\n\n", marker, highlightStyle.Render(tempo))
	fmt.Fprintf(&sb, "  Level  %s %6.1f dB\n", m.bar.ViewAs(levelPercent(m.loudness)), loudnessDB(m.loudness))
	fmt.Fprintf(&sb, "  Beats  %d\n\n", m.total)
	sb.WriteString(infoStyle.Render("q: Quit"))
	return sb.String()
}

// loudnessDB converts RMS to dBFS, clamped at floorDB.
func loudnessDB(rms float64) float64 {
	if rms <= 0 {
		return floorDB
	}
	return max(floorDB, 20*math.Log10(rms))
}

func levelPercent(rms float64) float64 {
	return min(1, (loudnessDB(rms)-floorDB)/-floorDB)
}

// closeOnDone closes the feed once done fires, unless quit fires first.
func (f *Feed) closeOnDone(done, quit <-chan struct{}) {
	select {
	case <-done:
		f.Close()
	case <-quit:
	}
}

// RunMonitor shows the monitor until the user quits or the feed closes. A
// finite source passes its done channel so the monitor exits when it ends;
// live sources pass nil.
func RunMonitor(feed *Feed, title string, done <-chan struct{}) error {
	quit := make(chan struct{})
	defer close(quit)
	go feed.closeOnDone(done, quit)

	p := tea.NewProgram(NewMonitor(feed, title), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
