// Package status renders the friend list for the terminal.
package status

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Veraticus/online-status/pkg/presence"
	"github.com/mattn/go-isatty"
)

// Outcome is the result of the most recent poll
type Outcome int

const (
	OutcomeWaiting Outcome = iota
	OutcomeSynced
	OutcomeError
	OutcomeAuthFailed
	OutcomeNotConfigured
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"

	// Home the cursor and clear the screen before a redraw.
	clearScreen = "\033[H\033[2J"
)

// ColorEnabled reports whether w is a terminal that should receive ANSI colors.
// NO_COLOR disables color everywhere.
func ColorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Board holds the latest friend list and poll outcome
type Board struct {
	mu      sync.Mutex
	writer  io.Writer
	color   bool
	records []presence.Record
	outcome Outcome
	at      time.Time
	detail  string
	drawn   string
}

// NewBoard creates a board drawing to writer
func NewBoard(writer io.Writer, color bool) *Board {
	return &Board{
		writer: writer,
		color:  color,
	}
}

// Update stores a fresh snapshot
func (b *Board) Update(records []presence.Record, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.records = append([]presence.Record(nil), records...)
	b.outcome = OutcomeSynced
	b.at = at
	b.detail = ""
}

// SetOutcome records a failed poll. The previous friend list stays visible.
func (b *Board) SetOutcome(outcome Outcome, at time.Time, detail string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.outcome = outcome
	b.at = at
	b.detail = detail
}

// Outcome returns the most recent poll outcome
func (b *Board) Outcome() Outcome {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.outcome
}

// Render returns the board as text
func (b *Board) Render() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.render()
}

// Draw writes the board. When clear is set and the content changed since
// the last draw, the screen is cleared first; unchanged content is not rewritten.
func (b *Board) Draw(clear bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.writer == nil {
		return nil
	}

	text := b.render()
	if text == b.drawn {
		return nil
	}
	b.drawn = text

	if clear && b.color {
		text = clearScreen + text
	}
	_, err := io.WriteString(b.writer, text)
	return err
}

func (b *Board) render() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Friends (%d reachable / %d)\n", b.reachable(), len(b.records)))

	sorted := sortRecords(b.records)
	width := 0
	for _, r := range sorted {
		if n := utf8.RuneCountInString(r.DisplayName()); n > width {
			width = n
		}
	}

	for _, r := range sorted {
		name := r.DisplayName()
		pad := strings.Repeat(" ", width-utf8.RuneCountInString(name))
		line := fmt.Sprintf("  %s %s%s  %-7s", b.marker(r.State), name, pad, r.State)
		if !r.State.Reachable() && !r.LastSeen.IsZero() {
			line += "  last seen " + r.LastSeen.Local().Format("2006-01-02 15:04")
		}
		sb.WriteString(strings.TrimRight(line, " "))
		sb.WriteString("\n")
	}
	if len(sorted) == 0 {
		sb.WriteString("  (no friends yet)\n")
	}

	sb.WriteString(b.statusLine())
	sb.WriteString("\n")
	return sb.String()
}

func (b *Board) reachable() int {
	n := 0
	for _, r := range b.records {
		if r.State.Reachable() {
			n++
		}
	}
	return n
}

func (b *Board) statusLine() string {
	stamp := ""
	if !b.at.IsZero() {
		stamp = " at " + b.at.Local().Format("15:04:05")
	}

	switch b.outcome {
	case OutcomeSynced:
		return b.paint(colorGreen, "✓ synced"+stamp)
	case OutcomeError:
		return b.paint(colorRed, "✗ poll failed"+stamp+detailSuffix(b.detail))
	case OutcomeAuthFailed:
		return b.paint(colorRed, "✗ authentication failed"+stamp+", update the token with `online-status settings set --token`")
	case OutcomeNotConfigured:
		return b.paint(colorYellow, "! not configured"+detailSuffix(b.detail)+", run `online-status settings set`")
	default:
		return b.paint(colorGray, "⟳ waiting for first poll")
	}
}

func detailSuffix(detail string) string {
	if detail == "" {
		return ""
	}
	return ": " + detail
}

func (b *Board) marker(state presence.State) string {
	switch state {
	case presence.StateOnline:
		return b.paint(colorGreen, "●")
	case presence.StateBusy:
		return b.paint(colorRed, "●")
	case presence.StateIdle:
		return b.paint(colorYellow, "●")
	default:
		return b.paint(colorGray, "○")
	}
}

func (b *Board) paint(color, text string) string {
	if !b.color {
		return text
	}
	return color + text + colorReset
}

// sortRecords orders by reachability rank, then name, without touching the input.
func sortRecords(records []presence.Record) []presence.Record {
	sorted := append([]presence.Record(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.State.Rank() != b.State.Rank() {
			return a.State.Rank() < b.State.Rank()
		}
		an, bn := strings.ToLower(a.DisplayName()), strings.ToLower(b.DisplayName())
		if an != bn {
			return an < bn
		}
		return a.Identity < b.Identity
	})
	return sorted
}
