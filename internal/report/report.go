// Package report renders bot state for the terminal.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/lox/ostrobot/internal/chat"
	"github.com/lox/ostrobot/internal/classify"
	"github.com/lox/ostrobot/internal/journal"
	"github.com/lox/ostrobot/internal/ledger"
	"github.com/lox/ostrobot/internal/parse"
	"github.com/lox/ostrobot/internal/status"
)

const barWidth = 20

// Styles contains styling for reports
type Styles struct {
	Header  lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Good    lipgloss.Style
	Bad     lipgloss.Style
	Warn    lipgloss.Style
	Muted   lipgloss.Style
	Kind    lipgloss.Style
	Button  lipgloss.Style
	BarFill lipgloss.Style
}

// NewStyles creates report styles bound to a renderer.
func NewStyles(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Header: r.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1).
			Bold(true),
		Label: r.NewStyle().
			Foreground(lipgloss.Color("#626262")),
		Value: r.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true),
		Good: r.NewStyle().
			Foreground(lipgloss.Color("#96CEB4")),
		Bad: r.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true),
		Warn: r.NewStyle().
			Foreground(lipgloss.Color("#FFEAA7")),
		Muted: r.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Italic(true),
		Kind: r.NewStyle().
			Foreground(lipgloss.Color("#74B9FF")).
			Bold(true),
		Button: r.NewStyle().
			Foreground(lipgloss.Color("#04B575")),
		BarFill: r.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")),
	}
}

// Options control output.
type Options struct {
	// NoColor forces plain output regardless of the terminal.
	NoColor bool
}

// Printer writes styled reports to w.
type Printer struct {
	w      io.Writer
	styles *Styles
}

// New creates a printer. The colour profile is detected from w unless
// NoColor is set.
func New(w io.Writer, opts Options) *Printer {
	r := lipgloss.NewRenderer(w)
	if opts.NoColor {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Printer{w: w, styles: NewStyles(r)}
}

func (p *Printer) header(title string) {
	fmt.Fprintln(p.w, p.styles.Header.Render(title))
}

func (p *Printer) row(label, value string) {
	fmt.Fprintf(p.w, "  %s %s\n", p.styles.Label.Render(fmt.Sprintf("%-14s", label)), value)
}

func (p *Printer) blank() {
	fmt.Fprintln(p.w)
}

// Ledger renders the energy budget.
func (p *Printer) Ledger(s ledger.Snapshot, now time.Time) {
	p.header("Energy budget")

	used := p.styles.Value.Render(fmt.Sprintf("%d", s.Used))
	if s.Unlimited {
		p.row("Used today", used+p.styles.Muted.Render(" (no cap)"))
	} else {
		p.row("Used today", fmt.Sprintf("%s / %d %s", used, s.Limit, p.bar(s.Used, s.Limit)))
	}

	if s.StartHour == ledger.NoWindow {
		p.row("Window", p.styles.Muted.Render("always open"))
	} else {
		state := p.styles.Bad.Render("closed")
		if s.InWindow {
			state = p.styles.Good.Render("open")
		}
		p.row("Window", fmt.Sprintf("%02d:00-%02d:00 %s", s.StartHour, s.ResetHour, state))
	}

	if !s.LastReset.IsZero() {
		p.row("Last reset", s.LastReset.Format("2006-01-02 15:04"))
	}
	p.row("Next reset", fmt.Sprintf("%s (in %s)", s.NextReset.Format("2006-01-02 15:04"), Until(now, s.NextReset)))

	if s.CanExplore {
		p.row("Explore", p.styles.Good.Render("allowed"))
	} else {
		p.row("Explore", p.styles.Warn.Render("blocked"))
	}
	p.blank()
}

// Character renders the tracked character state.
func (p *Printer) Character(s status.CharacterState, now time.Time) {
	p.header("Character")
	if s.Level > 0 {
		p.row("Level", p.styles.Value.Render(fmt.Sprintf("%d", s.Level)))
	}

	hp := fmt.Sprintf("%d/%d", s.HP, s.MaxHP)
	if !s.MaxHPConfirmed {
		hp += p.styles.Muted.Render(" (max estimated)")
	}
	p.row("Health", fmt.Sprintf("%s %s %s", p.hpValue(s.HPPercent(), hp), p.bar(s.HP, s.MaxHP),
		p.styles.Label.Render(fmt.Sprintf("%.0f%%", s.HPPercent()))))
	p.row("Energy", fmt.Sprintf("%s %s", p.styles.Value.Render(fmt.Sprintf("%d/%d", s.Energy, s.MaxEnergy)),
		p.bar(s.Energy, s.MaxEnergy)))
	p.row("Gold", p.styles.Value.Render(fmt.Sprintf("%d", s.Gold)))

	if !s.HPRegenAt.IsZero() {
		p.row("HP regen", Until(now, s.HPRegenAt))
	}
	if !s.EnergyRegenAt.IsZero() {
		p.row("Energy regen", Until(now, s.EnergyRegenAt))
	}
	if !s.LastProfile.IsZero() {
		p.row("Profile seen", s.LastProfile.Format("15:04:05"))
	}
	p.blank()
}

// Profile renders a parsed status report as returned by the game.
func (p *Printer) Profile(pr parse.Profile) {
	p.header("Status report")
	if pr.Name != "" {
		p.row("Name", p.styles.Value.Render(pr.Name))
	}
	p.row("Level", fmt.Sprintf("%d", pr.Level))
	p.row("Health", fmt.Sprintf("%d/%d", pr.HP, pr.MaxHP))
	p.row("Energy", fmt.Sprintf("%d/%d", pr.Energy, pr.MaxEnergy))
	p.row("Gold", fmt.Sprintf("%d", pr.Gold))
	if pr.MaxExp > 0 {
		p.row("Experience", fmt.Sprintf("%d/%d", pr.Experience, pr.MaxExp))
	}
	if pr.EnergyRegenMinutes > 0 {
		p.row("Energy regen", fmt.Sprintf("%d min", pr.EnergyRegenMinutes))
	}
	if pr.HPRegenMinutes > 0 {
		p.row("HP regen", fmt.Sprintf("%d min", pr.HPRegenMinutes))
	}
	p.blank()
}

// Counters renders session statistics.
func (p *Printer) Counters(c status.Counters, now time.Time) {
	p.header("Session")
	if !c.Started.IsZero() {
		p.row("Running for", Duration(now.Sub(c.Started)))
	}
	p.row("Explorations", fmt.Sprintf("%d", c.Explorations))
	p.row("Battles", fmt.Sprintf("%d (%s won, %s lost, %d escaped, %d fled, %d aborted)",
		c.Battles,
		p.styles.Good.Render(fmt.Sprintf("%d", c.Victories)),
		p.styles.Bad.Render(fmt.Sprintf("%d", c.Defeats)),
		c.Escapes, c.EnemyFled, c.Aborted))
	p.row("Opportunities", fmt.Sprintf("%d", c.Opportunities))
	p.row("Finds", fmt.Sprintf("%d", c.Finds))
	if c.Misses > 0 {
		p.row("Misses", p.styles.Warn.Render(fmt.Sprintf("%d", c.Misses)))
	}
	p.row("Earned", fmt.Sprintf("%d gold, %d exp, %d items", c.GoldEarned, c.ExperienceEarned, c.ItemsFound))
	p.blank()
}

// Summary renders a journal summary.
func (p *Printer) Summary(s journal.Summary) {
	p.header("Journal since " + s.Since.Format("2006-01-02 15:04"))
	p.row("Runs", fmt.Sprintf("%d", s.Runs))
	if s.Battles == 0 {
		p.row("Battles", p.styles.Muted.Render("none"))
	} else {
		p.row("Battles", fmt.Sprintf("%d, %s win rate, %.1f rounds avg",
			s.Battles, p.styles.Value.Render(fmt.Sprintf("%.0f%%", s.WinRate()*100)), s.AvgRounds))
		p.row("Outcomes", counts(s.Outcomes))
	}
	p.row("Loot", fmt.Sprintf("%d gold, %d exp, %d items", s.Gold, s.Experience, s.Items))
	p.row("Explorations", fmt.Sprintf("%d", s.Explorations))
	if len(s.Kinds) > 0 {
		p.row("Results", counts(s.Kinds))
	}
	p.blank()
}

// Battles renders recent journal battles.
func (p *Printer) Battles(records []journal.BattleRecord) {
	p.header("Recent battles")
	if len(records) == 0 {
		fmt.Fprintln(p.w, "  "+p.styles.Muted.Render("no battles recorded"))
		p.blank()
		return
	}
	for _, r := range records {
		enemy := r.Enemy
		if enemy == "" {
			enemy = "?"
		}
		fmt.Fprintf(p.w, "  %s %-8s %-20s %2d rounds  HP %-4d %s\n",
			p.styles.Label.Render(r.Ended.Format("01-02 15:04")),
			p.outcome(r.Outcome), enemy, r.Rounds, r.FinalHP,
			p.styles.Muted.Render(loot(r)))
	}
	p.blank()
}

// Events renders classified messages, oldest first, with their buttons.
func (p *Printer) Events(events []classify.Event) {
	p.header("Recent messages")
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		fmt.Fprintf(p.w, "  %s %s\n",
			p.styles.Label.Render(fmt.Sprintf("#%d", e.Message.ID)),
			p.styles.Kind.Render("["+e.Kind.String()+"]"))
		for _, line := range strings.Split(strings.TrimSpace(e.Message.Text), "\n") {
			fmt.Fprintf(p.w, "    %s\n", line)
		}
		if b := buttons(e.Message.Buttons); b != "" {
			fmt.Fprintf(p.w, "    %s\n", p.styles.Button.Render(b))
		}
		if e.HasButton {
			fmt.Fprintf(p.w, "    %s %s\n", p.styles.Label.Render("would click"), e.Button.Label)
		}
	}
	p.blank()
}

func (p *Printer) outcome(o string) string {
	s := fmt.Sprintf("%-8s", o)
	switch o {
	case "win":
		return p.styles.Good.Render(s)
	case "loss", "aborted":
		return p.styles.Bad.Render(s)
	default:
		return p.styles.Warn.Render(s)
	}
}

func (p *Printer) hpValue(pct float64, text string) string {
	switch {
	case pct < 30:
		return p.styles.Bad.Render(text)
	case pct < 60:
		return p.styles.Warn.Render(text)
	default:
		return p.styles.Good.Render(text)
	}
}

func (p *Printer) bar(n, total int) string {
	if total <= 0 {
		return ""
	}
	filled := n * barWidth / total
	filled = max(0, min(filled, barWidth))
	return "[" + p.styles.BarFill.Render(strings.Repeat("█", filled)) + strings.Repeat("░", barWidth-filled) + "]"
}

// Until formats the time remaining until t, or "now" once it has passed.
func Until(now, t time.Time) string {
	if !t.After(now) {
		return "now"
	}
	return Duration(t.Sub(now))
}

// Duration formats d as hours and minutes.
func Duration(d time.Duration) string {
	d = d.Round(time.Second)
	switch {
	case d >= time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	case d >= time.Minute:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return d.String()
	}
}

func counts(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s %d", k, m[k])
	}
	return strings.Join(parts, ", ")
}

func loot(r journal.BattleRecord) string {
	var parts []string
	if r.Gold > 0 {
		parts = append(parts, fmt.Sprintf("+%d gold", r.Gold))
	}
	if r.Experience > 0 {
		parts = append(parts, fmt.Sprintf("+%d exp", r.Experience))
	}
	parts = append(parts, r.Items...)
	return strings.Join(parts, " ")
}

func buttons(rows [][]chat.Button) string {
	var out []string
	for _, row := range rows {
		labels := make([]string, len(row))
		for i, b := range row {
			labels[i] = "[" + b.Label + "]"
		}
		out = append(out, strings.Join(labels, " "))
	}
	return strings.Join(out, " / ")
}
