package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/shazow/autojoin/wifi"
)

const ssidColumnWidth = 30

// signalBars draws link quality as four bars.
func signalBars(quality uint8) string {
	bars := []string{"▂", "▄", "▆", "█"}
	n := (int(quality) + 24) / 25
	var s strings.Builder
	for i, b := range bars {
		if i < n {
			s.WriteString(b)
		} else {
			s.WriteString(" ")
		}
	}
	return s.String()
}

func (m *Model) networkLine(r wifi.ScanResult) string {
	_, saved := m.store.Get(r.SSID)

	icon := "  "
	titleStyle := lipgloss.NewStyle().Foreground(CurrentTheme.Normal)
	switch {
	case r.SSID == m.connected:
		titleStyle = lipgloss.NewStyle().Foreground(CurrentTheme.Success)
		icon = CurrentTheme.SavedIcon
	case saved:
		titleStyle = lipgloss.NewStyle().Foreground(CurrentTheme.Saved)
		icon = CurrentTheme.SavedIcon
	}

	title := truncate(r.SSID, ssidColumnWidth)
	padding := strings.Repeat(" ", ssidColumnWidth-lipgloss.Width(title))

	quality := wifi.DBmToQuality(r.Signal)
	signal := lipgloss.NewStyle().Foreground(CurrentTheme.signalColor(quality)).
		Render(fmt.Sprintf("%s %4d dBm", signalBars(quality), r.Signal))
	details := lipgloss.NewStyle().Foreground(CurrentTheme.Subtle).
		Render(fmt.Sprintf("%-16s ch %d", r.Security, r.Channel))

	return icon + titleStyle.Render(title) + padding + " " + signal + "  " + details
}

func (m *Model) statusLine() string {
	primary := lipgloss.NewStyle().Foreground(CurrentTheme.Primary)
	switch m.phase {
	case phaseScanning:
		return m.spinner.View() + " " + primary.Render("Scanning for networks...")
	case phaseAssociating:
		percent := 0.0
		if m.budget > 0 {
			percent = float64(m.ticks) / float64(m.budget)
		}
		line := m.spinner.View() + " " + primary.Render(fmt.Sprintf("Joining '%s'...", m.trying))
		return line + "\n" + m.progress.ViewAs(percent) + fmt.Sprintf(" %d/%d ticks", m.ticks, m.budget)
	case phaseConnected:
		return lipgloss.NewStyle().Foreground(CurrentTheme.Success).Render(fmt.Sprintf("Connected to '%s'", m.connected))
	case phaseFailed:
		return lipgloss.NewStyle().Foreground(CurrentTheme.Error).Render(m.status)
	}
	if m.status != "" {
		return primary.Render(m.status)
	}
	return lipgloss.NewStyle().Foreground(CurrentTheme.Subtle).Render("Idle")
}

// View renders the UI based on the current model state.
func (m *Model) View() string {
	var s strings.Builder

	s.WriteString(lipgloss.NewStyle().Foreground(CurrentTheme.Primary).Bold(true).Render("autojoin"))
	s.WriteString(lipgloss.NewStyle().Foreground(CurrentTheme.Subtle).
		Render(fmt.Sprintf("  %d networks configured", m.store.Len())))
	s.WriteString("\n\n")
	s.WriteString(m.statusLine())
	s.WriteString("\n\n")

	var list strings.Builder
	list.WriteString(lipgloss.NewStyle().Foreground(CurrentTheme.Primary).Bold(true).
		Render(fmt.Sprintf("  %-*s %s", ssidColumnWidth, "WiFi Network", "Signal")))
	for _, r := range m.results {
		list.WriteString("\n")
		list.WriteString(m.networkLine(r))
	}
	if len(m.results) == 0 {
		list.WriteString("\n")
		list.WriteString(lipgloss.NewStyle().Foreground(CurrentTheme.Disabled).Render("  No networks found"))
	}
	border := lipgloss.NewStyle().Border(lipgloss.RoundedBorder(), true).BorderForeground(CurrentTheme.Border)
	s.WriteString(border.Render(list.String()))
	s.WriteString("\n")

	if !m.lastScan.IsZero() {
		s.WriteString(lipgloss.NewStyle().Foreground(CurrentTheme.Subtle).
			Render("Last scan " + formatDuration(m.lastScan, m.now())))
		s.WriteString("\n")
	}

	if len(m.logs) > 0 {
		s.WriteString("\n")
		logStyle := lipgloss.NewStyle().Foreground(CurrentTheme.Subtle)
		for _, line := range m.logs {
			s.WriteString(logStyle.Render(line))
			s.WriteString("\n")
		}
	}

	s.WriteString("\n")
	s.WriteString(m.help.View(m.keys))
	return lipgloss.NewStyle().Margin(1, 2).Render(s.String())
}
