package entitylist

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/nhle/facility-maintenance/internal/model"
	"github.com/nhle/facility-maintenance/internal/theme"
)

// ListItemWrapper wraps a model.ListItem so it can be used in a bubbles/list.
type ListItemWrapper struct {
	Item model.ListItem
}

// FilterValue returns the string used for fuzzy filtering.
func (w ListItemWrapper) FilterValue() string {
	return w.Item.GetTitle()
}

// Title returns the item title for the list.
func (w ListItemWrapper) Title() string {
	return w.Item.GetTitle()
}

// Description returns a short summary line for the list.
func (w ListItemWrapper) Description() string {
	parts := []string{w.Item.GetStatus()}
	if rel := RelativeTime(w.Item.GetUpdatedAt()); rel != "" {
		parts = append(parts, rel)
	}
	return strings.Join(parts, " | ")
}

// ItemDelegate implements list.ItemDelegate for rendering list items.
type ItemDelegate struct {
	// busy marks items with a mutation in flight. Shared by reference
	// with the list Model so updates are visible.
	busy map[int64]bool
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused for now).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single list item line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	wrapper, ok := item.(ListItemWrapper)
	if !ok {
		return
	}
	li := wrapper.Item

	prefix := "●"
	if li.IsClosed() {
		prefix = "✓"
	}

	statusBadge := theme.StatusStyle(li.GetStatus()).Render(li.GetStatus())

	busy := ""
	if d.busy[li.GetID()] {
		busy = lipgloss.NewStyle().
			Foreground(theme.ColorYellow).
			Render(" …")
	}

	timeStr := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(RelativeTime(li.GetUpdatedAt()))

	line := fmt.Sprintf("%s %s %s%s  %s", prefix, statusBadge, li.GetTitle(), busy, timeStr)

	if li.IsClosed() {
		line = theme.DimmedStyle.Render(line)
	}
	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// RelativeTime renders t as "3 minutes ago". The zero time renders as "".
func RelativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return humanize.Time(t)
}
