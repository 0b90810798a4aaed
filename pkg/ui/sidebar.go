package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Routes the dashboard can show
const (
	RouteLogin      = "/login"
	RouteDashboard  = "/dashboard"
	RouteEquipments = "/equipments"
	RouteUsers      = "/users"
	RouteReviews    = "/reviews"
	RouteProfile    = "/profile"
	RouteSettings   = "/settings"
)

// ReviewRoute is the detail route for a review
func ReviewRoute(id string) string {
	return RouteReviews + "/" + id
}

// reviewIDFromRoute extracts the id from a detail route
func reviewIDFromRoute(route string) (string, bool) {
	id, ok := strings.CutPrefix(route, RouteReviews+"/")
	return id, ok && id != ""
}

type navItem struct {
	key   string
	label string
	icon  string
	route string
}

var navItems = []navItem{
	{"1", "Equipments", "▣", RouteEquipments},
	{"2", "Users", "◉", RouteUsers},
	{"3", "Reviews", "✎", RouteReviews},
	{"4", "Profile", "☺", RouteProfile},
	{"5", "Settings", "⚙", RouteSettings},
}

const sidebarWidth = 22

// SidebarModel renders the navigation column
type SidebarModel struct {
	visible bool
	theme   Theme
}

// NewSidebarModel creates a sidebar
func NewSidebarModel(visible bool, theme Theme) SidebarModel {
	return SidebarModel{visible: visible, theme: theme}
}

// Toggle shows or hides the sidebar
func (m *SidebarModel) Toggle() { m.visible = !m.visible }

// IsVisible reports whether the sidebar takes space
func (m SidebarModel) IsVisible() bool { return m.visible }

// Width is the columns the sidebar occupies
func (m SidebarModel) Width() int {
	if !m.visible {
		return 0
	}
	return sidebarWidth
}

// RouteForKey maps a number key to its route
func RouteForKey(key string) (string, bool) {
	for _, item := range navItems {
		if item.key == key {
			return item.route, true
		}
	}
	return "", false
}

// View renders the sidebar with the active route highlighted
func (m SidebarModel) View(route, user string, height int) string {
	if !m.visible {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.theme.Style().Bold(true).Foreground(m.theme.Primary).Render("ITMS"))
	b.WriteString("\n")
	if user != "" {
		b.WriteString(m.theme.Style().Foreground(m.theme.Muted).Render(truncateRunes(user, sidebarWidth-4)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	home := navItem{label: "Dashboard", icon: "⌂", route: RouteDashboard}
	for _, item := range append([]navItem{home}, navItems...) {
		active := route == item.route || (item.route == RouteReviews && strings.HasPrefix(route, RouteReviews+"/"))
		line := item.icon + " " + item.label
		if item.key != "" {
			line = item.key + " " + line
		} else {
			line = "  " + line
		}
		style := m.theme.Style().Foreground(m.theme.Subtext).Width(sidebarWidth - 4)
		if active {
			style = style.Bold(true).Foreground(m.theme.Primary).Background(m.theme.Highlight)
		}
		b.WriteString(style.Render(line) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(m.theme.Style().Faint(true).Render("[s] hide  [L] log out"))

	box := m.theme.Style().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.theme.Border).
		Padding(0, 1).
		Width(sidebarWidth - 2)
	if height > 2 {
		box = box.Height(height - 2)
	}
	return box.Render(b.String())
}
