package ui

import "github.com/charmbracelet/lipgloss"

// Shared palette referenced by every table/graph/search renderer in
// this package. Kept adaptive so the same styles read on light and
// dark terminal backgrounds.
var (
	ColorAccent = lipgloss.AdaptiveColor{Light: "#6750A4", Dark: "#D0BCFF"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#79747E", Dark: "#938F99"}
	ColorWarn   = lipgloss.AdaptiveColor{Light: "#B54708", Dark: "#FDB022"}
	ColorPass   = lipgloss.AdaptiveColor{Light: "#1B7F4C", Dark: "#4ADE80"}
)
