package ui

// Layout breakpoints for responsive design.
const (
	// BreakpointNarrow is the width below which the sidebar is hidden and
	// the overview stacks its boxes.
	BreakpointNarrow = 80

	// BreakpointMedium is the width above which the overview shows its
	// boxes side by side.
	BreakpointMedium = 100
)

// Box and panel dimension constraints.
const (
	// MinBoxWidth is the minimum width for bordered content boxes.
	MinBoxWidth = 20

	// MinContentHeight is the minimum height for scrollable content areas.
	MinContentHeight = 5

	// StatsPanelPadding is the padding subtracted from width for stats panels.
	StatsPanelPadding = 4
)
