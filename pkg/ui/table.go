package ui

import (
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
)

const (
	timeLayout = "2006-01-02 15:04"
	emptyCell  = "—"
)

type column struct {
	title string
	width int
}

// truncateOrPad fits s to exactly width display cells
func truncateOrPad(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.FillRight(truncateRunes(s, width), width)
}

// truncateRunes shortens s to width display cells with an ellipsis
func truncateRunes(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return emptyCell
	}
	return t.Local().Format(timeLayout)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return emptyCell
	}
	return formatTime(*t)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return emptyCell
	}
	return s
}

// fitColumns shrinks flexible columns until the row fits width. The last
// column absorbs any remaining space.
func fitColumns(cols []column, width int) []column {
	out := append([]column(nil), cols...)
	total := func() int {
		n := 0
		for _, c := range out {
			n += c.width + 1
		}
		return n
	}
	for total() > width {
		widest := -1
		for i, c := range out {
			if c.width > 8 && (widest < 0 || c.width > out[widest].width) {
				widest = i
			}
		}
		if widest < 0 {
			break
		}
		out[widest].width--
	}
	if extra := width - total(); extra > 0 && len(out) > 0 {
		out[len(out)-1].width += extra
	}
	return out
}
