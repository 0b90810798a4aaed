package cli

import (
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/itmstools/itms_console/pkg/model"
	"github.com/itmstools/itms_console/pkg/review"
)

const timeLayout = "2006-01-02 15:04"

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)

	statusStyles = map[model.Status]lipgloss.Style{
		model.StatusPending:  cellStyle.Foreground(lipgloss.Color("#F57C00")),
		model.StatusApproved: cellStyle.Foreground(lipgloss.Color("#388E3C")),
		model.StatusRejected: cellStyle.Foreground(lipgloss.Color("#D32F2F")),
	}
)

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderRow(false).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// reviewTable renders reviews with the same columns as the console list
func reviewTable(reviews []model.Review) string {
	t := newTable("Review ID", "Equipment ID", "Barcode", "Created By", "Created At", "Reviewed By", "Reviewed At", "Status")
	for _, r := range reviews {
		reviewer, ok := r.Reviewer()
		if !ok {
			reviewer = "Unassigned"
		}
		created := r.CreatedAt
		t.Row(r.ReviewID, orDash(r.EquipmentID.String()), orDash(r.Barcode), orDash(r.CreatedBy),
			formatTime(&created), reviewer, formatTime(r.ReviewedAt), string(r.Status))
	}
	const statusCol = 7
	t.StyleFunc(func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return headerStyle
		case col == statusCol && row >= 0 && row < len(reviews):
			if s, ok := statusStyles[reviews[row].Status]; ok {
				return s
			}
		}
		return cellStyle
	})
	return t.String()
}

// reviewFields is the detail view as label/value pairs
func reviewFields(r model.Review) [][2]string {
	reviewer, ok := r.Reviewer()
	if !ok {
		reviewer = "Unassigned"
	}
	created := r.CreatedAt
	return [][2]string{
		{"Review ID", r.ReviewID},
		{"Equipment ID", orDash(r.EquipmentID.String())},
		{"Barcode", orDash(r.Barcode)},
		{"Manufacturer", orDash(r.Manufacturer)},
		{"Model", orDash(r.ModelNumber)},
		{"Serial", orDash(r.SerialNumber)},
		{"Created By", orDash(r.CreatedBy)},
		{"Created At", formatTime(&created)},
		{"Reviewed By", reviewer},
		{"Reviewed At", formatTime(r.ReviewedAt)},
		{"Status", string(r.Status)},
	}
}

func historyTable(recs []review.ActionRecord) string {
	t := newTable("At", "Action", "Review ID", "Outcome", "Actor", "Message")
	for _, rec := range recs {
		at := rec.Timestamp
		t.Row(formatTime(&at), string(rec.Action), rec.ReviewID, rec.Outcome, orDash(rec.Actor), orDash(rec.Message))
	}
	return t.String()
}
