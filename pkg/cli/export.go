package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/itmstools/itms_console/pkg/api"
	"github.com/itmstools/itms_console/pkg/export"
	"github.com/itmstools/itms_console/pkg/model"
	"github.com/itmstools/itms_console/pkg/review"
	"github.com/itmstools/itms_console/pkg/stats"
)

var errNoJournal = errors.New("the local action journal is unavailable; see the log file")

func ExportCmd() *cobra.Command {
	var (
		dir      string
		name     string
		visible  bool
		snapshot string
		criteria model.FilterCriteria
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download the review export as CSV",
		Long: heredoc.Doc(`
			Download the server's CSV export into the export directory.

			With --visible the CSV is written locally from the filtered list
			instead, using the same filter flags as "reviews list".
		`),
		Example: heredoc.Doc(`
			$ itms export
			$ itms export --dir ~/Downloads --name may.csv
			$ itms export --visible --from 2024-05-01 --to 2024-05-31
		`),
		Args: cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
			if dir == "" {
				dir = e.cfg.Export.Dir
			}
			if name == "" {
				name = e.cfg.Export.FileName
			}

			if visible || snapshot != "" {
				all, err := loadReviews(cmd.Context(), e, snapshot, cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				rows := applyFilter(all, criteria, cmd.ErrOrStderr())
				path := filepath.Join(dir, name)
				if err := export.SaveVisible(path, rows); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d of %d reviews to %s\n", len(rows), len(all), path)
				return nil
			}

			if _, err := e.requireSession(); err != nil {
				return err
			}
			path, err := export.Download(cmd.Context(), e.client, dir, name)
			if err != nil {
				e.log.WithError(err).Warn("export failed")
				return fmt.Errorf("export failed: %s", api.UserMessage(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported reviews to %s\n", path)
			return nil
		}),
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory to write into (default from config)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "File name (default from config)")
	cmd.Flags().BoolVar(&visible, "visible", false, "Write the filtered list locally instead of downloading")
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "Read reviews from a saved list (implies --visible)")
	filterFlags(cmd, &criteria)
	cmd.MarkFlagDirname("dir")
	return cmd
}

func StatsCmd() *cobra.Command {
	var (
		svgPath  string
		pngPath  string
		snapshot string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize reviews by status, reviewer and turnaround",
		Example: heredoc.Doc(`
			$ itms stats
			$ itms stats --svg status.svg --png status.png
		`),
		Args: cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
			var (
				reviews []model.Review
				recent  []review.ActionRecord
			)
			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				var err error
				reviews, err = loadReviews(ctx, e, snapshot, cmd.ErrOrStderr())
				return err
			})
			if e.db != nil {
				g.Go(func() error {
					var err error
					if recent, err = e.db.RecentActions(ctx, 100); err != nil {
						e.log.WithError(err).Warn("could not read journal")
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			summary := stats.Summarize(reviews)
			for _, c := range []struct{ path, format string }{{svgPath, "svg"}, {pngPath, "png"}} {
				if c.path == "" {
					continue
				}
				if err := export.SaveStatusChart(export.ChartOptions{Path: c.path, Format: c.format, Summary: summary}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", c.path)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, summaryJSON(summary, journalTally(recent)))
			}
			fmt.Fprint(out, formatSummary(summary, journalTally(recent)))
			return nil
		}),
	}

	cmd.Flags().StringVar(&svgPath, "svg", "", "Also write a status chart as SVG")
	cmd.Flags().StringVar(&pngPath, "png", "", "Also write a status chart as PNG")
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "Summarize a saved review list instead of the server's")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

// journalTally counts recent journal entries the same way a console run
// does. recs is newest first; the newest outcome per action wins.
func journalTally(recs []review.ActionRecord) review.Tally {
	col := review.NewActionCollector()
	for i := len(recs) - 1; i >= 0; i-- {
		col.Record(recs[i])
	}
	return col.Tally()
}

func formatSummary(s stats.Summary, t review.Tally) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reviews:     %d\n", s.Total)
	fmt.Fprintf(&b, "  Pending:   %d (%d unassigned)\n", s.Pending, s.Unassigned)
	fmt.Fprintf(&b, "  Approved:  %d\n", s.Approved)
	fmt.Fprintf(&b, "  Rejected:  %d\n", s.Rejected)
	if s.Approved+s.Rejected > 0 {
		fmt.Fprintf(&b, "Approval:    %.0f%%\n", s.ApprovalRate()*100)
	}
	if s.Turnaround.Count > 0 {
		fmt.Fprintf(&b, "Turnaround:  mean %s, median %s, p90 %s over %d decided\n",
			stats.FormatDuration(s.Turnaround.Mean),
			stats.FormatDuration(s.Turnaround.Median),
			stats.FormatDuration(s.Turnaround.P90),
			s.Turnaround.Count)
	}
	if len(s.Reviewers) > 0 {
		b.WriteString("Top reviewers:\n")
		for i, rc := range s.Reviewers {
			if i == 5 {
				break
			}
			fmt.Fprintf(&b, "  %-20s %d\n", rc.Reviewer, rc.Count)
		}
	}
	if t.Total() > 0 {
		fmt.Fprintf(&b, "Recent local actions: %d assigned, %d approved, %d rejected, %d failed\n",
			t.Assigned, t.Approved, t.Rejected, t.Failed)
	}
	return b.String()
}

type summaryOut struct {
	Total        int                   `json:"total"`
	Pending      int                   `json:"pending"`
	Approved     int                   `json:"approved"`
	Rejected     int                   `json:"rejected"`
	Unassigned   int                   `json:"unassigned"`
	ApprovalRate float64               `json:"approval_rate"`
	Turnaround   map[string]string     `json:"turnaround,omitempty"`
	Reviewers    []stats.ReviewerCount `json:"reviewers"`
	Actions      review.Tally          `json:"recent_actions"`
}

func summaryJSON(s stats.Summary, t review.Tally) summaryOut {
	out := summaryOut{
		Total:        s.Total,
		Pending:      s.Pending,
		Approved:     s.Approved,
		Rejected:     s.Rejected,
		Unassigned:   s.Unassigned,
		ApprovalRate: s.ApprovalRate(),
		Reviewers:    s.Reviewers,
		Actions:      t,
	}
	if out.Reviewers == nil {
		out.Reviewers = []stats.ReviewerCount{}
	}
	if s.Turnaround.Count > 0 {
		out.Turnaround = map[string]string{
			"mean":   s.Turnaround.Mean.Round(time.Second).String(),
			"median": s.Turnaround.Median.Round(time.Second).String(),
			"p90":    s.Turnaround.P90.Round(time.Second).String(),
		}
	}
	return out
}

func HistoryCmd() *cobra.Command {
	var (
		reviewID string
		limit    int
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show workflow actions taken from this machine",
		Example: heredoc.Doc(`
			$ itms history
			$ itms history --review 64f0c2
		`),
		Args: cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
			if e.db == nil {
				return errNoJournal
			}
			var (
				recs []review.ActionRecord
				err  error
			)
			if reviewID != "" {
				recs, err = e.db.ActionsForReview(cmd.Context(), reviewID)
			} else {
				recs, err = e.db.RecentActions(cmd.Context(), limit)
			}
			if err != nil {
				return fmt.Errorf("reading journal: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if recs == nil {
					recs = []review.ActionRecord{}
				}
				return writeJSON(out, recs)
			}
			if len(recs) == 0 {
				fmt.Fprintln(out, "No actions recorded yet")
				return nil
			}
			fmt.Fprintln(out, historyTable(recs))
			return nil
		}),
	}
	cmd.Flags().StringVar(&reviewID, "review", "", "Only actions for this review")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of recent actions")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
