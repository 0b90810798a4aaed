package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/itmstools/itms_console/pkg/api"
	"github.com/itmstools/itms_console/pkg/loader"
	"github.com/itmstools/itms_console/pkg/model"
	"github.com/itmstools/itms_console/pkg/review"
)

func ReviewsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reviews",
		Aliases: []string{"review"},
		Short:   "List, inspect and decide reviews",
		Example: heredoc.Doc(`
			$ itms reviews list --user alice
			$ itms reviews show 64f0c2
			$ itms reviews assign 64f0c2 --yes
		`),
	}

	cmd.AddCommand(
		listReviewsCmd(),
		showReviewCmd(),
		assignReviewCmd(),
		decideReviewCmd(model.StatusApproved),
		decideReviewCmd(model.StatusRejected),
	)
	return cmd
}

// filterFlags binds the list filter to command flags
func filterFlags(cmd *cobra.Command, c *model.FilterCriteria) {
	cmd.Flags().StringVar(&c.Barcode, "barcode", "", "Barcode contains (case-insensitive)")
	cmd.Flags().StringVar(&c.EquipmentID, "equipment", "", "Equipment ID contains")
	cmd.Flags().StringVar(&c.Username, "user", "", "Creator or reviewer contains")
	cmd.Flags().StringVar(&c.StartDate, "from", "", "Created or reviewed on/after (YYYY-MM-DD)")
	cmd.Flags().StringVar(&c.EndDate, "to", "", "Created or reviewed on/before (YYYY-MM-DD)")
}

// loadReviews reads a snapshot file when one is given, otherwise the server
// list under the stored session.
func loadReviews(ctx context.Context, e *env, snapshot string, warn io.Writer) ([]model.Review, error) {
	if snapshot != "" {
		res, err := loader.LoadFile(snapshot)
		if err != nil {
			return nil, err
		}
		if res.Skipped > 0 {
			fmt.Fprintf(warn, "skipped %d unreadable records in %s\n", res.Skipped, snapshot)
		}
		return res.Reviews, nil
	}
	if _, err := e.requireSession(); err != nil {
		return nil, err
	}
	reviews, err := e.client.ListReviews(ctx)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			_ = e.sessions.End(ctx)
			return nil, fmt.Errorf("%s; run `itms login`", api.UserMessage(err))
		}
		return nil, fmt.Errorf("loading reviews: %w", err)
	}
	return reviews, nil
}

// applyFilter warns about date criteria that were ignored
func applyFilter(reviews []model.Review, raw model.FilterCriteria, warn io.Writer) []model.Review {
	c := review.Compile(raw)
	for _, field := range c.Invalid() {
		fmt.Fprintf(warn, "ignoring %s: not a date\n", field)
	}
	return c.Apply(reviews)
}

func listReviewsCmd() *cobra.Command {
	var (
		criteria model.FilterCriteria
		asJSON   bool
		snapshot string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reviews, optionally filtered",
		Example: heredoc.Doc(`
			$ itms reviews list
			$ itms reviews list --barcode bc-1 --from 2024-05-01 --to 2024-05-31
			$ itms reviews list --snapshot reviews.json --user bob --json
		`),
		Args: cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
			all, err := loadReviews(cmd.Context(), e, snapshot, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			visible := applyFilter(all, criteria, cmd.ErrOrStderr())

			out := cmd.OutOrStdout()
			if asJSON {
				if visible == nil {
					visible = []model.Review{}
				}
				return writeJSON(out, visible)
			}
			if len(all) == 0 {
				fmt.Fprintln(out, "No reviews yet")
				return nil
			}
			fmt.Fprintln(out, reviewTable(visible))
			fmt.Fprintf(out, "%d of %d reviews\n", len(visible), len(all))
			return nil
		}),
	}

	filterFlags(cmd, &criteria)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the filtered list as JSON")
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "Filter a saved review list instead of the server's")
	cmd.MarkFlagFilename("snapshot", "json", "jsonl")
	return cmd
}

func showReviewCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show one review in full",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			if _, err := e.requireSession(); err != nil {
				return err
			}
			r, err := e.client.GetReview(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("loading review %s: %s", args[0], api.UserMessage(err))
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, r)
			}
			writeReview(out, r, e.client.ImageURL(r.ImageURL))
			return nil
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func writeReview(w io.Writer, r model.Review, imageURL string) {
	for _, f := range reviewFields(r) {
		fmt.Fprintf(w, "%-13s %s\n", f[0]+":", f[1])
	}
	if imageURL == "" {
		imageURL = "No image available"
	}
	fmt.Fprintf(w, "%-13s %s\n", "Image:", imageURL)
	if data := strings.TrimSpace(r.ReviewedData.String()); data != "" && data != "null" {
		fmt.Fprintf(w, "\nReviewed data:\n%s\n", data)
	}
}

func assignReviewCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "assign ID",
		Short: "Assign a review to yourself",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			ctrl, confirm, err := prepareAction(cmd, e, yes)
			if err != nil {
				return err
			}
			out, err := ctrl.Assign(cmd.Context(), args[0], confirm)
			return reportOutcome(cmd.OutOrStdout(), out, err)
		}),
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func decideReviewCmd(decision model.Status) *cobra.Command {
	var yes bool
	verb := "approve"
	if decision == model.StatusRejected {
		verb = "reject"
	}
	cmd := &cobra.Command{
		Use:   verb + " ID",
		Short: fmt.Sprintf("%s a pending review", strings.ToUpper(verb[:1])+verb[1:]),
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			ctrl, confirm, err := prepareAction(cmd, e, yes)
			if err != nil {
				return err
			}
			out, err := ctrl.Decide(cmd.Context(), args[0], decision, confirm)
			return reportOutcome(cmd.OutOrStdout(), out, err)
		}),
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// prepareAction loads the current list into a projection so the controller
// checks its preconditions against the server's state.
func prepareAction(cmd *cobra.Command, e *env, yes bool) (*review.Controller, review.Confirmer, error) {
	sess, err := e.requireSession()
	if err != nil {
		return nil, nil, err
	}
	if !sess.IsAdmin() {
		return nil, nil, review.ErrNotAdmin
	}
	confirm, err := confirmer(yes)
	if err != nil {
		return nil, nil, err
	}
	reviews, err := loadReviews(cmd.Context(), e, "", cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	proj := review.NewProjection()
	proj.SetSource(reviews)

	opts := []review.Option{
		review.WithLogger(e.log.WithField("command", cmd.CommandPath())),
		review.WithNotifier(stderrNotifier(cmd.ErrOrStderr())),
	}
	if e.recorder != nil {
		opts = append(opts, review.WithJournal(e.recorder))
	}
	return review.NewController(e.sessions, e.client, proj, opts...), confirm, nil
}

// stderrNotifier prints failures; success is reported on stdout by the command
func stderrNotifier(w io.Writer) review.Notifier {
	return review.NotifierFunc(func(n review.Notice) {
		if n.Level < review.LevelWarn {
			return
		}
		if n.Message != "" {
			fmt.Fprintf(w, "%s: %s\n", n.Title, n.Message)
			return
		}
		fmt.Fprintln(w, n.Title)
	})
}

func reportOutcome(w io.Writer, out review.Outcome, err error) error {
	switch {
	case err == nil:
	case review.IsPrecondition(err):
		return err
	case out.Action != review.ActionAssign && api.IsKind(err, api.KindFetch):
		return fmt.Errorf("%s %s was saved but the review could not be reloaded", out.Action, out.ReviewID)
	default:
		// The notifier already printed the server's reason.
		return fmt.Errorf("%s %s failed", out.Action, out.ReviewID)
	}
	if out.Cancelled {
		fmt.Fprintln(w, "Cancelled; nothing was sent")
		return nil
	}
	reviewer, ok := out.Review.Reviewer()
	if !ok {
		reviewer = "Unassigned"
	}
	fmt.Fprintf(w, "%s %s: status %s, reviewer %s\n", out.Action, out.ReviewID, out.Review.Status, reviewer)
	if out.Message != "" {
		fmt.Fprintln(w, out.Message)
	}
	return nil
}
