// Package stats summarizes a review list for the dashboard overview.
package stats

import (
	"math"
	"sort"
	"strconv"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/itmstools/itms_console/pkg/model"
)

// Turnaround describes created_at -> reviewed_at latency of decided reviews
type Turnaround struct {
	Count  int
	Mean   time.Duration
	Median time.Duration
	P90    time.Duration
	StdDev time.Duration
}

// DayCount is the number of reviews created on one UTC day
type DayCount struct {
	Day   time.Time
	Count int
}

// ReviewerCount is the number of reviews bound to one reviewer
type ReviewerCount struct {
	Reviewer string
	Count    int
}

// Summary is the overview panel's data
type Summary struct {
	Total      int
	Pending    int
	Approved   int
	Rejected   int
	Unassigned int
	Reviewers  []ReviewerCount // most reviews first
	Turnaround Turnaround
	Daily      []DayCount // oldest first
}

// StatusCounts returns the per-status counts in display order
func (s Summary) StatusCounts() []StatusCount {
	return []StatusCount{
		{Status: model.StatusPending, Count: s.Pending},
		{Status: model.StatusApproved, Count: s.Approved},
		{Status: model.StatusRejected, Count: s.Rejected},
	}
}

// StatusCount pairs a status with its count
type StatusCount struct {
	Status model.Status
	Count  int
}

// ApprovalRate is approved / decided, or 0 with nothing decided
func (s Summary) ApprovalRate() float64 {
	decided := s.Approved + s.Rejected
	if decided == 0 {
		return 0
	}
	return float64(s.Approved) / float64(decided)
}

// Summarize computes the overview for reviews
func Summarize(reviews []model.Review) Summary {
	var s Summary
	s.Total = len(reviews)

	byReviewer := make(map[string]int)
	byDay := make(map[time.Time]int)
	var latencies []float64

	for _, r := range reviews {
		switch r.Status {
		case model.StatusApproved:
			s.Approved++
		case model.StatusRejected:
			s.Rejected++
		default:
			s.Pending++
		}

		if name, ok := r.Reviewer(); ok {
			byReviewer[name]++
		} else {
			s.Unassigned++
		}

		if !r.CreatedAt.IsZero() {
			day := r.CreatedAt.UTC().Truncate(24 * time.Hour)
			byDay[day]++
		}

		if r.Status.IsTerminal() && r.ReviewedAt != nil && !r.CreatedAt.IsZero() {
			if d := r.ReviewedAt.Sub(r.CreatedAt); d >= 0 {
				latencies = append(latencies, d.Seconds())
			}
		}
	}

	for name, n := range byReviewer {
		s.Reviewers = append(s.Reviewers, ReviewerCount{Reviewer: name, Count: n})
	}
	sort.Slice(s.Reviewers, func(i, j int) bool {
		if s.Reviewers[i].Count != s.Reviewers[j].Count {
			return s.Reviewers[i].Count > s.Reviewers[j].Count
		}
		return s.Reviewers[i].Reviewer < s.Reviewers[j].Reviewer
	})

	for day, n := range byDay {
		s.Daily = append(s.Daily, DayCount{Day: day, Count: n})
	}
	sort.Slice(s.Daily, func(i, j int) bool { return s.Daily[i].Day.Before(s.Daily[j].Day) })

	s.Turnaround = turnaround(latencies)
	return s
}

func turnaround(seconds []float64) Turnaround {
	t := Turnaround{Count: len(seconds)}
	if len(seconds) == 0 {
		return t
	}
	sort.Float64s(seconds)
	t.Mean = secondsToDuration(stat.Mean(seconds, nil))
	t.Median = secondsToDuration(stat.Quantile(0.5, stat.Empirical, seconds, nil))
	t.P90 = secondsToDuration(stat.Quantile(0.9, stat.Empirical, seconds, nil))
	if len(seconds) > 1 {
		t.StdDev = secondsToDuration(stat.StdDev(seconds, nil))
	}
	return t
}

func secondsToDuration(s float64) time.Duration {
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 0
	}
	return time.Duration(s * float64(time.Second)).Round(time.Second)
}

// FormatDuration renders a turnaround compactly, e.g. "2d 3h" or "45m"
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	switch {
	case days > 0:
		return formatPair(int(days), "d", int(hours), "h")
	case hours > 0:
		return formatPair(int(hours), "h", int(minutes), "m")
	case minutes > 0:
		return strconv.Itoa(int(minutes)) + "m"
	}
	return strconv.Itoa(int(d/time.Second)) + "s"
}

func formatPair(a int, au string, b int, bu string) string {
	if b == 0 {
		return strconv.Itoa(a) + au
	}
	return strconv.Itoa(a) + au + " " + strconv.Itoa(b) + bu
}
