package stats

import (
	"testing"
	"time"

	"github.com/itmstools/itms_console/pkg/model"
)

func at(day, hour int) time.Time {
	return time.Date(2024, 5, day, hour, 0, 0, 0, time.UTC)
}

func decided(id string, status model.Status, reviewer string, created, reviewed time.Time) model.Review {
	return model.Review{ReviewID: id, Status: status, ReviewedBy: &reviewer, CreatedAt: created, ReviewedAt: &reviewed}
}

func TestSummarizeCounts(t *testing.T) {
	reviews := []model.Review{
		{ReviewID: "p1", Status: model.StatusPending, CreatedAt: at(1, 9)},
		{ReviewID: "p2", Status: model.StatusPending, CreatedAt: at(1, 15)},
		decided("a1", model.StatusApproved, "bob", at(2, 9), at(2, 11)),
		decided("a2", model.StatusApproved, "alice", at(2, 9), at(2, 13)),
		decided("r1", model.StatusRejected, "bob", at(3, 9), at(3, 10)),
	}
	s := Summarize(reviews)

	if s.Total != 5 || s.Pending != 2 || s.Approved != 2 || s.Rejected != 1 {
		t.Fatalf("counts = %+v", s)
	}
	if s.Unassigned != 2 {
		t.Errorf("Unassigned = %d, want 2", s.Unassigned)
	}
	if len(s.Reviewers) != 2 || s.Reviewers[0].Reviewer != "bob" || s.Reviewers[0].Count != 2 {
		t.Errorf("Reviewers = %+v", s.Reviewers)
	}
	if len(s.Daily) != 3 || !s.Daily[0].Day.Equal(at(1, 0)) || s.Daily[0].Count != 2 {
		t.Errorf("Daily = %+v", s.Daily)
	}
	if got := s.ApprovalRate(); got < 0.66 || got > 0.67 {
		t.Errorf("ApprovalRate = %v", got)
	}

	tr := s.Turnaround
	if tr.Count != 3 {
		t.Fatalf("Turnaround.Count = %d, want 3", tr.Count)
	}
	if tr.Median != 2*time.Hour {
		t.Errorf("Median = %v, want 2h", tr.Median)
	}
	if tr.Mean != 2*time.Hour+20*time.Minute {
		t.Errorf("Mean = %v, want 2h20m", tr.Mean)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	if s.Total != 0 || s.Turnaround.Count != 0 || s.ApprovalRate() != 0 {
		t.Fatalf("unexpected summary for no reviews: %+v", s)
	}
}

func TestSummarizeIgnoresNegativeTurnaround(t *testing.T) {
	s := Summarize([]model.Review{decided("x", model.StatusApproved, "bob", at(5, 9), at(4, 9))})
	if s.Turnaround.Count != 0 {
		t.Fatalf("reviewed before created should not count, got %+v", s.Turnaround)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "-"},
		{45 * time.Minute, "45m"},
		{3*time.Hour + 5*time.Minute, "3h 5m"},
		{51 * time.Hour, "2d 3h"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
