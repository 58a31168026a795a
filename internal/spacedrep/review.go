package spacedrep

import "time"

// Date truncates t to its UTC calendar day.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateString formats a calendar day as YYYY-MM-DD.
func DateString(t time.Time) string {
	return Date(t).Format(time.DateOnly)
}

// IsDue returns true if the item is due on or before the given day.
func (s *ReviewSchedule) IsDue(today time.Time) bool {
	return !Date(today).Before(s.NextReviewDate)
}

// IsOverdue returns true if the review date is strictly before the given day.
func (s *ReviewSchedule) IsOverdue(today time.Time) bool {
	return s.NextReviewDate.Before(Date(today))
}

// OverdueDays returns how many whole days past due the item is.
// Returns 0 if not overdue.
func (s *ReviewSchedule) OverdueDays(today time.Time) int {
	if !s.IsOverdue(today) {
		return 0
	}
	return int(Date(today).Sub(s.NextReviewDate).Hours() / 24)
}

// DaysUntilReview returns the number of days until the next review.
// Returns 0 if already due.
func (s *ReviewSchedule) DaysUntilReview(today time.Time) int {
	if s.IsDue(today) {
		return 0
	}
	return int(s.NextReviewDate.Sub(Date(today)).Hours() / 24)
}

// DueStatus describes a schedule's position relative to a given day.
type DueStatus string

const (
	StatusNotDue   DueStatus = "not_due"
	StatusDueToday DueStatus = "due_today"
	StatusOverdue  DueStatus = "overdue"
)

// Status returns the due status for display and queue bucketing.
func (s *ReviewSchedule) Status(today time.Time) DueStatus {
	switch {
	case s.IsOverdue(today):
		return StatusOverdue
	case s.IsDue(today):
		return StatusDueToday
	default:
		return StatusNotDue
	}
}
