package task

import "time"

// DueStatus classifies a task's due date relative to a point in time.
type DueStatus string

const (
	DueNone     DueStatus = "none"
	DueOverdue  DueStatus = "overdue"
	DueToday    DueStatus = "today"
	DueUpcoming DueStatus = "upcoming"
)

// DueStatus reports where t's due date falls relative to now, in now's
// location. A completed task past its date reports DueNone rather than
// DueOverdue. Unparseable dates are DueNone.
func (t Task) DueStatus(now time.Time) DueStatus {
	if t.DueDate == "" {
		return DueNone
	}

	due, err := time.ParseInLocation(DateLayout, t.DueDate, now.Location())
	if err != nil {
		return DueNone
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch {
	case due.Equal(today):
		return DueToday
	case due.Before(today):
		if t.Completed {
			return DueNone
		}
		return DueOverdue
	default:
		return DueUpcoming
	}
}
