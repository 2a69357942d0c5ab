package models

import (
	"fmt"
	"time"
)

// WeekLayout is the ISO date layout used for weekStarting values.
const WeekLayout = "2006-01-02"

// PlanEntry is the lesson plan for one class-section-subject within a week.
type PlanEntry struct {
	ClassLevel string `json:"classLevel" validate:"required"`
	Section    string `json:"section" validate:"required"`
	Subject    string `json:"subject" validate:"required"`
	Chapter    string `json:"chapter"`
	Topics     string `json:"topics"`
	Homework   string `json:"homework"`
}

// WeeklySubmission is one teacher's complete lesson plan for one week.
type WeeklySubmission struct {
	ID           string      `json:"id"`
	TeacherID    string      `json:"teacherId"`
	TeacherName  string      `json:"teacherName"`
	TeacherEmail string      `json:"teacherEmail"`
	WeekStarting string      `json:"weekStarting"`
	Plans        []PlanEntry `json:"plans"`
	SubmittedAt  time.Time   `json:"submittedAt"`
}

// SubmissionKey identifies the active submission slot of a teacher for a week.
type SubmissionKey struct {
	TeacherID    string
	WeekStarting string
}

// Key returns the (teacher, week) slot of the submission.
func (s WeeklySubmission) Key() SubmissionKey {
	return SubmissionKey{TeacherID: s.TeacherID, WeekStarting: s.WeekStarting}
}

// Matches reports whether the submission occupies the given slot.
func (s WeeklySubmission) Matches(teacherID, week string) bool {
	return s.TeacherID == teacherID && s.WeekStarting == week
}

// ParseWeekStarting validates that raw is an ISO date falling on a Monday.
func ParseWeekStarting(raw string) (time.Time, error) {
	day, err := time.Parse(WeekLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("weekStarting must be YYYY-MM-DD: %w", err)
	}
	if day.Weekday() != time.Monday {
		return time.Time{}, fmt.Errorf("weekStarting %s is a %s, expected Monday", raw, day.Weekday())
	}
	return day, nil
}

// WeekStartingFor returns the Monday of the week containing t, formatted as an ISO date.
func WeekStartingFor(t time.Time) string {
	offset := (int(t.Weekday()) + 6) % 7
	monday := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, -offset)
	return monday.Format(WeekLayout)
}
