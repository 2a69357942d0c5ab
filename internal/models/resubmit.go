package models

import "time"

// ResubmitStatus captures the lifecycle of a resubmission request.
type ResubmitStatus string

const (
	ResubmitStatusPending  ResubmitStatus = "pending"
	ResubmitStatusApproved ResubmitStatus = "approved"
	ResubmitStatusRejected ResubmitStatus = "rejected"
)

// ResubmitRequest asks the administrator to unlock a submitted week.
type ResubmitRequest struct {
	ID              string         `json:"id"`
	TeacherID       string         `json:"teacherId"`
	TeacherName     string         `json:"teacherName"`
	TeacherEmail    string         `json:"teacherEmail"`
	WeekStarting    string         `json:"weekStarting"`
	Status          ResubmitStatus `json:"status"`
	RequestedAt     time.Time      `json:"requestedAt"`
	AdminNotified   bool           `json:"adminNotified"`
	TeacherNotified bool           `json:"teacherNotified"`
}

// Matches reports whether the request targets the given slot.
func (r ResubmitRequest) Matches(teacherID, week string) bool {
	return r.TeacherID == teacherID && r.WeekStarting == week
}
