package dto

import (
	"github.com/noah-isme/syllabus-portal/internal/models"
)

// SubmitPlanRequest submits a week of lesson plans. TeacherID is taken from the session for teachers.
type SubmitPlanRequest struct {
	TeacherID    string             `json:"teacherId"`
	WeekStarting string             `json:"weekStarting" binding:"required"`
	Plans        []models.PlanEntry `json:"plans" binding:"required"`
}

// ResubmitRequest asks to unlock a submitted week.
type ResubmitRequest struct {
	TeacherID    string `json:"teacherId"`
	WeekStarting string `json:"weekStarting" binding:"required"`
}

// UpdateRegistryRequest replaces the faculty registry.
type UpdateRegistryRequest struct {
	Teachers []models.Teacher `json:"teachers" binding:"required"`
}

// FactoryResetRequest must carry confirm=true.
type FactoryResetRequest struct {
	Confirm bool `json:"confirm"`
}

// VisibilityRequest reports whether the client view is visible.
type VisibilityRequest struct {
	Visible *bool `json:"visible" binding:"required"`
}

// SyncURLRequest sets the remote endpoint.
type SyncURLRequest struct {
	URL string `json:"url" binding:"required"`
}

// WeekRequest targets a single week.
type WeekRequest struct {
	WeekStarting string `json:"weekStarting" binding:"required"`
}

// CompiledPDFRequest renders and sends the compiled PDF of a week.
type CompiledPDFRequest struct {
	WeekStarting string `json:"weekStarting" binding:"required"`
	Recipient    string `json:"recipient"`
}

// StateVersionResponse answers version long-polls.
type StateVersionResponse struct {
	DataVersion uint64 `json:"dataVersion"`
	Changed     bool   `json:"changed"`
}

// ExportLink points at a stored export.
type ExportLink struct {
	models.CompiledPDF
	DownloadURL string `json:"downloadUrl,omitempty"`
}

// SessionView is returned by the current-session endpoint.
type SessionView struct {
	User    models.Identity `json:"user"`
	Polling bool            `json:"polling"`
}
