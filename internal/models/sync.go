package models

import (
	"encoding/json"
	"time"
)

// SyncAction tags a mutation pushed to the remote endpoint.
type SyncAction string

const (
	ActionSubmitPlan      SyncAction = "SUBMIT_PLAN"
	ActionRequestResubmit SyncAction = "REQUEST_RESUBMIT"
	ActionApproveResubmit SyncAction = "APPROVE_RESUBMIT"
	ActionRejectResubmit  SyncAction = "REJECT_RESUBMIT"
	ActionResetSubmission SyncAction = "RESET_SUBMISSION"
	ActionSyncRegistry    SyncAction = "SYNC_REGISTRY"
	ActionSendWarnings    SyncAction = "SEND_WARNINGS"
	ActionSendCompiledPDF SyncAction = "SEND_COMPILED_PDF"
)

// SnapshotResultSuccess is the only result marker treated as a successful pull.
const SnapshotResultSuccess = "success"

// Snapshot is the remote-reported state. Nil collections were absent from the response.
type Snapshot struct {
	Result      string              `json:"result"`
	Message     string              `json:"message,omitempty"`
	Teachers    *[]Teacher          `json:"teachers,omitempty"`
	Submissions *[]WeeklySubmission `json:"submissions,omitempty"`
	Requests    *[]ResubmitRequest  `json:"requests,omitempty"`
}

// Succeeded reports whether the snapshot carries the success marker.
func (s *Snapshot) Succeeded() bool {
	return s != nil && s.Result == SnapshotResultSuccess
}

// Empty reports whether no collection is present.
func (s *Snapshot) Empty() bool {
	return s == nil || (s.Teachers == nil && s.Submissions == nil && s.Requests == nil)
}

// SyncPayload is a mutation descriptor sent through Push.
type SyncPayload struct {
	Action      SyncAction
	DataVersion uint64
	Fields      map[string]interface{}
}

// NewSyncPayload builds a payload for the action.
func NewSyncPayload(action SyncAction, fields map[string]interface{}) SyncPayload {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	return SyncPayload{Action: action, Fields: fields}
}

// MarshalJSON flattens fields next to the action and _dataVersion keys.
func (p SyncPayload) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(p.Fields)+2)
	for k, v := range p.Fields {
		flat[k] = v
	}
	flat["action"] = p.Action
	flat["_dataVersion"] = p.DataVersion
	return json.Marshal(flat)
}

// OutboxQueue names one of the persisted outbox queues.
type OutboxQueue string

const (
	OutboxOffline OutboxQueue = "offline"
	OutboxRetry   OutboxQueue = "retry"
)

// OutboxEntry is a write awaiting replay, stored verbatim.
type OutboxEntry struct {
	ID        string          `json:"id"`
	Queue     OutboxQueue     `json:"queue"`
	Action    SyncAction      `json:"action"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	QueuedAt  time.Time       `json:"queuedAt"`
	LastError string          `json:"lastError,omitempty"`
}

// PortalState is a consistent copy of the in-memory collections.
type PortalState struct {
	Teachers    []Teacher          `json:"teachers"`
	Submissions []WeeklySubmission `json:"submissions"`
	Requests    []ResubmitRequest  `json:"requests"`
	DataVersion uint64             `json:"dataVersion"`
}

// SyncStatus summarises the last pull for status endpoints.
type SyncStatus struct {
	URL           string     `json:"url,omitempty"`
	Configured    bool       `json:"configured"`
	Polling       bool       `json:"polling"`
	LastPullAt    *time.Time `json:"lastPullAt,omitempty"`
	LastPullError string     `json:"lastPullError,omitempty"`
	DataVersion   uint64     `json:"dataVersion"`
	PendingWrites int        `json:"pendingWrites"`
}

// DispatchOutcome reports where a pushed mutation ended up.
type DispatchOutcome string

const (
	DispatchSent    DispatchOutcome = "sent"
	DispatchQueued  DispatchOutcome = "queued"
	DispatchDropped DispatchOutcome = "dropped"
)

// MutationReceipt describes the outcome of a local mutation handler.
type MutationReceipt struct {
	Action      SyncAction  `json:"action"`
	DataVersion uint64      `json:"dataVersion"`
	Dispatched  bool        `json:"dispatched"`
	Queued      bool        `json:"queued"`
	Result      interface{} `json:"result,omitempty"`
}

// NewMutationReceipt fills the delivery flags from outcome.
func NewMutationReceipt(action SyncAction, version uint64, outcome DispatchOutcome, result interface{}) *MutationReceipt {
	return &MutationReceipt{
		Action:      action,
		DataVersion: version,
		Dispatched:  outcome == DispatchSent,
		Queued:      outcome == DispatchQueued,
		Result:      result,
	}
}

// SubmissionGate reports whether a teacher may submit for a week.
type SubmissionGate struct {
	TeacherID       string `json:"teacherId"`
	WeekStarting    string `json:"weekStarting"`
	Submitted       bool   `json:"submitted"`
	ResubmitAllowed bool   `json:"resubmitAllowed"`
	PendingRequest  bool   `json:"pendingRequest"`
}

// Allowed reports whether a new submission is accepted.
func (g SubmissionGate) Allowed() bool {
	return !g.Submitted || g.ResubmitAllowed
}

// ComplianceEntry is one teacher's status for a week.
type ComplianceEntry struct {
	TeacherID   string     `json:"teacherId"`
	TeacherName string     `json:"teacherName"`
	Email       string     `json:"email"`
	Submitted   bool       `json:"submitted"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	Warned      bool       `json:"warned"`
}

// ComplianceReport summarises submissions for a week.
type ComplianceReport struct {
	WeekStarting string            `json:"weekStarting"`
	Total        int               `json:"total"`
	Submitted    int               `json:"submitted"`
	Pending      int               `json:"pending"`
	Entries      []ComplianceEntry `json:"entries"`
}

// CompiledPDF describes a rendered weekly compilation.
type CompiledPDF struct {
	WeekStarting  string    `json:"weekStarting"`
	FileName      string    `json:"fileName"`
	Recipient     string    `json:"recipient"`
	Submissions   int       `json:"submissions"`
	SizeBytes     int       `json:"sizeBytes"`
	DownloadToken string    `json:"downloadToken,omitempty"`
	ExpiresAt     time.Time `json:"expiresAt,omitempty"`
}
