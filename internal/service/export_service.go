package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/syllabus-portal/internal/models"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
	"github.com/noah-isme/syllabus-portal/pkg/export"
	"github.com/noah-isme/syllabus-portal/pkg/storage"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type complianceSource interface {
	Compliance(ctx context.Context, week string) (*models.ComplianceReport, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(doc export.Document) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix  string
	SchoolName string
	ResultTTL  time.Duration
}

// ExportService renders the weekly compilation and compliance sheets and keeps copies on disk.
type ExportService struct {
	state      *StateStore
	compliance complianceSource
	dispatcher mutationDispatcher
	storage    fileStorage
	csv        csvRenderer
	pdf        pdfRenderer
	signer     *storage.SignedURLSigner
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        ExportConfig
	now        func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(state *StateStore, compliance complianceSource, dispatcher mutationDispatcher, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.SchoolName == "" {
		cfg.SchoolName = "School"
	}
	if csv == nil {
		csv = export.NewCSVExporter(true)
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		state:      state,
		compliance: compliance,
		dispatcher: dispatcher,
		storage:    files,
		csv:        csv,
		pdf:        pdf,
		signer:     signer,
		validator:  validator.New(),
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// SendCompiledPDF renders every submission of week into one document, stores it and pushes it
// to the remote endpoint for delivery to recipient.
func (s *ExportService) SendCompiledPDF(ctx context.Context, week, recipient string) (*models.MutationReceipt, error) {
	if err := validateWeek(week); err != nil {
		return nil, err
	}
	recipient = strings.TrimSpace(recipient)
	if err := s.validator.Var(recipient, "omitempty,email"); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "recipient must be an email address")
	}

	state := s.state.State()
	submissions := make([]models.WeeklySubmission, 0)
	for _, submission := range state.Submissions {
		if submission.WeekStarting == week {
			submissions = append(submissions, submission)
		}
	}
	if len(submissions) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no submissions for this week")
	}
	sort.SliceStable(submissions, func(i, j int) bool {
		return strings.ToLower(submissions[i].TeacherName) < strings.ToLower(submissions[j].TeacherName)
	})

	payload, err := s.pdf.Render(s.buildDocument(week, submissions))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render compiled pdf")
	}

	fileName := s.buildFilename("lesson_plans", week, "pdf")
	relPath, err := s.storage.Save(fileName, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store compiled pdf")
	}

	compiled := models.CompiledPDF{
		WeekStarting: week,
		FileName:     relPath,
		Recipient:    recipient,
		Submissions:  len(submissions),
		SizeBytes:    len(payload),
	}
	if s.signer != nil {
		token, expiresAt, err := s.signer.Generate(week, relPath)
		if err != nil {
			s.logger.Warn("failed to sign compiled pdf download", zap.Error(err))
		} else {
			compiled.DownloadToken = token
			compiled.ExpiresAt = expiresAt
		}
	}

	push := models.NewSyncPayload(models.ActionSendCompiledPDF, map[string]interface{}{
		"weekStarting": week,
		"fileName":     relPath,
		"recipient":    recipient,
		"pdfBase64":    base64.StdEncoding.EncodeToString(payload),
	})
	push.DataVersion = state.DataVersion
	outcome := s.dispatcher.Dispatch(ctx, push)

	s.logger.Info("compiled pdf sent",
		zap.String("week", week),
		zap.Int("submissions", len(submissions)),
		zap.Int("bytes", len(payload)),
		zap.String("outcome", string(outcome)))
	return models.NewMutationReceipt(models.ActionSendCompiledPDF, state.DataVersion, outcome, compiled), nil
}

// ComplianceCSV renders the week's compliance report as a spreadsheet-friendly CSV.
func (s *ExportService) ComplianceCSV(ctx context.Context, week string) ([]byte, string, error) {
	report, err := s.compliance.Compliance(ctx, week)
	if err != nil {
		return nil, "", err
	}
	rows := make([][]string, 0, len(report.Entries))
	for _, entry := range report.Entries {
		status := "pending"
		submittedAt := ""
		if entry.Submitted {
			status = "submitted"
			submittedAt = entry.SubmittedAt.UTC().Format(time.RFC3339)
		}
		warned := "no"
		if entry.Warned {
			warned = "yes"
		}
		rows = append(rows, []string{entry.TeacherID, entry.TeacherName, entry.Email, status, submittedAt, warned})
	}
	payload, err := s.csv.Render(export.Dataset{
		Headers: []string{"Teacher ID", "Name", "Email", "Status", "Submitted At", "Warned"},
		Rows:    rows,
	})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render compliance csv")
	}
	return payload, fmt.Sprintf("compliance_%s.csv", week), nil
}

// DownloadURL builds the API path for a signed token.
func (s *ExportService) DownloadURL(token string) string {
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return fmt.Sprintf("%s/exports/%s", prefix, token)
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string) (storage.DownloadGrant, error) {
	if s.signer == nil {
		return storage.DownloadGrant{}, storage.ErrInvalidToken
	}
	return s.signer.Parse(token, false)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildDocument(week string, submissions []models.WeeklySubmission) export.Document {
	doc := export.Document{
		Title:    fmt.Sprintf("%s weekly lesson plans", s.cfg.SchoolName),
		Subtitle: fmt.Sprintf("Week starting %s - %d submissions", week, len(submissions)),
		Sections: make([]export.Section, 0, len(submissions)),
	}
	for _, submission := range submissions {
		rows := make([][]string, 0, len(submission.Plans))
		for _, plan := range submission.Plans {
			rows = append(rows, []string{plan.ClassLevel, plan.Section, plan.Subject, plan.Chapter, plan.Topics, plan.Homework})
		}
		doc.Sections = append(doc.Sections, export.Section{
			Heading:    fmt.Sprintf("%s (%s)", submission.TeacherName, submission.TeacherEmail),
			Subheading: "Submitted " + submission.SubmittedAt.UTC().Format("2006-01-02 15:04 MST"),
			Data: export.Dataset{
				Headers: []string{"Class", "Section", "Subject", "Chapter", "Topics", "Homework"},
				Rows:    rows,
			},
			Weights: []float64{1, 1, 2, 2, 4, 3},
		})
	}
	return doc
}

func (s *ExportService) buildFilename(kind, week, ext string) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%s_%s.%s", kind, sanitizeFilename(week), timestamp, ext)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
