package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-pdf/fpdf"
	"github.com/krshsl/interviewcoach/backend/models"
)

// Report is everything rendered into a session report
type Report struct {
	User     *models.User
	Session  *models.InterviewSession
	Result   *models.InterviewResult
	Analyses []models.InterviewAnalysisResult
}

// Report loads a completed session with its evaluation. Other statuses are a conflict.
func (s *SessionService) Report(ctx context.Context, user *models.User, id string) (*Report, error) {
	session, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionCompleted {
		return nil, conflictError("reports are only available for completed sessions")
	}
	result, err := s.repo.GetResult(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, conflictError("session has not been evaluated yet")
	}
	analyses, err := s.repo.ListAnalysisResults(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	return &Report{User: user, Session: session, Result: result, Analyses: analyses}, nil
}

// RenderReportPDF writes the report as an A4 PDF
func RenderReportPDF(w io.Writer, report *Report) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Interview report: "+report.Session.Title, true)
	pdf.SetAuthor("Interview Coach", true)
	if report.Session.EndedAt != nil {
		pdf.SetCreationDate(*report.Session.EndedAt)
	}
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr(report.Session.Title), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	candidate := report.User.Email
	if report.User.FullName != "" {
		candidate = report.User.FullName + " <" + report.User.Email + ">"
	}
	pdf.CellFormat(0, 6, tr("Candidate: "+candidate), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Started: %s", report.Session.StartedAt.Format("2006-01-02 15:04 MST")), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Duration: %d min %d s", report.Session.Duration/60, report.Session.Duration%60), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Answered: %d of %d", report.Result.AnsweredCount, report.Result.QuestionCount), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, fmt.Sprintf("Overall score: %.1f / 100", report.Result.OverallScore), "", 1, "L", false, 0, "")

	scores := models.ScoreMap(report.Result.MetricScores)
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)
	pdf.SetFont("Helvetica", "", 11)
	for _, name := range names {
		label := strings.ReplaceAll(name, "_", " ")
		pdf.CellFormat(60, 6, tr(label), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, fmt.Sprintf("%.1f", scores[name]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	section := func(title, body string) {
		if strings.TrimSpace(body) == "" {
			return
		}
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 7, tr(title), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 5, tr(body), "", "L", false)
		pdf.Ln(3)
	}
	section("Summary", report.Result.Summary)
	section("Strengths", report.Result.Strengths)
	section("Areas to improve", report.Result.Weaknesses)
	section("Recommendations", report.Result.Recommendations)

	byQuestion := make(map[string]models.InterviewAnalysisResult, len(report.Analyses))
	for _, a := range report.Analyses {
		byQuestion[a.QuestionID] = a
	}
	if len(report.Session.Questions) > 0 {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 7, "Questions", "", 1, "L", false, 0, "")
	}
	for _, q := range report.Session.Questions {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.MultiCell(0, 5, tr(fmt.Sprintf("%d. %s", q.Position+1, q.Prompt)), "", "L", false)
		pdf.SetFont("Helvetica", "", 10)
		answer := strings.TrimSpace(q.Answer)
		if answer == "" {
			answer = "(no answer)"
		}
		pdf.MultiCell(0, 5, tr(answer), "", "L", false)
		if a, ok := byQuestion[q.ID]; ok {
			pdf.SetFont("Helvetica", "I", 10)
			pdf.MultiCell(0, 5, tr(fmt.Sprintf("Score %.1f. %s", a.Score, a.Feedback)), "", "L", false)
		}
		pdf.Ln(2)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}
	return pdf.Output(w)
}

// reportText is the plain-text body used when the report is e-mailed
func reportText(report *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your interview report for %q\n\n", report.Session.Title)
	fmt.Fprintf(&b, "Overall score: %.1f / 100\n", report.Result.OverallScore)
	fmt.Fprintf(&b, "Answered: %d of %d questions\n\n", report.Result.AnsweredCount, report.Result.QuestionCount)
	b.WriteString(report.Result.Summary)
	b.WriteString("\n")
	if report.Result.Recommendations != "" {
		b.WriteString("\nRecommendations:\n")
		b.WriteString(report.Result.Recommendations)
		b.WriteString("\n")
	}
	b.WriteString("\nThe full report is attached as a PDF.\n")
	return b.String()
}

func reportFileName(session *models.InterviewSession) string {
	return fmt.Sprintf("interview-report-%s.pdf", session.ID)
}

type ReportEndpoints struct {
	sessions *SessionService
	mailer   Mailer
}

func NewReportEndpoints(sessions *SessionService, mailer Mailer) *ReportEndpoints {
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &ReportEndpoints{sessions: sessions, mailer: mailer}
}

// RegisterSessionRoutes registers the report routes inside the /sessions subrouter
func (e *ReportEndpoints) RegisterSessionRoutes(r chi.Router) {
	r.Get("/{id}/report.pdf", e.DownloadReportHandler)
	r.Post("/{id}/report/email", e.EmailReportHandler)
}

func (e *ReportEndpoints) DownloadReportHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	report, err := e.sessions.Report(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := RenderReportPDF(&buf, report); err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, reportFileName(report.Session)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("Failed to write report", "session_id", report.Session.ID, "error", err)
	}
}

func (e *ReportEndpoints) EmailReportHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	report, err := e.sessions.Report(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := RenderReportPDF(&buf, report); err != nil {
		writeError(w, r, err)
		return
	}

	msg := Message{
		Kind:        "report",
		To:          user.Email,
		Subject:     "Your interview report: " + report.Session.Title,
		Body:        reportText(report),
		Attachments: []Attachment{{Name: reportFileName(report.Session), Data: buf.Bytes()}},
	}
	if err := e.mailer.Send(r.Context(), msg); err != nil {
		slog.Error("Failed to e-mail report", "session_id", report.Session.ID, "user_id", user.ID, "error", err)
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Report sent successfully",
	})

	slog.Info("Report e-mailed", "session_id", report.Session.ID, "user_id", user.ID)
}
