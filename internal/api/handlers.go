package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	netmail "net/mail"
	"strconv"
	"strings"
	"time"

	"EmailManager/internal/domain"
	"EmailManager/internal/templates"
	"EmailManager/internal/usecase"
)

const (
	maxBodyBytes     = 1 << 20
	recentDeliveries = 5
)

type sendEmailRequest struct {
	ToEmail string  `json:"to_email"`
	Subject string  `json:"subject"`
	Body    *string `json:"body"`
}

type messageResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	RunID   string   `json:"run_id,omitempty"`
	Run     *runJSON `json:"run,omitempty"`
}

type errorResponse struct {
	Detail string   `json:"detail"`
	Run    *runJSON `json:"run,omitempty"`
}

type runErrorJSON struct {
	Kind    domain.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

type runJSON struct {
	ID           string          `json:"id"`
	Trigger      domain.Trigger  `json:"trigger"`
	State        domain.RunState `json:"state"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at"`
	FailedIn     string          `json:"failed_in,omitempty"`
	FetchedCount int             `json:"fetched_count"`
	Summarized   bool            `json:"summarized"`
	Sent         bool            `json:"sent"`
	Error        *runErrorJSON   `json:"error,omitempty"`
}

func toRunJSON(run domain.ReportRun) *runJSON {
	out := &runJSON{
		ID:           run.ID,
		Trigger:      run.Trigger,
		State:        run.State,
		StartedAt:    run.StartedAt.UTC(),
		FetchedCount: run.FetchedCount,
		Summarized:   run.Summarized,
		Sent:         run.Sent,
	}
	run.FinishedAt.WhenSome(func(t time.Time) {
		t = t.UTC()
		out.FinishedAt = &t
	})
	run.FailedIn.WhenSome(func(state domain.RunState) {
		out.FailedIn = string(state)
	})
	// The full message stays in the log; clients only see the kind.
	run.Error.WhenSome(func(e domain.RunError) {
		out.Error = &runErrorJSON{Kind: e.Kind, Message: publicMessage(e.Kind)}
	})
	return out
}

func publicMessage(kind domain.ErrorKind) string {
	switch kind {
	case domain.KindAuthentication:
		return "Authentication with a provider failed"
	case domain.KindNetwork:
		return "A provider could not be reached"
	case domain.KindRateLimit:
		return "A provider rate limit was hit"
	case domain.KindTemplate:
		return "The report could not be rendered"
	case domain.KindValidation:
		return "The run configuration is invalid"
	default:
		return "Internal error"
	}
}

type statusResponse struct {
	SchedulerRunning   bool       `json:"scheduler_running"`
	Interval           string     `json:"interval,omitempty"`
	NextRunTime        *time.Time `json:"next_run_time"`
	RunInProgress      bool       `json:"run_in_progress"`
	CurrentRun         *runJSON   `json:"current_run"`
	LastRun            *runJSON   `json:"last_run"`
	EmailConfigured    bool       `json:"email_configured"`
	LLMAvailable       bool       `json:"llm_available"`
	DeliveriesRecorded *int       `json:"deliveries_recorded,omitempty"`
	RecentDeliveries   []delivery `json:"recent_deliveries,omitempty"`
}

type delivery struct {
	Kind      domain.DeliveryKind `json:"kind"`
	Recipient string              `json:"recipient"`
	Subject   string              `json:"subject"`
	SentAt    time.Time           `json:"sent_at"`
	OK        bool                `json:"ok"`
	ErrorKind domain.ErrorKind    `json:"error_kind,omitempty"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": serviceName,
		"version": s.deps.Version,
		"endpoints": map[string]string{
			"send_email":     "/send-email/",
			"trigger_report": "/trigger-report/",
			"health":         "/health",
			"status":         "/status",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"services": map[string]bool{
			"email_sender": s.deps.EmailConfigured,
			"summarizer":   s.deps.LLMAvailable,
		},
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		EmailConfigured: s.deps.EmailConfigured,
		LLMAvailable:    s.deps.LLMAvailable,
	}

	if sched := s.deps.Schedule; sched != nil {
		resp.SchedulerRunning = sched.Running()
		resp.Interval = sched.Interval().String()
		if next, ok := sched.NextRunAt(); ok {
			next = next.UTC()
			resp.NextRunTime = &next
		}
	}

	if s.deps.Runner != nil {
		current, last := s.deps.Runner.Status()
		current.WhenSome(func(run domain.ReportRun) {
			resp.RunInProgress = true
			resp.CurrentRun = toRunJSON(run)
		})
		last.WhenSome(func(run domain.ReportRun) {
			resp.LastRun = toRunJSON(run)
		})
	}

	if s.deps.Deliveries != nil {
		n, err := s.deps.Deliveries.Count(r.Context())
		if err != nil {
			s.logger.Warn("count deliveries", "error", err)
		} else {
			resp.DeliveriesRecorded = &n
		}

		recent, err := s.deps.Deliveries.Recent(r.Context(), recentDeliveries)
		if err != nil {
			s.logger.Warn("read recent deliveries", "error", err)
		}
		for _, d := range recent {
			resp.RecentDeliveries = append(resp.RecentDeliveries, delivery{
				Kind:      d.Kind,
				Recipient: d.Recipient,
				Subject:   d.Subject,
				SentAt:    d.SentAt.UTC(),
				OK:        d.OK,
				ErrorKind: d.ErrorKind,
			})
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSendEmail(w http.ResponseWriter, r *http.Request) {
	var req sendEmailRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := validateSendRequest(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.logger.Info("send email requested", "to", req.ToEmail)

	err := s.deps.Sender.Send(r.Context(), domain.SendRequest{
		To:       req.ToEmail,
		Subject:  req.Subject,
		Template: templates.Email,
		Variables: map[string]any{
			"subject": req.Subject,
			"body":    *req.Body,
		},
	})
	if err != nil {
		if domain.IsKind(err, domain.KindValidation) {
			writeError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
			return
		}
		s.logger.Error("send email failed", "to", req.ToEmail, "kind", domain.KindOf(err), "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to send email")
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		Success: true,
		Message: fmt.Sprintf("Email sent successfully to %s", req.ToEmail),
	})
}

func validateSendRequest(req sendEmailRequest) error {
	var missing []string
	if strings.TrimSpace(req.ToEmail) == "" {
		missing = append(missing, "to_email")
	}
	if strings.TrimSpace(req.Subject) == "" {
		missing = append(missing, "subject")
	}
	if req.Body == nil {
		missing = append(missing, "body")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	if _, err := netmail.ParseAddress(req.ToEmail); err != nil {
		return fmt.Errorf("invalid to_email: %w", err)
	}
	return nil
}

func (s *Server) handleTriggerReport(w http.ResponseWriter, r *http.Request) {
	wait := false
	if v := r.URL.Query().Get("wait"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid wait parameter")
			return
		}
		wait = parsed
	}

	// Runs outlive the request so a disconnecting client does not abort them.
	ctx := context.WithoutCancel(r.Context())

	if !wait {
		id, err := s.deps.Runner.Start(ctx, domain.TriggerManual)
		if err != nil {
			s.triggerFailed(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, messageResponse{
			Success: true,
			Message: "Report generation started",
			RunID:   id,
		})
		return
	}

	run, err := s.deps.Runner.Run(ctx, domain.TriggerManual)
	if err != nil {
		if errors.Is(err, usecase.ErrRunInProgress) {
			s.triggerFailed(w, err)
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Detail: "Report run aborted",
			Run:    toRunJSON(run),
		})
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		Success: true,
		Message: "Report generated and sent",
		RunID:   run.ID,
		Run:     toRunJSON(run),
	})
}

func (s *Server) triggerFailed(w http.ResponseWriter, err error) {
	if errors.Is(err, usecase.ErrRunInProgress) {
		writeError(w, http.StatusConflict, "A report run is already in progress")
		return
	}
	s.logger.Error("trigger report failed", "error", err)
	writeError(w, http.StatusInternalServerError, "Error triggering report")
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
