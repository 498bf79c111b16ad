package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/secdesk/abuse-portal/internal/bulk"
	"github.com/secdesk/abuse-portal/internal/gateway"
	"github.com/secdesk/abuse-portal/internal/metrics"
	"github.com/secdesk/abuse-portal/internal/model"
	"github.com/secdesk/abuse-portal/internal/report"
	"github.com/secdesk/abuse-portal/internal/submit"
)

const maxRequestBytes = 256 << 10 // 256 KiB

var (
	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timePattern = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}$`)
)

// HandleSubmitReport proxies one pre-built report to the upstream abuse API.
func (s *Server) HandleSubmitReport(w http.ResponseWriter, r *http.Request) {
	var rpt model.AbuseReport
	if err := decodeJSON(r, &rpt, maxRequestBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if errs := validateReport(rpt); len(errs) > 0 {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": errs,
		})
		return
	}

	body, err := s.reporting.Submit(r.Context(), rpt, BearerFromContext(r.Context()))
	if err != nil {
		metrics.ReportDispatchesTotal.WithLabelValues("error").Inc()
		s.respondUpstreamError(w, r, err)
		return
	}

	metrics.ReportDispatchesTotal.WithLabelValues("success").Inc()
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// validateReport checks the required fields of a single-report submission.
func validateReport(rpt model.AbuseReport) report.FieldErrors {
	errs := report.FieldErrors{}
	if !rpt.IncidentType.Valid() {
		errs["incidentType"] = "unknown incident type"
	}
	if !rpt.ThreatType.Valid() {
		errs["threatType"] = "unknown threat type"
	} else if rpt.IncidentType.Valid() && !model.ThreatAllowed(rpt.IncidentType, rpt.ThreatType) {
		errs["threatType"] = "threat type not permitted for incident type"
	}
	if !strings.Contains(rpt.ReporterEmail, "@") {
		errs["reporterEmail"] = "a valid reporter email is required"
	}
	if strings.TrimSpace(rpt.ReporterName) == "" {
		errs["reporterName"] = "reporter name is required"
	}
	if strings.TrimSpace(rpt.ReportNotes) == "" {
		errs["reportNotes"] = "report notes are required"
	}
	if !datePattern.MatchString(rpt.Date) {
		errs["date"] = "date must be YYYY-MM-DD"
	}
	if !timePattern.MatchString(rpt.Time) {
		errs["time"] = "time must be HH:mm:ss"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// respondUpstreamError maps gateway failures onto sanitized responses:
// timeouts to 504, upstream non-2xx to the upstream status, everything else
// to 502. Details stay in the server log.
func (s *Server) respondUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("upstream call failed",
		"error", err,
		"request_id", RequestIDFromContext(r.Context()),
	)

	var statusErr *gateway.StatusError
	switch {
	case isTimeout(err):
		respondError(w, http.StatusGatewayTimeout, "upstream timeout")
	case errors.As(err, &statusErr):
		respondError(w, statusErr.Code, "upstream error")
	default:
		respondError(w, http.StatusBadGateway, "upstream unavailable")
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// --- Bulk submission ---

// bulkRequest is the body of POST /api/report/bulk.
type bulkRequest struct {
	Targets         string `json:"targets"`
	IncidentType    string `json:"incidentType"`
	ThreatType      string `json:"threatType"`
	TimeZone        string `json:"timeZone"`
	ReportNotes     string `json:"reportNotes"`
	ReporterEmail   string `json:"reporterEmail"`
	ReporterName    string `json:"reporterName"`
	AnonymizeReport bool   `json:"anonymizeReport"`
	TestSubmission  bool   `json:"testSubmission"`
	DestinationIP   string `json:"destinationIp"`
	DestinationPort string `json:"destinationPort"`
	DelayMS         int    `json:"delayMs"`
	SkipInvalid     bool   `json:"skipInvalid"`
}

func (br bulkRequest) form() report.Form {
	return report.Form{
		IncidentType:    model.IncidentType(br.IncidentType),
		ThreatType:      model.ThreatType(br.ThreatType),
		TimeZone:        br.TimeZone,
		Description:     br.ReportNotes,
		ReporterEmail:   br.ReporterEmail,
		ReporterName:    br.ReporterName,
		Anonymize:       br.AnonymizeReport,
		TestSubmission:  br.TestSubmission,
		DestinationIP:   br.DestinationIP,
		DestinationPort: br.DestinationPort,
	}
}

// HandleBulkSubmit validates the form once up front, parses the target list,
// and starts a submission run. The response carries the run ID for polling.
func (s *Server) HandleBulkSubmit(w http.ResponseWriter, r *http.Request) {
	var br bulkRequest
	if err := decodeJSON(r, &br, maxRequestBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	form := br.form()
	if err := form.Validate(); err != nil {
		var fieldErrs report.FieldErrors
		if errors.As(err, &fieldErrs) {
			respondJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": fieldErrs,
			})
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	parsed := bulk.Parse(br.Targets, form.ThreatType)
	if len(parsed.Entries) == 0 {
		respondError(w, http.StatusBadRequest, "no targets provided")
		return
	}

	delay := s.config.SubmitDelay
	if br.DelayMS > 0 {
		delay = time.Duration(br.DelayMS) * time.Millisecond
	}

	run := s.runs.Start(form, parsed.Entries, BearerFromContext(r.Context()), submit.Options{
		Delay:       delay,
		SkipInvalid: br.SkipInvalid,
	})

	respondJSON(w, http.StatusAccepted, map[string]any{
		"runId":        run.ID,
		"total":        len(parsed.Entries),
		"validCount":   parsed.ValidCount,
		"invalidCount": parsed.InvalidCount,
	})
}

// HandleBulkStatus reports a run's state, progress, and log.
func (s *Server) HandleBulkStatus(w http.ResponseWriter, r *http.Request) {
	run, ok := s.runs.Get(chi.URLParam(r, "runID"))
	if !ok {
		respondError(w, http.StatusNotFound, "unknown run")
		return
	}
	respondJSON(w, http.StatusOK, run.Snapshot())
}

// HandleBulkCancel stops a running submission loop. Items already dispatched
// stay in the log.
func (s *Server) HandleBulkCancel(w http.ResponseWriter, r *http.Request) {
	run, ok := s.runs.Get(chi.URLParam(r, "runID"))
	if !ok {
		respondError(w, http.StatusNotFound, "unknown run")
		return
	}
	if !run.Cancel() {
		respondError(w, http.StatusConflict, "run already finished")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

// HandleValidateTargets classifies bulk text against a threat type without
// submitting anything. It backs the form's live counts.
func (s *Server) HandleValidateTargets(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Targets    string `json:"targets"`
		ThreatType string `json:"threatType"`
	}
	if err := decodeJSON(r, &req, maxRequestBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	respondJSON(w, http.StatusOK, bulk.Parse(req.Targets, model.ThreatType(req.ThreatType)))
}
