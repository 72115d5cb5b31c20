package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"careanalytics/internal/amqp"
	"careanalytics/internal/core"
	"careanalytics/internal/deprivation"
	applog "careanalytics/internal/log"
	"careanalytics/internal/middleware/trace"
	"careanalytics/internal/services"
)

func (s *Server) handleCommitmentReport(w http.ResponseWriter, r *http.Request) {
	kind, err := core.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q, err := parseReportQuery(r, s.reports.Today().Year())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	report, err := s.reports.CommitmentReport(r.Context(), kind, q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newReportJSON(report))
}

func (s *Server) handleAllowanceReport(w http.ResponseWriter, r *http.Request) {
	startYear, err := parseStartYear(r, s.reports.Today().Year())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	report, err := s.reports.AttendanceAllowanceReport(r.Context(), startYear)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAllowanceReportJSON(report))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	kind, err := core.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	dim, err := parseBreakdown(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	snap, err := s.reports.Snapshot(r.Context(), kind, dim)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSnapshotJSON(snap))
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.reports.Dashboard(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDashboardJSON(d))
}

func (s *Server) handleClassifyPostcode(w http.ResponseWriter, r *http.Request) {
	postcode := chi.URLParam(r, "postcode")
	if core.NormalizePostcode(postcode) == "" {
		s.writeError(w, r, core.ErrEmptyPostcode)
		return
	}

	cls, err := s.reports.ClassifyPostcode(r.Context(), postcode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newClassificationJSON(postcode, cls))
}

func (s *Server) handleRequestImport(w http.ResponseWriter, r *http.Request) {
	req, err := decodeImportRequest(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	msg, err := s.reports.RequestImport(r.Context(), req.Path, req.CreateTable)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Deprivation import queued",
		applog.FieldJobID, msg.JobID.String(), applog.FieldFile, msg.Path)
	writeJSON(w, http.StatusAccepted, newImportJobJSON(msg))
}

func (s *Server) handleCommitmentExport(w http.ResponseWriter, r *http.Request) {
	kind, err := core.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.export(w, r, string(kind)+"s")
}

func (s *Server) handleAllowanceExport(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, services.KindAttendanceAllowance)
}

func (s *Server) export(w http.ResponseWriter, r *http.Request, kind string) {
	q, err := parseReportQuery(r, s.reports.Today().Year())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.reports.Export(r.Context(), kind, q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exportJSON{Sheet: res.Sheet, Rows: res.Rows})
}

// statusFor maps domain and boundary errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errInvalidStartYear),
		errors.Is(err, errInvalidIsInfo),
		errors.Is(err, errInvalidBreakdown),
		errors.Is(err, errInvalidBody),
		errors.Is(err, amqp.ErrMissingPath),
		errors.Is(err, deprivation.ErrOutsideImportDir),
		errors.Is(err, core.ErrEmptyPostcode):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrInvalidKind),
		errors.Is(err, services.ErrUnknownReport):
		return http.StatusNotFound
	case errors.Is(err, services.ErrExportDisabled),
		errors.Is(err, services.ErrImportsDisabled),
		errors.Is(err, amqp.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs server-side failures and hides their detail from clients.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldPath, r.URL.Path, applog.FieldError, err.Error())
		msg = "internal server error"
	}
	writeJSONError(w, r, status, msg)
}

func writeJSONError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorJSON{Error: msg, RequestID: trace.GetRequestID(r.Context())})
}
