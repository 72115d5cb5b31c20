package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"careanalytics/internal/core"
	"careanalytics/internal/services"
)

const maxBodyBytes = 1 << 20

var (
	errInvalidStartYear = errors.New("startYear must be an integer")
	errInvalidIsInfo    = errors.New("isInfo must be true or false")
	errInvalidBreakdown = errors.New("breakdown must be locality or deprivation")
	errInvalidBody      = errors.New("invalid JSON body")
)

// importRequest is the body of POST /api/deprivation/imports.
type importRequest struct {
	Path        string `json:"path"`
	CreateTable bool   `json:"createTable"`
}

// parseStartYear reads startYear, defaulting to fallback when absent.
// Clamping to the valid window is left to the report service.
func parseStartYear(r *http.Request, fallback int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get("startYear"))
	if v == "" {
		return fallback, nil
	}
	year, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errInvalidStartYear, v)
	}
	return year, nil
}

func parseIsInfo(r *http.Request) (bool, error) {
	v := strings.TrimSpace(r.URL.Query().Get("isInfo"))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %q", errInvalidIsInfo, v)
	}
	return b, nil
}

// parseBreakdown accepts an empty value as the locality breakdown.
func parseBreakdown(r *http.Request) (core.Dimension, error) {
	v := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("breakdown")))
	if v == "" {
		return core.DimensionLocality, nil
	}
	d := core.Dimension(v)
	if !d.Valid() {
		return "", fmt.Errorf("%w: %q", errInvalidBreakdown, v)
	}
	return d, nil
}

// parseReportQuery reads the shared report parameters.
func parseReportQuery(r *http.Request, currentYear int) (services.ReportQuery, error) {
	startYear, err := parseStartYear(r, currentYear)
	if err != nil {
		return services.ReportQuery{}, err
	}
	infoOnly, err := parseIsInfo(r)
	if err != nil {
		return services.ReportQuery{}, err
	}
	dim, err := parseBreakdown(r)
	if err != nil {
		return services.ReportQuery{}, err
	}
	return services.ReportQuery{StartYear: startYear, Dimension: dim, InfoOnly: infoOnly}, nil
}

func decodeImportRequest(w http.ResponseWriter, r *http.Request) (importRequest, error) {
	var req importRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return req, fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	req.Path = strings.TrimSpace(req.Path)
	return req, nil
}
