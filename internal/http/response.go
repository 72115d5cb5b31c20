package http

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"careanalytics/internal/amqp"
	"careanalytics/internal/core"
	"careanalytics/internal/services"
)

// Wire shapes of the JSON API. Hours are rendered as numbers rounded to two
// decimal places. The breakdown list is keyed "localities" or
// "deprivationCategories" after the report dimension; exactly one is set.

type serviceHoursJSON struct {
	Name       string  `json:"name"`
	TotalHours float64 `json:"totalHours"`
}

type breakdownNodeJSON struct {
	Name       string             `json:"name"`
	TotalHours float64            `json:"totalHours"`
	Services   []serviceHoursJSON `json:"services"`
}

type breakdownJSON struct {
	Localities            *[]breakdownNodeJSON `json:"localities,omitempty"`
	DeprivationCategories *[]breakdownNodeJSON `json:"deprivationCategories,omitempty"`
}

type monthReportJSON struct {
	Month      int     `json:"month"`
	TotalHours float64 `json:"totalHours"`
	breakdownJSON
	Services []serviceHoursJSON `json:"services"`
}

type yearReportJSON struct {
	Year       int     `json:"year"`
	TotalHours float64 `json:"totalHours"`
	breakdownJSON
	Services []serviceHoursJSON `json:"services"`
	Months   []monthReportJSON  `json:"months"`
}

type reportJSON struct {
	Kind      string           `json:"kind"`
	Breakdown string           `json:"breakdown"`
	StartYear int              `json:"startYear"`
	EndYear   int              `json:"endYear"`
	Years     []yearReportJSON `json:"years"`
}

type allowanceCountsJSON struct {
	Total                  int     `json:"total"`
	TotalHigh              int     `json:"totalHigh"`
	TotalRequestedHigh     int     `json:"totalRequestedHigh"`
	TotalHighRequestedHigh int     `json:"totalHighRequestedHigh"`
	TotalHours             float64 `json:"totalHours"`
}

type allowanceMonthJSON struct {
	Month int `json:"month"`
	allowanceCountsJSON
}

type allowanceYearJSON struct {
	Year int `json:"year"`
	allowanceCountsJSON
	Months []allowanceMonthJSON `json:"months"`
}

type allowanceReportJSON struct {
	StartYear int                 `json:"startYear"`
	EndYear   int                 `json:"endYear"`
	Years     []allowanceYearJSON `json:"years"`
}

type snapshotJSON struct {
	Kind        string  `json:"kind"`
	Breakdown   string  `json:"breakdown"`
	AsOf        string  `json:"asOf"`
	Active      int     `json:"active"`
	WeeklyHours float64 `json:"weeklyHours"`
	breakdownJSON
	Services []serviceHoursJSON `json:"services"`
}

type dashboardJSON struct {
	AsOf                        string  `json:"asOf"`
	ActiveRequests              int     `json:"activeRequests"`
	ActivePackages              int     `json:"activePackages"`
	RequestWeeklyHours          float64 `json:"requestWeeklyHours"`
	PackageWeeklyHours          float64 `json:"packageWeeklyHours"`
	AllowanceInReceipt          int     `json:"allowanceInReceipt"`
	AllowanceConfirmedThisMonth int     `json:"allowanceConfirmedThisMonth"`
}

type classificationJSON struct {
	Postcode       string `json:"postcode"`
	Matched        bool   `json:"matched"`
	IncomeDeprived bool   `json:"incomeDeprived"`
	HealthDeprived bool   `json:"healthDeprived"`
	Category       string `json:"category"`
	Warning        string `json:"warning,omitempty"`
}

type importJobJSON struct {
	JobID       string `json:"jobId"`
	Path        string `json:"path"`
	CreateTable bool   `json:"createTable"`
	RequestedAt string `json:"requestedAt"`
}

type exportJSON struct {
	Sheet string `json:"sheet"`
	Rows  int    `json:"rows"`
}

type errorJSON struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// unmatchedWarning is shown to operators when a postcode is not in the table.
const unmatchedWarning = "Postcode not found in the deprivation table; check it for typos before relying on the classification."

func hoursJSON(h core.Hours) float64 {
	return h.Round(2).Float64()
}

func servicesJSON(in []core.ServiceHours) []serviceHoursJSON {
	out := make([]serviceHoursJSON, len(in))
	for i, s := range in {
		out[i] = serviceHoursJSON{Name: s.Name, TotalHours: hoursJSON(s.TotalHours)}
	}
	return out
}

func nodesJSON(in []core.BreakdownNode) []breakdownNodeJSON {
	out := make([]breakdownNodeJSON, len(in))
	for i, n := range in {
		out[i] = breakdownNodeJSON{Name: n.Name, TotalHours: hoursJSON(n.TotalHours), Services: servicesJSON(n.Services)}
	}
	return out
}

func newBreakdownJSON(dim core.Dimension, in []core.BreakdownNode) breakdownJSON {
	nodes := nodesJSON(in)
	if dim == core.DimensionDeprivation {
		return breakdownJSON{DeprivationCategories: &nodes}
	}
	return breakdownJSON{Localities: &nodes}
}

// Nodes returns whichever breakdown list is set.
func (b breakdownJSON) Nodes() []breakdownNodeJSON {
	switch {
	case b.Localities != nil:
		return *b.Localities
	case b.DeprivationCategories != nil:
		return *b.DeprivationCategories
	default:
		return nil
	}
}

func newReportJSON(r core.Report) reportJSON {
	out := reportJSON{
		Kind:      string(r.Kind),
		Breakdown: string(r.Dimension),
		StartYear: r.StartYear,
		EndYear:   r.EndYear,
		Years:     make([]yearReportJSON, len(r.Years)),
	}
	for i, y := range r.Years {
		months := make([]monthReportJSON, len(y.Months))
		for j, m := range y.Months {
			months[j] = monthReportJSON{
				Month:         m.Month,
				TotalHours:    hoursJSON(m.TotalHours),
				breakdownJSON: newBreakdownJSON(r.Dimension, m.Breakdown),
				Services:      servicesJSON(m.Services),
			}
		}
		out.Years[i] = yearReportJSON{
			Year:          y.Year,
			TotalHours:    hoursJSON(y.TotalHours),
			breakdownJSON: newBreakdownJSON(r.Dimension, y.Breakdown),
			Services:      servicesJSON(y.Services),
			Months:        months,
		}
	}
	return out
}

func countsJSON(c core.AllowanceCounts) allowanceCountsJSON {
	return allowanceCountsJSON{
		Total:                  c.Total,
		TotalHigh:              c.TotalHigh,
		TotalRequestedHigh:     c.TotalRequestedHigh,
		TotalHighRequestedHigh: c.TotalHighRequestedHigh,
		TotalHours:             hoursJSON(c.TotalHours),
	}
}

func newAllowanceReportJSON(r core.AttendanceAllowanceReport) allowanceReportJSON {
	out := allowanceReportJSON{
		StartYear: r.StartYear,
		EndYear:   r.EndYear,
		Years:     make([]allowanceYearJSON, len(r.Years)),
	}
	for i, y := range r.Years {
		months := make([]allowanceMonthJSON, len(y.Months))
		for j, m := range y.Months {
			months[j] = allowanceMonthJSON{Month: m.Month, allowanceCountsJSON: countsJSON(m.AllowanceCounts)}
		}
		out.Years[i] = allowanceYearJSON{Year: y.Year, allowanceCountsJSON: countsJSON(y.AllowanceCounts), Months: months}
	}
	return out
}

func newSnapshotJSON(s core.Snapshot) snapshotJSON {
	return snapshotJSON{
		Kind:          string(s.Kind),
		Breakdown:     string(s.Dimension),
		AsOf:          s.AsOf.String(),
		Active:        s.Active,
		WeeklyHours:   hoursJSON(s.WeeklyHours),
		breakdownJSON: newBreakdownJSON(s.Dimension, s.Breakdown),
		Services:      servicesJSON(s.Services),
	}
}

func newDashboardJSON(d services.Dashboard) dashboardJSON {
	return dashboardJSON{
		AsOf:                        d.AsOf.String(),
		ActiveRequests:              d.ActiveRequests,
		ActivePackages:              d.ActivePackages,
		RequestWeeklyHours:          hoursJSON(d.RequestWeeklyHours),
		PackageWeeklyHours:          hoursJSON(d.PackageWeeklyHours),
		AllowanceInReceipt:          d.AllowanceInReceipt,
		AllowanceConfirmedThisMonth: d.AllowanceConfirmedThisMonth,
	}
}

func newClassificationJSON(postcode string, c core.Classification) classificationJSON {
	out := classificationJSON{
		Postcode:       core.NormalizePostcode(postcode),
		Matched:        c.Matched,
		IncomeDeprived: c.IncomeDeprived,
		HealthDeprived: c.HealthDeprived,
		Category:       string(c.Category()),
	}
	if c.NeedsVerification() {
		out.Warning = unmatchedWarning
	}
	return out
}

func newImportJobJSON(m *amqp.ImportMessage) importJobJSON {
	return importJobJSON{
		JobID:       m.JobID.String(),
		Path:        m.Path,
		CreateTable: m.CreateTable,
		RequestedAt: m.RequestedAt.UTC().Format(time.RFC3339),
	}
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
