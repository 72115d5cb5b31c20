package core

const (
	DimensionLocality    Dimension = "locality"
	DimensionDeprivation Dimension = "deprivation"
)

// Dimension selects the breakdown used under each year and month.
type Dimension string

func (d Dimension) Valid() bool {
	return d == DimensionLocality || d == DimensionDeprivation
}

// ServiceHours is the hours total for one service tag.
type ServiceHours struct {
	Name       string
	TotalHours Hours
}

// BreakdownNode is one dimension value (a locality or deprivation category)
// with its per-service totals.
type BreakdownNode struct {
	Name       string
	TotalHours Hours
	Services   []ServiceHours
}

// MonthReport holds the totals for one calendar month.
type MonthReport struct {
	Month      int // 1-12
	TotalHours Hours
	Breakdown  []BreakdownNode
	Services   []ServiceHours
}

// YearReport holds the totals for one year and its twelve months.
type YearReport struct {
	Year       int
	TotalHours Hours
	Breakdown  []BreakdownNode
	Services   []ServiceHours
	Months     []MonthReport
}

// Report is the Year→Month→Dimension→Service hours tree.
type Report struct {
	Kind      CommitmentKind
	Dimension Dimension
	StartYear int
	EndYear   int
	Years     []YearReport
}

// AllowanceCounts is the shared shape of attendance allowance years and months.
type AllowanceCounts struct {
	Total                  int
	TotalHigh              int
	TotalRequestedHigh     int
	TotalHighRequestedHigh int
	TotalHours             Hours
}

type AllowanceMonth struct {
	Month int
	AllowanceCounts
}

type AllowanceYear struct {
	Year int
	AllowanceCounts
	Months []AllowanceMonth
}

// AttendanceAllowanceReport counts confirmation events per year and month.
type AttendanceAllowanceReport struct {
	StartYear int
	EndYear   int
	Years     []AllowanceYear
}

// Snapshot is the live cross-section of active commitments, shaped like a
// single year node without months. Hours are current weekly hours.
type Snapshot struct {
	Kind        CommitmentKind
	Dimension   Dimension
	AsOf        Date
	Active      int
	WeeklyHours Hours
	Breakdown   []BreakdownNode
	Services    []ServiceHours
}

// Node returns the breakdown node with the given name, if present.
func (y YearReport) Node(name string) (BreakdownNode, bool) {
	return findNode(y.Breakdown, name)
}

// Service returns the service total with the given name, if present.
func (y YearReport) Service(name string) (ServiceHours, bool) {
	return findService(y.Services, name)
}

func (m MonthReport) Node(name string) (BreakdownNode, bool) {
	return findNode(m.Breakdown, name)
}

func (m MonthReport) Service(name string) (ServiceHours, bool) {
	return findService(m.Services, name)
}

func (n BreakdownNode) Service(name string) (ServiceHours, bool) {
	return findService(n.Services, name)
}

// Year returns the year node, if within the report window.
func (r Report) Year(year int) (YearReport, bool) {
	for _, y := range r.Years {
		if y.Year == year {
			return y, true
		}
	}
	return YearReport{}, false
}

func (r AttendanceAllowanceReport) Year(year int) (AllowanceYear, bool) {
	for _, y := range r.Years {
		if y.Year == year {
			return y, true
		}
	}
	return AllowanceYear{}, false
}

func findNode(nodes []BreakdownNode, name string) (BreakdownNode, bool) {
	for _, n := range nodes {
		if n.Name == name {
			return n, true
		}
	}
	return BreakdownNode{}, false
}

func findService(services []ServiceHours, name string) (ServiceHours, bool) {
	for _, s := range services {
		if s.Name == name {
			return s, true
		}
	}
	return ServiceHours{}, false
}
