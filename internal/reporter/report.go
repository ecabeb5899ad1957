package reporter

import (
	"sort"
	"time"

	"Corsgo/internal/scanner"
)

// Report is the main data structure for scan results.
type Report struct {
	ScanSummary     ScanSummary       `json:"scan_summary"`
	Vulnerabilities []scanner.Finding `json:"vulnerabilities"`
}

// ScanSummary contains metadata and a summary of the scan.
type ScanSummary struct {
	Targets         []string       `json:"targets"`
	ScanStartTime   string         `json:"scan_start_time"`
	ScanEndTime     string         `json:"scan_end_time"`
	TotalDuration   string         `json:"total_duration"`
	ScannersRun     []string       `json:"scanners_run"`
	OriginsTested   []string       `json:"origins_tested"`
	TotalVulnsFound int            `json:"total_vulnerabilities_found"`
	BySeverity      map[string]int `json:"by_severity"`
}

// NewReport creates a new report instance. Slices start empty so they are never null in JSON.
func NewReport(targets []string, startTime time.Time) *Report {
	return &Report{
		ScanSummary: ScanSummary{
			Targets:       targets,
			ScanStartTime: startTime.Format(time.RFC3339),
			BySeverity:    map[string]int{},
		},
		Vulnerabilities: make([]scanner.Finding, 0),
	}
}

// Finalize completes the report with the results of the run. Findings are ordered by
// descending severity, keeping discovery order within a severity.
func (r *Report) Finalize(endTime, startTime time.Time, vulns []scanner.Finding, scanners, origins []string) {
	r.ScanSummary.ScanEndTime = endTime.Format(time.RFC3339)
	r.ScanSummary.TotalDuration = endTime.Sub(startTime).Round(time.Second).String()
	r.ScanSummary.ScannersRun = scanners
	r.ScanSummary.OriginsTested = origins

	sorted := make([]scanner.Finding, len(vulns))
	copy(sorted, vulns)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Severity > sorted[j].Severity })
	r.Vulnerabilities = sorted
	r.ScanSummary.TotalVulnsFound = len(sorted)

	for _, v := range sorted {
		r.ScanSummary.BySeverity[v.Severity.String()]++
	}
}
