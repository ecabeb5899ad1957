package cors

import (
	"fmt"
	"sync"

	"Corsgo/internal/scanner"
)

// MaxRepeatedReports is how many findings of one rule kind are reported individually before
// they are collapsed into a single summary.
const MaxRepeatedReports = 3

// SummaryName is the name of collapsed findings.
const SummaryName = "Multiple CORS misconfigurations"

// RuleCounterState tracks, for one scan session, how many findings each rule kind produced
// and which kinds were already collapsed. At most one summary is emitted per kind and
// nothing is emitted for a kind after its summary.
type RuleCounterState struct {
	mu         sync.Mutex
	counts     [numRuleKinds]int
	summarized [numRuleKinds]bool
}

// NewRuleCounterState returns an empty session state.
func NewRuleCounterState() *RuleCounterState {
	return &RuleCounterState{}
}

// Throttle decides what to report for the raw findings of one rule evaluation. The first
// MaxRepeatedReports non-empty calls per kind get raw back; the next one gets a single
// summary finding; every later call gets nothing. Empty input leaves the state untouched.
func (s *RuleCounterState) Throttle(kind RuleKind, raw []scanner.Finding, summarySeverity scanner.Severity, label string) []scanner.Finding {
	if len(raw) == 0 {
		return nil
	}
	if kind < 0 || kind >= numRuleKinds {
		panic(fmt.Sprintf("cors: unknown rule kind %d", int(kind)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts[kind]++
	if s.counts[kind] <= MaxRepeatedReports {
		return raw
	}
	if s.summarized[kind] {
		return nil
	}
	s.summarized[kind] = true

	first := raw[0]
	return []scanner.Finding{{
		URL:        first.URL,
		ResponseID: first.ResponseID,
		Severity:   summarySeverity,
		Name:       SummaryName,
		Description: fmt.Sprintf("More than %d URLs in the Web application under analysis"+
			" returned a CORS response that triggered the %s detection. Given that this seems"+
			" to be an issue that affects all of the site URLs, the scanner will not report any"+
			" other specific vulnerabilities of this type.", MaxRepeatedReports, label),
		Kind:        kind.String(),
		Evidence:    first.Evidence,
		Remediation: first.Remediation,
		ScannerName: first.ScannerName,
	}}
}

// Count returns how many non-empty evaluations were seen for kind.
func (s *RuleCounterState) Count(kind RuleKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[kind]
}

// Summarized reports whether the summary for kind was already emitted.
func (s *RuleCounterState) Summarized(kind RuleKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summarized[kind]
}
