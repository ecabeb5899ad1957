package cors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"Corsgo/internal/config"
	"Corsgo/internal/httpclient"
	"Corsgo/internal/logger"
	"Corsgo/internal/scanner"

	"golang.org/x/sync/errgroup"
)

// ScannerName is reported on every finding of this package.
const ScannerName = "CORS Origin Scanner"

// KBScope is the knowledge-base scope findings are recorded under.
const KBScope = "cors_origin"

// Transport sends probe requests. *httpclient.Client implements it.
type Transport interface {
	Send(ctx context.Context, req *http.Request) (*httpclient.Response, error)
}

// KnowledgeBase receives every emitted finding exactly once.
type KnowledgeBase interface {
	Record(scope, kind string, f scanner.Finding)
}

// OutputSink surfaces the description of every emitted finding. *logger.Logger implements it.
type OutputSink interface {
	Report(message string)
}

// TransportError is a failed probe for one origin.
type TransportError struct {
	URL    string
	Origin string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("probing %s with Origin %q: %v", e.URL, e.Origin, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AnalyzerOptions configures an Analyzer. Nil sinks and state get no-op or fresh defaults.
type AnalyzerOptions struct {
	Origin           string
	ProbeConcurrency int
	State            *RuleCounterState
	KB               KnowledgeBase
	Output           OutputSink
	Logger           *logger.Logger
}

// Analyzer runs probes against a URL and turns the responses into throttled findings.
type Analyzer struct {
	origin      string
	concurrency int
	state       *RuleCounterState
	kb          KnowledgeBase
	out         OutputSink
	log         *logger.Logger
	rules       []Rule
}

type nopSink struct{}

func (nopSink) Record(string, string, scanner.Finding) {}
func (nopSink) Report(string)                          {}

// NewAnalyzer builds an Analyzer.
func NewAnalyzer(opts AnalyzerOptions) *Analyzer {
	a := &Analyzer{
		origin:      opts.Origin,
		concurrency: opts.ProbeConcurrency,
		state:       opts.State,
		kb:          opts.KB,
		out:         opts.Output,
		log:         opts.Logger,
		rules:       Rules,
	}
	if a.origin == "" {
		a.origin = config.DefaultOriginHeaderValue
	}
	if a.concurrency <= 0 {
		a.concurrency = 1
	}
	if a.state == nil {
		a.state = NewRuleCounterState()
	}
	if a.kb == nil {
		a.kb = nopSink{}
	}
	if a.out == nil {
		a.out = nopSink{}
	}
	if a.log == nil {
		a.log = logger.Discard()
	}
	return a
}

// State returns the session counters shared by every Analyze call.
func (a *Analyzer) State() *RuleCounterState {
	return a.state
}

// Analyze probes url once per origin, runs every rule on each response and returns the
// findings that survive throttling, in rule order. Probes for different origins run
// concurrently. Each rule kind feeds the throttle at most once per call: when several
// origins trigger the same rule, the most severe finding is kept, ties going to the
// earliest origin. A failed probe is logged and skipped; the failures are returned joined
// alongside the findings of the other origins.
func (a *Analyzer) Analyze(ctx context.Context, url string, origins []string, t Transport) ([]scanner.Finding, error) {
	if len(origins) == 0 {
		origins = []string{a.origin}
	}

	// raw[i][k] holds what rule k found on the response to origins[i].
	raw := make([][][]scanner.Finding, len(origins))
	errs := make([]error, len(origins))

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, origin := range origins {
		g.Go(func() error {
			raw[i], errs[i] = a.evaluate(ctx, BuildProbe(url, origin), t)
			return nil
		})
	}
	_ = g.Wait()

	var findings []scanner.Finding
	for k, rule := range a.rules {
		merged := mergeRaw(raw, k)
		for _, f := range a.state.Throttle(rule.Kind, merged, rule.SummarySeverity, rule.SummaryLabel) {
			a.kb.Record(KBScope, f.Kind, f)
			a.out.Report(f.Description)
			findings = append(findings, f)
		}
	}
	return findings, errors.Join(errs...)
}

// mergeRaw picks the representative finding of rule k across origins.
func mergeRaw(raw [][][]scanner.Finding, k int) []scanner.Finding {
	var best *scanner.Finding
	for _, perRule := range raw {
		if perRule == nil {
			continue
		}
		for i := range perRule[k] {
			if best == nil || perRule[k][i].Severity > best.Severity {
				best = &perRule[k][i]
			}
		}
	}
	if best == nil {
		return nil
	}
	return []scanner.Finding{*best}
}

// evaluate sends one probe and returns the raw findings of every rule, indexed like a.rules.
func (a *Analyzer) evaluate(ctx context.Context, p Probe, t Transport) ([][]scanner.Finding, error) {
	req, err := p.NewRequest(ctx)
	var resp *httpclient.Response
	if err == nil {
		resp, err = t.Send(ctx, req)
	}
	if err != nil {
		terr := &TransportError{URL: p.URL, Origin: p.Origin, Err: err}
		a.log.Warn("CORS: %v", terr)
		return nil, terr
	}

	headers := Extract(resp)
	a.log.Debug("CORS: %s (Origin %q) -> ACAO=%q ACAC=%q ACAM=%q", p.URL, p.Origin,
		valueOrEmpty(headers.AllowOrigin), valueOrEmpty(headers.AllowCredentials), valueOrEmpty(headers.AllowMethods))

	perRule := make([][]scanner.Finding, len(a.rules))
	for k, rule := range a.rules {
		perRule[k] = rule.Check(p, headers, resp)
	}
	return perRule, nil
}

// CapabilityFunc decides whether a URL speaks CORS at all.
type CapabilityFunc func(ctx context.Context, url string, t Transport) (bool, error)

// ProvidesCORSFeatures reports whether url answers with CORS headers. It first sends a plain
// GET and looks for Access-Control-Allow-Origin; failing that it sends a GET with an Origin
// header and accepts any Access-Control-* response header.
func ProvidesCORSFeatures(ctx context.Context, url string, t Transport) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	resp, err := t.Send(ctx, req)
	if err != nil {
		return false, err
	}
	if Extract(resp).AllowOrigin != nil {
		return true, nil
	}

	req, err = BuildProbe(url, config.DefaultOriginHeaderValue).NewRequest(ctx)
	if err != nil {
		return false, err
	}
	resp, err = t.Send(ctx, req)
	if err != nil {
		return false, err
	}
	h := Extract(resp)
	return h.AllowOrigin != nil || h.AllowCredentials != nil || h.AllowMethods != nil, nil
}

// Scanner adapts an Analyzer to the scanner.Scanner interface. Each URL is analyzed at most
// once per Scanner.
type Scanner struct {
	mu          sync.Mutex
	urlsScanned map[string]bool
	analyzer    *Analyzer
	origins     []string
	capable     CapabilityFunc
}

// NewScanner wraps analyzer. origins is the default probe list, used when the run options
// carry none; capable may be nil to use ProvidesCORSFeatures.
func NewScanner(analyzer *Analyzer, origins []string, capable CapabilityFunc) *Scanner {
	if capable == nil {
		capable = ProvidesCORSFeatures
	}
	return &Scanner{
		urlsScanned: make(map[string]bool),
		analyzer:    analyzer,
		origins:     origins,
		capable:     capable,
	}
}

func (s *Scanner) Name() string {
	return ScannerName
}

func (s *Scanner) Scan(ctx context.Context, target scanner.Target, client *httpclient.Client, log *logger.Logger, opts scanner.ScannerOptions) ([]scanner.Finding, error) {
	return s.scan(ctx, target, client, log, opts)
}

func (s *Scanner) scan(ctx context.Context, target scanner.Target, t Transport, log *logger.Logger, opts scanner.ScannerOptions) ([]scanner.Finding, error) {
	targetURL := target.URL

	s.mu.Lock()
	if s.urlsScanned[targetURL] {
		s.mu.Unlock()
		return nil, nil
	}
	s.urlsScanned[targetURL] = true
	s.mu.Unlock()

	ok, err := s.capable(ctx, targetURL, t)
	if err != nil {
		return nil, fmt.Errorf("checking CORS support of %s: %w", targetURL, err)
	}
	if !ok {
		log.Debug("CORS: %s does not provide CORS features, skipping", targetURL)
		return nil, nil
	}

	origins := opts.Origins
	if len(origins) == 0 {
		origins = s.origins
	}
	log.Debug("Running CORS check on: %s with %d origin(s)", targetURL, max(len(origins), 1))
	return s.analyzer.Analyze(ctx, targetURL, origins, t)
}
