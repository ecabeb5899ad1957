package cors

import (
	"fmt"
	"sort"
	"strings"

	"Corsgo/internal/httpclient"
	"Corsgo/internal/scanner"
)

// RuleKind identifies the detector that produced a finding. It is the throttling key.
type RuleKind int

const (
	KindWildcardAllow RuleKind = iota
	KindOriginEcho
	KindWildcardCredentials
	KindAllowMethods

	numRuleKinds
)

var ruleKindNames = [numRuleKinds]string{
	KindWildcardAllow:       "wildcard_allow",
	KindOriginEcho:          "origin_echo",
	KindWildcardCredentials: "wildcard_credentials",
	KindAllowMethods:        "allow_methods",
}

func (k RuleKind) String() string {
	if k < 0 || k >= numRuleKinds {
		return fmt.Sprintf("RuleKind(%d)", int(k))
	}
	return ruleKindNames[k]
}

// RuleKinds lists every rule kind in evaluation order.
func RuleKinds() []RuleKind {
	kinds := make([]RuleKind, 0, numRuleKinds)
	for k := RuleKind(0); k < numRuleKinds; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// CheckFunc inspects one probe response and returns the raw findings, usually zero or one.
type CheckFunc func(p Probe, h ResponseHeaders, resp *httpclient.Response) []scanner.Finding

// Rule is a detector plus the severity and label used when its findings are collapsed.
type Rule struct {
	Kind            RuleKind
	SummarySeverity scanner.Severity
	SummaryLabel    string
	Check           CheckFunc
}

// Rules is the fixed rule set. Rules share no state and can run in any order.
var Rules = []Rule{
	{
		Kind: KindWildcardAllow,
		// The individual finding is LOW; collapsed reports are MEDIUM.
		SummarySeverity: scanner.SeverityMedium,
		SummaryLabel:    "universal allow-origin",
		Check:           checkWildcardAllow,
	},
	{
		Kind:            KindOriginEcho,
		SummarySeverity: scanner.SeverityHigh,
		SummaryLabel:    "origin echoed in allow-origin",
		Check:           checkOriginEcho,
	},
	{
		Kind:            KindWildcardCredentials,
		SummarySeverity: scanner.SeverityInfo,
		SummaryLabel:    "withCredentials CORS implementation error",
		Check:           checkWildcardCredentials,
	},
	{
		Kind:            KindAllowMethods,
		SummarySeverity: scanner.SeverityLow,
		SummaryLabel:    "sensitive and uncommon methods",
		Check:           checkAllowMethods,
	},
}

var (
	sensitiveMethods = []string{"PUT", "DELETE"}
	commonMethods    = map[string]bool{"POST": true, "GET": true, "OPTIONS": true, "PUT": true, "DELETE": true}
)

const remediationOrigin = "Validate the Origin header against an explicit allow-list of trusted origins. " +
	"Never reflect arbitrary origins and avoid 'Access-Control-Allow-Credentials: true' with dynamic or wildcard origins."

func newFinding(kind RuleKind, p Probe, h ResponseHeaders, resp *httpclient.Response, sev scanner.Severity, name, desc string) scanner.Finding {
	f := scanner.Finding{
		URL:         p.URL,
		Severity:    sev,
		Name:        name,
		Description: desc,
		Kind:        kind.String(),
		Evidence: fmt.Sprintf("Origin: %s; %s: %s; %s: %s; %s: %s", p.Origin,
			HeaderAllowOrigin, valueOrEmpty(h.AllowOrigin),
			HeaderAllowCredentials, valueOrEmpty(h.AllowCredentials),
			HeaderAllowMethods, valueOrEmpty(h.AllowMethods)),
		Remediation: remediationOrigin,
		ScannerName: ScannerName,
	}
	if resp != nil {
		f.ResponseID = resp.ID
	}
	return f
}

func checkWildcardAllow(p Probe, h ResponseHeaders, resp *httpclient.Response) []scanner.Finding {
	if !h.wildcardOrigin() {
		return nil
	}
	desc := fmt.Sprintf("The remote Web application, specifically %q, returned an %s header"+
		" with the value set to \"*\" which is insecure and leaves the application open to"+
		" Cross-domain attacks.", p.URL, HeaderAllowOrigin)
	return []scanner.Finding{newFinding(KindWildcardAllow, p, h, resp, scanner.SeverityLow,
		`Access-Control-Allow-Origin set to "*"`, desc)}
}

// checkOriginEcho matches on substring so reflections with extra text around the origin
// are caught too.
func checkOriginEcho(p Probe, h ResponseHeaders, resp *httpclient.Response) []scanner.Finding {
	if h.AllowOrigin == nil {
		return nil
	}
	if !strings.Contains(strings.ToLower(*h.AllowOrigin), p.Origin) {
		return nil
	}

	if h.credentialsAllowed() {
		desc := fmt.Sprintf("The remote Web application, specifically %q, returned an %s header"+
			" with the value set to the value sent in the request's Origin header and a %s header"+
			" with the value set to \"true\", which is insecure and leaves the application open to"+
			" Cross-domain attacks which can affect logged-in users.",
			p.URL, HeaderAllowOrigin, HeaderAllowCredentials)
		return []scanner.Finding{newFinding(KindOriginEcho, p, h, resp, scanner.SeverityHigh,
			"Insecure Access-Control-Allow-Origin with credentials", desc)}
	}

	desc := fmt.Sprintf("The remote Web application, specifically %q, returned an %s header"+
		" with the value set to the value sent in the request's Origin header, which is insecure"+
		" and leaves the application open to Cross-domain attacks.", p.URL, HeaderAllowOrigin)
	return []scanner.Finding{newFinding(KindOriginEcho, p, h, resp, scanner.SeverityLow,
		"Insecure Access-Control-Allow-Origin", desc)}
}

// checkWildcardCredentials flags "*" together with credentials. Browsers reject the
// combination, so it is an implementation defect rather than an exposure.
func checkWildcardCredentials(p Probe, h ResponseHeaders, resp *httpclient.Response) []scanner.Finding {
	if !h.wildcardOrigin() || !h.credentialsAllowed() {
		return nil
	}
	desc := fmt.Sprintf("The remote Web application, specifically %q, returned an %s header"+
		" with the value set to \"*\" and an %s header with the value set to \"true\" which"+
		" according to Mozilla's documentation is invalid. This implementation error might"+
		" affect the application behavior.", p.URL, HeaderAllowOrigin, HeaderAllowCredentials)
	return []scanner.Finding{newFinding(KindWildcardCredentials, p, h, resp, scanner.SeverityInfo,
		"Incorrect withCredentials implementation", desc)}
}

// classifyMethods splits an Allow-Methods value into the sensitive and the uncommon methods
// it enables. Both results are sorted.
func classifyMethods(allowMethods string) (sensitive, strange []string) {
	allowed := map[string]bool{}
	for _, m := range strings.Split(allowMethods, ",") {
		m = strings.ToUpper(strings.TrimSpace(m))
		if m == "" {
			continue
		}
		allowed[m] = true
	}

	for _, m := range sensitiveMethods {
		if allowed[m] {
			sensitive = append(sensitive, m)
		}
	}
	for m := range allowed {
		if !commonMethods[m] {
			strange = append(strange, m)
		}
	}
	sort.Strings(sensitive)
	sort.Strings(strange)
	return sensitive, strange
}

func checkAllowMethods(p Probe, h ResponseHeaders, resp *httpclient.Response) []scanner.Finding {
	if h.AllowMethods == nil {
		return nil
	}
	sensitive, strange := classifyMethods(*h.AllowMethods)
	if len(sensitive) == 0 && len(strange) == 0 {
		return nil
	}

	msg := fmt.Sprintf("The remote Web application, specifically %q, returned an %s header"+
		" with the value set to %q which is insecure", p.URL, HeaderAllowMethods, *h.AllowMethods)

	var name string
	switch {
	case len(sensitive) > 0 && len(strange) > 0:
		name = "Sensitive and strange CORS methods enabled"
		msg += fmt.Sprintf(" since it allows the following sensitive HTTP methods: %s and the"+
			" following uncommon HTTP methods: %s.", strings.Join(sensitive, ", "), strings.Join(strange, ", "))
	case len(sensitive) > 0:
		name = "Sensitive CORS methods enabled"
		msg += fmt.Sprintf(" since it allows the following sensitive HTTP methods: %s.", strings.Join(sensitive, ", "))
	default:
		name = "Uncommon CORS methods enabled"
		msg += fmt.Sprintf(" since it allows the following uncommon HTTP methods: %s.", strings.Join(strange, ", "))
	}

	f := newFinding(KindAllowMethods, p, h, resp, scanner.SeverityLow, name, msg)
	f.Remediation = "Only list the HTTP methods cross-origin callers actually need in " + HeaderAllowMethods + "."
	return []scanner.Finding{f}
}
