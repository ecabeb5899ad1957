package cors

import (
	"context"
	"net/http"
	"testing"

	"Corsgo/internal/httpclient"
	"Corsgo/internal/scanner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func headers(origin, creds, methods *string) ResponseHeaders {
	return ResponseHeaders{AllowOrigin: origin, AllowCredentials: creds, AllowMethods: methods}
}

var testResp = &httpclient.Response{ID: "resp-1", StatusCode: http.StatusOK}

func TestBuildProbe(t *testing.T) {
	p := BuildProbe("http://x.test/a?b=1", " weird origin ")
	assert.Equal(t, Probe{URL: "http://x.test/a?b=1", Origin: " weird origin "}, p)

	req, err := p.NewRequest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, " weird origin ", req.Header.Get("Origin"))

	_, err = BuildProbe("http://bad host/", "x").NewRequest(context.Background())
	assert.Error(t, err)
}

func TestExtract(t *testing.T) {
	resp := &httpclient.Response{Header: http.Header{
		"Access-Control-Allow-Origin":      {"http://evil.test"},
		"access-control-allow-credentials": {"TRUE"},
	}}
	resp.Header.Add("Access-Control-Allow-Methods", "GET")
	resp.Header.Add("Access-Control-Allow-Methods", "PUT")

	h := Extract(resp)
	require.NotNil(t, h.AllowOrigin)
	assert.Equal(t, "http://evil.test", *h.AllowOrigin)
	require.NotNil(t, h.AllowCredentials, "non canonical keys are still found")
	assert.Equal(t, "TRUE", *h.AllowCredentials)
	require.NotNil(t, h.AllowMethods)
	assert.Equal(t, "GET, PUT", *h.AllowMethods)

	empty := Extract(&httpclient.Response{Header: http.Header{}})
	assert.Nil(t, empty.AllowOrigin)
	assert.Nil(t, empty.AllowCredentials)
	assert.Nil(t, empty.AllowMethods)
	assert.Equal(t, ResponseHeaders{}, Extract(nil))
}

func TestExtract_AllowOriginUsesFirstLine(t *testing.T) {
	resp := &httpclient.Response{Header: http.Header{}}
	resp.Header.Add("Access-Control-Allow-Origin", "*")
	resp.Header.Add("Access-Control-Allow-Origin", "*")
	resp.Header.Add("Access-Control-Allow-Credentials", "false")
	resp.Header.Add("Access-Control-Allow-Credentials", "true")

	h := Extract(resp)
	require.NotNil(t, h.AllowOrigin)
	assert.Equal(t, "*", *h.AllowOrigin)
	assert.Equal(t, "false, true", *h.AllowCredentials)

	p := BuildProbe("http://x.test/a", "http://evil.test")
	assert.Len(t, checkWildcardAllow(p, h, testResp), 1)
	assert.Len(t, checkWildcardCredentials(p, h, testResp), 1)
}

func TestCheckWildcardAllow(t *testing.T) {
	p := BuildProbe("http://x.test/a", "http://evil.test")
	tests := []struct {
		name  string
		h     ResponseHeaders
		fires bool
	}{
		{"Star", headers(strPtr("*"), nil, nil), true},
		{"Star with credentials and methods", headers(strPtr("*"), strPtr("true"), strPtr("TRACE")), true},
		{"Star with spaces is not exact", headers(strPtr(" *"), nil, nil), false},
		{"Concrete origin", headers(strPtr("http://evil.test"), nil, nil), false},
		{"Absent", headers(nil, strPtr("true"), nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := checkWildcardAllow(p, tt.h, testResp)
			if !tt.fires {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, scanner.SeverityLow, got[0].Severity)
			assert.Equal(t, `Access-Control-Allow-Origin set to "*"`, got[0].Name)
			assert.Equal(t, "wildcard_allow", got[0].Kind)
			assert.Equal(t, "resp-1", got[0].ResponseID)
			assert.Contains(t, got[0].Description, "http://x.test/a")
			assert.Contains(t, got[0].Description, HeaderAllowOrigin)
		})
	}
}

func TestCheckOriginEcho(t *testing.T) {
	tests := []struct {
		name     string
		origin   string
		h        ResponseHeaders
		fires    bool
		severity scanner.Severity
		title    string
	}{
		{
			name:     "Exact reflection",
			origin:   "http://evil.test",
			h:        headers(strPtr("http://evil.test"), nil, nil),
			fires:    true,
			severity: scanner.SeverityLow,
			title:    "Insecure Access-Control-Allow-Origin",
		},
		{
			name:     "Reflection with credentials",
			origin:   "http://evil.test",
			h:        headers(strPtr("http://evil.test"), strPtr("true"), nil),
			fires:    true,
			severity: scanner.SeverityHigh,
			title:    "Insecure Access-Control-Allow-Origin with credentials",
		},
		{
			name:     "Credentials match ignores case and surrounding text",
			origin:   "http://evil.test",
			h:        headers(strPtr("http://evil.test"), strPtr(" TRUE;"), nil),
			fires:    true,
			severity: scanner.SeverityHigh,
			title:    "Insecure Access-Control-Allow-Origin with credentials",
		},
		{
			name:     "Header lower-cased before matching",
			origin:   "http://evil.test",
			h:        headers(strPtr("HTTP://EVIL.TEST"), strPtr("false"), nil),
			fires:    true,
			severity: scanner.SeverityLow,
			title:    "Insecure Access-Control-Allow-Origin",
		},
		{
			name:     "Substring reflection with extra text",
			origin:   "http://evil.test",
			h:        headers(strPtr("http://evil.test.trusted.example"), nil, nil),
			fires:    true,
			severity: scanner.SeverityLow,
			title:    "Insecure Access-Control-Allow-Origin",
		},
		{
			name:   "Upper-case origin is not folded",
			origin: "http://EVIL.test",
			h:      headers(strPtr("http://EVIL.test"), nil, nil),
			fires:  false,
		},
		{
			name:   "Other origin",
			origin: "http://evil.test",
			h:      headers(strPtr("http://trusted.example"), strPtr("true"), nil),
			fires:  false,
		},
		{
			name:   "Absent",
			origin: "http://evil.test",
			h:      headers(nil, strPtr("true"), nil),
			fires:  false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := checkOriginEcho(BuildProbe("http://x.test/a", tt.origin), tt.h, testResp)
			if !tt.fires {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, tt.severity, got[0].Severity)
			assert.Equal(t, tt.title, got[0].Name)
			assert.Equal(t, "origin_echo", got[0].Kind)
			assert.Contains(t, got[0].Description, "http://x.test/a")
			assert.Contains(t, got[0].Description, HeaderAllowOrigin)
			if tt.severity == scanner.SeverityHigh {
				assert.Contains(t, got[0].Description, HeaderAllowCredentials)
			}
		})
	}
}

func TestCheckWildcardCredentials(t *testing.T) {
	p := BuildProbe("http://x.test/a", "http://evil.test")
	tests := []struct {
		name  string
		h     ResponseHeaders
		fires bool
	}{
		{"Star and true", headers(strPtr("*"), strPtr("true"), nil), true},
		{"Star and True", headers(strPtr("*"), strPtr("True"), nil), true},
		{"Star without credentials", headers(strPtr("*"), nil, nil), false},
		{"Star and false", headers(strPtr("*"), strPtr("false"), nil), false},
		{"Origin and true", headers(strPtr("http://evil.test"), strPtr("true"), nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := checkWildcardCredentials(p, tt.h, testResp)
			if !tt.fires {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, scanner.SeverityInfo, got[0].Severity)
			assert.Equal(t, "Incorrect withCredentials implementation", got[0].Name)
			assert.Contains(t, got[0].Description, HeaderAllowOrigin)
			assert.Contains(t, got[0].Description, HeaderAllowCredentials)

			// Fires on top of the wildcard rule, never instead of it.
			assert.Len(t, checkWildcardAllow(p, tt.h, testResp), 1)
		})
	}
}

func TestClassifyMethods(t *testing.T) {
	sensitive, strange := classifyMethods("post, Get, TRACE")
	assert.Empty(t, sensitive)
	assert.Equal(t, []string{"TRACE"}, strange)

	sensitive, strange = classifyMethods(" delete,PUT,put , GET,")
	assert.Equal(t, []string{"DELETE", "PUT"}, sensitive)
	assert.Empty(t, strange)
}

func TestCheckAllowMethods(t *testing.T) {
	p := BuildProbe("http://x.test/a", "http://evil.test")
	tests := []struct {
		name     string
		methods  *string
		wantName string
		contains []string
	}{
		{
			name:     "Strange only",
			methods:  strPtr("post, Get, TRACE"),
			wantName: "Uncommon CORS methods enabled",
			contains: []string{"uncommon HTTP methods: TRACE."},
		},
		{
			name:     "Sensitive only",
			methods:  strPtr("GET, PUT, DELETE"),
			wantName: "Sensitive CORS methods enabled",
			contains: []string{"sensitive HTTP methods: DELETE, PUT."},
		},
		{
			name:     "Both",
			methods:  strPtr("put, PROPFIND, trace"),
			wantName: "Sensitive and strange CORS methods enabled",
			contains: []string{"sensitive HTTP methods: PUT", "uncommon HTTP methods: PROPFIND, TRACE."},
		},
		{
			name:    "Common only",
			methods: strPtr("GET, POST, OPTIONS"),
		},
		{
			name: "Absent",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := checkAllowMethods(p, headers(nil, nil, tt.methods), testResp)
			if tt.wantName == "" {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, scanner.SeverityLow, got[0].Severity)
			assert.Equal(t, tt.wantName, got[0].Name)
			assert.Contains(t, got[0].Description, "http://x.test/a")
			assert.Contains(t, got[0].Description, HeaderAllowMethods)
			for _, c := range tt.contains {
				assert.Contains(t, got[0].Description, c)
			}
		})
	}
}

func TestRules_CoverEveryKind(t *testing.T) {
	require.Len(t, Rules, len(RuleKinds()))
	for i, r := range Rules {
		assert.Equal(t, RuleKind(i), r.Kind)
		assert.NotEmpty(t, r.SummaryLabel)
		assert.NotNil(t, r.Check)
	}
	assert.Equal(t, scanner.SeverityMedium, Rules[KindWildcardAllow].SummarySeverity)
	assert.Equal(t, "RuleKind(9)", RuleKind(9).String())
}
