package cors

import (
	"context"
	"net/http"
	"strings"

	"Corsgo/internal/httpclient"
)

// Header names read from probe responses.
const (
	HeaderOrigin           = "Origin"
	HeaderAllowOrigin      = "Access-Control-Allow-Origin"
	HeaderAllowCredentials = "Access-Control-Allow-Credentials"
	HeaderAllowMethods     = "Access-Control-Allow-Methods"
)

// Probe is one forged request: a target URL and the Origin value sent to it.
type Probe struct {
	URL    string
	Origin string
}

// BuildProbe pairs url with origin. The origin is used verbatim.
func BuildProbe(url, origin string) Probe {
	return Probe{URL: url, Origin: origin}
}

// NewRequest renders the probe as a GET request carrying the Origin header.
func (p Probe) NewRequest(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return nil, err
	}
	// Set canonicalizes the key only, the value goes out untouched.
	req.Header.Set(HeaderOrigin, p.Origin)
	return req, nil
}

// ResponseHeaders are the CORS response headers of one probe. A nil field means the header
// was absent.
type ResponseHeaders struct {
	AllowOrigin      *string
	AllowCredentials *string
	AllowMethods     *string
}

// Extract pulls the CORS headers out of resp. Header names match case-insensitively.
// Allow-Origin is single-valued, so only its first line counts; repeated lines of the
// other headers are joined with ", ".
func Extract(resp *httpclient.Response) ResponseHeaders {
	if resp == nil {
		return ResponseHeaders{}
	}
	return ResponseHeaders{
		AllowOrigin:      lookup(resp.Header, HeaderAllowOrigin, true),
		AllowCredentials: lookup(resp.Header, HeaderAllowCredentials, false),
		AllowMethods:     lookup(resp.Header, HeaderAllowMethods, false),
	}
}

func lookup(h http.Header, name string, firstOnly bool) *string {
	values := h.Values(name)
	if len(values) == 0 {
		// Headers set on a raw map may not be canonicalized.
		for k, v := range h {
			if strings.EqualFold(k, name) {
				values = append(values, v...)
			}
		}
	}
	if len(values) == 0 {
		return nil
	}
	if firstOnly {
		return &values[0]
	}
	joined := strings.Join(values, ", ")
	return &joined
}

// credentialsAllowed reports whether the Allow-Credentials value contains "true", ignoring case.
func (h ResponseHeaders) credentialsAllowed() bool {
	return h.AllowCredentials != nil && strings.Contains(strings.ToLower(*h.AllowCredentials), "true")
}

func (h ResponseHeaders) wildcardOrigin() bool {
	return h.AllowOrigin != nil && *h.AllowOrigin == "*"
}

func valueOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
