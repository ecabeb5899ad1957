package payloads

import "strings"

// CORSOriginCase is one extra Origin value sent when extended CORS probing is enabled.
type CORSOriginCase struct {
	// OriginHeader is the value of the Origin header to be sent in the request.
	OriginHeader string
	// Description provides a brief explanation of what is being tested.
	Description string
}

// CORSExtendedOrigins contains the bypass variants probed in addition to the configured origin.
var CORSExtendedOrigins []CORSOriginCase

func init() {
	// Assumes the trusted domain for testing bypasses is "corsgo-scanner.com"
	trustedDomain := "corsgo-scanner.com"

	CORSExtendedOrigins = []CORSOriginCase{
		{
			OriginHeader: "https://evil-scanner.com",
			Description:  "Tests if the server reflects an arbitrary and unrecognized Origin header.",
		},
		{
			OriginHeader: "https://" + trustedDomain + ".evil-scanner.com",
			Description:  "Tests for weak regex that only checks if the Origin 'starts with' a trusted domain.",
		},
		{
			OriginHeader: "https://evil-" + trustedDomain,
			Description:  "Tests for weak regex that only checks if the Origin 'ends with' a trusted domain.",
		},
		{
			OriginHeader: "https://sub.evil-scanner.com/" + trustedDomain,
			Description:  "Tests for weak regex that just checks if the trusted domain string 'is contained' anywhere.",
		},
		{
			OriginHeader: "null",
			Description:  "Tests if the server allows the 'null' origin, which is dangerous for local files and redirects.",
		},
	}
}

// CORSOrigins returns the probe origins for one URL: the configured origin first, then the
// extended cases when enabled. Blank and repeated values are dropped.
func CORSOrigins(configured string, extended bool) []string {
	origins := []string{}
	seen := map[string]bool{}
	add := func(o string) {
		if strings.TrimSpace(o) == "" || seen[o] {
			return
		}
		seen[o] = true
		origins = append(origins, o)
	}

	add(configured)
	if extended {
		for _, c := range CORSExtendedOrigins {
			add(c.OriginHeader)
		}
	}
	return origins
}
