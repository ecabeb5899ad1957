package httpclient

import (
	"Corsgo/internal/logger"
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"
)

// maxDrainBytes bounds how much of a response body is read before closing it so the
// connection can be reused.
const maxDrainBytes = 64 << 10

// Client represents a custom HTTP client for Corsgo, encapsulating http.Client and custom behaviors.
type Client struct {
	httpClient   *http.Client      // The underlying standard HTTP client.
	logger       *logger.Logger    // Logger for client-related messages.
	userAgent    string            // Custom User-Agent header for requests.
	maxRetries   int               // Maximum number of retries for failed requests.
	requestDelay time.Duration     // Delay between retries.
	authHeaders  map[string]string // Authentication headers to be added to requests.
}

// ClientOptions holds configuration parameters for initializing the HTTP Client.
type ClientOptions struct {
	Timeout            time.Duration     // Timeout for HTTP requests.
	FollowRedirects    bool              // Whether to follow HTTP redirects.
	InsecureSkipVerify bool              // Whether to skip TLS certificate verification.
	UserAgent          string            // Custom User-Agent string.
	MaxRetries         int               // Maximum number of retries for requests.
	RequestDelay       time.Duration     // Delay between retries.
	TargetBaseURL      string            // Base URL of the target, used for cookie scope.
	AuthCookie         string            // Static cookie string for authentication.
	AuthHeaders        map[string]string // Static headers for authentication.
}

// Response is the part of an HTTP response the CORS audit cares about. The body is
// already drained and closed.
type Response struct {
	ID         string
	StatusCode int
	Header     http.Header
}

// NewClient creates and returns a new HTTP client instance with specified options.
func NewClient(log *logger.Logger, opts ClientOptions) *Client {
	// Set default User-Agent if not provided.
	if opts.UserAgent == "" {
		opts.UserAgent = "Corsgo-Scanner/1.0"
	}
	// Set default timeout if not provided.
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	// Ensure max retries is not negative.
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	// Initialize cookie jar for session management.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	// Configure TLS transport, allowing insecure skip verify if specified.
	transport := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify},
	}

	// Create the custom Client instance.
	client := &Client{
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
			Jar:       jar,
		},
		logger:       log,
		userAgent:    opts.UserAgent,
		maxRetries:   opts.MaxRetries,
		requestDelay: opts.RequestDelay,
		authHeaders:  opts.AuthHeaders,
	}

	// Set static authentication cookie if provided.
	if opts.AuthCookie != "" {
		log.Info("Static cookie authentication configured.")
		targetURL, err := url.Parse(opts.TargetBaseURL)
		if err != nil || targetURL.Host == "" {
			log.Error("Failed to parse target URL for setting cookie: %q", opts.TargetBaseURL)
		} else {
			header := http.Header{}
			header.Add("Cookie", opts.AuthCookie)
			request := http.Request{Header: header}
			jar.SetCookies(targetURL, request.Cookies())
			log.Debug("Static session cookie set for domain %s", targetURL.Host)
		}
	}

	// Log if static header authentication is configured.
	if len(opts.AuthHeaders) > 0 {
		log.Info("Static header authentication configured.")
	}

	// Configure redirect policy for the HTTP client.
	client.httpClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if !opts.FollowRedirects {
			return http.ErrUseLastResponse
		}
		if len(via) >= 10 {
			log.Warn("Exceeded maximum redirects (10).")
			return http.ErrUseLastResponse
		}
		return nil
	}
	return client
}

// Do performs an HTTP request, including setting headers and retrying on 429 and 5xx.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	// Set the User-Agent header for the request.
	req.Header.Set("User-Agent", c.userAgent)
	// Add any configured authentication headers.
	for key, value := range c.authHeaders {
		req.Header.Set(key, value)
	}

	c.logger.Trace("Sending request: %s %s", req.Method, req.URL.String())
	// Log cookies being sent from the cookie jar.
	if cookies := c.httpClient.Jar.Cookies(req.URL); len(cookies) > 0 {
		var cookieStrings []string
		for _, cookie := range cookies {
			cookieStrings = append(cookieStrings, cookie.Name+"="+cookie.Value)
		}
		c.logger.Trace("  -> Cookies from Jar to be sent: %s", strings.Join(cookieStrings, "; "))
	}

	// Read the request body once so every attempt can replay it.
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}
	}

	var resp *http.Response
	var err error

	// Retry on rate limits and server errors, honouring the request context.
	for i := 0; i <= c.maxRetries; i++ {
		if i > 0 {
			// Apply a base delay for regular retries.
			if werr := sleep(req.Context(), c.requestDelay); werr != nil {
				return nil, werr
			}
		}

		// Clone the request to allow retrying with a fresh body.
		reqClone := req.Clone(req.Context())
		if bodyBytes != nil {
			reqClone.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		// Execute the HTTP request.
		resp, err = c.httpClient.Do(reqClone)

		// --- Rate Limit and Server Error Handling Logic ---
		if err == nil {
			// Condition 1: Request successful (not 429 or 5xx).
			if resp.StatusCode != http.StatusTooManyRequests && (resp.StatusCode < 500 || resp.StatusCode > 599) {
				return resp, nil
			}
			if i == c.maxRetries {
				// Out of retries: hand the last answer back, the caller may still read headers.
				return resp, nil
			}
			// Condition 2: Rate limit detected (429 Too Many Requests).
			if resp.StatusCode == http.StatusTooManyRequests {
				// Wait longer before retrying for rate limits.
				backoff := 5 * time.Second
				c.logger.Warn("Rate limit detected (429 Too Many Requests). Waiting for %v before retrying...", backoff)
				// Close the current response body before retrying.
				resp.Body.Close()
				if werr := sleep(req.Context(), backoff); werr != nil {
					return nil, werr
				}
				continue
			}
		}
		// --- End of Rate Limit and Server Error Handling ---

		// If there's any other error or a 5xx status, close the body and retry.
		if resp != nil {
			resp.Body.Close()
		}
		if req.Context().Err() != nil {
			break
		}
	}

	// A cancelled context can end the loop without a transport error.
	if err == nil {
		err = req.Context().Err()
	}
	return nil, err
}

// Send performs req and returns the status and headers with a fresh response ID.
func (c *Client) Send(ctx context.Context, req *http.Request) (*Response, error) {
	resp, err := c.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	// Drain a bounded amount so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	return &Response{
		ID:         uuid.NewString(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
	}, nil
}

// Get performs an HTTP GET request using the custom client.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// GetClient returns the underlying standard http.Client instance.
func (c *Client) GetClient() *http.Client {
	return c.httpClient
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
