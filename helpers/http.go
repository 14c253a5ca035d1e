package helpers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/html/charset"

	perrors "buildprice/priceworker/pkg/errors"
)

// HTTP client and header configurations
var (
	userAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	}
)

// maxBodySize caps how much of a listing page is read into memory
const maxBodySize = 8 << 20

// Page is a fetched document decoded to UTF-8
type Page struct {
	Body       []byte
	FinalURL   string
	StatusCode int
}

// Fetcher retrieves listing pages with browser-like headers. It follows at
// most one redirect and retries a 403 once with a Referer set.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a fetcher whose requests time out after timeout
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			// Redirects are handled by hand so the hop count stays at one.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// DefaultHeaders returns the desktop browser header set sent with every request
func DefaultHeaders() http.Header {
	h := http.Header{}
	h.Set("User-Agent", userAgents[rand.IntN(len(userAgents))])
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Cache-Control", "no-cache")
	h.Set("Pragma", "no-cache")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "none")
	h.Set("Sec-Fetch-User", "?1")
	return h
}

// MergeHeaders layers per-source overrides on top of the defaults. Keys are
// canonicalized, so an override replaces the default of the same name and
// leaves every other default in place.
func MergeHeaders(overrides map[string]string) http.Header {
	h := DefaultHeaders()
	for k, v := range overrides {
		h.Set(k, v)
	}
	return h
}

type response struct {
	status int
	header http.Header
	body   []byte
	url    string
}

// Fetch downloads rawURL and returns the UTF-8 body and the URL it came from.
// Every failure is a *errors.PipelineError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, headers map[string]string) (*Page, error) {
	host := hostOf(rawURL)
	h := MergeHeaders(headers)

	resp, err := f.getFollowingOnce(ctx, rawURL, h)
	if err != nil {
		return nil, err
	}

	if resp.status == http.StatusForbidden {
		retry := h.Clone()
		retry.Set("Referer", rawURL)
		retry.Set("Upgrade-Insecure-Requests", "1")

		resp, err = f.getFollowingOnce(ctx, rawURL, retry)
		if err != nil {
			return nil, err
		}
		if resp.status == http.StatusForbidden {
			return nil, perrors.NewBlocked(host, resp.status)
		}
	}

	// Check for rate limiting
	if resp.status == http.StatusTooManyRequests || resp.status == 430 {
		return nil, perrors.NewRateLimit(host, resp.status, resp.header.Get("Retry-After"))
	}

	if resp.status < 200 || resp.status > 299 {
		return nil, perrors.NewHTTPStatus(host, resp.status)
	}

	body, err := toUTF8(resp.body, resp.header.Get("Content-Type"))
	if err != nil {
		return nil, perrors.NewParsing(host, "failed to decode body", err)
	}

	return &Page{Body: body, FinalURL: resp.url, StatusCode: resp.status}, nil
}

// getFollowingOnce performs a GET and follows a single 3xx hop with the same headers
func (f *Fetcher) getFollowingOnce(ctx context.Context, rawURL string, h http.Header) (*response, error) {
	resp, err := f.get(ctx, rawURL, h)
	if err != nil {
		return nil, err
	}
	if !isRedirect(resp) {
		return resp, nil
	}

	next, err := resolveLocation(rawURL, resp.header.Get("Location"))
	if err != nil {
		return nil, perrors.NewNetwork(hostOf(rawURL), "invalid redirect location", err)
	}

	resp, err = f.get(ctx, next, h)
	if err != nil {
		return nil, err
	}
	if isRedirect(resp) {
		e := perrors.New(perrors.ErrorTypeHTTPStatus, hostOf(rawURL), "redirect limit exceeded", nil)
		e.StatusCode = resp.status
		return nil, e
	}
	return resp, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string, h http.Header) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, perrors.NewNetwork(hostOf(rawURL), "failed to create request", err)
	}
	req.Header = h.Clone()

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, perrors.NewNetwork(hostOf(rawURL), "failed to fetch URL", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, perrors.NewNetwork(hostOf(rawURL), "failed to read response body", err)
	}
	// A truncated page would extract as if it were complete
	if len(body) > maxBodySize {
		return nil, perrors.NewParsing(hostOf(rawURL),
			fmt.Sprintf("response body exceeds %d bytes", maxBodySize), nil)
	}

	return &response{
		status: resp.StatusCode,
		header: resp.Header,
		body:   body,
		url:    rawURL,
	}, nil
}

func isRedirect(r *response) bool {
	return r.status >= 300 && r.status < 400 && r.status != http.StatusNotModified && r.header.Get("Location") != ""
}

func resolveLocation(base, location string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	loc, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(loc).String(), nil
}

// toUTF8 converts body to UTF-8 using the Content-Type header and sniffed meta tags
func toUTF8(body []byte, contentType string) ([]byte, error) {
	encoding, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" || name == "UTF-8" {
		return body, nil
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, encoding.NewDecoder().Reader(bytes.NewReader(body))); err != nil {
		return nil, fmt.Errorf("failed to read converted UTF-8 body: %w", err)
	}
	return buf.Bytes(), nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
