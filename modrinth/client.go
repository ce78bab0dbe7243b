package modrinth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"modstacker/collection"
	"modstacker/config"

	"github.com/cenk/backoff"
	"github.com/rs/dnscache"
	circuit "github.com/rubyist/circuitbreaker"
)

const (
	modrinthAPIURL = "https://api.modrinth.com/v2"
	defaultTimeout = 10 * time.Second
)

var (
	ErrNotFound            = errors.New("project not found")
	ErrRegistryUnavailable = errors.New("modrinth unavailable")
	ErrMissingParams       = errors.New("missing params")
)

// HTTPError is a non-2xx answer from the API.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("api request failed: status %d, body: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client handles communication with the Modrinth API.
type Client struct {
	BaseURL     string
	APIKey      string
	UserAgent   string
	Loader      string
	SearchLimit int
	HTTPClient  *http.Client

	breaker *circuit.Breaker
}

// NewClient creates a new Modrinth API client using the provided configuration.
func NewClient(cfg config.Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("USERAGENT is not configured")
	}
	loader := cfg.MinecraftLoader
	if loader == "" {
		loader = "fabric"
	}
	limit := cfg.SearchLimit
	if limit <= 0 {
		limit = 10
	}

	return &Client{
		BaseURL:     modrinthAPIURL,
		APIKey:      cfg.ModrinthAPIKey,
		UserAgent:   cfg.UserAgent,
		Loader:      loader,
		SearchLimit: limit,
		HTTPClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: newTransport(),
		},
		breaker: newBreaker(),
	}, nil
}

var (
	resolver     = &dnscache.Resolver{}
	resolverOnce sync.Once
)

// newTransport dials through a shared caching resolver refreshed every five minutes.
func newTransport() *http.Transport {
	resolverOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				resolver.Refresh(true)
			}
		}()
	})

	dialer := &net.Dialer{
		Timeout:   defaultTimeout,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := resolver.LookupHost(ctx, host)
			if err != nil {
				return nil, err
			}
			for _, ip := range ips {
				conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
				if err == nil {
					return conn, nil
				}
			}
			return nil, fmt.Errorf("failed to dial any resolved IP for %s", host)
		},
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   defaultTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// Trips after 5 consecutive failures.
func newBreaker() *circuit.Breaker {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	return circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(5),
	})
}

// BreakerState reports "open" while requests are being refused.
func (c *Client) BreakerState() string {
	if c.breaker != nil && c.breaker.Tripped() {
		return "open"
	}
	return "closed"
}

// makeRequest performs a GET and decodes the JSON body into target. Client
// errors (4xx) are returned without counting against the breaker.
func (c *Client) makeRequest(ctx context.Context, path string, queryParams url.Values, target interface{}) error {
	if c.breaker == nil {
		return c.do(ctx, path, queryParams, target)
	}
	if !c.breaker.Ready() {
		return fmt.Errorf("circuit breaker open: %w", ErrRegistryUnavailable)
	}

	var reqErr error
	err := c.breaker.Call(func() error {
		reqErr = c.do(ctx, path, queryParams, target)
		if isUpstreamFault(reqErr) {
			return reqErr
		}
		return nil
	}, 0)
	if err != nil {
		if errors.Is(err, circuit.ErrBreakerOpen) {
			return fmt.Errorf("circuit breaker open: %w", ErrRegistryUnavailable)
		}
		return err
	}
	return reqErr
}

func isUpstreamFault(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500 || httpErr.StatusCode == http.StatusTooManyRequests
	}
	return true
}

func (c *Client) do(ctx context.Context, path string, queryParams url.Values, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if queryParams != nil {
		req.URL.RawQuery = queryParams.Encode()
	}

	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode json response: %w", err)
		}
	}
	return nil
}

// GetProject retrieves details for a specific project.
func (c *Client) GetProject(ctx context.Context, slug string) (*Project, error) {
	var project Project
	if err := c.makeRequest(ctx, "/project/"+url.PathEscape(slug), nil, &project); err != nil {
		return nil, fmt.Errorf("failed to get project '%s': %w", slug, err)
	}
	return &project, nil
}

// FetchProjectMetadata returns a project's side support, icon and title.
// Missing sides are reported as required.
func (c *Client) FetchProjectMetadata(ctx context.Context, slug string) (collection.SideMetadata, error) {
	project, err := c.GetProject(ctx, slug)
	if err != nil {
		return collection.SideMetadata{}, err
	}
	return project.SideMetadata(), nil
}

// GetProjectVersions lists every version of a project published for loader.
func (c *Client) GetProjectVersions(ctx context.Context, slug, loader string) ([]Version, error) {
	params := url.Values{}
	if loader != "" {
		params.Add("loaders", "[\""+loader+"\"]")
	}

	var versions []Version
	if err := c.makeRequest(ctx, fmt.Sprintf("/project/%s/version", url.PathEscape(slug)), params, &versions); err != nil {
		return nil, fmt.Errorf("failed to get project versions for '%s': %w", slug, err)
	}
	return versions, nil
}

// FetchVersionSupport reports for each requested game version whether any
// release of slug for the client's loader lists it.
func (c *Client) FetchVersionSupport(ctx context.Context, slug string, gameVersions []string) (map[string]bool, error) {
	if slug == "" || len(gameVersions) == 0 {
		return nil, ErrMissingParams
	}
	releases, err := c.GetProjectVersions(ctx, slug, c.Loader)
	if err != nil {
		return nil, err
	}

	supported := make(map[string]struct{})
	for _, r := range releases {
		for _, gv := range r.GameVersions {
			supported[gv] = struct{}{}
		}
	}
	result := make(map[string]bool, len(gameVersions))
	for _, v := range gameVersions {
		_, ok := supported[v]
		result[v] = ok
	}
	return result, nil
}

// Search queries the project index restricted to the client's loader.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = c.SearchLimit
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("facets", "[[\"categories:"+c.Loader+"\"]]")
	params.Set("limit", strconv.Itoa(limit))

	var resp SearchResponse
	if err := c.makeRequest(ctx, "/search", params, &resp); err != nil {
		return nil, fmt.Errorf("failed to search for '%s': %w", query, err)
	}
	return resp.Hits, nil
}

// SearchMods runs Search with the configured limit and maps hits to
// collection search results.
func (c *Client) SearchMods(ctx context.Context, query string) ([]collection.SearchResult, error) {
	hits, err := c.Search(ctx, strings.TrimSpace(query), c.SearchLimit)
	if err != nil {
		return nil, err
	}
	out := make([]collection.SearchResult, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.AsSearchResult())
	}
	return out, nil
}

// GetVersionByHash retrieves version information using the file's SHA1 hash.
func (c *Client) GetVersionByHash(ctx context.Context, hash string) (*Version, error) {
	params := url.Values{}
	params.Set("algorithm", "sha1")

	var version Version
	if err := c.makeRequest(ctx, "/version_file/"+hash, params, &version); err != nil {
		return nil, fmt.Errorf("failed to get version by hash '%s': %w", hash, err)
	}
	return &version, nil
}
