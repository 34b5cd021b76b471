package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const restTimeout = 10 * time.Second

// RESTConfig configures the PostgREST profile store.
type RESTConfig struct {
	// BaseURL is the REST root, e.g. https://api.example.com/rest/v1.
	BaseURL string

	// APIKey is sent as the apikey header on every request.
	APIKey string

	// Table overrides the profile table name. Defaults to "profiles".
	Table string

	// BearerSource supplies the access token for row-level security. Called
	// per request; may return "" when no session exists.
	BearerSource func() string

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// REST fetches profiles from a PostgREST endpoint. Row-level security means
// the result set depends on whose token BearerSource returns.
type REST struct {
	baseURL string
	apiKey  string
	table   string
	bearer  func() string
	http    *http.Client
}

// NewREST builds a REST profile store. BaseURL is required.
func NewREST(cfg RESTConfig) (*REST, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("profile store base URL required")
	}
	table := cfg.Table
	if table == "" {
		table = "profiles"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: restTimeout}
	}
	return &REST{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		table:   table,
		bearer:  cfg.BearerSource,
		http:    httpClient,
	}, nil
}

// ProfileByID fetches a single row keyed by id. A zero-row response maps to
// ErrNotFound; credential rejections map to ErrForbidden.
func (r *REST) ProfileByID(ctx context.Context, id string) (*Profile, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: empty profile id", ErrNotFound)
	}

	endpoint := r.baseURL + "/" + r.table + "?id=eq." + url.QueryEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	// Single-object response; zero rows become a 406 instead of [].
	req.Header.Set("Accept", "application/vnd.pgrst.object+json")
	if r.apiKey != "" {
		req.Header.Set("apikey", r.apiKey)
	}
	if r.bearer != nil {
		if tok := r.bearer(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNotAcceptable:
		return nil, fmt.Errorf("%w: id %s", ErrNotFound, id)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrForbidden, resp.StatusCode)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: status %d", ErrStoreUnavailable, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: unexpected status %d", ErrStoreUnavailable, resp.StatusCode)
	}

	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrStoreUnavailable, err)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("%w: id %s", ErrNotFound, id)
	}
	return &p, nil
}
