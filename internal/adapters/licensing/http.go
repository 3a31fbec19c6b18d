package licensing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultHTTPTimeout = 2 * time.Second

type licenseResponse struct {
	Plan        string `json:"plan"`
	MaxReferees int    `json:"max_referees"`
	Unlimited   bool   `json:"unlimited"`
}

// HTTPResolver asks a remote licensing service:
//
//	GET {base}/v1/licenses/{key} -> {"plan":"basic","max_referees":4}
type HTTPResolver struct {
	base   string
	client *http.Client
}

// NewHTTPResolver returns a resolver for the service rooted at base.
// A nil client gets a default with a short timeout.
func NewHTTPResolver(base string, client *http.Client) *HTTPResolver {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HTTPResolver{base: strings.TrimRight(base, "/"), client: client}
}

// Resolve implements Resolver.
func (r *HTTPResolver) Resolve(ctx context.Context, key string) (Plan, error) {
	endpoint := r.base + "/v1/licenses/" + url.PathEscape(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Plan{}, fmt.Errorf("%w: %w", ErrResolverUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Plan{}, fmt.Errorf("%w: %w", ErrResolverUnavailable, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Plan{}, ErrInvalidLicense
	case resp.StatusCode != http.StatusOK:
		return Plan{}, fmt.Errorf("%w: status %d", ErrResolverUnavailable, resp.StatusCode)
	}

	var body licenseResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err != nil {
		return Plan{}, fmt.Errorf("%w: decode: %w", ErrResolverUnavailable, err)
	}
	if body.Plan == "" || (!body.Unlimited && body.MaxReferees < 1) {
		return Plan{}, fmt.Errorf("%w: incomplete plan", ErrResolverUnavailable)
	}
	return Plan{Name: body.Plan, MaxReferees: body.MaxReferees, Unlimited: body.Unlimited}, nil
}
