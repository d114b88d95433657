// Package resolve checks that DOIs and URLs found by sources lead somewhere
// before they are written into a record.
package resolve

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/matsen/bibfill/internal/reference"
	"github.com/matsen/bibfill/internal/source"
)

const (
	Name    = "doi.org"
	BaseURL = "https://doi.org/api/handles/"
	Delay   = 100 * time.Millisecond
)

// Landing page phrases of publishers that answer 200 for withdrawn DOIs.
var unavailable = []string{"doi not available", "not found"}

// Checker resolves DOIs through the doi.org handle API and follows URLs.
type Checker struct {
	base    string
	handles *source.Fetcher
	pages   *source.Fetcher
	logger  *zap.Logger
}

// New creates a checker. BaseURL in the settings replaces the handle API
// endpoint.
func New(opts ...source.Option) *Checker {
	s := source.NewSettings(opts...)
	return &Checker{
		base:    s.Endpoint(BaseURL),
		handles: source.NewFetcher(Name, Delay, s),
		pages:   source.NewFetcher("url", 0, s),
		logger:  s.Logger.With(zap.String("checker", Name)),
	}
}

type handle struct {
	ResponseCode int `json:"responseCode"`
	Values       []struct {
		Type string `json:"type"`
		Data struct {
			Value json.RawMessage `json:"value"`
		} `json:"data"`
	} `json:"values"`
}

// DOI reports whether doi is registered and one of its target URLs
// answers.
func (c *Checker) DOI(ctx context.Context, doi string) bool {
	req, err := source.NewRequest(ctx, c.base+source.PathEscape(doi), url.Values{"type": {"URL"}})
	if err != nil {
		return false
	}
	resp, err := c.handles.Do(ctx, req)
	if err != nil {
		c.logger.Debug("handle lookup failed", zap.String("doi", doi), zap.Error(err))
		return false
	}
	if resp.Status != http.StatusOK {
		return false
	}

	var h handle
	if err := json.Unmarshal(resp.Body, &h); err != nil || h.ResponseCode != 1 {
		return false
	}
	for _, v := range h.Values {
		var target string
		if v.Type != "URL" || json.Unmarshal(v.Data.Value, &target) != nil {
			continue
		}
		if c.URL(ctx, target) {
			return true
		}
	}
	return false
}

// URL reports whether u answers 200 after redirects with a page that does
// not announce itself as missing. Non-text bodies are not inspected.
func (c *Checker) URL(ctx context.Context, u string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Accept", "text/html")
	resp, err := c.pages.Do(ctx, req)
	if err != nil {
		c.logger.Debug("url check failed", zap.String("url", u), zap.Error(err))
		return false
	}
	if resp.Status != http.StatusOK {
		return false
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "text/") {
		return true
	}
	text := strings.Join(strings.Fields(strings.ToLower(string(resp.Body))), " ")
	for _, phrase := range unavailable {
		if strings.Contains(text, phrase) {
			return false
		}
	}
	return true
}

// Verify checks doi and url values and accepts every other field.
func (c *Checker) Verify(ctx context.Context, name reference.Name, value string) bool {
	var ok bool
	switch name {
	case reference.DOI:
		ok = c.DOI(ctx, value)
	case reference.URL:
		ok = c.URL(ctx, value)
	default:
		return true
	}
	if !ok {
		c.logger.Info("dropping value that does not resolve",
			zap.String("field", string(name)), zap.String("value", value))
	}
	return ok
}
