// SPDX-License-Identifier: Apache-2.0

// Package structured resolves structural-path anchors against the
// structured renditions (HTML, XML, Markdown) of a source document.
package structured

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/finlens/evidence-mcp/internal/fetch"
)

var (
	// ErrNotAvailable means the document has no structured rendition. It is
	// not a failure of the panel.
	ErrNotAvailable = errors.New("structured rendition not available")
	// ErrTransport is a genuine fetch failure.
	ErrTransport = errors.New("structured fetch failed")
)

// SubDocument is one named structured rendition of a source document.
type SubDocument struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Content string `json:"content"`
	Format  string `json:"format,omitempty"`
}

// Matches reports whether hint names this sub-document by name or path.
func (d SubDocument) Matches(hint string) bool {
	return hint != "" && (strings.EqualFold(d.Name, hint) || d.Path == hint)
}

type listResponse struct {
	Documents []SubDocument `json:"documents"`
}

// Fetcher lists the structured sub-documents of a document.
type Fetcher interface {
	Fetch(ctx context.Context, documentID string) ([]SubDocument, error)
}

// Client fetches sub-documents from the document API.
type Client struct {
	baseURL string
	http    *fetch.Client
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, http *fetch.Client) *Client {
	if http == nil {
		http = fetch.New(fetch.DefaultConfig(), nil)
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: http}
}

// Fetch calls GET {base}/documents/{id}/structured.
func (c *Client) Fetch(ctx context.Context, documentID string) ([]SubDocument, error) {
	if documentID == "" {
		return nil, ErrNotAvailable
	}
	endpoint := fmt.Sprintf("%s/documents/%s/structured", c.baseURL, url.PathEscape(documentID))

	body, err := c.http.Get(ctx, endpoint, "application/json")
	if err != nil {
		if errors.Is(err, fetch.ErrNotFound) {
			return nil, ErrNotAvailable
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrTransport, err)
	}
	if len(resp.Documents) == 0 {
		return nil, ErrNotAvailable
	}
	return resp.Documents, nil
}
