package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kalambet/cekrek/internal/mirror"
)

// DefaultListPath is where the public service serves the legacy provider
// list. It lives under /api/v1 while the check endpoints do not, so it is
// configured apart from the mirror bases.
const DefaultListPath = "/api/v1/bank-list"

// Fetcher issues a request against the inquiry service mirrors.
type Fetcher interface {
	Do(ctx context.Context, method, path string, body []byte) (*mirror.Response, error)
}

// RemoteLoader fetches the catalog from the service on every Load.
type RemoteLoader struct {
	fetcher Fetcher
	path    string
}

// NewRemoteLoader creates a RemoteLoader that reads path through f.
// An empty path means DefaultListPath.
func NewRemoteLoader(f Fetcher, path string) *RemoteLoader {
	if path == "" {
		path = DefaultListPath
	}
	return &RemoteLoader{fetcher: f, path: path}
}

// bankListResponse mirrors the JSON returned by the bank-list endpoint.
type bankListResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    *struct {
		Banks    []listItem `json:"banks"`
		Ewallets []listItem `json:"ewallets"`
	} `json:"data"`
}

type listItem struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Load returns the remote catalog. Every failure is reported as
// ErrCatalogUnavailable wrapping the cause.
func (l *RemoteLoader) Load(ctx context.Context) (Catalog, error) {
	resp, err := l.fetcher.Do(ctx, http.MethodGet, l.path, nil)
	if err != nil {
		return Catalog{}, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Catalog{}, fmt.Errorf("%w: unexpected status %d", ErrCatalogUnavailable, resp.StatusCode)
	}

	var list bankListResponse
	if err := json.Unmarshal(resp.Body, &list); err != nil {
		return Catalog{}, fmt.Errorf("%w: decoding bank list: %w", ErrCatalogUnavailable, err)
	}
	if !list.Success {
		msg := list.Message
		if msg == "" {
			msg = "service reported failure"
		}
		return Catalog{}, fmt.Errorf("%w: %s", ErrCatalogUnavailable, msg)
	}
	if list.Data == nil {
		return Catalog{}, fmt.Errorf("%w: missing data", ErrCatalogUnavailable)
	}

	c := Catalog{
		Banks:    toEntries(list.Data.Banks),
		Ewallets: toEntries(list.Data.Ewallets),
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	return c, nil
}

func toEntries(items []listItem) []Entry {
	out := make([]Entry, len(items))
	for i, it := range items {
		out[i] = Entry{Code: it.Value, DisplayName: it.Label}
	}
	return out
}
