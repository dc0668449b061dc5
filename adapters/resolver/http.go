package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/clavis-id/clavis/core"
	"github.com/clavis-id/clavis/ports"
)

// HTTPResolver fetches DID documents from a universal-resolver style
// endpoint: GET {endpoint}/1.0/identifiers/{did}.
type HTTPResolver struct {
	endpoint string
	client   *http.Client
}

// NewHTTPResolver creates a resolver against the given endpoint.
func NewHTTPResolver(endpoint string) *HTTPResolver {
	return &HTTPResolver{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Resolve fetches and parses the DID document. Both the bare-document and
// the enveloped {didDocument: ...} response shapes are accepted.
func (r *HTTPResolver) Resolve(ctx context.Context, did string) (*core.DIDDocument, error) {
	u := r.endpoint + "/1.0/identifiers/" + url.PathEscape(did)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build resolve request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("did resolution failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, core.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("did resolution failed: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read did document: %w", err)
	}

	// The universal resolver envelopes the document; plain did:web
	// servers return it bare.
	var envelope struct {
		DIDDocument *core.DIDDocument `json:"didDocument"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.DIDDocument != nil {
		return envelope.DIDDocument, nil
	}

	var doc core.DIDDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode did document: %w", err)
	}
	if doc.ID == "" {
		return nil, core.ErrNotFound
	}
	return &doc, nil
}

var _ ports.Resolver = (*HTTPResolver)(nil)
