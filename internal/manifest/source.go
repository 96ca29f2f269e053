package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrVersionNotFound indicates the requested id is not in the version index
	ErrVersionNotFound = errors.New("version_not_found")

	// ErrInvalidDocument indicates a manifest document failed to decode or validate
	ErrInvalidDocument = errors.New("invalid_document")
)

// Getter is satisfied by httpclient.Client.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Source supplies typed manifests to the installer.
type Source interface {
	ResolveVersion(ctx context.Context, id string) (*Version, error)
	LoadAssetIndex(ctx context.Context, ref AssetIndexRef) (*AssetIndex, error)
}

// HTTPSource reads manifests from the remote version index.
type HTTPSource struct {
	Client      Getter
	ManifestURL string
}

// NewHTTPSource returns a Source reading the version index at manifestURL.
func NewHTTPSource(client Getter, manifestURL string) *HTTPSource {
	return &HTTPSource{Client: client, ManifestURL: manifestURL}
}

// ListVersions fetches the version index.
func (s *HTTPSource) ListVersions(ctx context.Context) (*VersionIndex, error) {
	body, err := s.Client.Get(ctx, s.ManifestURL)
	if err != nil {
		return nil, fmt.Errorf("fetch version index: %w", err)
	}
	var vi VersionIndex
	if err := json.Unmarshal(body, &vi); err != nil {
		return nil, fmt.Errorf("%w: version index: %v", ErrInvalidDocument, err)
	}
	return &vi, nil
}

// ResolveVersion fetches and validates the document for id. The aliases
// "latest"/"release" and "snapshot" resolve through the index.
func (s *HTTPSource) ResolveVersion(ctx context.Context, id string) (*Version, error) {
	vi, err := s.ListVersions(ctx)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(id)) {
	case "", "latest", "release":
		id = vi.Latest.Release
	case "snapshot":
		id = vi.Latest.Snapshot
	}

	ref, ok := vi.Find(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrVersionNotFound, id)
	}

	body, err := s.Client.Get(ctx, ref.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch version %s: %w", id, err)
	}
	return ParseVersion(body)
}

// LoadAssetIndex fetches and decodes the asset index referenced by ref.
func (s *HTTPSource) LoadAssetIndex(ctx context.Context, ref AssetIndexRef) (*AssetIndex, error) {
	body, err := s.Client.Get(ctx, ref.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch asset index %s: %w", ref.ID, err)
	}
	return ParseAssetIndex(body)
}

// ParseVersion validates and decodes a version document.
func ParseVersion(doc []byte) (*Version, error) {
	if err := ValidateVersion(doc); err != nil {
		return nil, err
	}
	var v Version
	if err := json.Unmarshal(doc, &v); err != nil {
		return nil, fmt.Errorf("%w: version: %v", ErrInvalidDocument, err)
	}
	return &v, nil
}

// ParseAssetIndex validates and decodes an asset index document.
func ParseAssetIndex(doc []byte) (*AssetIndex, error) {
	if err := ValidateAssetIndex(doc); err != nil {
		return nil, err
	}
	var idx AssetIndex
	if err := json.Unmarshal(doc, &idx); err != nil {
		return nil, fmt.Errorf("%w: asset index: %v", ErrInvalidDocument, err)
	}
	return &idx, nil
}
