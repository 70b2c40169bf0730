package assettracking

import (
	"strings"

	"github.com/theoremus-urban-solutions/asset-tracking/tracker"
)

// QueryError carries a caller-facing message for a bad query parameter.
type QueryError struct{ Msg string }

func (e *QueryError) Error() string { return e.Msg }

// parseAssetTypeParam validates an optional assetType query parameter.
// Empty means "all types".
func parseAssetTypeParam(s string) (tracker.AssetType, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return "", nil
	}
	t := tracker.AssetType(s)
	if !t.Valid() {
		return "", &QueryError{Msg: "Unsupported assetType: " + s}
	}
	return t, nil
}

// parseIdentityPath validates the {assetType}/{assetId} path segments.
func parseIdentityPath(assetType, assetID string) (tracker.AssetIdentity, error) {
	t := tracker.AssetType(strings.ToLower(strings.TrimSpace(assetType)))
	if !t.Valid() {
		return tracker.AssetIdentity{}, &QueryError{Msg: "Unsupported assetType: " + assetType}
	}
	id := strings.TrimSpace(assetID)
	if id == "" {
		return tracker.AssetIdentity{}, &QueryError{Msg: "You must provide an assetId."}
	}
	return tracker.AssetIdentity{Type: t, ID: id}, nil
}
