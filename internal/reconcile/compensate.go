package reconcile

import (
	"context"
	"time"

	pkgerrors "github.com/angelmondragon/gatewaysync/pkg/errors"
	"github.com/angelmondragon/gatewaysync/pkg/logger"
)

// Compensate records a remote write whose local persistence failed, with
// enough payload to repair the mirror by hand.
func Compensate(ctx context.Context, logg *logger.Logger, kind, gatewayID string, payload any, err error) {
	if logg == nil {
		return
	}
	ctx = logg.WithCompensation(ctx, kind, gatewayID, payload, pkgerrors.Dump(err))
	logg.Error(ctx, "remote write succeeded but local persistence failed", err)
}

// Transient reports whether a gateway failure is temporary, in which case a
// read may fall back to the cached mirror row.
func Transient(err error) bool {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeGatewayUnavailable, pkgerrors.CodeRateLimited:
		return true
	default:
		return false
	}
}

// MergeMetadata overlays patch onto base and returns the result. Nil values in
// patch delete the key.
func MergeMetadata(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

// SameTime compares optional timestamps at second precision, the resolution
// the gateway reports.
func SameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Unix() == b.Unix()
}
