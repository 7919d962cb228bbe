package culling

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	// Error type returned when a culling system is created with an unusable
	// configuration.
	ErrTypeInvalidConfig = "culling_invalid_config"

	// Error type returned when a handle does not refer to a registered volume
	// anymore.
	ErrTypeStaleHandle = "culling_stale_handle"
)

func staleHandleError(h Handle, count int) error {
	return errors.New("stale volume handle").
		WithType(ErrTypeStaleHandle).
		WithTag("handle", h.String()).
		WithTag("volume_count", count)
}
