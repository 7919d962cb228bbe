package scene

import "github.com/aukilabs/go-tooling/pkg/errors"

const (
	ErrTypeEntityNotFound = "scene_entity_not_found"
	ErrTypeInvalidCamera  = "scene_invalid_camera"
)

func entityNotFoundError(id uint32) error {
	return errors.New("entity not found").
		WithType(ErrTypeEntityNotFound).
		WithTag("entity_id", id)
}
