// Package buckets resolves bucket requests against a member store and shapes
// the result as a list of names or a chat gallery.
package buckets

import (
	"errors"

	"github.com/recipeshelf/shelf/internal/models"
)

// ErrInvalidRequest is returned when no request is supplied.
// The message is relied on by existing callers and must not change.
var ErrInvalidRequest = errors.New("Invalid event - undefined")

// Validate rejects a missing request. Bucket names are not checked here;
// unknown or empty buckets resolve to empty results.
func Validate(req *models.Request) error {
	if req == nil {
		return ErrInvalidRequest
	}
	return nil
}
