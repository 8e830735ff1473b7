package id

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a 12-character hex job id. Short enough to read in logs and
// URLs, random enough that collisions are not a practical concern.
func New() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return raw[:12]
}
