package model

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// NewID returns a new lexically sortable identifier with the given prefix,
// e.g. "curve_01J9...".
func NewID(prefix string) string {
	id := strings.ToLower(ulid.Make().String())
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
