// Package util holds helpers shared by the HTTP handlers.
package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random 32 character hex id, as "prefix_<id>" when prefix is
// set. Ids are time ordered so stored names sort by upload time.
func NewID(prefix string) string {
	id := strings.ReplaceAll(uuid.Must(uuid.NewV7()).String(), "-", "")
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
