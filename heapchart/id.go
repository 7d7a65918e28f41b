// Package heapchart tracks libraries and the floors within them for
// signed-in users, and serves them over HTTP.
package heapchart

import (
	"strconv"
	"strings"
)

// ID identifies a stored user, library or floor. Valid IDs are positive.
type ID int64

// CreationID is the path segment that stands in for an ID when a request
// should create a new record instead of loading one.
const CreationID = "new"

// ParseID parses an ID path segment.
// Returns:
//
//	(id, false, nil) for a string of decimal digits
//	(0, true, nil)   for CreationID, in any letter case
//	(0, false, err)  otherwise, with err wrapping ErrBadRequest
func ParseID(segment string) (id ID, create bool, err error) {
	if strings.EqualFold(segment, CreationID) {
		return 0, true, nil
	}
	if segment == "" || strings.TrimLeft(segment, "0123456789") != "" {
		return 0, false, badRequest("invalid id %q", segment)
	}
	n, err := strconv.ParseInt(segment, 10, 64)
	if err != nil {
		return 0, false, badRequest("invalid id %q", segment)
	}
	return ID(n), false, nil
}

// IsZero returns true if the ID is unset.
func (id ID) IsZero() bool {
	return id == 0
}

// String returns the decimal form of the ID.
// Implements fmt.Stringer interface.
func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}
