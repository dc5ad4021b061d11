package library

import (
	"fmt"
	"strings"
)

// Ids and names are written into delimited list fields ("[id:name;id:name]") by the
// text store, so the delimiters are not allowed in them.
const (
	reservedInID   = ":;,[]"
	reservedInName = ";[]"
)

func checkID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: %s id must not be empty", ErrInvalidState, kind)
	}
	if strings.ContainsAny(id, reservedInID) {
		return fmt.Errorf("%w: %s id %q must not contain any of %q", ErrInvalidState, kind, id, reservedInID)
	}
	return nil
}

func checkName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: member name must not be empty", ErrInvalidState)
	}
	if strings.ContainsAny(name, reservedInName) {
		return fmt.Errorf("%w: member name %q must not contain any of %q", ErrInvalidState, name, reservedInName)
	}
	return nil
}

// IsMemberID reports whether s has the shape of a generated member id (M001).
func IsMemberID(s string) bool {
	_, ok := memberSeq(strings.TrimSpace(s))
	return ok
}
