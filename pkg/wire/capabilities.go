package wire

import (
	"sort"
	"strings"
)

// Known capability names (spec §6/§11).
const (
	CapReportStatus = "report-status"
	CapDeleteRefs   = "delete-refs"
	CapNoThin       = "no-thin"
	CapOfsDelta     = "ofs-delta"
	CapZstd         = "zstd"
)

// Capabilities is a set of negotiated protocol capabilities. Grounded on
// the teacher's pkg/remote/protocol.go Capabilities type (intersect/has/
// string), re-keyed to spec's space-delimited advertisement line instead
// of the teacher's comma-joined one.
type Capabilities struct {
	set map[string]struct{}
}

// NewCapabilities builds a set from the given names.
func NewCapabilities(names ...string) Capabilities {
	c := Capabilities{set: make(map[string]struct{}, len(names))}
	for _, n := range names {
		if n != "" {
			c.set[n] = struct{}{}
		}
	}
	return c
}

// ParseCapabilities parses a space-delimited capability list, the form
// spec §6 uses in both the receive-pack and upload-pack advertisement
// line.
func ParseCapabilities(raw string) Capabilities {
	return NewCapabilities(strings.Fields(raw)...)
}

// Has reports whether name is present.
func (c Capabilities) Has(name string) bool {
	_, ok := c.set[name]
	return ok
}

// Intersect returns the capabilities present in both sets — the
// negotiated set a client and server agree to use.
func (c Capabilities) Intersect(other Capabilities) Capabilities {
	result := NewCapabilities()
	for k := range c.set {
		if _, ok := other.set[k]; ok {
			result.set[k] = struct{}{}
		}
	}
	return result
}

// String renders the set as a sorted space-delimited list, matching
// spec's advertisement-line format.
func (c Capabilities) String() string {
	names := make([]string, 0, len(c.set))
	for k := range c.set {
		names = append(names, k)
	}
	sort.Strings(names)
	return strings.Join(names, " ")
}
