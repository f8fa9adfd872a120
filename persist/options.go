package persist

import "strings"

// Option is a set of write flags, fixed when the engine is constructed.
type Option uint

const (
	// DisableStaleChildCleanup keeps one-to-many children that are missing
	// from a rewritten collection instead of deleting them.
	DisableStaleChildCleanup Option = 1 << iota
	// DisableUnmappedKeyWarnings silences the warning for JSON keys without a field.
	DisableUnmappedKeyWarnings
)

// Has reports whether every flag of f is set.
func (o Option) Has(f Option) bool {
	return o&f == f
}

func (o Option) String() string {
	if o == 0 {
		return "none"
	}
	var parts []string
	if o.Has(DisableStaleChildCleanup) {
		parts = append(parts, "disable_stale_child_cleanup")
	}
	if o.Has(DisableUnmappedKeyWarnings) {
		parts = append(parts, "disable_unmapped_key_warnings")
	}
	return strings.Join(parts, "|")
}
