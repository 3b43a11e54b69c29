package iceberg

import (
	"strings"
)

// namespaceSeparator joins namespace levels into one schema name.
const namespaceSeparator = "."

// JoinNamespace renders a multi-level namespace as a schema name. ok is
// false when a level itself contains the separator, since such a name could
// not be split back into the same levels.
func JoinNamespace(levels []string) (name string, ok bool) {
	for _, l := range levels {
		if strings.Contains(l, namespaceSeparator) {
			return "", false
		}
	}
	return strings.Join(levels, namespaceSeparator), true
}

// SplitNamespace parses a schema name back into namespace levels.
func SplitNamespace(name string) []string {
	return strings.Split(name, namespaceSeparator)
}

// encodeNamespace renders levels for a REST path, separated by the unit
// separator character.
func encodeNamespace(levels []string) string {
	return strings.Join(levels, "\x1f")
}
