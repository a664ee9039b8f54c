// Package license produces and checks license key strings.
package license

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// groupOffsets slices the 32-char hex id. The last offset lies past the end,
// so the key always closes with an empty group and a trailing hyphen.
var groupOffsets = []int{0, 5, 10, 15, 20, 25, 30, 35}

// Pattern matches keys produced by Generate.
var Pattern = regexp.MustCompile(`^([0-9a-f]{5}-){6}[0-9a-f]{2}-$`)

// Generate returns a new key such as "1f0c2-9ab34-...-7e-".
func Generate() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate license id: %w", err)
	}
	return format(strings.ReplaceAll(id.String(), "-", "")), nil
}

func format(hex string) string {
	groups := make([]string, len(groupOffsets))
	for i, off := range groupOffsets {
		start := min(off, len(hex))
		end := min(off+5, len(hex))
		groups[i] = hex[start:end]
	}
	return strings.Join(groups, "-")
}

// Valid reports whether key has the generated layout.
func Valid(key string) bool {
	return Pattern.MatchString(key)
}
