package api

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// NewTaskID returns a short random identifier suitable for naming a
// single workflow run. Eight hex characters is enough to keep
// concurrent runs on the same host apart without making directory
// names unwieldy
func NewTaskID() string {
	return uuid.New().String()[:8]
}

// InvalidNameChars matches characters not permitted in workflow and step
// names. Valid characters are: letters, digits, underscore, dot, hyphen,
// plus, space
var InvalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9_.\-+ ]`)

// SanitizeName lowercases a name, removes invalid characters, replaces
// spaces with hyphens, and trims leading and trailing hyphens
func SanitizeName[T ~string](id T) T {
	lower := strings.ToLower(string(id))
	sanitized := InvalidNameChars.ReplaceAllString(lower, "")
	sanitized = strings.ReplaceAll(sanitized, " ", "-")
	return T(strings.Trim(sanitized, "-"))
}
