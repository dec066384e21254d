package archive

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"quotearchiver/internal/model"
)

// IDPlaceholder marks where the instrument id goes in the data URL template.
const IDPlaceholder = "{id}"

var idPattern = regexp.MustCompile(`/Index/(\d+)$`)

// Sanitize replaces every character outside [A-Za-z0-9_] with '_'.
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// InstrumentDir is the directory holding one instrument's artifacts for a
// run date.
func InstrumentDir(root, runDate, name string) string {
	return filepath.Join(root, runDate, Sanitize(name))
}

// ArtifactPath is the final location of an artifact.
func ArtifactPath(root, runDate, name string, kind model.ArtifactKind) string {
	return filepath.Join(InstrumentDir(root, runDate, name), kind.FileName())
}

// ExtractID returns the numeric id at the end of an instrument link.
func ExtractID(href string) (string, error) {
	m := idPattern.FindStringSubmatch(href)
	if m == nil {
		return "", fmt.Errorf("%q: %w", href, model.ErrIDNotFound)
	}
	return m[1], nil
}

// DataURL fills the instrument id into the feed URL template.
func DataURL(template, id string) string {
	return strings.ReplaceAll(template, IDPlaceholder, id)
}
