package disk

import (
	"fmt"
	"path"
	"strings"
)

// Resolve normalizes a logical path into the canonical relative form used
// as a storage key: forward slashes, no leading slash, no redundant or
// empty segments. Paths that resolve above the disk root are rejected.
func Resolve(p string) (string, error) {
	trimmed := strings.TrimSpace(p)
	trimmed = strings.TrimPrefix(trimmed, "/")
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	cleaned := path.Clean(trimmed)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q escapes the disk root", ErrInvalidPath, p)
	}
	return cleaned, nil
}

// ResolveFolder is Resolve for optional folder prefixes: an empty folder
// resolves to the disk root instead of failing.
func ResolveFolder(folder string) (string, error) {
	if strings.TrimSpace(folder) == "" {
		return "", nil
	}
	return Resolve(folder)
}
