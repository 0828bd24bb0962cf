package domain

import (
	"net/url"
	"path/filepath"
	"strings"
)

// LocalPath maps a plain path or file:// URI to a filesystem path.
// It returns false for empty input and for any other URI scheme.
func LocalPath(pathOrURI string) (string, bool) {
	if strings.TrimSpace(pathOrURI) == "" {
		return "", false
	}
	if strings.HasPrefix(strings.ToLower(pathOrURI), "file://") {
		u, err := url.Parse(pathOrURI)
		if err != nil || u.Path == "" {
			return "", false
		}
		if u.Host != "" && u.Host != "localhost" {
			return "", false
		}
		return filepath.FromSlash(u.Path), true
	}
	if strings.Contains(pathOrURI, "://") {
		return "", false
	}
	return pathOrURI, true
}

// DocumentKeyFor returns the key a source is stored under. Local paths
// and file:// URIs become absolute paths; other keys (text://, pack://)
// are returned unchanged.
func DocumentKeyFor(pathOrURI string) string {
	p, ok := LocalPath(pathOrURI)
	if !ok {
		return pathOrURI
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return pathOrURI
	}
	return abs
}
