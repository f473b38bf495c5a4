package util

import (
	"net/url"
	"strings"
)

// FileName maps a cache key to a single path element. The mapping is
// reversible with KeyFromFileName and never yields "", "." or "..".
func FileName(key string) string {
	name := url.PathEscape(key)
	// PathEscape leaves '.' alone; escape it when the whole name is dots.
	if strings.Trim(name, ".") == "" {
		name = strings.ReplaceAll(name, ".", "%2E")
	}
	if name == "" {
		return "%"
	}
	return name
}

// KeyFromFileName reverses FileName.
func KeyFromFileName(name string) (string, error) {
	if name == "%" {
		return "", nil
	}
	return url.PathUnescape(name)
}
