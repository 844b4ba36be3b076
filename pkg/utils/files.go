// Package utils holds small host file-system helpers shared by the commands.
package utils

import (
	"path/filepath"
	"strings"
)

// GetPathInfo resolves relPath to an absolute, cleaned path and returns it
// together with its directory.
func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}
	parentDir = filepath.Dir(fullPath)
	return fullPath, parentDir, nil
}

// Stem is the base name of path without its final extension:
// /src/hello.rud -> hello
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
