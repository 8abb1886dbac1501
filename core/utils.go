package core

import (
	"os"
	"path/filepath"
	"strings"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Getwd tries to find the project root (the directory holding go.mod).
// go-test changes the working directory to the test package being run,
// so walk up until the module root is found. Falls back to the working directory.
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	currDir := wd
	for {
		if fi, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil && !fi.IsDir() {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}

// ContainsInt reports whether `ids` contains `id`.
func ContainsInt(ids []int, id int) bool {
	for _, i := range ids {
		if i == id {
			return true
		}
	}
	return false
}

// IsCanvasURL reports whether `u` looks like a Canvas LMS calendar feed:
// an http(s) URL mentioning "canvas".
func IsCanvasURL(u string) bool {
	lu := strings.ToLower(strings.TrimSpace(u))
	if !(strings.HasPrefix(lu, "http://") || strings.HasPrefix(lu, "https://")) {
		return false
	}
	return strings.Contains(lu, "canvas")
}
