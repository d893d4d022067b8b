package extract

import (
	"regexp"
	"strings"
)

var illegalPathChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// SanitizePathComponent makes s usable as a single directory or file name:
// whitespace runs collapse to "_" and characters illegal on common
// filesystems become "_".
func SanitizePathComponent(s string) string {
	s = strings.Join(strings.Fields(s), "_")
	s = illegalPathChars.ReplaceAllString(s, "_")
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}
