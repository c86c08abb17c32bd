package utils

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	controlChars   = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	unsafeFileChar = regexp.MustCompile(`[<>:"/\\|?*]`)
)

// SanitizeString removes control characters and surrounding whitespace
func SanitizeString(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}

// SanitizeFilename reduces a client supplied file name to a safe base name.
// Directory components are dropped so the name can never escape the upload root.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(SanitizeString(name))
	name = unsafeFileChar.ReplaceAllString(name, "_")
	if name == "." || name == ".." || name == "/" || name == "" {
		return "upload.pdf"
	}
	return name
}

// NormalizeEmail lowercases and trims an email address for lookups
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
