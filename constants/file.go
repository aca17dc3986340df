package constants

import "strings"

// AllowedImageExtensions holds the screenshot formats accepted at the
// upload boundary. Tesseract reads these directly; no conversion step.
var AllowedImageExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
}

// AllowedTemplateExtensions holds the accepted template formats.
var AllowedTemplateExtensions = map[string]struct{}{
	"xlsx": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedImage reports whether the filename has an accepted
// screenshot extension.
func IsAllowedImage(filename string) bool {
	_, ok := AllowedImageExtensions[extOf(filename)]
	return ok
}

// IsAllowedTemplate reports whether the filename has an accepted
// template extension.
func IsAllowedTemplate(filename string) bool {
	_, ok := AllowedTemplateExtensions[extOf(filename)]
	return ok
}

func extOf(filename string) string {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 {
		return ""
	}
	return NormalizeExt(filename[i:])
}
