package imagestore

import (
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/kozaktomas/photo-picker/internal/constants"
)

const maxExtensionLength = 8

// removeDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func removeDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeFilename strips any directory part and diacritics from an
// original filename.
func NormalizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))
	if name == "." || name == "/" {
		return ""
	}
	return strings.TrimSpace(removeDiacritics(name))
}

// extensionFor returns the lower-case extension of name, or the default
// extension when it has none or it does not look like one.
func extensionFor(name string) string {
	ext := strings.ToLower(path.Ext(NormalizeFilename(name)))
	if len(ext) < 2 || len(ext) > maxExtensionLength {
		return constants.DefaultImageExtension
	}
	for _, r := range ext[1:] {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return constants.DefaultImageExtension
		}
	}
	return ext
}
