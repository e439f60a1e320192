package game

import "unicode/utf8"

// TruncateName truncates name to at most maxBytes bytes on a valid UTF-8
// boundary, discarding any trailing partial rune. The result is at most
// maxBytes bytes long, and is valid UTF-8 whenever name is; invalid bytes
// before the cut are kept as they are.
func TruncateName(name string, maxBytes int) string {
	if len(name) <= maxBytes {
		return name
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}
