package hostfs

import (
	"runtime"
	"strings"
	"unicode"
)

// NormalizeVolumePath rewrites a bare drive letter ("E:" or "E:\") into a
// raw Windows volume path (\\.\E:) so it can be opened for unbuffered
// reading. On non-Windows platforms, or for paths that are not drive
// letters, it returns path unchanged.
func NormalizeVolumePath(path string) string {
	if runtime.GOOS != "windows" {
		return path
	}

	trimmed := strings.ReplaceAll(strings.TrimSpace(path), "/", `\`)
	upper := strings.ToUpper(trimmed)

	if strings.HasPrefix(upper, `\\.\`) {
		return upper
	}
	if len(upper) >= 2 && upper[1] == ':' && unicode.IsLetter(rune(upper[0])) {
		return `\\.\` + string(upper[0]) + `:`
	}
	return path
}
