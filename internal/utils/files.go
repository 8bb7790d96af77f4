package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"
)

// EnsureDir ensures the provided directory exists.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// SafeWriteFile writes data to a temp file and atomically renames it into place.
func SafeWriteFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}

// PrettyJSON marshals a value as indented JSON.
func PrettyJSON(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	return b, nil
}

const (
	maxFilenameRunes = 100
	// maxFilenameBytes leaves room under the 255-byte NAME_MAX for a
	// numeric suffix, an extension and the ".tmp" used by SafeWriteFile.
	maxFilenameBytes = 200
)

// SafeFilename keeps letters, digits and -_.() plus spaces, turns spaces
// into underscores and caps the result at 100 runes and 200 bytes, cutting
// on a rune boundary. It may return "".
func SafeFilename(name string) string {
	var b strings.Builder
	n := 0
	for _, r := range name {
		if n == maxFilenameRunes {
			break
		}
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), strings.ContainsRune("-_.()", r):
		case r == ' ':
			r = '_'
		default:
			continue
		}
		if b.Len()+utf8.RuneLen(r) > maxFilenameBytes {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}
