package storage

import (
	"encoding/base64"
	"strings"
)

// encodeGroup converts a page group into the file stem used for its
// partition: standard base64 with every character outside [A-Za-z0-9_-]
// removed. Directories written by earlier server versions use the same
// names.
//
// Stripping '+', '/' and '=' makes the mapping lossy: two groups whose
// encodings differ only in those characters share a file.
func encodeGroup(pageGroup string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(pageGroup))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return -1
	}, encoded)
}

// groupFileName returns the partition file name for a page group.
func groupFileName(pageGroup string) string {
	return encodeGroup(pageGroup) + groupFileExt
}

// groupKeyFromFile returns the manifest key for a partition file name, or
// "" if name is not a partition file.
func groupKeyFromFile(name string) string {
	key, ok := strings.CutSuffix(name, groupFileExt)
	if !ok || key == "" {
		return ""
	}
	return key
}
