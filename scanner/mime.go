package scanner

import (
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

const (
	sniffLength     = 261
	defaultMimeType = "application/octet-stream"
)

// DetectMimeType is used when the caller did not declare a type. Magic bytes
// win; the extension is consulted for formats without a signature.
func DetectMimeType(path string) string {
	if mt := sniffMimeType(path); mt != "" {
		return mt
	}
	if mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); mt != "" {
		return mt
	}
	return defaultMimeType
}

func sniffMimeType(path string) string {
	file, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer file.Close()

	buf := make([]byte, sniffLength)
	n, err := io.ReadFull(file, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return ""
	}
	kind, err := filetype.Match(buf[:n])
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	// OOXML and ODF are zip containers; the signature alone often reports
	// plain zip, which the extension can refine.
	if kind.MIME.Value == "application/zip" {
		if mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); mt != "" {
			return mt
		}
	}
	return kind.MIME.Value
}
