// Package extract turns an uploaded file into plain text by routing it to the
// right external tool based on its declared MIME type.
package extract

import (
	"mime"
	"strings"
)

type Kind int

const (
	KindOther Kind = iota
	KindPDF
	KindOffice
)

func (k Kind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindOffice:
		return "office"
	default:
		return "other"
	}
}

var officeTypes = map[string]bool{
	"application/msword": true,
	"application/rtf":    true,
	"text/rtf":           true,
}

var officePrefixes = []string{
	"application/vnd.ms-",
	"application/vnd.openxmlformats-officedocument.",
	"application/vnd.oasis.opendocument.",
}

// Classify maps a declared MIME type to an extraction route. Parameters such
// as charset are ignored and matching is case-insensitive.
func Classify(mimeType string) Kind {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	} else if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}

	switch mt {
	case "application/pdf", "application/x-pdf":
		return KindPDF
	}
	if officeTypes[mt] {
		return KindOffice
	}
	for _, prefix := range officePrefixes {
		if strings.HasPrefix(mt, prefix) {
			return KindOffice
		}
	}
	return KindOther
}
