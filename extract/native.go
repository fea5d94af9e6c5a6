package extract

import (
	"context"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/exp/mmap"
)

// maxNativeText caps text gathered by the in-process parser.
const maxNativeText = 16 << 20

// nativePDFText extracts page text without an external process. It stops
// between pages once ctx is done. The parser panics on some malformed pages,
// so each page is guarded.
func nativePDFText(ctx context.Context, path string) (string, error) {
	ra, err := mmap.Open(path)
	if err != nil {
		return "", err
	}
	defer ra.Close()

	reader, err := pdf.NewReader(ra, int64(ra.Len()))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	pages := reader.NumPage()
	for i := 1; i <= pages && b.Len() < maxNativeText; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		func() {
			defer func() { _ = recover() }()
			page := reader.Page(i)
			if page.V.IsNull() {
				return
			}
			content, err := page.GetPlainText(nil)
			if err != nil {
				return
			}
			b.WriteString(content)
			b.WriteByte('\n')
		}()
	}
	return b.String(), nil
}
