package extract

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pdfText returns the text of the first maxPages pages, or of every page
// when maxPages is zero. Pages that fail to decode are skipped.
func pdfText(path string, maxPages int) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	n := r.NumPage()
	if maxPages > 0 && maxPages < n {
		n = maxPages
	}

	parts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n"), nil
}
