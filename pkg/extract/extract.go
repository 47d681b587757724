package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// ErrUnsupported indicates a file extension with no text extractor.
var ErrUnsupported = errors.New("unsupported file type")

// Extractor returns the plain text of the file at path.
type Extractor func(path string) (string, error)

var (
	mu         sync.RWMutex
	extractors = map[string]Extractor{
		".txt":  plainText,
		".md":   plainText,
		".pdf":  func(path string) (string, error) { return pdfText(path, 0) },
		".docx": docxText,
		".pptx": pptxText,
	}
)

// Register adds or replaces the extractor for ext. The extension is matched
// case-insensitively and may be given with or without the leading dot.
func Register(ext string, fn Extractor) {
	ext = normalizeExt(ext)
	if ext == "." || fn == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	extractors[ext] = fn
}

// Extensions returns the registered extensions, lower-case and sorted.
func Extensions() []string {
	mu.RLock()
	defer mu.RUnlock()
	exts := make([]string, 0, len(extractors))
	for ext := range extractors {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// Supported reports whether path has an extension Text understands.
func Supported(path string) bool {
	_, ok := lookup(path)
	return ok
}

// Text extracts plain text from the file at path, dispatching on extension.
// Plain-text files are read as UTF-8 with invalid bytes dropped.
func Text(path string) (string, error) {
	fn, ok := lookup(path)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
	return fn(path)
}

func lookup(path string) (Extractor, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	mu.RLock()
	defer mu.RUnlock()
	fn, ok := extractors[ext]
	return fn, ok
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func plainText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), ""), nil
}
