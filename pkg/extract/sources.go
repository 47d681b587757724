package extract

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// Files expands input locations into supported files. Directories are
// walked recursively and their files sorted; missing paths and unsupported
// files are skipped. Each file appears once.
func Files(paths []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, raw := range paths {
		info, err := os.Stat(raw)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			if Supported(raw) {
				add(raw)
			}
			continue
		}

		var found []string
		_ = filepath.WalkDir(raw, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !d.IsDir() && Supported(p) {
				found = append(found, p)
			}
			return nil
		})
		sort.Strings(found)
		for _, p := range found {
			add(p)
		}
	}
	return out
}

// ChunkOptions bounds the text produced from a set of inputs.
type ChunkOptions struct {
	// Size is the maximum runes of file text per chunk. Zero disables chunking.
	Size int
	// MaxChunks caps the number of chunks across all files. Zero is unlimited.
	MaxChunks int
}

// Result is the outcome of loading a set of input locations.
type Result struct {
	// Texts are the labeled chunks, in file order.
	Texts []string
	// Files are the files that produced text.
	Files []string
	// Skipped are files that could not be read or held no text.
	Skipped []string
	// Truncated is true when MaxChunks dropped text.
	Truncated bool
}

// Sources extracts and chunks every supported file under paths. Unreadable
// files are logged and skipped, never fatal. Every chunk starts with a
// "[SOURCE: <file name>]" line.
func Sources(ctx context.Context, paths []string, opts ChunkOptions, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var res Result
	for _, p := range Files(paths) {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		text, err := Text(p)
		if err != nil {
			logger.Warn("skipping unreadable source", slog.String("path", p), slog.String("err", err.Error()))
			res.Skipped = append(res.Skipped, p)
			continue
		}
		if strings.TrimSpace(text) == "" {
			res.Skipped = append(res.Skipped, p)
			continue
		}

		chunks := Chunk(filepath.Base(p), text, opts.Size)
		if opts.MaxChunks > 0 {
			room := opts.MaxChunks - len(res.Texts)
			if room <= 0 {
				res.Truncated = true
				logger.Warn("chunk limit reached, dropping source", slog.String("path", p), slog.Int("max_chunks", opts.MaxChunks))
				continue
			}
			if len(chunks) > room {
				chunks = chunks[:room]
				res.Truncated = true
			}
		}
		res.Texts = append(res.Texts, chunks...)
		res.Files = append(res.Files, p)
	}
	return res, nil
}

// Chunk splits text into pieces of at most size runes, preferring to break
// at a newline in the second half of a window, and labels each piece with
// its source name. size <= 0 yields a single piece.
func Chunk(name, text string, size int) []string {
	pieces := split(text, size)
	if len(pieces) == 1 {
		return []string{fmt.Sprintf("[SOURCE: %s]\n%s", name, pieces[0])}
	}

	out := make([]string, len(pieces))
	for i, piece := range pieces {
		out[i] = fmt.Sprintf("[SOURCE: %s (part %d of %d)]\n%s", name, i+1, len(pieces), piece)
	}
	return out
}

func split(text string, size int) []string {
	if size <= 0 || utf8.RuneCountInString(text) <= size {
		return []string{text}
	}

	runes := []rune(text)
	var out []string
	for len(runes) > 0 {
		if len(runes) <= size {
			out = append(out, string(runes))
			break
		}
		cut := size
		for i := size - 1; i >= size/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		out = append(out, string(runes[:cut]))
		runes = runes[cut:]
	}
	return out
}
