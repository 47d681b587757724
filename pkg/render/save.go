package render

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ErrUnsupportedFormat indicates a destination extension with no writer.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// Formats lists the destination extensions Save accepts.
var Formats = []string{".docx", ".md", ".markdown", ".txt"}

// CheckFormat reports whether Save can write dest, returning
// ErrUnsupportedFormat otherwise.
func CheckFormat(dest string) error {
	ext := strings.ToLower(filepath.Ext(dest))
	if !slices.Contains(Formats, ext) {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(dest))
	}
	return nil
}

// Save renders markdown to dest, choosing the format by extension.
//
// The file is written to a temporary sibling and renamed into place, so a
// failed save never leaves a partial document at dest. Parent directories
// are created as needed.
func Save(markdown, dest string) error {
	if err := CheckFormat(dest); err != nil {
		return err
	}

	var buf bytes.Buffer
	switch strings.ToLower(filepath.Ext(dest)) {
	case ".docx":
		if err := WriteDocx(&buf, Parse(markdown)); err != nil {
			return fmt.Errorf("render docx: %w", err)
		}
	default:
		buf.WriteString(markdown)
		if !strings.HasSuffix(markdown, "\n") {
			buf.WriteByte('\n')
		}
	}

	return writeAtomic(dest, buf.Bytes())
}

func writeAtomic(dest string, data []byte) (err error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync output: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod output: %w", err)
	}
	if err = os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}
