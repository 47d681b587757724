package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
)

// docxText returns the non-empty paragraphs of a Word document, one per line.
func docxText(p string) (string, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			paras, err := zipParagraphs(f, "t")
			if err != nil {
				return "", fmt.Errorf("read docx body: %w", err)
			}
			return strings.Join(paras, "\n"), nil
		}
	}
	return "", fmt.Errorf("read docx: word/document.xml not found")
}

// pptxText returns the text of every slide in slide order.
func pptxText(p string) (string, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return "", fmt.Errorf("open pptx: %w", err)
	}
	defer zr.Close()

	type slide struct {
		n int
		f *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		dir, name := path.Split(f.Name)
		if dir != "ppt/slides/" || !strings.HasPrefix(name, "slide") || !strings.HasSuffix(name, ".xml") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "slide"), ".xml"))
		if err != nil {
			continue
		}
		slides = append(slides, slide{n: n, f: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	var parts []string
	for _, s := range slides {
		paras, err := zipParagraphs(s.f, "t")
		if err != nil {
			return "", fmt.Errorf("read %s: %w", s.f.Name, err)
		}
		parts = append(parts, paras...)
	}
	return strings.Join(parts, "\n"), nil
}

// zipParagraphs streams an OOXML part and collects the text runs (elements
// named textElem) of each paragraph ("p"). Empty paragraphs are dropped.
func zipParagraphs(f *zip.File, textElem string) ([]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return paragraphs(rc, textElem)
}

func paragraphs(r io.Reader, textElem string) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		out    []string
		cur    strings.Builder
		inText bool
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case textElem:
				inText = true
			case "tab":
				cur.WriteByte('\t')
			case "br":
				cur.WriteByte('\n')
			}
		case xml.EndElement:
			switch el.Name.Local {
			case textElem:
				inText = false
			case "p":
				flush()
			}
		case xml.CharData:
			if inText {
				cur.Write(el)
			}
		}
	}
	flush()
	return out, nil
}
