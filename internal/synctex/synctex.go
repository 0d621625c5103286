// Package synctex talks to the synctex command line tool: it names the
// per-document database directory, shapes view/edit invocations and parses
// their output.
package synctex

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/texbuilder/internal/query"
)

// Tool is the synctex executable name.
const Tool = "synctex"

// FileSuffix is the compressed synctex file written next to the PDF.
const FileSuffix = ".synctex.gz"

// DatabaseDir returns the directory holding synctex data for texPath:
// configRoot joined with the padded URL-safe base64 of the absolute path.
// Existing databases are found by this exact name, so it must not change.
func DatabaseDir(configRoot, texPath string) (string, error) {
	abs, err := filepath.Abs(texPath)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", texPath, err)
	}
	return filepath.Join(configRoot, base64.URLEncoding.EncodeToString([]byte(abs))), nil
}

// ViewArgs returns the arguments for a forward lookup of line:column in input.
func ViewArgs(line, column int, input, pdf, dbDir string) []string {
	return []string{"view", "-i", fmt.Sprintf("%d:%d:%s", line, column, input), "-o", pdf, "-d", dbDir}
}

// EditArgs returns the arguments for a backward lookup of a PDF point.
func EditArgs(page int, x, y float64, pdf, dbDir string) []string {
	return []string{"edit", "-o", fmt.Sprintf("%d:%s:%s:%s", page, formatCoord(x), formatCoord(y), pdf), "-d", dbDir}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseView extracts the highlight rectangles from "synctex view" output.
// Every "Page:" line starts a new record.
func ParseView(out []byte) []query.Rect {
	var (
		rects []query.Rect
		cur   *query.Rect
	)
	flush := func() {
		if cur != nil {
			rects = append(rects, *cur)
			cur = nil
		}
	}

	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), ":")
		if !ok {
			continue
		}
		if key == "Page" {
			flush()
			page, err := strconv.Atoi(value)
			if err != nil {
				continue
			}
			cur = &query.Rect{Page: page}
			continue
		}
		if cur == nil {
			continue
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			continue
		}
		switch key {
		case "h":
			cur.H = f
		case "v":
			cur.V = f
		case "W":
			cur.Width = f
		case "H":
			cur.Height = f
		}
	}
	flush()
	return rects
}

// ParseEdit extracts the source file and 1-based line from "synctex edit"
// output. ok is false when either is missing.
func ParseEdit(out []byte) (file string, line int, ok bool) {
	line = -1
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		key, value, found := strings.Cut(strings.TrimSpace(sc.Text()), ":")
		if !found {
			continue
		}
		switch key {
		case "Input":
			if file == "" {
				file = value
			}
		case "Line":
			if n, err := strconv.Atoi(value); err == nil && line < 0 {
				line = n
			}
		}
	}
	return file, line, file != "" && line >= 0
}
