// Package source locates raw Hansard transcripts: a local archive laid out
// by house and year, and the ParlInfo sitting index published online.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"
)

// Houses are the archive's top-level directories.
var Houses = []string{"hofreps", "senate"}

// Entry is one transcript file in a Dir.
type Entry struct {
	Name  string
	House string
	Date  time.Time // zero when the filename carries no date
	Path  string
}

// DateHint returns the entry date in ISO form, or "" when unknown.
func (e Entry) DateHint() string {
	if e.Date.IsZero() {
		return ""
	}
	return e.Date.Format("2006-01-02")
}

// Dir is a transcript archive rooted at a directory holding
// <house>/<year>/<file>.
type Dir struct {
	Root string
}

// List returns the entries for house sorted by name. Names are
// "<house>-<YYYY-MM-DD>"; files without a date in their name keep their
// base name instead.
func (d Dir) List(house string) ([]Entry, error) {
	houseDir := filepath.Join(d.Root, house)
	years, err := os.ReadDir(houseDir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", house, err)
	}

	var entries []Entry
	for _, year := range years {
		if !year.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(houseDir, year.Name()))
		if err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", house, year.Name(), err)
		}
		for _, f := range files {
			if f.IsDir() || strings.HasPrefix(f.Name(), ".") {
				continue
			}
			e := Entry{
				House: house,
				Path:  filepath.Join(houseDir, year.Name(), f.Name()),
			}
			if date, ok := DateFromFilename(f.Name()); ok {
				e.Date = date
				e.Name = DocumentName(house, date)
			} else {
				e.Name = house + "-" + strings.TrimSuffix(f.Name(), filepath.Ext(f.Name()))
			}
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Read returns the raw text of e.
func (d Dir) Read(e Entry) (string, error) {
	b, err := os.ReadFile(e.Path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", e.Name, err)
	}
	return string(b), nil
}

// DateFromFilename reads the first eight digits of name as YYYYMMDD.
func DateFromFilename(name string) (time.Time, bool) {
	var digits []rune
	for _, r := range name {
		if unicode.IsDigit(r) {
			digits = append(digits, r)
			if len(digits) == 8 {
				break
			}
		}
	}
	if len(digits) < 8 {
		return time.Time{}, false
	}
	t, err := time.Parse("20060102", string(digits))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DocumentName is the stable identity of a sitting transcript.
func DocumentName(house string, date time.Time) string {
	return house + "-" + date.Format("2006-01-02")
}
