// Package archive bundles processed outputs into a single ZIP file.
package archive

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

// DefaultName is the file name offered for archive downloads.
const DefaultName = "iconverter-output.zip"

var (
	// ErrEmpty is returned when there is nothing to put in the archive.
	ErrEmpty = errors.New("no processed files to package")
	// ErrPackage wraps failures while assembling the archive.
	ErrPackage = errors.New("packaging failed")
)

// Entry is one file of the archive.
type Entry struct {
	Name     string
	Data     []byte
	Modified time.Time
}

// Write streams entries into a ZIP archive on w. Outputs are already
// compressed images or PDFs, so entries are stored without deflating.
// Names that repeat get a numeric suffix so that every entry survives.
func Write(w io.Writer, entries []Entry) error {
	if len(entries) == 0 {
		return ErrEmpty
	}

	zw := zip.NewWriter(w)
	taken := make(map[string]struct{}, len(entries))

	for _, e := range entries {
		modified := e.Modified
		if modified.IsZero() {
			modified = time.Now()
		}

		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     UniqueName(e.Name, taken),
			Method:   zip.Store,
			Modified: modified,
		})
		if err != nil {
			return fmt.Errorf("%w: create entry %q: %w", ErrPackage, e.Name, err)
		}

		if _, err := fw.Write(e.Data); err != nil {
			return fmt.Errorf("%w: write entry %q: %w", ErrPackage, e.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("%w: finish archive: %w", ErrPackage, err)
	}

	return nil
}

// UniqueName returns name, or name with "-N" before its extension when it
// is already taken. taken is updated in place.
func UniqueName(name string, taken map[string]struct{}) string {
	if name == "" {
		name = "file"
	}

	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := name
	for n := 2; ; n++ {
		if _, ok := taken[candidate]; !ok {
			taken[candidate] = struct{}{}
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d%s", stem, n, ext)
	}
}
