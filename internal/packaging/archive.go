package packaging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/zip"
)

// Content types of uploaded package artifacts.
const (
	ContentTypePackage       = "application/zip"
	ContentTypeConfiguration = "application/x-yaml"
	ContentTypeManifest      = "application/json"
)

// archiveEpoch is stamped on every entry so identical inputs give
// byte-identical archives.
var archiveEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// writeArchive writes the files and the extra in-memory entries to a
// deflate-compressed zip at path.
func writeArchive(path string, files []FileEntry, extra map[string][]byte, extraOrder []string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("packaging: create archive: %w", err)
	}

	zw := zip.NewWriter(out)
	for _, name := range extraOrder {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: archiveEpoch})
		if err != nil {
			out.Close()
			return fmt.Errorf("packaging: add %s: %w", name, err)
		}
		if _, err := w.Write(extra[name]); err != nil {
			out.Close()
			return fmt.Errorf("packaging: write %s: %w", name, err)
		}
	}
	for _, f := range files {
		if err := addFile(zw, f); err != nil {
			out.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return fmt.Errorf("packaging: finish archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("packaging: close archive: %w", err)
	}
	return nil
}

func addFile(zw *zip.Writer, f FileEntry) error {
	src, err := os.Open(f.AbsPath)
	if err != nil {
		return fmt.Errorf("packaging: open %q: %w", f.ArchivePath(), err)
	}
	defer src.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     f.ArchivePath(),
		Method:   zip.Deflate,
		Modified: archiveEpoch,
	})
	if err != nil {
		return fmt.Errorf("packaging: add %q: %w", f.ArchivePath(), err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("packaging: write %q: %w", f.ArchivePath(), err)
	}
	return nil
}
