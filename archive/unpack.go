package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"

	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/internal/logging"
)

// OutputDir returns the directory Unpack extracts archivePath into.
func OutputDir(archivePath, destinationDir string) string {
	base := filepath.Base(archivePath)
	return filepath.Join(destinationDir, strings.TrimSuffix(base, filepath.Ext(base)))
}

// Unpack extracts archivePath into destinationDir/<archive name without extension>
// and returns that directory. An existing output directory is returned as is.
// Extraction happens in a temporary sibling directory that is renamed into
// place on success, so an interrupted run never leaves a partial output.
func Unpack(archivePath, destinationDir string, removeArchive bool) (string, error) {
	out := OutputDir(archivePath, destinationDir)
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		logging.Logf("archive: %s already unpacked", out)
		return out, nil
	}

	format, err := Detect(archivePath)
	if err != nil {
		return "", err
	}
	if !format.Supported() {
		return "", fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, filepath.Base(archivePath), format)
	}

	if err := os.MkdirAll(destinationDir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.MkdirTemp(destinationDir, ".unpack-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmp)

	switch format {
	case Format7z:
		err = unpack7z(archivePath, tmp)
	case FormatZip:
		err = unpackZip(archivePath, tmp)
	}
	if err != nil {
		return "", fmt.Errorf("unpack %s: %w", filepath.Base(archivePath), err)
	}
	if err := os.Rename(tmp, out); err != nil {
		return "", err
	}
	logging.Logf("archive: unpacked %s (%s) into %s", filepath.Base(archivePath), format, out)

	if removeArchive {
		if err := os.Remove(archivePath); err != nil {
			return out, err
		}
	}
	return out, nil
}

func unpackZip(archivePath, dst string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer zr.Close()
	for _, f := range zr.File {
		if err := extractEntry(dst, f.Name, f.FileInfo().IsDir(), f.Open); err != nil {
			return err
		}
	}
	return nil
}

func unpack7z(archivePath, dst string) error {
	r, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer r.Close()
	for _, f := range r.File {
		if err := extractEntry(dst, f.Name, f.FileInfo().IsDir(), f.Open); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(dst, name string, isDir bool, open func() (io.ReadCloser, error)) error {
	target := filepath.Join(dst, filepath.FromSlash(name))
	if !strings.HasPrefix(target, filepath.Clean(dst)+string(os.PathSeparator)) {
		return fmt.Errorf("entry %q escapes destination", name)
	}
	if isDir {
		return os.MkdirAll(target, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := open()
	if err != nil {
		return err
	}
	defer rc.Close()

	w, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, rc); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
