package extract

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// extractWithStdlib unpacks zip and tar(+gz/bz2/xz/zstd) archives using the
// standard library and the bundled compression codecs, covering every
// format that isn't handed to the external tool.
func extractWithStdlib(archivePath, targetDir string) error {
	lower := strings.ToLower(archivePath)
	if strings.HasSuffix(lower, ".zip") {
		return extractZip(archivePath, targetDir)
	}
	wrap, err := tarWrapperFor(archivePath)
	if err != nil {
		return fmt.Errorf("unsupported archive format: %s", filepath.Base(archivePath))
	}
	return extractTarFrom(archivePath, targetDir, wrap)
}

func extractZip(archivePath, targetDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		dest := filepath.Join(targetDir, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(dest, filepath.Clean(targetDir)+string(os.PathSeparator)) && dest != filepath.Clean(targetDir) {
			return fmt.Errorf("zip entry escapes target dir: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		if err := copyZipEntry(f, dest); err != nil {
			return err
		}
	}
	return nil
}

func copyZipEntry(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, f.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}

// probeTar picks the compression wrapper from the filename and walks every
// tar entry header without extracting, used by CanExtract's structural
// pre-check for tar/gz/bz2/xz/zst payloads.
func probeTar(archivePath string) error {
	wrap, err := tarWrapperFor(archivePath)
	if err != nil {
		return err
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	r, err := wrap(f)
	if err != nil {
		return fmt.Errorf("open compressed stream: %w", err)
	}

	tr := tar.NewReader(r)
	for {
		if _, err := tr.Next(); err == io.EOF {
			return nil
		} else if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}
	}
}

func tarWrapperFor(archivePath string) (func(io.Reader) (io.Reader, error), error) {
	lower := strings.ToLower(archivePath)
	switch {
	case strings.HasSuffix(lower, ".tar"):
		return func(r io.Reader) (io.Reader, error) { return r, nil }, nil
	case strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz"):
		return func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) }, nil
	case strings.HasSuffix(lower, ".tar.bz2") || strings.HasSuffix(lower, ".tbz2"):
		return func(r io.Reader) (io.Reader, error) { return bzip2.NewReader(r), nil }, nil
	case strings.HasSuffix(lower, ".tar.xz"):
		return func(r io.Reader) (io.Reader, error) { return xz.NewReader(r) }, nil
	case strings.HasSuffix(lower, ".tar.zst"):
		return func(r io.Reader) (io.Reader, error) {
			zr, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return zr.IOReadCloser(), nil
		}, nil
	default:
		return nil, fmt.Errorf("unsupported tar variant: %s", filepath.Base(archivePath))
	}
}

func extractTarFrom(archivePath, targetDir string, wrap func(io.Reader) (io.Reader, error)) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	r, err := wrap(f)
	if err != nil {
		return fmt.Errorf("open compressed stream: %w", err)
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}

		dest := filepath.Join(targetDir, filepath.FromSlash(hdr.Name))
		if !strings.HasPrefix(dest, filepath.Clean(targetDir)+string(os.PathSeparator)) && dest != filepath.Clean(targetDir) {
			return fmt.Errorf("tar entry escapes target dir: %s", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		}
	}
}
