package main

import (
	"archive/tar"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/ulikunitz/xz"
)

// archiveReader wraps a tar.Reader with decompression chosen by file suffix.
type archiveReader struct {
	*tar.Reader
	file         *os.File
	decompressor io.Closer
}

// openArchive opens a .tar.bz2, .tar.xz, .tar.gz or plain .tar file.
func openArchive(path string) (*archiveReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	var reader io.Reader = f
	var decompressor io.Closer

	switch name := strings.ToLower(path); {
	case strings.HasSuffix(name, ".tar.bz2"), strings.HasSuffix(name, ".tbz2"):
		reader = bzip2.NewReader(f)
	case strings.HasSuffix(name, ".tar.xz"), strings.HasSuffix(name, ".txz"):
		xzr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("xz reader: %w", err)
		}
		reader = xzr
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		gzr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		reader = gzr
		decompressor = gzr
	case strings.HasSuffix(name, ".tar"):
	default:
		f.Close()
		return nil, fmt.Errorf("unsupported archive format: %s", path)
	}

	return &archiveReader{
		Reader:       tar.NewReader(reader),
		file:         f,
		decompressor: decompressor,
	}, nil
}

// Close closes the archive reader and any underlying decompressor.
func (r *archiveReader) Close() error {
	var errs []error
	if r.decompressor != nil {
		errs = append(errs, r.decompressor.Close())
	}
	errs = append(errs, r.file.Close())
	return errors.Join(errs...)
}

// archiveVisitor is called for each archive entry. Return true to stop.
type archiveVisitor func(header *tar.Header, content io.Reader) (stop bool, err error)

// Iterate walks through all entries in the archive, calling the visitor for each.
func (r *archiveReader) Iterate(visit archiveVisitor) error {
	for {
		header, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}

		stop, err := visit(header, r)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

// extractArchive unpacks regular files and directories of the archive at
// path into destDir. Entries whose names escape destDir are rejected; links
// and device entries are skipped.
func extractArchive(path, destDir string) (files int, err error) {
	r, err := openArchive(path)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return 0, fmt.Errorf("create %s: %w", destDir, err)
	}

	var written int64
	err = r.Iterate(func(h *tar.Header, content io.Reader) (bool, error) {
		name := filepath.FromSlash(strings.TrimPrefix(h.Name, "./"))
		if name == "" || name == "." {
			return false, nil
		}
		if !filepath.IsLocal(name) {
			return true, fmt.Errorf("archive entry %q escapes %s", h.Name, destDir)
		}
		target := filepath.Join(destDir, name)

		switch h.Typeflag {
		case tar.TypeDir:
			return false, os.MkdirAll(target, 0o755)
		case tar.TypeReg:
			n, err := extractFile(target, content, h.FileInfo().Mode().Perm())
			if err != nil {
				return true, err
			}
			files++
			written += n
			return false, nil
		default:
			log.Printf("    skipping %s (type %c)", h.Name, h.Typeflag)
			return false, nil
		}
	})
	if err != nil {
		return files, err
	}
	log.Printf("  extracted %d files (%s) into %s", files, humanize.Bytes(uint64(written)), destDir)
	return files, nil
}

func extractFile(target string, content io.Reader, perm os.FileMode) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0o600)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, content)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("extract %s: %w", target, err)
	}
	return n, nil
}
